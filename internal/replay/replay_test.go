// internal/replay/replay_test.go
package replay

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxgrid/luxgrid/internal/grid"
	"github.com/luxgrid/luxgrid/internal/models"
)

// memKV is an in-memory stand-in for Redis.
type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string]string)}
}

func (m *memKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func testInitialState(playerCount int) models.ReplayInitialState {
	players := make([]models.ReplayPlayer, playerCount)
	for i := range players {
		players[i] = models.ReplayPlayer{
			ID:        fmt.Sprintf("p%d", i+1),
			Name:      fmt.Sprintf("Player %d", i+1),
			Color:     "hsl(120, 70%, 50%)",
			Position:  grid.Point{X: 10 + i, Y: 10},
			Direction: grid.Right,
		}
	}
	return models.ReplayInitialState{
		GridSize:  30,
		Players:   players,
		Obstacles: []string{"12,12"},
		Settings:  models.DefaultGameSettings(),
	}
}

func buildTestReplay(t *testing.T, id, userID string) *models.ReplayData {
	t.Helper()
	start := time.Unix(1000, 0)
	rec := NewRecorder("test lobby", start)
	rec.SetInitialState(testInitialState(2))
	rec.RecordEvent(EventGameStarted, nil, start)
	rec.AdvanceTick()
	rec.RecordAction("p1", ActionMove, map[string]any{"direction": "up"}, start.Add(200*time.Millisecond))
	rec.AdvanceTick()
	rec.RecordEvent(EventGameOver, map[string]any{"winner": "p1"}, start.Add(400*time.Millisecond))

	data, err := rec.Build(id, userID, start.Add(5*time.Second))
	require.NoError(t, err)
	return data
}

func TestRecorderRequiresInitialStateAndEvents(t *testing.T) {
	rec := NewRecorder("lobby", time.Now())
	_, err := rec.Build("abc", "u1", time.Now())
	assert.ErrorIs(t, err, ErrNothingRecorded)

	rec.SetInitialState(testInitialState(2))
	_, err = rec.Build("abc", "u1", time.Now())
	assert.ErrorIs(t, err, ErrNothingRecorded, "events are required too")

	rec.RecordEvent(EventGameStarted, nil, time.Now())
	_, err = rec.Build("abc", "u1", time.Now())
	assert.NoError(t, err)
}

func TestRecorderMetadata(t *testing.T) {
	data := buildTestReplay(t, "abcdef123456", "u1")

	assert.Equal(t, "abcdef123456", data.Metadata.ReplayID)
	assert.Equal(t, "u1", data.Metadata.UserID)
	assert.Equal(t, 2, data.Metadata.PlayerCount)
	assert.Equal(t, 30, data.Metadata.GridSize)
	assert.Equal(t, 5, data.Metadata.Duration)
	require.NotNil(t, data.Metadata.Winner)
	assert.Equal(t, "p1", *data.Metadata.Winner)

	// totalTicks matches the last recorded event's tick.
	assert.Equal(t, data.Events[len(data.Events)-1].Tick, data.Metadata.TotalTicks)
	assert.Equal(t, len(data.InitialState.Players), data.Metadata.PlayerCount)
}

func TestRecorderTimestampsRelativeToStart(t *testing.T) {
	start := time.Unix(500, 0)
	rec := NewRecorder("lobby", start)
	rec.SetInitialState(testInitialState(1))
	rec.RecordEvent(EventGameStarted, nil, start.Add(250*time.Millisecond))

	data, err := rec.Build("id", "u1", start.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(250), data.Events[0].Timestamp)
}

func TestNewReplayID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewReplayID()
		assert.Len(t, id, 12)
		assert.False(t, seen[id], "replay ids must not repeat")
		seen[id] = true
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	store := NewStoreWithKV(newMemKV(), logrus.New())
	data := buildTestReplay(t, NewReplayID(), "u1")

	require.NoError(t, store.Save(context.Background(), data))

	loaded, err := store.Load(context.Background(), data.Metadata.ReplayID)
	require.NoError(t, err)
	assert.Equal(t, data.InitialState, loaded.InitialState)
	assert.Equal(t, data.Actions, loaded.Actions)
	assert.Equal(t, data.Events, loaded.Events)
}

func TestStoreLoadMissing(t *testing.T) {
	store := NewStoreWithKV(newMemKV(), logrus.New())
	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreIndexOmitsUserIDAndOrdersNewestFirst(t *testing.T) {
	store := NewStoreWithKV(newMemKV(), logrus.New())
	first := buildTestReplay(t, "aaaaaaaaaaaa", "u1")
	second := buildTestReplay(t, "bbbbbbbbbbbb", "u1")

	require.NoError(t, store.Save(context.Background(), first))
	require.NoError(t, store.Save(context.Background(), second))

	entries, err := store.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "bbbbbbbbbbbb", entries[0].ReplayID)
	assert.Equal(t, "aaaaaaaaaaaa", entries[1].ReplayID)
	assert.Empty(t, entries[0].Metadata.UserID)
}

func TestStoreEvictsBeyondCap(t *testing.T) {
	kv := newMemKV()
	store := NewStoreWithKV(kv, logrus.New())

	var oldest string
	for i := 0; i < models.MaxReplaysPerUser+3; i++ {
		data := buildTestReplay(t, fmt.Sprintf("%012d", i), "u1")
		if i == 0 {
			oldest = data.Metadata.ReplayID
		}
		require.NoError(t, store.Save(context.Background(), data))
	}

	entries, err := store.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, entries, models.MaxReplaysPerUser)

	// The oldest blobs were deleted along with their index entries.
	_, err = store.Load(context.Background(), oldest)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreDelete(t *testing.T) {
	store := NewStoreWithKV(newMemKV(), logrus.New())
	data := buildTestReplay(t, "cccccccccccc", "u1")
	require.NoError(t, store.Save(context.Background(), data))

	require.NoError(t, store.Delete(context.Background(), "u1", "cccccccccccc"))

	_, err := store.Load(context.Background(), "cccccccccccc")
	assert.ErrorIs(t, err, ErrNotFound)

	entries, err := store.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.ErrorIs(t, store.Delete(context.Background(), "u1", "cccccccccccc"), ErrNotFound)
}
