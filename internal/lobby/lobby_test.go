// internal/lobby/lobby_test.go
package lobby

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxgrid/luxgrid/internal/game"
	"github.com/luxgrid/luxgrid/internal/grid"
	"github.com/luxgrid/luxgrid/internal/models"
	"github.com/luxgrid/luxgrid/internal/protocol"
)

type msgSink struct {
	mu   sync.Mutex
	msgs []protocol.Outbound
}

func (s *msgSink) send(msg protocol.Outbound) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *msgSink) countType(msgType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.msgs {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

func newTestLobby(t *testing.T) (*Lobby, *msgSink) {
	t.Helper()
	l := NewLobby(nil, rand.New(rand.NewSource(3)))
	sink := &msgSink{}
	l.Broadcast = sink.send
	now := time.Unix(90_000, 0)
	l.Now = func() time.Time { return now }
	return l, sink
}

func human(id string) *models.Player {
	return &models.Player{ID: id, Name: id, Color: "hsl(10, 70%, 50%)"}
}

func TestFirstHumanBecomesHost(t *testing.T) {
	l, _ := newTestLobby(t)

	bot, err := l.AddAIBot()
	require.NoError(t, err)
	assert.Empty(t, l.HostID, "bots never host")
	assert.True(t, bot.IsBot())
	assert.True(t, bot.IsReady, "bots join ready")

	p := human("p1")
	require.NoError(t, l.AddPlayer(p))
	assert.Equal(t, "p1", l.HostID)
}

func TestLobbyFullAndBanGuards(t *testing.T) {
	l, _ := newTestLobby(t)
	two := 2
	l.UpdateSettings(models.LobbySettingsUpdate{MaxPlayers: &two})

	require.NoError(t, l.AddPlayer(human("p1")))
	require.NoError(t, l.AddPlayer(human("p2")))
	assert.ErrorIs(t, l.AddPlayer(human("p3")), ErrLobbyFull)

	require.NoError(t, l.Ban("p2"))
	assert.Len(t, l.Players, 1)

	// The ban outlives the removal until the lobby closes.
	assert.ErrorIs(t, l.AddPlayer(human("p2")), ErrBanned)
}

func TestHostPromotionSkipsBots(t *testing.T) {
	l, _ := newTestLobby(t)
	require.NoError(t, l.AddPlayer(human("p1")))
	_, err := l.AddAIBot()
	require.NoError(t, err)
	require.NoError(t, l.AddPlayer(human("p2")))

	l.RemovePlayer("p1")
	assert.Equal(t, "p2", l.HostID)

	l.RemovePlayer("p2")
	assert.Empty(t, l.HostID, "no human left to promote")
}

func TestCollidingColorIsReplaced(t *testing.T) {
	l, _ := newTestLobby(t)
	require.NoError(t, l.AddPlayer(human("p1"))) // hsl(10, ...)

	p2 := human("p2")
	p2.Color = "hsl(20, 70%, 50%)" // within 30 degrees of p1
	require.NoError(t, l.AddPlayer(p2))
	assert.False(t, grid.ColorsSimilar(l.Players[0].Color, p2.Color))

	p3 := human("p3")
	p3.Color = "not-a-color"
	require.NoError(t, l.AddPlayer(p3))
	_, ok := grid.ParseHue(p3.Color)
	assert.True(t, ok, "unparseable colors are replaced")
}

func TestNameTruncation(t *testing.T) {
	l, _ := newTestLobby(t)
	p := human("p1")
	p.Name = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	require.NoError(t, l.AddPlayer(p))
	assert.Len(t, p.Name, models.MaxNameLength)

	require.NoError(t, l.SetName("p1", "bbbbbbbbbbbbbbbbbbbbbbbbb"))
	assert.Len(t, p.Name, models.MaxNameLength)
}

func TestReadyAutoAdvanceRequiresHumanAndFullReadiness(t *testing.T) {
	l, _ := newTestLobby(t)
	require.NoError(t, l.AddPlayer(human("p1")))
	require.NoError(t, l.AddPlayer(human("p2")))

	require.NoError(t, l.SetReady("p1", true))
	assert.Equal(t, StateWaiting, l.State(), "p2 is not ready yet")

	require.NoError(t, l.SetReady("p2", true))
	assert.Equal(t, StateStarting, l.State())

	l.Mu.Lock()
	assert.False(t, l.CountdownStartedAt.IsZero())
	l.Mu.Unlock()
}

func TestReadyIsIdempotent(t *testing.T) {
	l, _ := newTestLobby(t)
	require.NoError(t, l.AddPlayer(human("p1")))
	require.NoError(t, l.AddPlayer(human("p2")))

	require.NoError(t, l.SetReady("p1", true))
	require.NoError(t, l.SetReady("p1", true))
	assert.Equal(t, StateWaiting, l.State())
	assert.True(t, l.Player("p1").IsReady)
}

func TestBotCompletingReadinessStartsCountdown(t *testing.T) {
	l, _ := newTestLobby(t)
	require.NoError(t, l.AddPlayer(human("p1")))
	require.NoError(t, l.SetReady("p1", true))
	assert.Equal(t, StateStarting, l.State(), "a single ready human suffices")

	l2, _ := newTestLobby(t)
	require.NoError(t, l2.AddPlayer(human("p1")))
	_, err := l2.AddAIBot()
	require.NoError(t, err)
	require.NoError(t, l2.SetReady("p1", true))
	assert.Equal(t, StateStarting, l2.State())
}

func TestBotsAloneNeverStart(t *testing.T) {
	l, _ := newTestLobby(t)
	_, err := l.AddAIBot()
	require.NoError(t, err)
	_, err = l.AddAIBot()
	require.NoError(t, err)
	assert.Equal(t, StateWaiting, l.State())
}

func TestLeaveDuringCountdownCancelsIt(t *testing.T) {
	l, _ := newTestLobby(t)
	require.NoError(t, l.AddPlayer(human("p1")))
	require.NoError(t, l.AddPlayer(human("p2")))
	require.NoError(t, l.SetReady("p1", true))
	require.NoError(t, l.SetReady("p2", true))
	require.Equal(t, StateStarting, l.State())

	l.RemovePlayer("p2")
	assert.Equal(t, StateWaiting, l.State())
	l.Mu.Lock()
	assert.True(t, l.CountdownStartedAt.IsZero())
	l.Mu.Unlock()
}

func TestCountdownRemainingIsWallClock(t *testing.T) {
	l, _ := newTestLobby(t)
	require.NoError(t, l.AddPlayer(human("p1")))

	base := time.Unix(90_000, 0)
	var clockMu sync.Mutex
	now := base
	l.Now = func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return now
	}
	require.NoError(t, l.SetReady("p1", true))

	view := l.StateView()
	assert.Equal(t, 5, view.CountdownRemaining)

	clockMu.Lock()
	now = base.Add(2300 * time.Millisecond)
	clockMu.Unlock()
	view = l.StateView()
	assert.Equal(t, 3, view.CountdownRemaining)
}

func TestBeginGameSpawnsRoundState(t *testing.T) {
	l, _ := newTestLobby(t)
	p1 := human("p1")
	p2 := human("p2")
	require.NoError(t, l.AddPlayer(p1))
	require.NoError(t, l.AddPlayer(p2))
	p1.IsReady = true
	p2.IsReady = true

	l.Mu.Lock()
	l.state = StateStarting
	l.CountdownStartedAt = l.Now()
	g := l.beginGameLocked()
	l.Mu.Unlock()

	assert.Equal(t, StateInGame, l.State())
	assert.Equal(t, 1, l.RoundNumber)
	assert.False(t, p1.IsReady, "readiness clears on round start")
	assert.Equal(t, game.StatePlaying, g.State())
	require.NotNil(t, l.Recorder)
	assert.True(t, l.Recorder.HasData(), "gameStarted was recorded")

	size := l.Settings.GridSize
	for _, p := range []*models.Player{p1, p2} {
		assert.GreaterOrEqual(t, p.Position.X, grid.Margin)
		assert.Less(t, p.Position.X, size-grid.Margin)
		assert.GreaterOrEqual(t, p.Position.Y, grid.Margin)
		assert.Less(t, p.Position.Y, size-grid.Margin)
		assert.Empty(t, p.Trail)
	}
	assert.NotEqual(t, p1.Position, p2.Position)
}

func TestFinishRoundBroadcastsGameOverOnce(t *testing.T) {
	l, sink := newTestLobby(t)
	p1 := human("p1")
	p2 := human("p2")
	require.NoError(t, l.AddPlayer(p1))
	require.NoError(t, l.AddPlayer(p2))

	l.Mu.Lock()
	l.state = StateStarting
	l.CountdownStartedAt = l.Now()
	g := l.beginGameLocked()
	l.Mu.Unlock()

	res := game.TickResult{Ended: true, Winner: p2}
	l.finishRound(g, res)
	assert.Equal(t, StateFinished, l.State())
	assert.Equal(t, 1, sink.countType(protocol.TypeGameOver))
	assert.False(t, p1.IsCrashed(), "reset lifts the crashed direction")

	// A duplicate end report from the same game is ignored.
	l.finishRound(g, res)
	assert.Equal(t, 1, sink.countType(protocol.TypeGameOver))
}

func TestReturnToLobbyReadiesBotsAndDiscardsRecorder(t *testing.T) {
	l, _ := newTestLobby(t)
	p1 := human("p1")
	require.NoError(t, l.AddPlayer(p1))
	bot, err := l.AddAIBot()
	require.NoError(t, err)

	l.Mu.Lock()
	l.state = StateStarting
	l.CountdownStartedAt = l.Now()
	g := l.beginGameLocked()
	l.Mu.Unlock()
	l.finishRound(g, game.TickResult{Ended: true, Draw: true})

	l.ReturnToLobby()
	assert.Equal(t, StateWaiting, l.State())
	assert.False(t, p1.IsReady)
	assert.True(t, bot.IsReady)
	assert.Nil(t, l.Recorder)
	assert.Nil(t, l.Game)
}

func TestAddThenRemoveBotRestoresPlayerSet(t *testing.T) {
	l, _ := newTestLobby(t)
	require.NoError(t, l.AddPlayer(human("p1")))

	bot, err := l.AddAIBot()
	require.NoError(t, err)
	require.Len(t, l.Players, 2)

	require.NoError(t, l.RemoveAIBot(bot.ID))
	require.Len(t, l.Players, 1)
	assert.Equal(t, "p1", l.Players[0].ID)

	assert.ErrorIs(t, l.RemoveAIBot("p1"), ErrNotABot)
}

func TestSpectatorGuards(t *testing.T) {
	l, _ := newTestLobby(t)
	require.NoError(t, l.AddSpectator(&models.Spectator{ID: "s1", Name: "watcher"}))

	off := false
	l.UpdateSettings(models.LobbySettingsUpdate{AllowSpectators: &off})
	assert.ErrorIs(t, l.AddSpectator(&models.Spectator{ID: "s2"}), ErrSpectatorsDisabled)

	l.RemoveSpectator("s1")
	assert.Empty(t, l.Spectators)
}

func TestSettingsMergeValidatesEnums(t *testing.T) {
	l, _ := newTestLobby(t)
	badSize := 33
	goodSize := 60
	l.UpdateSettings(models.LobbySettingsUpdate{GridSize: &badSize})
	assert.Equal(t, 40, l.Settings.GridSize)
	l.UpdateSettings(models.LobbySettingsUpdate{GridSize: &goodSize})
	assert.Equal(t, 60, l.Settings.GridSize)
}

func TestManagerListOmitsPrivateLobbies(t *testing.T) {
	m := NewManager(rand.New(rand.NewSource(5)))
	pub := m.CreateLobby(nil)
	priv := true
	hidden := m.CreateLobby(&models.LobbySettingsUpdate{IsPrivate: &priv})

	items := m.List()
	require.Len(t, items, 1)
	assert.Equal(t, pub.ID, items[0].LobbyID)

	// Private lobbies stay joinable by id.
	got, err := m.Get(hidden.ID)
	require.NoError(t, err)
	assert.Same(t, hidden, got)

	m.Remove(pub.ID)
	_, err = m.Get(pub.ID)
	assert.ErrorIs(t, err, ErrLobbyNotFound)
}

func TestMidGameLeaveCrashesLeaverWithoutCorruptingRoster(t *testing.T) {
	l, sink := newTestLobby(t)
	p1 := human("p1")
	p2 := human("p2")
	p3 := human("p3")
	require.NoError(t, l.AddPlayer(p1))
	require.NoError(t, l.AddPlayer(p2))
	require.NoError(t, l.AddPlayer(p3))
	for _, p := range []*models.Player{p1, p2, p3} {
		p.IsReady = true
	}

	l.Mu.Lock()
	l.state = StateStarting
	l.CountdownStartedAt = l.Now()
	g := l.beginGameLocked()
	l.Mu.Unlock()

	l.RemovePlayer("p1")

	assert.Len(t, l.Players, 2)
	assert.Nil(t, l.Player("p1"))
	assert.Equal(t, StateInGame, l.State(), "a mid-game leave does not end the round")

	// The round keeps its own roster: the leaver stays, crashed, and the
	// remaining players appear exactly once.
	g.Mu.Lock()
	seen := make(map[string]int)
	for _, p := range g.Players {
		seen[p.ID]++
	}
	g.Mu.Unlock()
	assert.Equal(t, map[string]int{"p1": 1, "p2": 1, "p3": 1}, seen)
	assert.True(t, p1.IsCrashed())
	assert.Equal(t, 1, sink.countType(protocol.TypePlayerCrashed))
}

func TestRenameRejectedOnceRoundStarts(t *testing.T) {
	l, _ := newTestLobby(t)
	p1 := human("p1")
	require.NoError(t, l.AddPlayer(p1))
	require.NoError(t, l.SetReady("p1", true))
	require.Equal(t, StateStarting, l.State())

	assert.ErrorIs(t, l.SetName("p1", "late"), ErrRoundInProgress)

	l.Mu.Lock()
	l.beginGameLocked()
	l.Mu.Unlock()
	assert.ErrorIs(t, l.SetName("p1", "later"), ErrRoundInProgress)
	assert.Equal(t, "p1", p1.Name)
}

func TestCloseDuringCountdownClearsTimer(t *testing.T) {
	l, _ := newTestLobby(t)
	require.NoError(t, l.AddPlayer(human("p1")))
	require.NoError(t, l.SetReady("p1", true))
	require.Equal(t, StateStarting, l.State())

	l.Close()
	assert.Equal(t, StateClosed, l.State())
	l.Mu.Lock()
	assert.True(t, l.CountdownStartedAt.IsZero())
	l.Mu.Unlock()
}

func TestCloseIsTerminal(t *testing.T) {
	l, _ := newTestLobby(t)
	closed := 0
	l.OnClosed = func() { closed++ }

	l.Close()
	l.Close()
	assert.Equal(t, StateClosed, l.State())
	assert.Equal(t, 1, closed)
	assert.ErrorIs(t, l.AddPlayer(human("p1")), ErrClosed)
}
