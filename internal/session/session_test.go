// internal/session/session_test.go
package session

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxgrid/luxgrid/internal/auth"
)

func newTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	require.NoError(t, auth.Init("session-test-secret"))
	store := NewStore(logrus.New())
	now := time.Unix(50_000, 0)
	store.Now = func() time.Time { return now }
	return store, &now
}

func TestReconnectRestoresLobbyIdentity(t *testing.T) {
	store, now := newTestStore(t)

	sess, err := store.Register("p1")
	require.NoError(t, err)
	store.SetUserID("p1", "user-9")
	store.SetLobby("p1", "lobby-1", false)
	store.Archive("p1", "Ada", "hsl(120, 70%, 50%)", "cat")

	assert.Nil(t, store.Get("p1"), "archived sessions are no longer live")

	*now = now.Add(30 * time.Second)
	arch, err := store.Reconnect(sess.ReconnectToken)
	require.NoError(t, err)
	assert.Equal(t, "lobby-1", arch.LobbyID)
	assert.Equal(t, "Ada", arch.Name)
	assert.Equal(t, "hsl(120, 70%, 50%)", arch.Color)
	assert.Equal(t, "cat", arch.Avatar)
	assert.Equal(t, "user-9", arch.UserID)

	restored := store.Get("p1")
	require.NotNil(t, restored)
	assert.Equal(t, "lobby-1", restored.LobbyID)
	assert.Equal(t, "user-9", restored.UserID)
}

func TestReconnectWindowExpires(t *testing.T) {
	store, now := newTestStore(t)

	sess, err := store.Register("p1")
	require.NoError(t, err)
	store.Archive("p1", "Ada", "", "")

	*now = now.Add(ReconnectWindow + time.Second)
	_, err = store.Reconnect(sess.ReconnectToken)
	assert.ErrorIs(t, err, ErrWindowExpired)

	// The expired archive is gone; a retry reports unknown.
	_, err = store.Reconnect(sess.ReconnectToken)
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestReconnectRejectsUnknownToken(t *testing.T) {
	store, _ := newTestStore(t)

	token, err := auth.CreateReconnectToken("never-connected")
	require.NoError(t, err)
	_, err = store.Reconnect(token)
	assert.ErrorIs(t, err, ErrUnknownToken)

	_, err = store.Reconnect("garbage")
	assert.Error(t, err)
}

func TestDropSkipsArchive(t *testing.T) {
	store, _ := newTestStore(t)

	sess, err := store.Register("p1")
	require.NoError(t, err)
	store.Drop("p1")

	_, err = store.Reconnect(sess.ReconnectToken)
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestSweepEvictsStaleArchives(t *testing.T) {
	store, now := newTestStore(t)

	_, err := store.Register("p1")
	require.NoError(t, err)
	store.Archive("p1", "Ada", "", "")

	_, err = store.Register("p2")
	require.NoError(t, err)
	*now = now.Add(90 * time.Second)
	store.Archive("p2", "Bob", "", "")

	*now = now.Add(60 * time.Second) // p1 is 150s stale, p2 only 60s
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 0, store.Sweep())
}
