// internal/session/session.go

// Package session tracks live peer sessions and the disconnect archive that
// backs the reconnect window.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/luxgrid/luxgrid/internal/auth"
)

const (
	// ReconnectWindow is how long a dropped player can come back and resume
	// their seat.
	ReconnectWindow = 60 * time.Second
	// sweepAfter is how long an archived session lingers before the sweeper
	// discards it.
	sweepAfter = 120 * time.Second
	// sweepInterval paces the background sweeper.
	sweepInterval = 30 * time.Second
)

var (
	ErrUnknownToken  = errors.New("session: unknown reconnect token")
	ErrWindowExpired = errors.New("session: reconnect window expired")
)

// Session is one live connection's server-side identity.
type Session struct {
	PlayerID       string
	UserID         string
	LobbyID        string
	IsSpectator    bool
	ReconnectToken string
}

// Archived preserves enough of a dropped session to restore the player's
// lobby identity on reconnect.
type Archived struct {
	PlayerID    string
	UserID      string
	LobbyID     string
	IsSpectator bool
	Name        string
	Color       string
	Avatar      string
	LastSeen    time.Time
}

// Store is the session registry plus disconnect archive.
type Store struct {
	mu       sync.Mutex
	live     map[string]*Session  // keyed by player id
	archived map[string]*Archived // keyed by player id

	logger *logrus.Logger

	// Now is the clock; tests substitute a fake.
	Now func() time.Time
}

func NewStore(logger *logrus.Logger) *Store {
	return &Store{
		live:     make(map[string]*Session),
		archived: make(map[string]*Archived),
		logger:   logger,
		Now:      time.Now,
	}
}

// Register mints a reconnect token and records a fresh live session.
func (s *Store) Register(playerID string) (*Session, error) {
	token, err := auth.CreateReconnectToken(playerID)
	if err != nil {
		return nil, err
	}
	sess := &Session{PlayerID: playerID, ReconnectToken: token}
	s.mu.Lock()
	s.live[playerID] = sess
	s.mu.Unlock()
	return sess, nil
}

// Get returns a copy of the live session for a player id, or nil. Callers
// read the copy freely; all writes go through store methods.
func (s *Store) Get(playerID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.live[playerID]
	if !ok {
		return nil
	}
	c := *sess
	return &c
}

// SetUserID binds a persistent user identity to the session.
func (s *Store) SetUserID(playerID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.live[playerID]; sess != nil {
		sess.UserID = userID
	}
}

// SetLobby records which lobby the session currently occupies.
func (s *Store) SetLobby(playerID, lobbyID string, isSpectator bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.live[playerID]; sess != nil {
		sess.LobbyID = lobbyID
		sess.IsSpectator = isSpectator
	}
}

// ClearLobby detaches the session from its lobby.
func (s *Store) ClearLobby(playerID string) {
	s.SetLobby(playerID, "", false)
}

// Archive moves a live session into the reconnect archive, capturing the
// lobby identity so a reconnect can restore it.
func (s *Store) Archive(playerID, name, color, avatar string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.live[playerID]
	if sess == nil {
		return
	}
	delete(s.live, playerID)
	s.archived[playerID] = &Archived{
		PlayerID:    sess.PlayerID,
		UserID:      sess.UserID,
		LobbyID:     sess.LobbyID,
		IsSpectator: sess.IsSpectator,
		Name:        name,
		Color:       color,
		Avatar:      avatar,
		LastSeen:    s.Now(),
	}
}

// Drop removes a live session without archiving it, e.g. when the peer left
// its lobby cleanly before disconnecting.
func (s *Store) Drop(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.live, playerID)
}

// Reconnect validates the token, checks the window, and moves the archived
// session back to live. The returned Archived carries the identity to restore.
func (s *Store) Reconnect(token string) (*Archived, error) {
	playerID, err := auth.VerifyReconnectToken(token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	arch := s.archived[playerID]
	if arch == nil {
		return nil, ErrUnknownToken
	}
	if s.Now().Sub(arch.LastSeen) > ReconnectWindow {
		delete(s.archived, playerID)
		return nil, ErrWindowExpired
	}
	delete(s.archived, playerID)
	s.live[playerID] = &Session{
		PlayerID:       playerID,
		UserID:         arch.UserID,
		LobbyID:        arch.LobbyID,
		IsSpectator:    arch.IsSpectator,
		ReconnectToken: token,
	}
	return arch, nil
}

// Sweep discards archived sessions older than the retention threshold and
// returns how many were evicted.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.Now()
	evicted := 0
	for id, arch := range s.archived {
		if now.Sub(arch.LastSeen) > sweepAfter {
			delete(s.archived, id)
			evicted++
		}
	}
	return evicted
}

// StartSweeper runs the periodic archive sweep until the context is done.
func (s *Store) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					s.logger.Debugf("session sweeper evicted %d stale sessions", n)
				}
			}
		}
	}()
}
