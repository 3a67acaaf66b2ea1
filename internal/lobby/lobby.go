// internal/lobby/lobby.go

// Package lobby implements the match room: membership, readiness, host
// authority, bans, AI slots, and the round lifecycle that drives the game
// simulation.
package lobby

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/luxgrid/luxgrid/internal/game"
	"github.com/luxgrid/luxgrid/internal/grid"
	"github.com/luxgrid/luxgrid/internal/models"
	"github.com/luxgrid/luxgrid/internal/protocol"
	"github.com/luxgrid/luxgrid/internal/replay"
)

// State is the lobby lifecycle state.
type State string

const (
	StateWaiting  State = "waiting"
	StateStarting State = "starting"
	StateInGame   State = "inGame"
	StateFinished State = "finished"
	StateClosed   State = "closed"
)

// countdownDuration is the starting-phase timer before a round begins.
const countdownDuration = 5000 * time.Millisecond

var (
	ErrLobbyFull          = errors.New("lobby: lobby is full")
	ErrBanned             = errors.New("lobby: banned from this lobby")
	ErrSpectatorsDisabled = errors.New("lobby: spectators are disabled")
	ErrPlayerNotFound     = errors.New("lobby: player not found")
	ErrRoundInProgress    = errors.New("lobby: round in progress")
	ErrNotABot            = errors.New("lobby: target is not a bot")
	ErrClosed             = errors.New("lobby: lobby is closed")
)

// Lobby is one match room. All mutation goes through Mu; the countdown and
// game-loop goroutines re-acquire it per step so inbound handlers interleave
// cleanly between steps.
type Lobby struct {
	ID     string
	HostID string

	Players    []*models.Player
	Spectators []*models.Spectator
	Banned     map[string]bool
	Settings   models.LobbySettings

	CreatedAt time.Time
	// CountdownStartedAt is non-zero iff the lobby is in starting.
	CountdownStartedAt time.Time
	RoundNumber        int

	Game     *game.Game
	Recorder *replay.Recorder

	state State
	rng   *rand.Rand

	// Now is the clock; tests substitute a fake.
	Now func() time.Time

	// Broadcast fans a message out to every peer bound to this lobby.
	Broadcast func(msg protocol.Outbound)

	// OnClosed fires once after the lobby reaches closed, outside Mu.
	OnClosed func()

	// OnGameEnd fires after a round ends and the gameOver broadcast went
	// out, outside Mu.
	OnGameEnd func(res game.TickResult)

	Mu sync.Mutex
}

// NewLobby builds a waiting lobby with the given settings applied over the
// defaults.
func NewLobby(settings *models.LobbySettingsUpdate, rng *rand.Rand) *Lobby {
	s := models.DefaultLobbySettings()
	if settings != nil {
		s.Merge(*settings)
	}
	return &Lobby{
		ID:        uuid.NewString()[:8],
		Banned:    make(map[string]bool),
		Settings:  s,
		CreatedAt: time.Now(),
		state:     StateWaiting,
		rng:       rng,
		Now:       time.Now,
	}
}

// State returns the current lifecycle state.
func (l *Lobby) State() State {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	return l.state
}

// AddPlayer seats a player. The first human to join becomes host. Names are
// truncated and colliding colors are replaced with a distinct hue.
func (l *Lobby) AddPlayer(p *models.Player) error {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	if l.state == StateClosed {
		return ErrClosed
	}
	if l.Banned[p.ID] {
		return ErrBanned
	}
	if len(l.Players) >= l.Settings.MaxPlayers {
		return ErrLobbyFull
	}

	p.Name = models.TruncateName(p.Name)
	p.Color = l.distinctColorLocked(p.Color)
	if p.Speed == 0 {
		p.Speed = 1
	}
	l.Players = append(l.Players, p)
	if l.HostID == "" && !p.IsBot() {
		l.HostID = p.ID
	}
	return nil
}

// AddSpectator seats a watcher, if the host allows them.
func (l *Lobby) AddSpectator(s *models.Spectator) error {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	if l.state == StateClosed {
		return ErrClosed
	}
	if !l.Settings.AllowSpectators {
		return ErrSpectatorsDisabled
	}
	if l.Banned[s.ID] {
		return ErrBanned
	}
	l.Spectators = append(l.Spectators, s)
	return nil
}

// RemovePlayer takes a player out of the lobby. A leave during the countdown
// cancels it; a leave mid-game crashes the leaver's cycle. Host departure
// promotes the first remaining human.
func (l *Lobby) RemovePlayer(playerID string) {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	l.removePlayerLocked(playerID)
}

func (l *Lobby) removePlayerLocked(playerID string) {
	idx := -1
	for i, p := range l.Players {
		if p.ID == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	l.Players = append(l.Players[:idx], l.Players[idx+1:]...)

	if l.state == StateStarting {
		l.state = StateWaiting
		l.CountdownStartedAt = time.Time{}
	}
	if l.state == StateInGame && l.Game != nil {
		l.Game.MarkCrashed(playerID)
	}

	if l.HostID == playerID {
		l.HostID = ""
		for _, p := range l.Players {
			if !p.IsBot() {
				l.HostID = p.ID
				break
			}
		}
	}
}

// RemoveSpectator takes a watcher out of the lobby.
func (l *Lobby) RemoveSpectator(spectatorID string) {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	for i, s := range l.Spectators {
		if s.ID == spectatorID {
			l.Spectators = append(l.Spectators[:i], l.Spectators[i+1:]...)
			return
		}
	}
}

// HumanCount reports how many non-bot players are seated.
func (l *Lobby) HumanCount() int {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	return l.humanCountLocked()
}

func (l *Lobby) humanCountLocked() int {
	n := 0
	for _, p := range l.Players {
		if !p.IsBot() {
			n++
		}
	}
	return n
}

// Player returns the seated player with the given id, or nil.
func (l *Lobby) Player(playerID string) *models.Player {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	return l.playerLocked(playerID)
}

func (l *Lobby) playerLocked(playerID string) *models.Player {
	for _, p := range l.Players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

// SetName renames a player, applying the length cap. Renames are rejected
// once the countdown starts; the tick loop reads names outside l.Mu.
func (l *Lobby) SetName(playerID, name string) error {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	if l.state == StateStarting || l.state == StateInGame {
		return ErrRoundInProgress
	}
	p := l.playerLocked(playerID)
	if p == nil {
		return ErrPlayerNotFound
	}
	p.Name = models.TruncateName(name)
	return nil
}

// SetReady flips a player's readiness. When every seated player is ready and
// at least one human is present, the countdown begins.
func (l *Lobby) SetReady(playerID string, ready bool) error {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	p := l.playerLocked(playerID)
	if p == nil {
		return ErrPlayerNotFound
	}
	p.IsReady = ready
	l.maybeStartCountdownLocked()
	return nil
}

func (l *Lobby) maybeStartCountdownLocked() {
	if l.state != StateWaiting || l.humanCountLocked() == 0 {
		return
	}
	for _, p := range l.Players {
		if !p.IsReady {
			return
		}
	}
	l.state = StateStarting
	l.CountdownStartedAt = l.Now()
	log.Infof("lobby %s countdown started: %d players", l.ID, len(l.Players))
	go l.runCountdown()
}

// AddAIBot seats a new bot. Bots join ready, so this can complete the
// readiness set and begin the countdown.
func (l *Lobby) AddAIBot() (*models.Player, error) {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	if l.state == StateClosed {
		return nil, ErrClosed
	}
	if len(l.Players) >= l.Settings.MaxPlayers {
		return nil, ErrLobbyFull
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	bot := &models.Player{
		ID:      models.BotIDPrefix + suffix,
		Name:    "Bot " + suffix,
		Color:   l.distinctColorLocked(""),
		IsReady: true,
		Speed:   1,
	}
	l.Players = append(l.Players, bot)
	l.maybeStartCountdownLocked()
	return bot, nil
}

// RemoveAIBot unseats a bot.
func (l *Lobby) RemoveAIBot(botID string) error {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	p := l.playerLocked(botID)
	if p == nil {
		return ErrPlayerNotFound
	}
	if !p.IsBot() {
		return ErrNotABot
	}
	l.removePlayerLocked(botID)
	return nil
}

// Kick removes the target from the lobby.
func (l *Lobby) Kick(playerID string) error {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	if l.playerLocked(playerID) == nil {
		return ErrPlayerNotFound
	}
	l.removePlayerLocked(playerID)
	return nil
}

// Ban removes the target and bars the id until the lobby closes.
func (l *Lobby) Ban(playerID string) error {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	if l.playerLocked(playerID) == nil {
		return ErrPlayerNotFound
	}
	l.Banned[playerID] = true
	l.removePlayerLocked(playerID)
	return nil
}

// UpdateSettings merges a partial settings change.
func (l *Lobby) UpdateSettings(u models.LobbySettingsUpdate) {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	l.Settings.Merge(u)
}

// ReturnToLobby takes a finished lobby back to waiting. Humans must re-ready;
// bots re-ready automatically. Any unsaved recorder is discarded.
func (l *Lobby) ReturnToLobby() {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	if l.state != StateFinished {
		return
	}
	l.state = StateWaiting
	l.Game = nil
	l.Recorder = nil
	for _, p := range l.Players {
		p.IsReady = p.IsBot()
	}
	l.maybeStartCountdownLocked()
}

// Close terminates the lobby. Terminal; all loops self-stop.
func (l *Lobby) Close() {
	l.Mu.Lock()
	if l.state == StateClosed {
		l.Mu.Unlock()
		return
	}
	l.state = StateClosed
	l.CountdownStartedAt = time.Time{}
	g := l.Game
	l.Game = nil
	l.Recorder = nil
	onClosed := l.OnClosed
	l.Mu.Unlock()

	if g != nil {
		g.Stop()
	}
	if onClosed != nil {
		onClosed()
	}
}

// distinctColorLocked keeps the requested color unless it is missing,
// unparseable, or too close in hue to a seated player's color.
func (l *Lobby) distinctColorLocked(requested string) string {
	taken := make([]string, 0, len(l.Players))
	for _, p := range l.Players {
		taken = append(taken, p.Color)
	}
	if _, ok := grid.ParseHue(requested); ok {
		collides := false
		for _, c := range taken {
			if grid.ColorsSimilar(requested, c) {
				collides = true
				break
			}
		}
		if !collides {
			return requested
		}
	}
	return grid.RandomDistinctColor(taken, l.rng)
}

// StateView builds the lobbyState broadcast payload.
func (l *Lobby) StateView() models.LobbyStateView {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	return l.stateViewLocked()
}

func (l *Lobby) stateViewLocked() models.LobbyStateView {
	players := make([]models.LobbyPlayerView, 0, len(l.Players))
	for _, p := range l.Players {
		players = append(players, models.LobbyPlayerView{
			ID:      p.ID,
			Name:    p.Name,
			Color:   p.Color,
			IsReady: p.IsReady,
		})
	}
	spectators := make([]models.SpectatorView, 0, len(l.Spectators))
	for _, s := range l.Spectators {
		spectators = append(spectators, models.SpectatorView{ID: s.ID, Name: s.Name, Color: s.Color})
	}
	view := models.LobbyStateView{
		LobbyID:     l.ID,
		State:       string(l.state),
		Players:     players,
		Spectators:  spectators,
		Settings:    l.Settings,
		HostID:      l.HostID,
		RoundNumber: l.RoundNumber,
	}
	if l.state == StateStarting {
		view.CountdownRemaining = l.countdownRemainingLocked()
	}
	return view
}

// countdownRemainingLocked derives the wall-clock seconds left before the
// round begins.
func (l *Lobby) countdownRemainingLocked() int {
	elapsed := l.Now().Sub(l.CountdownStartedAt)
	remaining := int(math.Ceil((countdownDuration - elapsed).Seconds()))
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// ListItem builds this lobby's entry for a lobbyList broadcast.
func (l *Lobby) ListItem() models.LobbyListItem {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	hostName := ""
	if host := l.playerLocked(l.HostID); host != nil {
		hostName = host.Name
	}
	return models.LobbyListItem{
		LobbyID:     l.ID,
		PlayerCount: len(l.Players),
		MaxPlayers:  l.Settings.MaxPlayers,
		GridSize:    l.Settings.GridSize,
		IsPrivate:   l.Settings.IsPrivate,
		HostName:    hostName,
		State:       string(l.state),
	}
}

func (l *Lobby) send(msg protocol.Outbound) {
	if l.Broadcast != nil {
		l.Broadcast(msg)
	}
}

// BroadcastState sends the current lobbyState to the room.
func (l *Lobby) BroadcastState() {
	l.send(protocol.New(protocol.TypeLobbyState, l.StateView()))
}
