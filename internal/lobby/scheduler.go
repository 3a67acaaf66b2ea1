// internal/lobby/scheduler.go
package lobby

import (
	"runtime/debug"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/luxgrid/luxgrid/internal/game"
	"github.com/luxgrid/luxgrid/internal/grid"
	"github.com/luxgrid/luxgrid/internal/protocol"
	"github.com/luxgrid/luxgrid/internal/replay"
)

// runCountdown drives the starting phase: an immediate lobbyState broadcast,
// then one per second until the countdown elapses or the lobby leaves
// starting (a leave during the countdown flips it back to waiting).
func (l *Lobby) runCountdown() {
	defer l.recoverWorker("countdown")

	l.BroadcastState()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		l.Mu.Lock()
		if l.state != StateStarting {
			l.Mu.Unlock()
			return
		}
		if l.Now().Sub(l.CountdownStartedAt) >= countdownDuration {
			g := l.beginGameLocked()
			view := l.stateViewLocked()
			l.Mu.Unlock()
			l.send(protocol.New(protocol.TypeLobbyState, view))
			go l.runGameLoop(g)
			return
		}
		view := l.stateViewLocked()
		l.Mu.Unlock()
		l.send(protocol.New(protocol.TypeLobbyState, view))
	}
}

// beginGameLocked transitions starting -> inGame: fresh obstacles, safe
// spawns, a new game machine and replay recorder.
func (l *Lobby) beginGameLocked() *game.Game {
	l.state = StateInGame
	l.CountdownStartedAt = time.Time{}
	l.RoundNumber++
	for _, p := range l.Players {
		p.IsReady = false
	}

	gridSize := l.Settings.GridSize
	obstacles := grid.GenerateObstacles(gridSize, l.rng)
	occupied := make(map[string]bool, len(obstacles))
	for _, o := range obstacles {
		occupied[o.Key()] = true
	}
	for _, p := range l.Players {
		pos, dir := grid.SafeSpawn(gridSize, occupied, l.rng)
		occupied[pos.Key()] = true
		p.ResetForRound(pos, dir)
	}

	g := game.NewGame(l.ID, gridSize, l.Players, obstacles, l.rng)
	g.Now = l.Now
	g.Broadcast = l.Broadcast

	lobbyName := l.Settings.LobbyName
	if lobbyName == "" {
		lobbyName = l.ID
	}
	rec := replay.NewRecorder(lobbyName, l.Now())
	g.Recorder = rec
	rec.SetInitialState(g.InitialState())
	g.Start()

	l.Game = g
	l.Recorder = rec
	return g
}

// runGameLoop ticks the simulation at the fixed cadence until the round ends
// or the lobby vacates inGame.
func (l *Lobby) runGameLoop(g *game.Game) {
	defer l.recoverWorker("game loop")

	ticker := time.NewTicker(time.Duration(g.Settings.TickRateMs) * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		if l.State() != StateInGame || g.State() != game.StatePlaying {
			return
		}
		res := g.Tick()
		if res.Ended {
			l.finishRound(g, res)
			return
		}
	}
}

// finishRound drives inGame -> finished: the authoritative gameOver
// broadcast, then respawned players awaiting the next round.
func (l *Lobby) finishRound(g *game.Game, res game.TickResult) {
	l.Mu.Lock()
	if l.state != StateInGame || l.Game != g {
		l.Mu.Unlock()
		return
	}
	l.state = StateFinished

	payload := protocol.GameOverPayload{
		Draw:            res.Draw,
		ReplayAvailable: l.Recorder != nil && l.Recorder.HasData(),
	}
	if res.Winner != nil {
		id := res.Winner.ID
		payload.Winner = &id
		payload.WinnerColor = res.Winner.Color
	}

	// Respawn everyone for the next round; the crashed direction is lifted.
	occupied := make(map[string]bool)
	for _, p := range l.Players {
		pos, dir := grid.SafeSpawn(l.Settings.GridSize, occupied, l.rng)
		occupied[pos.Key()] = true
		p.ResetForRound(pos, dir)
	}

	view := l.stateViewLocked()
	l.Mu.Unlock()

	winnerID := ""
	if res.Winner != nil {
		winnerID = res.Winner.ID
	}
	log.Infof("lobby %s round over: draw=%v winner=%q", l.ID, res.Draw, winnerID)
	l.send(protocol.New(protocol.TypeGameOver, payload))
	l.send(protocol.New(protocol.TypeLobbyState, view))

	if l.OnGameEnd != nil {
		l.OnGameEnd(res)
	}
}

// recoverWorker isolates a panicking lobby worker: the lobby closes and its
// members are told, but the process survives.
func (l *Lobby) recoverWorker(name string) {
	if r := recover(); r != nil {
		log.Errorf("lobby %s %s panic: %v\n%s", l.ID, name, r, debug.Stack())
		l.send(protocol.Error("lobby closed due to an internal error"))
		l.Close()
	}
}
