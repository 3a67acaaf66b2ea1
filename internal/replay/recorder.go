// internal/replay/recorder.go

// Package replay captures a tick-indexed log of a match and persists it to
// the key-value store as an immutable blob.
package replay

import (
	"errors"
	"time"

	"github.com/luxgrid/luxgrid/internal/models"
)

// Recorded action kinds.
const (
	ActionMove           = "move"
	ActionBrake          = "brake"
	ActionUseTrailEraser = "useTrailEraser"
)

// Recorded event kinds.
const (
	EventGameStarted      = "gameStarted"
	EventPowerUpSpawned   = "powerUpSpawned"
	EventPowerUpCollected = "powerUpCollected"
	EventPlayerCrashed    = "playerCrashed"
	EventPositionSnapshot = "positionSnapshot"
	EventGameOver         = "gameOver"
)

// ErrNothingRecorded is returned when a save is requested before the
// recorder has an initial state and at least one event.
var ErrNothingRecorded = errors.New("replay: nothing recorded")

// Recorder accumulates one match. It is owned by a single lobby worker and
// must never be written from elsewhere.
type Recorder struct {
	lobbyName string
	startTime time.Time
	tick      int

	initial *models.ReplayInitialState
	actions []models.ReplayAction
	events  []models.ReplayEvent
}

// NewRecorder starts a recording at the given game start time.
func NewRecorder(lobbyName string, startTime time.Time) *Recorder {
	return &Recorder{lobbyName: lobbyName, startTime: startTime}
}

// SetInitialState captures tick zero. Must be called once at game start.
func (r *Recorder) SetInitialState(s models.ReplayInitialState) {
	r.initial = &s
}

// AdvanceTick bumps the tick counter; called once per simulation tick.
func (r *Recorder) AdvanceTick() {
	r.tick++
}

// Tick returns the current tick index.
func (r *Recorder) Tick() int {
	return r.tick
}

// RecordAction appends a player input at the current tick.
func (r *Recorder) RecordAction(playerID, kind string, payload map[string]any, now time.Time) {
	r.actions = append(r.actions, models.ReplayAction{
		Tick:      r.tick,
		PlayerID:  playerID,
		Kind:      kind,
		Payload:   payload,
		Timestamp: now.Sub(r.startTime).Milliseconds(),
	})
}

// RecordEvent appends a simulation event at the current tick.
func (r *Recorder) RecordEvent(kind string, payload map[string]any, now time.Time) {
	r.events = append(r.events, models.ReplayEvent{
		Tick:      r.tick,
		Kind:      kind,
		Payload:   payload,
		Timestamp: now.Sub(r.startTime).Milliseconds(),
	})
}

// HasData reports whether a save would succeed.
func (r *Recorder) HasData() bool {
	return r.initial != nil && len(r.events) > 0
}

// Build assembles the persistable replay for the given owner. The winner is
// taken from the recorded gameOver event rather than re-derived. Fails with
// ErrNothingRecorded when the recording is empty.
func (r *Recorder) Build(replayID, userID string, now time.Time) (*models.ReplayData, error) {
	if !r.HasData() {
		return nil, ErrNothingRecorded
	}

	var winner *string
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == EventGameOver {
			if w, ok := r.events[i].Payload["winner"].(string); ok && w != "" {
				winner = &w
			}
			break
		}
	}

	return &models.ReplayData{
		Metadata: models.ReplayMetadata{
			ReplayID:    replayID,
			UserID:      userID,
			LobbyName:   r.lobbyName,
			CreatedAt:   now.UnixMilli(),
			Duration:    int(now.Sub(r.startTime).Seconds()),
			TotalTicks:  r.tick,
			Winner:      winner,
			PlayerCount: len(r.initial.Players),
			GridSize:    r.initial.GridSize,
		},
		InitialState: *r.initial,
		Actions:      append([]models.ReplayAction(nil), r.actions...),
		Events:       append([]models.ReplayEvent(nil), r.events...),
	}, nil
}
