// internal/lobby/manager.go
package lobby

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/luxgrid/luxgrid/internal/models"
)

// ErrLobbyNotFound is returned when a lobby id resolves to nothing.
var ErrLobbyNotFound = errors.New("lobby: lobby not found")

// Manager is the process-wide lobby registry.
type Manager struct {
	mu      sync.Mutex
	lobbies map[string]*Lobby
	rng     *rand.Rand
	rngMu   sync.Mutex
}

func NewManager(rng *rand.Rand) *Manager {
	return &Manager{
		lobbies: make(map[string]*Lobby),
		rng:     rng,
	}
}

// newRand derives an independent rand source for a new lobby so lobby
// workers never contend on a shared generator.
func (m *Manager) newRand() *rand.Rand {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return rand.New(rand.NewSource(m.rng.Int63()))
}

// CreateLobby registers a fresh lobby with the given settings.
func (m *Manager) CreateLobby(settings *models.LobbySettingsUpdate) *Lobby {
	l := NewLobby(settings, m.newRand())
	m.mu.Lock()
	m.lobbies[l.ID] = l
	m.mu.Unlock()
	return l
}

// Get resolves a lobby by id.
func (m *Manager) Get(lobbyID string) (*Lobby, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lobbies[lobbyID]
	if !ok {
		return nil, ErrLobbyNotFound
	}
	return l, nil
}

// Remove unregisters a lobby.
func (m *Manager) Remove(lobbyID string) {
	m.mu.Lock()
	delete(m.lobbies, lobbyID)
	m.mu.Unlock()
}

// List builds the public lobby list. Private lobbies are omitted but remain
// joinable by id.
func (m *Manager) List() []models.LobbyListItem {
	m.mu.Lock()
	lobbies := make([]*Lobby, 0, len(m.lobbies))
	for _, l := range m.lobbies {
		lobbies = append(lobbies, l)
	}
	m.mu.Unlock()

	items := make([]models.LobbyListItem, 0, len(lobbies))
	for _, l := range lobbies {
		item := l.ListItem()
		if item.IsPrivate {
			continue
		}
		items = append(items, item)
	}
	return items
}
