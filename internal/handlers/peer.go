// internal/handlers/peer.go
package handlers

import (
	"context"
	"sync"

	"github.com/luxgrid/luxgrid/internal/protocol"
)

// outChanSize bounds a peer's outgoing queue. A slow consumer drops frames
// rather than stalling a lobby worker.
const outChanSize = 64

// Peer is one connected websocket client.
type Peer struct {
	mu       sync.Mutex
	playerID string

	OutChan chan protocol.Outbound
	Cancel  context.CancelFunc
}

func newPeer(playerID string, cancel context.CancelFunc) *Peer {
	return &Peer{
		playerID: playerID,
		OutChan:  make(chan protocol.Outbound, outChanSize),
		Cancel:   cancel,
	}
}

// PlayerID returns the identity the peer currently holds; a reconnect can
// rebind it.
func (p *Peer) PlayerID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playerID
}

func (p *Peer) setPlayerID(id string) {
	p.mu.Lock()
	p.playerID = id
	p.mu.Unlock()
}

// Send queues a frame without blocking; a full queue drops the frame.
func (p *Peer) Send(msg protocol.Outbound) {
	select {
	case p.OutChan <- msg:
	default:
	}
}
