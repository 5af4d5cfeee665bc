package realtime

import (
	"sync"

	"github.com/park285/cheese-chess-server/internal/obslog"
	"github.com/park285/cheese-chess-server/pkg/chessdto"
	"go.uber.org/zap"
)

// Peer is one live connection bound to an identity.
type Peer interface {
	Identity() string
	// Send queues env without blocking and reports whether it was accepted.
	Send(env chessdto.Envelope) bool
}

// Hub maps identities to their live connections. Sends are best effort:
// an identity without connections, or a connection with a full queue,
// silently misses the message.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[Peer]struct{}
}

func NewHub() *Hub {
	return &Hub{active: make(map[string]map[Peer]struct{})}
}

func (h *Hub) Register(p Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := p.Identity()
	if _, ok := h.active[id]; !ok {
		h.active[id] = make(map[Peer]struct{})
	}
	h.active[id][p] = struct{}{}
	obslog.L().Debug("hub_register", zap.String("identity", id), zap.Int("connections", len(h.active[id])))
}

func (h *Hub) Unregister(p Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := p.Identity()
	conns, ok := h.active[id]
	if !ok {
		return
	}
	delete(conns, p)
	if len(conns) == 0 {
		delete(h.active, id)
	}
	obslog.L().Debug("hub_unregister", zap.String("identity", id))
}

// Connections returns how many live connections identity holds.
func (h *Hub) Connections(identity string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active[identity])
}

// SendTo fans env out to every connection of identity and returns how many
// queues accepted it.
func (h *Hub) SendTo(identity string, env chessdto.Envelope) int {
	h.mu.RLock()
	peers := make([]Peer, 0, len(h.active[identity]))
	for p := range h.active[identity] {
		peers = append(peers, p)
	}
	h.mu.RUnlock()
	return deliver(peers, env)
}

// Broadcast sends env to every connection.
func (h *Hub) Broadcast(env chessdto.Envelope) int {
	h.mu.RLock()
	var peers []Peer
	for _, conns := range h.active {
		for p := range conns {
			peers = append(peers, p)
		}
	}
	h.mu.RUnlock()
	return deliver(peers, env)
}

func deliver(peers []Peer, env chessdto.Envelope) int {
	n := 0
	for _, p := range peers {
		if p.Send(env) {
			n++
			continue
		}
		obslog.L().Debug("hub_send_dropped", zap.String("identity", p.Identity()), zap.String("type", env.Type))
	}
	return n
}
