package relay

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"chatapp/internal/model"
)

// Peer is one live connection as seen by the relay.
type Peer interface {
	ID() string
	// Send enqueues a frame without blocking. It returns false when the
	// peer cannot accept more data.
	Send(frame []byte) bool
	Close() error
}

// ConnectionSet tracks live peers and fans events out to them.
type ConnectionSet struct {
	mu    sync.RWMutex
	peers map[string]Peer
}

func NewConnectionSet() *ConnectionSet {
	return &ConnectionSet{peers: make(map[string]Peer)}
}

func (s *ConnectionSet) Add(p Peer) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[p.ID()] = p
	return len(s.peers)
}

func (s *ConnectionSet) Remove(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, id)
	return len(s.peers)
}

func (s *ConnectionSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

// snapshot copies the peer list so sends happen without holding the lock.
func (s *ConnectionSet) snapshot() []Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	peers := make([]Peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	return peers
}

// BroadcastExcept encodes payload under event and queues it for every peer
// other than senderID. It returns the number of peers the frame was queued for.
// Peers whose buffers are full are closed; their read loops then run the
// normal disconnect path.
func (s *ConnectionSet) BroadcastExcept(senderID, event string, payload any) int {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("[WebSocket] ❌ Failed to encode broadcast")
		return 0
	}

	delivered := 0
	for _, p := range s.snapshot() {
		if p.ID() == senderID {
			continue
		}
		if !p.Send(frame) {
			log.Warn().Str("conn", p.ID()).Msg("[WebSocket] Send buffer full, closing connection")
			p.Close()
			continue
		}
		delivered++
	}

	log.Debug().Str("event", event).Str("sender", senderID).Int("targets", delivered).Msg("[WebSocket] 📢 Broadcast")
	return delivered
}

func encodeFrame(event string, payload any) ([]byte, error) {
	env, err := model.NewEnvelope(event, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// CloseAll closes every live peer. Their read loops perform the usual
// disconnect handling as they exit.
func (s *ConnectionSet) CloseAll() int {
	peers := s.snapshot()
	for _, p := range peers {
		if err := p.Close(); err != nil {
			log.Debug().Err(err).Str("conn", p.ID()).Msg("[WebSocket] Error closing connection")
		}
	}
	return len(peers)
}
