// Package relay rebroadcasts chat and presence events from one connection to
// every other live connection and owns the display-name registry.
package relay

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"chatapp/internal/model"
	"chatapp/internal/registry"
)

// Recorder receives presence audit records. Implementations must not block.
type Recorder interface {
	Record(evt model.PresenceEvent)
}

type nopRecorder struct{}

func (nopRecorder) Record(model.PresenceEvent) {}

// Relay implements join, chat, typing and disconnect handling. None of its
// operations report errors to the originating client.
type Relay struct {
	registry *registry.Registry
	conns    *ConnectionSet
	recorder Recorder
	now      func() time.Time
}

// New wires a relay to its registry and connection set. rec may be nil.
func New(reg *registry.Registry, conns *ConnectionSet, rec Recorder) *Relay {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Relay{
		registry: reg,
		conns:    conns,
		recorder: rec,
		now:      time.Now,
	}
}

// Registry exposes the name registry, mainly for inspection in tests.
func (r *Relay) Registry() *registry.Registry { return r.registry }

// Connections exposes the live connection set.
func (r *Relay) Connections() *ConnectionSet { return r.conns }

// Connect adds p to the set of live connections. No event is broadcast until
// the peer announces its name.
func (r *Relay) Connect(p Peer) {
	total := r.conns.Add(p)
	log.Info().Str("conn", p.ID()).Int("clients", total).Msg("[WebSocket] New connection")
}

func (r *Relay) Join(connID, name string) {
	r.registry.Set(connID, name)
	r.conns.BroadcastExcept(connID, model.EventUserConnected, name)
	r.record(connID, name, model.PresenceJoined)
}

func (r *Relay) ChatMessage(connID, text string) {
	payload := model.ChatMessage{Message: text}
	if name, ok := r.registry.Get(connID); ok {
		payload.Name = &name
	}
	r.conns.BroadcastExcept(connID, model.EventChatMessage, payload)
}

// Typing relays the name supplied by the client rather than the registered one.
func (r *Relay) Typing(connID, name string) {
	r.conns.BroadcastExcept(connID, model.EventUserTyping, name)
}

// Disconnect removes connID from the live set, tells everyone else, and then
// forgets its name. A connection that never joined is announced with a null
// name.
func (r *Relay) Disconnect(connID string) {
	remaining := r.conns.Remove(connID)

	name, ok := r.registry.Get(connID)
	var payload *string
	if ok {
		payload = &name
	}
	r.conns.BroadcastExcept(connID, model.EventUserDisconnected, payload)
	r.registry.Delete(connID)

	if ok {
		r.record(connID, name, model.PresenceLeft)
	}
	log.Info().Str("conn", connID).Int("clients", remaining).Msg("[WebSocket] Client disconnected")
}

// Dispatch decodes a client frame and routes it to the matching operation.
// Malformed frames and unknown events are logged and dropped.
func (r *Relay) Dispatch(connID string, frame []byte) {
	var env model.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		log.Debug().Err(err).Str("conn", connID).Msg("[WebSocket] Dropping malformed frame")
		return
	}

	var text string
	if err := json.Unmarshal(env.Data, &text); err != nil {
		log.Debug().Err(err).Str("conn", connID).Str("event", env.Event).Msg("[WebSocket] Dropping frame with non-string payload")
		return
	}

	switch env.Event {
	case model.EventNewUser:
		r.Join(connID, text)
	case model.EventSendChatMessage:
		r.ChatMessage(connID, text)
	case model.EventTyping:
		r.Typing(connID, text)
	default:
		log.Debug().Str("conn", connID).Str("event", env.Event).Msg("[WebSocket] Ignoring unknown event")
	}
}

func (r *Relay) record(connID, name string, kind model.PresenceKind) {
	r.recorder.Record(model.PresenceEvent{
		ConnectionID: connID,
		Name:         name,
		Kind:         kind,
		CreatedAt:    r.now(),
	})
}
