package model

import (
	"encoding/json"
	"time"
)

// Event names exchanged over the WebSocket.
const (
	// client → server
	EventNewUser         = "new-user"
	EventSendChatMessage = "send-chat-message"
	EventTyping          = "typing"

	// server → client
	EventChatMessage      = "chat-message"
	EventUserConnected    = "user-connected"
	EventUserDisconnected = "user-disconnected"
	EventUserTyping       = "user-typing"
)

// Envelope is the JSON frame carried by every WebSocket text message
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewEnvelope encodes payload into an envelope for the given event
func NewEnvelope(event string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: data}, nil
}

// ChatMessage is the payload of a chat-message broadcast.
// Name is nil when the sender never registered a display name.
type ChatMessage struct {
	Message string  `json:"message"`
	Name    *string `json:"name,omitempty"`
}

// PresenceKind classifies a presence audit record
type PresenceKind string

const (
	PresenceJoined PresenceKind = "joined"
	PresenceLeft   PresenceKind = "left"
)

// PresenceEvent is one row of the presence audit log
type PresenceEvent struct {
	ID           string       `json:"id"`
	ConnectionID string       `json:"connection_id"`
	Name         string       `json:"name"`
	Kind         PresenceKind `json:"kind"`
	CreatedAt    time.Time    `json:"created_at"`
}
