package chat

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"chatapp/internal/model"
)

const writeWait = 10 * time.Second

// Conn is a client WebSocket connection speaking the envelope protocol.
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// Dial connects to the relay at url, sending origin as the Origin header.
func Dial(ctx context.Context, url, origin string) (*Conn, error) {
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	return &Conn{ws: ws}, nil
}

func (c *Conn) Emit(event string, payload any) error {
	env, err := model.NewEnvelope(event, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(env)
}

// Listen feeds inbound envelopes into s until the connection fails.
func (c *Conn) Listen(s *Session) error {
	for {
		var env model.Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			return err
		}
		if err := s.Dispatch(env); err != nil {
			log.Debug().Err(err).Msg("[WebSocket] Dropping inbound event")
		}
	}
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.ws.Close()
}

// WebSocketDialer returns a Dialer that connects to url and starts a Listen
// loop for the session. onClose, if set, receives the error that ended the
// loop. There is no reconnection.
func WebSocketDialer(ctx context.Context, url, origin string, onClose func(*Conn, error)) Dialer {
	return func(s *Session) (Emitter, error) {
		conn, err := Dial(ctx, url, origin)
		if err != nil {
			return nil, err
		}
		go func() {
			err := conn.Listen(s)
			if onClose != nil {
				onClose(conn, err)
			}
		}()
		return conn, nil
	}
}
