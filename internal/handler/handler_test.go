package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"chatapp/internal/chat"
	"chatapp/internal/config"
	"chatapp/internal/model"
	"chatapp/internal/registry"
	"chatapp/internal/relay"
)

const testOrigin = "http://localhost:3000"

// newTestHandler テスト用のHandlerを生成
func newTestHandler(t *testing.T, env string) *Handler {
	t.Helper()

	cfg := config.Config{
		Env:            env,
		MaxMessageSize: 4096,
		AllowedOrigins: []string{testOrigin, "http://127.0.0.1:3000"},
	}
	r := relay.New(registry.New(), relay.NewConnectionSet(), nil)
	h, err := New(cfg, r)
	if err != nil {
		t.Fatalf("Failed to create handler: %v", err)
	}
	return h
}

func newTestServer(t *testing.T) (*Handler, string) {
	t.Helper()
	h := newTestHandler(t, config.EnvDevelopment)
	server := httptest.NewServer(h.SetupRouter())
	t.Cleanup(server.Close)
	return h, strings.Replace(server.URL, "http://", "ws://", 1) + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("Origin", testOrigin)

	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func emit(t *testing.T, ws *websocket.Conn, event string, payload any) {
	t.Helper()
	env, err := model.NewEnvelope(event, payload)
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.WriteJSON(env); err != nil {
		t.Fatalf("Failed to write %s: %v", event, err)
	}
}

func readEnvelope(t *testing.T, ws *websocket.Conn) model.Envelope {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env model.Envelope
	if err := ws.ReadJSON(&env); err != nil {
		t.Fatalf("Failed to read envelope: %v", err)
	}
	return env
}

// expectSilence 一定時間何も受信しないことを確認
func expectSilence(t *testing.T, ws *websocket.Conn) {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var env model.Envelope
	if err := ws.ReadJSON(&env); err == nil {
		t.Errorf("Expected no frame, got %s %s", env.Event, env.Data)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}

func stringData(t *testing.T, env model.Envelope) string {
	t.Helper()
	var s string
	if err := json.Unmarshal(env.Data, &s); err != nil {
		t.Fatalf("Payload %s is not a string: %v", env.Data, err)
	}
	return s
}

// TestWebSocketConnection WebSocket 接続テスト
func TestWebSocketConnection(t *testing.T) {
	h, url := newTestServer(t)

	dial(t, url)

	waitFor(t, func() bool { return h.Relay.Connections().Len() == 1 })
}

// TestWebSocketOriginCheck Origin チェックテスト
func TestWebSocketOriginCheck(t *testing.T) {
	_, url := newTestServer(t)

	header := http.Header{}
	header.Set("Origin", "http://forbidden.example.com")

	_, _, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Error("WebSocket connection from forbidden origin should fail")
	}
}

func TestJoinAndChatRelay(t *testing.T) {
	h, url := newTestServer(t)
	ana := dial(t, url)
	luis := dial(t, url)
	pedro := dial(t, url)
	waitFor(t, func() bool { return h.Relay.Connections().Len() == 3 })

	emit(t, ana, model.EventNewUser, "Ana")

	for _, ws := range []*websocket.Conn{luis, pedro} {
		env := readEnvelope(t, ws)
		if env.Event != model.EventUserConnected || stringData(t, env) != "Ana" {
			t.Errorf("Expected user-connected Ana, got %s %s", env.Event, env.Data)
		}
	}

	emit(t, ana, model.EventSendChatMessage, " Hola ")

	for _, ws := range []*websocket.Conn{luis, pedro} {
		env := readEnvelope(t, ws)
		if env.Event != model.EventChatMessage {
			t.Fatalf("Expected chat-message, got %s", env.Event)
		}
		var msg model.ChatMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			t.Fatal(err)
		}
		if msg.Message != " Hola " || msg.Name == nil || *msg.Name != "Ana" {
			t.Errorf("Unexpected chat payload %s", env.Data)
		}
	}

	// the sender never hears its own events back
	expectSilence(t, ana)
}

func TestTypingRelay(t *testing.T) {
	h, url := newTestServer(t)
	ana := dial(t, url)
	luis := dial(t, url)
	waitFor(t, func() bool { return h.Relay.Connections().Len() == 2 })

	emit(t, ana, model.EventTyping, "Ana")

	env := readEnvelope(t, luis)
	if env.Event != model.EventUserTyping || stringData(t, env) != "Ana" {
		t.Errorf("Expected user-typing Ana, got %s %s", env.Event, env.Data)
	}
	expectSilence(t, ana)
}

func TestDisconnectRelay(t *testing.T) {
	h, url := newTestServer(t)
	ana := dial(t, url)
	luis := dial(t, url)
	waitFor(t, func() bool { return h.Relay.Connections().Len() == 2 })

	emit(t, ana, model.EventNewUser, "Ana")
	readEnvelope(t, luis)
	waitFor(t, func() bool { return h.Relay.Registry().Len() == 1 })

	ana.Close()

	env := readEnvelope(t, luis)
	if env.Event != model.EventUserDisconnected || stringData(t, env) != "Ana" {
		t.Errorf("Expected user-disconnected Ana, got %s %s", env.Event, env.Data)
	}
	expectSilence(t, luis)

	waitFor(t, func() bool { return h.Relay.Registry().Len() == 0 })
	if h.Relay.Connections().Len() != 1 {
		t.Errorf("Expected 1 live connection, got %d", h.Relay.Connections().Len())
	}
}

func TestMalformedFramesAreDropped(t *testing.T) {
	h, url := newTestServer(t)
	ana := dial(t, url)
	luis := dial(t, url)
	waitFor(t, func() bool { return h.Relay.Connections().Len() == 2 })

	ana.WriteMessage(websocket.TextMessage, []byte("not json"))
	emit(t, ana, "unknown-event", "x")
	emit(t, ana, model.EventNewUser, "Ana")

	env := readEnvelope(t, luis)
	if env.Event != model.EventUserConnected {
		t.Errorf("Expected the connection to survive bad frames, got %s", env.Event)
	}
}

// TestEndToEnd_AnaAndLuis chat.Session を使った2クライアントのシナリオ
func TestEndToEnd_AnaAndLuis(t *testing.T) {
	h, url := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newSession := func() *chat.Session {
		return chat.NewSession(chat.WebSocketDialer(ctx, url, testOrigin, func(c *chat.Conn, _ error) { c.Close() }))
	}
	ana := newSession()
	luis := newSession()

	if err := luis.SubmitName("Luis"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return h.Relay.Registry().Len() == 1 })

	if err := ana.SubmitName("Ana"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(luis.Messages()) == 1 })

	if sent, err := ana.Send("Hola"); err != nil || !sent {
		t.Fatalf("Send returned %v, %v", sent, err)
	}

	anaMsgs := ana.Messages()
	if len(anaMsgs) != 1 || anaMsgs[0].Text != "Tú: Hola" || anaMsgs[0].From != chat.OriginSelf {
		t.Errorf("Unexpected local echo %+v", anaMsgs)
	}

	waitFor(t, func() bool { return len(luis.Messages()) == 2 })
	luisMsgs := luis.Messages()
	if luisMsgs[0].Text != "Ana se está conectando..." || luisMsgs[0].From != chat.OriginSystem {
		t.Errorf("Unexpected join notice %+v", luisMsgs[0])
	}
	if luisMsgs[1].Text != "Ana: Hola" || luisMsgs[1].From != chat.OriginOther {
		t.Errorf("Unexpected relayed message %+v", luisMsgs[1])
	}

	// Ana got no server copy of her own message
	time.Sleep(100 * time.Millisecond)
	if n := len(ana.Messages()); n != 1 {
		t.Errorf("Ana should only have her local echo, got %d messages", n)
	}
}

func TestServePage(t *testing.T) {
	for _, env := range []string{config.EnvDevelopment, config.EnvProduction} {
		h := newTestHandler(t, env)
		router := h.SetupRouter()

		for _, path := range []string{"/", "/any/other/path"} {
			req := httptest.NewRequest("GET", path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("%s %s: expected status %d, got %d", env, path, http.StatusOK, w.Code)
			}
			if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/html") {
				t.Errorf("%s: expected text/html, got %s", env, w.Header().Get("Content-Type"))
			}
			body, _ := io.ReadAll(w.Body)
			if !strings.Contains(string(body), "Ingresa tu nombre") {
				t.Errorf("%s: page should contain the name prompt", env)
			}
			if !strings.Contains(string(body), "/ws") {
				t.Errorf("%s: page should reference the WebSocket path", env)
			}

			noStore := w.Header().Get("Cache-Control") == "no-store"
			if noStore != (env == config.EnvDevelopment) {
				t.Errorf("%s: unexpected Cache-Control %q", env, w.Header().Get("Cache-Control"))
			}
		}
	}
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, config.EnvProduction)
	router := h.SetupRouter()

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Expected Content-Type: application/json, got %s", w.Header().Get("Content-Type"))
	}

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "ok" || resp["clients"] != float64(0) {
		t.Errorf("Unexpected health response %v", resp)
	}
}
