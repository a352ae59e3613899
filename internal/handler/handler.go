package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"chatapp/internal/config"
	"chatapp/internal/relay"
)

// Handler holds application dependencies
type Handler struct {
	Config config.Config
	Relay  *relay.Relay
	page   *page
}

// New creates a new Handler with the given dependencies. In production the
// page template is parsed here, so a broken template fails at startup.
func New(cfg config.Config, r *relay.Relay) (*Handler, error) {
	p, err := newPage(!cfg.IsProduction())
	if err != nil {
		return nil, err
	}
	return &Handler{
		Config: cfg,
		Relay:  r,
		page:   p,
	}, nil
}

// SetupRouter configures and returns the HTTP router
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()

	// WebSocket
	r.HandleFunc("/ws", h.HandleWebSocket).Methods("GET")

	r.HandleFunc("/healthz", h.Health).Methods("GET")

	// everything else renders the chat page
	r.PathPrefix("/").HandlerFunc(h.ServePage)

	return r
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"env":     h.Config.Env,
		"clients": h.Relay.Connections().Len(),
	})
}
