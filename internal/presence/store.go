// Package presence writes join/leave audit records to MySQL. Chat text is
// never stored.
package presence

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"chatapp/internal/model"
)

const (
	queueSize    = 100
	writeTimeout = 5 * time.Second
)

// Store queues presence events and writes them from a single goroutine so the
// relay never waits on the database.
type Store struct {
	db      *sql.DB
	queue   chan model.PresenceEvent
	dropped atomic.Int64
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:    db,
		queue: make(chan model.PresenceEvent, queueSize),
	}
}

// Record enqueues evt. When the queue is full the event is dropped.
func (s *Store) Record(evt model.PresenceEvent) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	select {
	case s.queue <- evt:
	default:
		n := s.dropped.Add(1)
		log.Warn().Int64("dropped", n).Str("conn", evt.ConnectionID).Msg("[Presence] Queue full, dropping event")
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (s *Store) Dropped() int64 {
	return s.dropped.Load()
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
// Writes use their own timeout so queued events survive cancellation.
func (s *Store) Run(ctx context.Context) {
	for {
		select {
		case evt := <-s.queue:
			s.insert(evt)
		case <-ctx.Done():
			s.flush()
			return
		}
	}
}

func (s *Store) flush() {
	for {
		select {
		case evt := <-s.queue:
			s.insert(evt)
		default:
			return
		}
	}
}

func (s *Store) insert(evt model.PresenceEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO presence_events (id, connection_id, name, kind, created_at) VALUES (?, ?, ?, ?, ?)",
		evt.ID, evt.ConnectionID, evt.Name, string(evt.Kind), evt.CreatedAt)
	if err != nil {
		log.Error().Err(err).Str("conn", evt.ConnectionID).Msg("[Presence] ❌ Database error")
		return
	}
	log.Debug().Str("conn", evt.ConnectionID).Str("kind", string(evt.Kind)).Msg("[Presence] ✅ Recorded")
}
