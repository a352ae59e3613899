// Package chat holds the client side of the chat: the name gate, the local
// message list and the typing indicator. Rendering is left to the caller.
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"chatapp/internal/model"
)

// NameErrorText is shown next to the name field when validation fails.
const NameErrorText = "El nombre solo puede contener letras y espacios."

const (
	// SelfName labels messages sent from this session.
	SelfName = "Tú"
	// UnknownName stands in for a sender that never announced a name.
	UnknownName = "Anónimo"

	DefaultTypingDelay = 2 * time.Second
	timestampLayout    = "15:04:05"
)

var (
	ErrInvalidName      = errors.New("chat: name may only contain letters and whitespace")
	ErrNotConnected     = errors.New("chat: not connected")
	ErrAlreadyConnected = errors.New("chat: already connected")
)

var namePattern = regexp.MustCompile(`^[A-Za-z\s]+$`)

// ValidateName reports whether name is one or more ASCII letters or
// whitespace characters and nothing else.
func ValidateName(name string) bool {
	return namePattern.MatchString(name)
}

type State int

const (
	AwaitingName State = iota
	Connected
)

func (s State) String() string {
	switch s {
	case AwaitingName:
		return "awaiting-name"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Origin string

const (
	OriginSelf   Origin = "self"
	OriginOther  Origin = "other"
	OriginSystem Origin = "system"
)

// Message is one rendered entry of the local message list.
type Message struct {
	Text      string
	From      Origin
	Name      string
	Timestamp string
}

// Emitter sends one named event to the server.
type Emitter interface {
	Emit(event string, payload any) error
}

// Dialer opens the connection for s once the name gate passes. The returned
// Emitter is used for every outbound event of the session.
type Dialer func(s *Session) (Emitter, error)

type Option func(*Session)

// WithClock replaces time.Now for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithAfterFunc replaces time.AfterFunc for the typing indicator timer.
func WithAfterFunc(after func(time.Duration, func())) Option {
	return func(s *Session) { s.afterFunc = after }
}

func WithTypingDelay(d time.Duration) Option {
	return func(s *Session) { s.typingDelay = d }
}

// WithMaxMessages keeps only the newest n messages. Zero means unbounded.
func WithMaxMessages(n int) Option {
	return func(s *Session) { s.maxMessages = n }
}

// WithOnChange registers a callback run after any visible state changes.
// It is called without internal locks held.
func WithOnChange(fn func()) Option {
	return func(s *Session) { s.onChange = fn }
}

// Session is one client's view of the chat. It is safe for concurrent use:
// inbound events usually arrive on a transport goroutine while user input
// arrives on the UI goroutine.
type Session struct {
	mu        sync.Mutex
	dial      Dialer
	conn      Emitter
	state     State
	name      string
	nameValid bool
	messages  []Message
	typing    string

	typingDelay time.Duration
	maxMessages int
	now         func() time.Time
	afterFunc   func(time.Duration, func())
	onChange    func()
}

func NewSession(dial Dialer, opts ...Option) *Session {
	s := &Session{
		dial:        dial,
		state:       AwaitingName,
		nameValid:   true,
		typingDelay: DefaultTypingDelay,
		now:         time.Now,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

// SetName updates the name field and its live validation flag.
func (s *Session) SetName(name string) bool {
	s.mu.Lock()
	if s.state == Connected {
		s.mu.Unlock()
		return false
	}
	s.name = name
	s.nameValid = ValidateName(name)
	valid := s.nameValid
	s.mu.Unlock()

	s.changed()
	return valid
}

// SubmitName passes the gate when name is valid: it dials the server and
// announces the name. On any error the session stays in AwaitingName.
func (s *Session) SubmitName(name string) error {
	s.mu.Lock()
	if s.state == Connected {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.name = name
	if !ValidateName(name) {
		s.nameValid = false
		s.mu.Unlock()
		s.changed()
		return ErrInvalidName
	}
	s.nameValid = true

	conn, err := s.dial(s)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("chat: connect: %w", err)
	}
	s.conn = conn
	s.state = Connected
	err = conn.Emit(model.EventNewUser, name)
	s.mu.Unlock()

	s.changed()
	return err
}

// Send emits text unchanged and echoes it locally. Text that is blank after
// trimming is ignored and Send reports false.
func (s *Session) Send(text string) (bool, error) {
	if strings.TrimSpace(text) == "" {
		return false, nil
	}

	s.mu.Lock()
	if s.state != Connected {
		s.mu.Unlock()
		return false, ErrNotConnected
	}
	if err := s.conn.Emit(model.EventSendChatMessage, text); err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.appendLocked(Message{
		Text:      SelfName + ": " + text,
		From:      OriginSelf,
		Name:      SelfName,
		Timestamp: s.timestamp(),
	})
	s.mu.Unlock()

	s.changed()
	return true, nil
}

// KeyPress emits a typing event carrying the session's name. It is meant to
// be called on every keystroke in the message box.
func (s *Session) KeyPress() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Connected {
		return ErrNotConnected
	}
	return s.conn.Emit(model.EventTyping, s.name)
}

func (s *Session) HandleChatMessage(msg model.ChatMessage) {
	name := UnknownName
	if msg.Name != nil {
		name = *msg.Name
	}
	s.appendMessage(Message{
		Text: name + ": " + msg.Message,
		From: OriginOther,
		Name: name,
	})
}

func (s *Session) HandleUserConnected(name string) {
	s.appendMessage(Message{
		Text: name + " se está conectando...",
		From: OriginSystem,
	})
}

func (s *Session) HandleUserDisconnected(name string) {
	s.appendMessage(Message{
		Text: name + " desconectado",
		From: OriginSystem,
	})
}

// HandleUserTyping shows the indicator and schedules its clear. Pending clears
// from earlier events are not cancelled, so a burst of events can hide the
// indicator one delay after the first of them.
func (s *Session) HandleUserTyping(name string) {
	s.mu.Lock()
	s.typing = name + " está escribiendo..."
	delay := s.typingDelay
	s.mu.Unlock()
	s.changed()

	s.afterFunc(delay, func() {
		s.mu.Lock()
		s.typing = ""
		s.mu.Unlock()
		s.changed()
	})
}

// Dispatch decodes an inbound envelope and applies it. Unknown events are
// ignored.
func (s *Session) Dispatch(env model.Envelope) error {
	switch env.Event {
	case model.EventChatMessage:
		var msg model.ChatMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return fmt.Errorf("chat: decode %s: %w", env.Event, err)
		}
		s.HandleChatMessage(msg)
	case model.EventUserConnected, model.EventUserDisconnected, model.EventUserTyping:
		var name *string
		if err := json.Unmarshal(env.Data, &name); err != nil {
			return fmt.Errorf("chat: decode %s: %w", env.Event, err)
		}
		who := UnknownName
		if name != nil {
			who = *name
		}
		switch env.Event {
		case model.EventUserConnected:
			s.HandleUserConnected(who)
		case model.EventUserDisconnected:
			s.HandleUserDisconnected(who)
		default:
			s.HandleUserTyping(who)
		}
	}
	return nil
}

func (s *Session) appendMessage(m Message) {
	s.mu.Lock()
	m.Timestamp = s.timestamp()
	s.appendLocked(m)
	s.mu.Unlock()
	s.changed()
}

func (s *Session) appendLocked(m Message) {
	s.messages = append(s.messages, m)
	if s.maxMessages > 0 && len(s.messages) > s.maxMessages {
		s.messages = append([]Message(nil), s.messages[len(s.messages)-s.maxMessages:]...)
	}
}

func (s *Session) timestamp() string {
	return s.now().Format(timestampLayout)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// NameValid reports the live validation state of the name field.
func (s *Session) NameValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nameValid
}

// Messages returns a copy of the message list, oldest first.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// Typing returns the current typing indicator, or "" when hidden.
func (s *Session) Typing() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}

// Initials returns up to two letters for an avatar: the first letter of the
// first word plus the first letter of the second word, if any.
func Initials(fullName string) string {
	words := strings.Fields(fullName)
	switch len(words) {
	case 0:
		return ""
	case 1:
		return firstRune(words[0])
	default:
		return firstRune(words[0]) + firstRune(words[1])
	}
}

func firstRune(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}
