// Package registry tracks conversation sessions keyed by device.
//
// A session holds the rolling conversation history for one device so the
// assistant can keep context across voice interactions. Storage is in-memory:
// sessions are cheap, device-scoped, and safe to lose on restart. Idle
// sessions are swept after a day so abandoned devices do not accumulate.
package registry

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxIdle is how long a session may sit untouched before SweepIdle
// removes it.
const DefaultMaxIdle = 24 * time.Hour

// DefaultCapacity bounds how many sessions may be live at once.
const DefaultCapacity = 10_000

// DefaultHistoryLimit is the number of messages RecentHistory returns when
// the caller does not specify one.
const DefaultHistoryLimit = 50

var (
	// ErrNotFound indicates the session ID is unknown.
	ErrNotFound = errors.New("registry: session not found")

	// ErrFull indicates the registry is at capacity and refuses new
	// sessions until some are ended or swept.
	ErrFull = errors.New("registry: session capacity reached")
)

// Message is a single conversation turn.
type Message struct {
	Role       string    `json:"role"` // "user" or "assistant"
	Content    string    `json:"content"`
	ModuleSlug string    `json:"-"`
	Timestamp  time.Time `json:"-"`
}

// session is internal state, guarded by the registry's mutex.
type session struct {
	id           string
	deviceID     string
	userName     string
	messages     []Message
	createdAt    time.Time
	lastActivity time.Time
}

// Info is a snapshot of session identity returned to callers.
type Info struct {
	SessionID string
	DeviceID  string
	UserName  string
	CreatedAt time.Time
}

// History is a snapshot of recent conversation state for a device.
type History struct {
	SessionID string
	UserName  string
	Messages  []Message
}

// Option is a functional option for Registry.
type Option func(*Registry)

// WithCapacity overrides the maximum number of live sessions.
func WithCapacity(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// WithHistoryLimit overrides how many messages RecentHistory returns when
// the caller does not ask for a specific count.
func WithHistoryLimit(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.historyLimit = n
		}
	}
}

// Registry is the in-memory session store. Safe for concurrent use.
type Registry struct {
	mu           sync.Mutex
	sessions     map[string]*session // session ID -> session
	byDevice     map[string]string   // device ID -> session ID
	capacity     int
	historyLimit int
	log          *slog.Logger
	now          func() time.Time
}

// New creates a Registry. A nil logger falls back to slog.Default.
func New(log *slog.Logger, opts ...Option) *Registry {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{
		sessions:     make(map[string]*session),
		byDevice:     make(map[string]string),
		capacity:     DefaultCapacity,
		historyLimit: DefaultHistoryLimit,
		log:          log,
		now:          time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// GetOrCreate returns the device's session, creating one when the device is
// new. Returns ErrFull when creating would exceed capacity.
func (r *Registry) GetOrCreate(deviceID string) (Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.getOrCreate(deviceID)
	if err != nil {
		return Info{}, err
	}
	return info(s), nil
}

// getOrCreate is the lock-held implementation shared by the public methods.
func (r *Registry) getOrCreate(deviceID string) (*session, error) {
	if id, ok := r.byDevice[deviceID]; ok {
		if s, ok := r.sessions[id]; ok {
			s.lastActivity = r.now()
			return s, nil
		}
	}

	if len(r.sessions) >= r.capacity {
		return nil, ErrFull
	}

	now := r.now()
	s := &session{
		id:           uuid.NewString(),
		deviceID:     deviceID,
		createdAt:    now,
		lastActivity: now,
	}
	r.sessions[s.id] = s
	r.byDevice[deviceID] = s.id
	r.log.Info("session created", "session_id", s.id, "device_id", truncate(deviceID, 15))
	return s, nil
}

// Get returns the session with the given ID.
func (r *Registry) Get(sessionID string) (Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return Info{}, ErrNotFound
	}
	return info(s), nil
}

// SaveMessage appends a conversation turn to the session's history and
// returns a message ID.
func (r *Registry) SaveMessage(sessionID, role, content, moduleSlug string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		r.log.Warn("save message to unknown session", "session_id", sessionID)
		return "", ErrNotFound
	}
	s.messages = append(s.messages, Message{
		Role:       role,
		Content:    content,
		ModuleSlug: moduleSlug,
		Timestamp:  r.now(),
	})
	s.lastActivity = r.now()
	return uuid.NewString(), nil
}

// RecentHistory returns the device's most recent messages, optionally
// filtered by module. limit <= 0 means the registry's configured default.
// The device's session is created when missing, so a fresh device gets empty
// history rather than an error.
func (r *Registry) RecentHistory(deviceID string, limit int, moduleSlug string) (History, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = r.historyLimit
	}

	s, err := r.getOrCreate(deviceID)
	if err != nil {
		return History{}, err
	}

	msgs := s.messages
	if moduleSlug != "" {
		filtered := make([]Message, 0, len(msgs))
		for _, m := range msgs {
			if m.ModuleSlug == moduleSlug {
				filtered = append(filtered, m)
			}
		}
		msgs = filtered
	}
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	out := make([]Message, len(msgs))
	copy(out, msgs)
	return History{SessionID: s.id, UserName: s.userName, Messages: out}, nil
}

// SetUserName records the user's name on the session. Unknown IDs are a
// no-op.
func (r *Registry) SetUserName(sessionID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[sessionID]; ok {
		s.userName = name
		r.log.Info("user name set", "session_id", sessionID, "name", name)
	}
}

// EndSession removes the session and its device mapping. Unknown IDs are a
// no-op.
func (r *Registry) EndSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	delete(r.byDevice, s.deviceID)
	delete(r.sessions, sessionID)
	r.log.Info("session ended", "session_id", sessionID)
}

// SweepIdle removes sessions whose last activity is older than maxIdle and
// returns how many were removed. Zero or negative maxIdle uses
// DefaultMaxIdle.
func (r *Registry) SweepIdle(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdle
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	removed := 0
	for id, s := range r.sessions {
		if s.lastActivity.Before(cutoff) {
			delete(r.byDevice, s.deviceID)
			delete(r.sessions, id)
			removed++
			r.log.Info("session swept", "session_id", id)
		}
	}
	return removed
}

// Count reports how many sessions are live.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func info(s *session) Info {
	return Info{
		SessionID: s.id,
		DeviceID:  s.deviceID,
		UserName:  s.userName,
		CreatedAt: s.createdAt,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
