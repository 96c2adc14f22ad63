// Package karaoke coordinates caption timing between server and clients.
//
// Word-by-word caption highlighting only looks right when the client applies
// word timestamps on its own clock. The coordinator estimates each client's
// clock offset and round-trip time from NTP-style sync exchanges, derives a
// lookahead from the RTT, and shifts word schedules earlier by that lookahead
// so highlights land when the audio does rather than a network hop later.
//
// Each client device gets its own sync session, tracked by ID and swept when
// idle. All methods are safe for concurrent use.
package karaoke

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/arbachegit/iconsai-core/pkg/timing"
)

// State is the lifecycle phase of a sync session.
type State string

const (
	StateIdle    State = "idle"    // created, no sync exchange yet
	StateSyncing State = "syncing" // first exchange in flight
	StateReady   State = "ready"   // offset and lookahead estimated
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateError   State = "error" // last exchange was unusable
)

const (
	// DefaultLookaheadMs is used until the first completed sync exchange.
	DefaultLookaheadMs = 100.0

	// minLookaheadMs and maxLookaheadMs clamp the RTT-derived lookahead.
	// Below 50 ms the shift is invisible; above 200 ms highlights start
	// noticeably racing ahead of the audio.
	minLookaheadMs = 50.0
	maxLookaheadMs = 200.0

	// estimateWindow is how many recent completed samples feed the median
	// estimate.
	estimateWindow = 5

	// rawWindow bounds how many samples a session retains. Anything older
	// has no bearing on the estimate and would otherwise accumulate for as
	// long as the client keeps probing.
	rawWindow = 16

	// DefaultMaxIdle is how long a sync session may sit untouched before
	// SweepIdle removes it.
	DefaultMaxIdle = time.Hour
)

// sample is one completed or half-completed clock sync exchange. Times are
// Unix seconds: t1 and t4 on the client clock, t2 and t3 on the server clock.
type sample struct {
	clientSend float64 // t1
	serverRecv float64 // t2
	serverSend float64 // t3
	clientRecv float64 // t4, zero until the client reports it back
}

// rtt is the round trip time in milliseconds.
func (s sample) rtt() float64 {
	return (s.clientRecv - s.clientSend) * 1000
}

// offset estimates the client-minus-server clock offset in milliseconds
// using the NTP formula ((t2-t1)+(t3-t4))/2.
func (s sample) offset() float64 {
	return ((s.serverRecv - s.clientSend) + (s.serverSend - s.clientRecv)) / 2 * 1000
}

// session is per-client sync state. Guarded by the coordinator's mutex.
type session struct {
	id           string
	state        State
	samples      []sample
	offsetMs     float64
	rttMs        float64
	lookaheadMs  float64
	lastActivity time.Time
}

// updateEstimate recomputes offset, RTT, and lookahead from the median of
// the most recent completed samples. Medians ride out the occasional
// GC-pause or Wi-Fi-retry outlier that would wreck a mean. Half-open samples
// (a response the client never acknowledged) carry no usable timing and are
// skipped.
func (s *session) updateEstimate() {
	recent := make([]sample, 0, estimateWindow)
	for i := len(s.samples) - 1; i >= 0 && len(recent) < estimateWindow; i-- {
		if s.samples[i].clientRecv != 0 {
			recent = append(recent, s.samples[i])
		}
	}
	if len(recent) == 0 {
		return
	}

	offsets := make([]float64, len(recent))
	rtts := make([]float64, len(recent))
	for i, sm := range recent {
		offsets[i] = sm.offset()
		rtts[i] = sm.rtt()
	}
	sort.Float64s(offsets)
	sort.Float64s(rtts)

	mid := len(offsets) / 2
	s.offsetMs = offsets[mid]
	s.rttMs = rtts[mid]

	lookahead := s.rttMs/2 + 50
	if lookahead < minLookaheadMs {
		lookahead = minLookaheadMs
	}
	if lookahead > maxLookaheadMs {
		lookahead = maxLookaheadMs
	}
	s.lookaheadMs = lookahead
}

// SyncStatus is the server's reply to a clock sync exchange.
type SyncStatus struct {
	ServerRecvTime    float64 `json:"serverRecvTime"`
	ServerSendTime    float64 `json:"serverSendTime"`
	EstimatedOffsetMs float64 `json:"estimatedOffsetMs"`
	EstimatedRttMs    float64 `json:"estimatedRttMs"`
	LookaheadMs       float64 `json:"lookaheadMs"`
	State             State   `json:"state"`
}

// Coordinator tracks sync sessions for all connected clients.
type Coordinator struct {
	mu               sync.Mutex
	sessions         map[string]*session
	defaultLookahead float64
	log              *slog.Logger
	now              func() time.Time
}

// New creates a Coordinator. A nil logger falls back to slog.Default.
func New(log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		sessions:         make(map[string]*session),
		defaultLookahead: DefaultLookaheadMs,
		log:              log,
		now:              time.Now,
	}
}

// SetDefaultLookahead changes the lookahead new sessions start with, until
// their first completed sync exchange. Non-positive values restore the
// built-in default.
func (c *Coordinator) SetDefaultLookahead(ms float64) {
	if ms <= 0 {
		ms = DefaultLookaheadMs
	}
	c.mu.Lock()
	c.defaultLookahead = ms
	c.mu.Unlock()
}

// getOrCreate returns the session, creating it in StateIdle if needed, and
// refreshes its activity time. Callers must hold c.mu.
func (c *Coordinator) getOrCreate(sessionID string) *session {
	s, ok := c.sessions[sessionID]
	if !ok {
		s = &session{
			id:          sessionID,
			state:       StateIdle,
			lookaheadMs: c.defaultLookahead,
		}
		c.sessions[sessionID] = s
		c.log.Info("sync session created", "session_id", sessionID)
	}
	s.lastActivity = c.now()
	return s
}

// ProcessClockSync handles one sync exchange. clientSendTime is the client's
// clock when it sent this request (t1). clientRecvTime, when non-zero, is the
// client's clock when it received the previous response (t4) and completes
// the previous sample, which updates the estimates and moves the session to
// StateReady. A new half-open sample is always started so the next exchange
// can complete it.
func (c *Coordinator) ProcessClockSync(sessionID string, clientSendTime, clientRecvTime float64) SyncStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.getOrCreate(sessionID)

	serverRecv := unix(c.now())

	if clientSendTime <= 0 {
		// An exchange without a send time can never be completed; keep the
		// session but flag it so the client knows to restart syncing.
		s.state = StateError
		c.log.Warn("clock sync exchange missing client send time", "session_id", sessionID)
		return SyncStatus{
			ServerRecvTime:    serverRecv,
			ServerSendTime:    unix(c.now()),
			EstimatedOffsetMs: s.offsetMs,
			EstimatedRttMs:    s.rttMs,
			LookaheadMs:       s.lookaheadMs,
			State:             s.state,
		}
	}

	s.state = StateSyncing

	if clientRecvTime != 0 && len(s.samples) > 0 {
		last := &s.samples[len(s.samples)-1]
		last.clientRecv = clientRecvTime
		s.updateEstimate()
		s.state = StateReady
	}

	sm := sample{
		clientSend: clientSendTime,
		serverRecv: serverRecv,
		serverSend: unix(c.now()),
	}
	s.samples = append(s.samples, sm)
	if len(s.samples) > rawWindow {
		s.samples = s.samples[len(s.samples)-rawWindow:]
	}

	return SyncStatus{
		ServerRecvTime:    serverRecv,
		ServerSendTime:    sm.serverSend,
		EstimatedOffsetMs: s.offsetMs,
		EstimatedRttMs:    s.rttMs,
		LookaheadMs:       s.lookaheadMs,
		State:             s.state,
	}
}

// Lookahead returns the session's current lookahead in milliseconds,
// creating the session if it does not exist yet.
func (c *Coordinator) Lookahead(sessionID string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getOrCreate(sessionID).lookaheadMs
}

// AdjustedTimestamps shifts words earlier by the session's lookahead so the
// client can schedule highlights against its own playback position.
func (c *Coordinator) AdjustedTimestamps(sessionID string, words []timing.WordTiming) []timing.WordTiming {
	if len(words) == 0 {
		return words
	}
	return timing.AddLookahead(words, c.Lookahead(sessionID))
}

// StartPlayback marks the session as playing and returns the new state.
func (c *Coordinator) StartPlayback(sessionID string) State {
	return c.setState(sessionID, StatePlaying)
}

// PausePlayback marks the session as paused and returns the new state.
func (c *Coordinator) PausePlayback(sessionID string) State {
	return c.setState(sessionID, StatePaused)
}

func (c *Coordinator) setState(sessionID string, st State) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.getOrCreate(sessionID)
	s.state = st
	return s.state
}

// EndSession removes the session. Unknown IDs are a no-op.
func (c *Coordinator) EndSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[sessionID]; ok {
		delete(c.sessions, sessionID)
		c.log.Info("sync session ended", "session_id", sessionID)
	}
}

// SweepIdle removes sessions whose last activity is older than maxIdle and
// returns how many were removed. Zero or negative maxIdle uses
// DefaultMaxIdle.
func (c *Coordinator) SweepIdle(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdle
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-maxIdle)
	removed := 0
	for id, s := range c.sessions {
		if s.lastActivity.Before(cutoff) {
			delete(c.sessions, id)
			removed++
			c.log.Info("sync session swept", "session_id", id)
		}
	}
	return removed
}

// SessionCount reports how many sync sessions are live.
func (c *Coordinator) SessionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

func unix(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
