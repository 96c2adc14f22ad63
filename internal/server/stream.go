package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/arbachegit/iconsai-core/internal/realtime"
	"github.com/arbachegit/iconsai-core/internal/registry"
	"github.com/arbachegit/iconsai-core/pkg/provider/stt"
)

// receiveTimeout bounds the wait for the next client message. Hitting it is
// not an error: the server emits a keep-alive listening event and waits
// again.
const receiveTimeout = 30 * time.Second

// writeTimeout bounds a single outbound WebSocket write.
const writeTimeout = 5 * time.Second

// clientMessage is any JSON control frame from the client.
type clientMessage struct {
	Type       string `json:"type"`
	Data       string `json:"data,omitempty"`
	Language   string `json:"language,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`
	Format     string `json:"format,omitempty"`
}

// streamConfig is the negotiated session configuration echoed in acks and
// the info endpoint.
type streamConfig struct {
	Language   string `json:"language"`
	SampleRate int    `json:"sampleRate"`
	Format     string `json:"format"`
}

type configAck struct {
	Status string       `json:"status"`
	Config streamConfig `json:"config"`
}

type pongMessage struct {
	Type      string  `json:"type"`
	Timestamp float64 `json:"timestamp"`
}

// wsStats is the lifetime summary attached to the end event.
type wsStats struct {
	Duration            float64 `json:"duration"`
	TotalAudioBytes     int64   `json:"totalAudioBytes"`
	TotalTranscriptions int     `json:"totalTranscriptions"`
}

// wsEvent is a transcription event as serialized to the client. The end
// event additionally carries the session ID and stats.
type wsEvent struct {
	realtime.Event
	SessionID string   `json:"sessionId,omitempty"`
	Stats     *wsStats `json:"stats,omitempty"`
}

func (s *Server) handleRealtimeStream(w http.ResponseWriter, r *http.Request) {
	sessionID, err := s.streamSessionID(r)
	if err != nil {
		if errors.Is(err, registry.ErrFull) {
			writeError(w, http.StatusServiceUnavailable, "session table is full")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept failed", "err", err)
		return
	}
	defer c.CloseNow()

	ctx := r.Context()
	s.metrics.ActiveStreams.Add(ctx, 1)
	defer s.metrics.ActiveStreams.Add(ctx, -1)

	st := &stream{
		srv:       s,
		conn:      c,
		sessionID: sessionID,
		format:    "pcm16",
		out:       make(chan any, 64),
		start:     time.Now(),
	}
	st.run(ctx)
}

// streamSessionID resolves the registry session for the connection. Clients
// that identify a device share one conversation session across reconnects;
// anonymous connections get a throwaway ID.
func (s *Server) streamSessionID(r *http.Request) (string, error) {
	device := r.URL.Query().Get("device")
	if device == "" {
		return uuid.NewString(), nil
	}
	info, err := s.sessions.GetOrCreate(device)
	if err != nil {
		return "", err
	}
	return info.SessionID, nil
}

// stream is the per-connection state. The read loop owns all fields; the
// writer goroutine only consumes out, and the event forwarder only sends on
// it.
type stream struct {
	srv       *Server
	conn      *websocket.Conn
	sessionID string

	override realtime.Config
	format   string

	session   *realtime.Session
	forwardWG sync.WaitGroup

	out     chan any
	writeWG sync.WaitGroup

	start time.Time
}

func (st *stream) run(ctx context.Context) {
	st.writeWG.Add(1)
	go st.writeLoop(ctx)

	for {
		rctx, cancel := context.WithTimeout(ctx, receiveTimeout)
		typ, data, err := st.conn.Read(rctx)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				// Quiet client. Reassure it the session is still alive.
				st.out <- wsEvent{Event: realtime.Event{
					Status:    realtime.StatusListening,
					Timestamp: unixNow(),
				}}
				continue
			}
			// Disconnect: flush any open segment before tearing down.
			st.finish(ctx)
			return
		}

		switch typ {
		case websocket.MessageBinary:
			st.feed(ctx, data)

		case websocket.MessageText:
			if done := st.handleControl(ctx, data); done {
				st.conn.Close(websocket.StatusNormalClosure, "session ended")
				return
			}
		}
	}
}

// handleControl processes one JSON control frame. It returns true when the
// client ended the session.
func (st *stream) handleControl(ctx context.Context, data []byte) bool {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		st.inputError(ctx, "malformed message: "+err.Error())
		return false
	}

	switch msg.Type {
	case "config":
		st.configure(ctx, msg)

	case "audio":
		raw, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			st.inputError(ctx, "invalid base64 audio data")
			return false
		}
		st.feed(ctx, raw)

	case "ping":
		st.out <- pongMessage{Type: "pong", Timestamp: unixNow()}

	case "end":
		st.finish(ctx)
		return true

	default:
		// Unknown message types are logged and ignored; the session
		// continues.
		st.srv.log.Warn("unexpected websocket message", "type", msg.Type, "session", st.sessionID)
	}
	return false
}

// configure applies a config message. Parameters are only negotiable before
// the first audio frame; afterwards the message is acknowledged with the
// active configuration and otherwise ignored.
func (st *stream) configure(ctx context.Context, msg clientMessage) {
	if msg.Format != "" && msg.Format != "pcm16" {
		st.inputError(ctx, "unsupported audio format "+msg.Format)
		return
	}

	if st.session == nil {
		if msg.Language != "" {
			st.override.Language = msg.Language
		}
		if msg.SampleRate > 0 {
			st.override.SampleRate = msg.SampleRate
		}
		if msg.Format != "" {
			st.format = msg.Format
		}
	} else {
		st.srv.log.Warn("config received after audio started", "session", st.sessionID)
	}

	st.out <- configAck{Status: "configured", Config: st.effectiveConfig()}
}

func (st *stream) effectiveConfig() streamConfig {
	cfg := st.srv.realtime.Config()
	if st.session != nil {
		cfg = st.session.Config()
	} else {
		if st.override.Language != "" {
			cfg.Language = st.override.Language
		}
		if st.override.SampleRate > 0 {
			cfg.SampleRate = st.override.SampleRate
		}
	}
	return streamConfig{
		Language:   cfg.Language,
		SampleRate: cfg.SampleRate,
		Format:     st.format,
	}
}

// feed hands raw little-endian PCM to the transcription session, starting it
// on the first frame.
func (st *stream) feed(ctx context.Context, raw []byte) {
	if len(raw) == 0 {
		return
	}
	if st.session == nil {
		st.session = st.srv.realtime.NewSessionWith(ctx, st.override)
		st.forwardWG.Add(1)
		go st.forwardEvents(ctx)
	}
	if err := st.session.SendAudio(stt.DecodePCM(raw)); err != nil {
		st.srv.log.Warn("audio dropped", "session", st.sessionID, "err", err)
	}
}

// forwardEvents copies session events to the outbound channel, attaching the
// session ID and stats to the terminal end event.
func (st *stream) forwardEvents(ctx context.Context) {
	defer st.forwardWG.Done()
	for ev := range st.session.Events() {
		st.srv.metrics.RecordTranscriptionEvent(ctx, string(ev.Status))

		out := wsEvent{Event: ev}
		if ev.Status == realtime.StatusEnd {
			out.SessionID = st.sessionID
			out.Stats = st.stats()
		}
		st.out <- out
	}
}

// finish closes the transcription session (flushing any open segment), waits
// for its events to drain, and stops the writer. Sessions that never saw
// audio still get a well-formed end event.
func (st *stream) finish(ctx context.Context) {
	if st.session != nil {
		st.session.Close()
		st.forwardWG.Wait()
	} else {
		st.out <- wsEvent{
			Event:     realtime.Event{Status: realtime.StatusEnd, Timestamp: unixNow()},
			SessionID: st.sessionID,
			Stats:     st.stats(),
		}
	}
	close(st.out)
	st.writeWG.Wait()
}

// stats summarizes the connection for the end event.
func (st *stream) stats() *wsStats {
	out := &wsStats{
		Duration: time.Since(st.start).Seconds(),
	}
	if st.session != nil {
		s := st.session.Stats()
		rate := st.session.Config().SampleRate
		out.TotalAudioBytes = int64(s.AudioSeconds * float64(rate) * 2)
		out.TotalTranscriptions = s.Partials + s.Finals
	}
	return out
}

// inputError reports a client mistake without ending the session.
func (st *stream) inputError(ctx context.Context, msg string) {
	st.srv.log.Warn("client input error", "session", st.sessionID, "err", msg)
	st.out <- wsEvent{Event: realtime.Event{
		Status:    realtime.StatusError,
		Error:     msg,
		Timestamp: unixNow(),
	}}
}

// writeLoop owns all writes to the WebSocket.
func (st *stream) writeLoop(ctx context.Context) {
	defer st.writeWG.Done()
	for v := range st.out {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := wsjson.Write(wctx, st.conn, v)
		cancel()
		if err != nil {
			// The connection is gone; drain remaining messages so senders
			// never block.
			for range st.out {
			}
			return
		}
	}
}

func unixNow() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
