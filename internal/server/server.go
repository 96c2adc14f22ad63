// Package server exposes the voice pipeline over HTTP: a WebSocket endpoint
// for streaming transcription, request/response endpoints for clock sync and
// playback state, the caption-synchronized synthesis endpoints, and the
// conversation session API.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arbachegit/iconsai-core/internal/health"
	"github.com/arbachegit/iconsai-core/internal/karaoke"
	"github.com/arbachegit/iconsai-core/internal/observe"
	"github.com/arbachegit/iconsai-core/internal/realtime"
	"github.com/arbachegit/iconsai-core/internal/registry"
)

// Server holds the handler dependencies. All fields must be non-nil except
// metrics and log, which fall back to defaults.
type Server struct {
	realtime *realtime.Service
	synth    *karaoke.Synthesizer
	coord    *karaoke.Coordinator
	sessions *registry.Registry
	metrics  *observe.Metrics
	log      *slog.Logger
}

// New assembles a Server from the pipeline subsystems.
func New(rt *realtime.Service, synth *karaoke.Synthesizer, coord *karaoke.Coordinator, sessions *registry.Registry, metrics *observe.Metrics, log *slog.Logger) *Server {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		realtime: rt,
		synth:    synth,
		coord:    coord,
		sessions: sessions,
		metrics:  metrics,
		log:      log,
	}
}

// Handler builds the full route table wrapped in the observability
// middleware. The health handler is passed in so the app can register its own
// readiness checkers.
func (s *Server) Handler(h *health.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/realtime-stt", s.handleRealtimeStream)
	mux.HandleFunc("GET /v1/realtime-stt/info", s.handleRealtimeInfo)

	mux.HandleFunc("POST /v1/clock-sync", s.handleClockSync)
	mux.HandleFunc("POST /v1/playback/start", s.handlePlaybackStart)
	mux.HandleFunc("POST /v1/playback/pause", s.handlePlaybackPause)
	mux.HandleFunc("POST /v1/playback/end", s.handlePlaybackEnd)

	mux.HandleFunc("POST /v1/text-to-speech-karaoke", s.handleSpeechKaraoke)
	mux.HandleFunc("POST /v1/text-to-speech", s.handleSpeech)

	mux.HandleFunc("GET /v1/sessions/{device}/history", s.handleHistory)
	mux.HandleFunc("POST /v1/sessions/{device}/messages", s.handleSaveMessage)
	mux.HandleFunc("POST /v1/sessions/{device}/end", s.handleEndSession)

	mux.Handle("GET /metrics", promhttp.Handler())
	h.Register(mux)

	return observe.Middleware(s.metrics)(mux)
}

// writeJSON encodes v with the given status. Encoding failures surface as a
// plain 500; the header has already been written by then, so this is
// best-effort.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

// writeError reports a request failure as {"error": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody decodes a JSON request body into v, rejecting unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
