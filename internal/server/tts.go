package server

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/arbachegit/iconsai-core/internal/karaoke"
	"github.com/arbachegit/iconsai-core/internal/observe"
	"github.com/arbachegit/iconsai-core/pkg/provider/tts"
	"github.com/arbachegit/iconsai-core/pkg/timing"
)

// speechRequest is the body of both synthesis endpoints.
type speechRequest struct {
	Text        string            `json:"text"`
	Voice       string            `json:"voice,omitempty"`
	Speed       float64           `json:"speed,omitempty"`
	Style       string            `json:"style,omitempty"`
	Language    string            `json:"language,omitempty"`
	SessionID   string            `json:"sessionId,omitempty"`
	PhoneticMap map[string]string `json:"phoneticMap,omitempty"`
}

// speechKaraokeResponse carries the audio plus its caption schedule.
type speechKaraokeResponse struct {
	AudioBase64   string              `json:"audioBase64"`
	AudioMimeType string              `json:"audioMimeType"`
	Text          string              `json:"text"`
	Words         []timing.WordTiming `json:"words"`
	Duration      float64             `json:"duration"`
	Approximate   bool                `json:"approximate"`
	Alignment     karaoke.Alignment   `json:"alignmentSource"`
	LookaheadMs   float64             `json:"lookaheadMs"`
}

func (s *Server) handleSpeechKaraoke(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed synthesis request: "+err.Error())
		return
	}

	out, ok := s.synthesize(w, r, req)
	if !ok {
		return
	}

	// Shift the schedule for the client's measured latency when it has a
	// sync session; otherwise apply the default lookahead.
	words := out.Words
	lookahead := karaoke.DefaultLookaheadMs
	if req.SessionID != "" {
		words = s.coord.AdjustedTimestamps(req.SessionID, words)
		lookahead = s.coord.Lookahead(req.SessionID)
	} else {
		words = timing.AddLookahead(words, lookahead)
	}

	writeJSON(w, http.StatusOK, speechKaraokeResponse{
		AudioBase64:   base64.StdEncoding.EncodeToString(out.Audio),
		AudioMimeType: out.MIMEType,
		Text:          out.Text,
		Words:         roundWords(words),
		Duration:      timing.Round3(out.Duration),
		Approximate:   out.Approximate,
		Alignment:     out.Alignment,
		LookaheadMs:   lookahead,
	})
}

// roundWords trims caption timings to millisecond precision for the wire.
func roundWords(words []timing.WordTiming) []timing.WordTiming {
	out := make([]timing.WordTiming, len(words))
	for i, w := range words {
		out[i] = timing.WordTiming{
			Word:  w.Word,
			Start: timing.Round3(w.Start),
			End:   timing.Round3(w.End),
		}
	}
	return out
}

// handleSpeech is the plain synthesis endpoint: same fallback chain, audio
// bytes out, no caption schedule.
func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed synthesis request: "+err.Error())
		return
	}

	out, ok := s.synthesize(w, r, req)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", out.MIMEType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out.Audio); err != nil {
		s.log.Warn("writing audio response failed", "err", err)
	}
}

// synthesize runs the shared validation + synthesis path. On failure it has
// already written the error response and returns ok=false.
func (s *Server) synthesize(w http.ResponseWriter, r *http.Request, req speechRequest) (karaoke.SynthResult, bool) {
	ctx := r.Context()
	start := time.Now()

	out, err := s.synth.Synthesize(ctx, karaoke.SynthRequest{
		Text:        req.Text,
		Voice:       req.Voice,
		Speed:       req.Speed,
		Style:       req.Style,
		Language:    req.Language,
		PhoneticMap: req.PhoneticMap,
	})
	s.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("provider", "chain")))
	if err != nil {
		switch {
		case errors.Is(err, tts.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, tts.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, err.Error())
		default:
			s.log.Error("synthesis failed", "err", err)
			writeError(w, http.StatusBadGateway, "synthesis failed")
		}
		return karaoke.SynthResult{}, false
	}

	s.metrics.RecordKaraokeStage(ctx, string(out.Alignment))
	return out, true
}
