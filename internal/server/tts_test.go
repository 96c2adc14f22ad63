package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/arbachegit/iconsai-core/pkg/provider/tts"
)

// nativeAlignment builds a per-character alignment for "olá mundo" with each
// character lasting 100 ms, the shape ElevenLabs reports.
func nativeAlignment() *tts.CharAlignment {
	text := "olá mundo"
	a := &tts.CharAlignment{}
	t := 0.0
	for _, r := range text {
		a.Chars = append(a.Chars, string(r))
		a.Starts = append(a.Starts, t)
		t += 0.1
		a.Ends = append(a.Ends, t)
	}
	return a
}

func TestSpeechKaraokeNativeAlignment(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.primary.Default = tts.Result{
		Audio:    []byte("mp3-bytes"),
		MIMEType: "audio/mpeg",
		Text:     "olá mundo",
		Chars:    nativeAlignment(),
	}

	status, body := e.postJSON(t, "/v1/text-to-speech-karaoke", map[string]any{
		"text": "olá mundo",
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200: %v", status, body)
	}
	if got := body["alignmentSource"]; got != "native" {
		t.Errorf("alignmentSource = %v, want native", got)
	}
	if got := body["approximate"]; got != false {
		t.Errorf("approximate = %v, want false", got)
	}
	words := body["words"].([]any)
	if len(words) != 2 {
		t.Fatalf("len(words) = %d, want 2", len(words))
	}
	first := words[0].(map[string]any)
	if first["word"] != "olá" {
		t.Errorf("words[0] = %v, want olá", first["word"])
	}
	// Default lookahead shifts starts earlier by 100 ms, clamped at zero.
	if got := first["start"].(float64); got != 0 {
		t.Errorf("words[0].start = %v, want 0", got)
	}
	second := words[1].(map[string]any)
	if got := second["start"].(float64); got < 0.25 || got > 0.35 {
		t.Errorf("words[1].start = %v, want about 0.3", got)
	}
	if got := body["lookaheadMs"].(float64); got != 100 {
		t.Errorf("lookaheadMs = %v, want 100", got)
	}
	if body["audioBase64"] == "" {
		t.Error("audioBase64 is empty")
	}

	// The primary must have been asked for alignment data.
	if len(e.primary.Calls) != 1 || !e.primary.Calls[0].WithAlignment {
		t.Error("primary was not asked for alignment")
	}
}

func TestSpeechKaraokeFallbackApproximate(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.primary.Err = io.ErrUnexpectedEOF
	e.fallback.Default = tts.Result{
		Audio:    []byte("fallback-mp3"),
		MIMEType: "audio/mpeg",
		Text:     "olá mundo",
	}
	e.stt.Err = io.ErrUnexpectedEOF // realignment unavailable too

	status, body := e.postJSON(t, "/v1/text-to-speech-karaoke", map[string]any{
		"text": "olá mundo",
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200: %v", status, body)
	}
	if got := body["alignmentSource"]; got != "approximate" {
		t.Errorf("alignmentSource = %v, want approximate", got)
	}
	if got := body["approximate"]; got != true {
		t.Errorf("approximate = %v, want true", got)
	}
	if words := body["words"].([]any); len(words) != 2 {
		t.Errorf("len(words) = %d, want 2", len(words))
	}
}

func TestSpeechKaraokeSessionLookahead(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.primary.Default = tts.Result{
		Audio:    []byte("mp3"),
		MIMEType: "audio/mpeg",
		Text:     "olá mundo",
		Chars:    nativeAlignment(),
	}

	status, _ := e.postJSON(t, "/v1/clock-sync", map[string]any{
		"sessionId":      "tts-sync",
		"clientSendTime": nowSeconds(),
	})
	if status != http.StatusOK {
		t.Fatalf("clock-sync status = %d", status)
	}

	status, body := e.postJSON(t, "/v1/text-to-speech-karaoke", map[string]any{
		"text":      "olá mundo",
		"sessionId": "tts-sync",
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200: %v", status, body)
	}
	if got := body["lookaheadMs"].(float64); got != 100 {
		t.Errorf("lookaheadMs = %v, want session default 100", got)
	}
}

func TestSpeechKaraokeEmptyText(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	status, body := e.postJSON(t, "/v1/text-to-speech-karaoke", map[string]any{
		"text": "   ",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %v", status, body)
	}
	if e.primary.CallCount() != 0 {
		t.Error("provider called for empty text")
	}
}

func TestSpeechKaraokeAllProvidersFail(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.primary.Err = io.ErrUnexpectedEOF
	e.fallback.Err = io.ErrUnexpectedEOF

	status, body := e.postJSON(t, "/v1/text-to-speech-karaoke", map[string]any{
		"text": "olá",
	})
	if status != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502: %v", status, body)
	}
}

func TestSpeechKaraokeRateLimited(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.primary.Err = tts.ErrRateLimited
	e.fallback.Err = tts.ErrRateLimited

	status, _ := e.postJSON(t, "/v1/text-to-speech-karaoke", map[string]any{
		"text": "olá",
	})
	if status != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", status)
	}
}

func TestSpeechPlainAudio(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	audio := []byte("raw-mp3-audio")
	e.primary.Default = tts.Result{
		Audio:    audio,
		MIMEType: "audio/mpeg",
		Text:     "olá mundo",
		Chars:    nativeAlignment(),
	}

	buf, _ := json.Marshal(map[string]any{"text": "olá mundo"})
	resp, err := http.Post(e.ts.URL+"/v1/text-to-speech", "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Content-Type = %q, want audio/mpeg", ct)
	}
	got, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if !bytes.Equal(got, audio) {
		t.Errorf("body = %q, want %q", got, audio)
	}
}
