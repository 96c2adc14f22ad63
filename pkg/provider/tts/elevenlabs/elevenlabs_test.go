package elevenlabs_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/arbachegit/iconsai-core/pkg/provider/tts"
	"github.com/arbachegit/iconsai-core/pkg/provider/tts/elevenlabs"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := elevenlabs.New(""); err == nil {
		t.Fatal("expected error for empty apiKey")
	}
}

func TestSynthesizeWithAlignment(t *testing.T) {
	audio := []byte("fake-mp3-bytes")
	var gotPath string
	var gotKey string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		json.NewDecoder(r.Body).Decode(&gotBody)

		json.NewEncoder(w).Encode(map[string]any{
			"audio_base64": base64.StdEncoding.EncodeToString(audio),
			"alignment": map[string]any{
				"characters":                     []string{"o", "i"},
				"character_start_times_seconds":  []float64{0.0, 0.05},
				"character_end_times_seconds":    []float64{0.05, 0.1},
			},
		})
	}))
	defer srv.Close()

	p, err := elevenlabs.New("key-123", elevenlabs.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := p.Synthesize(context.Background(), tts.Request{
		Text:          "oi",
		Voice:         "nova",
		WithAlignment: true,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if !strings.HasSuffix(gotPath, "/text-to-speech/"+elevenlabs.DefaultVoiceID+"/with-timestamps") {
		t.Errorf("path: got %q", gotPath)
	}
	if gotKey != "key-123" {
		t.Errorf("xi-api-key: got %q", gotKey)
	}
	if gotBody["model_id"] != "eleven_turbo_v2_5" {
		t.Errorf("model_id: got %v", gotBody["model_id"])
	}
	if string(res.Audio) != string(audio) {
		t.Errorf("audio mismatch")
	}
	if res.MIMEType != "audio/mpeg" {
		t.Errorf("mime: got %q", res.MIMEType)
	}
	if res.Chars == nil || len(res.Chars.Chars) != 2 {
		t.Fatalf("alignment: got %+v", res.Chars)
	}
	if res.Chars.Starts[1] != 0.05 {
		t.Errorf("alignment start: got %v", res.Chars.Starts[1])
	}
}

func TestSynthesizeWithoutAlignment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "with-timestamps") {
			t.Errorf("plain synthesis must not use with-timestamps: %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		io.WriteString(w, "raw-mp3")
	}))
	defer srv.Close()

	p, _ := elevenlabs.New("key", elevenlabs.WithBaseURL(srv.URL))
	res, err := p.Synthesize(context.Background(), tts.Request{Text: "oi"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(res.Audio) != "raw-mp3" {
		t.Errorf("audio: got %q", res.Audio)
	}
	if res.Chars != nil {
		t.Error("plain synthesis must not carry alignment")
	}
}

func TestSynthesizeErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: tts.ErrUnauthorized},
		{name: "rate limited", status: http.StatusTooManyRequests, want: tts.ErrRateLimited},
		{name: "bad request", status: http.StatusBadRequest, want: tts.ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, `{"detail":"nope"}`)
			}))
			defer srv.Close()

			p, _ := elevenlabs.New("key", elevenlabs.WithBaseURL(srv.URL))
			_, err := p.Synthesize(context.Background(), tts.Request{Text: "oi"})
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSynthesizeValidatesInput(t *testing.T) {
	p, _ := elevenlabs.New("key")

	if _, err := p.Synthesize(context.Background(), tts.Request{Text: "  "}); !errors.Is(err, tts.ErrInvalidRequest) {
		t.Errorf("blank text: got %v", err)
	}

	long := strings.Repeat("a", tts.MaxTextLength+1)
	if _, err := p.Synthesize(context.Background(), tts.Request{Text: long}); !errors.Is(err, tts.ErrInvalidRequest) {
		t.Errorf("oversized text: got %v", err)
	}
}
