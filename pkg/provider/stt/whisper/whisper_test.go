package whisper_test

import (
	"context"
	"encoding/binary"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arbachegit/iconsai-core/pkg/provider/stt"
	"github.com/arbachegit/iconsai-core/pkg/provider/stt/whisper"
)

func TestNewRequiresServerURL(t *testing.T) {
	if _, err := whisper.New(""); err == nil {
		t.Fatal("expected error for empty serverURL")
	}
}

func TestTranscribe(t *testing.T) {
	var gotLanguage, gotModel string
	var gotWAV []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotLanguage = r.FormValue("language")
		gotModel = r.FormValue("model")

		f, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		gotWAV, _ = io.ReadAll(f)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text": " Olá, tudo bem? "}`)
	}))
	defer srv.Close()

	p, err := whisper.New(srv.URL, whisper.WithModel("base"), whisper.WithLanguage("pt"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := p.Transcribe(context.Background(), stt.Request{
		PCM:        make([]int16, 16000),
		SampleRate: 16000,
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if res.Text != "Olá, tudo bem?" {
		t.Errorf("text: got %q", res.Text)
	}
	if gotLanguage != "pt" {
		t.Errorf("language field: got %q, want %q", gotLanguage, "pt")
	}
	if gotModel != "base" {
		t.Errorf("model field: got %q, want %q", gotModel, "base")
	}

	// Sanity-check the uploaded WAV header: RIFF magic, 16 kHz mono.
	if len(gotWAV) < 44 {
		t.Fatalf("wav too short: %d bytes", len(gotWAV))
	}
	if string(gotWAV[0:4]) != "RIFF" || string(gotWAV[8:12]) != "WAVE" {
		t.Error("uploaded file is not a WAV container")
	}
	if sr := binary.LittleEndian.Uint32(gotWAV[24:28]); sr != 16000 {
		t.Errorf("wav sample rate: got %d, want 16000", sr)
	}
	if ch := binary.LittleEndian.Uint16(gotWAV[22:24]); ch != 1 {
		t.Errorf("wav channels: got %d, want 1", ch)
	}
}

func TestTranscribeEmptyBuffer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("empty buffer must not hit the network")
	}))
	defer srv.Close()

	p, _ := whisper.New(srv.URL)
	res, err := p.Transcribe(context.Background(), stt.Request{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "" {
		t.Errorf("got %q, want empty", res.Text)
	}
}

func TestTranscribeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, _ := whisper.New(srv.URL)
	_, err := p.Transcribe(context.Background(), stt.Request{PCM: make([]int16, 160)})
	if err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}
