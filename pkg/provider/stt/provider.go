// Package stt defines the Provider interface for speech-to-text backends.
//
// Providers are batch decoders: they take a complete PCM buffer and return its
// transcription in one call. The realtime pipeline builds streaming behaviour
// on top by repeatedly decoding a growing window of buffered audio, so the
// provider itself stays simple and stateless.
//
// Two decode qualities exist. A plain decode returns text only and is what the
// realtime pipeline uses for partials and finals. A word-level decode
// (Request.WantWords) additionally returns per-word timestamps and backs the
// karaoke re-alignment path; providers that cannot produce word timing return
// the text with an empty Words slice rather than an error.
//
// Implementations must be safe for concurrent use. Many sessions may decode
// against a single shared Provider.
package stt

import (
	"context"

	"github.com/arbachegit/iconsai-core/pkg/timing"
)

// Request describes one batch transcription.
type Request struct {
	// PCM is the audio to decode: 16-bit signed mono samples.
	PCM []int16

	// SampleRate is the rate of PCM in Hz. Zero means 16000.
	SampleRate int

	// Language is the ISO 639-1 language hint (e.g. "pt", "en"). Empty lets
	// the provider auto-detect.
	Language string

	// WantWords requests per-word timestamps in the result. Providers that
	// cannot produce them ignore the flag.
	WantWords bool
}

// Result is a completed transcription.
type Result struct {
	// Text is the transcribed speech, whitespace-trimmed. Empty means the
	// provider heard nothing intelligible; that is not an error.
	Text string

	// Confidence is the overall score (0.0-1.0), zero when the provider does
	// not report one.
	Confidence float64

	// Words holds per-word timing when requested and supported, nil otherwise.
	Words []timing.WordTiming
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe decodes the audio in req and returns the result. An empty
	// or silent buffer yields an empty Result, not an error. Errors are
	// reserved for transport and provider failures.
	Transcribe(ctx context.Context, req Request) (Result, error)
}

// EncodedRequest describes transcription of already-encoded audio, such as
// the MP3 a TTS provider returns. Used by the caption re-alignment path,
// which transcribes synthesized speech to recover word timing.
type EncodedRequest struct {
	// Audio is the complete encoded file.
	Audio []byte

	// MIMEType identifies the encoding (e.g. "audio/mpeg", "audio/wav").
	MIMEType string

	// Language is the ISO 639-1 language hint. Empty lets the provider
	// auto-detect.
	Language string
}

// Realigner transcribes encoded audio with word timestamps. Backends that can
// only consume raw PCM do not implement it.
type Realigner interface {
	TranscribeEncoded(ctx context.Context, req EncodedRequest) (Result, error)
}
