// Package tts defines the Provider interface for text-to-speech backends.
//
// A provider takes prepared text and returns synthesized audio in one call.
// Providers differ in what timing data they can attach: ElevenLabs returns
// character-level alignment natively, OpenAI returns audio only and relies on
// a separate transcription pass for timing. The Result's Chars field carries
// whatever the provider could produce; callers derive word timing from it
// with the timing package.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize converts req.Text into audio. When req.WithAlignment is set
	// the provider attaches character alignment if it supports it; Chars
	// stays nil otherwise and the caller falls back to re-alignment or an
	// estimated schedule.
	//
	// Input validation failures (empty or oversized text, unknown voice)
	// wrap ErrInvalidRequest. Provider-side rejections map onto
	// ErrUnauthorized and ErrRateLimited so callers can decide whether a
	// fallback provider is worth trying.
	Synthesize(ctx context.Context, req Request) (Result, error)
}
