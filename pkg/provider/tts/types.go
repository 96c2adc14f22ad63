package tts

import "errors"

// MaxTextLength is the longest input accepted by any provider. Longer texts
// must be split by the caller.
const MaxTextLength = 5000

var (
	// ErrInvalidRequest indicates the request itself was rejected: empty
	// text, text over MaxTextLength, or a malformed parameter.
	ErrInvalidRequest = errors.New("tts: invalid request")

	// ErrUnauthorized indicates the provider rejected the configured API key.
	ErrUnauthorized = errors.New("tts: unauthorized")

	// ErrRateLimited indicates the provider throttled the request. The
	// caller may retry later or fall back to another provider.
	ErrRateLimited = errors.New("tts: rate limited")
)

// Request describes one synthesis call.
type Request struct {
	// Text is the content to speak. Must be non-empty and at most
	// MaxTextLength characters. Callers normalize the text for speech
	// (numbers, currency, phonetic substitutions) before handing it over.
	Text string

	// Voice is a provider voice name ("nova") or a provider-specific voice
	// ID. Empty selects the provider's default.
	Voice string

	// Speed is the speaking rate multiplier. Zero means 1.0.
	Speed float64

	// Style selects a voice instruction preset on providers that support
	// delivery instructions. Unknown values fall back to the default preset.
	Style string

	// WithAlignment requests character-level timing alongside the audio.
	WithAlignment bool
}

// CharAlignment is character-level timing as reported by the provider: three
// parallel arrays with one entry per character of the synthesized text.
type CharAlignment struct {
	Chars  []string  `json:"characters"`
	Starts []float64 `json:"character_start_times_seconds"`
	Ends   []float64 `json:"character_end_times_seconds"`
}

// Result is a completed synthesis.
type Result struct {
	// Audio is the encoded audio payload.
	Audio []byte

	// MIMEType describes Audio, e.g. "audio/mpeg".
	MIMEType string

	// Text is the text that was actually synthesized.
	Text string

	// Chars holds character alignment when the provider produced it, nil
	// otherwise.
	Chars *CharAlignment
}
