package resilience

import (
	"context"
	"errors"

	"github.com/arbachegit/iconsai-core/pkg/provider/tts"
)

// TTS wraps a [tts.Provider] with a circuit breaker. After enough consecutive
// upstream failures the breaker opens and Synthesize fails fast with
// [ErrCircuitOpen], letting the caller's fallback chain take over without
// waiting out an HTTP timeout first.
//
// Request validation errors report a client mistake, not backend health, so
// they pass through without counting against the breaker.
type TTS struct {
	inner   tts.Provider
	breaker *CircuitBreaker
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTS)(nil)

// NewTTS wraps provider with a circuit breaker.
func NewTTS(provider tts.Provider, cfg CircuitBreakerConfig) *TTS {
	return &TTS{
		inner:   provider,
		breaker: NewCircuitBreaker(cfg),
	}
}

// Synthesize forwards to the wrapped provider when the breaker allows it.
func (p *TTS) Synthesize(ctx context.Context, req tts.Request) (tts.Result, error) {
	var (
		res    tts.Result
		reqErr error
	)
	err := p.breaker.Execute(func() error {
		r, err := p.inner.Synthesize(ctx, req)
		if errors.Is(err, tts.ErrInvalidRequest) {
			reqErr = err
			return nil
		}
		res = r
		return err
	})
	if reqErr != nil {
		return tts.Result{}, reqErr
	}
	if err != nil {
		return tts.Result{}, err
	}
	return res, nil
}

// State exposes the breaker state for diagnostics.
func (p *TTS) State() State {
	return p.breaker.State()
}
