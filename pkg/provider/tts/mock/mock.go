// Package mock provides a test double for the tts package interfaces.
//
// Script per-call results with Results; inspect submitted requests through
// Calls:
//
//	p := &mock.Provider{Results: []tts.Result{{Audio: mp3, MIMEType: "audio/mpeg"}}}
package mock

import (
	"context"
	"sync"

	"github.com/arbachegit/iconsai-core/pkg/provider/tts"
)

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Results is consumed one entry per Synthesize call. When exhausted (or
	// empty), Synthesize returns Default.
	Results []tts.Result

	// Default is returned once Results runs out.
	Default tts.Result

	// Err, if non-nil, is returned by every Synthesize call.
	Err error

	// Calls records every request passed to Synthesize, in order.
	Calls []tts.Request

	next int
}

// Synthesize records the call and returns the next scripted result.
func (p *Provider) Synthesize(_ context.Context, req tts.Request) (tts.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, req)
	if p.Err != nil {
		return tts.Result{}, p.Err
	}
	if p.next < len(p.Results) {
		r := p.Results[p.next]
		p.next++
		return r, nil
	}
	return p.Default, nil
}

// CallCount returns the number of Synthesize calls so far. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears recorded calls and rewinds the scripted results. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
	p.next = 0
}

var _ tts.Provider = (*Provider)(nil)
