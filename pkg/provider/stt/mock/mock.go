// Package mock provides a test double for the stt package interfaces.
//
// Script per-call results with Results; inspect submitted audio through
// Calls:
//
//	p := &mock.Provider{Results: []stt.Result{{Text: "olá"}}}
package mock

import (
	"context"
	"sync"

	"github.com/arbachegit/iconsai-core/pkg/provider/stt"
)

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Results is consumed one entry per Transcribe call. When exhausted (or
	// empty), Transcribe returns Default.
	Results []stt.Result

	// Default is returned once Results runs out.
	Default stt.Result

	// Err, if non-nil, is returned by every Transcribe call.
	Err error

	// Calls records every request passed to Transcribe, in order. PCM slices
	// are copied.
	Calls []stt.Request

	// EncodedCalls records every request passed to TranscribeEncoded.
	EncodedCalls []stt.EncodedRequest

	next int
}

// Transcribe records the call and returns the next scripted result.
func (p *Provider) Transcribe(_ context.Context, req stt.Request) (stt.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cp := req
	cp.PCM = make([]int16, len(req.PCM))
	copy(cp.PCM, req.PCM)
	p.Calls = append(p.Calls, cp)

	if p.Err != nil {
		return stt.Result{}, p.Err
	}
	if p.next < len(p.Results) {
		r := p.Results[p.next]
		p.next++
		return r, nil
	}
	return p.Default, nil
}

// TranscribeEncoded records the call and returns the next scripted result.
// It shares the Results script and Err with Transcribe.
func (p *Provider) TranscribeEncoded(_ context.Context, req stt.EncodedRequest) (stt.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cp := req
	cp.Audio = make([]byte, len(req.Audio))
	copy(cp.Audio, req.Audio)
	p.EncodedCalls = append(p.EncodedCalls, cp)

	if p.Err != nil {
		return stt.Result{}, p.Err
	}
	if p.next < len(p.Results) {
		r := p.Results[p.next]
		p.next++
		return r, nil
	}
	return p.Default, nil
}

// CallCount returns the number of Transcribe calls so far. Thread-safe.
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
	p.EncodedCalls = nil
	p.next = 0
}

var (
	_ stt.Provider  = (*Provider)(nil)
	_ stt.Realigner = (*Provider)(nil)
)
