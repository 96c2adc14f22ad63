// Package mock provides test doubles for the vad package interfaces.
//
// Use Classifier to script speech/silence answers and inspect the chunks that
// were submitted for classification:
//
//	cls := &mock.Classifier{Results: []bool{true, true, false}}
package mock

import (
	"sync"

	"github.com/arbachegit/iconsai-core/pkg/provider/vad"
)

// Classifier is a mock implementation of vad.Classifier.
type Classifier struct {
	mu sync.Mutex

	// Results is consumed one entry per Classify call. When exhausted (or
	// empty), Classify returns Default.
	Results []bool

	// Default is returned once Results runs out.
	Default bool

	// Err, if non-nil, is returned by every Classify call.
	Err error

	// Calls records the length of every chunk passed to Classify, in order.
	Calls []int

	next int
}

// Classify records the call and returns the next scripted result.
func (c *Classifier) Classify(pcm []int16) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, len(pcm))
	if c.Err != nil {
		return false, c.Err
	}
	if c.next < len(c.Results) {
		r := c.Results[c.next]
		c.next++
		return r, nil
	}
	return c.Default, nil
}

// Reset clears recorded calls and rewinds the scripted results. Thread-safe.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = nil
	c.next = 0
}

var _ vad.Classifier = (*Classifier)(nil)
