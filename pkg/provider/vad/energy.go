package vad

import "math"

// DefaultEnergyThreshold is the RMS amplitude above which a chunk of 16-bit
// PCM counts as speech. 300 sits comfortably above typical room noise on
// consumer microphones while still catching quiet speech.
const DefaultEnergyThreshold = 300.0

// Energy is a Classifier that detects speech by root-mean-square amplitude.
// It is stateless and safe for concurrent use.
type Energy struct {
	threshold float64
}

// NewEnergy creates an RMS energy classifier. A threshold of zero or below
// falls back to [DefaultEnergyThreshold].
func NewEnergy(threshold float64) *Energy {
	if threshold <= 0 {
		threshold = DefaultEnergyThreshold
	}
	return &Energy{threshold: threshold}
}

// Classify reports whether the chunk's RMS amplitude exceeds the threshold.
// It never returns an error.
func (e *Energy) Classify(pcm []int16) (bool, error) {
	if len(pcm) == 0 {
		return false, nil
	}
	var sum float64
	for _, s := range pcm {
		f := float64(s)
		sum += f * f
	}
	rms := math.Sqrt(sum / float64(len(pcm)))
	return rms > e.threshold, nil
}

var _ Classifier = (*Energy)(nil)

// Always is a Classifier that reports a fixed result regardless of input.
// Always(true) disables silence gating entirely, which is useful for push-to-
// talk clients that only send audio while a button is held.
type Always bool

// Classify returns the fixed result.
func (a Always) Classify([]int16) (bool, error) {
	return bool(a), nil
}

var _ Classifier = Always(false)
