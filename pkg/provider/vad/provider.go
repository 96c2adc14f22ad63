// Package vad defines the Classifier interface for voice activity detection.
//
// The realtime transcription pipeline calls a Classifier on every buffered
// audio chunk to decide whether the user is currently speaking. The result
// gates segmentation: a speaking classification opens or extends a speech
// segment, a silence classification counts toward the minimum-silence window
// that closes it.
//
// Classification is synchronous by design: Classify returns immediately,
// making it suitable for the low-latency loop that feeds STT. Implementations
// must be safe for concurrent use; the pipeline may run many sessions at once
// against a single shared Classifier.
package vad

// Classifier decides whether a chunk of audio contains speech.
type Classifier interface {
	// Classify reports whether the given 16-bit mono PCM samples contain
	// speech. An empty chunk is silence. Returns an error only on internal
	// failure (a model backend going away, for example); energy-based
	// implementations never fail.
	Classify(pcm []int16) (bool, error)
}
