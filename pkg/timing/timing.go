// Package timing derives word-level caption timing from the raw timing data
// returned by speech providers.
//
// Synthesis providers report timing in one of three shapes, in decreasing
// order of fidelity:
//
//  1. Character-level alignment (ElevenLabs): [CharsToWords] collapses the
//     per-character start/end arrays into one [WordTiming] per word.
//  2. An independent transcription of the synthesized audio (OpenAI TTS +
//     Whisper): [AlignToText] maps the transcribed words back onto the
//     original text so captions show the intended spelling with measured
//     timing.
//  3. Nothing at all: [Approximate] estimates a schedule from a fixed
//     words-per-second rate. Schedules produced this way are flagged so
//     consumers can distinguish estimates from measurements.
//
// All functions in this package are pure; they allocate their results and
// never mutate their inputs.
package timing

import (
	"math"
	"sort"
)

// WordTiming is a single word with its playback window in seconds, measured
// from the start of the audio. Values are immutable once produced.
type WordTiming struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// boundary reports whether r terminates a word: any whitespace character or
// one of the terminal punctuation marks . , ! ? ; :
func boundary(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	case '.', ',', '!', '?', ';', ':':
		return true
	}
	return false
}

// CharsToWords converts character-level alignment into word-level timing.
//
// chars, starts, and ends are parallel arrays with one entry per character of
// the synthesized text. A word boundary is any whitespace or terminal
// punctuation character; boundary characters themselves are dropped (karaoke
// display never highlights standalone punctuation). A character whose timing
// entry is missing from the parallel arrays signals truncation: processing
// stops and the words derived so far are returned.
//
// An empty chars slice yields an empty (non-nil-safe) result, not an error.
// Returned words have non-decreasing start times as long as the input arrays
// do, which holds for every provider alignment observed so far.
func CharsToWords(chars []string, starts, ends []float64) []WordTiming {
	if len(chars) == 0 || len(starts) == 0 || len(ends) == 0 {
		return nil
	}

	var (
		words     []WordTiming
		current   []rune
		wordStart float64
		wordEnd   float64
		started   bool
	)

	flush := func() {
		if len(current) == 0 {
			return
		}
		words = append(words, WordTiming{
			Word:  string(current),
			Start: wordStart,
			End:   wordEnd,
		})
		current = current[:0]
		started = false
	}

	for i, c := range chars {
		if i >= len(starts) || i >= len(ends) {
			// Truncated alignment: keep what we have.
			break
		}

		isBoundary := true
		for _, r := range c {
			if !boundary(r) {
				isBoundary = false
				break
			}
		}
		if c == "" || isBoundary {
			flush()
			continue
		}

		if !started {
			wordStart = starts[i]
			started = true
		}
		current = append(current, []rune(c)...)
		wordEnd = ends[i]
	}
	flush()

	return words
}

// MergeAdjacent extends each word's end time up to the next word's start when
// the gap between them is positive but smaller than maxGap seconds. Small
// inter-word gaps otherwise read as flicker in karaoke display. Words are
// never merged into one entry; only end times are stretched.
func MergeAdjacent(words []WordTiming, maxGap float64) []WordTiming {
	if len(words) < 2 {
		return words
	}

	out := make([]WordTiming, len(words))
	copy(out, words)
	for i := 0; i < len(out)-1; i++ {
		gap := out[i+1].Start - out[i].End
		if gap > 0 && gap < maxGap {
			out[i].End = out[i+1].Start
		}
	}
	return out
}

// AddLookahead shifts every word earlier by lookaheadMs milliseconds,
// clamping at zero. The karaoke display needs words highlighted slightly
// before the audio reaches them so that network and render latency cancel
// out.
func AddLookahead(words []WordTiming, lookaheadMs float64) []WordTiming {
	if len(words) == 0 {
		return words
	}

	offset := lookaheadMs / 1000.0
	out := make([]WordTiming, len(words))
	for i, w := range words {
		out[i] = WordTiming{
			Word:  w.Word,
			Start: math.Max(0, w.Start-offset),
			End:   math.Max(0, w.End-offset),
		}
	}
	return out
}

// Sorted reports whether the words have non-decreasing start times. A false
// result indicates a deriver bug upstream; callers should re-sort or reject
// the sequence before emitting it to a client.
func Sorted(words []WordTiming) bool {
	for i := 1; i < len(words); i++ {
		if words[i].Start < words[i-1].Start {
			return false
		}
	}
	return true
}

// Sort orders words by non-decreasing start time, in place. Stable so words
// sharing a start keep their text order. Use it to repair a schedule that
// fails [Sorted] before emitting it.
func Sort(words []WordTiming) {
	sort.SliceStable(words, func(i, j int) bool {
		return words[i].Start < words[j].Start
	})
}

// Round3 rounds t to millisecond precision for serialization. Provider
// alignments carry more precision than any display can use, and shorter JSON
// keeps event frames small.
func Round3(t float64) float64 {
	return math.Round(t*1000) / 1000
}
