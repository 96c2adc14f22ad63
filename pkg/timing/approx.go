package timing

import "strings"

// DefaultWordsPerSecond is the speaking rate assumed when no timing data is
// available from the provider at all.
const DefaultWordsPerSecond = 2.5

// referenceWordLen is the word length (in runes) that receives exactly the
// base duration in an approximate schedule. Longer words get proportionally
// more time, capped at twice the base.
const referenceWordLen = 5

// Schedule is a derived word timing sequence together with its provenance.
// Approximate is true when the timing was estimated from a words-per-second
// rate rather than measured from provider alignment or transcription —
// consumers must be able to tell the two apart because an estimate drifts
// over long utterances.
type Schedule struct {
	Words       []WordTiming
	Approximate bool
}

// Measured wraps precisely-derived words in a Schedule.
func Measured(words []WordTiming) Schedule {
	return Schedule{Words: words}
}

// Approximate builds an estimated schedule for text by distributing a fixed
// speaking rate across its whitespace-delimited tokens. Each word's duration
// is the base duration (1/wordsPerSecond) weighted by word length relative to
// a five-rune reference word and capped at twice the base, so "a" and
// "extraordinariamente" do not get equal screen time. Onsets are strictly
// non-decreasing by construction.
//
// A wordsPerSecond of zero or below falls back to [DefaultWordsPerSecond].
func Approximate(text string, wordsPerSecond float64) Schedule {
	if wordsPerSecond <= 0 {
		wordsPerSecond = DefaultWordsPerSecond
	}

	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return Schedule{Approximate: true}
	}

	base := 1.0 / wordsPerSecond
	words := make([]WordTiming, 0, len(tokens))

	cursor := 0.0
	for _, tok := range tokens {
		weight := float64(len([]rune(tok))) / referenceWordLen
		if weight < 0.5 {
			weight = 0.5
		}
		if weight > 2.0 {
			weight = 2.0
		}
		dur := base * weight

		words = append(words, WordTiming{
			Word:  strings.TrimRight(tok, ".,!?;:"),
			Start: cursor,
			End:   cursor + dur,
		})
		cursor += dur
	}

	return Schedule{Words: words, Approximate: true}
}
