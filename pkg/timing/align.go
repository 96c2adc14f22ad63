package timing

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// alignSimilarityThreshold is the minimum Jaro-Winkler score at which a
// transcribed word is considered "the same word, spelled differently" as the
// original and the original spelling wins.
const alignSimilarityThreshold = 0.85

// AlignToText maps words transcribed from synthesized audio back onto the
// text that was sent for synthesis, keeping the transcription's measured
// timing but preferring the original spelling wherever the two plausibly
// refer to the same word.
//
// Alignment is positional: the i-th transcribed word is compared against the
// i-th whitespace token of originalText. The comparison normalizes both sides
// (lowercase, punctuation stripped) and accepts exact equality, a prefix
// relationship in either direction, or a Jaro-Winkler similarity of at least
// 0.85. On acceptance the original token is used with trailing terminal
// punctuation removed; otherwise the transcribed word passes through
// unchanged. Transcribed words beyond the end of originalText are kept
// verbatim.
//
// This is a heuristic, not a guaranteed alignment: it assumes the
// transcription neither drops nor invents words, which holds well for clean
// synthesized audio but degrades when word counts diverge.
func AlignToText(originalText string, transcribed []WordTiming) []WordTiming {
	if len(transcribed) == 0 {
		return nil
	}

	original := strings.Fields(originalText)
	if len(original) == 0 {
		out := make([]WordTiming, len(transcribed))
		copy(out, transcribed)
		return out
	}

	aligned := make([]WordTiming, 0, len(transcribed))
	for i, tw := range transcribed {
		if i >= len(original) {
			aligned = append(aligned, tw)
			continue
		}

		orig := original[i]
		if sameWord(orig, tw.Word) {
			aligned = append(aligned, WordTiming{
				Word:  strings.TrimRight(orig, ".,!?;:"),
				Start: tw.Start,
				End:   tw.End,
			})
		} else {
			aligned = append(aligned, tw)
		}
	}
	return aligned
}

// sameWord decides whether two differently-spelled words refer to the same
// spoken word.
func sameWord(a, b string) bool {
	na := normalizeWord(a)
	nb := normalizeWord(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb || strings.HasPrefix(na, nb) || strings.HasPrefix(nb, na) {
		return true
	}
	return matchr.JaroWinkler(na, nb, true) >= alignSimilarityThreshold
}

// normalizeWord lowercases s and strips everything that is not a letter or
// digit, so "Olá," and "ola" compare equal in languages where the provider
// drops diacritics but keeps the word.
func normalizeWord(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
