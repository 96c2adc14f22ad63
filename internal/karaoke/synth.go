package karaoke

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/arbachegit/iconsai-core/internal/textnorm"
	"github.com/arbachegit/iconsai-core/pkg/provider/stt"
	"github.com/arbachegit/iconsai-core/pkg/provider/tts"
	"github.com/arbachegit/iconsai-core/pkg/timing"
)

// Alignment identifies how a caption schedule was produced, from most to
// least precise.
type Alignment string

const (
	// AlignmentNative means the TTS provider reported character timing and
	// the words were derived from it directly.
	AlignmentNative Alignment = "native"

	// AlignmentRealigned means the synthesized audio was transcribed again
	// and the recovered word timing was matched back onto the source text.
	AlignmentRealigned Alignment = "realigned"

	// AlignmentApproximate means no timing was available and the schedule is
	// an estimate from a fixed words-per-second rate.
	AlignmentApproximate Alignment = "approximate"
)

// SynthRequest describes one caption-synchronized synthesis.
type SynthRequest struct {
	// Text is the raw text to speak. It is normalized for speech (numbers,
	// currency, phonetic substitutions) before synthesis.
	Text string

	// Voice, Speed and Style pass through to the TTS provider.
	Voice string
	Speed float64
	Style string

	// Language hints the re-alignment transcription. Empty means "pt".
	Language string

	// PhoneticMap adds per-request pronunciation overrides on top of the
	// built-in map.
	PhoneticMap map[string]string
}

// SynthResult is synthesized speech plus its word-level caption schedule.
type SynthResult struct {
	Audio    []byte
	MIMEType string

	// Text is the normalized text that was actually synthesized.
	Text string

	// Words is the caption schedule, sorted by start time.
	Words []timing.WordTiming

	// Duration is the schedule's end in seconds, zero when unknown.
	Duration float64

	// Alignment records which path produced Words.
	Alignment Alignment

	// Approximate is true when Words is an estimate rather than a
	// measurement, i.e. for AlignmentApproximate schedules.
	Approximate bool
}

// mergeMaxGap is the largest inter-word silence, in seconds, bridged when
// smoothing a re-aligned caption schedule.
const mergeMaxGap = 0.3

// Synthesizer runs the synthesis fallback chain: a primary provider with
// native character alignment, a fallback provider whose audio is re-aligned
// by transcribing it, and finally an approximate schedule when no timing
// source is available. Audio is never discarded because timing failed; the
// schedule just degrades.
type Synthesizer struct {
	primary  tts.Provider
	fallback tts.Provider  // optional
	realign  stt.Realigner // optional
	wps      float64
	log      *slog.Logger
}

// SynthOption configures a Synthesizer.
type SynthOption func(*Synthesizer)

// WithFallback sets the secondary TTS provider tried when the primary fails.
func WithFallback(p tts.Provider) SynthOption {
	return func(s *Synthesizer) { s.fallback = p }
}

// WithRealigner sets the transcription backend used to recover word timing
// from audio that came without alignment.
func WithRealigner(r stt.Realigner) SynthOption {
	return func(s *Synthesizer) { s.realign = r }
}

// WithWordsPerSecond overrides the rate used for approximate schedules.
func WithWordsPerSecond(wps float64) SynthOption {
	return func(s *Synthesizer) {
		if wps > 0 {
			s.wps = wps
		}
	}
}

// NewSynthesizer creates a Synthesizer around the primary TTS provider. A nil
// logger falls back to slog.Default.
func NewSynthesizer(primary tts.Provider, log *slog.Logger, opts ...SynthOption) *Synthesizer {
	if log == nil {
		log = slog.Default()
	}
	s := &Synthesizer{
		primary: primary,
		wps:     timing.DefaultWordsPerSecond,
		log:     log,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Synthesize runs the fallback chain for one utterance.
func (s *Synthesizer) Synthesize(ctx context.Context, req SynthRequest) (SynthResult, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return SynthResult{}, fmt.Errorf("%w: empty text", tts.ErrInvalidRequest)
	}
	if utf8.RuneCountInString(text) > tts.MaxTextLength {
		return SynthResult{}, fmt.Errorf("%w: text exceeds %d characters", tts.ErrInvalidRequest, tts.MaxTextLength)
	}

	norm := textnorm.Prepare(text, req.PhoneticMap)
	ttsReq := tts.Request{
		Text:          norm,
		Voice:         req.Voice,
		Speed:         req.Speed,
		Style:         req.Style,
		WithAlignment: true,
	}

	res, primaryErr := s.primary.Synthesize(ctx, ttsReq)
	if primaryErr == nil {
		return s.schedule(ctx, res, norm, req.Language), nil
	}
	if errors.Is(primaryErr, tts.ErrInvalidRequest) {
		// The text itself was rejected; another provider will reject it too.
		return SynthResult{}, primaryErr
	}
	s.log.Warn("primary synthesis failed", "err", primaryErr)

	if s.fallback == nil {
		return SynthResult{}, fmt.Errorf("karaoke: synthesis failed: %w", primaryErr)
	}

	ttsReq.WithAlignment = false
	res, err := s.fallback.Synthesize(ctx, ttsReq)
	if err != nil {
		return SynthResult{}, fmt.Errorf("karaoke: all synthesis providers failed: %w", errors.Join(primaryErr, err))
	}
	return s.schedule(ctx, res, norm, req.Language), nil
}

// schedule derives the best caption schedule available for synthesized audio.
func (s *Synthesizer) schedule(ctx context.Context, res tts.Result, norm, language string) SynthResult {
	out := SynthResult{
		Audio:    res.Audio,
		MIMEType: res.MIMEType,
		Text:     norm,
	}

	if res.Chars != nil {
		out.Words = timing.CharsToWords(res.Chars.Chars, res.Chars.Starts, res.Chars.Ends)
		out.Alignment = AlignmentNative
		s.ensureSorted(out.Words, out.Alignment)
		out.Duration = scheduleEnd(out.Words)
		return out
	}

	if words, ok := s.realignAudio(ctx, res, norm, language); ok {
		out.Words = words
		out.Alignment = AlignmentRealigned
		s.ensureSorted(out.Words, out.Alignment)
		out.Duration = scheduleEnd(out.Words)
		return out
	}

	sched := timing.Approximate(norm, s.wps)
	out.Words = sched.Words
	out.Alignment = AlignmentApproximate
	out.Approximate = true
	out.Duration = scheduleEnd(sched.Words)
	return out
}

// realignAudio transcribes the synthesized audio and maps the recovered
// timing back onto the normalized source text. Any failure degrades to the
// approximate path rather than surfacing an error.
func (s *Synthesizer) realignAudio(ctx context.Context, res tts.Result, norm, language string) ([]timing.WordTiming, bool) {
	if s.realign == nil {
		return nil, false
	}
	if language == "" {
		language = "pt"
	}

	r, err := s.realign.TranscribeEncoded(ctx, stt.EncodedRequest{
		Audio:    res.Audio,
		MIMEType: res.MIMEType,
		Language: language,
	})
	if err != nil {
		s.log.Warn("re-alignment transcription failed", "err", err)
		return nil, false
	}
	if len(r.Words) == 0 {
		return nil, false
	}
	words := timing.AlignToText(norm, r.Words)
	// Transcription leaves small gaps between words that read as highlight
	// flicker; stretch each word up to the next one's onset.
	return timing.MergeAdjacent(words, mergeMaxGap), true
}

// ensureSorted repairs a schedule whose provider timing arrived out of order.
// Clients highlight words by scanning forward, so emission order must match
// start-time order.
func (s *Synthesizer) ensureSorted(words []timing.WordTiming, source Alignment) {
	if timing.Sorted(words) {
		return
	}
	s.log.Warn("caption schedule out of order, re-sorting", "alignment", string(source))
	timing.Sort(words)
}

func scheduleEnd(words []timing.WordTiming) float64 {
	if len(words) == 0 {
		return 0
	}
	return words[len(words)-1].End
}
