package karaoke

import (
	"context"
	"errors"
	"testing"

	"github.com/arbachegit/iconsai-core/pkg/provider/stt"
	sttmock "github.com/arbachegit/iconsai-core/pkg/provider/stt/mock"
	"github.com/arbachegit/iconsai-core/pkg/provider/tts"
	ttsmock "github.com/arbachegit/iconsai-core/pkg/provider/tts/mock"
	"github.com/arbachegit/iconsai-core/pkg/timing"
)

// alignmentFor spells "olá mundo" character by character at 0.1 s each.
func alignmentFor() *tts.CharAlignment {
	text := "olá mundo"
	a := &tts.CharAlignment{}
	t := 0.0
	for _, r := range text {
		a.Chars = append(a.Chars, string(r))
		a.Starts = append(a.Starts, t)
		a.Ends = append(a.Ends, t+0.1)
		t += 0.1
	}
	return a
}

func TestSynthesizeNativeAlignment(t *testing.T) {
	primary := &ttsmock.Provider{Default: tts.Result{
		Audio:    []byte("mp3"),
		MIMEType: "audio/mpeg",
		Chars:    alignmentFor(),
	}}

	s := NewSynthesizer(primary, nil)
	out, err := s.Synthesize(context.Background(), SynthRequest{Text: "olá mundo"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if out.Alignment != AlignmentNative {
		t.Errorf("alignment: got %q, want native", out.Alignment)
	}
	if out.Approximate {
		t.Error("native schedule must not be flagged approximate")
	}
	if len(out.Words) != 2 || out.Words[0].Word != "olá" || out.Words[1].Word != "mundo" {
		t.Errorf("words: got %+v", out.Words)
	}
	if out.Duration == 0 {
		t.Error("duration must be derived from the schedule")
	}
	if len(primary.Calls) != 1 || !primary.Calls[0].WithAlignment {
		t.Errorf("primary must be asked for alignment: %+v", primary.Calls)
	}
}

func TestSynthesizeRealignedFallback(t *testing.T) {
	primary := &ttsmock.Provider{Err: errors.New("upstream down")}
	fallback := &ttsmock.Provider{Default: tts.Result{Audio: []byte("mp3"), MIMEType: "audio/mpeg"}}
	realigner := &sttmock.Provider{Default: stt.Result{
		Text: "ola mundo",
		Words: []timing.WordTiming{
			{Word: "ola", Start: 0.1, End: 0.5},
			{Word: "mundo", Start: 0.6, End: 1.1},
		},
	}}

	s := NewSynthesizer(primary, nil, WithFallback(fallback), WithRealigner(realigner))
	out, err := s.Synthesize(context.Background(), SynthRequest{Text: "Olá mundo"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if out.Alignment != AlignmentRealigned {
		t.Errorf("alignment: got %q, want realigned", out.Alignment)
	}
	if out.Approximate {
		t.Error("realigned timing is measured, not approximate")
	}
	// Original spelling wins, transcribed timing is kept.
	if out.Words[0].Word != "Olá" || out.Words[0].Start != 0.1 {
		t.Errorf("re-alignment: got %+v", out.Words[0])
	}
	// The 0.1 s gap before "mundo" is bridged to avoid highlight flicker.
	if out.Words[0].End != 0.6 {
		t.Errorf("merged end: got %v, want 0.6", out.Words[0].End)
	}
	if len(realigner.EncodedCalls) != 1 || realigner.EncodedCalls[0].MIMEType != "audio/mpeg" {
		t.Errorf("realigner calls: %+v", realigner.EncodedCalls)
	}
	if len(fallback.Calls) != 1 || fallback.Calls[0].WithAlignment {
		t.Errorf("fallback must not be asked for alignment: %+v", fallback.Calls)
	}
}

func TestSynthesizeApproximateWhenRealignFails(t *testing.T) {
	primary := &ttsmock.Provider{Default: tts.Result{Audio: []byte("mp3"), MIMEType: "audio/mpeg"}}
	realigner := &sttmock.Provider{Err: errors.New("whisper down")}

	s := NewSynthesizer(primary, nil, WithRealigner(realigner))
	out, err := s.Synthesize(context.Background(), SynthRequest{Text: "bom dia para todos"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if out.Alignment != AlignmentApproximate {
		t.Errorf("alignment: got %q, want approximate", out.Alignment)
	}
	if !out.Approximate {
		t.Error("approximate schedule must be flagged")
	}
	if len(out.Words) != 4 {
		t.Errorf("words: got %d, want 4", len(out.Words))
	}
	if !timing.Sorted(out.Words) {
		t.Errorf("schedule must be ordered: %+v", out.Words)
	}
}

func TestSynthesizeApproximateWithoutRealigner(t *testing.T) {
	primary := &ttsmock.Provider{Default: tts.Result{Audio: []byte("mp3"), MIMEType: "audio/mpeg"}}

	s := NewSynthesizer(primary, nil)
	out, err := s.Synthesize(context.Background(), SynthRequest{Text: "olá"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if out.Alignment != AlignmentApproximate {
		t.Errorf("alignment: got %q, want approximate", out.Alignment)
	}
}

func TestSynthesizeNormalizesText(t *testing.T) {
	primary := &ttsmock.Provider{Default: tts.Result{Audio: []byte("mp3"), MIMEType: "audio/mpeg"}}

	s := NewSynthesizer(primary, nil)
	out, err := s.Synthesize(context.Background(), SynthRequest{Text: "custa R$ 2,00"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if out.Text != "custa dois reais" {
		t.Errorf("normalized text: got %q", out.Text)
	}
	if primary.Calls[0].Text != "custa dois reais" {
		t.Errorf("provider must receive normalized text, got %q", primary.Calls[0].Text)
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	s := NewSynthesizer(&ttsmock.Provider{}, nil)
	_, err := s.Synthesize(context.Background(), SynthRequest{Text: "   "})
	if !errors.Is(err, tts.ErrInvalidRequest) {
		t.Errorf("got %v, want ErrInvalidRequest", err)
	}
}

func TestSynthesizeInvalidRequestSkipsFallback(t *testing.T) {
	primary := &ttsmock.Provider{Err: tts.ErrInvalidRequest}
	fallback := &ttsmock.Provider{}

	s := NewSynthesizer(primary, nil, WithFallback(fallback))
	_, err := s.Synthesize(context.Background(), SynthRequest{Text: "olá"})
	if !errors.Is(err, tts.ErrInvalidRequest) {
		t.Fatalf("got %v, want ErrInvalidRequest", err)
	}
	if fallback.CallCount() != 0 {
		t.Error("fallback must not run for an invalid request")
	}
}

func TestSynthesizeAllProvidersFail(t *testing.T) {
	primary := &ttsmock.Provider{Err: errors.New("primary down")}
	fallback := &ttsmock.Provider{Err: errors.New("fallback down")}

	s := NewSynthesizer(primary, nil, WithFallback(fallback))
	_, err := s.Synthesize(context.Background(), SynthRequest{Text: "olá"})
	if err == nil {
		t.Fatal("expected error when every provider fails")
	}
}
