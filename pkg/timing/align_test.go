package timing_test

import (
	"testing"

	"github.com/arbachegit/iconsai-core/pkg/timing"
)

func words(pairs ...any) []timing.WordTiming {
	out := make([]timing.WordTiming, 0, len(pairs)/3)
	for i := 0; i+2 < len(pairs); i += 3 {
		out = append(out, timing.WordTiming{
			Word:  pairs[i].(string),
			Start: pairs[i+1].(float64),
			End:   pairs[i+2].(float64),
		})
	}
	return out
}

func TestAlignToText(t *testing.T) {
	tests := []struct {
		name        string
		original    string
		transcribed []timing.WordTiming
		wantWords   []string
	}{
		{
			name:        "exact match keeps original spelling",
			original:    "Olá, mundo!",
			transcribed: words("ola", 0.0, 0.3, "mundo", 0.4, 0.8),
			wantWords:   []string{"Olá", "mundo"},
		},
		{
			name:        "near match via similarity",
			original:    "São Paulo",
			transcribed: words("sao", 0.0, 0.3, "paulo", 0.4, 0.8),
			wantWords:   []string{"São", "Paulo"},
		},
		{
			name:        "mismatch keeps transcription",
			original:    "vinte reais",
			transcribed: words("vinte", 0.0, 0.3, "graus", 0.4, 0.8),
			wantWords:   []string{"vinte", "graus"},
		},
		{
			name:        "extra transcribed words pass through",
			original:    "oi",
			transcribed: words("oi", 0.0, 0.2, "tudo", 0.3, 0.5, "bem", 0.6, 0.8),
			wantWords:   []string{"oi", "tudo", "bem"},
		},
		{
			name:        "prefix relation accepted",
			original:    "cantando alto",
			transcribed: words("cantand", 0.0, 0.4, "alto", 0.5, 0.8),
			wantWords:   []string{"cantando", "alto"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := timing.AlignToText(tt.original, tt.transcribed)

			if len(got) != len(tt.wantWords) {
				t.Fatalf("got %d words, want %d: %+v", len(got), len(tt.wantWords), got)
			}
			for i, w := range tt.wantWords {
				if got[i].Word != w {
					t.Errorf("word %d: got %q, want %q", i, got[i].Word, w)
				}
				// Timing always comes from the transcription.
				if got[i].Start != tt.transcribed[i].Start || got[i].End != tt.transcribed[i].End {
					t.Errorf("word %d timing changed: got %+v, want %+v", i, got[i], tt.transcribed[i])
				}
			}
		})
	}
}

func TestAlignToTextEmpty(t *testing.T) {
	if got := timing.AlignToText("olá", nil); got != nil {
		t.Errorf("empty transcription: got %+v, want nil", got)
	}

	tr := words("oi", 0.0, 0.2)
	got := timing.AlignToText("", tr)
	if len(got) != 1 || got[0].Word != "oi" {
		t.Errorf("empty original should pass transcription through, got %+v", got)
	}
}
