// Package openai provides an OpenAI-backed TTS provider (gpt-4o-mini-tts).
//
// It is the fallback backend: the speech API returns audio only, with no
// timing data, so Request.WithAlignment is ignored and callers that need word
// timing must transcribe the result (see the stt/openai package) or fall back
// to an estimated schedule.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/arbachegit/iconsai-core/pkg/provider/tts"
)

// DefaultModel is the speech model used when none is configured.
const DefaultModel = oai.SpeechModelGPT4oMiniTTS

// DefaultVoice works well for Brazilian Portuguese.
const DefaultVoice = "nova"

// voices lists the voice names gpt-4o-mini-tts accepts.
var voices = map[string]bool{
	"alloy": true, "ash": true, "ballad": true, "coral": true, "echo": true,
	"fable": true, "onyx": true, "nova": true, "sage": true, "shimmer": true,
	"verse": true, "marin": true, "cedar": true,
}

// instructions are per-style delivery presets. The speech model takes free
// text instructions that shape affect, tone, and pacing.
var instructions = map[string]string{
	"default": "Voice Affect: Warm, calm, and genuinely welcoming.\n" +
		"Tone: Conversational with Brazilian Portuguese warmth.\n" +
		"Pacing: Natural and unhurried with organic rhythm.\n" +
		"Emotion: Subtly expressive with genuine warmth.",
	"health": "Voice Affect: Warm, caring, and gently reassuring.\n" +
		"Tone: Compassionate and supportive with calm confidence.\n" +
		"Pacing: Calm and unhurried, creating safety.\n" +
		"Emotion: Deeply empathetic with subtle warmth.",
	"ideas": "Voice Affect: Enthusiastic, curious, and energized.\n" +
		"Tone: Playful yet thoughtful, encouraging exploration.\n" +
		"Pacing: Dynamic - speeds up with excitement.\n" +
		"Emotion: Openly enthusiastic and curious.",
	"world": "Voice Affect: Knowledgeable, clear, and engaging.\n" +
		"Tone: Educational but never condescending.\n" +
		"Pacing: Steady with natural pauses between points.\n" +
		"Emotion: Curious and genuinely interested.",
	"help": "Voice Affect: Warm, friendly, and helpful.\n" +
		"Tone: Approachable like a knowledgeable friend.\n" +
		"Pacing: Natural rhythm with patient explanations.\n" +
		"Emotion: Genuinely interested and engaged.",
}

var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider using the OpenAI speech API.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI TTS Provider. If model is empty, DefaultModel
// (gpt-4o-mini-tts) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai tts: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{client: client, model: model}, nil
}

// voiceFor validates a requested voice name, falling back to DefaultVoice.
func voiceFor(name string) string {
	if name != "" && voices[strings.ToLower(name)] {
		return strings.ToLower(name)
	}
	return DefaultVoice
}

// instructionsFor returns the delivery preset for a style, falling back to
// the default preset.
func instructionsFor(style string) string {
	if s, ok := instructions[style]; ok {
		return s
	}
	return instructions["default"]
}

// Synthesize implements tts.Provider. The result never carries alignment.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (tts.Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return tts.Result{}, fmt.Errorf("openai tts: empty text: %w", tts.ErrInvalidRequest)
	}
	if len(req.Text) > tts.MaxTextLength {
		return tts.Result{}, fmt.Errorf("openai tts: text exceeds %d characters: %w",
			tts.MaxTextLength, tts.ErrInvalidRequest)
	}

	params := oai.AudioSpeechNewParams{
		Model:          p.model,
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(voiceFor(req.Voice)),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatMP3,
		Instructions:   param.NewOpt(instructionsFor(req.Style)),
	}
	if req.Speed > 0 && req.Speed != 1.0 {
		params.Speed = param.NewOpt(req.Speed)
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return tts.Result{}, mapError(err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Result{}, fmt.Errorf("openai tts: read audio: %w", err)
	}

	return tts.Result{Audio: audio, MIMEType: "audio/mpeg", Text: text}, nil
}

// mapError translates OpenAI API errors onto the tts sentinel errors.
func mapError(err error) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("openai tts: invalid API key: %w", tts.ErrUnauthorized)
		case http.StatusTooManyRequests:
			return fmt.Errorf("openai tts: %w", tts.ErrRateLimited)
		case http.StatusBadRequest:
			return fmt.Errorf("openai tts: %v: %w", apiErr, tts.ErrInvalidRequest)
		}
	}
	return fmt.Errorf("openai tts: synthesize: %w", err)
}
