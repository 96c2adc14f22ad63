// Package openai provides an STT provider backed by the OpenAI transcription
// API (whisper-1).
//
// Unlike the local whisper.cpp backend this provider supports word-level
// timestamps: when Request.WantWords is set it asks for verbose JSON with
// word timestamp granularity, which is what the karaoke re-alignment path
// needs to map synthesized audio back onto its source text.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/arbachegit/iconsai-core/pkg/provider/stt"
	"github.com/arbachegit/iconsai-core/pkg/timing"
)

// DefaultModel is the transcription model used when none is configured.
// whisper-1 is the only OpenAI model that reports word timestamps.
const DefaultModel = oai.AudioModelWhisper1

const defaultSampleRate = 16000

var (
	_ stt.Provider  = (*Provider)(nil)
	_ stt.Realigner = (*Provider)(nil)
)

// transcriptionVerbose is the verbose_json transcription response shape. The
// openai-go SDK does not model this response, so it is decoded into this
// struct via option.WithResponseBodyInto.
type transcriptionVerbose struct {
	Text  string `json:"text"`
	Words []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
}

// Provider implements stt.Provider using the OpenAI transcription API.
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

// New constructs a new OpenAI STT Provider. If model is empty, DefaultModel
// (whisper-1) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai stt: apiKey must not be empty")
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

// Transcribe implements stt.Provider. An empty buffer yields an empty result
// without touching the network.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (stt.Result, error) {
	if len(req.PCM) == 0 {
		return stt.Result{}, nil
	}

	sr := req.SampleRate
	if sr <= 0 {
		sr = defaultSampleRate
	}
	wav := bytes.NewReader(stt.EncodeWAV(req.PCM, sr))

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(wav, "audio.wav", "audio/wav"),
		Model: p.model,
	}
	if req.Language != "" {
		params.Language = param.NewOpt(req.Language)
	}

	if !req.WantWords {
		resp, err := p.client.Audio.Transcriptions.New(ctx, params)
		if err != nil {
			return stt.Result{}, fmt.Errorf("openai stt: transcribe: %w", err)
		}
		return stt.Result{Text: strings.TrimSpace(resp.Text)}, nil
	}

	// Word timestamps require verbose JSON, which is a superset of the
	// default transcription shape. Decode the body into the verbose type
	// directly instead of the params' declared response type.
	params.ResponseFormat = oai.AudioResponseFormatVerboseJSON
	params.TimestampGranularities = []string{"word"}

	var verbose transcriptionVerbose
	_, err := p.client.Audio.Transcriptions.New(ctx, params,
		option.WithResponseBodyInto(&verbose))
	if err != nil {
		return stt.Result{}, fmt.Errorf("openai stt: transcribe with words: %w", err)
	}

	words := make([]timing.WordTiming, 0, len(verbose.Words))
	for _, w := range verbose.Words {
		words = append(words, timing.WordTiming{
			Word:  w.Word,
			Start: w.Start,
			End:   w.End,
		})
	}

	return stt.Result{
		Text:  strings.TrimSpace(verbose.Text),
		Words: words,
	}, nil
}

// TranscribeEncoded implements stt.Realigner. It sends an already-encoded
// audio file (typically the MP3 a TTS provider produced) and always requests
// word timestamps, since recovering timing is the only reason to transcribe
// synthesized speech.
func (p *Provider) TranscribeEncoded(ctx context.Context, req stt.EncodedRequest) (stt.Result, error) {
	if len(req.Audio) == 0 {
		return stt.Result{}, nil
	}

	params := oai.AudioTranscriptionNewParams{
		File:                   oai.File(bytes.NewReader(req.Audio), filenameFor(req.MIMEType), req.MIMEType),
		Model:                  p.model,
		ResponseFormat:         oai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"word"},
	}
	if req.Language != "" {
		params.Language = param.NewOpt(req.Language)
	}

	var verbose transcriptionVerbose
	_, err := p.client.Audio.Transcriptions.New(ctx, params,
		option.WithResponseBodyInto(&verbose))
	if err != nil {
		return stt.Result{}, fmt.Errorf("openai stt: transcribe encoded: %w", err)
	}

	words := make([]timing.WordTiming, 0, len(verbose.Words))
	for _, w := range verbose.Words {
		words = append(words, timing.WordTiming{
			Word:  w.Word,
			Start: w.Start,
			End:   w.End,
		})
	}

	return stt.Result{
		Text:  strings.TrimSpace(verbose.Text),
		Words: words,
	}, nil
}

func filenameFor(mimeType string) string {
	switch mimeType {
	case "audio/mpeg", "audio/mp3":
		return "audio.mp3"
	case "audio/wav", "audio/x-wav":
		return "audio.wav"
	case "audio/ogg":
		return "audio.ogg"
	default:
		return "audio.bin"
	}
}
