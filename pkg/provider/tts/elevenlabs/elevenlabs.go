// Package elevenlabs provides an ElevenLabs-backed TTS provider.
//
// It is the preferred backend because the with-timestamps endpoint returns
// character-level alignment in the same response as the audio, so no
// re-alignment pass is needed. It implements the tts.Provider interface.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/arbachegit/iconsai-core/pkg/provider/tts"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io/v1"
	defaultModel   = "eleven_turbo_v2_5"

	// DefaultVoiceID is Rachel, which handles Brazilian Portuguese well.
	DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
)

// voiceAliases maps OpenAI-style voice names onto ElevenLabs voice IDs so
// clients can switch providers without changing their voice parameter.
var voiceAliases = map[string]string{
	"default": DefaultVoiceID,
	"nova":    DefaultVoiceID,           // Rachel
	"alloy":   "pNInz6obpgDQGcFmaJgB",   // Adam
	"shimmer": "MF3mGyEYCl7XYWbV9V6O",   // Elli
	"echo":    "VR6AewLTigWG4xSOukaG",   // Arnold
	"fable":   "jsCqWAovK2LkecY7zXl4",   // Callum
	"onyx":    "ODq5zmih8GrVes37Dizd",   // Patrick
}

var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g. "eleven_turbo_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithVoiceID sets the default voice used when a request names none.
func WithVoiceID(id string) Option {
	return func(p *Provider) {
		p.voiceID = id
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient replaces the HTTP client. The default has a 60 s timeout to
// accommodate long synthesis requests.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// Provider implements tts.Provider backed by the ElevenLabs REST API.
type Provider struct {
	apiKey     string
	model      string
	voiceID    string
	baseURL    string
	httpClient *http.Client
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		voiceID:    DefaultVoiceID,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// resolveVoice turns a request voice parameter into an ElevenLabs voice ID.
// Anything longer than 15 characters is assumed to already be an ID
// (ElevenLabs IDs run about 20 characters).
func (p *Provider) resolveVoice(voice string) string {
	if voice == "" {
		return p.voiceID
	}
	if len(voice) > 15 {
		return voice
	}
	if id, ok := voiceAliases[strings.ToLower(voice)]; ok {
		return id
	}
	return p.voiceID
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
}

// synthesizeRequest is the JSON payload for both synthesis endpoints.
type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// timestampsResponse is the body of a with-timestamps response.
type timestampsResponse struct {
	AudioBase64 string            `json:"audio_base64"`
	Alignment   tts.CharAlignment `json:"alignment"`
}

// errorResponse is the body ElevenLabs sends with 4xx statuses.
type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// Synthesize implements tts.Provider. With alignment requested it calls the
// with-timestamps endpoint and returns character timing alongside the audio;
// without it the plain endpoint returns raw MP3 bytes.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (tts.Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return tts.Result{}, fmt.Errorf("elevenlabs: empty text: %w", tts.ErrInvalidRequest)
	}
	if len(req.Text) > tts.MaxTextLength {
		return tts.Result{}, fmt.Errorf("elevenlabs: text exceeds %d characters: %w",
			tts.MaxTextLength, tts.ErrInvalidRequest)
	}

	voiceID := p.resolveVoice(req.Voice)
	payload := synthesizeRequest{
		Text:    text,
		ModelID: p.model,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return tts.Result{}, fmt.Errorf("elevenlabs: marshal payload: %w", err)
	}

	endpoint := p.baseURL + "/text-to-speech/" + voiceID
	if req.WithAlignment {
		endpoint += "/with-timestamps"
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return tts.Result{}, fmt.Errorf("elevenlabs: create request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if !req.WithAlignment {
		httpReq.Header.Set("Accept", "audio/mpeg")
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return tts.Result{}, fmt.Errorf("elevenlabs: http request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return tts.Result{}, err
	}

	if !req.WithAlignment {
		audio, err := io.ReadAll(resp.Body)
		if err != nil {
			return tts.Result{}, fmt.Errorf("elevenlabs: read audio: %w", err)
		}
		return tts.Result{Audio: audio, MIMEType: "audio/mpeg", Text: text}, nil
	}

	var tr timestampsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return tts.Result{}, fmt.Errorf("elevenlabs: decode response: %w", err)
	}
	audio, err := base64.StdEncoding.DecodeString(tr.AudioBase64)
	if err != nil {
		return tts.Result{}, fmt.Errorf("elevenlabs: decode audio: %w", err)
	}

	res := tts.Result{Audio: audio, MIMEType: "audio/mpeg", Text: text}
	if len(tr.Alignment.Chars) > 0 {
		alignment := tr.Alignment
		res.Chars = &alignment
	}
	return res, nil
}

// checkStatus maps ElevenLabs HTTP errors onto the tts sentinel errors.
func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("elevenlabs: invalid API key: %w", tts.ErrUnauthorized)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("elevenlabs: %w", tts.ErrRateLimited)
	case resp.StatusCode == http.StatusBadRequest:
		var er errorResponse
		detail := "unknown error"
		if err := json.NewDecoder(resp.Body).Decode(&er); err == nil && len(er.Detail) > 0 {
			detail = string(er.Detail)
		}
		return fmt.Errorf("elevenlabs: bad request: %s: %w", detail, tts.ErrInvalidRequest)
	default:
		return fmt.Errorf("elevenlabs: unexpected status %d", resp.StatusCode)
	}
}
