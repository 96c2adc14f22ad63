// Package config provides the configuration schema, loader, and file watcher
// for the voice interaction server.
package config

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Realtime  RealtimeConfig  `yaml:"realtime"`
	Karaoke   KaraokeConfig   `yaml:"karaoke"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Sweep     SweepConfig     `yaml:"sweep"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage.
type ProvidersConfig struct {
	// STT transcribes speech for the realtime stream and for caption
	// re-alignment in the TTS fallback path.
	STT ProviderEntry `yaml:"stt"`

	// TTS is the primary speech synthesis provider.
	TTS ProviderEntry `yaml:"tts"`

	// TTSFallback synthesizes speech when the primary TTS provider fails.
	// Leave the name empty to disable the fallback stage.
	TTSFallback ProviderEntry `yaml:"tts_fallback"`

	// VAD gates the realtime stream. Leave the name empty for "energy".
	VAD VADEntry `yaml:"vad"`
}

// ProviderEntry is the common configuration block shared by all provider types.
type ProviderEntry struct {
	// Name selects the provider implementation (e.g., "openai", "elevenlabs", "whisper").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider
	// (e.g., "whisper-1", "eleven_turbo_v2_5").
	Model string `yaml:"model"`

	// Voice is the default voice identifier for TTS providers.
	Voice string `yaml:"voice"`
}

// VADEntry configures the voice activity classifier.
type VADEntry struct {
	// Name selects the classifier ("energy" or "always").
	Name string `yaml:"name"`

	// EnergyThreshold is the RMS amplitude above which a window counts as
	// speech. Zero means the built-in default.
	EnergyThreshold float64 `yaml:"energy_threshold"`
}

// RealtimeConfig holds segmentation parameters for streaming transcription.
// Zero values fall back to built-in defaults.
type RealtimeConfig struct {
	// SampleRate of incoming PCM in Hz. Default 16000.
	SampleRate int `yaml:"sample_rate"`

	// Language hint forwarded to the STT provider. Default "pt".
	Language string `yaml:"language"`

	// ProcessWindowMs is how much new audio accumulates before each
	// classification and partial decode. Default 1000.
	ProcessWindowMs int `yaml:"process_window_ms"`

	// MinSilenceMs is how much consecutive silence closes a speech segment.
	// Default 500.
	MinSilenceMs int `yaml:"min_silence_ms"`

	// TrailingOverlapMs is how much audio carries across a segment boundary.
	// Default 250.
	TrailingOverlapMs int `yaml:"trailing_overlap_ms"`
}

// KaraokeConfig holds clock-sync and caption timing settings.
type KaraokeConfig struct {
	// DefaultLookaheadMs is the caption lookahead used before any round-trip
	// estimate exists. Default 100.
	DefaultLookaheadMs float64 `yaml:"default_lookahead_ms"`

	// MaxIdleMinutes is how long a sync session may sit idle before the
	// sweeper removes it. Default 60.
	MaxIdleMinutes int `yaml:"max_idle_minutes"`
}

// SessionsConfig holds device session registry settings.
type SessionsConfig struct {
	// Capacity caps the number of live sessions. Default 10000.
	Capacity int `yaml:"capacity"`

	// MaxIdleHours is how long a session may sit idle before the sweeper
	// removes it. Default 24.
	MaxIdleHours int `yaml:"max_idle_hours"`

	// HistoryLimit caps how many messages RecentHistory returns per request.
	// Default 50.
	HistoryLimit int `yaml:"history_limit"`
}

// SweepConfig controls the background idle sweeper.
type SweepConfig struct {
	// IntervalMinutes between sweeps. Default 10.
	IntervalMinutes int `yaml:"interval_minutes"`
}
