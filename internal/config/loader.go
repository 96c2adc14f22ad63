package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":          {"whisper", "openai"},
	"tts":          {"elevenlabs", "openai"},
	"tts_fallback": {"elevenlabs", "openai"},
	"vad":          {"energy", "always"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("tts_fallback", cfg.Providers.TTSFallback.Name)
	validateProviderName("vad", cfg.Providers.VAD.Name)

	// Provider requirements
	switch cfg.Providers.STT.Name {
	case "whisper":
		if cfg.Providers.STT.BaseURL == "" {
			errs = append(errs, errors.New("providers.stt: whisper requires base_url (the whisper server address)"))
		}
	case "openai":
		if cfg.Providers.STT.APIKey == "" {
			errs = append(errs, errors.New("providers.stt: openai requires api_key"))
		}
	}
	if name := cfg.Providers.TTS.Name; (name == "elevenlabs" || name == "openai") && cfg.Providers.TTS.APIKey == "" {
		errs = append(errs, fmt.Errorf("providers.tts: %s requires api_key", name))
	}
	if name := cfg.Providers.TTSFallback.Name; (name == "elevenlabs" || name == "openai") && cfg.Providers.TTSFallback.APIKey == "" {
		errs = append(errs, fmt.Errorf("providers.tts_fallback: %s requires api_key", name))
	}
	if cfg.Providers.TTS.Name != "" && cfg.Providers.TTS.Name == cfg.Providers.TTSFallback.Name {
		slog.Warn("providers.tts_fallback names the same provider as providers.tts; the fallback stage adds nothing")
	}
	if cfg.Providers.VAD.EnergyThreshold < 0 {
		errs = append(errs, fmt.Errorf("providers.vad.energy_threshold %.1f must not be negative", cfg.Providers.VAD.EnergyThreshold))
	}

	// Realtime
	if cfg.Realtime.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("realtime.sample_rate %d must not be negative", cfg.Realtime.SampleRate))
	}
	if cfg.Realtime.ProcessWindowMs < 0 || cfg.Realtime.MinSilenceMs < 0 || cfg.Realtime.TrailingOverlapMs < 0 {
		errs = append(errs, errors.New("realtime durations must not be negative"))
	}
	if w, o := cfg.Realtime.ProcessWindowMs, cfg.Realtime.TrailingOverlapMs; w > 0 && o >= w {
		errs = append(errs, fmt.Errorf("realtime.trailing_overlap_ms %d must be smaller than process_window_ms %d", o, w))
	}

	// Karaoke
	if l := cfg.Karaoke.DefaultLookaheadMs; l != 0 && (l < 50 || l > 200) {
		errs = append(errs, fmt.Errorf("karaoke.default_lookahead_ms %.0f is out of range [50, 200]", l))
	}
	if cfg.Karaoke.MaxIdleMinutes < 0 {
		errs = append(errs, fmt.Errorf("karaoke.max_idle_minutes %d must not be negative", cfg.Karaoke.MaxIdleMinutes))
	}

	// Sessions
	if cfg.Sessions.Capacity < 0 {
		errs = append(errs, fmt.Errorf("sessions.capacity %d must not be negative", cfg.Sessions.Capacity))
	}
	if cfg.Sessions.MaxIdleHours < 0 {
		errs = append(errs, fmt.Errorf("sessions.max_idle_hours %d must not be negative", cfg.Sessions.MaxIdleHours))
	}
	if cfg.Sessions.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("sessions.history_limit %d must not be negative", cfg.Sessions.HistoryLimit))
	}

	// Sweep
	if cfg.Sweep.IntervalMinutes < 0 {
		errs = append(errs, fmt.Errorf("sweep.interval_minutes %d must not be negative", cfg.Sweep.IntervalMinutes))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
