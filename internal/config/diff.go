package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked: anything else
// (listen address, provider credentials) needs a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// VADChanged is true when the classifier selection or its threshold
	// changed. New realtime sessions pick the new classifier up.
	VADChanged bool

	// RealtimeChanged is true when any segmentation parameter changed.
	// Applies to sessions opened after the reload.
	RealtimeChanged bool

	// LookaheadChanged is true when the default caption lookahead changed.
	LookaheadChanged bool
}

// Any reports whether the diff contains any change at all.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.VADChanged || d.RealtimeChanged || d.LookaheadChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Providers.VAD != new.Providers.VAD {
		d.VADChanged = true
	}
	if old.Realtime != new.Realtime {
		d.RealtimeChanged = true
	}
	if old.Karaoke.DefaultLookaheadMs != new.Karaoke.DefaultLookaheadMs {
		d.LookaheadChanged = true
	}

	return d
}
