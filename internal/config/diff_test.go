package config_test

import (
	"testing"

	"github.com/arbachegit/iconsai-core/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	old := &config.Config{}
	new := &config.Config{}

	d := config.Diff(old, new)
	if d.Any() {
		t.Errorf("identical configs should produce an empty diff: %+v", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	t.Parallel()
	old := &config.Config{}
	old.Server.LogLevel = config.LogInfo
	new := &config.Config{}
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("LogLevelChanged should be set")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel: got %q, want debug", d.NewLogLevel)
	}
}

func TestDiff_VADThreshold(t *testing.T) {
	t.Parallel()
	old := &config.Config{}
	old.Providers.VAD.EnergyThreshold = 300
	new := &config.Config{}
	new.Providers.VAD.EnergyThreshold = 450

	d := config.Diff(old, new)
	if !d.VADChanged {
		t.Error("VADChanged should be set")
	}
	if d.LogLevelChanged || d.RealtimeChanged {
		t.Errorf("unrelated fields flagged: %+v", d)
	}
}

func TestDiff_RealtimeAndLookahead(t *testing.T) {
	t.Parallel()
	old := &config.Config{}
	old.Realtime.MinSilenceMs = 500
	old.Karaoke.DefaultLookaheadMs = 100
	new := &config.Config{}
	new.Realtime.MinSilenceMs = 700
	new.Karaoke.DefaultLookaheadMs = 150

	d := config.Diff(old, new)
	if !d.RealtimeChanged {
		t.Error("RealtimeChanged should be set")
	}
	if !d.LookaheadChanged {
		t.Error("LookaheadChanged should be set")
	}
	if !d.Any() {
		t.Error("Any() should report the change")
	}
}
