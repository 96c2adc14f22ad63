// Package app wires the voice pipeline subsystems into a running server.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP and the background sweepers until the context
// is cancelled, and Shutdown tears everything down in order.
//
// For testing, inject pre-built subsystems via functional options. When an
// option is not provided, New creates real implementations from the config.
package app

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arbachegit/iconsai-core/internal/config"
	"github.com/arbachegit/iconsai-core/internal/health"
	"github.com/arbachegit/iconsai-core/internal/karaoke"
	"github.com/arbachegit/iconsai-core/internal/realtime"
	"github.com/arbachegit/iconsai-core/internal/registry"
	"github.com/arbachegit/iconsai-core/internal/server"
	"github.com/arbachegit/iconsai-core/pkg/provider/stt"
	"github.com/arbachegit/iconsai-core/pkg/provider/tts"
	"github.com/arbachegit/iconsai-core/pkg/provider/vad"
)

// shutdownTimeout bounds the HTTP server drain during Run's teardown.
const shutdownTimeout = 15 * time.Second

// Providers holds one interface value per provider slot. Populated by
// main.go from the config. STT and TTS are required; TTSFallback nil
// disables the fallback synthesis stage and VAD nil disables speech gating.
type Providers struct {
	STT         stt.Provider
	TTS         tts.Provider
	TTSFallback tts.Provider
	VAD         vad.Classifier
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	level     *slog.LevelVar
	log       *slog.Logger

	sessions *registry.Registry
	coord    *karaoke.Coordinator
	realtime *realtime.Service
	synth    *karaoke.Synthesizer
	httpSrv  *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithRegistry injects a session registry instead of creating one from config.
func WithRegistry(r *registry.Registry) Option {
	return func(a *App) { a.sessions = r }
}

// WithCoordinator injects a sync coordinator instead of creating one.
func WithCoordinator(c *karaoke.Coordinator) Option {
	return func(a *App) { a.coord = c }
}

// WithLogLevelVar injects the level var backing the process logger so config
// hot reloads can adjust verbosity.
func WithLogLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go. Initialisation is synchronous: telemetry, registry,
// coordinator, realtime service, synthesizer, and the HTTP server are all
// ready when New returns.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.STT == nil || providers.TTS == nil {
		return nil, fmt.Errorf("app: stt and tts providers are required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}

	if a.sessions == nil {
		var regOpts []registry.Option
		if cfg.Sessions.Capacity > 0 {
			regOpts = append(regOpts, registry.WithCapacity(cfg.Sessions.Capacity))
		}
		if cfg.Sessions.HistoryLimit > 0 {
			regOpts = append(regOpts, registry.WithHistoryLimit(cfg.Sessions.HistoryLimit))
		}
		a.sessions = registry.New(a.log, regOpts...)
	}

	if a.coord == nil {
		a.coord = karaoke.New(a.log)
	}
	a.coord.SetDefaultLookahead(cfg.Karaoke.DefaultLookaheadMs)

	a.realtime = realtime.NewService(providers.STT, providers.VAD, realtimeConfig(cfg.Realtime), a.log)

	synthOpts := []karaoke.SynthOption{}
	if providers.TTSFallback != nil {
		synthOpts = append(synthOpts, karaoke.WithFallback(providers.TTSFallback))
	}
	if realigner, ok := providers.STT.(stt.Realigner); ok {
		synthOpts = append(synthOpts, karaoke.WithRealigner(realigner))
	} else {
		a.log.Warn("stt provider cannot re-align synthesized audio; fallback captions will be approximate")
	}
	a.synth = karaoke.NewSynthesizer(providers.TTS, a.log, synthOpts...)

	srv := server.New(a.realtime, a.synth, a.coord, a.sessions, nil, a.log)
	a.httpSrv = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(health.New(a.readinessCheckers()...)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.Server.TLS != nil {
		a.httpSrv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return a, nil
}

// readinessCheckers builds the /readyz probes. The pipeline has no external
// connections to ping at rest, so readiness reports on the in-process stores.
func (a *App) readinessCheckers() []health.Checker {
	return []health.Checker{
		{
			Name: "sessions",
			Check: func(context.Context) error {
				a.sessions.Count()
				return nil
			},
		},
		{
			Name: "sync",
			Check: func(context.Context) error {
				a.coord.SessionCount()
				return nil
			},
		},
	}
}

// Run serves HTTP and the idle sweepers until ctx is cancelled, then drains
// the server. It returns nil on a clean shutdown.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if a.cfg.Server.TLS != nil {
			err = a.httpSrv.ListenAndServeTLS(a.cfg.Server.TLS.CertFile, a.cfg.Server.TLS.KeyFile)
		} else {
			err = a.httpSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		sc, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.httpSrv.Shutdown(sc)
	})

	// Device sessions and sync sessions age out on different horizons, so
	// each gets its own sweeper.
	interval := time.Duration(a.cfg.Sweep.IntervalMinutes) * time.Minute
	sessionSweeper := registry.NewSweeper(interval, sessionMaxIdle(a.cfg.Sessions), a.log, a.sessions)
	syncSweeper := registry.NewSweeper(interval, syncMaxIdle(a.cfg.Karaoke), a.log, a.coord)
	g.Go(func() error { return sessionSweeper.Run(gctx) })
	g.Go(func() error { return syncSweeper.Run(gctx) })

	a.log.Info("server running",
		"listen_addr", a.cfg.Server.ListenAddr,
		"tls", a.cfg.Server.TLS != nil,
	)

	return g.Wait()
}

// WatchConfig starts hot reloading from path. Only the safely reloadable
// subset of the configuration is applied to the running process; everything
// else needs a restart.
func (a *App) WatchConfig(path string) error {
	w, err := config.NewWatcher(path, a.applyReload)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error {
		w.Stop()
		return nil
	})
	return nil
}

// applyReload applies the changed fields of a reloaded config.
func (a *App) applyReload(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Any() {
		return
	}

	if d.LogLevelChanged {
		if a.level != nil {
			a.level.Set(SlogLevel(d.NewLogLevel))
			a.log.Info("log level changed", "level", d.NewLogLevel)
		} else {
			a.log.Warn("log level changed in config but no level var is wired")
		}
	}
	if d.VADChanged {
		a.realtime.SetClassifier(ClassifierFor(new.Providers.VAD))
		a.log.Info("voice activity classifier replaced",
			"name", new.Providers.VAD.Name,
			"threshold", new.Providers.VAD.EnergyThreshold,
		)
	}
	if d.RealtimeChanged {
		a.realtime.Reconfigure(realtimeConfig(new.Realtime))
		a.log.Info("realtime segmentation defaults updated")
	}
	if d.LookaheadChanged {
		a.coord.SetDefaultLookahead(new.Karaoke.DefaultLookaheadMs)
		a.log.Info("default caption lookahead updated", "lookahead_ms", new.Karaoke.DefaultLookaheadMs)
	}
}

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.log.Warn("closer error", "index", i, "err", err)
			}
		}

		a.log.Info("shutdown complete")
	})
	return shutdownErr
}

// ClassifierFor builds the voice activity classifier named in the config.
// Unknown names fall back to the energy classifier.
func ClassifierFor(entry config.VADEntry) vad.Classifier {
	switch entry.Name {
	case "always":
		return vad.Always(true)
	default:
		return vad.NewEnergy(entry.EnergyThreshold)
	}
}

// SlogLevel maps a config log level onto slog's scale.
func SlogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// realtimeConfig converts the YAML schema's millisecond fields into the
// realtime service's duration-based config.
func realtimeConfig(rc config.RealtimeConfig) realtime.Config {
	return realtime.Config{
		SampleRate:      rc.SampleRate,
		Language:        rc.Language,
		ProcessWindow:   time.Duration(rc.ProcessWindowMs) * time.Millisecond,
		MinSilence:      time.Duration(rc.MinSilenceMs) * time.Millisecond,
		TrailingOverlap: time.Duration(rc.TrailingOverlapMs) * time.Millisecond,
	}
}

func sessionMaxIdle(sc config.SessionsConfig) time.Duration {
	if sc.MaxIdleHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(sc.MaxIdleHours) * time.Hour
}

func syncMaxIdle(kc config.KaraokeConfig) time.Duration {
	if kc.MaxIdleMinutes <= 0 {
		return karaoke.DefaultMaxIdle
	}
	return time.Duration(kc.MaxIdleMinutes) * time.Minute
}
