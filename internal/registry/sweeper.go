package registry

import (
	"context"
	"log/slog"
	"time"
)

// Sweepable is any store that can drop idle entries. The registry itself and
// the karaoke sync coordinator both satisfy it.
type Sweepable interface {
	SweepIdle(maxIdle time.Duration) int
}

// Sweeper periodically sweeps idle entries from a set of stores.
type Sweeper struct {
	interval time.Duration
	maxIdle  time.Duration
	targets  []Sweepable
	log      *slog.Logger
}

// NewSweeper creates a Sweeper that every interval removes entries idle for
// longer than maxIdle from each target. A nil logger falls back to
// slog.Default.
func NewSweeper(interval, maxIdle time.Duration, log *slog.Logger, targets ...Sweepable) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{
		interval: interval,
		maxIdle:  maxIdle,
		targets:  targets,
		log:      log,
	}
}

// Run sweeps on the configured interval until ctx is cancelled. It always
// returns nil so it can sit directly in an errgroup without tearing the
// group down on shutdown.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	total := 0
	for _, t := range s.targets {
		total += t.SweepIdle(s.maxIdle)
	}
	if total > 0 {
		s.log.Info("idle sweep", "removed", total)
	}
}
