package retention

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/brandops/platform-backend/pkg/logger"
)

const defaultSweepInterval = 1 * time.Hour

// Pruner deletes rows older than the retention window and reports how many
// went. The notification and activity services both satisfy it.
type Pruner interface {
	PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// SweeperParams configure the retention sweeper.
type SweeperParams struct {
	Logger    *logger.Logger
	Retention time.Duration
	Interval  time.Duration
	Targets   map[string]Pruner
}

// Sweeper periodically trims aged rows from every registered target. One
// target failing never stops the others.
type Sweeper struct {
	logg      *logger.Logger
	retention time.Duration
	interval  time.Duration
	targets   map[string]Pruner
}

func NewSweeper(params SweeperParams) (*Sweeper, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Retention <= 0 {
		return nil, fmt.Errorf("retention must be positive")
	}
	if len(params.Targets) == 0 {
		return nil, fmt.Errorf("at least one prune target required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{
		logg:      params.Logger,
		retention: params.Retention,
		interval:  interval,
		targets:   params.Targets,
	}, nil
}

// Run sweeps once at start, then on every interval tick until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	s.logg.Info(ctx, fmt.Sprintf("retention sweeper started; pruning rows older than %s every %s", s.retention, s.interval))
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep prunes every target once.
func (s *Sweeper) Sweep(ctx context.Context) {
	names := make([]string, 0, len(s.targets))
	for name := range s.targets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		logCtx := s.logg.WithField(ctx, "target", name)
		deleted, err := s.targets[name].PruneOlderThan(ctx, s.retention)
		if err != nil {
			s.logg.Error(logCtx, "retention prune failed", err)
			continue
		}
		if deleted > 0 {
			s.logg.Info(s.logg.WithField(logCtx, "deleted", deleted), "retention prune completed")
		}
	}
}
