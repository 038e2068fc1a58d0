package traffic

import (
	"context"
	"fmt"
	"time"

	da "github.com/Highlander2003/EcoFlow/pkg/datastructure"
	"github.com/Highlander2003/EcoFlow/pkg/metrics"
	"github.com/Highlander2003/EcoFlow/pkg/util"
	"go.uber.org/zap"
)

// UpdateSource yields the congestion changes observed since the previous poll.
type UpdateSource interface {
	Poll(ctx context.Context) (map[da.EdgeKey]float64, error)
}

// Updater periodically applies the output of an UpdateSource to the graph traffic state.
type Updater struct {
	graph  *da.Graph
	source UpdateSource
	period time.Duration
	logger *zap.Logger
}

func NewUpdater(graph *da.Graph, source UpdateSource, period time.Duration, logger *zap.Logger) (*Updater, error) {
	if period <= 0 {
		return nil, util.WrapErrorf(nil, util.ErrInvalidConfig, "traffic update period must be positive, got %s", period)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Updater{
		graph:  graph,
		source: source,
		period: period,
		logger: logger,
	}, nil
}

// Run polls every period until ctx is done. poll failures never stop the loop.
func (u *Updater) Run(ctx context.Context) error {
	u.logger.Info("traffic updater started", zap.Duration("period", u.period))
	ticker := time.NewTicker(u.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			u.logger.Info("traffic updater stopped")
			return nil
		case <-ticker.C:
			_, _ = u.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single poll and apply cycle and returns the number of edges written. partial
// updates returned together with a poll error are still applied.
func (u *Updater) RunOnce(ctx context.Context) (applied int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = util.WrapErrorf(fmt.Errorf("%v", r), util.ErrInternalServerError, "traffic source panicked")
			applied = 0
			u.logger.Error("traffic source panicked", zap.Any("panic", r))
			metrics.TrafficUpdates.WithLabelValues("panic").Inc()
		}
	}()

	updates, pollErr := u.source.Poll(ctx)
	if pollErr != nil {
		u.logger.Warn("traffic poll failed", zap.Error(pollErr))
		metrics.TrafficUpdates.WithLabelValues("error").Inc()
	}
	if len(updates) == 0 {
		if pollErr == nil {
			metrics.TrafficUpdates.WithLabelValues("empty").Inc()
		}
		return 0, pollErr
	}

	applied = u.graph.ApplyTrafficUpdate(updates)
	if pollErr == nil {
		metrics.TrafficUpdates.WithLabelValues("ok").Inc()
	}
	metrics.TrafficEdgesUpdated.Add(float64(applied))
	u.logger.Debug("traffic updated",
		zap.Int("received", len(updates)),
		zap.Int("applied", applied),
		zap.Uint64("epoch", u.graph.Traffic().Epoch()))
	return applied, pollErr
}
