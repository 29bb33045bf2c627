package kv

import (
	"context"
	"time"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Pruner is implemented by backends without native expiry. Redis relies on
// key TTLs instead.
type Pruner interface {
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// Janitor periodically drops entries no session token can reach anymore.
type Janitor struct {
	logger   *zap.Logger
	tracer   trace.Tracer
	pruner   Pruner
	maxAge   time.Duration
	interval time.Duration
	now      func() time.Time
}

func NewJanitor(logger *zap.Logger, pruner Pruner, maxAge, interval time.Duration) *Janitor {
	return &Janitor{
		logger:   logger,
		tracer:   otel.Tracer("kv/janitor"),
		pruner:   pruner,
		maxAge:   maxAge,
		interval: interval,
		now:      time.Now,
	}
}

// PruneOnce removes entries untouched for longer than maxAge.
func (j *Janitor) PruneOnce(ctx context.Context) (int64, error) {
	traceCtx, span := j.tracer.Start(ctx, "PruneOnce")
	defer span.End()
	logger := logutil.WithContext(traceCtx, j.logger)

	cutoff := j.now().Add(-j.maxAge)
	removed, err := j.pruner.Prune(traceCtx, cutoff)
	if err != nil {
		logger.Error("Failed to prune stale kv entries", zap.Error(err), zap.Time("cutoff", cutoff))
		span.RecordError(err)
		return 0, err
	}

	if removed > 0 {
		logger.Info("Pruned stale kv entries", zap.Int64("removed", removed), zap.Time("cutoff", cutoff))
	}
	return removed, nil
}

// Run prunes on every tick until ctx is done. A failed pass is logged and
// retried on the next tick.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = j.PruneOnce(ctx)
		}
	}
}
