// Package jobs runs scheduled maintenance against the order store.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/vantran/selene/internal/domain"
	"github.com/vantran/selene/internal/telemetry"
)

// Runner executes periodic maintenance: order retention cleanup and
// legacy timestamp repair.
type Runner struct {
	orders    domain.OrderService
	store     domain.OrderStore
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

// NewRunner creates a maintenance runner. retention is how long delivered
// and cancelled orders are kept; interval is how often the sweep runs.
func NewRunner(orders domain.OrderService, store domain.OrderStore, retention, interval time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		orders:    orders,
		store:     store,
		retention: retention,
		interval:  interval,
		logger:    logger,
	}
}

// Start runs the maintenance loop until ctx is cancelled. One sweep runs
// immediately at startup so a restart never delays overdue maintenance by
// a full interval.
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("maintenance runner started",
		"retention", r.retention.String(),
		"interval", r.interval.String())

	r.sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("maintenance runner stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Runner) sweep(ctx context.Context) {
	if repaired, err := r.RunTimestampRepair(ctx); err != nil {
		r.logger.Error("timestamp repair failed", "error", err)
	} else if repaired > 0 {
		r.logger.Info("repaired legacy order timestamps", "rows", repaired)
	}

	if deleted, err := r.RunRetention(ctx); err != nil {
		r.logger.Error("retention cleanup failed", "error", err)
	} else if deleted > 0 {
		r.logger.Info("retention cleanup removed orders", "deleted", deleted)
	}
}

// RunRetention deletes delivered and cancelled orders older than the
// retention window.
func (r *Runner) RunRetention(ctx context.Context) (int64, error) {
	deleted, err := r.orders.CleanupOrders(ctx, r.retention)
	if err != nil {
		return 0, err
	}
	if deleted > 0 && telemetry.Business != nil {
		telemetry.Business.OrdersDeleted.WithLabelValues("retention").Add(float64(deleted))
	}
	return deleted, nil
}

// RunTimestampRepair backfills orders imported before timestamps were
// mandatory. Repair runs before the retention sweep so repaired rows age
// out on their real dates rather than surviving forever with nulls.
func (r *Runner) RunTimestampRepair(ctx context.Context) (int64, error) {
	return r.store.RepairTimestamps(ctx)
}
