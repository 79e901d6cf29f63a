package game

import (
	"context"
	"fmt"
	"time"

	"bistro-rush/internal/config"
	"bistro-rush/internal/logger"
	"bistro-rush/internal/models"
)

// WatcherStore is the persistence surface the watcher needs.
type WatcherStore interface {
	OverduePending(ctx context.Context, now time.Time) ([]models.Order, error)
	ForceExpireStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Watcher is the single global expiration task. Every tick it resolves all
// overdue pending orders through the service's shared expiration path, one
// transaction per order, so one bad row cannot poison the rest of the tick.
type Watcher struct {
	store   WatcherStore
	service *Service
	logger  *logger.Logger
	cfg     config.GameConfig
}

func NewWatcher(store WatcherStore, service *Service, log *logger.Logger, cfg config.GameConfig) *Watcher {
	return &Watcher{
		store:   store,
		service: service,
		logger:  log,
		cfg:     cfg,
	}
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.WatcherInterval)
	defer ticker.Stop()

	w.logger.LogWatcher(fmt.Sprintf("expiration watcher running (interval=%s)", w.cfg.WatcherInterval))

	for {
		select {
		case <-ctx.Done():
			w.logger.LogWatcher("expiration watcher stopped")
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick is one watcher pass: penalized expiration of overdue orders, then the
// no-penalty recovery sweep for rows overdue longer than the grace window.
func (w *Watcher) Tick(ctx context.Context) {
	now := time.Now()
	cutoff := now.Add(-w.cfg.SweepGrace)

	orders, err := w.store.OverduePending(ctx, now)
	if err != nil {
		w.logger.Error("WATCHER", fmt.Sprintf("overdue scan failed: %v", err))
		return
	}

	for _, order := range orders {
		if order.ExpiresAt.Before(cutoff) {
			// Overdue since before the grace window: downtime leftovers,
			// handled silently by the recovery sweep below.
			continue
		}
		if err := w.service.ExpireOrder(ctx, order); err != nil {
			// Per-order isolation: log and move on to the next row.
			w.logger.Error("WATCHER", fmt.Sprintf("order %s: %v", order.ID, err))
		}
	}

	w.sweep(ctx, cutoff)
}

// sweep force-expires orders that have been overdue since before the grace
// window, without penalties or events. This only catches rows left behind by
// a crash or long downtime; the penalized pass above normally wins.
func (w *Watcher) sweep(ctx context.Context, cutoff time.Time) {
	swept, err := w.store.ForceExpireStale(ctx, cutoff)
	if err != nil {
		w.logger.Error("WATCHER", fmt.Sprintf("recovery sweep failed: %v", err))
		return
	}
	if swept > 0 {
		w.logger.LogWatcher(fmt.Sprintf("recovery sweep force-expired %d stale orders", swept))
	}
}
