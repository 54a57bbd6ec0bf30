// Package reconciler periodically re-reads the account's full gift history
// and upserts it, repairing anything the live listener missed.
package reconciler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/alged/giftstream/internal/metrics"
	"github.com/alged/giftstream/pkg/gift"
	"github.com/alged/giftstream/pkg/giftstore"
	"github.com/alged/giftstream/pkg/telegram"
)

// Reconciler synchronizes the stored inventory with the platform's saved
// gift history. Upserts are idempotent, so replaying the full history is
// always safe.
type Reconciler struct {
	client      telegram.Client
	store       giftstore.Store
	logger      *zap.Logger
	pageLimit   int
	passTimeout time.Duration

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a reconciler.
func New(
	client telegram.Client,
	store giftstore.Store,
	pageLimit int,
	passTimeout time.Duration,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		client:      client,
		store:       store,
		logger:      logger.Named("reconciler"),
		pageLimit:   pageLimit,
		passTimeout: passTimeout,
		stopCh:      make(chan struct{}),
	}
}

// ReconcileOnce walks the entire saved gift history page by page and upserts
// every entry. Overlapping invocations are rejected: if a pass is already
// running the call returns immediately without error.
func (r *Reconciler) ReconcileOnce(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Info("reconciliation already running, skipping")
		return nil
	}
	defer r.running.Store(false)

	r.logger.Info("starting reconciliation pass")
	start := time.Now()

	seen := 0
	offset := ""
	for {
		page, err := r.client.SavedGifts(ctx, offset, r.pageLimit)
		if err != nil {
			metrics.ReconcileRuns.WithLabelValues("error").Inc()
			return fmt.Errorf("fetching saved gifts page at offset %q: %w", offset, err)
		}

		for _, saved := range page.Gifts {
			rec := gift.RecordFromSaved(saved)
			if _, err := r.store.Upsert(ctx, rec); err != nil {
				// One bad row should not abort the pass.
				r.logger.Warn("upserting reconciled gift failed",
					zap.String("external_gift_id", rec.ExternalGiftID),
					zap.Error(err))
				continue
			}
			seen++
		}

		if page.NextOffset == "" || len(page.Gifts) == 0 {
			break
		}
		offset = page.NextOffset
	}

	metrics.ReconcileRuns.WithLabelValues("ok").Inc()
	metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	metrics.ReconcileGiftsSeen.Set(float64(seen))
	r.logger.Info("reconciliation pass completed",
		zap.Int("gifts_seen", seen),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// StartPeriodic starts a background goroutine that reconciles on a fixed
// interval until Stop is called. Pass failures are logged and the next tick
// tries again.
func (r *Reconciler) StartPeriodic(interval time.Duration) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		r.logger.Info("started periodic reconciliation", zap.Duration("interval", interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), r.passTimeout)
				if err := r.ReconcileOnce(ctx); err != nil {
					r.logger.Error("periodic reconciliation failed", zap.Error(err))
				}
				cancel()
			case <-r.stopCh:
				r.logger.Info("stopping periodic reconciliation")
				return
			}
		}
	}()
}

// Stop stops periodic reconciliation and waits for an in-flight pass to end.
func (r *Reconciler) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}
