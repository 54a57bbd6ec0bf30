// Package listener consumes the live platform update stream and applies gift
// events to the store.
package listener

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/alged/giftstream/internal/metrics"
	"github.com/alged/giftstream/pkg/assets"
	"github.com/alged/giftstream/pkg/events"
	"github.com/alged/giftstream/pkg/gift"
	"github.com/alged/giftstream/pkg/giftstore"
	"github.com/alged/giftstream/pkg/telegram"
)

// State is the listener's connection lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateListening
	StateReconnecting
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateListening:
		return "listening"
	case StateReconnecting:
		return "reconnecting"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

const (
	initialBackoff = time.Second
	maxBackoff     = time.Minute
)

// Listener ingests gift events from the live update stream. Updates are
// handled strictly in delivery order; only asset materialization runs
// asynchronously.
type Listener struct {
	client    telegram.Client
	store     giftstore.Store
	processor *assets.Processor
	publisher events.Publisher
	logger    *zap.Logger

	state atomic.Int32
	wg    sync.WaitGroup
}

// New creates a listener over an authenticated client.
func New(
	client telegram.Client,
	store giftstore.Store,
	processor *assets.Processor,
	publisher events.Publisher,
	logger *zap.Logger,
) *Listener {
	return &Listener{
		client:    client,
		store:     store,
		processor: processor,
		publisher: publisher,
		logger:    logger.Named("listener"),
	}
}

// State returns the current lifecycle state.
func (l *Listener) State() State {
	return State(l.state.Load())
}

func (l *Listener) setState(s State) {
	l.state.Store(int32(s))
	metrics.ListenerState.Set(float64(s))
}

// Run consumes updates until the context is cancelled. An invalid session is
// fatal and non-retriable: the listener disables itself and returns nil so
// the rest of the service, API included, keeps running. Transport errors
// trigger reconnects with exponential backoff.
func (l *Listener) Run(ctx context.Context) error {
	defer l.wg.Wait()

	if err := l.client.Ping(ctx); err != nil {
		if errors.Is(err, telegram.ErrSessionInvalid) {
			l.setState(StateDisabled)
			l.logger.Warn("session missing or invalid, live ingestion disabled")
			return nil
		}
		return err
	}

	backoff := initialBackoff
	for {
		l.setState(StateConnecting)
		updateCh, errCh := l.client.SubscribeUpdates(ctx)
		l.setState(StateListening)
		l.logger.Info("listening for updates")

		streamErr := l.consume(ctx, updateCh, errCh, &backoff)
		if ctx.Err() != nil {
			l.setState(StateDisconnected)
			return ctx.Err()
		}
		if errors.Is(streamErr, telegram.ErrSessionInvalid) {
			l.setState(StateDisabled)
			l.logger.Warn("session invalidated mid-stream, live ingestion disabled")
			return nil
		}

		l.setState(StateReconnecting)
		l.logger.Warn("update stream ended, reconnecting",
			zap.Error(streamErr),
			zap.Duration("backoff", backoff))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			l.setState(StateDisconnected)
			return ctx.Err()
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// consume drains one subscription until it ends. Returns the fatal stream
// error, or nil when the channel simply closed.
func (l *Listener) consume(
	ctx context.Context,
	updateCh <-chan *telegram.Update,
	errCh <-chan error,
	backoff *time.Duration,
) error {
	for {
		select {
		case update, ok := <-updateCh:
			if !ok {
				return nil
			}
			*backoff = initialBackoff
			l.handleUpdate(ctx, update)
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handleUpdate classifies and applies a single update. Errors are logged,
// not returned: one bad update must not stall the stream behind it.
func (l *Listener) handleUpdate(ctx context.Context, update *telegram.Update) {
	ev := gift.Classify(update)
	if ev == nil {
		metrics.UpdatesDiscarded.Inc()
		return
	}

	switch ev.Direction {
	case gift.DirectionIncoming:
		l.handleIncoming(ctx, ev)
	case gift.DirectionOutgoing:
		l.handleOutgoing(ctx, ev)
	}
}

func (l *Listener) handleIncoming(ctx context.Context, ev *gift.Event) {
	rec := gift.NewRecord(ev)

	// Thin events carry only the catalog id; look the gift up so the record
	// gets its sticker document. Lookup failure is not a reason to drop the
	// event.
	if rec.ExternalGiftID != "" && rec.Document == nil && len(rec.Documents()) == 0 {
		entry, err := l.client.GiftCatalogEntry(ctx, rec.ExternalGiftID)
		if err != nil {
			l.logger.Debug("catalog lookup failed",
				zap.String("external_gift_id", rec.ExternalGiftID),
				zap.Error(err))
		} else {
			rec.EnrichFromCatalog(entry)
		}
	}

	saved, err := l.store.Upsert(ctx, rec)
	if err != nil {
		metrics.GiftEventsTotal.WithLabelValues(string(ev.Direction), "error").Inc()
		l.logger.Error("persisting gift failed",
			zap.String("external_gift_id", ev.ExternalGiftID),
			zap.Error(err))
		return
	}
	metrics.GiftEventsTotal.WithLabelValues(string(ev.Direction), "ok").Inc()
	l.logger.Info("gift received",
		zap.String("gift_id", saved.ID.String()),
		zap.String("external_gift_id", saved.ExternalGiftID),
		zap.String("from_id", saved.FromID),
		zap.String("title", saved.Title))

	// The row is durable already; materialization happens off the hot path
	// and degrades independently.
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.processor.ProcessGift(ctx, saved)
	}()

	if err := l.publisher.GiftReceived(ctx, saved); err != nil {
		l.logger.Warn("publishing receive event failed", zap.Error(err))
	}
}

func (l *Listener) handleOutgoing(ctx context.Context, ev *gift.Event) {
	if ev.ExternalGiftID == "" {
		l.logger.Warn("outgoing gift without external id, cannot match inventory")
		return
	}

	rec, err := l.store.Withdraw(ctx, ev.ExternalGiftID, ev.ToID)
	if errors.Is(err, giftstore.ErrGiftNotFound) {
		// Normal for gifts withdrawn twice or never seen incoming.
		l.logger.Debug("withdrawal for unknown or already withdrawn gift",
			zap.String("external_gift_id", ev.ExternalGiftID))
		return
	}
	if err != nil {
		metrics.GiftEventsTotal.WithLabelValues(string(ev.Direction), "error").Inc()
		l.logger.Error("recording withdrawal failed",
			zap.String("external_gift_id", ev.ExternalGiftID),
			zap.Error(err))
		return
	}
	metrics.GiftEventsTotal.WithLabelValues(string(ev.Direction), "ok").Inc()
	l.logger.Info("gift withdrawn",
		zap.String("gift_id", rec.ID.String()),
		zap.String("external_gift_id", rec.ExternalGiftID),
		zap.String("withdrawn_to_id", rec.WithdrawnToID))

	if err := l.publisher.GiftWithdrawn(ctx, rec); err != nil {
		l.logger.Warn("publishing withdraw event failed", zap.Error(err))
	}
}
