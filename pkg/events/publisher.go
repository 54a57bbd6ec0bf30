// Package events fans gift lifecycle notifications out to downstream
// consumers over NATS JetStream.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/alged/giftstream/internal/metrics"
	"github.com/alged/giftstream/pkg/gift"
)

const (
	streamName       = "GIFTS"
	subjectReceived  = "gifts.received"
	subjectWithdrawn = "gifts.withdrawn"
)

// Publisher emits gift lifecycle events. Publishing is best effort: the
// pipeline never fails an ingest because a notification could not be sent.
type Publisher interface {
	GiftReceived(ctx context.Context, rec *gift.Record) error
	GiftWithdrawn(ctx context.Context, rec *gift.Record) error
	Close()
}

// giftEvent is the wire shape of a published notification.
type giftEvent struct {
	ExternalGiftID string    `json:"external_gift_id,omitempty"`
	GiftID         string    `json:"gift_id"`
	Title          string    `json:"title"`
	FromID         string    `json:"from_id"`
	WithdrawnToID  string    `json:"withdrawn_to_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type natsPublisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger *zap.Logger
}

// NewPublisher connects to NATS and ensures the gifts stream exists. An
// empty URL returns a noop publisher so deployments without a broker run
// unchanged.
func NewPublisher(url string, logger *zap.Logger) (Publisher, error) {
	if url == "" {
		logger.Info("event publishing disabled, no NATS URL configured")
		return &noopPublisher{}, nil
	}

	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("opening JetStream context: %w", err)
	}

	_, err = js.StreamInfo(streamName)
	if err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     streamName,
			Subjects: []string{"gifts.>"},
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("creating stream %s: %w", streamName, err)
		}
	}

	return &natsPublisher{
		nc:     nc,
		js:     js,
		logger: logger.Named("events"),
	}, nil
}

func (p *natsPublisher) GiftReceived(ctx context.Context, rec *gift.Record) error {
	return p.publish(ctx, subjectReceived, rec, rec.ReceivedAt)
}

func (p *natsPublisher) GiftWithdrawn(ctx context.Context, rec *gift.Record) error {
	occurredAt := time.Now().UTC()
	if rec.WithdrawnAt != nil {
		occurredAt = *rec.WithdrawnAt
	}
	return p.publish(ctx, subjectWithdrawn, rec, occurredAt)
}

func (p *natsPublisher) publish(ctx context.Context, subject string, rec *gift.Record, occurredAt time.Time) error {
	data, err := json.Marshal(giftEvent{
		ExternalGiftID: rec.ExternalGiftID,
		GiftID:         rec.ID.String(),
		Title:          rec.Title,
		FromID:         rec.FromID,
		WithdrawnToID:  rec.WithdrawnToID,
		OccurredAt:     occurredAt,
	})
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	if _, err := p.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		metrics.EventsPublished.WithLabelValues(subject, "error").Inc()
		p.logger.Warn("publishing event failed",
			zap.String("subject", subject),
			zap.Error(err))
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	metrics.EventsPublished.WithLabelValues(subject, "ok").Inc()
	return nil
}

func (p *natsPublisher) Close() {
	p.nc.Drain() //nolint:errcheck
}

type noopPublisher struct{}

func (*noopPublisher) GiftReceived(context.Context, *gift.Record) error  { return nil }
func (*noopPublisher) GiftWithdrawn(context.Context, *gift.Record) error { return nil }
func (*noopPublisher) Close()                                            {}
