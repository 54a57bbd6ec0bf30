package giftstore

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/alged/giftstream/pkg/gift"
)

// ErrGiftNotFound is returned when no gift matches the given identifier, or
// when a state transition's precondition does not hold (withdrawing an
// already withdrawn gift, restoring an active one).
var ErrGiftNotFound = errors.New("gift not found")

// QueryOptions holds optional filters for listing gifts.
type QueryOptions struct {
	FromID    *string
	Withdrawn *bool
	Limit     int
	Offset    int
}

// QueryOption configures a Query or Count call.
type QueryOption func(*QueryOptions)

// WithFromID filters gifts by the counterparty they were received from.
func WithFromID(fromID string) QueryOption {
	return func(o *QueryOptions) {
		o.FromID = &fromID
	}
}

// WithWithdrawn filters gifts by withdrawal state.
func WithWithdrawn(withdrawn bool) QueryOption {
	return func(o *QueryOptions) {
		o.Withdrawn = &withdrawn
	}
}

// WithLimit caps the number of returned gifts.
func WithLimit(limit int) QueryOption {
	return func(o *QueryOptions) {
		o.Limit = limit
	}
}

// WithOffset skips the first offset gifts of the result set.
func WithOffset(offset int) QueryOption {
	return func(o *QueryOptions) {
		o.Offset = offset
	}
}

// CounterpartyCount is a per-sender gift tally used in stats.
type CounterpartyCount struct {
	FromID string `json:"from_id"`
	Count  int    `json:"count"`
}

// ModelCount is a per-model gift tally used in stats.
type ModelCount struct {
	Model string `json:"model"`
	Count int    `json:"count"`
}

// Stats is an aggregate view over the whole gift inventory.
type Stats struct {
	Total          int                 `json:"total"`
	Active         int                 `json:"active"`
	Withdrawn      int                 `json:"withdrawn"`
	ByCounterparty []CounterpartyCount `json:"by_counterparty"`
	ByModel        []ModelCount        `json:"by_model"`
	Recent         []*gift.Record      `json:"recent"`
}

// Store persists gift records and their lifecycle transitions.
type Store interface {
	// Upsert inserts the record, merging into an existing row when one
	// already carries the same external gift id. Records without an
	// external id are always inserted as new rows.
	Upsert(ctx context.Context, rec *gift.Record) (*gift.Record, error)

	// Withdraw marks the non-withdrawn gift with the given external id as
	// withdrawn. Returns ErrGiftNotFound when no such gift exists.
	Withdraw(ctx context.Context, externalGiftID, toID string) (*gift.Record, error)

	// Restore clears the withdrawal state of a withdrawn gift. Returns
	// ErrGiftNotFound when no withdrawn gift matches.
	Restore(ctx context.Context, externalGiftID string) (*gift.Record, error)

	// Get looks a gift up by internal uuid or external gift id.
	Get(ctx context.Context, id string) (*gift.Record, error)

	// SetLottieURL records the public URL of a decoded lottie animation.
	SetLottieURL(ctx context.Context, id uuid.UUID, url string) error

	// Query lists gifts ordered by received_at descending.
	Query(ctx context.Context, opts ...QueryOption) ([]*gift.Record, error)

	// Count returns the number of gifts matching the filters.
	Count(ctx context.Context, opts ...QueryOption) (int, error)

	// Stats aggregates the inventory.
	Stats(ctx context.Context) (*Stats, error)
}
