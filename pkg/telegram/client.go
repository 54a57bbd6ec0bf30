package telegram

import (
	"context"
	"errors"
)

// ErrSessionInvalid reports a missing or unauthenticated platform session.
// It is fatal and non-retriable: the ingestion pipeline is disabled rather
// than retried when the session cannot be established.
var ErrSessionInvalid = errors.New("telegram: session missing or invalid")

// Client is the authenticated connection handle the pipeline consumes.
// Session establishment itself happens outside this process; every
// implementation is handed an already-authenticated channel.
//
// All blocking operations take a context and honor its cancellation.
type Client interface {
	// Ping verifies the session is alive. Returns ErrSessionInvalid when
	// the session is absent or rejected.
	Ping(ctx context.Context) error

	// SubscribeUpdates streams raw updates in platform-delivery order.
	// Both channels are closed when the stream ends; a value on the error
	// channel signals a fatal transport error requiring a reconnect.
	SubscribeUpdates(ctx context.Context) (<-chan *Update, <-chan error)

	// SavedGifts fetches one page of the target account's gift history.
	SavedGifts(ctx context.Context, offset string, limit int) (*SavedGiftsPage, error)

	// GiftCatalogEntry looks up a gift's catalog payload by its id.
	GiftCatalogEntry(ctx context.Context, giftID string) (*StarGiftPayload, error)

	// DownloadDocument fetches the binary content of a document.
	DownloadDocument(ctx context.Context, id, accessHash string) ([]byte, error)
}
