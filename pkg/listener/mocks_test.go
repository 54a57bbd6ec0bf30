package listener

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/alged/giftstream/pkg/gift"
	"github.com/alged/giftstream/pkg/giftstore"
	"github.com/alged/giftstream/pkg/telegram"
)

// mockClient implements telegram.Client with function fields so each test
// overrides only what it needs.
type mockClient struct {
	pingFunc      func(ctx context.Context) error
	subscribeFunc func(ctx context.Context) (<-chan *telegram.Update, <-chan error)
	catalogFunc   func(ctx context.Context, giftID string) (*telegram.StarGiftPayload, error)
}

func (m *mockClient) Ping(ctx context.Context) error {
	if m.pingFunc != nil {
		return m.pingFunc(ctx)
	}
	return nil
}

func (m *mockClient) SubscribeUpdates(ctx context.Context) (<-chan *telegram.Update, <-chan error) {
	if m.subscribeFunc != nil {
		return m.subscribeFunc(ctx)
	}
	updateCh := make(chan *telegram.Update)
	errCh := make(chan error)
	return updateCh, errCh
}

func (m *mockClient) SavedGifts(context.Context, string, int) (*telegram.SavedGiftsPage, error) {
	return &telegram.SavedGiftsPage{}, nil
}

func (m *mockClient) GiftCatalogEntry(ctx context.Context, giftID string) (*telegram.StarGiftPayload, error) {
	if m.catalogFunc != nil {
		return m.catalogFunc(ctx, giftID)
	}
	return nil, nil
}

func (m *mockClient) DownloadDocument(context.Context, string, string) ([]byte, error) {
	return nil, nil
}

// mockStore records mutations for assertions.
type mockStore struct {
	mu        sync.Mutex
	upserts   []*gift.Record
	withdraws []string
	upsertErr error
	// withdrawErr is returned by Withdraw when set; defaults to success.
	withdrawErr error
}

func (m *mockStore) Upsert(_ context.Context, rec *gift.Record) (*gift.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	saved := *rec
	if saved.ID == uuid.Nil {
		saved.ID = uuid.New()
	}
	m.upserts = append(m.upserts, &saved)
	return &saved, nil
}

func (m *mockStore) Withdraw(_ context.Context, externalGiftID, toID string) (*gift.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.withdrawErr != nil {
		return nil, m.withdrawErr
	}
	m.withdraws = append(m.withdraws, externalGiftID)
	return &gift.Record{
		ID:             uuid.New(),
		ExternalGiftID: externalGiftID,
		IsWithdrawn:    true,
		WithdrawnToID:  toID,
	}, nil
}

func (m *mockStore) Restore(context.Context, string) (*gift.Record, error) {
	return nil, giftstore.ErrGiftNotFound
}

func (m *mockStore) Get(context.Context, string) (*gift.Record, error) {
	return nil, giftstore.ErrGiftNotFound
}

func (m *mockStore) SetLottieURL(context.Context, uuid.UUID, string) error { return nil }

func (m *mockStore) Query(context.Context, ...giftstore.QueryOption) ([]*gift.Record, error) {
	return nil, nil
}

func (m *mockStore) Count(context.Context, ...giftstore.QueryOption) (int, error) {
	return 0, nil
}

func (m *mockStore) Stats(context.Context) (*giftstore.Stats, error) {
	return &giftstore.Stats{}, nil
}

func (m *mockStore) upsertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.upserts)
}

func (m *mockStore) withdrawCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.withdraws)
}

// mockPublisher records published events.
type mockPublisher struct {
	mu        sync.Mutex
	received  []string
	withdrawn []string
}

func (m *mockPublisher) GiftReceived(_ context.Context, rec *gift.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, rec.ExternalGiftID)
	return nil
}

func (m *mockPublisher) GiftWithdrawn(_ context.Context, rec *gift.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.withdrawn = append(m.withdrawn, rec.ExternalGiftID)
	return nil
}

func (m *mockPublisher) Close() {}
