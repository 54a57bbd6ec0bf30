package giftstore

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/alged/giftstream/pkg/gift"
	"github.com/alged/giftstream/pkg/pgutil"
	mghelper "github.com/alged/giftstream/pkg/pgutil/migrations"
)

func setupStore(t *testing.T, opts ...StoreOption) (context.Context, Store) {
	t.Helper()
	requireDockerAccess(t)

	ctx := context.Background()
	db, cleanup := pgutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	if err := mghelper.CreateSchema(ctx, db, &GiftDao{}); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return ctx, NewStore(db, opts...)
}

func requireDockerAccess(t *testing.T) {
	t.Helper()

	candidates := []string{
		"/var/run/docker.sock",
		filepath.Join(os.Getenv("HOME"), ".docker/run/docker.sock"),
	}

	for _, sock := range candidates {
		if sock == "" {
			continue
		}
		if _, err := os.Stat(sock); err != nil {
			continue
		}
		conn, err := (&net.Dialer{}).DialContext(context.Background(), "unix", sock)
		if err == nil {
			_ = conn.Close()
			return
		}
	}

	t.Skip("docker daemon socket is not accessible; skipping testcontainer-backed giftstore tests")
}

func newTestRecord(externalID, fromID string) *gift.Record {
	return &gift.Record{
		ExternalGiftID: externalID,
		Title:          "Plush Pepe",
		FromID:         fromID,
		ReceivedAt:     time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC),
		Document: &gift.DocumentRef{
			ID:          "900100",
			AccessHash:  "900101",
			MIMEType:    "application/x-tgsticker",
			ContentType: gift.ContentLottie,
			Width:       512,
			Height:      512,
		},
		Attributes: gift.Attributes{
			Model: &gift.AttributeDescriptor{Name: "Golden", RarityPermille: 150},
			Backdrop: &gift.BackdropDescriptor{
				Name:        "Sunset",
				CenterColor: "#ff4500",
				EdgeColor:   "#000000",
			},
		},
		RawPayload: []byte(`{"_":"starGiftUnique","id":"5000001"}`),
	}
}

func TestUpsertInsertAndGet(t *testing.T) {
	ctx, store := setupStore(t)

	saved, err := store.Upsert(ctx, newTestRecord("5000001", "31337"))
	if err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	if saved.ID == uuid.Nil {
		t.Error("expected generated id")
	}

	byUUID, err := store.Get(ctx, saved.ID.String())
	if err != nil {
		t.Fatalf("Get(uuid) failed: %v", err)
	}
	if byUUID.ExternalGiftID != "5000001" {
		t.Errorf("external id = %q", byUUID.ExternalGiftID)
	}

	byExternal, err := store.Get(ctx, "5000001")
	if err != nil {
		t.Fatalf("Get(external) failed: %v", err)
	}
	if byExternal.ID != saved.ID {
		t.Errorf("Get by external id returned different row")
	}
	if byExternal.Attributes.Model == nil || byExternal.Attributes.Model.Name != "Golden" {
		t.Errorf("model attribute lost in round trip: %+v", byExternal.Attributes.Model)
	}
	if byExternal.Attributes.Backdrop == nil || byExternal.Attributes.Backdrop.CenterColor != "#ff4500" {
		t.Errorf("backdrop lost in round trip: %+v", byExternal.Attributes.Backdrop)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	ctx, store := setupStore(t)

	first, err := store.Upsert(ctx, newTestRecord("5000001", "31337"))
	if err != nil {
		t.Fatalf("first Upsert() failed: %v", err)
	}

	// Re-delivery of the same gift must not create a second row.
	second, err := store.Upsert(ctx, newTestRecord("5000001", "31337"))
	if err != nil {
		t.Fatalf("second Upsert() failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("re-delivery created a new row: %s vs %s", second.ID, first.ID)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("row count = %d, want 1", count)
	}
}

func TestUpsertMergesRicherFields(t *testing.T) {
	ctx, store := setupStore(t)

	sparse := &gift.Record{
		ExternalGiftID: "5000001",
		Title:          "Gift",
		FromID:         "unknown",
		ReceivedAt:     time.Now().UTC(),
	}
	if _, err := store.Upsert(ctx, sparse); err != nil {
		t.Fatalf("Upsert(sparse) failed: %v", err)
	}

	merged, err := store.Upsert(ctx, newTestRecord("5000001", "31337"))
	if err != nil {
		t.Fatalf("Upsert(rich) failed: %v", err)
	}
	if merged.Title != "Plush Pepe" {
		t.Errorf("title not enriched: %q", merged.Title)
	}
	if merged.FromID != "31337" {
		t.Errorf("from id not enriched: %q", merged.FromID)
	}
	if merged.Attributes.Model == nil {
		t.Error("attributes not enriched")
	}
}

func TestUpsertPreservesWithdrawalByDefault(t *testing.T) {
	ctx, store := setupStore(t)

	if _, err := store.Upsert(ctx, newTestRecord("5000001", "31337")); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	if _, err := store.Withdraw(ctx, "5000001", "555"); err != nil {
		t.Fatalf("Withdraw() failed: %v", err)
	}

	// Reconciliation replays the receive event; withdrawal must survive.
	merged, err := store.Upsert(ctx, newTestRecord("5000001", "31337"))
	if err != nil {
		t.Fatalf("replay Upsert() failed: %v", err)
	}
	if !merged.IsWithdrawn {
		t.Error("replay cleared withdrawal state")
	}
}

func TestUpsertOverwritesWithdrawalWhenConfigured(t *testing.T) {
	ctx, store := setupStore(t, WithOverwriteWithdrawn(true))

	if _, err := store.Upsert(ctx, newTestRecord("5000001", "31337")); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	if _, err := store.Withdraw(ctx, "5000001", "555"); err != nil {
		t.Fatalf("Withdraw() failed: %v", err)
	}

	merged, err := store.Upsert(ctx, newTestRecord("5000001", "31337"))
	if err != nil {
		t.Fatalf("replay Upsert() failed: %v", err)
	}
	if merged.IsWithdrawn {
		t.Error("expected replay to clear withdrawal state")
	}
	if merged.WithdrawnAt != nil || merged.WithdrawnToID != "" {
		t.Errorf("withdrawal fields not cleared: %+v", merged)
	}
}

func TestLegacyGiftsAlwaysInsert(t *testing.T) {
	ctx, store := setupStore(t)

	for i := 0; i < 3; i++ {
		rec := newTestRecord("", "31337")
		if _, err := store.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert(legacy %d) failed: %v", i, err)
		}
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != 3 {
		t.Errorf("row count = %d, want 3 (legacy gifts never merge)", count)
	}
}

func TestWithdrawAndRestore(t *testing.T) {
	ctx, store := setupStore(t)

	if _, err := store.Upsert(ctx, newTestRecord("5000001", "31337")); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}

	withdrawn, err := store.Withdraw(ctx, "5000001", "555")
	if err != nil {
		t.Fatalf("Withdraw() failed: %v", err)
	}
	if !withdrawn.IsWithdrawn || withdrawn.WithdrawnAt == nil {
		t.Errorf("withdrawal state not set: %+v", withdrawn)
	}
	if withdrawn.WithdrawnToID != "555" {
		t.Errorf("withdrawn to = %q, want 555", withdrawn.WithdrawnToID)
	}

	// Second withdrawal of the same gift must fail the precondition.
	if _, err := store.Withdraw(ctx, "5000001", "555"); !errors.Is(err, ErrGiftNotFound) {
		t.Errorf("double withdraw: got %v, want ErrGiftNotFound", err)
	}

	restored, err := store.Restore(ctx, "5000001")
	if err != nil {
		t.Fatalf("Restore() failed: %v", err)
	}
	if restored.IsWithdrawn || restored.WithdrawnAt != nil || restored.WithdrawnToID != "" {
		t.Errorf("restore did not clear state: %+v", restored)
	}

	if _, err := store.Restore(ctx, "5000001"); !errors.Is(err, ErrGiftNotFound) {
		t.Errorf("double restore: got %v, want ErrGiftNotFound", err)
	}
}

func TestWithdrawUnknownGift(t *testing.T) {
	ctx, store := setupStore(t)

	if _, err := store.Withdraw(ctx, "no-such-gift", ""); !errors.Is(err, ErrGiftNotFound) {
		t.Errorf("got %v, want ErrGiftNotFound", err)
	}
}

func TestQueryFilters(t *testing.T) {
	ctx, store := setupStore(t)

	a := newTestRecord("1", "alice")
	a.ReceivedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := newTestRecord("2", "bob")
	b.ReceivedAt = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	c := newTestRecord("3", "alice")
	c.ReceivedAt = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, rec := range []*gift.Record{a, b, c} {
		if _, err := store.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert() failed: %v", err)
		}
	}
	if _, err := store.Withdraw(ctx, "1", ""); err != nil {
		t.Fatalf("Withdraw() failed: %v", err)
	}

	all, err := store.Query(ctx)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 gifts, got %d", len(all))
	}
	// Newest first.
	if all[0].ExternalGiftID != "3" || all[2].ExternalGiftID != "1" {
		t.Errorf("unexpected order: %s..%s", all[0].ExternalGiftID, all[2].ExternalGiftID)
	}

	fromAlice, err := store.Query(ctx, WithFromID("alice"))
	if err != nil {
		t.Fatalf("Query(from alice) failed: %v", err)
	}
	if len(fromAlice) != 2 {
		t.Errorf("expected 2 gifts from alice, got %d", len(fromAlice))
	}

	active, err := store.Query(ctx, WithWithdrawn(false))
	if err != nil {
		t.Fatalf("Query(active) failed: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("expected 2 active gifts, got %d", len(active))
	}

	page, err := store.Query(ctx, WithLimit(1), WithOffset(1))
	if err != nil {
		t.Fatalf("Query(page) failed: %v", err)
	}
	if len(page) != 1 || page[0].ExternalGiftID != "2" {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestStats(t *testing.T) {
	ctx, store := setupStore(t)

	for i, from := range []string{"alice", "alice", "bob"} {
		rec := newTestRecord(string(rune('1'+i)), from)
		if _, err := store.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert() failed: %v", err)
		}
	}
	if _, err := store.Withdraw(ctx, "1", ""); err != nil {
		t.Fatalf("Withdraw() failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() failed: %v", err)
	}
	if stats.Total != 3 || stats.Active != 2 || stats.Withdrawn != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/2/1", stats.Total, stats.Active, stats.Withdrawn)
	}
	if len(stats.ByCounterparty) == 0 || stats.ByCounterparty[0].FromID != "alice" {
		t.Errorf("unexpected counterparty aggregation: %+v", stats.ByCounterparty)
	}
	if len(stats.Recent) != 3 {
		t.Errorf("expected 3 recent gifts, got %d", len(stats.Recent))
	}
}

func TestSetLottieURL(t *testing.T) {
	ctx, store := setupStore(t)

	saved, err := store.Upsert(ctx, newTestRecord("5000001", "31337"))
	if err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}

	if err := store.SetLottieURL(ctx, saved.ID, "/uploads/gifts/900100.json"); err != nil {
		t.Fatalf("SetLottieURL() failed: %v", err)
	}

	got, err := store.Get(ctx, saved.ID.String())
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.LottieURL != "/uploads/gifts/900100.json" {
		t.Errorf("lottie url = %q", got.LottieURL)
	}

	if err := store.SetLottieURL(ctx, uuid.New(), "x"); !errors.Is(err, ErrGiftNotFound) {
		t.Errorf("got %v, want ErrGiftNotFound", err)
	}
}

func TestGetNotFound(t *testing.T) {
	ctx, store := setupStore(t)

	if _, err := store.Get(ctx, uuid.New().String()); !errors.Is(err, ErrGiftNotFound) {
		t.Errorf("got %v, want ErrGiftNotFound", err)
	}
	if _, err := store.Get(ctx, "missing-external"); !errors.Is(err, ErrGiftNotFound) {
		t.Errorf("got %v, want ErrGiftNotFound", err)
	}
}
