package giftstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/alged/giftstream/pkg/gift"
)

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 200
)

type pgStore struct {
	db *bun.DB

	// overwriteWithdrawn makes re-delivered receive events clear a locally
	// recorded withdrawal instead of preserving it.
	overwriteWithdrawn bool
}

// StoreOption configures a Store at construction time.
type StoreOption func(*pgStore)

// WithOverwriteWithdrawn controls whether an upsert for an already withdrawn
// gift resets its withdrawal state.
func WithOverwriteWithdrawn(overwrite bool) StoreOption {
	return func(s *pgStore) {
		s.overwriteWithdrawn = overwrite
	}
}

// NewStore creates a PostgreSQL backed gift store.
func NewStore(db *bun.DB, opts ...StoreOption) Store {
	s := &pgStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *pgStore) Upsert(ctx context.Context, rec *gift.Record) (*gift.Record, error) {
	dao := toDao(rec)
	if dao.ID == uuid.Nil {
		dao.ID = uuid.New()
	}
	now := time.Now().UTC()
	dao.CreatedAt = now
	dao.UpdatedAt = now

	// Legacy payloads without an external id cannot be deduplicated, so
	// each delivery becomes its own row.
	if dao.ExternalGiftID == nil {
		if _, err := s.db.NewInsert().Model(dao).Exec(ctx); err != nil {
			return nil, fmt.Errorf("inserting gift: %w", err)
		}
		return toRecord(dao), nil
	}

	var result *GiftDao
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		existing := new(GiftDao)
		err := tx.NewSelect().
			Model(existing).
			Where("external_gift_id = ?", *dao.ExternalGiftID).
			For("UPDATE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			if _, err := tx.NewInsert().Model(dao).Exec(ctx); err != nil {
				return fmt.Errorf("inserting gift: %w", err)
			}
			result = dao
			return nil
		}
		if err != nil {
			return fmt.Errorf("selecting gift for merge: %w", err)
		}

		s.merge(existing, dao)
		existing.UpdatedAt = now
		if _, err := tx.NewUpdate().Model(existing).WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("updating gift: %w", err)
		}
		result = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toRecord(result), nil
}

// merge folds the fields of an incoming row into the stored one. Incoming
// values win when present so reconciliation can enrich sparse event rows,
// but absent incoming fields never erase stored data.
func (s *pgStore) merge(existing, incoming *GiftDao) {
	if incoming.Title != "" && incoming.Title != "Gift" {
		existing.Title = incoming.Title
	}
	if incoming.FromID != "" && incoming.FromID != "unknown" {
		existing.FromID = incoming.FromID
	}
	if len(incoming.Document) > 0 {
		existing.Document = incoming.Document
	}
	if len(incoming.Model) > 0 {
		existing.Model = incoming.Model
	}
	if len(incoming.Backdrop) > 0 {
		existing.Backdrop = incoming.Backdrop
	}
	if len(incoming.Pattern) > 0 {
		existing.Pattern = incoming.Pattern
	}
	if len(incoming.OriginalDetails) > 0 {
		existing.OriginalDetails = incoming.OriginalDetails
	}
	if len(incoming.RawPayload) > 0 {
		existing.RawPayload = incoming.RawPayload
	}
	if existing.ReceivedAt.IsZero() {
		existing.ReceivedAt = incoming.ReceivedAt
	}
	if s.overwriteWithdrawn && existing.IsWithdrawn && !incoming.IsWithdrawn {
		existing.IsWithdrawn = false
		existing.WithdrawnAt = nil
		existing.WithdrawnToID = nil
	}
}

func (s *pgStore) Withdraw(ctx context.Context, externalGiftID, toID string) (*gift.Record, error) {
	return s.transition(ctx, externalGiftID, false, func(dao *GiftDao, now time.Time) {
		dao.IsWithdrawn = true
		dao.WithdrawnAt = &now
		if toID != "" {
			dao.WithdrawnToID = &toID
		}
	})
}

func (s *pgStore) Restore(ctx context.Context, externalGiftID string) (*gift.Record, error) {
	return s.transition(ctx, externalGiftID, true, func(dao *GiftDao, _ time.Time) {
		dao.IsWithdrawn = false
		dao.WithdrawnAt = nil
		dao.WithdrawnToID = nil
	})
}

// transition applies a withdrawal state change to the gift whose current
// is_withdrawn flag matches fromState. The row is locked for the duration so
// concurrent transitions serialize and exactly one of them succeeds.
func (s *pgStore) transition(
	ctx context.Context,
	externalGiftID string,
	fromState bool,
	apply func(*GiftDao, time.Time),
) (*gift.Record, error) {
	var result *GiftDao
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		dao := new(GiftDao)
		err := tx.NewSelect().
			Model(dao).
			Where("external_gift_id = ?", externalGiftID).
			Where("is_withdrawn = ?", fromState).
			For("UPDATE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrGiftNotFound
		}
		if err != nil {
			return fmt.Errorf("selecting gift for transition: %w", err)
		}

		now := time.Now().UTC()
		apply(dao, now)
		dao.UpdatedAt = now
		if _, err := tx.NewUpdate().Model(dao).WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("updating gift state: %w", err)
		}
		result = dao
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toRecord(result), nil
}

func (s *pgStore) Get(ctx context.Context, id string) (*gift.Record, error) {
	dao := new(GiftDao)
	q := s.db.NewSelect().Model(dao)
	if uid, err := uuid.Parse(id); err == nil {
		q = q.Where("id = ?", uid)
	} else {
		q = q.Where("external_gift_id = ?", id).
			Order("received_at DESC").
			Limit(1)
	}
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGiftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting gift: %w", err)
	}
	return toRecord(dao), nil
}

func (s *pgStore) SetLottieURL(ctx context.Context, id uuid.UUID, url string) error {
	res, err := s.db.NewUpdate().
		Model((*GiftDao)(nil)).
		Set("lottie_url = ?", url).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("updating lottie url: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if rows == 0 {
		return ErrGiftNotFound
	}
	return nil
}

func (s *pgStore) Query(ctx context.Context, opts ...QueryOption) ([]*gift.Record, error) {
	options := applyOptions(opts)

	var daos []*GiftDao
	q := s.db.NewSelect().Model(&daos)
	q = applyFilters(q, options)
	q = q.Order("received_at DESC").
		Limit(options.Limit).
		Offset(options.Offset)

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("querying gifts: %w", err)
	}

	records := make([]*gift.Record, len(daos))
	for i, dao := range daos {
		records[i] = toRecord(dao)
	}
	return records, nil
}

func (s *pgStore) Count(ctx context.Context, opts ...QueryOption) (int, error) {
	options := applyOptions(opts)
	q := s.db.NewSelect().Model((*GiftDao)(nil))
	q = applyFilters(q, options)
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting gifts: %w", err)
	}
	return count, nil
}

func (s *pgStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	total, err := s.db.NewSelect().Model((*GiftDao)(nil)).Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting gifts: %w", err)
	}
	stats.Total = total

	withdrawn, err := s.db.NewSelect().
		Model((*GiftDao)(nil)).
		Where("is_withdrawn = TRUE").
		Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting withdrawn gifts: %w", err)
	}
	stats.Withdrawn = withdrawn
	stats.Active = total - withdrawn

	err = s.db.NewSelect().
		Model((*GiftDao)(nil)).
		ColumnExpr("from_id").
		ColumnExpr("count(*) AS count").
		Group("from_id").
		OrderExpr("count DESC").
		Limit(10).
		Scan(ctx, &stats.ByCounterparty)
	if err != nil {
		return nil, fmt.Errorf("aggregating counterparties: %w", err)
	}

	err = s.db.NewSelect().
		Model((*GiftDao)(nil)).
		ColumnExpr("model->>'name' AS model").
		ColumnExpr("count(*) AS count").
		Where("model IS NOT NULL").
		Group("model->>'name'").
		OrderExpr("count DESC").
		Limit(10).
		Scan(ctx, &stats.ByModel)
	if err != nil {
		return nil, fmt.Errorf("aggregating models: %w", err)
	}

	recent, err := s.Query(ctx, WithLimit(5))
	if err != nil {
		return nil, err
	}
	stats.Recent = recent

	return stats, nil
}

func applyOptions(opts []QueryOption) *QueryOptions {
	options := &QueryOptions{Limit: defaultQueryLimit}
	for _, opt := range opts {
		opt(options)
	}
	if options.Limit <= 0 {
		options.Limit = defaultQueryLimit
	}
	if options.Limit > maxQueryLimit {
		options.Limit = maxQueryLimit
	}
	if options.Offset < 0 {
		options.Offset = 0
	}
	return options
}

func applyFilters(q *bun.SelectQuery, options *QueryOptions) *bun.SelectQuery {
	if options.FromID != nil {
		q = q.Where("from_id = ?", *options.FromID)
	}
	if options.Withdrawn != nil {
		q = q.Where("is_withdrawn = ?", *options.Withdrawn)
	}
	return q
}
