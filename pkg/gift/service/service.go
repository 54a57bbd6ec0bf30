// Package service exposes the gift inventory over HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/alged/giftstream/pkg/app/errors"
	"github.com/alged/giftstream/pkg/assets"
	"github.com/alged/giftstream/pkg/gift"
	"github.com/alged/giftstream/pkg/giftstore"
)

// ListRequest holds the filters of a gift listing call.
type ListRequest struct {
	FromID    string
	Withdrawn *bool
	Limit     int
	Offset    int
}

// ListResponse is a filtered page of the inventory plus its total count.
type ListResponse struct {
	Total int            `json:"total"`
	Gifts []*gift.Record `json:"gifts"`
}

// ProcessResponse reports the outcome of an on-demand asset pass.
type ProcessResponse struct {
	GiftID    string   `json:"gift_id"`
	Processed bool     `json:"processed"`
	LottieURL string   `json:"lottie_url,omitempty"`
	AssetURLs []string `json:"asset_urls,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// Service defines the gift inventory business logic.
type Service interface {
	ListGifts(ctx context.Context, req *ListRequest) (*ListResponse, error)
	GetGift(ctx context.Context, id string) (*gift.Record, error)
	Stats(ctx context.Context) (*giftstore.Stats, error)
	WithdrawGift(ctx context.Context, id, toID string) (*gift.Record, error)
	RestoreGift(ctx context.Context, id string) (*gift.Record, error)
	ProcessGift(ctx context.Context, id string) (*ProcessResponse, error)
}

type giftService struct {
	store     giftstore.Store
	processor *assets.Processor
	logger    *zap.Logger
}

// NewService creates the gift inventory service.
func NewService(store giftstore.Store, processor *assets.Processor, logger *zap.Logger) Service {
	return &giftService{
		store:     store,
		processor: processor,
		logger:    logger,
	}
}

func (s *giftService) ListGifts(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	opts := []giftstore.QueryOption{
		giftstore.WithLimit(req.Limit),
		giftstore.WithOffset(req.Offset),
	}
	if req.FromID != "" {
		opts = append(opts, giftstore.WithFromID(req.FromID))
	}
	if req.Withdrawn != nil {
		opts = append(opts, giftstore.WithWithdrawn(*req.Withdrawn))
	}

	gifts, err := s.store.Query(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("listing gifts: %w", err)
	}
	total, err := s.store.Count(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("counting gifts: %w", err)
	}

	return &ListResponse{Total: total, Gifts: gifts}, nil
}

func (s *giftService) GetGift(ctx context.Context, id string) (*gift.Record, error) {
	rec, err := s.store.Get(ctx, id)
	if errors.Is(err, giftstore.ErrGiftNotFound) {
		return nil, apperrors.ResourceNotFoundError(err, "gift not found")
	}
	if err != nil {
		return nil, fmt.Errorf("getting gift: %w", err)
	}
	return rec, nil
}

func (s *giftService) Stats(ctx context.Context) (*giftstore.Stats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregating stats: %w", err)
	}
	return stats, nil
}

func (s *giftService) WithdrawGift(ctx context.Context, id, toID string) (*gift.Record, error) {
	rec, err := s.GetGift(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.ExternalGiftID == "" {
		return nil, apperrors.BadRequestError(nil, "legacy gift has no external id to withdraw by")
	}

	withdrawn, err := s.store.Withdraw(ctx, rec.ExternalGiftID, toID)
	if errors.Is(err, giftstore.ErrGiftNotFound) {
		return nil, apperrors.ConflictError(err, "gift already withdrawn")
	}
	if err != nil {
		return nil, fmt.Errorf("withdrawing gift: %w", err)
	}
	return withdrawn, nil
}

func (s *giftService) RestoreGift(ctx context.Context, id string) (*gift.Record, error) {
	rec, err := s.GetGift(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.ExternalGiftID == "" {
		return nil, apperrors.BadRequestError(nil, "legacy gift has no external id to restore by")
	}

	restored, err := s.store.Restore(ctx, rec.ExternalGiftID)
	if errors.Is(err, giftstore.ErrGiftNotFound) {
		return nil, apperrors.ConflictError(err, "gift is not withdrawn")
	}
	if err != nil {
		return nil, fmt.Errorf("restoring gift: %w", err)
	}
	return restored, nil
}

// ProcessGift runs an asset materialization pass for one gift. Degraded
// passes are reported, not failed: the caller gets processed=false plus the
// per-document errors.
func (s *giftService) ProcessGift(ctx context.Context, id string) (*ProcessResponse, error) {
	rec, err := s.GetGift(ctx, id)
	if err != nil {
		return nil, err
	}

	// Bound the pass so a stuck download cannot pin the request forever.
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	result := s.processor.ProcessGift(ctx, rec)
	resp := &ProcessResponse{
		GiftID:    rec.ID.String(),
		Processed: !result.Degraded(),
		LottieURL: result.LottieURL,
	}
	for _, asset := range result.Assets {
		resp.AssetURLs = append(resp.AssetURLs, asset.URL)
	}
	for _, procErr := range result.Errs {
		resp.Errors = append(resp.Errors, procErr.Error())
	}
	return resp, nil
}
