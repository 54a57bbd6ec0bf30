package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/alged/giftstream/pkg/gift"
	"github.com/alged/giftstream/pkg/giftstore"
)

const serviceName = "GiftService"

// logService wraps Service with automatic logging of all method calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the gift Service.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

func (ls *logService) logCall(method string, start time.Time, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.String("service", serviceName),
		zap.String("method", method),
		zap.Duration("duration", time.Since(start)),
	)
	if err != nil {
		ls.logger.Error(method+" failed", append(fields, zap.Error(err))...)
		return
	}
	ls.logger.Info(method+" completed", fields...)
}

func (ls *logService) ListGifts(ctx context.Context, req *ListRequest) (resp *ListResponse, err error) {
	start := time.Now()
	defer func() {
		ls.logCall("ListGifts", start, err,
			zap.String("from_id", req.FromID),
			zap.Int("limit", req.Limit),
			zap.Int("offset", req.Offset))
	}()
	return ls.svc.ListGifts(ctx, req)
}

func (ls *logService) GetGift(ctx context.Context, id string) (rec *gift.Record, err error) {
	start := time.Now()
	defer func() { ls.logCall("GetGift", start, err, zap.String("id", id)) }()
	return ls.svc.GetGift(ctx, id)
}

func (ls *logService) Stats(ctx context.Context) (stats *giftstore.Stats, err error) {
	start := time.Now()
	defer func() { ls.logCall("Stats", start, err) }()
	return ls.svc.Stats(ctx)
}

func (ls *logService) WithdrawGift(ctx context.Context, id, toID string) (rec *gift.Record, err error) {
	start := time.Now()
	defer func() {
		ls.logCall("WithdrawGift", start, err,
			zap.String("id", id),
			zap.String("to_id", toID))
	}()
	return ls.svc.WithdrawGift(ctx, id, toID)
}

func (ls *logService) RestoreGift(ctx context.Context, id string) (rec *gift.Record, err error) {
	start := time.Now()
	defer func() { ls.logCall("RestoreGift", start, err, zap.String("id", id)) }()
	return ls.svc.RestoreGift(ctx, id)
}

func (ls *logService) ProcessGift(ctx context.Context, id string) (resp *ProcessResponse, err error) {
	start := time.Now()
	defer func() { ls.logCall("ProcessGift", start, err, zap.String("id", id)) }()
	return ls.svc.ProcessGift(ctx, id)
}
