package assets

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alged/giftstream/pkg/gift"
)

// LottieURLSetter persists the decoded animation URL onto a gift record.
type LottieURLSetter interface {
	SetLottieURL(ctx context.Context, id uuid.UUID, url string) error
}

// ProcessResult reports what a gift processing pass achieved. Errs holds the
// per-document failures of a degraded pass; the pass as a whole still
// succeeded for every asset listed.
type ProcessResult struct {
	GiftID    uuid.UUID
	Assets    []*Asset
	LottieURL string
	Errs      []error
}

// Degraded reports whether any document failed to materialize fully.
func (r *ProcessResult) Degraded() bool { return len(r.Errs) > 0 }

// Processor materializes every document a gift references and records the
// resulting animation URL on the gift row.
type Processor struct {
	materializer *Materializer
	store        LottieURLSetter
	logger       *zap.Logger
}

// NewProcessor creates a gift asset processor.
func NewProcessor(materializer *Materializer, store LottieURLSetter, logger *zap.Logger) *Processor {
	return &Processor{
		materializer: materializer,
		store:        store,
		logger:       logger.Named("assets"),
	}
}

// ProcessGift materializes the gift's main document plus any model and
// pattern documents. Individual document failures degrade the result instead
// of aborting it: the gift row is already persisted and a later pass can
// fill in what is missing.
func (p *Processor) ProcessGift(ctx context.Context, rec *gift.Record) *ProcessResult {
	result := &ProcessResult{GiftID: rec.ID}

	docs := rec.Documents()
	for i := range docs {
		doc := &docs[i]
		asset, err := p.materializer.Materialize(ctx, doc)
		if err != nil {
			result.Errs = append(result.Errs, err)
			p.logger.Warn("document materialization failed",
				zap.String("gift_id", rec.ID.String()),
				zap.String("document_id", doc.ID),
				zap.Error(err))
			if asset == nil {
				continue
			}
		}
		result.Assets = append(result.Assets, asset)

		// Only the main document's animation becomes the gift's lottie URL.
		if i == 0 && rec.Document != nil && asset.LottieURL != "" && err == nil {
			result.LottieURL = asset.LottieURL
		}
	}

	if result.LottieURL != "" && result.LottieURL != rec.LottieURL {
		if err := p.store.SetLottieURL(ctx, rec.ID, result.LottieURL); err != nil {
			result.Errs = append(result.Errs, err)
			p.logger.Warn("storing lottie url failed",
				zap.String("gift_id", rec.ID.String()),
				zap.Error(err))
		}
	}

	return result
}
