package assets

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/alged/giftstream/internal/metrics"
	"github.com/alged/giftstream/pkg/gift"
)

// Downloader fetches raw document bytes from the platform.
type Downloader interface {
	DownloadDocument(ctx context.Context, id, accessHash string) ([]byte, error)
}

// Asset describes a materialized document.
type Asset struct {
	DocumentID  string
	Name        string
	URL         string
	LottieURL   string // set for lottie documents once decoded
	ContentType gift.ContentType
	Cached      bool // true when the asset was already stored
}

// Materializer downloads gift documents once and stores them as servable
// files. Concurrent requests for the same document are collapsed into one
// download.
type Materializer struct {
	storage    Storage
	downloader Downloader
	logger     *zap.Logger
	group      singleflight.Group
}

// NewMaterializer creates a materializer over the given storage backend.
func NewMaterializer(storage Storage, downloader Downloader, logger *zap.Logger) *Materializer {
	return &Materializer{
		storage:    storage,
		downloader: downloader,
		logger:     logger.Named("materializer"),
	}
}

// materializeTimeout bounds one download-and-store pass. The singleflight
// closure runs detached from the winning caller's context so that one
// caller's cancellation cannot fail the other waiters.
const materializeTimeout = 2 * time.Minute

// Materialize ensures the document's asset files exist in storage and
// returns their public location. Existing assets short-circuit without a
// download, so re-materializing is idempotent.
func (m *Materializer) Materialize(ctx context.Context, doc *gift.DocumentRef) (*Asset, error) {
	v, err, _ := m.group.Do(doc.ID, func() (any, error) {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), materializeTimeout)
		defer cancel()
		return m.materialize(dctx, doc)
	})
	// A decode failure still yields a usable raw asset alongside the error.
	asset, _ := v.(*Asset)
	return asset, err
}

func (m *Materializer) materialize(ctx context.Context, doc *gift.DocumentRef) (*Asset, error) {
	name := doc.ID + gift.FileExtension(doc.ContentType)
	asset := &Asset{
		DocumentID:  doc.ID,
		Name:        name,
		URL:         m.storage.URL(name),
		ContentType: doc.ContentType,
	}

	exists, err := m.storage.Exists(ctx, name)
	if err != nil {
		return nil, err
	}

	var data []byte
	if exists {
		asset.Cached = true
	} else {
		data, err = m.downloader.DownloadDocument(ctx, doc.ID, doc.AccessHash)
		if err != nil {
			metrics.AssetDownloadErrors.Inc()
			return nil, &DownloadError{DocumentID: doc.ID, Err: err}
		}
		if err := m.storage.Put(ctx, name, data, doc.MIMEType); err != nil {
			return nil, err
		}
		metrics.AssetsMaterialized.WithLabelValues(string(doc.ContentType)).Inc()
		m.logger.Debug("materialized document",
			zap.String("document_id", doc.ID),
			zap.String("content_type", string(doc.ContentType)),
			zap.Int("bytes", len(data)))
	}

	if doc.ContentType != gift.ContentLottie {
		return asset, nil
	}

	// Lottie stickers arrive gzip-compressed. Store the decoded animation
	// alongside the raw file so browsers can play it directly, and report
	// its URL only once the decoded file actually exists. When an earlier
	// pass stored the raw file but failed to decode it, a later pass reads
	// the raw bytes back and retries the decode. A decode failure keeps the
	// raw asset and is reported as degraded, not fatal.
	jsonName := doc.ID + ".json"
	decodedExists, err := m.storage.Exists(ctx, jsonName)
	if err != nil {
		return asset, err
	}
	if !decodedExists {
		if data == nil {
			data, err = m.storage.Get(ctx, name)
			if err != nil {
				return asset, err
			}
		}
		decoded, err := gunzip(data)
		if err != nil {
			return asset, &DecodeError{DocumentID: doc.ID, Err: err}
		}
		if err := m.storage.Put(ctx, jsonName, decoded, "application/json"); err != nil {
			return asset, err
		}
	}
	asset.LottieURL = m.storage.URL(jsonName)

	return asset, nil
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer r.Close()

	decoded, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	return decoded, nil
}
