package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/alged/giftstream/pkg/config"
)

// BridgeClient talks to the session bridge: a sidecar that owns the
// authenticated MTProto session and exposes it over plain HTTP. Updates are
// long-polled; documents are fetched through a rate-limited download
// endpoint so a burst of gift events cannot saturate the session.
type BridgeClient struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger

	pollTimeout     time.Duration
	downloadTimeout time.Duration
}

var _ Client = (*BridgeClient)(nil)

// NewBridgeClient creates a client for the configured session bridge.
func NewBridgeClient(cfg *config.TelegramConfig, logger *zap.Logger) (*BridgeClient, error) {
	if cfg.BridgeURL == "" {
		return nil, fmt.Errorf("telegram.bridge_url is required")
	}
	if _, err := url.Parse(cfg.BridgeURL); err != nil {
		return nil, fmt.Errorf("invalid bridge url: %w", err)
	}

	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 25 * time.Second
	}
	downloadTimeout := cfg.DownloadTimeout
	if downloadTimeout <= 0 {
		downloadTimeout = 60 * time.Second
	}
	perSecond := cfg.DownloadsPerSecond
	if perSecond <= 0 {
		perSecond = 2
	}

	return &BridgeClient{
		baseURL:   cfg.BridgeURL,
		authToken: cfg.AuthToken,
		httpClient: &http.Client{
			// Long-poll requests hold the connection open for pollTimeout;
			// leave headroom on top of it.
			Timeout: pollTimeout + 15*time.Second,
		},
		limiter:         rate.NewLimiter(rate.Limit(perSecond), 1),
		logger:          logger,
		pollTimeout:     pollTimeout,
		downloadTimeout: downloadTimeout,
	}, nil
}

// Ping verifies the bridge holds a live authenticated session.
func (c *BridgeClient) Ping(ctx context.Context) error {
	var status struct {
		Authorized bool `json:"authorized"`
	}
	if err := c.getJSON(ctx, "/session", nil, &status); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}
	if !status.Authorized {
		return ErrSessionInvalid
	}
	return nil
}

// SubscribeUpdates long-polls the bridge update feed and emits updates in
// delivery order until ctx is canceled or the transport fails.
func (c *BridgeClient) SubscribeUpdates(ctx context.Context) (<-chan *Update, <-chan error) {
	outCh := make(chan *Update, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		c.logger.Info("Starting update stream", zap.String("bridge", c.baseURL))

		offset := int64(0)
		for {
			if ctx.Err() != nil {
				return
			}

			page, err := c.pollUpdates(ctx, offset)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				errCh <- fmt.Errorf("update poll: %w", err)
				return
			}

			for _, u := range page.Updates {
				select {
				case outCh <- u:
				case <-ctx.Done():
					return
				}
			}
			if page.NextOffset > offset {
				offset = page.NextOffset
			}
		}
	}()

	return outCh, errCh
}

type updatesPage struct {
	Updates    []*Update `json:"updates"`
	NextOffset int64     `json:"next_offset"`
}

func (c *BridgeClient) pollUpdates(ctx context.Context, offset int64) (*updatesPage, error) {
	q := url.Values{}
	q.Set("offset", strconv.FormatInt(offset, 10))
	q.Set("timeout", strconv.Itoa(int(c.pollTimeout.Seconds())))

	var page updatesPage
	if err := c.getJSON(ctx, "/updates", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SavedGifts fetches one page of the account's gift history.
func (c *BridgeClient) SavedGifts(ctx context.Context, offset string, limit int) (*SavedGiftsPage, error) {
	q := url.Values{}
	if offset != "" {
		q.Set("offset", offset)
	}
	q.Set("limit", strconv.Itoa(limit))

	var page SavedGiftsPage
	if err := c.getJSON(ctx, "/gifts/saved", q, &page); err != nil {
		return nil, fmt.Errorf("saved gifts: %w", err)
	}
	return &page, nil
}

// GiftCatalogEntry looks up a gift in the platform catalog.
func (c *BridgeClient) GiftCatalogEntry(ctx context.Context, giftID string) (*StarGiftPayload, error) {
	var payload StarGiftPayload
	if err := c.getJSON(ctx, "/gifts/catalog/"+url.PathEscape(giftID), nil, &payload); err != nil {
		return nil, fmt.Errorf("catalog lookup %s: %w", giftID, err)
	}
	return &payload, nil
}

// DownloadDocument fetches a document's bytes. Calls are throttled and
// bounded by the configured download timeout so a stalled transfer fails
// instead of hanging the caller.
func (c *BridgeClient) DownloadDocument(ctx context.Context, id, accessHash string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.downloadTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("access_hash", accessHash)

	req, err := c.newRequest(ctx, "/documents/"+url.PathEscape(id), q)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download document %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download document %s: bridge returned %s", id, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download document %s: %w", id, err)
	}
	return data, nil
}

func (c *BridgeClient) newRequest(ctx context.Context, path string, q url.Values) (*http.Request, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	return req, nil
}

func (c *BridgeClient) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	req, err := c.newRequest(ctx, path, q)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrSessionInvalid
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bridge returned %s for %s", resp.Status, path)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
