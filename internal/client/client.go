package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/genricoloni/mediakeys/internal/domain"
	"go.uber.org/zap"
)

const (
	_maxImageSize    = 10 * 1024 * 1024 // 10 MB
	_maxSnapshotSize = 1024 * 1024

	userAgent = "mediakeysDaemon/1.0"
)

var (
	// ErrStatus is returned for non-2xx backend responses
	ErrStatus = errors.New("unexpected status code")

	// ErrNotImage is returned when the thumbnail endpoint answers with another content type
	ErrNotImage = errors.New("response is not an image")

	// ErrEmptyImage is returned when the thumbnail endpoint answers with no payload
	ErrEmptyImage = errors.New("empty image")
)

// Client talks to one backend on behalf of one key
type Client struct {
	logger      *zap.Logger
	http        *http.Client
	baseURL     string
	subscribers domain.SubscriberFactory

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a client for the configured backend
func New(logger *zap.Logger, cfg domain.Config, subscribers domain.SubscriberFactory) *Client {
	return &Client{
		logger:      logger,
		baseURL:     cfg.GetBackendURL(),
		subscribers: subscribers,
		http: &http.Client{
			Timeout: cfg.GetFetchTimeout(), // Essential to prevent a stalled backend from pinning a session
		},
	}
}

// NewFactory returns a ClientFactory creating one client per key
func NewFactory(logger *zap.Logger, cfg domain.Config, subscribers domain.SubscriberFactory) domain.ClientFactory {
	return func(keyID string) domain.MediaClient {
		return New(logger.With(zap.String("key", keyID)), cfg, subscribers)
	}
}

// Connect subscribes to push updates and delivers a fresh snapshot for each one
func (c *Client) Connect(ctx context.Context, handler func(domain.MediaSnapshot)) {
	c.start(ctx,
		func(ctx context.Context) { handler(c.FetchSnapshot(ctx)) },
		func(err error) { handler(domain.ErrorSnapshot(err.Error())) })
}

// ConnectThumbnail subscribes to push updates and delivers a fresh thumbnail for each one
func (c *Client) ConnectThumbnail(ctx context.Context, handler func(domain.Thumbnail, error)) {
	c.start(ctx,
		func(ctx context.Context) { handler(c.FetchThumbnail(ctx)) },
		func(err error) { handler(domain.Thumbnail{}, err) })
}

// start runs the subscription goroutine. Fetches triggered by notifications run
// serially on that goroutine.
func (c *Client) start(parent context.Context, onNotify func(context.Context), onFailure func(error)) {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go func() {
		defer close(done)

		err := c.subscribers().Subscribe(ctx, func() {
			if ctx.Err() != nil {
				return
			}
			onNotify(ctx)
		})
		if err != nil && ctx.Err() == nil {
			c.logger.Error("Push subscription failed", zap.Error(err))
			onFailure(err)
		}
	}()
}

// Disconnect stops the subscription and waits for its goroutine to exit.
// It must not be called from inside a handler.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// FetchSnapshot polls the snapshot endpoint. Every failure is folded into an error snapshot.
func (c *Client) FetchSnapshot(ctx context.Context) domain.MediaSnapshot {
	resp, err := c.get(ctx, "/media_info")
	if err != nil {
		c.logger.Warn("Snapshot fetch failed", zap.Error(err))
		return domain.ErrorSnapshot(err.Error())
	}
	defer resp.Body.Close()

	var snapshot domain.MediaSnapshot
	if err := json.NewDecoder(io.LimitReader(resp.Body, _maxSnapshotSize)).Decode(&snapshot); err != nil {
		c.logger.Warn("Snapshot decode failed", zap.Error(err))
		return domain.ErrorSnapshot(fmt.Sprintf("failed to decode snapshot: %v", err))
	}

	c.logger.Debug("Snapshot fetched",
		zap.String("title", snapshot.TitleOrEmpty()),
		zap.String("artist", snapshot.ArtistOrEmpty()),
		zap.Bool("error", snapshot.IsError()))
	return snapshot
}

// FetchThumbnail downloads the current album art
func (c *Client) FetchThumbnail(ctx context.Context) (domain.Thumbnail, error) {
	resp, err := c.get(ctx, "/thumbnail")
	if err != nil {
		return domain.Thumbnail{}, err
	}
	defer resp.Body.Close()

	mimeType, err := imageType(resp.Header.Get("Content-Type"))
	if err != nil {
		return domain.Thumbnail{}, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, _maxImageSize))
	if err != nil {
		return domain.Thumbnail{}, fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) == 0 {
		return domain.Thumbnail{}, ErrEmptyImage
	}

	c.logger.Debug("Thumbnail fetched", zap.Int("bytes", len(data)), zap.String("mime", mimeType))
	return domain.Thumbnail{Data: data, MimeType: mimeType}, nil
}

// get issues a GET against the backend and rejects non-2xx responses
func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	return resp, nil
}

// imageType resolves the payload mime type; an absent header means JPEG
func imageType(contentType string) (string, error) {
	if strings.TrimSpace(contentType) == "" {
		return domain.DefaultThumbnailMime, nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotImage, contentType)
	}
	if !strings.HasPrefix(mediaType, "image/") {
		return "", fmt.Errorf("%w: %s", ErrNotImage, contentType)
	}
	return mediaType, nil
}
