// Package remote stores snapshot blobs on an HTTP key/value service.
package remote

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"signal-analytics-go/internal/config"
	"signal-analytics-go/internal/store"
)

const (
	blobPath   = "/blobs/"
	maxRetries = 3
)

// Client is a BlobStore backed by a remote service exposing
// GET/PUT /blobs/{key}.
type Client struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
	// backoff is the first retry delay; it doubles per attempt.
	backoff time.Duration
}

var _ store.BlobStore = (*Client)(nil)

// NewClient creates a new blob service client.
func NewClient(cfg config.Store, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout)
	if cfg.APIKey != "" {
		client.SetHeader("X-API-Key", cfg.APIKey)
	}

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &Client{
		client:  client,
		logger:  logger.Named("remote"),
		limiter: limiter,
		backoff: time.Second,
	}
}

// Get fetches the blob stored under key.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	req := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/octet-stream")

	resp, err := c.doRequest(ctx, http.MethodGet, blobPath+url.PathEscape(key), req)
	if err != nil {
		return nil, fmt.Errorf("failed to get blob %s: %w", key, err)
	}
	return resp.Body(), nil
}

// Put stores data under key, replacing any previous blob.
func (c *Client) Put(ctx context.Context, key string, data []byte) error {
	req := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(data)

	if _, err := c.doRequest(ctx, http.MethodPut, blobPath+url.PathEscape(key), req); err != nil {
		c.logger.Error("Failed to put blob", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to put blob %s: %w", key, err)
	}
	c.logger.Debug("Stored blob", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	for i := 0; i < maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil
		}

		shouldRetry := false
		var retryAfter time.Duration

		if err == nil {
			statusCode := resp.StatusCode()
			switch {
			case statusCode == http.StatusNotFound:
				return nil, store.ErrNotFound
			case statusCode == http.StatusTooManyRequests:
				shouldRetry = true
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			case statusCode >= 500:
				shouldRetry = true
			}
		} else {
			// Network or other client-side errors
			shouldRetry = ctx.Err() == nil
		}

		if !shouldRetry {
			if err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		if i == maxRetries-1 {
			break
		}
		if retryAfter == 0 {
			retryAfter = time.Duration(math.Pow(2, float64(i))) * c.backoff
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err == nil {
		err = fmt.Errorf("last status %s", resp.Status())
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}
