package services

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jjshay/music-videos-app/internal/logger"
)

const (
	downloadTimeout = 120 * time.Second

	maxRetries     = 4
	baseRetryDelay = 1 * time.Second
	maxRetryDelay  = 30 * time.Second
)

// Downloader fetches remote media files to disk with retries and
// exponential backoff. Stock-footage CDNs throttle and reset connections
// often enough that a single attempt is not good enough.
type Downloader struct {
	client *http.Client
}

func NewDownloader() *Downloader {
	return &Downloader{
		client: &http.Client{
			Timeout: downloadTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Fetch downloads url to dest, following redirects, retrying transient
// failures.
func (d *Downloader) Fetch(ctx context.Context, url, dest string) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay(attempt)
			logger.L().Info("download retry",
				zap.Int("attempt", attempt), zap.Int("max", maxRetries), zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return fmt.Errorf("download cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		err := d.fetchOnce(ctx, url, dest)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
		logger.L().Warn("download attempt failed (retryable)", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return fmt.Errorf("download failed after %d attempts: %w", maxRetries+1, lastErr)
}

func (d *Downloader) fetchOnce(ctx context.Context, url, dest string) error {
	reqCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		err := fmt.Errorf("download failed with status %d: %s", resp.StatusCode, string(body))
		if isRetryableStatus(resp.StatusCode) {
			return retryableError{err}
		}
		return err
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(dest)
		return retryableError{fmt.Errorf("failed to write download body: %w", err)}
	}
	return nil
}

// retryableError marks status-based failures worth another attempt.
type retryableError struct{ error }

func (r retryableError) Unwrap() error { return r.error }

// retryDelay calculates exponential backoff with jitter: base * 2^attempt + random jitter
func retryDelay(attempt int) time.Duration {
	delay := float64(baseRetryDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxRetryDelay) {
		delay = float64(maxRetryDelay)
	}
	// Add 0–25% jitter to avoid thundering herd
	jitter := delay * 0.25 * rand.Float64()
	return time.Duration(delay + jitter)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(retryableError); ok {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "broken pipe")
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout ||
		status == http.StatusBadGateway ||
		status == http.StatusServiceUnavailable ||
		status == http.StatusGatewayTimeout
}
