// Package collyfetcher implements the retrying Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/nrs-project/notice-crawler/internal/crawler"
	"github.com/nrs-project/notice-crawler/internal/metrics"
)

// defaultUserAgent impersonates a current desktop Chrome; individual
// sources override it through their configured headers.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36"

// Config controls fetch behavior.
type Config struct {
	// Timeout applies per attempt, not cumulatively.
	Timeout time.Duration
	// MaxRetries is the total number of attempts, minimum 1.
	MaxRetries int
	UserAgent  string
}

// Fetcher fetches pages and binary assets with linear retry/backoff.
type Fetcher struct {
	cfg    Config
	base   *colly.Collector
	logger *zap.Logger
}

var _ crawler.Fetcher = (*Fetcher)(nil)

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	base := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.UserAgent(cfg.UserAgent),
	)
	return &Fetcher{cfg: cfg, base: base, logger: logger}
}

// Fetch retrieves url, retrying up to MaxRetries attempts with an
// increasing backoff of 1+attempt seconds. Exhausting retries returns a
// FetchExhaustedError.
func (f *Fetcher) Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < f.cfg.MaxRetries; attempt++ {
		body, err := f.attempt(ctx, url, headers)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt == f.cfg.MaxRetries-1 {
			break
		}
		backoff := time.Duration(1+attempt) * time.Second
		f.logger.Warn("fetch attempt failed",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Duration("retry_in", backoff),
			zap.Error(err),
		)
		metrics.FetchRetried()
		if err := sleep(ctx, backoff); err != nil {
			lastErr = err
			break
		}
	}
	exhausted := &crawler.FetchExhaustedError{URL: url, Attempts: f.cfg.MaxRetries, Err: lastErr}
	f.logger.Warn("fetch exhausted", zap.String("url", url), zap.Error(exhausted))
	return nil, exhausted
}

// FetchBinary follows the same retry policy as Fetch but a final failure
// degrades to a nil body: callers treat a missing attachment or image as
// "skip", never as pipeline-fatal.
func (f *Fetcher) FetchBinary(ctx context.Context, url string, headers map[string]string) []byte {
	body, err := f.Fetch(ctx, url, headers)
	if err != nil {
		return nil
	}
	return body
}

func (f *Fetcher) attempt(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	collector := f.base.Clone()
	collector.SetRequestTimeout(f.cfg.Timeout)

	var body []byte
	var fetchErr error

	collector.OnRequest(func(r *colly.Request) {
		for k, v := range headers {
			r.Headers.Set(k, v)
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := visit(ctx, collector, url); err != nil {
		return nil, err
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	return body, nil
}

// visit runs the collector in a goroutine so the caller's context can
// interrupt a slow attempt.
func visit(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		return err
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
