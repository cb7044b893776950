package httpfetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/insightflow-backend/internal/observability"
	"github.com/yungbote/insightflow-backend/internal/pkg/httpx"
	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
)

const upstreamName = "dataset_http"

type Config struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxBytes   int64         `yaml:"max_bytes"`
	MaxRetries int           `yaml:"max_retries"`
}

// Fetcher downloads http(s) resources with a size cap and bounded retry.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

type fetcher struct {
	log        *logger.Logger
	httpClient *http.Client
	maxBytes   int64
	maxRetries int
}

// ErrTooLarge is returned when the body exceeds the configured cap.
type ErrTooLarge struct{ Limit int64 }

func (e *ErrTooLarge) Error() string { return fmt.Sprintf("response exceeds %d bytes", e.Limit) }

func New(log *logger.Logger, cfg Config) Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 4 << 20
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	f := &fetcher{
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   maxBytes,
		maxRetries: retries,
	}
	if log != nil {
		f.log = log.With("client", "HTTPFetcher")
	}
	return f
}

// Fetch buffers the body so a retry never hands a half-read stream to the caller.
func (f *fetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid dataset url %q", rawURL)
	}

	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		body, resp, err := f.once(ctx, u.String())
		if err == nil {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		lastErr = err
		if attempt == f.maxRetries || !httpx.IsRetryableError(err) || ctx.Err() != nil {
			break
		}
		backoff := httpx.RetryAfterDuration(resp, time.Duration(attempt+1)*500*time.Millisecond, 5*time.Second)
		if f.log != nil {
			f.log.Warn("dataset fetch retry", "host", u.Host, "attempt", attempt+1, "error", err)
		}
		if err := httpx.Sleep(ctx, httpx.JitterSleep(backoff)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (f *fetcher) once(ctx context.Context, target string) ([]byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, err
	}
	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		observability.Current().ObserveUpstream(upstreamName, 0, time.Since(start))
		return nil, nil, err
	}
	defer resp.Body.Close()
	observability.Current().ObserveUpstream(upstreamName, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, resp, &httpx.StatusError{Upstream: upstreamName, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if resp.ContentLength > f.maxBytes {
		return nil, resp, &ErrTooLarge{Limit: f.maxBytes}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, resp, err
	}
	if int64(len(body)) > f.maxBytes {
		return nil, resp, &ErrTooLarge{Limit: f.maxBytes}
	}
	return body, resp, nil
}
