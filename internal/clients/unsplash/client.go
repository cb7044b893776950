package unsplash

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/yungbote/insightflow-backend/internal/observability"
	"github.com/yungbote/insightflow-backend/internal/pkg/httpx"
	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
)

const (
	DefaultBaseURL = "https://api.unsplash.com"
	PerPage        = 9
	upstreamName   = "unsplash"
)

// ErrNotConfigured is returned when no access key is set.
var ErrNotConfigured = errors.New("image search is not configured")

type Config struct {
	AccessKey string        `yaml:"access_key"`
	BaseURL   string        `yaml:"base_url"`
	RPS       float64       `yaml:"rps"`
	Burst     int           `yaml:"burst"`
	Timeout   time.Duration `yaml:"timeout"`
	// MaxRetries bounds retries on retryable statuses. Zero means one retry.
	MaxRetries int `yaml:"max_retries"`
}

// Image is the trimmed search result handed to callers.
type Image struct {
	ID     string  `json:"id"`
	URL    string  `json:"url"`
	Alt    *string `json:"alt"`
	Author string  `json:"author"`
}

type Client interface {
	Search(ctx context.Context, query string) ([]Image, error)
}

type client struct {
	log        *logger.Logger
	httpClient *http.Client
	baseURL    string
	accessKey  string
	limiter    *rate.Limiter
	maxRetries int
}

func New(log *logger.Logger, cfg Config) Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 1
	}
	c := &client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    base,
		accessKey:  strings.TrimSpace(cfg.AccessKey),
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		maxRetries: retries,
	}
	if log != nil {
		c.log = log.With("client", "UnsplashClient")
	}
	return c
}

type searchResponse struct {
	Results []struct {
		ID   string `json:"id"`
		URLs struct {
			Regular string `json:"regular"`
		} `json:"urls"`
		AltDescription *string `json:"alt_description"`
		User           struct {
			Name string `json:"name"`
		} `json:"user"`
	} `json:"results"`
}

// Search returns up to PerPage photos for query. A blank query returns an empty
// slice without calling upstream.
func (c *client) Search(ctx context.Context, query string) ([]Image, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Image{}, nil
	}
	if c.accessKey == "" {
		return nil, ErrNotConfigured
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("per_page", fmt.Sprint(PerPage))
	endpoint := c.baseURL + "/search/photos?" + q.Encode()

	var (
		body    []byte
		lastErr error
	)
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		var resp *http.Response
		body, resp, lastErr = c.do(ctx, endpoint)
		if lastErr == nil {
			break
		}
		if attempt == c.maxRetries || !httpx.IsRetryableError(lastErr) {
			break
		}
		backoff := httpx.RetryAfterDuration(resp, 250*time.Millisecond, 2*time.Second)
		if c.log != nil {
			c.log.Warn("unsplash search retry", "attempt", attempt+1, "error", lastErr, "backoff", backoff)
		}
		if err := httpx.Sleep(ctx, httpx.JitterSleep(backoff)); err != nil {
			return nil, err
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode unsplash response: %w", err)
	}
	out := make([]Image, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		out = append(out, Image{
			ID:     r.ID,
			URL:    r.URLs.Regular,
			Alt:    r.AltDescription,
			Author: r.User.Name,
		})
	}
	return out, nil
}

func (c *client) do(ctx context.Context, endpoint string) ([]byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Client-ID "+c.accessKey)
	req.Header.Set("Accept-Version", "v1")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.Current().ObserveUpstream(upstreamName, 0, time.Since(start))
		return nil, nil, err
	}
	defer resp.Body.Close()
	observability.Current().ObserveUpstream(upstreamName, resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, resp, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp, &httpx.StatusError{Upstream: upstreamName, Status: resp.StatusCode, Body: truncate(string(body), 256)}
	}
	return body, resp, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
