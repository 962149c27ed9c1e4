package links

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lueurxax/signal-digest/internal/platform/worker"
)

var (
	ErrTooManyRedirects = errors.New("too many redirects")
	ErrHTTPStatusNotOK  = errors.New("HTTP status not OK")
)

const (
	defaultFetchTimeout = 10 * time.Second
	defaultUserAgent    = "signal-digest/1.0"
	defaultRetries      = 3
	defaultBackoff      = 500 * time.Millisecond
	defaultHostRPS      = 1
	hostBurst           = 2

	maxRedirects     = 5
	maxBodySizeBytes = 5 << 20

	acceptHTML = "text/html,application/xhtml+xml"
)

// FetcherConfig tunes a WebFetcher. Zero values take the defaults.
type FetcherConfig struct {
	Timeout   time.Duration
	UserAgent string
	// Retries is the total number of attempts per request.
	Retries int
	// Backoff is the first retry delay; it doubles on every attempt.
	Backoff time.Duration
	// HostRPS limits requests per host. Negative disables the limit.
	HostRPS float64
}

func (c FetcherConfig) withDefaults() FetcherConfig {
	if c.Timeout <= 0 {
		c.Timeout = defaultFetchTimeout
	}

	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}

	if c.Retries < 1 {
		c.Retries = defaultRetries
	}

	if c.Backoff <= 0 {
		c.Backoff = defaultBackoff
	}

	if c.HostRPS == 0 {
		c.HostRPS = defaultHostRPS
	}

	return c
}

// WebFetcher issues GET requests for feeds, APIs and article pages. Requests
// to one host are rate limited, and network errors, 429 and 5xx responses
// are retried with exponential backoff.
type WebFetcher struct {
	cfg    FetcherConfig
	client *http.Client
	logger *zerolog.Logger

	mu    sync.Mutex
	hosts map[string]*rate.Limiter
}

// NewWebFetcher creates a fetcher.
func NewWebFetcher(cfg FetcherConfig, logger *zerolog.Logger) *WebFetcher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	cfg = cfg.withDefaults()

	return &WebFetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return ErrTooManyRedirects
				}

				return nil
			},
		},
		logger: logger,
		hosts:  make(map[string]*rate.Limiter),
	}
}

// Fetch retrieves an HTML page.
func (f *WebFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	return f.FetchWithHeaders(ctx, rawURL, http.Header{"Accept": []string{acceptHTML}})
}

// FetchWithHeaders retrieves rawURL with extra request headers. Bodies are
// capped at 5MB.
func (f *WebFetcher) FetchWithHeaders(ctx context.Context, rawURL string, headers http.Header) ([]byte, error) {
	limiter := f.hostLimiter(hostOf(rawURL))
	delay := f.cfg.Backoff

	var lastErr error

	for attempt := 1; attempt <= f.cfg.Retries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("host rate limiter wait: %w", err)
		}

		body, retry, err := f.get(ctx, rawURL, headers)
		if err == nil {
			return body, nil
		}

		lastErr = err

		if !retry || attempt == f.cfg.Retries {
			break
		}

		f.logger.Debug().Err(err).Str("url", rawURL).Int("attempt", attempt).Dur("backoff", delay).Msg("fetch failed, retrying")

		if err := worker.Wait(ctx, delay); err != nil {
			return nil, err
		}

		delay *= 2
	}

	return nil, lastErr
}

// get performs one attempt and reports whether a failure is worth retrying.
func (f *WebFetcher) get(ctx context.Context, rawURL string, headers http.Header) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil && !errors.Is(err, ErrTooManyRedirects), fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError

		return nil, retry, fmt.Errorf("%w: %d", ErrHTTPStatusNotOK, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySizeBytes))
	if err != nil {
		return nil, true, fmt.Errorf("read response body: %w", err)
	}

	return body, false, nil
}

func (f *WebFetcher) hostLimiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	if l, ok := f.hosts[host]; ok {
		return l
	}

	limit := rate.Limit(f.cfg.HostRPS)
	if f.cfg.HostRPS < 0 {
		limit = rate.Inf
	}

	l := rate.NewLimiter(limit, hostBurst)
	f.hosts[host] = l

	return l
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	return strings.ToLower(u.Host)
}
