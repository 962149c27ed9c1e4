package links

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHTMLBody = "<html><body>Test content</body></html>"

func fastFetcher() *WebFetcher {
	return NewWebFetcher(FetcherConfig{Timeout: 5 * time.Second, Backoff: time.Millisecond, HostRPS: -1}, nil)
}

func TestFetcherConfigDefaults(t *testing.T) {
	cfg := FetcherConfig{}.withDefaults()

	assert.Equal(t, defaultFetchTimeout, cfg.Timeout)
	assert.Equal(t, defaultUserAgent, cfg.UserAgent)
	assert.Equal(t, 3, cfg.Retries)
	assert.Equal(t, 500*time.Millisecond, cfg.Backoff)
	assert.InDelta(t, 1.0, cfg.HostRPS, 1e-9)

	custom := FetcherConfig{Timeout: time.Second, UserAgent: "ua", Retries: 1, Backoff: time.Second, HostRPS: -1}.withDefaults()
	assert.Equal(t, "ua", custom.UserAgent)
	assert.Equal(t, 1, custom.Retries)
	assert.Negative(t, custom.HostRPS)
}

func TestHostOf(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://example.com/page", "example.com"},
		{"https://API.Example.com/v1", "api.example.com"},
		{"https://example.com:8080/x", "example.com:8080"},
		{"://bad", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, hostOf(tt.raw), tt.raw)
	}
}

func TestHostLimiterIsShared(t *testing.T) {
	f := fastFetcher()

	a := f.hostLimiter("example.com")
	assert.Same(t, a, f.hostLimiter("example.com"))
	assert.NotSame(t, a, f.hostLimiter("other.com"))
}

func TestFetchSendsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "digest-test", r.Header.Get("User-Agent"))
		assert.Equal(t, acceptHTML, r.Header.Get("Accept"))
		assert.Equal(t, "token abc", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(testHTMLBody))
	}))
	defer server.Close()

	f := NewWebFetcher(FetcherConfig{UserAgent: "digest-test", HostRPS: -1}, nil)

	body, err := f.FetchWithHeaders(context.Background(), server.URL, http.Header{
		"Accept":        []string{acceptHTML},
		"Authorization": []string{"token abc"},
	})
	require.NoError(t, err)
	assert.Equal(t, testHTMLBody, string(body))
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		_, _ = w.Write([]byte(testHTMLBody))
	}))
	defer server.Close()

	body, err := fastFetcher().Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, testHTMLBody, string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := fastFetcher().Fetch(context.Background(), server.URL)
	require.ErrorIs(t, err, ErrHTTPStatusNotOK)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := fastFetcher().Fetch(context.Background(), server.URL)
	require.ErrorIs(t, err, ErrHTTPStatusNotOK)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchRedirectLimit(t *testing.T) {
	var calls atomic.Int32

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Redirect(w, r, server.URL+"/again", http.StatusFound)
	}))
	defer server.Close()

	_, err := fastFetcher().Fetch(context.Background(), server.URL)
	require.ErrorIs(t, err, ErrTooManyRedirects)
	assert.Equal(t, int32(maxRedirects), calls.Load(), "redirect loops are not retried")
}

func TestFetchCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fastFetcher().Fetch(ctx, server.URL)
	require.ErrorIs(t, err, context.Canceled)
}
