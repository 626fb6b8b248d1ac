package collyfetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nrs-project/notice-crawler/internal/crawler"
)

func TestFetch_Succeeds(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "notice-bot", r.Header.Get("X-Custom"))
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second, MaxRetries: 1}, zap.NewNop())
	body, err := f.Fetch(context.Background(), srv.URL, map[string]string{"X-Custom": "notice-bot"})
	require.NoError(t, err)
	require.Equal(t, "<html>ok</html>", string(body))
}

func TestFetch_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second, MaxRetries: 2}, zap.NewNop())
	body, err := f.Fetch(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	require.Equal(t, "recovered", string(body))
	require.Equal(t, int32(2), calls.Load())
}

func TestFetch_ExhaustionReturnsTypedError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second, MaxRetries: 1}, zap.NewNop())
	body, err := f.Fetch(context.Background(), srv.URL, nil)
	require.Nil(t, body)

	var exhausted *crawler.FetchExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, srv.URL, exhausted.URL)
	require.Equal(t, 1, exhausted.Attempts)
}

func TestFetchBinary_DegradesToNil(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second, MaxRetries: 1}, zap.NewNop())
	require.Nil(t, f.FetchBinary(context.Background(), srv.URL, nil))
}

func TestFetchBinary_ReturnsBody(t *testing.T) {
	t.Parallel()

	payload := []byte{0x25, 0x50, 0x44, 0x46, 0x00, 0x01}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second, MaxRetries: 1}, zap.NewNop())
	require.Equal(t, payload, f.FetchBinary(context.Background(), srv.URL, nil))
}

func TestFetch_CanceledContextStopsRetrying(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(Config{Timeout: 5 * time.Second, MaxRetries: 3}, zap.NewNop())
	start := time.Now()
	_, err := f.Fetch(ctx, srv.URL, nil)
	require.Error(t, err)
	require.Less(t, time.Since(start), time.Second, "canceled fetch must not sit out the backoff")
}
