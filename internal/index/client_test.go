package index

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClient_PostsDocumentPayload(t *testing.T) {
	t.Parallel()

	var got documentPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/vector/documents", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	require.True(t, c.Enabled())

	err := c.Index(context.Background(), "doc-1", "notice body", map[string]string{"url": "https://x.edu/d/1.htm"})
	require.NoError(t, err)
	require.Equal(t, "doc-1", got.ID)
	require.Equal(t, "notice body", got.Text)
	require.Equal(t, "https://x.edu/d/1.htm", got.Metadata["url"])
	require.Equal(t, "doc-1", got.Metadata["original_id"])
}

func TestClient_KeepsCallerOriginalID(t *testing.T) {
	t.Parallel()

	var got documentPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	err := c.Index(context.Background(), "doc-1", "body", map[string]string{"original_id": "upstream-9"})
	require.NoError(t, err)
	require.Equal(t, "upstream-9", got.Metadata["original_id"])
}

func TestClient_DisabledIsNoOp(t *testing.T) {
	t.Parallel()

	c := NewClient("", 0)
	require.False(t, c.Enabled())
	require.NoError(t, c.Index(context.Background(), "doc-1", "body", nil))
}

func TestClient_Non2xxIsAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	err := c.Index(context.Background(), "doc-1", "body", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "503")
}
