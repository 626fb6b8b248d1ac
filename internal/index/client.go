// Package index pushes crawled documents to the vector-index service.
// The client is best-effort by design: callers log failures as warnings
// and never let them block persistence or fail a crawl.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nrs-project/notice-crawler/internal/crawler"
)

const defaultTimeout = 10 * time.Second

// Client posts documents to the vector service over HTTP JSON. An empty
// base URL disables the client entirely, letting deployments opt out.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ crawler.Indexer = (*Client)(nil)

// NewClient builds a Client. If baseURL is empty, Index is a no-op.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether the client is configured with a URL.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

type documentPayload struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Index upserts one document into the vector store.
func (c *Client) Index(ctx context.Context, id string, content string, metadata map[string]string) error {
	if !c.Enabled() {
		return nil
	}

	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	if _, ok := meta["original_id"]; !ok {
		meta["original_id"] = id
	}

	body, err := json.Marshal(documentPayload{ID: id, Text: content, Metadata: meta})
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/vector/documents", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("vector service returned %d", resp.StatusCode)
	}
	return nil
}
