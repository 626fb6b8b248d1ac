package crawler

import (
	"context"
	"time"
)

// Fetcher retrieves remote content with retry semantics.
type Fetcher interface {
	// Fetch returns the response body or an error once retries are
	// exhausted (FetchExhaustedError).
	Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error)
	// FetchBinary follows the same retry policy but degrades to a nil
	// body on final failure; callers treat that as "skip".
	FetchBinary(ctx context.Context, url string, headers map[string]string) []byte
}

// RecordStore persists crawl records keyed by content identifier.
type RecordStore interface {
	Exists(ctx context.Context, id string) (bool, error)
	// Insert is idempotent: a duplicate id is a no-op, not an error.
	Insert(ctx context.Context, record Record) error
	MarkSynced(ctx context.Context, ids []string) error
}

// Indexer pushes a record's content to the downstream search/vector sink.
// Failures are logged by the caller and never abort a crawl.
type Indexer interface {
	Enabled() bool
	Index(ctx context.Context, id string, content string, metadata map[string]string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
