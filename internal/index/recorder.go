package index

import (
	"context"
	"sync"
)

// Recorder is an in-memory Indexer that records calls for inspection
// in tests and local development.
type Recorder struct {
	mu    sync.RWMutex
	calls []IndexedDocument
	err   error
}

// IndexedDocument captures one Index call.
type IndexedDocument struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Enabled always reports true so the pipeline exercises the sink.
func (r *Recorder) Enabled() bool {
	return true
}

// Fail makes subsequent Index calls return err.
func (r *Recorder) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Index records the call.
func (r *Recorder) Index(_ context.Context, id string, content string, metadata map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, IndexedDocument{ID: id, Content: content, Metadata: metadata})
	return nil
}

// Documents returns the recorded calls.
func (r *Recorder) Documents() []IndexedDocument {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]IndexedDocument, len(r.calls))
	copy(out, r.calls)
	return out
}
