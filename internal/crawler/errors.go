package crawler

import (
	"errors"
	"fmt"
)

// ErrUnknownSource is returned when a crawl references a source id that
// is not configured. It is the only error that crosses the pipeline
// boundary; everything else degrades to fewer results plus a log line.
var ErrUnknownSource = errors.New("unknown source id")

// ErrListingUnavailable is returned when every listing page of a source
// failed to fetch, leaving the crawl with nothing to work on.
var ErrListingUnavailable = errors.New("listing pages unavailable")

// FetchExhaustedError reports that all retry attempts for a URL failed.
type FetchExhaustedError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchExhaustedError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchExhaustedError) Unwrap() error {
	return e.Err
}
