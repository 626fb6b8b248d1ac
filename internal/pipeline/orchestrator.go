// Package pipeline drives full crawls: paginate the listing, fan out
// detail processing under a concurrency cap, gate on content identity,
// and hand new records to storage and the index sink.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nrs-project/notice-crawler/internal/crawler"
	"github.com/nrs-project/notice-crawler/internal/detail"
	"github.com/nrs-project/notice-crawler/internal/identity"
	"github.com/nrs-project/notice-crawler/internal/listing"
	"github.com/nrs-project/notice-crawler/internal/metrics"
)

// DefaultConcurrency caps concurrent detail fetches per crawl.
const DefaultConcurrency = 5

// publishTimeFormats are tried in order; anything else falls back to
// the current UTC time.
var publishTimeFormats = []string{"2006-01-02", "2006/01/02", "2006.01.02"}

// Orchestrator coordinates one crawl per source.
type Orchestrator struct {
	sources     []crawler.SourceConfig
	fetcher     crawler.Fetcher
	extractor   *detail.Extractor
	store       crawler.RecordStore
	indexer     crawler.Indexer
	clock       crawler.Clock
	concurrency int
	logger      *zap.Logger
}

// New constructs an Orchestrator.
func New(
	sources []crawler.SourceConfig,
	fetcher crawler.Fetcher,
	extractor *detail.Extractor,
	store crawler.RecordStore,
	indexer crawler.Indexer,
	clock crawler.Clock,
	concurrency int,
	logger *zap.Logger,
) *Orchestrator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Orchestrator{
		sources:     sources,
		fetcher:     fetcher,
		extractor:   extractor,
		store:       store,
		indexer:     indexer,
		clock:       clock,
		concurrency: concurrency,
		logger:      logger,
	}
}

// CrawlSource runs one full crawl of the given source and returns the
// newly discovered records in completion order. Only an unknown source
// id (or a listing stage with zero reachable pages) is fatal; every
// per-page, per-entry and per-attachment failure degrades to fewer
// results plus a log line.
func (o *Orchestrator) CrawlSource(ctx context.Context, sourceID string) ([]crawler.Record, error) {
	src, ok := o.source(sourceID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", crawler.ErrUnknownSource, sourceID)
	}

	start := time.Now()
	defer func() {
		metrics.CrawlFinished(src.ID, time.Since(start))
	}()

	entries, pagesFetched := o.collectEntries(ctx, src)
	if pagesFetched == 0 {
		return nil, fmt.Errorf("%w: source %s", crawler.ErrListingUnavailable, sourceID)
	}

	records := o.processEntries(ctx, src, entries)
	o.logger.Info("crawl finished",
		zap.String("source", src.ID),
		zap.Int("entries", len(entries)),
		zap.Int("new_records", len(records)),
		zap.Duration("took", time.Since(start)),
	)
	return records, nil
}

// CrawlAll crawls every configured source sequentially, isolating
// per-source failures. Used by the periodic scheduler.
func (o *Orchestrator) CrawlAll(ctx context.Context) {
	for _, src := range o.sources {
		if ctx.Err() != nil {
			return
		}
		if _, err := o.CrawlSource(ctx, src.ID); err != nil {
			o.logger.Warn("periodic crawl failed", zap.String("source", src.ID), zap.Error(err))
			continue
		}
	}
}

// collectEntries fetches and parses each listing page sequentially.
// Listing pages are cheap and few; sequential fetch avoids hammering
// the host's listing endpoint. Returns all entries in page order plus
// the number of pages that fetched successfully.
func (o *Orchestrator) collectEntries(ctx context.Context, src crawler.SourceConfig) ([]crawler.ListEntry, int) {
	listURLs := listing.BuildPaginatedURLs(src.ListURL, src.MaxPages)

	var entries []crawler.ListEntry
	pagesFetched := 0
	for page, listURL := range listURLs {
		html, err := o.fetcher.Fetch(ctx, listURL, src.Headers)
		if err != nil {
			o.logger.Warn("skip listing page", zap.String("url", listURL), zap.Error(err))
			metrics.PageFetched(src.ID, "list", "error")
			continue
		}
		pagesFetched++
		metrics.PageFetched(src.ID, "list", "ok")

		pageEntries, err := listing.ParseListing(string(html), src.List, src.BaseURL)
		if err != nil {
			o.logger.Warn("skip unparseable listing page", zap.String("url", listURL), zap.Error(err))
			continue
		}
		if len(pageEntries) == 0 {
			o.logger.Info("listing page returned no entries", zap.String("url", listURL), zap.Int("page", page+1))
		}
		entries = append(entries, pageEntries...)
	}
	return entries, pagesFetched
}

// processEntries fans detail processing out under the concurrency cap.
// Results arrive in completion order; nothing downstream depends on
// listing order.
func (o *Orchestrator) processEntries(ctx context.Context, src crawler.SourceConfig, entries []crawler.ListEntry) []crawler.Record {
	var (
		mu      sync.Mutex
		records []crawler.Record
	)

	g := new(errgroup.Group)
	g.SetLimit(o.concurrency)
	for _, entry := range entries {
		if entry.URL == "" {
			continue
		}
		entry := entry
		g.Go(func() error {
			record, err := o.processEntry(ctx, src, entry)
			if err != nil {
				o.logger.Warn("skip detail", zap.String("url", entry.URL), zap.Error(err))
				return nil
			}
			if record != nil {
				mu.Lock()
				records = append(records, *record)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait() // units never return errors; failures are absorbed above
	return records
}

// processEntry runs one detail unit: fetch, extract, identity gate,
// best-effort index, idempotent insert. A nil record with nil error
// means the content was already known.
func (o *Orchestrator) processEntry(ctx context.Context, src crawler.SourceConfig, entry crawler.ListEntry) (*crawler.Record, error) {
	metrics.DetailWorkerStarted()
	defer metrics.DetailWorkerFinished()

	html, err := o.fetcher.Fetch(ctx, entry.URL, src.Headers)
	if err != nil {
		metrics.PageFetched(src.ID, "detail", "error")
		return nil, err
	}
	metrics.PageFetched(src.ID, "detail", "ok")

	content, attachments, err := o.extractor.Extract(ctx, string(html), src.Detail, src.BaseURL, src.Headers)
	if err != nil {
		return nil, err
	}

	id := identity.Compute(content, entry.URL)
	known, err := o.store.Exists(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}
	if known {
		metrics.DuplicateSkipped(src.ID)
		o.logger.Debug("content already known", zap.String("id", id), zap.String("url", entry.URL))
		return nil, nil
	}

	record := crawler.Record{
		ID:          id,
		Title:       entry.Title,
		Content:     content,
		URL:         entry.URL,
		PublishTime: o.parsePublishTime(entry.Date),
		SourceID:    src.ID,
		SourceName:  src.Name,
		Attachments: attachments,
		Extra:       map[string]string{"category": entry.Category},
	}

	indexed := o.indexRecord(ctx, src, record)

	if err := o.store.Insert(ctx, record); err != nil {
		return nil, fmt.Errorf("persist record: %w", err)
	}
	metrics.RecordStored(src.ID)

	if indexed {
		if err := o.store.MarkSynced(ctx, []string{id}); err != nil {
			o.logger.Warn("mark synced failed", zap.String("id", id), zap.Error(err))
		}
	}
	return &record, nil
}

// indexRecord pushes the record to the index sink. Failure to index is
// logged and never blocks persistence or the unit's success.
func (o *Orchestrator) indexRecord(ctx context.Context, src crawler.SourceConfig, record crawler.Record) bool {
	if o.indexer == nil || !o.indexer.Enabled() {
		return false
	}
	metadata := map[string]string{
		"url":          record.URL,
		"source_id":    record.SourceID,
		"source_name":  record.SourceName,
		"title":        record.Title,
		"publish_time": record.PublishTime.Format(time.RFC3339),
	}
	if err := o.indexer.Index(ctx, record.ID, record.Content, metadata); err != nil {
		metrics.IndexFailed(src.ID)
		o.logger.Warn("index push failed", zap.String("id", record.ID), zap.Error(err))
		return false
	}
	return true
}

func (o *Orchestrator) parsePublishTime(date string) time.Time {
	if date != "" {
		for _, layout := range publishTimeFormats {
			if t, err := time.Parse(layout, date); err == nil {
				return t
			}
		}
	}
	return o.clock.Now()
}

func (o *Orchestrator) source(id string) (crawler.SourceConfig, bool) {
	for _, src := range o.sources {
		if src.ID == id {
			return src, true
		}
	}
	return crawler.SourceConfig{}, false
}
