package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nrs-project/notice-crawler/internal/crawler"
	"github.com/nrs-project/notice-crawler/internal/detail"
	"github.com/nrs-project/notice-crawler/internal/identity"
	"github.com/nrs-project/notice-crawler/internal/index"
	"github.com/nrs-project/notice-crawler/internal/storage/memory"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return testNow }

// stubFetcher serves canned bodies and tracks peak concurrent fetches.
type stubFetcher struct {
	mu          sync.Mutex
	bodies      map[string]string
	delay       time.Duration
	inFlight    int
	maxInFlight int
}

func (f *stubFetcher) Fetch(_ context.Context, url string, _ map[string]string) ([]byte, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	body, ok := f.bodies[url]
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if !ok {
		return nil, &crawler.FetchExhaustedError{URL: url, Attempts: 1}
	}
	return []byte(body), nil
}

func (f *stubFetcher) FetchBinary(ctx context.Context, url string, headers map[string]string) []byte {
	body, err := f.Fetch(ctx, url, headers)
	if err != nil {
		return nil
	}
	return body
}

func testSource(maxPages int) crawler.SourceConfig {
	return crawler.SourceConfig{
		ID:       "nju",
		Name:     "南京大学",
		BaseURL:  "https://x.edu",
		ListURL:  "https://x.edu/ggtz/list1.htm",
		MaxPages: maxPages,
		List: crawler.ListSelectors{
			ItemContainer: "li.news",
			Title:         ".t a",
			Date:          ".d",
			URL:           ".t a",
			Type:          ".c",
		},
		Detail: crawler.DetailSelectors{
			Text: crawler.SectionSelectors{Container: ".article", Selector: "p"},
		},
	}
}

func listItem(date, href, title, category string) string {
	return fmt.Sprintf(
		`<li class="news"><span class="d">%s</span><span class="t"><a href="%s">%s</a></span><span class="c">%s</span></li>`,
		date, href, title, category,
	)
}

func listPage(items ...string) string {
	return "<html><body><ul>" + strings.Join(items, "") + "</ul></body></html>"
}

func detailPage(text string) string {
	return fmt.Sprintf(`<html><body><div class="article"><p>%s</p></div></body></html>`, text)
}

func newTestRig(sources []crawler.SourceConfig, bodies map[string]string, concurrency int) (*Orchestrator, *stubFetcher, *memory.Store, *index.Recorder) {
	fetcher := &stubFetcher{bodies: bodies}
	store := memory.NewStore()
	recorder := index.NewRecorder()
	extractor := detail.New(fetcher, detail.NewOCR("", "", ""), 1, zap.NewNop())
	o := New(sources, fetcher, extractor, store, recorder, fixedClock{}, concurrency, zap.NewNop())
	return o, fetcher, store, recorder
}

func recordByURL(t *testing.T, records []crawler.Record, url string) crawler.Record {
	t.Helper()
	for _, r := range records {
		if r.URL == url {
			return r
		}
	}
	t.Fatalf("no record for %s", url)
	return crawler.Record{}
}

func TestCrawlSource_EndToEnd(t *testing.T) {
	t.Parallel()

	bodies := map[string]string{
		"https://x.edu/ggtz/list1.htm": listPage(
			listItem("2024-05-01", "/d/1.htm", "First notice", "教学"),
			listItem("not a date", "/d/2.htm", "Second notice", ""),
		),
		"https://x.edu/d/1.htm": detailPage("First body."),
		"https://x.edu/d/2.htm": detailPage("Second body."),
	}
	o, _, store, recorder := newTestRig([]crawler.SourceConfig{testSource(1)}, bodies, 2)

	records, err := o.CrawlSource(context.Background(), "nju")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Len(t, store.Records(), 2)
	require.Len(t, recorder.Documents(), 2)

	first := recordByURL(t, records, "https://x.edu/d/1.htm")
	require.Equal(t, "First notice", first.Title)
	require.Equal(t, "First body.", first.Content)
	require.Equal(t, "nju", first.SourceID)
	require.Equal(t, "南京大学", first.SourceName)
	require.Equal(t, "教学", first.Extra["category"])
	require.True(t, first.PublishTime.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
	require.True(t, store.Synced(first.ID))

	second := recordByURL(t, records, "https://x.edu/d/2.htm")
	require.True(t, second.PublishTime.Equal(testNow), "unparseable date falls back to the clock")
}

func TestCrawlSource_KnownContentIsSkipped(t *testing.T) {
	t.Parallel()

	bodies := map[string]string{
		"https://x.edu/ggtz/list1.htm": listPage(
			listItem("2024-05-01", "/d/1.htm", "Fresh notice", ""),
			listItem("2024-05-02", "/d/2.htm", "Known notice", ""),
		),
		"https://x.edu/d/1.htm": detailPage("Fresh body."),
		"https://x.edu/d/2.htm": detailPage("Known body."),
	}
	o, _, store, recorder := newTestRig([]crawler.SourceConfig{testSource(1)}, bodies, 2)
	store.Seed(crawler.Record{ID: identity.Compute("Known body.", "https://x.edu/d/2.htm")})

	records, err := o.CrawlSource(context.Background(), "nju")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "https://x.edu/d/1.htm", records[0].URL)
	require.Len(t, recorder.Documents(), 1)
	require.Equal(t, records[0].ID, recorder.Documents()[0].ID)
}

func TestCrawlSource_SecondRunFindsNothingNew(t *testing.T) {
	t.Parallel()

	bodies := map[string]string{
		"https://x.edu/ggtz/list1.htm": listPage(listItem("2024-05-01", "/d/1.htm", "First notice", "")),
		"https://x.edu/d/1.htm":        detailPage("Stable body."),
	}
	o, _, store, recorder := newTestRig([]crawler.SourceConfig{testSource(1)}, bodies, 2)

	records, err := o.CrawlSource(context.Background(), "nju")
	require.NoError(t, err)
	require.Len(t, records, 1)

	records, err = o.CrawlSource(context.Background(), "nju")
	require.NoError(t, err)
	require.Empty(t, records)
	require.Len(t, store.Records(), 1)
	require.Len(t, recorder.Documents(), 1)
}

func TestCrawlSource_UnknownSource(t *testing.T) {
	t.Parallel()

	o, _, _, _ := newTestRig([]crawler.SourceConfig{testSource(1)}, nil, 2)
	_, err := o.CrawlSource(context.Background(), "missing")
	require.ErrorIs(t, err, crawler.ErrUnknownSource)
}

func TestCrawlSource_AllListingPagesUnreachable(t *testing.T) {
	t.Parallel()

	o, _, _, _ := newTestRig([]crawler.SourceConfig{testSource(2)}, map[string]string{}, 2)
	_, err := o.CrawlSource(context.Background(), "nju")
	require.ErrorIs(t, err, crawler.ErrListingUnavailable)
}

func TestCrawlSource_UnreachablePageDegradesToRemainder(t *testing.T) {
	t.Parallel()

	// Page 2 of 2 is unreachable; page 1 still yields its records.
	bodies := map[string]string{
		"https://x.edu/ggtz/list1.htm": listPage(listItem("2024-05-01", "/d/1.htm", "First notice", "")),
		"https://x.edu/d/1.htm":        detailPage("First body."),
	}
	o, _, _, _ := newTestRig([]crawler.SourceConfig{testSource(2)}, bodies, 2)

	records, err := o.CrawlSource(context.Background(), "nju")
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestCrawlSource_FailedDetailSkipsOnlyThatEntry(t *testing.T) {
	t.Parallel()

	bodies := map[string]string{
		"https://x.edu/ggtz/list1.htm": listPage(
			listItem("2024-05-01", "/d/1.htm", "First notice", ""),
			listItem("2024-05-02", "/d/2.htm", "Broken notice", ""),
		),
		"https://x.edu/d/1.htm": detailPage("First body."),
	}
	o, _, store, _ := newTestRig([]crawler.SourceConfig{testSource(1)}, bodies, 2)

	records, err := o.CrawlSource(context.Background(), "nju")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "https://x.edu/d/1.htm", records[0].URL)
	require.Len(t, store.Records(), 1)
}

func TestCrawlSource_BoundsDetailConcurrency(t *testing.T) {
	t.Parallel()

	items := make([]string, 0, 8)
	bodies := map[string]string{}
	for i := 1; i <= 8; i++ {
		items = append(items, listItem("2024-05-01", fmt.Sprintf("/d/%d.htm", i), fmt.Sprintf("Notice %d", i), ""))
		bodies[fmt.Sprintf("https://x.edu/d/%d.htm", i)] = detailPage(fmt.Sprintf("Body %d.", i))
	}
	bodies["https://x.edu/ggtz/list1.htm"] = listPage(items...)

	o, fetcher, _, _ := newTestRig([]crawler.SourceConfig{testSource(1)}, bodies, 2)
	fetcher.delay = 20 * time.Millisecond

	records, err := o.CrawlSource(context.Background(), "nju")
	require.NoError(t, err)
	require.Len(t, records, 8)
	require.LessOrEqual(t, fetcher.maxInFlight, 2)
}

func TestCrawlSource_IndexFailureNeverBlocksPersistence(t *testing.T) {
	t.Parallel()

	bodies := map[string]string{
		"https://x.edu/ggtz/list1.htm": listPage(listItem("2024-05-01", "/d/1.htm", "First notice", "")),
		"https://x.edu/d/1.htm":        detailPage("First body."),
	}
	o, _, store, recorder := newTestRig([]crawler.SourceConfig{testSource(1)}, bodies, 2)
	recorder.Fail(errors.New("sink down"))

	records, err := o.CrawlSource(context.Background(), "nju")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Len(t, store.Records(), 1)
	require.Empty(t, recorder.Documents())
	require.False(t, store.Synced(records[0].ID), "an unindexed record stays unsynced")
}

func TestCrawlAll_IsolatesPerSourceFailures(t *testing.T) {
	t.Parallel()

	broken := testSource(1)
	broken.ID = "broken"
	broken.ListURL = "https://x.edu/broken/list1.htm"

	bodies := map[string]string{
		"https://x.edu/ggtz/list1.htm": listPage(listItem("2024-05-01", "/d/1.htm", "First notice", "")),
		"https://x.edu/d/1.htm":        detailPage("First body."),
	}
	o, _, store, _ := newTestRig([]crawler.SourceConfig{broken, testSource(1)}, bodies, 2)

	o.CrawlAll(context.Background())
	require.Len(t, store.Records(), 1)
}
