// Package listing parses listing pages into candidate article entries
// and generates the paginated sequence of listing URLs.
package listing

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nrs-project/notice-crawler/internal/crawler"
)

// paginationPattern matches listing filenames like list1.htm so page N
// can be generated by substitution.
var paginationPattern = regexp.MustCompile(`(?i)(list)(\d+)(\.\w+)$`)

// ParseListing extracts one ListEntry per matched item container.
// Missing optional selectors leave the field empty. An item whose link
// cannot be resolved is still emitted with an empty URL; the pipeline
// drops it there, keeping link failures out of the parser.
func ParseListing(html string, selectors crawler.ListSelectors, baseURL string) ([]crawler.ListEntry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	var entries []crawler.ListEntry
	doc.Find(selectors.ItemContainer).Each(func(_ int, item *goquery.Selection) {
		entries = append(entries, crawler.ListEntry{
			Title:    selectText(item, selectors.Title),
			Date:     selectText(item, selectors.Date),
			Category: selectText(item, selectors.Type),
			URL:      ResolveURL(baseURL, selectLink(item, selectors.URL)),
		})
	})
	return entries, nil
}

func selectText(item *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(item.Find(selector).First().Text())
}

func selectLink(item *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	el := item.Find(selector).First()
	if href, ok := el.Attr("href"); ok {
		return href
	}
	if src, ok := el.Attr("src"); ok {
		return src
	}
	return ""
}

// ResolveURL turns a relative, protocol-relative or absolute reference
// into an absolute URL against base. Returns "" when the reference is
// empty or unparseable.
func ResolveURL(baseURL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "" {
		return ref
	}
	if strings.HasPrefix(ref, "//") {
		scheme := "https"
		if b, err := url.Parse(baseURL); err == nil && b.Scheme != "" {
			scheme = b.Scheme
		}
		return scheme + ":" + ref
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	return base.ResolveReference(parsed).String()
}

// BuildPaginatedURLs generates the listing URL for pages 1..maxPages.
// listN.ext filenames get the page number substituted; anything else
// gets a page=N query parameter appended. Purely syntactic: whether a
// page exists is for the caller to find out.
func BuildPaginatedURLs(listURL string, maxPages int) []string {
	if maxPages <= 1 {
		return []string{listURL}
	}

	urls := make([]string, 0, maxPages)
	urls = append(urls, listURL)
	match := paginationPattern.FindStringSubmatchIndex(listURL)
	for page := 2; page <= maxPages; page++ {
		if match != nil {
			prefix := listURL[:match[0]]
			suffix := listURL[match[6]:match[7]]
			urls = append(urls, fmt.Sprintf("%slist%d%s", prefix, page, suffix))
		} else {
			separator := "?"
			if strings.Contains(listURL, "?") {
				separator = "&"
			}
			urls = append(urls, fmt.Sprintf("%s%spage=%d", listURL, separator, page))
		}
	}
	return urls
}
