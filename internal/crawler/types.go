// Package crawler defines core types shared across subsystems.
package crawler

import "time"

// ListSelectors locates entry fields inside one listing-page item.
// Optional selectors may be empty; the matching field is then absent.
type ListSelectors struct {
	ItemContainer string `mapstructure:"item_container"`
	Title         string `mapstructure:"title"`
	Date          string `mapstructure:"date"`
	URL           string `mapstructure:"url"`
	Type          string `mapstructure:"type"`
}

// SectionSelectors scopes a detail-page extraction step to a container.
type SectionSelectors struct {
	Container string `mapstructure:"container"`
	Selector  string `mapstructure:"selector"`
}

// DetailSelectors describes where detail-page content lives.
type DetailSelectors struct {
	Text        SectionSelectors `mapstructure:"text"`
	Images      SectionSelectors `mapstructure:"images"`
	PDF         SectionSelectors `mapstructure:"pdf"`
	Doc         SectionSelectors `mapstructure:"doc"`
	EmbeddedPDF SectionSelectors `mapstructure:"embedded_pdf"`
}

// SourceConfig is the static definition of one crawl target.
// Loaded once at startup and immutable for the process lifetime.
type SourceConfig struct {
	ID       string            `mapstructure:"id"`
	Name     string            `mapstructure:"name"`
	BaseURL  string            `mapstructure:"base_url"`
	ListURL  string            `mapstructure:"list_url"`
	MaxPages int               `mapstructure:"max_pages"`
	Headers  map[string]string `mapstructure:"headers"`
	List     ListSelectors     `mapstructure:"list"`
	Detail   DetailSelectors   `mapstructure:"detail"`
}

// ListEntry is one candidate article extracted from a listing page.
// An entry with an empty URL is kept here and dropped by the pipeline.
type ListEntry struct {
	Title    string
	Date     string
	URL      string
	Category string
}

// Attachment is a parsed file linked from (or embedded in) a detail page.
// Text is empty when parsing failed; the attachment itself is still kept.
type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Record is the persisted unit: one deduplicated article.
// ID is a content hash of (normalized content, detail URL); a changed
// article at the same URL yields a new record, never an update.
type Record struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Content     string            `json:"content"`
	URL         string            `json:"url"`
	PublishTime time.Time         `json:"publish_time"`
	SourceID    string            `json:"source_id"`
	SourceName  string            `json:"source"`
	Attachments []Attachment      `json:"attachments,omitempty"`
	Extra       map[string]string `json:"extra_meta,omitempty"`
}

// MIME types inferred from attachment extensions.
const (
	MIMEPDF  = "application/pdf"
	MIMEDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)
