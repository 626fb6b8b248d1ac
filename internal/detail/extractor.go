// Package detail extracts and aggregates detail-page content: base HTML
// text, OCR'd images, linked PDF/DOCX attachments and PDFs embedded
// through viewer iframes. Every step is independently failure-tolerant;
// a sub-step that yields nothing never aborts the others.
package detail

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/nrs-project/notice-crawler/internal/crawler"
	"github.com/nrs-project/notice-crawler/internal/listing"
	"github.com/nrs-project/notice-crawler/internal/metrics"
)

const defaultAttachmentName = "attachment"

// Extractor turns detail-page HTML into one aggregated text blob plus a
// structured attachment list. CPU-bound work (OCR, PDF/DOCX parsing)
// runs under its own weighted semaphore so it cannot stall the
// pipeline's concurrent network I/O.
type Extractor struct {
	fetcher crawler.Fetcher
	ocr     *OCR
	cpu     *semaphore.Weighted
	logger  *zap.Logger
}

// New builds an Extractor. cpuWorkers bounds how many OCR/parse tasks
// may run at once.
func New(fetcher crawler.Fetcher, ocr *OCR, cpuWorkers int, logger *zap.Logger) *Extractor {
	if cpuWorkers < 1 {
		cpuWorkers = 1
	}
	return &Extractor{
		fetcher: fetcher,
		ocr:     ocr,
		cpu:     semaphore.NewWeighted(int64(cpuWorkers)),
		logger:  logger,
	}
}

// Extract processes one detail page. The returned text is, in fixed
// order: base text, then all OCR text as one block, then one marker-
// prefixed block per attachment that yielded text, with blank lines
// between non-empty blocks.
func (e *Extractor) Extract(
	ctx context.Context,
	html string,
	selectors crawler.DetailSelectors,
	baseURL string,
	headers map[string]string,
) (string, []crawler.Attachment, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", nil, fmt.Errorf("parse detail html: %w", err)
	}

	text := extractText(doc, selectors.Text)
	imageTexts := e.extractImageTexts(ctx, doc, selectors.Images, baseURL, headers)

	var attachments []crawler.Attachment
	attachments = append(attachments, e.extractFiles(ctx, doc, selectors.PDF, baseURL, headers, ".pdf")...)
	attachments = append(attachments, e.extractFiles(ctx, doc, selectors.Doc, baseURL, headers, ".docx")...)
	attachments = append(attachments, e.extractEmbeddedPDF(ctx, doc, selectors.EmbeddedPDF, baseURL, headers)...)

	return aggregate(text, imageTexts, attachments), attachments, nil
}

// extractText selects the configured content container(s) and joins
// their visible text with newlines. An absent container yields "".
func extractText(doc *goquery.Document, sel crawler.SectionSelectors) string {
	if sel.Container == "" {
		return ""
	}
	container := doc.Find(sel.Container).First()
	if container.Length() == 0 {
		return ""
	}
	var chunks []string
	if sel.Selector != "" {
		container.Find(sel.Selector).Each(func(_ int, node *goquery.Selection) {
			if t := normalizeText(node.Text()); t != "" {
				chunks = append(chunks, t)
			}
		})
	} else if t := normalizeText(container.Text()); t != "" {
		chunks = append(chunks, t)
	}
	return strings.Join(chunks, "\n")
}

// extractImageTexts OCRs every image matching the configured selector.
// A missing OCR engine turns the whole step into a no-op.
func (e *Extractor) extractImageTexts(
	ctx context.Context,
	doc *goquery.Document,
	sel crawler.SectionSelectors,
	baseURL string,
	headers map[string]string,
) []string {
	if !e.ocr.Enabled() || sel.Container == "" || sel.Selector == "" {
		return nil
	}
	container := doc.Find(sel.Container).First()
	if container.Length() == 0 {
		return nil
	}

	var texts []string
	container.Find(sel.Selector).Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		imageURL := listing.ResolveURL(baseURL, src)
		if imageURL == "" {
			return
		}
		data := e.fetcher.FetchBinary(ctx, imageURL, headers)
		if data == nil {
			return
		}
		text, err := e.runOCR(ctx, data)
		if err != nil {
			e.logger.Warn("ocr failed", zap.String("url", imageURL), zap.Error(err))
			metrics.AttachmentParsed("ocr", "error")
			return
		}
		metrics.AttachmentParsed("ocr", "ok")
		if text != "" {
			texts = append(texts, text)
		}
	})
	return texts
}

// extractFiles downloads and parses attachments linked by anchors that
// match the selector, keeping only the allowed extension. A failed
// download omits the attachment; a failed parse keeps it with no text.
func (e *Extractor) extractFiles(
	ctx context.Context,
	doc *goquery.Document,
	sel crawler.SectionSelectors,
	baseURL string,
	headers map[string]string,
	allowedExt string,
) []crawler.Attachment {
	if sel.Container == "" || sel.Selector == "" {
		return nil
	}
	container := doc.Find(sel.Container).First()
	if container.Length() == 0 {
		return nil
	}

	var attachments []crawler.Attachment
	container.Find(sel.Selector).Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		fileURL := listing.ResolveURL(baseURL, href)
		if fileURL == "" || !strings.HasSuffix(strings.ToLower(fileURL), allowedExt) {
			return
		}
		filename := strings.TrimSpace(link.Text())
		if filename == "" {
			filename = defaultAttachmentName
		}
		data := e.fetcher.FetchBinary(ctx, fileURL, headers)
		if data == nil {
			return
		}
		attachments = append(attachments, e.buildAttachment(ctx, fileURL, filename, data))
	})
	return attachments
}

// extractEmbeddedPDF handles pages that embed a PDF through a viewer
// iframe: the iframe src carries the real document in a file parameter.
func (e *Extractor) extractEmbeddedPDF(
	ctx context.Context,
	doc *goquery.Document,
	sel crawler.SectionSelectors,
	baseURL string,
	headers map[string]string,
) []crawler.Attachment {
	if sel.Selector == "" {
		return nil
	}
	iframe := doc.Find(sel.Selector).First()
	src, ok := iframe.Attr("src")
	if !ok {
		return nil
	}
	viewerURL := listing.ResolveURL(baseURL, src)
	if viewerURL == "" {
		return nil
	}
	parsed, err := url.Parse(viewerURL)
	if err != nil {
		return nil
	}
	fileParam := parsed.Query().Get("file")
	if fileParam == "" {
		return nil
	}
	pdfURL := listing.ResolveURL(baseURL, fileParam)
	if pdfURL == "" {
		return nil
	}
	data := e.fetcher.FetchBinary(ctx, pdfURL, headers)
	if data == nil {
		return nil
	}
	filename := pdfURL
	if idx := strings.LastIndex(pdfURL, "/"); idx >= 0 {
		filename = pdfURL[idx+1:]
	}
	return []crawler.Attachment{e.buildAttachment(ctx, pdfURL, filename, data)}
}

func (e *Extractor) buildAttachment(ctx context.Context, fileURL, filename string, data []byte) crawler.Attachment {
	att := crawler.Attachment{URL: fileURL, Filename: filename}
	var text string
	var err error
	kind := "pdf"
	if strings.HasSuffix(strings.ToLower(fileURL), ".docx") {
		att.MIMEType = crawler.MIMEDocx
		kind = "docx"
		text, err = e.parseOnCPU(ctx, data, docxText)
	} else {
		att.MIMEType = crawler.MIMEPDF
		text, err = e.parseOnCPU(ctx, data, pdfText)
	}
	if err != nil {
		e.logger.Warn("attachment parse failed", zap.String("url", fileURL), zap.Error(err))
		metrics.AttachmentParsed(kind, "error")
		return att
	}
	metrics.AttachmentParsed(kind, "ok")
	att.Text = text
	return att
}

// parseOnCPU runs a CPU-bound parser under the extractor's semaphore.
func (e *Extractor) parseOnCPU(ctx context.Context, data []byte, parse func([]byte) (string, error)) (string, error) {
	if err := e.cpu.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer e.cpu.Release(1)
	return parse(data)
}

func (e *Extractor) runOCR(ctx context.Context, image []byte) (string, error) {
	if err := e.cpu.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer e.cpu.Release(1)
	return e.ocr.Run(ctx, image)
}

// aggregate merges the blocks in fixed order: base text, OCR texts,
// attachment snippets. Attachments with no text contribute nothing.
func aggregate(text string, imageTexts []string, attachments []crawler.Attachment) string {
	var blocks []string
	if text != "" {
		blocks = append(blocks, text)
	}
	if len(imageTexts) > 0 {
		blocks = append(blocks, strings.Join(imageTexts, "\n"))
	}
	var snippets []string
	for _, att := range attachments {
		if att.Text == "" {
			continue
		}
		snippets = append(snippets, attachmentSnippet(att))
	}
	if len(snippets) > 0 {
		blocks = append(blocks, strings.Join(snippets, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// attachmentSnippet renders a human-readable marker line naming the
// attachment ahead of its extracted text.
func attachmentSnippet(att crawler.Attachment) string {
	title := att.Filename
	if title == "" {
		title = att.URL
	}
	return fmt.Sprintf("【附件：%s】\n%s", title, att.Text)
}

// normalizeText collapses runs of whitespace into single spaces, the
// same shape BeautifulSoup-style extractors produce.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
