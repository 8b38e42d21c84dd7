package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"newsrag/internal/model"
)

// maxBodyBytes bounds how much of a page we are willing to download.
const maxBodyBytes = 10 << 20

// Extractor turns a URL into extracted title/content/date.
// This allows mocking the download step in tests.
type Extractor interface {
	Extract(ctx context.Context, url string) (model.ExtractedContent, error)
}

// Config configures the web extractor.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// WebExtractor fetches a page over HTTP and runs readability extraction
// plus a meta-tag pass for the publication date.
type WebExtractor struct {
	userAgent string
	logger    *zap.Logger
	client    *http.Client
}

var _ Extractor = (*WebExtractor)(nil)

func NewWebExtractor(cfg Config, logger *zap.Logger) *WebExtractor {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (compatible; NewsRAGBot/1.0)"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &WebExtractor{
		userAgent: userAgent,
		logger:    logger,
		client:    &http.Client{Timeout: timeout},
	}
}

func (e *WebExtractor) Extract(ctx context.Context, rawURL string) (model.ExtractedContent, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return model.ExtractedContent{}, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	html, err := e.fetch(ctx, rawURL)
	if err != nil {
		return model.ExtractedContent{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return model.ExtractedContent{}, fmt.Errorf("parse html from %s: %w", rawURL, err)
	}
	date := extractDate(doc)

	article, err := readability.FromReader(bytes.NewReader(html), parsedURL)
	if err != nil {
		return model.ExtractedContent{}, fmt.Errorf("extract content from %s: %w", rawURL, err)
	}

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if date == "" && article.PublishedTime != nil {
		date = article.PublishedTime.Format("2006-01-02")
	}
	content := strings.Join(strings.Fields(article.TextContent), " ")
	e.logger.Debug("Extracted content",
		zap.String("url", rawURL),
		zap.String("title", title),
		zap.Int("chars", len(content)))

	return model.ExtractedContent{
		Title:   title,
		Content: content,
		Date:    date,
	}, nil
}

func (e *WebExtractor) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("fetch %s: %s", rawURL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	return body, nil
}

// dateSelectors are probed in order; the first parseable hit wins.
var dateSelectors = []string{
	`meta[property="article:published_time"]`,
	`[itemprop="datePublished"]`,
	"time",
	".date",
	".published",
	".post-date",
}

func extractDate(doc *goquery.Document) string {
	for _, selector := range dateSelectors {
		var found string
		doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			raw, ok := sel.Attr("content")
			if !ok {
				raw, ok = sel.Attr("datetime")
			}
			if !ok {
				raw = strings.TrimSpace(sel.Text())
			}
			if raw == "" {
				return true
			}
			parsed, err := dateparse.ParseAny(raw)
			if err != nil {
				return true
			}
			found = parsed.Format("2006-01-02")
			return false
		})
		if found != "" {
			return found
		}
	}
	return ""
}
