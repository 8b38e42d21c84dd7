package model

import (
	"github.com/google/uuid"
)

// Article is a stored, deduplicated unit of ingested content keyed by its
// source URL. Once persisted it is read-only.
type Article struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
	Date    string `json:"date"` // YYYY-MM-DD
}

// NewArticle creates an Article with a freshly generated identifier.
func NewArticle(title, content, url, date string) Article {
	return Article{
		ID:      uuid.NewString(),
		Title:   title,
		Content: content,
		URL:     url,
		Date:    date,
	}
}

// ExtractedContent is what the content extractor pulls out of a page.
// Date is empty when the page does not expose a publication date.
type ExtractedContent struct {
	Title   string
	Content string
	Date    string
}

// SourceRef cites one article used to build an answer.
type SourceRef struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Date  string `json:"date"`
}

// QueryResponse is the user-facing result of a query.
type QueryResponse struct {
	Answer  string      `json:"answer"`
	Sources []SourceRef `json:"sources"`
}
