package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"newsrag/internal/llm"
	"newsrag/internal/model"
)

// storedContentLimit bounds how much article text is kept in the index
// payload. Anything beyond it is not retrievable from storage.
const storedContentLimit = 8000

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// QdrantStore is a minimal REST client to Qdrant implementing Store.
// Articles are keyed by a deterministic hash of their URL so lookups
// stay correct regardless of the index's native key space.
type QdrantStore struct {
	url        string
	apiKey     string
	collection string
	embedder   llm.Embedder
	logger     *zap.Logger
	client     *http.Client
}

func NewQdrantStore(cfg QdrantConfig, embedder llm.Embedder, logger *zap.Logger) *QdrantStore {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &QdrantStore{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		embedder:   embedder,
		logger:     logger,
		client:     &http.Client{Timeout: timeout},
	}
}

// pointID derives the dedup key for a URL: the first half of its sha256
// digest rendered as a UUID, which is the ID form Qdrant accepts.
func pointID(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	id, _ := uuid.FromBytes(sum[:16])
	return id.String()
}

// EnsureCollection creates the collection with the given vector dimension
// if it does not exist yet. Cosine distance.
func (s *QdrantStore) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid vector dimension %d", dimension)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	err := s.putJSON(ctx, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body, http.StatusConflict)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", s.collection, err)
	}
	return nil
}

// Save embeds title+content and upserts a single point keyed by the URL
// hash. An embedding failure aborts the save before anything is written.
func (s *QdrantStore) Save(ctx context.Context, article model.Article) error {
	text := truncate(article.Title+" "+article.Content, storedContentLimit)
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed article %s: %w", article.URL, err)
	}

	point := map[string]any{
		"id":     pointID(article.URL),
		"vector": vector,
		"payload": map[string]any{
			"id":      article.ID,
			"title":   article.Title,
			"url":     article.URL,
			"date":    article.Date,
			"content": truncate(article.Content, storedContentLimit),
		},
	}
	body := map[string]any{"points": []map[string]any{point}}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection)
	if err := s.putJSON(ctx, url, body); err != nil {
		return err
	}

	s.logger.Info("Stored article", zap.String("title", article.Title), zap.String("url", article.URL))
	return nil
}

// FindByURL is a point lookup by the URL hash.
func (s *QdrantStore) FindByURL(ctx context.Context, rawURL string) (model.Article, error) {
	req := map[string]any{
		"ids":          []string{pointID(rawURL)},
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points", s.url, s.collection)
	if err := s.postJSON(ctx, url, req, &resp); err != nil {
		return model.Article{}, err
	}

	for _, r := range resp.Result {
		article := articleFromPayload(r.Payload)
		if article.URL == rawURL {
			return article, nil
		}
	}
	return model.Article{}, ErrNotFound
}

// SearchSimilar embeds the query and returns the nearest stored articles.
func (s *QdrantStore) SearchSimilar(ctx context.Context, query string, limit int) ([]model.Article, error) {
	if limit <= 0 {
		limit = 5
	}
	vector, err := s.embedder.Embed(ctx, truncate(query, storedContentLimit))
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection)
	if err := s.postJSON(ctx, url, req, &resp); err != nil {
		return nil, err
	}

	articles := make([]model.Article, 0, len(resp.Result))
	for _, r := range resp.Result {
		articles = append(articles, articleFromPayload(r.Payload))
	}
	return articles, nil
}

func articleFromPayload(payload map[string]any) model.Article {
	var article model.Article
	if v, ok := payload["id"].(string); ok {
		article.ID = v
	}
	if v, ok := payload["title"].(string); ok {
		article.Title = v
	}
	if v, ok := payload["url"].(string); ok {
		article.URL = v
	}
	if v, ok := payload["date"].(string); ok {
		article.Date = v
	}
	if v, ok := payload["content"].(string); ok {
		article.Content = v
	}
	return article
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// putJSON PUTs a JSON body. Statuses listed in accept are treated as
// success in addition to 2xx.
func (s *QdrantStore) putJSON(ctx context.Context, url string, body any, accept ...int) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		for _, code := range accept {
			if resp.StatusCode == code {
				return nil
			}
		}
		return fmt.Errorf("qdrant PUT %s failed: %s", url, resp.Status)
	}
	return nil
}

func (s *QdrantStore) postJSON(ctx context.Context, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
