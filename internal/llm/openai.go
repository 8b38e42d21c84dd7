package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"newsrag/internal/model"
)

// embedInputLimit caps the text sent to the embeddings endpoint.
const embedInputLimit = 8000

// contextSnippetLimit caps how much of each article body goes into the
// synthesis prompt.
const contextSnippetLimit = 1000

// Config configures the OpenAI-compatible client.
type Config struct {
	BaseURL    string
	APIKey     string
	EmbedModel string
	ChatModel  string
	Timeout    time.Duration
}

// Client talks to an OpenAI-compatible API. It implements both Embedder
// and Synthesizer.
type Client struct {
	baseURL    string
	apiKey     string
	embedModel string
	chatModel  string
	logger     *zap.Logger
	client     *http.Client
}

var _ Embedder = (*Client)(nil)
var _ Synthesizer = (*Client)(nil)

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing OpenAI API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = "text-embedding-3-small"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		embedModel: cfg.EmbedModel,
		chatModel:  cfg.ChatModel,
		logger:     logger,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	body := map[string]any{
		"model": c.embedModel,
		"input": clip(text, embedInputLimit),
	}
	var out struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, c.baseURL+"/embeddings", body, &out); err != nil {
		return nil, fmt.Errorf("generate embedding: %w", err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return out.Data[0].Embedding, nil
}

// GenerateAnswer asks the chat model for a JSON answer grounded in the
// provided articles.
func (c *Client) GenerateAnswer(ctx context.Context, query string, articles []model.Article) (model.QueryResponse, error) {
	body := map[string]any{
		"model": c.chatModel,
		"messages": []map[string]string{
			{"role": "user", "content": buildPrompt(query, articles)},
		},
		"temperature":     0,
		"response_format": map[string]string{"type": "json_object"},
	}
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.postJSON(ctx, c.baseURL+"/chat/completions", body, &out); err != nil {
		return model.QueryResponse{}, fmt.Errorf("generate answer: %w", err)
	}
	if len(out.Choices) == 0 {
		return model.QueryResponse{}, errors.New("no completion returned")
	}

	var response model.QueryResponse
	if err := json.Unmarshal([]byte(out.Choices[0].Message.Content), &response); err != nil {
		return model.QueryResponse{}, fmt.Errorf("parse model output: %w", err)
	}
	c.logger.Debug("Generated answer",
		zap.Int("articles", len(articles)),
		zap.Int("sources", len(response.Sources)))
	return response, nil
}

func buildPrompt(query string, articles []model.Article) string {
	var sb strings.Builder
	for _, article := range articles {
		fmt.Fprintf(&sb, "Title: %s\nURL: %s\nDate: %s\nContent: %s...\n\n---\n",
			article.Title, article.URL, article.Date, clip(article.Content, contextSnippetLimit))
	}

	return fmt.Sprintf(`Answer the following query based on the provided context. If the context doesn't contain relevant information, acknowledge that you don't have enough information to provide a complete answer.

Query: %s

Context:
%s

Provide your answer in JSON format with two fields:
- answer: Your detailed and informative response
- sources: An array of sources you used, each with title, url, and date fields`, query, sb.String())
}

func (c *Client) postJSON(ctx context.Context, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("openai error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func clip(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
