package llm

import (
	"context"

	"newsrag/internal/model"
)

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Synthesizer turns a query plus supporting articles into an answer with
// cited sources.
type Synthesizer interface {
	GenerateAnswer(ctx context.Context, query string, articles []model.Article) (model.QueryResponse, error)
}
