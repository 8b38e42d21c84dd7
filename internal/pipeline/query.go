package pipeline

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"newsrag/internal/llm"
	"newsrag/internal/model"
	"newsrag/internal/store"
)

// apologyAnswer is returned when answering degrades instead of failing.
const apologyAnswer = "I'm sorry, I encountered an error while processing your query. Please try again later."

var urlPattern = regexp.MustCompile(`https?://\S+`)

// ArticleProcessor is the slice of the processing pipeline the answerer
// needs.
type ArticleProcessor interface {
	Process(ctx context.Context, url string) (model.Article, error)
}

// Answerer resolves free-text queries. URLs mentioned in the query take
// hard precedence over similarity search; failures never escape, they
// degrade to an apology response.
type Answerer struct {
	processor   ArticleProcessor
	store       store.Store
	synthesizer llm.Synthesizer
	logger      *zap.Logger
	searchLimit int
}

func NewAnswerer(processor ArticleProcessor, st store.Store, synthesizer llm.Synthesizer, logger *zap.Logger, searchLimit int) *Answerer {
	if searchLimit <= 0 {
		searchLimit = 5
	}
	return &Answerer{
		processor:   processor,
		store:       st,
		synthesizer: synthesizer,
		logger:      logger,
		searchLimit: searchLimit,
	}
}

// Answer builds the relevant article set and asks the synthesizer for a
// cited answer.
func (a *Answerer) Answer(ctx context.Context, query string) model.QueryResponse {
	var relevant []model.Article

	urls := urlPattern.FindAllString(query, -1)
	if len(urls) > 0 {
		for _, url := range urls {
			article, err := a.processor.Process(ctx, url)
			if err != nil {
				a.logger.Error("Failed to process URL from query", zap.String("url", url), zap.Error(err))
				continue
			}
			relevant = append(relevant, article)
		}
	} else {
		found, err := a.store.SearchSimilar(ctx, query, a.searchLimit)
		if err != nil {
			a.logger.Error("Similarity search failed", zap.Error(err))
		} else {
			relevant = found
		}
	}

	response, err := a.synthesizer.GenerateAnswer(ctx, query, relevant)
	if err != nil {
		a.logger.Error("Answer synthesis failed", zap.Error(err))
		return model.QueryResponse{
			Answer:  apologyAnswer,
			Sources: []model.SourceRef{},
		}
	}
	if response.Sources == nil {
		response.Sources = []model.SourceRef{}
	}
	return response
}
