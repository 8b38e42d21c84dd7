package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"newsrag/internal/extract"
	"newsrag/internal/model"
	"newsrag/internal/store"
)

// Processor is the idempotent article pipeline: look up by URL, extract,
// build, persist. A URL already in the store is returned as-is without
// re-extraction or re-embedding.
type Processor struct {
	store     store.Store
	extractor extract.Extractor
	logger    *zap.Logger
	group     singleflight.Group
	now       func() time.Time
}

func NewProcessor(st store.Store, extractor extract.Extractor, logger *zap.Logger) *Processor {
	return &Processor{
		store:     st,
		extractor: extractor,
		logger:    logger,
		now:       time.Now,
	}
}

// Process returns the stored article for url, creating it on first sight.
// Concurrent calls for the same URL collapse into a single execution so a
// race cannot persist the article twice. Failures come back as
// *StoreError, *ExtractionError or *PersistenceError.
func (p *Processor) Process(ctx context.Context, url string) (model.Article, error) {
	result, err, _ := p.group.Do(url, func() (any, error) {
		return p.process(ctx, url)
	})
	if err != nil {
		return model.Article{}, err
	}
	return result.(model.Article), nil
}

func (p *Processor) process(ctx context.Context, url string) (model.Article, error) {
	existing, err := p.store.FindByURL(ctx, url)
	if err == nil {
		p.logger.Info("Article already processed", zap.String("url", url))
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return model.Article{}, &StoreError{URL: url, Err: err}
	}

	extracted, err := p.extractor.Extract(ctx, url)
	if err != nil {
		return model.Article{}, &ExtractionError{URL: url, Err: err}
	}

	date := extracted.Date
	if date == "" {
		date = p.now().Format("2006-01-02")
	}
	article := model.NewArticle(extracted.Title, extracted.Content, url, date)

	if err := p.store.Save(ctx, article); err != nil {
		return model.Article{}, &PersistenceError{URL: url, Err: err}
	}

	p.logger.Info("Successfully processed article", zap.String("url", url))
	return article, nil
}
