package store

import (
	"context"
	"errors"

	"newsrag/internal/model"
)

var (
	ErrNotFound = errors.New("article not found")
)

// Store persists articles in a similarity index. FindByURL returns
// ErrNotFound for absent URLs; any other error means the store itself
// failed.
type Store interface {
	Save(ctx context.Context, article model.Article) error
	FindByURL(ctx context.Context, url string) (model.Article, error)
	SearchSimilar(ctx context.Context, query string, limit int) ([]model.Article, error)
}
