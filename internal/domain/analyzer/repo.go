package analyzer

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("analyzer: not found")

type Repository interface {
	Create(ctx context.Context, a *Analyzer) error
	GetByID(ctx context.Context, id uuid.UUID) (*Analyzer, error)
	GetActiveByPlugin(ctx context.Context, plugin string) (*Analyzer, error)
	Update(ctx context.Context, a *Analyzer) error
	List(ctx context.Context, limit, offset int) ([]*Analyzer, int, error)
}
