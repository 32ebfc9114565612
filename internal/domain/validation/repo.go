package validation

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Rule) error
	GetByID(ctx context.Context, id uuid.UUID) (*Rule, error)
	ListActiveByFieldType(ctx context.Context, fieldTypeID string) ([]*Rule, error)
	List(ctx context.Context, limit, offset int) ([]*Rule, int, error)
	Update(ctx context.Context, r *Rule) error
}
