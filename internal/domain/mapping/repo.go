package mapping

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("mapping: not found")

type Repository interface {
	Create(ctx context.Context, m *FieldMapping) error
	GetByID(ctx context.Context, id uuid.UUID) (*FieldMapping, error)
	Update(ctx context.Context, m *FieldMapping) error
	// ListActive returns every active mapping for an analyzer and vendor
	// code, all constraint variants included.
	ListActive(ctx context.Context, analyzerID uuid.UUID, vendorCode string) ([]*FieldMapping, error)
	// FindActiveConflict returns an active mapping with exactly the same
	// constraint combination, or ErrNotFound.
	FindActiveConflict(ctx context.Context, analyzerID uuid.UUID, vendorCode string, specimenType, panel *string) (*FieldMapping, error)
	ListByAnalyzer(ctx context.Context, analyzerID uuid.UUID, limit, offset int) ([]*FieldMapping, int, error)
}

type DictionaryRepository interface {
	Add(ctx context.Context, e *DictionaryEntry) error
	// Lookup resolves a raw value for a laboratory field, or ErrNotFound.
	Lookup(ctx context.Context, labFieldID, rawValue string) (string, error)
}
