package faults

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Query filters the error listing. Zero values mean "no filter".
type Query struct {
	AnalyzerID *uuid.UUID
	Kind       string
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

type Repository interface {
	Insert(ctx context.Context, e *AnalyzerError) error
	List(ctx context.Context, q Query) ([]*AnalyzerError, int, error)
}
