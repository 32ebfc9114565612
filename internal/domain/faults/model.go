package faults

import (
	"time"

	"github.com/google/uuid"
)

// Error kinds recorded during ingestion. Kinds are stable identifiers that
// operator tooling filters on.
const (
	KindParseError           = "PARSE_ERROR"
	KindIdentificationFailed = "IDENTIFICATION_FAILED"
	KindMappingIncomplete    = "MAPPING_INCOMPLETE"
	KindQCMappingIncomplete  = "QC_MAPPING_INCOMPLETE"
	KindValidationFailed     = "VALIDATION_FAILED"
	KindNoMatchingAnalysis   = "NO_MATCHING_ANALYSIS"
	KindPersistFailed        = "PERSIST_FAILED"
	KindServiceUnavailable   = "SERVICE_UNAVAILABLE"
)

// AnalyzerError maps to the analyzer_error table: one append-only fault row.
// AnalyzerID is nil when the fault happened before the source was identified.
type AnalyzerError struct {
	ID         uuid.UUID         `db:"id" json:"id"`
	AnalyzerID *uuid.UUID        `db:"analyzer_id" json:"analyzer_id,omitempty"`
	Kind       string            `db:"kind" json:"kind"`
	Message    string            `db:"message" json:"message"`
	Context    map[string]string `db:"context" json:"context,omitempty"`
	Source     string            `db:"source" json:"source,omitempty"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
}
