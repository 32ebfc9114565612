package mapping

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// KindDirect maps the raw value through unchanged.
	KindDirect = "direct"
	// KindDictionary requires the raw value to resolve to a catalog entry.
	KindDictionary = "dictionary"
	// KindCustom runs the raw value through the validation rule engine for
	// the target field type before the mapping is trusted.
	KindCustom = "custom"
)

// FieldMapping maps to the field_mapping table: configuration translating a
// vendor field code into a laboratory field, optionally constrained to a
// specimen type and panel. At most one active mapping may exist per
// (analyzer, vendor code, specimen type, panel) combination.
type FieldMapping struct {
	ID           uuid.UUID `db:"id" json:"id"`
	AnalyzerID   uuid.UUID `db:"analyzer_id" json:"analyzer_id"`
	VendorCode   string    `db:"vendor_code" json:"vendor_code"`
	LabFieldID   string    `db:"lab_field_id" json:"lab_field_id"`
	LabFieldType string    `db:"lab_field_type" json:"lab_field_type"`
	Kind         string    `db:"kind" json:"kind"`
	Required     bool      `db:"required" json:"required"`
	Active       bool      `db:"active" json:"active"`
	SpecimenType *string   `db:"specimen_type" json:"specimen_type,omitempty"`
	Panel        *string   `db:"panel" json:"panel,omitempty"`
	Version      int       `db:"version" json:"version"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// specificity ranks a mapping's constraints: both > specimen-only >
// panel-only > unconstrained.
func (m *FieldMapping) specificity() int {
	score := 0
	if m.SpecimenType != nil {
		score += 2
	}
	if m.Panel != nil {
		score++
	}
	return score
}

// applies reports whether this mapping's constraints admit the given
// specimen type and panel. A nil constraint admits anything.
func (m *FieldMapping) applies(specimenType, panel string) bool {
	if m.SpecimenType != nil && !strings.EqualFold(*m.SpecimenType, specimenType) {
		return false
	}
	if m.Panel != nil && !strings.EqualFold(*m.Panel, panel) {
		return false
	}
	return true
}

// DictionaryEntry maps to the dictionary_entry table: the catalog resolving
// dictionary-coded raw values to laboratory coded values.
type DictionaryEntry struct {
	ID         uuid.UUID `db:"id" json:"id"`
	LabFieldID string    `db:"lab_field_id" json:"lab_field_id"`
	RawValue   string    `db:"raw_value" json:"raw_value"`
	CodedValue string    `db:"coded_value" json:"coded_value"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// MappingResult is a successful resolution: the laboratory identity for one
// vendor field plus the value to persist (dictionary kinds translate it).
type MappingResult struct {
	LabFieldID   string
	LabFieldType string
	Kind         string
	Required     bool
	Value        string
}
