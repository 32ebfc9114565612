package mapping

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/labgate/labgate/internal/domain/validation"
)

// Reasons a vendor field could not be resolved to a laboratory field.
const (
	ReasonNoMapping        = "NO_MAPPING"
	ReasonUnknownCode      = "UNKNOWN_CODE"
	ReasonValidationFailed = "VALIDATION_FAILED"
	ReasonAmbiguous        = "AMBIGUOUS"
)

// UnmappedError reports why a vendor field resolution failed. The reason
// drives how the caller records the fault.
type UnmappedError struct {
	VendorCode string
	Reason     string
	Detail     string
}

func (e *UnmappedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("mapping: %s unresolved (%s)", e.VendorCode, e.Reason)
	}
	return fmt.Sprintf("mapping: %s unresolved (%s): %s", e.VendorCode, e.Reason, e.Detail)
}

// Resolver translates vendor field codes into laboratory fields using the
// active mapping configuration. Constrained mappings win over unconstrained
// ones; a tie at the same specificity is an ambiguity, never a guess.
type Resolver struct {
	mappings Repository
	dict     DictionaryRepository
	engine   *validation.Engine
}

func NewResolver(mappings Repository, dict DictionaryRepository, engine *validation.Engine) *Resolver {
	return &Resolver{mappings: mappings, dict: dict, engine: engine}
}

// Resolve picks the most specific active mapping admitting the record's
// specimen type and panel, then applies the mapping's kind to the raw value.
func (r *Resolver) Resolve(ctx context.Context, analyzerID uuid.UUID, vendorCode, specimenType, panel, rawValue string) (*MappingResult, error) {
	candidates, err := r.mappings.ListActive(ctx, analyzerID, vendorCode)
	if err != nil {
		return nil, fmt.Errorf("list mappings for %s: %w", vendorCode, err)
	}

	best, err := selectMapping(candidates, vendorCode, specimenType, panel)
	if err != nil {
		return nil, err
	}

	value := strings.TrimSpace(rawValue)
	switch best.Kind {
	case KindDictionary:
		coded, err := r.dict.Lookup(ctx, best.LabFieldID, value)
		if errors.Is(err, ErrNotFound) {
			return nil, &UnmappedError{
				VendorCode: vendorCode,
				Reason:     ReasonUnknownCode,
				Detail:     fmt.Sprintf("value %q has no dictionary entry for %s", value, best.LabFieldID),
			}
		}
		if err != nil {
			return nil, fmt.Errorf("dictionary lookup for %s: %w", best.LabFieldID, err)
		}
		value = coded
	case KindCustom:
		violations, err := r.engine.Validate(ctx, best.LabFieldType, value)
		if err != nil {
			return nil, fmt.Errorf("validate %s: %w", best.LabFieldID, err)
		}
		if len(violations) > 0 {
			return nil, &UnmappedError{
				VendorCode: vendorCode,
				Reason:     ReasonValidationFailed,
				Detail:     violations[0].Message,
			}
		}
	}

	return &MappingResult{
		LabFieldID:   best.LabFieldID,
		LabFieldType: best.LabFieldType,
		Kind:         best.Kind,
		Required:     best.Required,
		Value:        value,
	}, nil
}

// selectMapping filters candidates by their constraints and keeps the
// highest specificity. Two survivors at the same rank mean the configuration
// cannot be resolved deterministically.
func selectMapping(candidates []*FieldMapping, vendorCode, specimenType, panel string) (*FieldMapping, error) {
	var best *FieldMapping
	tied := false
	for _, m := range candidates {
		if !m.applies(specimenType, panel) {
			continue
		}
		switch {
		case best == nil || m.specificity() > best.specificity():
			best, tied = m, false
		case m.specificity() == best.specificity():
			tied = true
		}
	}
	if best == nil {
		return nil, &UnmappedError{VendorCode: vendorCode, Reason: ReasonNoMapping}
	}
	if tied {
		return nil, &UnmappedError{
			VendorCode: vendorCode,
			Reason:     ReasonAmbiguous,
			Detail:     fmt.Sprintf("multiple active mappings at the same specificity for specimen %q panel %q", specimenType, panel),
		}
	}
	return best, nil
}
