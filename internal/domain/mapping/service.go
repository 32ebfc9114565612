package mapping

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
	dict DictionaryRepository
}

func NewService(repo Repository, dict DictionaryRepository) *Service {
	return &Service{repo: repo, dict: dict}
}

func (s *Service) Create(ctx context.Context, m *FieldMapping) error {
	if err := validate(m); err != nil {
		return err
	}
	if m.Active {
		if err := s.ensureNoActiveConflict(ctx, m); err != nil {
			return err
		}
	}
	return s.repo.Create(ctx, m)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*FieldMapping, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByAnalyzer(ctx context.Context, analyzerID uuid.UUID, limit, offset int) ([]*FieldMapping, int, error) {
	return s.repo.ListByAnalyzer(ctx, analyzerID, limit, offset)
}

// Update replaces a mapping's definition and bumps its version. Activating
// through an update is checked against the single-active invariant the same
// way Create is.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in *FieldMapping) (*FieldMapping, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.LabFieldID = in.LabFieldID
	m.LabFieldType = in.LabFieldType
	m.Kind = in.Kind
	m.Required = in.Required
	m.SpecimenType = in.SpecimenType
	m.Panel = in.Panel
	m.Active = in.Active
	if err := validate(m); err != nil {
		return nil, err
	}
	if m.Active {
		if err := s.ensureNoActiveConflict(ctx, m); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Deactivate retires a mapping without deleting it, keeping its history for
// audit rows that reference its version.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (*FieldMapping, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.Active {
		return m, nil
	}
	m.Active = false
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) AddDictionaryEntry(ctx context.Context, e *DictionaryEntry) error {
	if e.LabFieldID == "" || e.RawValue == "" || e.CodedValue == "" {
		return fmt.Errorf("lab_field_id, raw_value and coded_value are required")
	}
	return s.dict.Add(ctx, e)
}

func (s *Service) ensureNoActiveConflict(ctx context.Context, m *FieldMapping) error {
	existing, err := s.repo.FindActiveConflict(ctx, m.AnalyzerID, m.VendorCode, m.SpecimenType, m.Panel)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID == m.ID {
		return nil
	}
	return fmt.Errorf("an active mapping for %q with the same constraints already exists (%s)", m.VendorCode, existing.ID)
}

func validate(m *FieldMapping) error {
	if m.AnalyzerID == uuid.Nil {
		return fmt.Errorf("analyzer_id is required")
	}
	if m.VendorCode == "" {
		return fmt.Errorf("vendor_code is required")
	}
	if m.LabFieldID == "" {
		return fmt.Errorf("lab_field_id is required")
	}
	if m.LabFieldType == "" {
		return fmt.Errorf("lab_field_type is required")
	}
	switch m.Kind {
	case KindDirect, KindDictionary, KindCustom:
	default:
		return fmt.Errorf("invalid mapping kind %q", m.Kind)
	}
	return nil
}
