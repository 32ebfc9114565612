package validation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, r *Rule) error {
	if err := validateRule(r); err != nil {
		return err
	}
	return s.repo.Create(ctx, r)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Rule, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Rule, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in *Rule) (*Rule, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.Name = in.Name
	r.Type = in.Type
	r.Expression = in.Expression
	r.Message = in.Message
	r.FieldTypeID = in.FieldTypeID
	r.Active = in.Active
	if err := validateRule(r); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// validateRule rejects rules the engine could not evaluate, so bad
// expressions surface at configuration time instead of per message.
func validateRule(r *Rule) error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if r.FieldTypeID == "" {
		return fmt.Errorf("field_type_id is required")
	}
	switch r.Type {
	case RuleRequired:
	case RulePattern:
		if _, err := regexp.Compile(r.Expression); err != nil {
			return fmt.Errorf("invalid pattern expression: %w", err)
		}
	case RuleRange:
		if err := checkRangeExpression(r.Expression); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid rule type %q", r.Type)
	}
	return nil
}

func checkRangeExpression(expr string) error {
	if !strings.Contains(expr, ":") {
		return fmt.Errorf("range expression must be min:max")
	}
	if _, err := inRange(expr, "0"); err != nil {
		return fmt.Errorf("invalid range expression: %w", err)
	}
	return nil
}
