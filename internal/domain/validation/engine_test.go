package validation

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

type mockRuleRepo struct {
	rules []*Rule
}

func (m *mockRuleRepo) Create(_ context.Context, r *Rule) error {
	r.ID = uuid.New()
	m.rules = append(m.rules, r)
	return nil
}

func (m *mockRuleRepo) GetByID(_ context.Context, id uuid.UUID) (*Rule, error) {
	for _, r := range m.rules {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRuleRepo) ListActiveByFieldType(_ context.Context, fieldTypeID string) ([]*Rule, error) {
	var out []*Rule
	for _, r := range m.rules {
		if r.FieldTypeID == fieldTypeID && r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRuleRepo) List(_ context.Context, limit, offset int) ([]*Rule, int, error) {
	return m.rules, len(m.rules), nil
}

func (m *mockRuleRepo) Update(_ context.Context, r *Rule) error { return nil }

func numericRules() *mockRuleRepo {
	return &mockRuleRepo{rules: []*Rule{
		{Name: "alt-range", Type: RuleRange, Expression: "0:500", FieldTypeID: "numeric.enzyme", Active: true},
		{Name: "alt-required", Type: RuleRequired, FieldTypeID: "numeric.enzyme", Active: true},
		{Name: "alt-pattern", Type: RulePattern, Expression: `^\d+(\.\d+)?$`, FieldTypeID: "numeric.enzyme", Active: true},
	}}
}

func TestValidate_Pass(t *testing.T) {
	e := NewEngine(numericRules())
	violations, err := e.Validate(context.Background(), "numeric.enzyme", "35.2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(violations) != 0 {
		t.Errorf("expected no violations, got %v", violations)
	}
}

func TestValidate_RequiredShortCircuits(t *testing.T) {
	e := NewEngine(numericRules())
	violations, err := e.Validate(context.Background(), "numeric.enzyme", "  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("expected exactly 1 violation (required short-circuit), got %v", violations)
	}
	if violations[0].Rule != "alt-required" {
		t.Errorf("violation rule = %q", violations[0].Rule)
	}
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	e := NewEngine(numericRules())
	// Non-numeric: fails both pattern and range.
	violations, err := e.Validate(context.Background(), "numeric.enzyme", "HIGH")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(violations) != 2 {
		t.Fatalf("expected 2 violations, got %v", violations)
	}
}

func TestValidate_RangeBounds(t *testing.T) {
	repo := &mockRuleRepo{rules: []*Rule{
		{Name: "r", Type: RuleRange, Expression: "0:500", FieldTypeID: "ft", Active: true},
	}}
	e := NewEngine(repo)

	for _, tt := range []struct {
		value string
		pass  bool
	}{
		{"0", true},
		{"500", true},
		{"250.5", true},
		{"-0.1", false},
		{"500.1", false},
	} {
		violations, err := e.Validate(context.Background(), "ft", tt.value)
		if err != nil {
			t.Fatalf("value %s: unexpected error: %v", tt.value, err)
		}
		if pass := len(violations) == 0; pass != tt.pass {
			t.Errorf("value %s: pass = %v, want %v", tt.value, pass, tt.pass)
		}
	}
}

func TestValidate_OpenEndedRange(t *testing.T) {
	repo := &mockRuleRepo{rules: []*Rule{
		{Name: "r", Type: RuleRange, Expression: "0:", FieldTypeID: "ft", Active: true},
	}}
	e := NewEngine(repo)

	if v, _ := e.Validate(context.Background(), "ft", "99999"); len(v) != 0 {
		t.Errorf("expected pass for open upper bound, got %v", v)
	}
	if v, _ := e.Validate(context.Background(), "ft", "-1"); len(v) == 0 {
		t.Error("expected violation below lower bound")
	}
}

func TestValidate_NoRulesIsPass(t *testing.T) {
	e := NewEngine(&mockRuleRepo{})
	violations, err := e.Validate(context.Background(), "unknown.type", "anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if violations != nil {
		t.Errorf("expected nil violations, got %v", violations)
	}
}

func TestValidate_InactiveRulesSkipped(t *testing.T) {
	repo := &mockRuleRepo{rules: []*Rule{
		{Name: "off", Type: RuleRange, Expression: "0:1", FieldTypeID: "ft", Active: false},
	}}
	e := NewEngine(repo)
	if v, _ := e.Validate(context.Background(), "ft", "999"); len(v) != 0 {
		t.Errorf("inactive rule should not fire, got %v", v)
	}
}
