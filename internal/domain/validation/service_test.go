package validation

import (
	"context"
	"testing"
)

func TestServiceCreateRejectsBadExpressions(t *testing.T) {
	svc := NewService(&mockRuleRepo{})
	ctx := context.Background()

	cases := []struct {
		name string
		rule Rule
		ok   bool
	}{
		{"valid required", Rule{Name: "req", Type: RuleRequired, FieldTypeID: "numeric"}, true},
		{"valid pattern", Rule{Name: "num", Type: RulePattern, Expression: `^\d+$`, FieldTypeID: "numeric"}, true},
		{"valid range", Rule{Name: "rng", Type: RuleRange, Expression: "0:100", FieldTypeID: "numeric"}, true},
		{"open-ended range", Rule{Name: "min", Type: RuleRange, Expression: "0:", FieldTypeID: "numeric"}, true},
		{"broken pattern", Rule{Name: "bad", Type: RulePattern, Expression: `[unclosed`, FieldTypeID: "numeric"}, false},
		{"range without colon", Rule{Name: "bad", Type: RuleRange, Expression: "0-100", FieldTypeID: "numeric"}, false},
		{"range with letters", Rule{Name: "bad", Type: RuleRange, Expression: "low:high", FieldTypeID: "numeric"}, false},
		{"unknown type", Rule{Name: "bad", Type: "lookup", FieldTypeID: "numeric"}, false},
		{"missing name", Rule{Type: RuleRequired, FieldTypeID: "numeric"}, false},
		{"missing field type", Rule{Name: "req", Type: RuleRequired}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule := tc.rule
			err := svc.Create(ctx, &rule)
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected rejection")
			}
		})
	}
}
