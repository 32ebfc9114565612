package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type fakeRuleRepo struct {
	rules []*ReflexRule
	err   error
}

func (f *fakeRuleRepo) Create(ctx context.Context, r *ReflexRule) error { return nil }
func (f *fakeRuleRepo) ListActive(ctx context.Context) ([]*ReflexRule, error) {
	return f.rules, f.err
}

type fakeRequester struct {
	orders []TriggerContext
	failOn string // order test id that fails
}

func (f *fakeRequester) RequestOrder(ctx context.Context, testID, analyteID string, trigger TriggerContext) error {
	if testID == f.failOn {
		return errors.New("ordering system rejected request")
	}
	f.orders = append(f.orders, trigger)
	return nil
}

func TestReflexEvaluateTriggersOnMatch(t *testing.T) {
	repo := &fakeRuleRepo{rules: []*ReflexRule{
		{Name: "alt-high-ggt", TriggerTestID: "alt", TriggerFlag: "H", OrderTestID: "ggt", OrderAnalyteID: "ggt", Active: true},
	}}
	req := &fakeRequester{}
	e := NewReflexEvaluator(repo, req, zerolog.Nop())

	persisted := []PersistedResult{
		{AnalyzerID: uuid.New(), AccessionNumber: "S-1", TestID: "alt", Value: "98", AbnormalFlag: "H"},
		{AnalyzerID: uuid.New(), AccessionNumber: "S-1", TestID: "ast", Value: "30", AbnormalFlag: ""},
	}
	if got := e.Evaluate(context.Background(), persisted); got != 1 {
		t.Fatalf("triggered = %d, want 1", got)
	}
	if len(req.orders) != 1 || req.orders[0].TestID != "alt" {
		t.Errorf("orders = %+v", req.orders)
	}
}

func TestReflexEmptyFlagMatchesAnyFlaggedResult(t *testing.T) {
	repo := &fakeRuleRepo{rules: []*ReflexRule{
		{Name: "any-flag", TriggerTestID: "wbc", OrderTestID: "diff", OrderAnalyteID: "diff", Active: true},
	}}
	req := &fakeRequester{}
	e := NewReflexEvaluator(repo, req, zerolog.Nop())

	persisted := []PersistedResult{
		{TestID: "wbc", Value: "15.2", AbnormalFlag: "H"},
		{TestID: "wbc", Value: "7.0", AbnormalFlag: ""},
	}
	if got := e.Evaluate(context.Background(), persisted); got != 1 {
		t.Fatalf("triggered = %d, want 1", got)
	}
}

func TestReflexNumericComparators(t *testing.T) {
	cases := []struct {
		name      string
		rule      ReflexRule
		value     string
		triggered bool
	}{
		{"gt above", ReflexRule{Comparator: CompareGT, Threshold: "50"}, "98", true},
		{"gt below", ReflexRule{Comparator: CompareGT, Threshold: "50"}, "42", false},
		{"lt below", ReflexRule{Comparator: CompareLT, Threshold: "3.5"}, "2.9", true},
		{"lt above", ReflexRule{Comparator: CompareLT, Threshold: "3.5"}, "3.6", false},
		{"eq match", ReflexRule{Comparator: CompareEQ, Threshold: "0"}, "0", true},
		{"non-numeric value", ReflexRule{Comparator: CompareGT, Threshold: "50"}, "POSITIVE", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule := tc.rule
			rule.TriggerTestID = "alt"
			rule.OrderTestID = "ggt"
			rule.Active = true
			repo := &fakeRuleRepo{rules: []*ReflexRule{&rule}}
			req := &fakeRequester{}
			e := NewReflexEvaluator(repo, req, zerolog.Nop())

			got := e.Evaluate(context.Background(), []PersistedResult{{TestID: "alt", Value: tc.value}})
			if (got == 1) != tc.triggered {
				t.Errorf("triggered = %d, want triggered=%v", got, tc.triggered)
			}
		})
	}
}

func TestReflexFailureIsBestEffort(t *testing.T) {
	repo := &fakeRuleRepo{rules: []*ReflexRule{
		{Name: "fails", TriggerTestID: "alt", TriggerFlag: "H", OrderTestID: "broken", OrderAnalyteID: "x", Active: true},
		{Name: "works", TriggerTestID: "alt", TriggerFlag: "H", OrderTestID: "ggt", OrderAnalyteID: "ggt", Active: true},
	}}
	req := &fakeRequester{failOn: "broken"}
	e := NewReflexEvaluator(repo, req, zerolog.Nop())

	persisted := []PersistedResult{{TestID: "alt", Value: "98", AbnormalFlag: "H"}}
	if got := e.Evaluate(context.Background(), persisted); got != 1 {
		t.Fatalf("triggered = %d, want 1 (remaining rule must still fire)", got)
	}
}

func TestReflexRulesUnavailableSkipsQuietly(t *testing.T) {
	repo := &fakeRuleRepo{err: errors.New("db down")}
	e := NewReflexEvaluator(repo, &fakeRequester{}, zerolog.Nop())

	if got := e.Evaluate(context.Background(), []PersistedResult{{TestID: "alt", AbnormalFlag: "H"}}); got != 0 {
		t.Fatalf("triggered = %d, want 0", got)
	}
}
