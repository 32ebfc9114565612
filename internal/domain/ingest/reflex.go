package ingest

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/labgate/labgate/internal/platform/db"
)

// Trigger comparators for reflex rules.
const (
	CompareGT   = "gt"
	CompareLT   = "lt"
	CompareEQ   = "eq"
	CompareFlag = "flag"
)

// ReflexRule maps to the reflex_rule table: when a persisted result for
// TriggerTestID satisfies the comparator against Threshold (or carries
// TriggerFlag for the flag comparator), a follow-up order for OrderTestID is
// requested.
type ReflexRule struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	TriggerTestID  string    `db:"trigger_test_id" json:"trigger_test_id"`
	Comparator     string    `db:"comparator" json:"comparator"`
	Threshold      string    `db:"threshold" json:"threshold,omitempty"`
	TriggerFlag    string    `db:"trigger_flag" json:"trigger_flag,omitempty"`
	OrderTestID    string    `db:"order_test_id" json:"order_test_id"`
	OrderAnalyteID string    `db:"order_analyte_id" json:"order_analyte_id"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// matches reports whether a persisted result satisfies the rule's trigger.
// Non-numeric values never satisfy the numeric comparators. For the flag
// comparator an empty TriggerFlag fires on any flagged result.
func (r *ReflexRule) matches(p PersistedResult) bool {
	if !strings.EqualFold(r.TriggerTestID, p.TestID) {
		return false
	}
	switch r.Comparator {
	case CompareGT, CompareLT, CompareEQ:
		value, err := strconv.ParseFloat(p.Value, 64)
		if err != nil {
			return false
		}
		threshold, err := strconv.ParseFloat(r.Threshold, 64)
		if err != nil {
			return false
		}
		switch r.Comparator {
		case CompareGT:
			return value > threshold
		case CompareLT:
			return value < threshold
		default:
			return value == threshold
		}
	default: // flag comparator, also the default for legacy rows
		if r.TriggerFlag == "" {
			return p.AbnormalFlag != ""
		}
		return strings.EqualFold(r.TriggerFlag, p.AbnormalFlag)
	}
}

type ReflexRuleRepository interface {
	Create(ctx context.Context, r *ReflexRule) error
	ListActive(ctx context.Context) ([]*ReflexRule, error)
}

type reflexRepoPG struct{ pool *pgxpool.Pool }

func NewReflexRuleRepoPG(pool *pgxpool.Pool) ReflexRuleRepository {
	return &reflexRepoPG{pool: pool}
}

func (r *reflexRepoPG) Create(ctx context.Context, rule *ReflexRule) error {
	rule.ID = uuid.New()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO reflex_rule (id, name, trigger_test_id, comparator, threshold, trigger_flag, order_test_id, order_analyte_id, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		rule.ID, rule.Name, rule.TriggerTestID, rule.Comparator, rule.Threshold, rule.TriggerFlag,
		rule.OrderTestID, rule.OrderAnalyteID, rule.Active)
	return err
}

func (r *reflexRepoPG) ListActive(ctx context.Context) ([]*ReflexRule, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, name, trigger_test_id, comparator, threshold, trigger_flag, order_test_id, order_analyte_id, active, created_at
		FROM reflex_rule WHERE active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*ReflexRule
	for rows.Next() {
		var rule ReflexRule
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.TriggerTestID, &rule.Comparator, &rule.Threshold,
			&rule.TriggerFlag, &rule.OrderTestID, &rule.OrderAnalyteID, &rule.Active, &rule.CreatedAt); err != nil {
			return nil, err
		}
		rules = append(rules, &rule)
	}
	return rules, rows.Err()
}

// ReflexEvaluator runs after a successful commit and requests follow-up
// orders for committed results that match active rules. Evaluation is
// best-effort: one rule's failure is logged and does not touch the commit or
// the remaining rules.
type ReflexEvaluator struct {
	rules     ReflexRuleRepository
	requester ReflexOrderRequester
	log       zerolog.Logger
}

func NewReflexEvaluator(rules ReflexRuleRepository, requester ReflexOrderRequester, log zerolog.Logger) *ReflexEvaluator {
	return &ReflexEvaluator{rules: rules, requester: requester, log: log}
}

// Evaluate returns the number of orders successfully requested.
func (e *ReflexEvaluator) Evaluate(ctx context.Context, persisted []PersistedResult) int {
	if len(persisted) == 0 {
		return 0
	}
	rules, err := e.rules.ListActive(ctx)
	if err != nil {
		e.log.Error().Err(err).Msg("reflex rules unavailable, skipping evaluation")
		return 0
	}

	triggered := 0
	for _, p := range persisted {
		for _, rule := range rules {
			if !rule.matches(p) {
				continue
			}
			err := e.requester.RequestOrder(ctx, rule.OrderTestID, rule.OrderAnalyteID, TriggerContext{
				AnalyzerID:      p.AnalyzerID,
				AccessionNumber: p.AccessionNumber,
				TestID:          p.TestID,
				Value:           p.Value,
				AbnormalFlag:    p.AbnormalFlag,
			})
			if err != nil {
				e.log.Error().Err(err).
					Str("rule", rule.Name).
					Str("accession", p.AccessionNumber).
					Str("test_id", p.TestID).
					Msg("reflex order request failed")
				continue
			}
			triggered++
			e.log.Info().
				Str("rule", rule.Name).
				Str("accession", p.AccessionNumber).
				Str("order_test_id", rule.OrderTestID).
				Msg("reflex order requested")
		}
	}
	return triggered
}
