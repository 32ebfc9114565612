package validation

import (
	"time"

	"github.com/google/uuid"
)

const (
	RuleRequired = "required"
	RulePattern  = "pattern"
	RuleRange    = "range"
)

// Rule maps to the validation_rule table: one configured check applied to
// raw values of a laboratory field type before a mapping is trusted.
type Rule struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Type        string    `db:"rule_type" json:"rule_type"`
	Expression  string    `db:"expression" json:"expression"`
	Message     string    `db:"message" json:"message"`
	FieldTypeID string    `db:"field_type_id" json:"field_type_id"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Violation is one failed rule. All violations for a value are reported
// together so operators see the complete picture.
type Violation struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}
