package analyzer

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Analyzer maps to the analyzer table: one configured laboratory instrument.
type Analyzer struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	Plugin          string     `db:"plugin" json:"plugin"`
	Source          string     `db:"source" json:"source"`
	ProtocolVersion string     `db:"protocol_version" json:"protocol_version"`
	Status          string     `db:"status" json:"status"`
	IdentPattern    string     `db:"ident_pattern" json:"ident_pattern"`
	LastActivatedAt *time.Time `db:"last_activated_at" json:"last_activated_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Active reports whether the analyzer may deliver results.
func (a *Analyzer) Active() bool { return a.Status == StatusActive }
