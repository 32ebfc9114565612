package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labgate/labgate/internal/platform/db"
)

// ResultsAudit maps to the analyzer_results_audit table: the raw trace of
// every value an analyzer reported, patient and control alike, kept per
// (analyzer, accession, test, control lot) and overwritten on
// re-transmission. Operators reconcile disputed results against this table.
type ResultsAudit struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	AnalyzerID      uuid.UUID  `db:"analyzer_id" json:"analyzer_id"`
	AccessionNumber string     `db:"accession_number" json:"accession_number"`
	TestID          string     `db:"test_id" json:"test_id"`
	VendorCode      string     `db:"vendor_code" json:"vendor_code"`
	RawValue        string     `db:"raw_value" json:"raw_value"`
	Unit            string     `db:"unit" json:"unit"`
	AbnormalFlag    string     `db:"abnormal_flag" json:"abnormal_flag,omitempty"`
	Control         bool       `db:"control" json:"control"`
	ControlLot      string     `db:"control_lot" json:"control_lot,omitempty"`
	MeasuredAt      *time.Time `db:"measured_at" json:"measured_at,omitempty"`
	ReceivedAt      time.Time  `db:"received_at" json:"received_at"`
}

type AuditRepository interface {
	// Upsert writes the audit row for (analyzer, accession, test), replacing
	// any previous transmission's values.
	Upsert(ctx context.Context, a *ResultsAudit) error
	ListByAccession(ctx context.Context, accessionNumber string) ([]*ResultsAudit, error)
}

type auditRepoPG struct{ pool *pgxpool.Pool }

func NewAuditRepoPG(pool *pgxpool.Pool) AuditRepository {
	return &auditRepoPG{pool: pool}
}

func (r *auditRepoPG) Upsert(ctx context.Context, a *ResultsAudit) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO analyzer_results_audit
			(id, analyzer_id, accession_number, test_id, vendor_code, raw_value, unit, abnormal_flag, control, control_lot, measured_at, received_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (analyzer_id, accession_number, test_id, control_lot) DO UPDATE SET
			vendor_code = EXCLUDED.vendor_code,
			raw_value = EXCLUDED.raw_value,
			unit = EXCLUDED.unit,
			abnormal_flag = EXCLUDED.abnormal_flag,
			control = EXCLUDED.control,
			measured_at = EXCLUDED.measured_at,
			received_at = EXCLUDED.received_at`,
		a.ID, a.AnalyzerID, a.AccessionNumber, a.TestID, a.VendorCode,
		a.RawValue, a.Unit, a.AbnormalFlag, a.Control, a.ControlLot, a.MeasuredAt, a.ReceivedAt)
	return err
}

func (r *auditRepoPG) ListByAccession(ctx context.Context, accessionNumber string) ([]*ResultsAudit, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, analyzer_id, accession_number, test_id, vendor_code, raw_value, unit, abnormal_flag, control, control_lot, measured_at, received_at
		FROM analyzer_results_audit WHERE accession_number = $1 ORDER BY test_id`,
		accessionNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*ResultsAudit
	for rows.Next() {
		var a ResultsAudit
		if err := rows.Scan(&a.ID, &a.AnalyzerID, &a.AccessionNumber, &a.TestID, &a.VendorCode,
			&a.RawValue, &a.Unit, &a.AbnormalFlag, &a.Control, &a.ControlLot, &a.MeasuredAt, &a.ReceivedAt); err != nil {
			return nil, err
		}
		items = append(items, &a)
	}
	return items, rows.Err()
}
