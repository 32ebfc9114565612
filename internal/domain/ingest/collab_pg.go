package ingest

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labgate/labgate/internal/platform/db"
)

// Reference collaborator implementations backed by the local schema. They
// run their statements through the connection in ctx, so inside Persist they
// share the orchestrator's transaction and roll back with it.

type analysisLookupPG struct{ pool *pgxpool.Pool }

func NewAnalysisLookupPG(pool *pgxpool.Pool) AnalysisLookup {
	return &analysisLookupPG{pool: pool}
}

func (l *analysisLookupPG) Find(ctx context.Context, accessionNumber, testID string) (*AnalysisHandle, error) {
	h := &AnalysisHandle{AccessionNumber: accessionNumber, TestID: testID}
	err := db.Conn(ctx, l.pool).QueryRow(ctx, `
		SELECT id FROM analysis
		WHERE accession_number = $1 AND test_id = $2 AND status = 'ordered'`,
		accessionNumber, testID).Scan(&h.AnalysisID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoMatchingAnalysis
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

type resultWriterPG struct{ pool *pgxpool.Pool }

func NewResultWriterPG(pool *pgxpool.Pool) ResultWriter {
	return &resultWriterPG{pool: pool}
}

func (w *resultWriterPG) Write(ctx context.Context, h *AnalysisHandle, r *PatientResult) (uuid.UUID, error) {
	id := uuid.New()
	conn := db.Conn(ctx, w.pool)
	_, err := conn.Exec(ctx, `
		INSERT INTO lab_result (id, analysis_id, value, unit, ref_low, ref_high, abnormal_flag, measured_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		id, h.AnalysisID, r.Value, r.Unit, r.RefLow, r.RefHigh, r.AbnormalFlag, r.MeasuredAt)
	if err != nil {
		return uuid.Nil, err
	}
	_, err = conn.Exec(ctx, `UPDATE analysis SET status = 'resulted', updated_at = NOW() WHERE id = $1`, h.AnalysisID)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

type qcResultServicePG struct{ pool *pgxpool.Pool }

func NewQCResultServicePG(pool *pgxpool.Pool) QCResultService {
	return &qcResultServicePG{pool: pool}
}

func (s *qcResultServicePG) CreateQCResult(ctx context.Context, req *QCResultRequest) error {
	_, err := db.Conn(ctx, s.pool).Exec(ctx, `
		INSERT INTO qc_result (id, analyzer_id, test_id, control_lot_id, control_level, value, unit, measured_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		uuid.New(), req.AnalyzerID, req.TestID, req.ControlLotID, req.ControlLevel, req.Value, req.Unit, req.Timestamp)
	return err
}

type reflexOrderRequesterPG struct{ pool *pgxpool.Pool }

func NewReflexOrderRequesterPG(pool *pgxpool.Pool) ReflexOrderRequester {
	return &reflexOrderRequesterPG{pool: pool}
}

func (r *reflexOrderRequesterPG) RequestOrder(ctx context.Context, testID, analyteID string, trigger TriggerContext) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO reflex_order (id, test_id, analyte_id, analyzer_id, accession_number, trigger_test_id, trigger_value, trigger_flag)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		uuid.New(), testID, analyteID, trigger.AnalyzerID, trigger.AccessionNumber, trigger.TestID, trigger.Value, trigger.AbnormalFlag)
	return err
}
