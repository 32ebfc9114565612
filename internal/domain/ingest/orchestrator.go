package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/labgate/labgate/internal/domain/faults"
	"github.com/labgate/labgate/internal/domain/mapping"
	"github.com/labgate/labgate/internal/platform/db"
	"github.com/labgate/labgate/internal/platform/protocol"
)

// ResolvedField pairs a parsed field with its laboratory mapping.
type ResolvedField struct {
	Field   protocol.ResultField
	Mapping *mapping.MappingResult
}

// QCField pairs a routed control field with the request sent to the QC
// service. The raw field feeds the audit trail; the request feeds the
// collaborator.
type QCField struct {
	Field   protocol.ResultField
	Request *QCResultRequest
}

// Batch is everything one message stages for persistence.
type Batch struct {
	AnalyzerID      uuid.UUID
	AccessionNumber string
	MeasuredAt      time.Time
	ReceivedAt      time.Time
	Patient         []ResolvedField
	QC              []QCField
}

// PersistedResult is one committed patient result, the reflex evaluator's
// input.
type PersistedResult struct {
	ResultID        uuid.UUID
	AnalyzerID      uuid.UUID
	AccessionNumber string
	TestID          string
	Value           string
	AbnormalFlag    string
}

// Outcome summarizes a committed message.
type Outcome struct {
	Patient []PersistedResult
	QCCount int
}

// PersistError carries the fault kind a failed transaction should be
// recorded under.
type PersistError struct {
	Kind string
	Err  error
}

func (e *PersistError) Error() string { return fmt.Sprintf("persist (%s): %v", e.Kind, e.Err) }
func (e *PersistError) Unwrap() error { return e.Err }

// Orchestrator runs one transaction per message: audit rows, patient result
// writes, and QC requests all commit or roll back together so a QC result is
// never recorded without its paired patient context.
type Orchestrator struct {
	tx     db.TxRunner
	audit  AuditRepository
	lookup AnalysisLookup
	writer ResultWriter
	qc     QCResultService
}

func NewOrchestrator(tx db.TxRunner, audit AuditRepository, lookup AnalysisLookup, writer ResultWriter, qc QCResultService) *Orchestrator {
	return &Orchestrator{tx: tx, audit: audit, lookup: lookup, writer: writer, qc: qc}
}

// Persist writes the batch inside one transaction. A nil error means the
// transaction committed; a *PersistError means everything rolled back.
func (o *Orchestrator) Persist(ctx context.Context, b *Batch) (*Outcome, error) {
	out := &Outcome{}
	err := o.tx.RunInTx(ctx, func(ctx context.Context) error {
		for _, rf := range b.Patient {
			if err := o.persistPatient(ctx, b, rf, out); err != nil {
				return err
			}
		}
		for _, qf := range b.QC {
			if err := o.persistQC(ctx, b, qf, out); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var pe *PersistError
		if !errors.As(err, &pe) {
			err = &PersistError{Kind: faults.KindPersistFailed, Err: err}
		}
		return nil, err
	}
	return out, nil
}

func (o *Orchestrator) persistQC(ctx context.Context, b *Batch, qf QCField, out *Outcome) error {
	req := qf.Request

	audit := &ResultsAudit{
		AnalyzerID:      b.AnalyzerID,
		AccessionNumber: b.AccessionNumber,
		TestID:          req.TestID,
		VendorCode:      qf.Field.Code,
		RawValue:        qf.Field.Value,
		Unit:            qf.Field.Unit,
		AbnormalFlag:    qf.Field.AbnormalFlag,
		Control:         true,
		ControlLot:      req.ControlLotID,
		ReceivedAt:      b.ReceivedAt,
	}
	if measured := b.MeasuredAt; !measured.IsZero() {
		audit.MeasuredAt = &measured
	}
	if err := o.audit.Upsert(ctx, audit); err != nil {
		return &PersistError{Kind: faults.KindPersistFailed, Err: fmt.Errorf("qc audit row for %s: %w", req.TestID, err)}
	}

	if err := o.qc.CreateQCResult(ctx, req); err != nil {
		if errors.Is(err, ErrQCUnavailable) {
			return &PersistError{Kind: faults.KindServiceUnavailable, Err: err}
		}
		return &PersistError{Kind: faults.KindPersistFailed, Err: fmt.Errorf("qc result for %s: %w", req.TestID, err)}
	}
	out.QCCount++
	return nil
}

func (o *Orchestrator) persistPatient(ctx context.Context, b *Batch, rf ResolvedField, out *Outcome) error {
	testID := rf.Mapping.LabFieldID

	measured := b.MeasuredAt
	audit := &ResultsAudit{
		AnalyzerID:      b.AnalyzerID,
		AccessionNumber: b.AccessionNumber,
		TestID:          testID,
		VendorCode:      rf.Field.Code,
		RawValue:        rf.Field.Value,
		Unit:            rf.Field.Unit,
		AbnormalFlag:    rf.Field.AbnormalFlag,
		ReceivedAt:      b.ReceivedAt,
	}
	if !measured.IsZero() {
		audit.MeasuredAt = &measured
	}
	if err := o.audit.Upsert(ctx, audit); err != nil {
		return &PersistError{Kind: faults.KindPersistFailed, Err: fmt.Errorf("audit row for %s: %w", testID, err)}
	}

	handle, err := o.lookup.Find(ctx, b.AccessionNumber, testID)
	if err != nil {
		if errors.Is(err, ErrNoMatchingAnalysis) {
			return &PersistError{
				Kind: faults.KindNoMatchingAnalysis,
				Err:  fmt.Errorf("accession %s test %s: %w", b.AccessionNumber, testID, err),
			}
		}
		return &PersistError{Kind: faults.KindPersistFailed, Err: fmt.Errorf("analysis lookup for %s: %w", testID, err)}
	}

	resultID, err := o.writer.Write(ctx, handle, &PatientResult{
		Value:        rf.Mapping.Value,
		Unit:         rf.Field.Unit,
		RefLow:       rf.Field.RefLow,
		RefHigh:      rf.Field.RefHigh,
		AbnormalFlag: rf.Field.AbnormalFlag,
		MeasuredAt:   b.MeasuredAt,
	})
	if err != nil {
		return &PersistError{Kind: faults.KindPersistFailed, Err: fmt.Errorf("result write for %s: %w", testID, err)}
	}

	out.Patient = append(out.Patient, PersistedResult{
		ResultID:        resultID,
		AnalyzerID:      b.AnalyzerID,
		AccessionNumber: b.AccessionNumber,
		TestID:          testID,
		Value:           rf.Mapping.Value,
		AbnormalFlag:    rf.Field.AbnormalFlag,
	})
	return nil
}
