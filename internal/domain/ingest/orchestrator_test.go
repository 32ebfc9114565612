package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/labgate/labgate/internal/domain/faults"
	"github.com/labgate/labgate/internal/domain/mapping"
	"github.com/labgate/labgate/internal/platform/protocol"
)

// fakeStore stages collaborator writes the way the shared transaction does:
// nothing reaches the committed lists unless the transaction runner commits.
type fakeStore struct {
	mu sync.Mutex

	stagedAudits  []*ResultsAudit
	stagedResults []*PatientResult
	stagedQC      []*QCResultRequest

	Audits  []*ResultsAudit
	Results []*PatientResult
	QC      []*QCResultRequest
}

func (s *fakeStore) discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stagedAudits, s.stagedResults, s.stagedQC = nil, nil, nil
}

func (s *fakeStore) commit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Audits = append(s.Audits, s.stagedAudits...)
	s.Results = append(s.Results, s.stagedResults...)
	s.QC = append(s.QC, s.stagedQC...)
	s.stagedAudits, s.stagedResults, s.stagedQC = nil, nil, nil
}

type fakeTxRunner struct {
	store     *fakeStore
	Commits   int
	Rollbacks int
}

func (f *fakeTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		f.store.discard()
		f.Rollbacks++
		return err
	}
	f.store.commit()
	f.Commits++
	return nil
}

type fakeAudit struct{ store *fakeStore }

func (a *fakeAudit) Upsert(ctx context.Context, row *ResultsAudit) error {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	a.store.stagedAudits = append(a.store.stagedAudits, row)
	return nil
}

func (a *fakeAudit) ListByAccession(ctx context.Context, accessionNumber string) ([]*ResultsAudit, error) {
	return nil, nil
}

// fakeLookup knows the ordered analyses by accession|test key.
type fakeLookup struct {
	ordered map[string]uuid.UUID
	err     error
}

func (l *fakeLookup) Find(ctx context.Context, accessionNumber, testID string) (*AnalysisHandle, error) {
	if l.err != nil {
		return nil, l.err
	}
	id, ok := l.ordered[accessionNumber+"|"+testID]
	if !ok {
		return nil, ErrNoMatchingAnalysis
	}
	return &AnalysisHandle{AnalysisID: id, AccessionNumber: accessionNumber, TestID: testID}, nil
}

type fakeWriter struct {
	store *fakeStore
	err   error
}

func (w *fakeWriter) Write(ctx context.Context, h *AnalysisHandle, r *PatientResult) (uuid.UUID, error) {
	if w.err != nil {
		return uuid.Nil, w.err
	}
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	w.store.stagedResults = append(w.store.stagedResults, r)
	return uuid.New(), nil
}

type fakeQC struct {
	store *fakeStore
	err   error
}

func (q *fakeQC) CreateQCResult(ctx context.Context, req *QCResultRequest) error {
	if q.err != nil {
		return q.err
	}
	q.store.mu.Lock()
	defer q.store.mu.Unlock()
	q.store.stagedQC = append(q.store.stagedQC, req)
	return nil
}

func resolved(code, labFieldID, value string, control bool, lot string) ResolvedField {
	return ResolvedField{
		Field: protocol.ResultField{
			Code: code, Value: value, Unit: "U/L",
			Control: control, ControlLot: lot,
		},
		Mapping: &mapping.MappingResult{
			LabFieldID: labFieldID, LabFieldType: "numeric",
			Kind: mapping.KindDirect, Value: value,
		},
	}
}

func resolvedQC(code, labFieldID, value, lot string) QCField {
	return QCField{
		Field: protocol.ResultField{
			Code: code, Value: value, Unit: "U/L",
			Control: true, ControlLot: lot,
		},
		Request: &QCResultRequest{
			TestID: labFieldID, ControlLotID: lot,
			ControlLevel: ControlLevelLow, Value: value,
		},
	}
}

func orderedFor(batch *Batch) map[string]uuid.UUID {
	ordered := make(map[string]uuid.UUID)
	for _, rf := range batch.Patient {
		ordered[batch.AccessionNumber+"|"+rf.Mapping.LabFieldID] = uuid.New()
	}
	return ordered
}

func TestPersistMixedBatchCommitsBothPaths(t *testing.T) {
	store := &fakeStore{}
	tx := &fakeTxRunner{store: store}
	batch := &Batch{
		AnalyzerID:      uuid.New(),
		AccessionNumber: "SAMPLE-001",
		MeasuredAt:      time.Now(),
		ReceivedAt:      time.Now(),
		Patient: []ResolvedField{
			resolved("ALT", "alt", "35.2", false, ""),
			resolved("AST", "ast", "28.4", false, ""),
		},
		QC: []QCField{resolvedQC("ALT", "alt", "34.0", "QC-L1")},
	}
	o := NewOrchestrator(tx, &fakeAudit{store: store},
		&fakeLookup{ordered: orderedFor(batch)}, &fakeWriter{store: store}, &fakeQC{store: store})

	out, err := o.Persist(context.Background(), batch)
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if tx.Commits != 1 || tx.Rollbacks != 0 {
		t.Fatalf("commits=%d rollbacks=%d", tx.Commits, tx.Rollbacks)
	}
	if len(out.Patient) != 2 || out.QCCount != 1 {
		t.Errorf("outcome patient=%d qc=%d", len(out.Patient), out.QCCount)
	}
	if len(store.Results) != 2 || len(store.QC) != 1 || len(store.Audits) != 3 {
		t.Errorf("committed results=%d qc=%d audits=%d", len(store.Results), len(store.QC), len(store.Audits))
	}
	var qcAudits int
	for _, a := range store.Audits {
		if a.Control {
			qcAudits++
			if a.ControlLot != "QC-L1" {
				t.Errorf("qc audit lot = %q, want QC-L1", a.ControlLot)
			}
			if a.VendorCode != "ALT" || a.RawValue != "34.0" {
				t.Errorf("qc audit row = %+v", a)
			}
		}
	}
	if qcAudits != 1 {
		t.Errorf("control audit rows = %d, want 1", qcAudits)
	}
}

func TestPersistQCFailureRollsBackPatientWrites(t *testing.T) {
	store := &fakeStore{}
	tx := &fakeTxRunner{store: store}
	batch := &Batch{
		AnalyzerID:      uuid.New(),
		AccessionNumber: "SAMPLE-002",
		Patient:         []ResolvedField{resolved("ALT", "alt", "35.2", false, "")},
		QC:              []QCField{resolvedQC("ALT", "alt", "34.0", "QC-L1")},
	}
	o := NewOrchestrator(tx, &fakeAudit{store: store},
		&fakeLookup{ordered: orderedFor(batch)}, &fakeWriter{store: store},
		&fakeQC{store: store, err: ErrQCUnavailable})

	_, err := o.Persist(context.Background(), batch)
	var pe *PersistError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PersistError, got %v", err)
	}
	if pe.Kind != faults.KindServiceUnavailable {
		t.Errorf("kind = %s, want %s", pe.Kind, faults.KindServiceUnavailable)
	}
	if tx.Rollbacks != 1 {
		t.Fatalf("rollbacks = %d, want 1", tx.Rollbacks)
	}
	if len(store.Results) != 0 || len(store.Audits) != 0 || len(store.QC) != 0 {
		t.Errorf("rolled-back transaction left committed rows: results=%d audits=%d qc=%d",
			len(store.Results), len(store.Audits), len(store.QC))
	}
}

func TestPersistNoMatchingAnalysisAbortsMessage(t *testing.T) {
	store := &fakeStore{}
	tx := &fakeTxRunner{store: store}
	batch := &Batch{
		AnalyzerID:      uuid.New(),
		AccessionNumber: "SAMPLE-003",
		Patient:         []ResolvedField{resolved("ALT", "alt", "35.2", false, "")},
	}
	o := NewOrchestrator(tx, &fakeAudit{store: store},
		&fakeLookup{ordered: map[string]uuid.UUID{}}, &fakeWriter{store: store}, &fakeQC{store: store})

	_, err := o.Persist(context.Background(), batch)
	var pe *PersistError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PersistError, got %v", err)
	}
	if pe.Kind != faults.KindNoMatchingAnalysis {
		t.Errorf("kind = %s, want %s", pe.Kind, faults.KindNoMatchingAnalysis)
	}
	if len(store.Results) != 0 {
		t.Error("no result may commit without its ordered analysis")
	}
}

func TestPersistWriterFailureIsPersistFailed(t *testing.T) {
	store := &fakeStore{}
	tx := &fakeTxRunner{store: store}
	batch := &Batch{
		AnalyzerID:      uuid.New(),
		AccessionNumber: "SAMPLE-004",
		Patient:         []ResolvedField{resolved("TP", "tp", "71", false, "")},
	}
	o := NewOrchestrator(tx, &fakeAudit{store: store},
		&fakeLookup{ordered: orderedFor(batch)},
		&fakeWriter{store: store, err: errors.New("constraint violation")}, &fakeQC{store: store})

	_, err := o.Persist(context.Background(), batch)
	var pe *PersistError
	if !errors.As(err, &pe) || pe.Kind != faults.KindPersistFailed {
		t.Fatalf("expected PERSIST_FAILED, got %v", err)
	}
}
