// Package ingest is the analyzer message pipeline: parse, identify, resolve,
// validate, route, persist, then evaluate reflex rules post-commit.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Control material levels as derived from control lot naming.
const (
	ControlLevelLow    = "LOW"
	ControlLevelNormal = "NORMAL"
	ControlLevelHigh   = "HIGH"
)

// ErrNoMatchingAnalysis means no ordered analysis exists for the accession
// number and test id a patient result arrived for. This aborts the message's
// transaction: a result without its ordered context must not be stored.
var ErrNoMatchingAnalysis = errors.New("ingest: no matching analysis")

// ErrQCUnavailable means the QC collaborator could not accept the request.
var ErrQCUnavailable = errors.New("ingest: qc service unavailable")

// AnalysisHandle identifies one ordered analysis a result attaches to.
type AnalysisHandle struct {
	AnalysisID      uuid.UUID
	AccessionNumber string
	TestID          string
}

// AnalysisLookup finds the ordered analysis for an incoming patient result.
type AnalysisLookup interface {
	Find(ctx context.Context, accessionNumber, testID string) (*AnalysisHandle, error)
}

// PatientResult is one mapped, validated patient measurement ready to write.
type PatientResult struct {
	Value        string
	Unit         string
	RefLow       string
	RefHigh      string
	AbnormalFlag string
	MeasuredAt   time.Time
}

// ResultWriter stores a patient result against its analysis. Implementations
// must join the transaction carried in ctx so the orchestrator's rollback
// covers them.
type ResultWriter interface {
	Write(ctx context.Context, h *AnalysisHandle, r *PatientResult) (uuid.UUID, error)
}

// QCResultRequest is the translation of a control-material result field for
// the QC collaborator.
type QCResultRequest struct {
	AnalyzerID   uuid.UUID
	TestID       string
	ControlLotID string
	ControlLevel string
	Value        string
	Unit         string
	Timestamp    time.Time
}

// QCResultService accepts control-material results. Implementations must
// join the transaction carried in ctx.
type QCResultService interface {
	CreateQCResult(ctx context.Context, req *QCResultRequest) error
}

// TriggerContext describes the persisted result that matched a reflex rule.
type TriggerContext struct {
	AnalyzerID      uuid.UUID
	AccessionNumber string
	TestID          string
	Value           string
	AbnormalFlag    string
}

// ReflexOrderRequester asks the ordering system for a follow-up test. Called
// only after the originating transaction committed.
type ReflexOrderRequester interface {
	RequestOrder(ctx context.Context, testID, analyteID string, trigger TriggerContext) error
}
