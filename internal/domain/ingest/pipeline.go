package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/labgate/labgate/internal/domain/analyzer"
	"github.com/labgate/labgate/internal/domain/faults"
	"github.com/labgate/labgate/internal/domain/mapping"
	"github.com/labgate/labgate/internal/platform/plugin"
	"github.com/labgate/labgate/internal/platform/protocol"
	"github.com/labgate/labgate/internal/platform/telemetry"
)

// Receipt summarizes how one message was processed.
type Receipt struct {
	Protocol         protocol.Hint `json:"protocol"`
	AnalyzerID       uuid.UUID     `json:"analyzer_id"`
	AccessionNumber  string        `json:"accession_number,omitempty"`
	PatientPersisted int           `json:"patient_persisted"`
	QCPersisted      int           `json:"qc_persisted"`
	ReflexTriggered  int           `json:"reflex_triggered"`
	RecordErrors     int           `json:"record_errors"`
	DroppedFields    int           `json:"dropped_fields"`
}

// Pipeline processes one analyzer message end-to-end: parse, identify the
// source, resolve and validate each field, route QC away from patient
// results, persist in one transaction, then evaluate reflex rules. Each
// message is handled sequentially by one worker; concurrency lives across
// messages, never inside one.
type Pipeline struct {
	registry     *plugin.Registry
	analyzers    *analyzer.Service
	resolver     *mapping.Resolver
	orchestrator *Orchestrator
	reflex       *ReflexEvaluator
	recorder     *faults.Recorder
	metrics      *telemetry.Metrics
	log          zerolog.Logger
}

func NewPipeline(
	registry *plugin.Registry,
	analyzers *analyzer.Service,
	resolver *mapping.Resolver,
	orchestrator *Orchestrator,
	reflex *ReflexEvaluator,
	recorder *faults.Recorder,
	metrics *telemetry.Metrics,
	log zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		registry:     registry,
		analyzers:    analyzers,
		resolver:     resolver,
		orchestrator: orchestrator,
		reflex:       reflex,
		recorder:     recorder,
		metrics:      metrics,
		log:          log,
	}
}

// Process handles one raw message. A non-nil error means the message was
// rejected or rolled back as a whole; record-level failures are recorded and
// reflected in the receipt without failing the message.
func (p *Pipeline) Process(ctx context.Context, raw protocol.RawMessage) (*Receipt, error) {
	start := time.Now()
	hint := raw.Hint
	if hint == "" || hint == protocol.HintAuto {
		hint = protocol.Detect(raw.Body)
	}
	defer func() {
		p.metrics.ProcessDuration.WithLabelValues(string(hint)).Observe(time.Since(start).Seconds())
	}()

	rec, recordErrs, err := protocol.Parse(raw.Body, hint)
	if err != nil {
		p.recorder.Record(ctx, faults.KindParseError, nil, err.Error(), map[string]string{"source": raw.Source})
		p.metrics.MessagesTotal.WithLabelValues(string(hint), "rejected").Inc()
		return nil, err
	}
	for _, re := range recordErrs {
		p.recorder.Record(ctx, faults.KindParseError, nil, re.Reason, map[string]string{
			"source":   raw.Source,
			"sequence": fmt.Sprint(re.Sequence),
			"line":     re.Line,
		})
	}

	desc, err := p.registry.Identify(rec.SenderToken)
	if err != nil {
		p.recorder.Record(ctx, faults.KindIdentificationFailed, nil,
			fmt.Sprintf("no plugin claims token %q", rec.SenderToken),
			map[string]string{"source": raw.Source})
		p.metrics.MessagesTotal.WithLabelValues(string(rec.Protocol), "rejected").Inc()
		return nil, err
	}

	an, err := p.analyzers.ResolveActive(ctx, desc.Name)
	if err != nil {
		if errors.Is(err, analyzer.ErrNotFound) {
			p.recorder.Record(ctx, faults.KindIdentificationFailed, nil,
				fmt.Sprintf("plugin %s has no active analyzer", desc.Name),
				map[string]string{"source": raw.Source})
			p.metrics.MessagesTotal.WithLabelValues(string(rec.Protocol), "rejected").Inc()
		}
		return nil, err
	}

	for i := range rec.Fields {
		desc.Normalize(&rec.Fields[i])
	}

	routed := Route(rec.Fields)
	batch, dropped := p.buildBatch(ctx, an, desc, rec, raw, routed)

	outcome, err := p.orchestrator.Persist(ctx, batch)
	if err != nil {
		var pe *PersistError
		kind := faults.KindPersistFailed
		if errors.As(err, &pe) {
			kind = pe.Kind
		}
		p.recorder.Record(ctx, kind, &an.ID, err.Error(), map[string]string{
			"source":    raw.Source,
			"accession": rec.AccessionNumber,
		})
		p.metrics.MessagesTotal.WithLabelValues(string(rec.Protocol), "rolled_back").Inc()
		return nil, err
	}

	p.metrics.MessagesTotal.WithLabelValues(string(rec.Protocol), "committed").Inc()
	p.metrics.RecordsTotal.WithLabelValues("patient").Add(float64(len(outcome.Patient)))
	p.metrics.RecordsTotal.WithLabelValues("qc").Add(float64(outcome.QCCount))

	// Reflex evaluation runs strictly after the commit; its failures never
	// unwind it.
	triggered := p.reflex.Evaluate(ctx, outcome.Patient)

	p.log.Info().
		Str("analyzer", an.Name).
		Str("accession", rec.AccessionNumber).
		Int("patient", len(outcome.Patient)).
		Int("qc", outcome.QCCount).
		Int("record_errors", len(recordErrs)).
		Int("dropped_fields", dropped).
		Msg("message committed")

	return &Receipt{
		Protocol:         rec.Protocol,
		AnalyzerID:       an.ID,
		AccessionNumber:  rec.AccessionNumber,
		PatientPersisted: len(outcome.Patient),
		QCPersisted:      outcome.QCCount,
		ReflexTriggered:  triggered,
		RecordErrors:     len(recordErrs),
		DroppedFields:    dropped,
	}, nil
}

// buildBatch resolves every routed field. Unresolvable fields are recorded
// and dropped; siblings keep going.
func (p *Pipeline) buildBatch(ctx context.Context, an *analyzer.Analyzer, desc *plugin.Descriptor, rec *protocol.ParsedRecord, raw protocol.RawMessage, routed Routed) (*Batch, int) {
	batch := &Batch{
		AnalyzerID:      an.ID,
		AccessionNumber: rec.AccessionNumber,
		MeasuredAt:      rec.Timestamp,
		ReceivedAt:      raw.ReceivedAt,
	}
	dropped := 0

	for _, f := range routed.Patient {
		res, err := p.resolver.Resolve(ctx, an.ID, f.Code, rec.SpecimenType, rec.Panel, f.Value)
		if err != nil {
			p.recordUnmapped(ctx, an, raw, f.Code, err, false)
			dropped++
			continue
		}
		batch.Patient = append(batch.Patient, ResolvedField{Field: f, Mapping: res})
	}

	for _, f := range routed.QC {
		res, err := p.resolver.Resolve(ctx, an.ID, f.Code, rec.SpecimenType, rec.Panel, f.Value)
		if err != nil {
			p.recordUnmapped(ctx, an, raw, f.Code, err, true)
			dropped++
			continue
		}
		level := ""
		if desc.ControlLevel != nil {
			level = desc.ControlLevel(f.ControlLot)
		}
		if level == "" {
			level = ControlLevelNormal
		}
		batch.QC = append(batch.QC, QCField{Field: f, Request: &QCResultRequest{
			AnalyzerID:   an.ID,
			TestID:       res.LabFieldID,
			ControlLotID: f.ControlLot,
			ControlLevel: level,
			Value:        res.Value,
			Unit:         f.Unit,
			Timestamp:    rec.Timestamp,
		}})
	}
	return batch, dropped
}

func (p *Pipeline) recordUnmapped(ctx context.Context, an *analyzer.Analyzer, raw protocol.RawMessage, code string, err error, qc bool) {
	kind := faults.KindMappingIncomplete
	var unmapped *mapping.UnmappedError
	switch {
	case qc:
		kind = faults.KindQCMappingIncomplete
	case errors.As(err, &unmapped) && unmapped.Reason == mapping.ReasonValidationFailed:
		kind = faults.KindValidationFailed
	}
	p.recorder.Record(ctx, kind, &an.ID, err.Error(), map[string]string{
		"source":      raw.Source,
		"vendor_code": code,
	})
}
