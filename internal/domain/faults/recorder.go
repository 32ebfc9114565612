package faults

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/labgate/labgate/internal/platform/telemetry"
)

// Recorder appends fault rows. Recording never fails the caller: if the
// insert itself fails the fault is still logged, because a broken error
// channel must not take the ingestion path down with it.
type Recorder struct {
	repo    Repository
	log     zerolog.Logger
	metrics *telemetry.Metrics
}

func NewRecorder(repo Repository, log zerolog.Logger, metrics *telemetry.Metrics) *Recorder {
	return &Recorder{repo: repo, log: log, metrics: metrics}
}

// Record writes one fault row and emits the matching log line and counter.
func (r *Recorder) Record(ctx context.Context, kind string, analyzerID *uuid.UUID, message string, kv map[string]string) {
	e := &AnalyzerError{
		AnalyzerID: analyzerID,
		Kind:       kind,
		Message:    message,
		Context:    kv,
	}
	if src, ok := kv["source"]; ok {
		e.Source = src
	}

	ev := r.log.Warn().Str("kind", kind).Str("message", message)
	if analyzerID != nil {
		ev = ev.Str("analyzer_id", analyzerID.String())
	}
	for k, v := range kv {
		ev = ev.Str(k, v)
	}
	ev.Msg("analyzer error recorded")

	if r.metrics != nil {
		r.metrics.ErrorsTotal.WithLabelValues(kind).Inc()
	}

	if err := r.repo.Insert(ctx, e); err != nil {
		r.log.Error().Err(err).Str("kind", kind).Msg("analyzer error row insert failed")
	}
}
