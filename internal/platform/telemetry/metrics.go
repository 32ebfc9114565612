// Package telemetry exposes Prometheus metrics for the ingestion pipeline.
package telemetry

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "lis_"

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	MessagesTotal   *prometheus.CounterVec
	RecordsTotal    *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
	ProcessDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricPrefix + "messages_total",
		Help: "Analyzer messages processed, by protocol and outcome",
	}, []string{"protocol", "outcome"})

	m.RecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricPrefix + "records_total",
		Help: "Result records routed, by kind (patient or qc)",
	}, []string{"kind"})

	m.ErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricPrefix + "errors_total",
		Help: "Recorded analyzer errors, by kind",
	}, []string{"kind"})

	m.ProcessDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricPrefix + "process_seconds",
		Help:    "End-to-end message processing time",
		Buckets: prometheus.DefBuckets,
	}, []string{"protocol"})

	m.registry.MustRegister(m.MessagesTotal, m.RecordsTotal, m.ErrorsTotal, m.ProcessDuration)
	return m
}

// Handler returns an echo handler serving the Prometheus text exposition.
func (m *Metrics) Handler() echo.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return echo.WrapHandler(h)
}
