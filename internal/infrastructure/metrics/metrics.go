// Package metrics exposes the intake pipeline counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"celiaquia/internal/ports"
)

// Metrics implements ports.PipelineMetrics on its own registry so several
// instances (tests, one per fx app) never collide.
type Metrics struct {
	registry *prometheus.Registry

	// Rows read from uploads by result: valid or erroneous
	Rows *prometheus.CounterVec

	// RENAPER verdicts: accepted, rejected, subsanar, unavailable
	Renaper *prometheus.CounterVec

	// SINTYS verdicts: MATCH, NO_MATCH, unavailable
	Sintys *prometheus.CounterVec

	Transitions *prometheus.CounterVec

	// Cupo decisions: DENTRO or FUERA
	Cupo *prometheus.CounterVec

	// Work queue results by kind and status: done, retry, dead
	Work *prometheus.CounterVec
}

var _ ports.PipelineMetrics = (*Metrics)(nil)

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Rows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "celiaquia_rows_imported_total",
			Help: "Upload rows read by result",
		}, []string{"result"}),
		Renaper: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "celiaquia_renaper_outcomes_total",
			Help: "RENAPER verification outcomes",
		}, []string{"outcome"}),
		Sintys: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "celiaquia_sintys_outcomes_total",
			Help: "SINTYS cross-check outcomes",
		}, []string{"resultado"}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "celiaquia_expediente_transitions_total",
			Help: "Expediente state transitions",
		}, []string{"from", "to"}),
		Cupo: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "celiaquia_cupo_decisions_total",
			Help: "Cupo decisions by estado",
		}, []string{"estado"}),
		Work: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "celiaquia_work_items_total",
			Help: "Work queue items processed by kind and status",
		}, []string{"kind", "status"}),
	}
}

// Handler serves this instance's registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RowsImported(valid int, erroneous int) {
	if m == nil {
		return
	}
	m.Rows.WithLabelValues("valid").Add(float64(valid))
	m.Rows.WithLabelValues("erroneous").Add(float64(erroneous))
}

func (m *Metrics) RenaperOutcome(outcome string) {
	if m != nil {
		m.Renaper.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) SintysOutcome(resultado string) {
	if m != nil {
		m.Sintys.WithLabelValues(resultado).Inc()
	}
}

func (m *Metrics) ExpedienteTransition(from string, to string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) CupoDecision(estado string) {
	if m != nil {
		m.Cupo.WithLabelValues(estado).Inc()
	}
}

func (m *Metrics) WorkProcessed(kind string, status string) {
	if m != nil {
		m.Work.WithLabelValues(kind, status).Inc()
	}
}
