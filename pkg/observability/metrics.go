package observability

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the dispatcher collectors.
type Metrics struct {
	gatherer prometheus.Gatherer

	events      *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	definitions *prometheus.CounterVec
	inFlight    prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "venueflow_stage_events_total",
				Help: "Stage events handled, by stage and result",
			},
			[]string{"stage", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "venueflow_stage_duration_seconds",
				Help:    "Duration of stage event handling",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "venueflow_stage_transitions_total",
				Help: "Stage state machine transitions",
			},
			[]string{"stage", "from", "to"},
		),
		definitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "venueflow_definitions_persisted_total",
				Help: "Workflow definitions persisted, by stage and level",
			},
			[]string{"stage", "child"},
		),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "venueflow_stage_events_in_flight",
			Help: "Stage events currently being handled",
		}),
	}
	reg.MustRegister(m.events, m.duration, m.transitions, m.definitions, m.inFlight)
	return m
}

// Hooks returns lifecycle hooks that record metrics and log each event.
// A nil logger disables logging.
func (m *Metrics) Hooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStageStart: func(ctx context.Context, e *domain.StageRunEvent) {
			m.inFlight.Inc()
			if logger != nil {
				logger.Debug("stage_start", "form", e.FormID, "stage", e.Stage, "event", e.EventID)
			}
		},
		OnStageFinish: func(ctx context.Context, e *domain.StageRunEvent) {
			m.inFlight.Dec()
			result := "success"
			if !e.Success {
				result = string(e.Kind)
			}
			m.events.WithLabelValues(string(e.Stage), result).Inc()
			m.duration.WithLabelValues(string(e.Stage)).Observe(e.Duration.Seconds())
			if e.Success && e.To != "" {
				m.transitions.WithLabelValues(string(e.Stage), string(e.From), string(e.To)).Inc()
			}
			if logger != nil {
				logger.Info("stage_finish",
					"form", e.FormID,
					"stage", e.Stage,
					"success", e.Success,
					"to", e.To,
					"duration", e.Duration,
				)
			}
		},
		OnDefinitionPersisted: func(ctx context.Context, e *domain.DefinitionEvent) {
			m.definitions.WithLabelValues(string(e.Stage), strconv.FormatBool(e.Child)).Inc()
		},
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Chain combines hooks so that each callback runs in order.
func Chain(all ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range all {
		h := h
		if h.OnStageStart != nil {
			prev := out.OnStageStart
			out.OnStageStart = func(ctx context.Context, e *domain.StageRunEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnStageStart(ctx, e)
			}
		}
		if h.OnStageFinish != nil {
			prev := out.OnStageFinish
			out.OnStageFinish = func(ctx context.Context, e *domain.StageRunEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnStageFinish(ctx, e)
			}
		}
		if h.OnDefinitionPersisted != nil {
			prev := out.OnDefinitionPersisted
			out.OnDefinitionPersisted = func(ctx context.Context, e *domain.DefinitionEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnDefinitionPersisted(ctx, e)
			}
		}
	}
	return out
}
