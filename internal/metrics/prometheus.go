package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "lending_regime_advisor"

type Prometheus struct {
	Metrics *Metrics

	registry          *prometheus.Registry
	evaluations       prometheus.Counter
	fetchFailed       prometheus.Counter
	schemaRejected    prometheus.Counter
	alertsFailed      prometheus.Counter
	suggestions       *prometheus.CounterVec
	confidence        prometheus.Gauge
	conservativeScore prometheus.Gauge
	activityScore     prometheus.Gauge
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	evaluations := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "evaluations_total",
		Help:      "Total number of completed snapshot evaluations.",
	})
	fetchFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "fetch_failed_total",
		Help:      "Total number of snapshot fetch failures.",
	})
	schemaRejected := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "schema_rejected_total",
		Help:      "Total number of snapshots rejected for schema errors.",
	})
	alertsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "alerts_failed_total",
		Help:      "Total number of alert delivery failures.",
	})
	suggestions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "suggestions_total",
		Help:      "Total number of suggestions by outcome.",
	}, []string{"suggestion"})
	confidence := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      "confidence",
		Help:      "Confidence of the latest suggestion.",
	})
	conservativeScore := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      "conservative_score",
		Help:      "Latest conservative protocol score.",
	})
	activityScore := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      "activity_score",
		Help:      "Latest capital-efficient protocol score.",
	})

	registry.MustRegister(evaluations, fetchFailed, schemaRejected, alertsFailed, suggestions, confidence, conservativeScore, activityScore)

	m := &Metrics{
		Evaluations:       evaluations,
		FetchFailed:       fetchFailed,
		SchemaRejected:    schemaRejected,
		AlertsFailed:      alertsFailed,
		Conservative:      suggestions.WithLabelValues("CONSERVATIVE"),
		Activity:          suggestions.WithLabelValues("ACTIVITY"),
		Tie:               suggestions.WithLabelValues("TIE"),
		Confidence:        confidence,
		ConservativeScore: conservativeScore,
		ActivityScore:     activityScore,
	}

	return &Prometheus{
		Metrics:           m,
		registry:          registry,
		evaluations:       evaluations,
		fetchFailed:       fetchFailed,
		schemaRejected:    schemaRejected,
		alertsFailed:      alertsFailed,
		suggestions:       suggestions,
		confidence:        confidence,
		conservativeScore: conservativeScore,
		activityScore:     activityScore,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
