package metrics

import "lending-regime-advisor/internal/model"

type Counter interface {
	Inc()
}

type Gauge interface {
	Set(float64)
}

type Metrics struct {
	Evaluations       Counter
	FetchFailed       Counter
	SchemaRejected    Counter
	AlertsFailed      Counter
	Conservative      Counter
	Activity          Counter
	Tie               Counter
	Confidence        Gauge
	ConservativeScore Gauge
	ActivityScore     Gauge
}

// ObserveRecommendation records one successful evaluation.
func (m *Metrics) ObserveRecommendation(rec model.Recommendation) {
	m.Evaluations.Inc()
	switch rec.Suggestion {
	case model.SuggestionConservative:
		m.Conservative.Inc()
	case model.SuggestionActivity:
		m.Activity.Inc()
	default:
		m.Tie.Inc()
	}
	m.Confidence.Set(rec.Confidence)
	m.ConservativeScore.Set(rec.Scores.Conservative)
	m.ActivityScore.Set(rec.Scores.Activity)
}

type noop struct{}

func (noop) Inc() {}

func (noop) Set(float64) {}

func NewNoop() *Metrics {
	n := noop{}
	return &Metrics{
		Evaluations:       n,
		FetchFailed:       n,
		SchemaRejected:    n,
		AlertsFailed:      n,
		Conservative:      n,
		Activity:          n,
		Tie:               n,
		Confidence:        n,
		ConservativeScore: n,
		ActivityScore:     n,
	}
}
