package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for evaluated decision vectors.
const (
	OutcomeCompleted = "completed"
	OutcomeStarved   = "starved"
)

// SearchCollector bundles Prometheus metrics for decision searches. It
// satisfies core.MetricsRecorder and is safe for concurrent use.
type SearchCollector struct {
	gatherer prometheus.Gatherer

	Evaluations         *prometheus.CounterVec
	EvaluationDurations *prometheus.HistogramVec
	SearchSpace         prometheus.Gauge
	BestProfit          prometheus.Gauge
	LastProfit          prometheus.Gauge
}

// NewSearchCollector registers search metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSearchCollector(reg prometheus.Registerer) (*SearchCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	evaluations, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "optimizer_evaluations_total",
		Help: "Decision vectors simulated, labeled by whether the run starved.",
	}, []string{"outcome"}), "optimizer_evaluations_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "optimizer_evaluation_duration_seconds",
		Help:    "Wall time of one decision vector simulation.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}, []string{"outcome"}), "optimizer_evaluation_duration_seconds")
	if err != nil {
		return nil, err
	}

	space, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "optimizer_search_space_vectors",
		Help: "Number of decision vectors in the current search.",
	}), "optimizer_search_space_vectors")
	if err != nil {
		return nil, err
	}
	best, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "optimizer_best_profit",
		Help: "Profit of the best decision vector of the last finished search.",
	}), "optimizer_best_profit")
	if err != nil {
		return nil, err
	}
	last, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "optimizer_last_evaluation_profit",
		Help: "Profit of the most recently simulated decision vector.",
	}), "optimizer_last_evaluation_profit")
	if err != nil {
		return nil, err
	}

	return &SearchCollector{
		gatherer:            gatherer,
		Evaluations:         evaluations,
		EvaluationDurations: durations,
		SearchSpace:         space,
		BestProfit:          best,
		LastProfit:          last,
	}, nil
}

// SetSearchSpace records the number of vectors about to be simulated.
func (c *SearchCollector) SetSearchSpace(vectors int) {
	if c == nil || c.SearchSpace == nil {
		return
	}
	c.SearchSpace.Set(float64(vectors))
}

// ObserveEvaluation counts one simulated vector.
func (c *SearchCollector) ObserveEvaluation(starved bool, profit float64, elapsed time.Duration) {
	if c == nil {
		return
	}
	outcome := OutcomeCompleted
	if starved {
		outcome = OutcomeStarved
	}
	if c.Evaluations != nil {
		c.Evaluations.WithLabelValues(outcome).Inc()
	}
	if c.EvaluationDurations != nil {
		c.EvaluationDurations.WithLabelValues(outcome).Observe(elapsed.Seconds())
	}
	if c.LastProfit != nil {
		c.LastProfit.Set(profit)
	}
}

// SetBestProfit records the winning profit of a finished search.
func (c *SearchCollector) SetBestProfit(profit float64) {
	if c == nil || c.BestProfit == nil {
		return
	}
	c.BestProfit.Set(profit)
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SearchCollector) Handler() http.Handler {
	return handlerFor(c.gatherer)
}

func handlerFor(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
