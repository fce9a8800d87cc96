package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
)

// ProductionCollector exposes per-cycle production metrics for a single
// simulated pipeline.
type ProductionCollector struct {
	gatherer prometheus.Gatherer

	CyclesTotal prometheus.Counter
	Units       *prometheus.CounterVec
	Revenue     prometheus.Gauge
	Cost        prometheus.Gauge
}

// NewProductionCollector registers production metrics against the provided
// registerer.
func NewProductionCollector(reg prometheus.Registerer) (*ProductionCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	cycles, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "production_cycles_total",
		Help: "Production cycles completed by the simulator.",
	}), "production_cycles_total")
	if err != nil {
		return nil, err
	}

	units, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "production_final_units_total",
		Help: "Final products by fate: assembled, sold, returned or reworked.",
	}, []string{"fate"}), "production_final_units_total")
	if err != nil {
		return nil, err
	}

	revenue, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "production_revenue",
		Help: "Cumulative revenue of the current run.",
	}), "production_revenue")
	if err != nil {
		return nil, err
	}
	cost, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "production_cost",
		Help: "Cumulative cost of the current run, including the initial purchase.",
	}), "production_cost")
	if err != nil {
		return nil, err
	}

	return &ProductionCollector{
		gatherer:    gatherer,
		CyclesTotal: cycles,
		Units:       units,
		Revenue:     revenue,
		Cost:        cost,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *ProductionCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *ProductionCollector) Handler() http.Handler {
	return handlerFor(c.Gatherer())
}

// ObserveCycle records one completed cycle. revenue and cost are the running
// totals after the cycle.
func (c *ProductionCollector) ObserveCycle(assembled, sold, returned, reworked int, revenue, cost float64) {
	if c == nil {
		return
	}
	if c.CyclesTotal != nil {
		c.CyclesTotal.Inc()
	}
	if c.Units != nil {
		c.Units.WithLabelValues("assembled").Add(float64(assembled))
		c.Units.WithLabelValues("sold").Add(float64(sold))
		c.Units.WithLabelValues("returned").Add(float64(returned))
		c.Units.WithLabelValues("reworked").Add(float64(reworked))
	}
	if c.Revenue != nil {
		c.Revenue.Set(revenue)
	}
	if c.Cost != nil {
		c.Cost.Set(cost)
	}
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
