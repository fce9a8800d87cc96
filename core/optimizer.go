package core

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/production-optimizer/internal/logging"
	"github.com/signalsfoundry/production-optimizer/model"
)

const tracerName = "github.com/signalsfoundry/production-optimizer/core"

// Evaluation pairs one decision vector with the result of simulating it.
type Evaluation struct {
	Decisions model.DecisionVector
	Result    SimulationResult
}

// OptimizationReport is the full result table of a search plus the index of
// the most profitable row. The first row wins ties.
type OptimizationReport struct {
	Pipeline  string
	MaxCycles int
	Layout    model.DecisionLayout
	Results   []Evaluation
	BestIndex int
}

// Best returns the most profitable evaluation.
func (r *OptimizationReport) Best() Evaluation {
	return r.Results[r.BestIndex]
}

// MetricsRecorder receives search progress. Implementations must be safe for
// concurrent use; ObserveEvaluation is called from worker goroutines.
type MetricsRecorder interface {
	SetSearchSpace(vectors int)
	ObserveEvaluation(starved bool, profit float64, elapsed time.Duration)
	SetBestProfit(profit float64)
}

// Optimizer scores decision vectors against a pipeline.
type Optimizer struct {
	workers int
	log     logging.Logger
	metrics MetricsRecorder
	tracer  trace.Tracer
}

// OptimizerOption configures an Optimizer.
type OptimizerOption func(*Optimizer)

// WithWorkers bounds the number of concurrent simulations. Values below 1
// select runtime.GOMAXPROCS(0).
func WithWorkers(n int) OptimizerOption {
	return func(o *Optimizer) {
		o.workers = n
	}
}

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) OptimizerOption {
	return func(o *Optimizer) {
		o.log = l
	}
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) OptimizerOption {
	return func(o *Optimizer) {
		o.metrics = m
	}
}

// NewOptimizer returns an optimizer with the given options applied.
func NewOptimizer(opts ...OptimizerOption) *Optimizer {
	o := &Optimizer{}
	for _, opt := range opts {
		opt(o)
	}
	if o.workers < 1 {
		o.workers = runtime.GOMAXPROCS(0)
	}
	if o.log == nil {
		o.log = logging.Noop()
	}
	o.tracer = otel.Tracer(tracerName)
	return o
}

// Optimize exhaustively searches p's decision space with default options.
func Optimize(p model.Pipeline, maxCycles int) (*OptimizationReport, error) {
	return NewOptimizer().Search(context.Background(), p, maxCycles)
}

// Search simulates every one of the 2^D decision vectors of p, in canonical
// order, and returns the full table with the best vector marked. Invalid
// configuration aborts the search before any simulation runs.
func (o *Optimizer) Search(ctx context.Context, p model.Pipeline, maxCycles int) (*OptimizationReport, error) {
	if err := validateSearch(p, maxCycles); err != nil {
		return nil, err
	}
	bits := p.DecisionBits()
	n := int(model.SpaceSize(bits))
	return o.run(ctx, "core.Search", p, maxCycles, n, func(i int) model.DecisionVector {
		return model.VectorAt(uint64(i), bits)
	})
}

// Evaluate simulates only the given vectors, in the given order. Every vector
// is length-checked before any simulation runs.
func (o *Optimizer) Evaluate(ctx context.Context, p model.Pipeline, vectors []model.DecisionVector, maxCycles int) (*OptimizationReport, error) {
	if err := validateSearch(p, maxCycles); err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, &model.ConfigurationError{Field: "decisions", Reason: "no decision vectors to evaluate"}
	}
	for i, v := range vectors {
		if err := p.ValidateVector(v); err != nil {
			return nil, fmt.Errorf("vector %d: %w", i, err)
		}
	}
	return o.run(ctx, "core.Evaluate", p, maxCycles, len(vectors), func(i int) model.DecisionVector {
		return append(model.DecisionVector(nil), vectors[i]...)
	})
}

func validateSearch(p model.Pipeline, maxCycles int) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if maxCycles < 0 {
		return &model.ConfigurationError{Field: "max_cycles", Reason: fmt.Sprintf("must be >= 0, got %d", maxCycles)}
	}
	return nil
}

func (o *Optimizer) run(ctx context.Context, spanName string, p model.Pipeline, maxCycles, n int, vectorAt func(int) model.DecisionVector) (*OptimizationReport, error) {
	ctx, log := logging.WithRunLogger(ctx, o.log)
	ctx, span := o.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("pipeline.name", p.Name),
		attribute.Int("pipeline.decision_bits", p.DecisionBits()),
		attribute.Int("search.vectors", n),
		attribute.Int("search.max_cycles", maxCycles),
		attribute.Int("search.workers", o.workers),
		attribute.String("run_id", logging.RunIDFromContext(ctx)),
	))
	defer span.End()

	log.Info(ctx, "decision search started",
		logging.String("pipeline", p.Name),
		logging.Int("vectors", n),
		logging.Int("max_cycles", maxCycles),
		logging.Int("workers", o.workers),
	)
	if o.metrics != nil {
		o.metrics.SetSearchSpace(n)
	}

	start := time.Now()
	results := make([]Evaluation, n)
	if err := o.fanOut(ctx, log, p, maxCycles, results, vectorAt); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error(ctx, "decision search failed", logging.Err(err))
		return nil, err
	}

	best := bestIndex(results)
	report := &OptimizationReport{
		Pipeline:  p.Name,
		MaxCycles: maxCycles,
		Layout:    p.Layout(),
		Results:   results,
		BestIndex: best,
	}

	bestEval := report.Best()
	if o.metrics != nil {
		o.metrics.SetBestProfit(bestEval.Result.Profit)
	}
	span.SetAttributes(
		attribute.Float64("search.best_profit", bestEval.Result.Profit),
		attribute.String("search.best_decisions", bestEval.Decisions.String()),
	)
	log.Info(ctx, "decision search finished",
		logging.String("best_decisions", bestEval.Decisions.String()),
		logging.Float("best_profit", bestEval.Result.Profit),
		logging.Float("best_revenue", bestEval.Result.Revenue),
		logging.Float("best_cost", bestEval.Result.Cost),
		logging.String("elapsed", time.Since(start).String()),
	)
	return report, nil
}

// fanOut evaluates results[i] for every i over a bounded worker pool. Each
// worker owns a contiguous range of slots, so no slot is written twice.
func (o *Optimizer) fanOut(ctx context.Context, log logging.Logger, p model.Pipeline, maxCycles int, results []Evaluation, vectorAt func(int) model.DecisionVector) error {
	n := len(results)
	chunk := n / (o.workers * 8)
	if chunk < 1 {
		chunk = 1
	}

	var g errgroup.Group
	g.SetLimit(o.workers)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				ev, err := o.evaluateOne(p, vectorAt(i), maxCycles)
				if err != nil {
					return fmt.Errorf("vector %d: %w", i, err)
				}
				results[i] = ev
			}
			log.Debug(ctx, "evaluated decision range", logging.Int("from", lo), logging.Int("to", hi))
			return nil
		})
	}
	return g.Wait()
}

func (o *Optimizer) evaluateOne(p model.Pipeline, v model.DecisionVector, maxCycles int) (Evaluation, error) {
	start := time.Now()
	snap, err := p.Apply(v)
	if err != nil {
		return Evaluation{}, err
	}
	se, err := NewSimulationEngine(snap)
	if err != nil {
		return Evaluation{}, err
	}
	res, err := se.Run(maxCycles)
	if err != nil {
		return Evaluation{}, err
	}
	if o.metrics != nil {
		o.metrics.ObserveEvaluation(res.Starved, res.Profit, time.Since(start))
	}
	return Evaluation{Decisions: v, Result: res}, nil
}

// bestIndex scans in table order and only moves on a strictly greater
// profit, so the first of several equal maxima wins.
func bestIndex(results []Evaluation) int {
	best := 0
	for i := 1; i < len(results); i++ {
		if results[i].Result.Profit > results[best].Result.Profit {
			best = i
		}
	}
	return best
}
