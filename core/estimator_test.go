package core

import (
	"errors"
	"math"
	"testing"

	"github.com/signalsfoundry/production-optimizer/model"
)

func TestSamplingEstimatorIsReproducible(t *testing.T) {
	a := NewSeededSamplingEstimator(42).Estimate(1000, 500, 0.1)
	b := NewSeededSamplingEstimator(42).Estimate(1000, 500, 0.1)
	if a != b {
		t.Fatalf("same seed gave %+v and %+v", a, b)
	}
}

func TestSamplingEstimatorBounds(t *testing.T) {
	e := NewSeededSamplingEstimator(7)
	for _, rate := range []float64{0, 0.05, 0.1, 0.5, 1} {
		est := e.Estimate(10000, 2000, rate)
		if est.Rate < 0 || est.Rate > 1 {
			t.Fatalf("rate %v: estimate %v outside [0,1]", rate, est.Rate)
		}
		if est.Lower > est.Rate || est.Upper < est.Rate || est.Lower < 0 || est.Upper > 1 {
			t.Fatalf("rate %v: interval [%v, %v] does not bracket %v", rate, est.Lower, est.Upper, est.Rate)
		}
		// 2000 draws put the estimate well within 0.05 of the truth.
		if math.Abs(est.Rate-rate) > 0.05 {
			t.Fatalf("rate %v: estimate %v too far off", rate, est.Rate)
		}
	}
}

func TestSamplingEstimatorDegenerateSamples(t *testing.T) {
	e := NewSeededSamplingEstimator(1)
	if got := e.Estimate(100, 0, 0.3); got != (Estimate{}) {
		t.Fatalf("empty sample = %+v, want zero", got)
	}
	if got := e.Estimate(0, 50, 0.3); got != (Estimate{}) {
		t.Fatalf("empty population = %+v, want zero", got)
	}
	// Certain outcomes collapse the interval.
	if got := e.Estimate(100, 1000, 1); got.Rate != 1 || got.Lower != 1 || got.Upper != 1 {
		t.Fatalf("certain defect = %+v, want [1, 1]", got)
	}
}

type fixedRate float64

func (f fixedRate) EstimateDefectRate(_, _ int, _ float64) float64 { return float64(f) }

func TestEstimatePipelineRatesReplacesEveryRate(t *testing.T) {
	p := oneSemiPipeline()
	out, err := EstimatePipelineRates(p, fixedRate(0.25), 50)
	if err != nil {
		t.Fatalf("EstimatePipelineRates: %v", err)
	}
	for _, c := range out.Components {
		if c.DefectRate != 0.25 {
			t.Fatalf("component %s rate = %v, want 0.25", c.ID, c.DefectRate)
		}
	}
	if out.SemiProducts[0].DefectRate != 0.25 || out.Final.DefectRate != 0.25 {
		t.Fatalf("stage rates not replaced: %+v %+v", out.SemiProducts[0], out.Final)
	}
	if p.Components[0].DefectRate != 0.1 {
		t.Fatalf("input pipeline mutated")
	}
}

func TestEstimatePipelineRatesPassThrough(t *testing.T) {
	p := threeSemiPipeline()
	out, err := EstimatePipelineRates(p, nil, 100)
	if err != nil {
		t.Fatalf("EstimatePipelineRates: %v", err)
	}
	a, _ := Simulate(p, 3)
	b, _ := Simulate(out, 3)
	if a != b {
		t.Fatalf("pass-through changed the result: %+v vs %+v", a, b)
	}
}

func TestEstimatePipelineRatesRejectsBadSource(t *testing.T) {
	_, err := EstimatePipelineRates(oneSemiPipeline(), fixedRate(1.5), 10)
	if !errors.Is(err, model.ErrInvalidConfiguration) {
		t.Fatalf("error = %v, want ErrInvalidConfiguration", err)
	}
}
