package core

import (
	"math"
	"math/rand/v2"

	"github.com/signalsfoundry/production-optimizer/model"
)

// DefectRateSource supplies the defect rate the simulator should use for an
// entity whose true rate is trueRate.
type DefectRateSource interface {
	EstimateDefectRate(populationSize, sampleSize int, trueRate float64) float64
}

// PassThrough returns the true rate unchanged.
type PassThrough struct{}

func (PassThrough) EstimateDefectRate(_, _ int, trueRate float64) float64 { return trueRate }

// z95 is the two-sided 95% standard normal quantile.
const z95 = 1.96

// Estimate is a sampled defect rate with its normal-approximation 95%
// confidence interval, clamped to [0,1].
type Estimate struct {
	Rate  float64
	Lower float64
	Upper float64
}

// SamplingEstimator draws Bernoulli samples at the true rate and reports the
// empirical defect fraction. It is not safe for concurrent use; give each
// goroutine its own estimator.
type SamplingEstimator struct {
	rng *rand.Rand
}

// NewSamplingEstimator returns an estimator drawing from rng.
func NewSamplingEstimator(rng *rand.Rand) *SamplingEstimator {
	return &SamplingEstimator{rng: rng}
}

// NewSeededSamplingEstimator returns an estimator with a PCG generator seeded
// from seed, so runs are reproducible.
func NewSeededSamplingEstimator(seed uint64) *SamplingEstimator {
	return NewSamplingEstimator(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// Estimate samples min(sampleSize, populationSize) units. A zero-sized sample
// estimates 0 with a degenerate interval.
func (e *SamplingEstimator) Estimate(populationSize, sampleSize int, trueRate float64) Estimate {
	n := sampleSize
	if populationSize >= 0 && n > populationSize {
		n = populationSize
	}
	if n <= 0 {
		return Estimate{}
	}
	defects := 0
	for i := 0; i < n; i++ {
		if e.rng.Float64() < trueRate {
			defects++
		}
	}
	rate := float64(defects) / float64(n)
	se := math.Sqrt(rate * (1 - rate) / float64(n))
	return Estimate{
		Rate:  rate,
		Lower: math.Max(0, rate-z95*se),
		Upper: math.Min(1, rate+z95*se),
	}
}

func (e *SamplingEstimator) EstimateDefectRate(populationSize, sampleSize int, trueRate float64) float64 {
	return e.Estimate(populationSize, sampleSize, trueRate).Rate
}

// EstimatePipelineRates returns a copy of p with every defect rate replaced by
// src's estimate. Components are sampled from the initial purchase; assembly
// stages use the same population size.
func EstimatePipelineRates(p model.Pipeline, src DefectRateSource, sampleSize int) (model.Pipeline, error) {
	if err := p.Validate(); err != nil {
		return model.Pipeline{}, err
	}
	if src == nil {
		src = PassThrough{}
	}
	out := p.Clone()
	pop := p.InitialQuantity
	for i := range out.Components {
		out.Components[i].DefectRate = src.EstimateDefectRate(pop, sampleSize, out.Components[i].DefectRate)
	}
	for i := range out.SemiProducts {
		out.SemiProducts[i].DefectRate = src.EstimateDefectRate(pop, sampleSize, out.SemiProducts[i].DefectRate)
	}
	out.Final.DefectRate = src.EstimateDefectRate(pop, sampleSize, out.Final.DefectRate)

	if err := out.Validate(); err != nil {
		return model.Pipeline{}, err
	}
	return out, nil
}
