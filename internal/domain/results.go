package domain

import (
	"math"
	"time"
)

// DefaultMinSampleSize is the engine-wide floor below which a z-test result
// is reported as inconclusive rather than significant.
const DefaultMinSampleSize = 100

// SignificanceResult is the outcome of a two-proportion z-test of a variant
// against the control.
type SignificanceResult struct {
	ZScore        float64
	PValue        float64
	Confidence    float64
	IsSignificant bool
}

// BayesianEstimate is a closed-form Beta-Binomial posterior summary with a
// flat Beta(1,1) prior. This is deliberately an approximation, not a
// sampled posterior; see ProbabilityBest on VariantResult.
type BayesianEstimate struct {
	ExpectedRate float64
	Variance     float64
	CredibleLow  float64
	CredibleHigh float64
}

// VariantResult is the derived per-variant view of an experiment: counters,
// conversion rate, and both statistical estimates. It is computed at read
// time and never stored as a source of truth.
type VariantResult struct {
	VariantID      string
	IsControl      bool
	Participants   int64
	Conversions    float64
	ConversionRate float64
	Confidence     float64
	IsSignificant  bool
	// Lift is the percent difference vs the control rate. Nil when the
	// control rate is zero or for the control itself.
	Lift            *float64
	Bayes           BayesianEstimate
	ProbabilityBest float64
}

// UnderperformingFlag is an advisory raised by the scheduler when a variant
// is significantly below the control. The engine never acts on it.
type UnderperformingFlag struct {
	ID           string
	ExperimentID string
	VariantID    string
	Confidence   float64
	Lift         float64
	ControlRate  float64
	VariantRate  float64
	RaisedAt     time.Time
}

// CalculateSignificance runs a two-tailed two-proportion z-test. Results
// below minSampleSize on either side, or with zero pooled variance, come
// back as confidence 0 and not significant: premature data is never called
// significant.
func CalculateSignificance(p1 float64, n1 int64, p2 float64, n2 int64, threshold float64, minSampleSize int64) SignificanceResult {
	if n1 < minSampleSize || n2 < minSampleSize {
		return SignificanceResult{}
	}

	fn1, fn2 := float64(n1), float64(n2)
	pooled := (p1*fn1 + p2*fn2) / (fn1 + fn2)
	se := math.Sqrt(pooled * (1 - pooled) * (1/fn1 + 1/fn2))
	if se == 0 {
		return SignificanceResult{}
	}

	z := math.Abs(p2-p1) / se
	pValue := 2 * (1 - NormalCDF(z))
	confidence := 1 - pValue

	return SignificanceResult{
		ZScore:        z,
		PValue:        pValue,
		Confidence:    confidence,
		IsSignificant: confidence >= threshold,
	}
}

// Lift returns the percent difference of a variant rate vs the control rate,
// or nil when the control rate is zero.
func Lift(controlRate, variantRate float64) *float64 {
	if controlRate == 0 {
		return nil
	}
	l := (variantRate - controlRate) / controlRate * 100
	return &l
}

// EstimatePosterior computes the Beta-Binomial posterior summary for a
// variant with the given counters, using a flat prior. With no data the
// expected rate is 0.5. The 95% credible interval is clamped to [0,1].
func EstimatePosterior(conversions float64, participants int64) BayesianEstimate {
	alpha := conversions + 1
	beta := (float64(participants) - conversions) + 1

	expected := alpha / (alpha + beta)
	variance := alpha * beta / ((alpha + beta) * (alpha + beta) * (alpha + beta + 1))
	margin := 1.96 * math.Sqrt(variance)

	return BayesianEstimate{
		ExpectedRate: expected,
		Variance:     variance,
		CredibleLow:  math.Max(0, expected-margin),
		CredibleHigh: math.Min(1, expected+margin),
	}
}

// NormalCDF approximates the standard normal CDF with the Zelen & Severo
// rational polynomial (Abramowitz & Stegun 26.2.17), accurate to about 7.5e-8.
func NormalCDF(x float64) float64 {
	if x < 0 {
		return 1 - NormalCDF(-x)
	}

	const (
		b0 = 0.2316419
		b1 = 0.319381530
		b2 = -0.356563782
		b3 = 1.781477937
		b4 = -1.821255978
		b5 = 1.330274429
	)

	t := 1 / (1 + b0*x)
	pdf := math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
	poly := t * (b1 + t*(b2+t*(b3+t*(b4+t*b5))))
	return 1 - pdf*poly
}
