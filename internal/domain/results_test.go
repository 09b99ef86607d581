package domain

import (
	"math"
	"testing"
)

func TestCalculateSignificance(t *testing.T) {
	tests := []struct {
		name              string
		p1                float64
		n1                int64
		p2                float64
		n2                int64
		wantSignificant   bool
		wantConfidenceMin float64
		wantConfidenceMax float64
	}{
		{
			name: "known scenario: 10% vs 15% at n=1000",
			// pooled p=0.125, se≈0.01048, z≈4.77
			p1: 0.10, n1: 1000,
			p2: 0.15, n2: 1000,
			wantSignificant:   true,
			wantConfidenceMin: 0.999,
			wantConfidenceMax: 1.0,
		},
		{
			name: "below sample floor on both sides",
			p1:   0.10, n1: 50,
			p2: 0.90, n2: 50,
			wantSignificant:   false,
			wantConfidenceMin: 0,
			wantConfidenceMax: 0,
		},
		{
			name: "below sample floor on one side",
			p1:   0.10, n1: 1000,
			p2: 0.90, n2: 99,
			wantSignificant:   false,
			wantConfidenceMin: 0,
			wantConfidenceMax: 0,
		},
		{
			name: "zero variance: both rates zero",
			p1:   0, n1: 1000,
			p2: 0, n2: 1000,
			wantSignificant:   false,
			wantConfidenceMin: 0,
			wantConfidenceMax: 0,
		},
		{
			name: "zero variance: both rates one",
			p1:   1, n1: 1000,
			p2: 1, n2: 1000,
			wantSignificant:   false,
			wantConfidenceMin: 0,
			wantConfidenceMax: 0,
		},
		{
			name: "small difference is not significant",
			p1:   0.100, n1: 500,
			p2: 0.102, n2: 500,
			wantSignificant:   false,
			wantConfidenceMin: 0,
			wantConfidenceMax: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateSignificance(tt.p1, tt.n1, tt.p2, tt.n2, DefaultSignificanceThreshold, DefaultMinSampleSize)
			if got.IsSignificant != tt.wantSignificant {
				t.Errorf("IsSignificant = %v, want %v", got.IsSignificant, tt.wantSignificant)
			}
			if got.Confidence < tt.wantConfidenceMin || got.Confidence > tt.wantConfidenceMax {
				t.Errorf("Confidence = %g, want in [%g, %g]", got.Confidence, tt.wantConfidenceMin, tt.wantConfidenceMax)
			}
		})
	}
}

func TestCalculateSignificance_KnownZScore(t *testing.T) {
	got := CalculateSignificance(0.10, 1000, 0.15, 1000, DefaultSignificanceThreshold, DefaultMinSampleSize)

	// se = sqrt(0.125*0.875*(1/1000+1/1000)) ≈ 0.010458
	if math.Abs(got.ZScore-4.78) > 0.05 {
		t.Errorf("ZScore = %g, want ≈4.78", got.ZScore)
	}
	if got.PValue > 0.001 {
		t.Errorf("PValue = %g, want < 0.001", got.PValue)
	}
}

func TestLift(t *testing.T) {
	lift := Lift(0.10, 0.15)
	if lift == nil {
		t.Fatal("Lift(0.10, 0.15) = nil, want 50.0")
	}
	if math.Abs(*lift-50.0) > 1e-9 {
		t.Errorf("Lift(0.10, 0.15) = %g, want 50.0", *lift)
	}

	if negative := Lift(0.10, 0.05); negative == nil || math.Abs(*negative+50.0) > 1e-9 {
		t.Errorf("Lift(0.10, 0.05) = %v, want -50.0", negative)
	}

	if undefined := Lift(0, 0.15); undefined != nil {
		t.Errorf("Lift(0, 0.15) = %v, want nil", *undefined)
	}
}

func TestEstimatePosterior(t *testing.T) {
	tests := []struct {
		name         string
		conversions  float64
		participants int64
		wantRate     float64
	}{
		{
			name:        "no data: flat prior",
			conversions: 0, participants: 0,
			wantRate: 0.5, // Beta(1,1) mean
		},
		{
			name:        "all converted",
			conversions: 10, participants: 10,
			wantRate: 11.0 / 12.0, // Beta(11,1) mean
		},
		{
			name:        "half converted",
			conversions: 50, participants: 100,
			wantRate: 51.0 / 102.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimatePosterior(tt.conversions, tt.participants)
			if math.Abs(got.ExpectedRate-tt.wantRate) > 1e-9 {
				t.Errorf("ExpectedRate = %g, want %g", got.ExpectedRate, tt.wantRate)
			}
			if got.CredibleLow < 0 || got.CredibleHigh > 1 {
				t.Errorf("credible interval [%g, %g] not clamped to [0,1]", got.CredibleLow, got.CredibleHigh)
			}
			if got.CredibleLow > got.ExpectedRate || got.CredibleHigh < got.ExpectedRate {
				t.Errorf("credible interval [%g, %g] does not contain expected rate %g", got.CredibleLow, got.CredibleHigh, got.ExpectedRate)
			}
		})
	}
}

func TestNormalCDF(t *testing.T) {
	// Reference values from standard normal tables.
	tests := []struct {
		x    float64
		want float64
	}{
		{0, 0.5},
		{1, 0.8413447461},
		{-1, 0.1586552539},
		{1.96, 0.9750021049},
		{2.5758, 0.9950001156},
		{-3, 0.0013498980},
		{4.77, 0.9999990800},
	}

	for _, tt := range tests {
		if got := NormalCDF(tt.x); math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("NormalCDF(%g) = %.10f, want %.10f", tt.x, got, tt.want)
		}
	}
}
