package core

import (
	"errors"
	"math"
	"testing"

	"github.com/signalsfoundry/production-optimizer/model"
)

func TestCompoundYield(t *testing.T) {
	tests := []struct {
		name  string
		parts []float64
		own   float64
		want  float64
	}{
		{"no parts", nil, 0.1, 0.9},
		{"pure parts", []float64{1, 1}, 0.2, 0.8},
		{"two parts", []float64{0.9, 0.5}, 0.0, 0.45},
		{"fully defective", []float64{0.9}, 1.0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CompoundYield(tt.parts, tt.own)
			if err != nil {
				t.Fatalf("CompoundYield error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("CompoundYield(%v, %v) = %v, want %v", tt.parts, tt.own, got, tt.want)
			}
		})
	}
}

func TestCompoundYieldRejectsOutOfRange(t *testing.T) {
	for _, tc := range []struct {
		parts []float64
		own   float64
	}{
		{[]float64{1.5}, 0.1},
		{[]float64{0.5}, -0.1},
		{nil, 2},
		{[]float64{math.NaN()}, 0},
	} {
		if _, err := CompoundYield(tc.parts, tc.own); !errors.Is(err, model.ErrInvalidConfiguration) {
			t.Fatalf("CompoundYield(%v, %v) error = %v, want ErrInvalidConfiguration", tc.parts, tc.own, err)
		}
	}
}

func TestPurityEmptyBatchIsZero(t *testing.T) {
	if got := Purity(0, 0); got != 0 {
		t.Fatalf("Purity(0, 0) = %v, want 0", got)
	}
	if got := (Lot{Qualified: 8, ActualQualified: 6}).Purity(); got != 0.75 {
		t.Fatalf("Lot.Purity() = %v, want 0.75", got)
	}
}

func TestFloorUnitsTruncates(t *testing.T) {
	for in, want := range map[float64]int{0: 0, 0.99: 0, 57.6: 57, 729.0000000000001: 729, -3: 0} {
		if got := floorUnits(in); got != want {
			t.Fatalf("floorUnits(%v) = %d, want %d", in, got, want)
		}
	}
}
