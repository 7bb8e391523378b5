package services

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVAT(t *testing.T) {
	tests := []struct {
		name     string
		subtotal float64
		included bool
		want     float64
	}{
		{"included", 100, true, 15},
		{"excluded", 100, false, 0},
		{"zero included", 0, true, 0},
		{"labor lines", 1500, true, 225},
		{"parts lines", 800, true, 120},
		{"cents are not rounded", 10.01, true, 1.5015},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VAT(tt.subtotal, tt.included); got != tt.want {
				t.Errorf("VAT(%v, %v) = %v, want %v", tt.subtotal, tt.included, got, tt.want)
			}
		})
	}
}

func TestVATAt_CustomRate(t *testing.T) {
	assert.Equal(t, 7.5, VATAt(0.075, 100, true))
	assert.Equal(t, 0.0, VATAt(0.075, 100, false))
}

func TestReconcile_FullJob(t *testing.T) {
	summary := Reconcile(Streams{
		Labor:     StreamInput{Subtotal: 1500, VATIncluded: true},
		Parts:     StreamInput{Subtotal: 800, VATIncluded: true},
		Outsource: StreamInput{Subtotal: 500, VATIncluded: false},
	}, "50")

	assert.Equal(t, CostSummary{
		LaborSubtotal:     1500,
		PartsSubtotal:     800,
		OutsourceSubtotal: 500,
		LaborVAT:          225,
		SpareVAT:          120,
		OutsourceVAT:      0,
		AdditionalCost:    50,
		PreTaxTotal:       2800,
		TotalVAT:          345,
		GrandTotal:        3195,
	}, summary)
}

func TestReconcile_EmptyStreams(t *testing.T) {
	summary := Reconcile(Streams{}, 0)
	assert.Equal(t, CostSummary{}, summary)
	assert.Equal(t, 0.0, summary.GrandTotal)
}

func TestReconcile_AdditionalCostCoercion(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"nil", nil, 0},
		{"empty text", "", 0},
		{"garbage text", "fifty", 0},
		{"numeric text", "50", 50},
		{"padded text", " 12.5 ", 12.5},
		{"number", 75.25, 75.25},
		{"negative", -10.0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Reconcile(Streams{Labor: StreamInput{Subtotal: 100}}, tt.in)
			assert.Equal(t, tt.want, s.AdditionalCost)
			assert.InDelta(t, 100+tt.want, s.GrandTotal, 1e-9)
		})
	}
}

func TestReconcile_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	amount := func() float64 { return math.Round(rng.Float64()*1000000) / 100 }

	for i := 0; i < 500; i++ {
		l, p, o, a := amount(), amount(), amount(), amount()
		fl, fp, fo := rng.Intn(2) == 1, rng.Intn(2) == 1, rng.Intn(2) == 1

		s := Reconcile(Streams{
			Labor:     StreamInput{Subtotal: l, VATIncluded: fl},
			Parts:     StreamInput{Subtotal: p, VATIncluded: fp},
			Outsource: StreamInput{Subtotal: o, VATIncluded: fo},
		}, a)

		tax := func(v float64, on bool) float64 {
			if on {
				return 0.15 * v
			}
			return 0
		}
		want := l + p + o + tax(l, fl) + tax(p, fp) + tax(o, fo) + a

		require.InDelta(t, want, s.GrandTotal, 1e-9, "iteration %d", i)
		require.InDelta(t, l+p+o, s.PreTaxTotal, 1e-9)
		require.InDelta(t, s.LaborVAT+s.SpareVAT+s.OutsourceVAT, s.TotalVAT, 1e-9)
		require.InDelta(t, s.PreTaxTotal+s.TotalVAT+s.AdditionalCost, s.GrandTotal, 1e-9)

		for _, v := range []float64{
			s.LaborSubtotal, s.PartsSubtotal, s.OutsourceSubtotal,
			s.LaborVAT, s.SpareVAT, s.OutsourceVAT,
			s.AdditionalCost, s.PreTaxTotal, s.TotalVAT, s.GrandTotal,
		} {
			require.False(t, v < 0 || math.IsNaN(v) || math.IsInf(v, 0), "field out of range: %v", v)
		}
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	streams := Streams{
		Labor:     StreamInput{Subtotal: 1234.56, VATIncluded: true},
		Parts:     StreamInput{Subtotal: 78.9, VATIncluded: false},
		Outsource: StreamInput{Subtotal: 0.07, VATIncluded: true},
	}
	first := Reconcile(streams, "19.99")
	second := Reconcile(streams, "19.99")
	assert.Equal(t, first, second)
}

func TestCostSummary_Rounded(t *testing.T) {
	s := Reconcile(Streams{
		Labor: StreamInput{Subtotal: 10.01, VATIncluded: true},
		Parts: StreamInput{Subtotal: 10.01, VATIncluded: true},
	}, nil)

	// Summary fields stay exact; only Rounded and PayableTotal round.
	assert.Equal(t, 1.5015, s.LaborVAT)
	assert.Equal(t, 23.023, s.GrandTotal)

	r := s.Rounded()
	assert.Equal(t, 1.5, r.LaborVAT)
	assert.Equal(t, 3.0, r.TotalVAT)
	assert.Equal(t, 23.02, r.GrandTotal)
	assert.Equal(t, 23.02, s.PayableTotal())
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{1.005, 1.01},
		{2.675, 2.68},
		{3195, 3195},
		{0.125, 0.13},
		{99.994, 99.99},
	}
	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
