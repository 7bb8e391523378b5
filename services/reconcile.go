// Package services provides the job cost-reconciliation engine and the
// record-backed collaborators around it.
package services

import (
	"github.com/shopspring/decimal"
)

// VATRate is the fixed VAT policy rate applied per stream when included.
const VATRate = 0.15

// StreamInput is the pre-tax subtotal of a stream and whether VAT applies.
type StreamInput struct {
	Subtotal    float64
	VATIncluded bool
}

// Streams groups the three stream inputs of a job.
type Streams struct {
	Labor     StreamInput
	Parts     StreamInput
	Outsource StreamInput
}

// CostSummary is the reconciled cost breakdown of a job. Values are kept
// unrounded; use Rounded for display or payment.
type CostSummary struct {
	LaborSubtotal     float64 `json:"laborSubtotal"`
	PartsSubtotal     float64 `json:"partsSubtotal"`
	OutsourceSubtotal float64 `json:"outsourceSubtotal"`
	LaborVAT          float64 `json:"laborVAT"`
	SpareVAT          float64 `json:"spareVAT"`
	OutsourceVAT      float64 `json:"outsourceVAT"`
	AdditionalCost    float64 `json:"additionalCost"`
	PreTaxTotal       float64 `json:"preTaxTotal"`
	TotalVAT          float64 `json:"totalVAT"`
	GrandTotal        float64 `json:"grandTotal"`
}

// VAT returns the tax owed on subtotal at VATRate, or 0 when not included.
// The result is exact, not rounded to cents: round for display or payment
// through Round2 or CostSummary.Rounded.
func VAT(subtotal float64, included bool) float64 {
	return VATAt(VATRate, subtotal, included)
}

// VATAt is VAT with an explicit rate.
func VATAt(rate, subtotal float64, included bool) float64 {
	return vatDecimal(decimal.NewFromFloat(rate), decimal.NewFromFloat(subtotal), included).InexactFloat64()
}

func vatDecimal(rate, subtotal decimal.Decimal, included bool) decimal.Decimal {
	if !included {
		return decimal.Zero
	}
	return subtotal.Mul(rate)
}

// Reconcile combines the three streams and the additional cost into a
// CostSummary at VATRate. additionalCost may be a number or user input text;
// anything unparseable counts as 0.
func Reconcile(streams Streams, additionalCost any) CostSummary {
	return ReconcileAt(VATRate, streams, additionalCost)
}

// ReconcileAt is Reconcile with an explicit VAT rate. It does no I/O and
// returns the same summary for the same inputs.
func ReconcileAt(rate float64, streams Streams, additionalCost any) CostSummary {
	r := decimal.NewFromFloat(rate)

	labor := decimal.NewFromFloat(toNumber(streams.Labor.Subtotal))
	parts := decimal.NewFromFloat(toNumber(streams.Parts.Subtotal))
	outsource := decimal.NewFromFloat(toNumber(streams.Outsource.Subtotal))
	additional := decimal.NewFromFloat(toNumber(additionalCost))

	laborVAT := vatDecimal(r, labor, streams.Labor.VATIncluded)
	spareVAT := vatDecimal(r, parts, streams.Parts.VATIncluded)
	outsourceVAT := vatDecimal(r, outsource, streams.Outsource.VATIncluded)

	preTax := labor.Add(parts).Add(outsource)
	totalVAT := laborVAT.Add(spareVAT).Add(outsourceVAT)
	grand := preTax.Add(totalVAT).Add(additional)

	return CostSummary{
		LaborSubtotal:     labor.InexactFloat64(),
		PartsSubtotal:     parts.InexactFloat64(),
		OutsourceSubtotal: outsource.InexactFloat64(),
		LaborVAT:          laborVAT.InexactFloat64(),
		SpareVAT:          spareVAT.InexactFloat64(),
		OutsourceVAT:      outsourceVAT.InexactFloat64(),
		AdditionalCost:    additional.InexactFloat64(),
		PreTaxTotal:       preTax.InexactFloat64(),
		TotalVAT:          totalVAT.InexactFloat64(),
		GrandTotal:        grand.InexactFloat64(),
	}
}

// Rounded returns a copy with every field rounded to 2 decimal places.
// GrandTotal is rounded from its exact value, not summed from rounded parts.
func (s CostSummary) Rounded() CostSummary {
	return CostSummary{
		LaborSubtotal:     Round2(s.LaborSubtotal),
		PartsSubtotal:     Round2(s.PartsSubtotal),
		OutsourceSubtotal: Round2(s.OutsourceSubtotal),
		LaborVAT:          Round2(s.LaborVAT),
		SpareVAT:          Round2(s.SpareVAT),
		OutsourceVAT:      Round2(s.OutsourceVAT),
		AdditionalCost:    Round2(s.AdditionalCost),
		PreTaxTotal:       Round2(s.PreTaxTotal),
		TotalVAT:          Round2(s.TotalVAT),
		GrandTotal:        Round2(s.GrandTotal),
	}
}

// PayableTotal is the grand total as charged: rounded to 2 decimal places.
func (s CostSummary) PayableTotal() float64 {
	return Round2(s.GrandTotal)
}

// Round2 rounds half away from zero to 2 decimal places.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
