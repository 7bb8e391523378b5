package services

import (
	"fmt"
	"strings"
)

// FormatAmount formats an amount with thousands separators and exactly two
// decimal places (e.g., 1,234,567.80). Negative amounts keep a leading "-".
func FormatAmount(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	raw := fmt.Sprintf("%.2f", Round2(amount))
	parts := strings.SplitN(raw, ".", 2)

	result := groupThousands(parts[0]) + "." + parts[1]
	if negative && result != "0.00" {
		result = "-" + result
	}
	return result
}

// groupThousands inserts a comma before every group of three digits,
// counting from the right.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	var b strings.Builder
	head := n % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// SummaryDisplay holds the display strings of a cost summary.
type SummaryDisplay struct {
	LaborSubtotal     string `json:"laborSubtotal"`
	PartsSubtotal     string `json:"partsSubtotal"`
	OutsourceSubtotal string `json:"outsourceSubtotal"`
	LaborVAT          string `json:"laborVAT"`
	SpareVAT          string `json:"spareVAT"`
	OutsourceVAT      string `json:"outsourceVAT"`
	AdditionalCost    string `json:"additionalCost"`
	PreTaxTotal       string `json:"preTaxTotal"`
	TotalVAT          string `json:"totalVAT"`
	GrandTotal        string `json:"grandTotal"`
}

// Display renders every field of s with FormatAmount.
func (s CostSummary) Display() SummaryDisplay {
	return SummaryDisplay{
		LaborSubtotal:     FormatAmount(s.LaborSubtotal),
		PartsSubtotal:     FormatAmount(s.PartsSubtotal),
		OutsourceSubtotal: FormatAmount(s.OutsourceSubtotal),
		LaborVAT:          FormatAmount(s.LaborVAT),
		SpareVAT:          FormatAmount(s.SpareVAT),
		OutsourceVAT:      FormatAmount(s.OutsourceVAT),
		AdditionalCost:    FormatAmount(s.AdditionalCost),
		PreTaxTotal:       FormatAmount(s.PreTaxTotal),
		TotalVAT:          FormatAmount(s.TotalVAT),
		GrandTotal:        FormatAmount(s.GrandTotal),
	}
}
