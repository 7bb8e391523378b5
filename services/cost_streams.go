package services

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Stream identifies one of the three independent cost categories of a job.
type Stream string

const (
	StreamLabor     Stream = "labor"
	StreamParts     Stream = "parts"
	StreamOutsource Stream = "outsource"
)

// Value fields per stream. The outsource detail field is named after a
// quantity but carries a monetary amount.
const (
	LaborValueField       = "totalcost"
	PartsValueField       = "totalprice"
	OutsourceValueField   = "requestquantity"
	OutsourceDetailsField = "outsourcedetails"
)

// ValueField returns the line field that holds the amount for the stream.
func (s Stream) ValueField() string {
	switch s {
	case StreamLabor:
		return LaborValueField
	case StreamParts:
		return PartsValueField
	case StreamOutsource:
		return OutsourceValueField
	default:
		return ""
	}
}

// OutsourceGroup is one outsourced-service submission for a job. Its details
// are normalized once, when the group is built from the raw record value.
type OutsourceGroup struct {
	ID        string
	Details   []Line
	Malformed bool
}

// NewOutsourceGroup resolves the raw outsourcedetails value (a native list or
// a JSON-encoded string) into a group with a flat list of lines.
func NewOutsourceGroup(id string, rawDetails any) OutsourceGroup {
	lines, ok := normalizeLines(rawDetails)
	return OutsourceGroup{ID: id, Details: lines, Malformed: !ok}
}

// toNumber coerces a line value to a non-negative finite amount. Anything
// that does not parse as a number, and negative or non-finite numbers,
// coerce to 0.
func toNumber(v any) float64 {
	switch t := v.(type) {
	case nil, bool:
		return 0
	case string:
		v = strings.TrimSpace(t)
	}

	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// ToNumber is the exported form of the line value coercion, used for
// user-entered amounts such as the additional cost.
func ToNumber(v any) float64 {
	return toNumber(v)
}

// Subtotal sums the coerced value of field over all lines. The sum is exact
// in decimal, so the result does not depend on the order of the lines.
func Subtotal(lines []Line, field string) float64 {
	return sumLines(lines, field).InexactFloat64()
}

// LaborSubtotal sums work-order lines.
func LaborSubtotal(lines []Line) float64 {
	return Subtotal(lines, LaborValueField)
}

// PartsSubtotal sums spare-change lines.
func PartsSubtotal(lines []Line) float64 {
	return Subtotal(lines, PartsValueField)
}

// OutsourceSubtotal flattens the details of every outsource group of a job
// and sums them. Every submission contributes.
func OutsourceSubtotal(groups []OutsourceGroup) float64 {
	return Subtotal(FlattenOutsource(groups), OutsourceValueField)
}

// FlattenOutsource returns the detail lines of all groups as one list.
func FlattenOutsource(groups []OutsourceGroup) []Line {
	var n int
	for _, g := range groups {
		n += len(g.Details)
	}
	lines := make([]Line, 0, n)
	for _, g := range groups {
		lines = append(lines, g.Details...)
	}
	return lines
}

func sumLines(lines []Line, field string) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(decimal.NewFromFloat(toNumber(line[field])))
	}
	return sum
}
