package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/pocketbase/pocketbase/core"
)

// ExportRow is one cost line in the job cost export.
type ExportRow struct {
	Stream      Stream
	Description string
	Amount      float64
}

// ExportData holds everything needed to export a job's cost breakdown.
type ExportData struct {
	Title       string
	JobNumber   string
	Customer    string
	CreatedDate string
	Rows        []ExportRow
	Flags       VatFlags
	Summary     CostSummary
	Warnings    []string
}

// BuildExportData loads the lines of a job through source and pairs them
// with the job's published summary. It fails with ErrTotalNotComputed when
// no total has been published for the job.
func BuildExportData(ctx context.Context, job *core.Record, source LineSource, totals TotalReader) (ExportData, error) {
	total, err := RequireGrandTotal(totals, job.Id)
	if err != nil {
		return ExportData{}, err
	}

	trigger := TriggerFromJob(job, "export")
	data := ExportData{
		Title:       exportTitle(job),
		JobNumber:   job.GetString("job_number"),
		Customer:    job.GetString("customer_name"),
		CreatedDate: job.GetDateTime("created").Time().Format("2006-01-02"),
		Flags:       trigger.Flags,
		Summary:     total.Summary,
		Warnings:    total.Warnings,
	}

	labor, err := source.WorkOrderLines(ctx, job.Id)
	if err != nil {
		return ExportData{}, err
	}
	for _, l := range labor {
		data.Rows = append(data.Rows, ExportRow{
			Stream:      StreamLabor,
			Description: lineText(l, "description"),
			Amount:      toNumber(l[LaborValueField]),
		})
	}

	parts, err := source.SpareChangeLines(ctx, job.Id)
	if err != nil {
		return ExportData{}, err
	}
	for _, l := range parts {
		desc := lineText(l, "part_name")
		if qty := toNumber(l["quantity"]); qty > 0 {
			desc = fmt.Sprintf("%s x %g", desc, qty)
		}
		data.Rows = append(data.Rows, ExportRow{
			Stream:      StreamParts,
			Description: desc,
			Amount:      toNumber(l[PartsValueField]),
		})
	}

	groups, err := source.OutsourceGroups(ctx, job.Id)
	if err != nil {
		return ExportData{}, err
	}
	for _, l := range FlattenOutsource(groups) {
		data.Rows = append(data.Rows, ExportRow{
			Stream:      StreamOutsource,
			Description: lineText(l, "description"),
			Amount:      toNumber(l[OutsourceValueField]),
		})
	}

	return data, nil
}

func exportTitle(job *core.Record) string {
	parts := []string{}
	for _, f := range []string{"job_number", "vehicle_plate"} {
		if v := job.GetString(f); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return "Job " + job.Id
	}
	return "Job " + strings.Join(parts, " ")
}

func lineText(l Line, field string) string {
	if s, ok := l[field].(string); ok {
		return s
	}
	return ""
}
