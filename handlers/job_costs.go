package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"go.uber.org/zap"

	"repairshop/services"
)

// CostsResponse is the JSON body of the job cost endpoints.
type CostsResponse struct {
	JobID           string                  `json:"jobId"`
	Seq             uint64                  `json:"seq"`
	Flags           services.VatFlags       `json:"flags"`
	Summary         services.CostSummary    `json:"summary"`
	Display         services.SummaryDisplay `json:"display"`
	Warnings        []string                `json:"warnings,omitempty"`
	MalformedGroups int                     `json:"malformedGroups,omitempty"`
	Partial         bool                    `json:"partial"`
	Flagged         bool                    `json:"flagged"`
	Stale           bool                    `json:"stale,omitempty"`
}

// CostingUpdate is the body of a costing settings update. Nil fields are
// left unchanged.
type CostingUpdate struct {
	IncludeLaborVAT     *bool   `json:"includeLaborVAT"`
	IncludeSpareVAT     *bool   `json:"includeSpareVAT"`
	IncludeOutsourceVAT *bool   `json:"includeOutsourceVAT"`
	AdditionalCost      *string `json:"additionalCost"`
}

// HandleJobCosts returns a handler that recomputes a job's costs (the job
// was opened) and returns the reconciled breakdown.
func HandleJobCosts(app *pocketbase.PocketBase, engine *services.CostEngine) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		log := requestLogger(e)
		jobID := e.Request.PathValue("jobId")

		job, err := app.FindRecordById("jobs", jobID)
		if err != nil {
			log.Info("job_costs: job not found", zap.String("job_id", jobID), zap.Error(err))
			return ErrorJSON(e, http.StatusNotFound, "Job not found")
		}

		trigger := services.TriggerFromJob(job, "job opened")
		// The pass finishes even if the client disconnects.
		result, err := engine.Recompute(context.WithoutCancel(e.Request.Context()), trigger)
		if err != nil && !errors.Is(err, services.ErrJobPaid) {
			log.Error("job_costs: recompute failed", zap.String("job_id", jobID), zap.Error(err))
			return ErrorJSON(e, http.StatusInternalServerError, "Could not compute job costs")
		}

		resp := costsResponse(trigger.Flags, result)
		if result.Stale {
			// A newer pass already published; report that one.
			if published, ok := engine.Store().Read(jobID); ok {
				resp = publishedResponse(trigger.Flags, published)
			}
		}
		if errors.Is(err, services.ErrJobPaid) {
			// Show the total the payment was taken against.
			if published, ok := engine.Store().Read(jobID); ok {
				resp = publishedResponse(trigger.Flags, published)
			}
			SetToast(e, "info", "Job is paid, costs were not recalculated")
		}

		WarningToasts(e, resp.Warnings)
		if resp.Flagged {
			SetToast(e, "warning", "Total changed after a payment was recorded")
		}

		return e.JSON(http.StatusOK, resp)
	}
}

// HandleJobCostingUpdate returns a handler that updates a job's VAT flags
// and additional cost. Saving the job triggers the recompute hook; the
// response carries the total published by that pass.
func HandleJobCostingUpdate(app *pocketbase.PocketBase, engine *services.CostEngine) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		log := requestLogger(e)
		jobID := e.Request.PathValue("jobId")

		job, err := app.FindRecordById("jobs", jobID)
		if err != nil {
			return ErrorJSON(e, http.StatusNotFound, "Job not found")
		}

		var body CostingUpdate
		if err := e.BindBody(&body); err != nil {
			return ErrorJSON(e, http.StatusBadRequest, "Invalid costing update")
		}

		if body.IncludeLaborVAT != nil {
			job.Set("include_labor_vat", *body.IncludeLaborVAT)
		}
		if body.IncludeSpareVAT != nil {
			job.Set("include_spare_vat", *body.IncludeSpareVAT)
		}
		if body.IncludeOutsourceVAT != nil {
			job.Set("include_outsource_vat", *body.IncludeOutsourceVAT)
		}
		if body.AdditionalCost != nil {
			job.Set("additional_cost", strings.TrimSpace(*body.AdditionalCost))
		}

		if err := app.Save(job); err != nil {
			log.Error("job_costs: failed to save costing update", zap.String("job_id", jobID), zap.Error(err))
			return ErrorJSON(e, http.StatusInternalServerError, "Could not save costing settings")
		}

		flags := services.TriggerFromJob(job, "").Flags
		published, ok := engine.Store().Read(jobID)
		if !ok {
			return ErrorJSON(e, http.StatusConflict, "Job total has not been computed yet")
		}

		resp := publishedResponse(flags, published)
		if engine.PaymentBlocked(e.Request.Context(), jobID) {
			SetToast(e, "info", "Job is paid, costs were not recalculated")
		}
		WarningToasts(e, resp.Warnings)
		return e.JSON(http.StatusOK, resp)
	}
}

// HandleJobTotal returns a handler exposing the published grand total of a
// job. A job that was never computed answers 404, never a zero total.
func HandleJobTotal(app *pocketbase.PocketBase, totals services.TotalReader) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		jobID := e.Request.PathValue("jobId")

		total, err := services.RequireGrandTotal(totals, jobID)
		if err != nil {
			return ErrorJSON(e, http.StatusNotFound, "Job total has not been computed yet")
		}

		return e.JSON(http.StatusOK, map[string]any{
			"jobId":      jobID,
			"seq":        total.Seq,
			"grandTotal": total.GrandTotal(),
			"display":    services.FormatAmount(total.GrandTotal()),
			"flagged":    total.Flagged,
		})
	}
}

// HandleJobCostsExport returns a handler that downloads the job's cost
// breakdown as an Excel workbook.
func HandleJobCostsExport(app *pocketbase.PocketBase, engine *services.CostEngine) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		log := requestLogger(e)
		jobID := e.Request.PathValue("jobId")

		job, err := app.FindRecordById("jobs", jobID)
		if err != nil {
			return ErrorJSON(e, http.StatusNotFound, "Job not found")
		}

		data, err := services.BuildExportData(e.Request.Context(), job, services.NewRecordLineSource(app), engine.Store())
		if errors.Is(err, services.ErrTotalNotComputed) {
			return ErrorJSON(e, http.StatusConflict, "Job total has not been computed yet")
		}
		if err != nil {
			log.Error("job_costs_export: failed to build export data", zap.String("job_id", jobID), zap.Error(err))
			return ErrorJSON(e, http.StatusInternalServerError, "Could not export job costs")
		}

		content, err := services.GenerateCostExcel(data)
		if err != nil {
			log.Error("job_costs_export: failed to generate workbook", zap.String("job_id", jobID), zap.Error(err))
			return ErrorJSON(e, http.StatusInternalServerError, "Could not export job costs")
		}

		filename := fmt.Sprintf("job-%s-costs.xlsx", exportFilename(job.GetString("job_number"), jobID))
		e.Response.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		return e.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", content)
	}
}

func costsResponse(flags services.VatFlags, r services.PassResult) CostsResponse {
	return CostsResponse{
		JobID:           r.JobID,
		Seq:             r.Seq,
		Flags:           flags,
		Summary:         r.Summary.Rounded(),
		Display:         r.Summary.Display(),
		Warnings:        r.WarningMessages(),
		MalformedGroups: r.MalformedGroups,
		Partial:         r.Partial(),
		Flagged:         r.Flagged,
		Stale:           r.Stale,
	}
}

func publishedResponse(flags services.VatFlags, p services.PublishedTotal) CostsResponse {
	return CostsResponse{
		JobID:    p.JobID,
		Seq:      p.Seq,
		Flags:    flags,
		Summary:  p.Summary.Rounded(),
		Display:  p.Summary.Display(),
		Warnings: p.Warnings,
		Partial:  len(p.Warnings) > 0,
		Flagged:  p.Flagged,
	}
}

// exportFilename keeps letters, digits, dashes and underscores, falling
// back when nothing usable remains.
func exportFilename(name, fallback string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return fallback
	}
	return b.String()
}
