package handlers

import (
	"errors"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"go.uber.org/zap"

	"repairshop/services"
)

// HandlePaymentSubmit returns a handler that records a payment for a job.
// The amount charged is the job's published grand total; a job without one
// is rejected with 409.
func HandlePaymentSubmit(app *pocketbase.PocketBase, totals services.TotalReader) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		log := requestLogger(e)
		jobID := e.Request.PathValue("jobId")

		if _, err := app.FindRecordById("jobs", jobID); err != nil {
			return ErrorJSON(e, http.StatusNotFound, "Job not found")
		}

		var req services.PaymentRequest
		if err := e.BindBody(&req); err != nil {
			return ErrorJSON(e, http.StatusBadRequest, "Invalid payment request")
		}
		req.JobID = jobID

		payment, err := services.SubmitPayment(app, totals, req, time.Now())
		if err != nil {
			var verrs validation.Errors
			switch {
			case errors.Is(err, services.ErrTotalNotComputed):
				return ErrorJSON(e, http.StatusConflict, "Cannot submit payment before the job total is computed")
			case errors.As(err, &verrs):
				SetToast(e, "error", "Please correct the payment details")
				e.Response.Header().Set("HX-Reswap", "none")
				return e.JSON(http.StatusBadRequest, map[string]any{
					"error":  "Invalid payment request",
					"fields": verrs,
				})
			default:
				log.Error("payments: failed to record payment", zap.String("job_id", jobID), zap.Error(err))
				return ErrorJSON(e, http.StatusInternalServerError, "Could not record payment")
			}
		}

		log.Info("payments: recorded payment",
			zap.String("job_id", jobID),
			zap.String("receipt_number", payment.GetString("receipt_number")),
			zap.Float64("amount", payment.GetFloat("amount")))

		SetToast(e, "success", "Payment recorded")
		return e.JSON(http.StatusCreated, map[string]any{
			"id":            payment.Id,
			"jobId":         jobID,
			"receiptNumber": payment.GetString("receipt_number"),
			"amount":        payment.GetFloat("amount"),
			"display":       services.FormatAmount(payment.GetFloat("amount")),
			"method":        payment.GetString("method"),
			"totalSeq":      payment.GetInt("total_seq"),
		})
	}
}
