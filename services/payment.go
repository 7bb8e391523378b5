package services

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pocketbase/pocketbase/core"
)

// Payment methods accepted at the counter.
const (
	PaymentMethodCash     = "cash"
	PaymentMethodCard     = "card"
	PaymentMethodTransfer = "transfer"
	PaymentMethodCheque   = "cheque"
)

// PaymentRequest is a request to record a payment for a job. The amount is
// not part of the request: it is always the published grand total.
type PaymentRequest struct {
	JobID     string `json:"jobId"`
	Method    string `json:"method"`
	Reference string `json:"reference"`
}

// Validate checks the request fields.
func (r PaymentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.JobID, validation.Required),
		validation.Field(&r.Method, validation.Required, validation.In(
			PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer, PaymentMethodCheque,
		)),
		validation.Field(&r.Reference,
			validation.Length(0, 100),
			validation.When(r.Method == PaymentMethodTransfer || r.Method == PaymentMethodCheque, validation.Required),
		),
	)
}

// SubmitPayment records a payment for the job's published grand total. It
// fails with ErrTotalNotComputed when no total has been published yet; it
// never charges a substitute amount.
func SubmitPayment(app core.App, totals TotalReader, req PaymentRequest, now time.Time) (*core.Record, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	total, err := RequireGrandTotal(totals, req.JobID)
	if err != nil {
		return nil, err
	}

	var record *core.Record
	err = app.RunInTransaction(func(txApp core.App) error {
		receiptNumber, err := GenerateReceiptNumber(txApp, req.JobID, now)
		if err != nil {
			return err
		}

		col, err := txApp.FindCollectionByNameOrId("payments")
		if err != nil {
			return fmt.Errorf("find payments collection: %w", err)
		}

		record = core.NewRecord(col)
		record.Set("job", req.JobID)
		record.Set("receipt_number", receiptNumber)
		record.Set("amount", total.GrandTotal())
		record.Set("method", req.Method)
		record.Set("reference", req.Reference)
		record.Set("total_seq", total.Seq)
		record.Set("paid_at", now)

		if err := txApp.Save(record); err != nil {
			return fmt.Errorf("save payment for job %s: %w", req.JobID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}
