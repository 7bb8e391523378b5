package services

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"go.uber.org/zap"
)

// PersistPublishedTotals mirrors every accepted total into the job_totals
// collection, one record per job. A persisted total with a newer sequence
// is never overwritten.
func PersistPublishedTotals(app core.App, store TotalStore, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.With(zap.String("component", "total_persistence"))

	store.Subscribe(func(total PublishedTotal) {
		if err := SaveJobTotal(app, total); err != nil {
			log.Error("could not persist job total",
				zap.String("job_id", total.JobID),
				zap.Uint64("seq", total.Seq),
				zap.Error(err))
		}
	})
}

// SaveJobTotal upserts the job_totals record of total.JobID. The lookup,
// sequence check and save run in one transaction, so a save carrying an
// older sequence never lands after a newer one.
func SaveJobTotal(app core.App, total PublishedTotal) error {
	return app.RunInTransaction(func(txApp core.App) error {
		return saveJobTotal(txApp, total)
	})
}

func saveJobTotal(app core.App, total PublishedTotal) error {
	record, err := app.FindFirstRecordByFilter("job_totals", "job = {:jobId}", dbx.Params{"jobId": total.JobID})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		col, err := app.FindCollectionByNameOrId("job_totals")
		if err != nil {
			return fmt.Errorf("find job_totals collection: %w", err)
		}
		record = core.NewRecord(col)
		record.Set("job", total.JobID)
	case err != nil:
		return fmt.Errorf("find job total for %s: %w", total.JobID, err)
	default:
		if uint64(record.GetInt("seq")) > total.Seq {
			return nil
		}
	}

	s := total.Summary
	record.Set("seq", total.Seq)
	record.Set("labor_subtotal", s.LaborSubtotal)
	record.Set("parts_subtotal", s.PartsSubtotal)
	record.Set("outsource_subtotal", s.OutsourceSubtotal)
	record.Set("labor_vat", s.LaborVAT)
	record.Set("spare_vat", s.SpareVAT)
	record.Set("outsource_vat", s.OutsourceVAT)
	record.Set("additional_cost", s.AdditionalCost)
	record.Set("pre_tax_total", s.PreTaxTotal)
	record.Set("total_vat", s.TotalVAT)
	record.Set("grand_total", s.GrandTotal)
	record.Set("flagged", total.Flagged)
	record.Set("warnings", total.Warnings)
	record.Set("published_at", total.PublishedAt)

	if err := app.Save(record); err != nil {
		return fmt.Errorf("save job total for %s: %w", total.JobID, err)
	}
	return nil
}

// LoadPublishedTotals fills store from the job_totals collection so totals
// computed before a restart stay readable by the payment step. It returns
// the number of totals loaded.
func LoadPublishedTotals(app core.App, store TotalStore) (int, error) {
	records, err := app.FindAllRecords("job_totals")
	if err != nil {
		return 0, fmt.Errorf("load job totals: %w", err)
	}

	var loaded int
	for _, r := range records {
		total := PublishedTotal{
			JobID: r.GetString("job"),
			Seq:   uint64(r.GetInt("seq")),
			Summary: CostSummary{
				LaborSubtotal:     r.GetFloat("labor_subtotal"),
				PartsSubtotal:     r.GetFloat("parts_subtotal"),
				OutsourceSubtotal: r.GetFloat("outsource_subtotal"),
				LaborVAT:          r.GetFloat("labor_vat"),
				SpareVAT:          r.GetFloat("spare_vat"),
				OutsourceVAT:      r.GetFloat("outsource_vat"),
				AdditionalCost:    r.GetFloat("additional_cost"),
				PreTaxTotal:       r.GetFloat("pre_tax_total"),
				TotalVAT:          r.GetFloat("total_vat"),
				GrandTotal:        r.GetFloat("grand_total"),
			},
			Flagged:     r.GetBool("flagged"),
			PublishedAt: r.GetDateTime("published_at").Time(),
		}
		if err := r.UnmarshalJSONField("warnings", &total.Warnings); err != nil {
			total.Warnings = nil
		}
		if store.Publish(total) {
			loaded++
		}
	}
	return loaded, nil
}
