package services

import (
	"fmt"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

// formatReceiptNumber constructs the receipt number string from components.
func formatReceiptNumber(jobRef string, year int, sequence int) string {
	return fmt.Sprintf("RCPT-%s-%04d-%03d", jobRef, year, sequence)
}

// GenerateReceiptNumber creates the next payment receipt number for a job.
// Format: RCPT-{job_number}-{year}-{sequence}
// - job_number: the job's job_number (falls back to the job ID if empty)
// - year: calendar year of now
// - sequence: 3-digit zero-padded, per job per year
//
// Run it in the same transaction as the payment save; the unique index on
// receipt_number rejects a number taken concurrently.
func GenerateReceiptNumber(app core.App, jobID string, now time.Time) (string, error) {
	job, err := app.FindRecordById("jobs", jobID)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	jobRef := job.GetString("job_number")
	if jobRef == "" {
		jobRef = jobID
	}

	prefix := fmt.Sprintf("RCPT-%s-%04d-", jobRef, now.Year())

	existing, err := app.FindRecordsByFilter(
		"payments",
		"job = {:jobId} && receipt_number ~ {:prefix}",
		"",
		0,
		0,
		dbx.Params{
			"jobId":  jobID,
			"prefix": prefix + "%",
		},
	)
	if err != nil {
		return "", fmt.Errorf("count receipts for job %s: %w", jobID, err)
	}

	return formatReceiptNumber(jobRef, now.Year(), len(existing)+1), nil
}
