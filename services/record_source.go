package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
)

// ErrJobNotFound is returned when a job record does not exist.
var ErrJobNotFound = errors.New("job not found")

// RecordLineSource reads cost lines from the work_orders, spare_changes and
// outsources collections.
type RecordLineSource struct {
	app core.App
}

// NewRecordLineSource returns a LineSource backed by app.
func NewRecordLineSource(app core.App) *RecordLineSource {
	return &RecordLineSource{app: app}
}

// WorkOrderLines returns the labor lines of a job.
func (s *RecordLineSource) WorkOrderLines(ctx context.Context, jobID string) ([]Line, error) {
	return s.lines(ctx, "work_orders", jobID, LaborValueField, "description")
}

// SpareChangeLines returns the replaced-parts lines of a job.
func (s *RecordLineSource) SpareChangeLines(ctx context.Context, jobID string) ([]Line, error) {
	return s.lines(ctx, "spare_changes", jobID, PartsValueField, "part_name", "quantity")
}

// OutsourceGroups returns every outsource submission of a job with its
// details normalized.
func (s *RecordLineSource) OutsourceGroups(ctx context.Context, jobID string) ([]OutsourceGroup, error) {
	records, err := s.find(ctx, "outsources", jobID)
	if err != nil {
		return nil, err
	}

	groups := make([]OutsourceGroup, 0, len(records))
	for _, r := range records {
		raw := r.Get(OutsourceDetailsField)
		if jr, ok := raw.(types.JSONRaw); ok {
			raw = []byte(jr)
		}
		groups = append(groups, NewOutsourceGroup(r.Id, raw))
	}
	return groups, nil
}

func (s *RecordLineSource) lines(ctx context.Context, collection, jobID string, fields ...string) ([]Line, error) {
	records, err := s.find(ctx, collection, jobID)
	if err != nil {
		return nil, err
	}

	lines := make([]Line, 0, len(records))
	for _, r := range records {
		line := Line{"id": r.Id}
		for _, f := range fields {
			line[f] = r.Get(f)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (s *RecordLineSource) find(ctx context.Context, collection, jobID string) ([]*core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, err := s.app.FindRecordsByFilter(
		collection,
		"job = {:jobId}",
		"created",
		0,
		0,
		dbx.Params{"jobId": jobID},
	)
	if err != nil {
		return nil, fmt.Errorf("load %s for job %s: %w", collection, jobID, err)
	}
	return records, nil
}

// RecordPaymentLedger checks the payments collection.
type RecordPaymentLedger struct {
	app core.App
}

// NewRecordPaymentLedger returns a PaymentLedger backed by app.
func NewRecordPaymentLedger(app core.App) *RecordPaymentLedger {
	return &RecordPaymentLedger{app: app}
}

// HasPayment reports whether at least one payment exists for the job.
func (l *RecordPaymentLedger) HasPayment(ctx context.Context, jobID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := l.app.FindFirstRecordByFilter("payments", "job = {:jobId}", dbx.Params{"jobId": jobID})
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check payments for job %s: %w", jobID, err)
	}
	return true, nil
}

// TriggerFromJob builds a recompute trigger from a jobs record, reading the
// VAT flags and the raw additional cost text.
func TriggerFromJob(job *core.Record, reason string) Trigger {
	return Trigger{
		JobID: job.Id,
		Flags: VatFlags{
			Labor:     job.GetBool("include_labor_vat"),
			Spare:     job.GetBool("include_spare_vat"),
			Outsource: job.GetBool("include_outsource_vat"),
		},
		AdditionalCost: job.GetString("additional_cost"),
		Reason:         reason,
	}
}

// RecomputeJob loads the job and runs a pass for it.
func RecomputeJob(ctx context.Context, app core.App, engine *CostEngine, jobID, reason string) (PassResult, error) {
	job, err := app.FindRecordById("jobs", jobID)
	if err != nil {
		return PassResult{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return engine.Recompute(ctx, TriggerFromJob(job, reason))
}
