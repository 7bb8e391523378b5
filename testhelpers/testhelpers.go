// Package testhelpers provides utilities for testing PocketBase-based applications.
package testhelpers

import (
	"strings"
	"testing"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"

	"repairshop/collections"
)

// NewTestApp creates a PocketBase instance backed by a temporary directory.
// It bootstraps the app and runs collections.Setup to create all tables.
// The temporary directory is cleaned up automatically when the test finishes.
func NewTestApp(t *testing.T) *pocketbase.PocketBase {
	t.Helper()

	tmpDir := t.TempDir()
	app := pocketbase.NewWithConfig(pocketbase.Config{
		DefaultDataDir: tmpDir,
	})

	if err := app.Bootstrap(); err != nil {
		t.Fatalf("failed to bootstrap test app: %v", err)
	}

	if err := collections.Setup(app); err != nil {
		t.Fatalf("failed to set up collections: %v", err)
	}

	return app
}

// JobOptions are the costing settings of a test job.
type JobOptions struct {
	LaborVAT       bool
	SpareVAT       bool
	OutsourceVAT   bool
	AdditionalCost string
}

// CreateTestJob creates a job record with the given job number and returns it.
func CreateTestJob(t *testing.T, app core.App, jobNumber string, opts JobOptions) *core.Record {
	t.Helper()

	col, err := app.FindCollectionByNameOrId("jobs")
	if err != nil {
		t.Fatalf("failed to find jobs collection: %v", err)
	}

	record := core.NewRecord(col)
	record.Set("job_number", jobNumber)
	record.Set("customer_name", "Test Customer")
	record.Set("vehicle_plate", "AA-1-00001")
	record.Set("include_labor_vat", opts.LaborVAT)
	record.Set("include_spare_vat", opts.SpareVAT)
	record.Set("include_outsource_vat", opts.OutsourceVAT)
	record.Set("additional_cost", opts.AdditionalCost)

	if err := app.Save(record); err != nil {
		t.Fatalf("failed to save test job: %v", err)
	}

	return record
}

// CreateTestWorkOrder creates a labor line for a job.
func CreateTestWorkOrder(t *testing.T, app core.App, jobID, description string, totalCost float64) *core.Record {
	t.Helper()
	return saveLine(t, app, "work_orders", map[string]any{
		"job":         jobID,
		"description": description,
		"totalcost":   totalCost,
	})
}

// CreateTestSpareChange creates a replaced-part line for a job.
func CreateTestSpareChange(t *testing.T, app core.App, jobID, partName string, quantity, totalPrice float64) *core.Record {
	t.Helper()
	return saveLine(t, app, "spare_changes", map[string]any{
		"job":        jobID,
		"part_name":  partName,
		"quantity":   quantity,
		"totalprice": totalPrice,
	})
}

// CreateTestOutsource creates an outsource submission for a job. details is
// stored as given: a list of detail objects or a JSON value.
func CreateTestOutsource(t *testing.T, app core.App, jobID, vendorName string, details any) *core.Record {
	t.Helper()
	return saveLine(t, app, "outsources", map[string]any{
		"job":              jobID,
		"vendor_name":      vendorName,
		"outsourcedetails": details,
	})
}

func saveLine(t *testing.T, app core.App, collection string, fields map[string]any) *core.Record {
	t.Helper()

	col, err := app.FindCollectionByNameOrId(collection)
	if err != nil {
		t.Fatalf("failed to find %s collection: %v", collection, err)
	}

	record := core.NewRecord(col)
	for k, v := range fields {
		record.Set(k, v)
	}

	if err := app.Save(record); err != nil {
		t.Fatalf("failed to save test %s record: %v", collection, err)
	}

	return record
}

// AssertBodyContains checks that body contains all specified fragments.
func AssertBodyContains(t *testing.T, body string, fragments ...string) {
	t.Helper()

	for _, frag := range fragments {
		if !strings.Contains(body, frag) {
			t.Errorf("expected body to contain %q, but it was not found\nbody (first 500 chars): %s",
				frag, truncate(body, 500))
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
