package services

import (
	"context"
	"testing"

	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairshop/testhelpers"
)

func TestRecordLineSource_ReadsAllStreams(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	job := testhelpers.CreateTestJob(t, app, "JC-100", testhelpers.JobOptions{})
	other := testhelpers.CreateTestJob(t, app, "JC-101", testhelpers.JobOptions{})

	testhelpers.CreateTestWorkOrder(t, app, job.Id, "Brake service", 1000)
	testhelpers.CreateTestWorkOrder(t, app, job.Id, "Wheel alignment", 500)
	testhelpers.CreateTestWorkOrder(t, app, other.Id, "Unrelated", 9999)
	testhelpers.CreateTestSpareChange(t, app, job.Id, "Brake pads", 2, 450)

	testhelpers.CreateTestOutsource(t, app, job.Id, "Glass Co",
		types.JSONRaw(`"[{\"requestquantity\":\"300\",\"description\":\"Windscreen\"}]"`))
	testhelpers.CreateTestOutsource(t, app, job.Id, "Paint Shop",
		[]map[string]any{{"requestquantity": 200, "description": "Respray"}})

	source := NewRecordLineSource(app)
	ctx := context.Background()

	labor, err := source.WorkOrderLines(ctx, job.Id)
	require.NoError(t, err)
	require.Len(t, labor, 2)
	assert.Equal(t, 1500.0, LaborSubtotal(labor))
	assert.ElementsMatch(t, []any{"Brake service", "Wheel alignment"},
		[]any{labor[0]["description"], labor[1]["description"]})

	parts, err := source.SpareChangeLines(ctx, job.Id)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, 450.0, PartsSubtotal(parts))
	assert.Equal(t, "Brake pads", parts[0]["part_name"])

	groups, err := source.OutsourceGroups(ctx, job.Id)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	for _, g := range groups {
		assert.False(t, g.Malformed, "group %s", g.ID)
	}
	assert.Equal(t, 500.0, OutsourceSubtotal(groups))
}

func TestRecordLineSource_EmptyJob(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	job := testhelpers.CreateTestJob(t, app, "JC-200", testhelpers.JobOptions{})
	source := NewRecordLineSource(app)

	labor, err := source.WorkOrderLines(context.Background(), job.Id)
	require.NoError(t, err)
	assert.Empty(t, labor)

	groups, err := source.OutsourceGroups(context.Background(), job.Id)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestRecordLineSource_CancelledContext(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	source := NewRecordLineSource(app)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := source.WorkOrderLines(ctx, "any")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTriggerFromJob(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	job := testhelpers.CreateTestJob(t, app, "JC-300", testhelpers.JobOptions{
		LaborVAT:       true,
		OutsourceVAT:   true,
		AdditionalCost: "75.5",
	})

	trig := TriggerFromJob(job, "opened")
	assert.Equal(t, job.Id, trig.JobID)
	assert.Equal(t, VatFlags{Labor: true, Spare: false, Outsource: true}, trig.Flags)
	assert.Equal(t, "75.5", trig.AdditionalCost)
	assert.Equal(t, "opened", trig.Reason)
}

func TestRecomputeJob_EndToEnd(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	job := testhelpers.CreateTestJob(t, app, "JC-400", testhelpers.JobOptions{
		LaborVAT:       true,
		SpareVAT:       true,
		AdditionalCost: "50",
	})
	testhelpers.CreateTestWorkOrder(t, app, job.Id, "Engine diagnostics", 1000)
	testhelpers.CreateTestWorkOrder(t, app, job.Id, "Oil change", 500)
	testhelpers.CreateTestSpareChange(t, app, job.Id, "Filter", 1, 450)
	testhelpers.CreateTestSpareChange(t, app, job.Id, "Oil", 5, 350)
	testhelpers.CreateTestOutsource(t, app, job.Id, "Glass Co", `[{"requestquantity":"300"}]`)
	testhelpers.CreateTestOutsource(t, app, job.Id, "Paint Shop", []map[string]any{{"requestquantity": 200}})

	store := NewMemoryTotalStore()
	engine := NewCostEngine(NewRecordLineSource(app), store)

	result, err := RecomputeJob(context.Background(), app, engine, job.Id, "opened")
	require.NoError(t, err)
	assert.Equal(t, 2800.0, result.Summary.PreTaxTotal)
	assert.Equal(t, 345.0, result.Summary.TotalVAT)
	assert.Equal(t, 3195.0, result.Summary.GrandTotal)

	grand, ok := store.GrandTotal(job.Id)
	require.True(t, ok)
	assert.Equal(t, 3195.0, grand)
}

func TestRecomputeJob_CancelledContextKeepsPublishedTotal(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	job := testhelpers.CreateTestJob(t, app, "JC-401", testhelpers.JobOptions{})
	testhelpers.CreateTestWorkOrder(t, app, job.Id, "Timing belt", 1000)

	store := NewMemoryTotalStore()
	engine := NewCostEngine(NewRecordLineSource(app), store)

	_, err := RecomputeJob(context.Background(), app, engine, job.Id, "opened")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := RecomputeJob(ctx, app, engine, job.Id, "opened")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, result.Published)

	grand, ok := store.GrandTotal(job.Id)
	require.True(t, ok)
	assert.Equal(t, 1000.0, grand)
}

func TestRecomputeJob_MissingJob(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	engine := NewCostEngine(NewRecordLineSource(app), NewMemoryTotalStore())

	_, err := RecomputeJob(context.Background(), app, engine, "doesnotexist123", "opened")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRecordPaymentLedger(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	job := testhelpers.CreateTestJob(t, app, "JC-500", testhelpers.JobOptions{})
	ledger := NewRecordPaymentLedger(app)

	paid, err := ledger.HasPayment(context.Background(), job.Id)
	require.NoError(t, err)
	assert.False(t, paid)

	col, err := app.FindCollectionByNameOrId("payments")
	require.NoError(t, err)
	payment := newRecord(col, map[string]any{
		"job":            job.Id,
		"receipt_number": "RCPT-JC-500-2026-001",
		"amount":         100,
		"method":         "cash",
	})
	require.NoError(t, app.Save(payment))

	paid, err = ledger.HasPayment(context.Background(), job.Id)
	require.NoError(t, err)
	assert.True(t, paid)
}
