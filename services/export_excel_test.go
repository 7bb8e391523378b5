package services

import (
	"context"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"

	"repairshop/testhelpers"
)

func sampleExportData() ExportData {
	return ExportData{
		Title:       "Job JC-0001 AA-1-00001",
		JobNumber:   "JC-0001",
		Customer:    "Test Customer",
		CreatedDate: "2026-01-15",
		Rows: []ExportRow{
			{Stream: StreamLabor, Description: "Brake service", Amount: 1000},
			{Stream: StreamParts, Description: "Brake pads x 2", Amount: 450},
			{Stream: StreamOutsource, Description: "Windscreen", Amount: 300},
		},
		Flags: VatFlags{Labor: true, Spare: true},
		Summary: Reconcile(Streams{
			Labor:     StreamInput{Subtotal: 1000, VATIncluded: true},
			Parts:     StreamInput{Subtotal: 450, VATIncluded: true},
			Outsource: StreamInput{Subtotal: 300},
		}, nil),
	}
}

func TestGenerateCostExcel_Basic(t *testing.T) {
	result, err := GenerateCostExcel(sampleExportData())
	if err != nil {
		t.Fatalf("GenerateCostExcel() error = %v", err)
	}
	if len(result) == 0 {
		t.Fatal("GenerateCostExcel() returned empty bytes")
	}

	f, err := excelize.OpenReader(bytesReader(result))
	if err != nil {
		t.Fatalf("result is not valid Excel: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 || sheets[0] != "Job JC-0001 AA-1-00001" {
		t.Fatalf("unexpected sheets %v", sheets)
	}
	sheet := sheets[0]

	checks := map[string]string{
		"A1": "Job JC-0001 AA-1-00001",
		"A2": "Customer: Test Customer",
		"A5": "#",
		"D5": "Amount",
		"B6": "Labor",
		"C6": "Brake service",
		"D6": "1,000.00",
		"B7": "Parts",
		"B8": "Outsource",
		// Summary starts after a blank row.
		"C10": "Labor Subtotal:",
		"C15": "Outsource VAT (not applied):",
		"D15": "0.00",
		"C19": "Grand Total:",
		"D19": "1,967.50",
	}
	for cell, want := range checks {
		got, _ := f.GetCellValue(sheet, cell)
		if got != want {
			t.Errorf("cell %s = %q, want %q", cell, got, want)
		}
	}
}

func TestGenerateCostExcel_Warnings(t *testing.T) {
	data := sampleExportData()
	data.Warnings = []string{"parts lines could not be loaded: timeout"}

	result, err := GenerateCostExcel(data)
	if err != nil {
		t.Fatalf("GenerateCostExcel() error = %v", err)
	}

	f, err := excelize.OpenReader(bytesReader(result))
	if err != nil {
		t.Fatalf("result is not valid Excel: %v", err)
	}
	defer f.Close()

	got, _ := f.GetCellValue(f.GetSheetList()[0], "A21")
	if got != "Warning: parts lines could not be loaded: timeout" {
		t.Errorf("warning cell = %q", got)
	}
}

func TestGenerateCostExcel_LongAndEmptyTitle(t *testing.T) {
	for _, tc := range []struct {
		title string
		want  string
	}{
		{"This is a very long title that exceeds thirty one characters", "This is a very long title that "},
		{"", "Job Costs"},
	} {
		result, err := GenerateCostExcel(ExportData{Title: tc.title})
		if err != nil {
			t.Fatalf("GenerateCostExcel() error = %v", err)
		}
		f, err := excelize.OpenReader(bytesReader(result))
		if err != nil {
			t.Fatalf("result is not valid Excel: %v", err)
		}
		if got := f.GetSheetList()[0]; got != tc.want {
			t.Errorf("sheet name = %q, want %q", got, tc.want)
		}
		f.Close()
	}
}

func TestSanitizeExcelCell(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"", ""},
		{"Brake pads", "Brake pads"},
		{"=SUM(A1:A2)", "'=SUM(A1:A2)"},
		{"+1", "'+1"},
		{"-1", "'-1"},
		{"@cmd", "'@cmd"},
	}
	for _, tt := range tests {
		if got := sanitizeExcelCell(tt.input); got != tt.want {
			t.Errorf("sanitizeExcelCell(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestBuildExportData(t *testing.T) {
	app := testhelpers.NewTestApp(t)
	job := testhelpers.CreateTestJob(t, app, "JC-900", testhelpers.JobOptions{LaborVAT: true})
	testhelpers.CreateTestWorkOrder(t, app, job.Id, "Suspension", 600)
	testhelpers.CreateTestSpareChange(t, app, job.Id, "Shock absorber", 2, 400)
	testhelpers.CreateTestOutsource(t, app, job.Id, "Alignment Co", `[{"requestquantity":"80","description":"Alignment"}]`)

	source := NewRecordLineSource(app)
	store := NewMemoryTotalStore()

	_, err := BuildExportData(context.Background(), job, source, store)
	if !errors.Is(err, ErrTotalNotComputed) {
		t.Fatalf("expected ErrTotalNotComputed, got %v", err)
	}

	engine := NewCostEngine(source, store)
	if _, err := engine.Recompute(context.Background(), TriggerFromJob(job, "export")); err != nil {
		t.Fatalf("Recompute() error = %v", err)
	}

	data, err := BuildExportData(context.Background(), job, source, store)
	if err != nil {
		t.Fatalf("BuildExportData() error = %v", err)
	}
	if data.Title != "Job JC-900 AA-1-00001" {
		t.Errorf("Title = %q", data.Title)
	}
	if len(data.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(data.Rows))
	}
	if data.Rows[1].Description != "Shock absorber x 2" {
		t.Errorf("parts description = %q", data.Rows[1].Description)
	}
	if data.Rows[2].Stream != StreamOutsource || data.Rows[2].Amount != 80 {
		t.Errorf("outsource row = %+v", data.Rows[2])
	}
	if data.Summary.GrandTotal != 1170 {
		t.Errorf("GrandTotal = %v, want 1170", data.Summary.GrandTotal)
	}
}
