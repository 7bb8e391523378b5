package services

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

var streamLabels = map[Stream]string{
	StreamLabor:     "Labor",
	StreamParts:     "Parts",
	StreamOutsource: "Outsource",
}

// GenerateCostExcel creates an Excel workbook with the cost lines of a job
// followed by the reconciled summary, and returns the file contents.
func GenerateCostExcel(data ExportData) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// Sheet names are limited to 31 chars.
	sheetName := data.Title
	if len(sheetName) > 31 {
		sheetName = sheetName[:31]
	}
	if sheetName == "" {
		sheetName = "Job Costs"
	}

	defaultSheet := f.GetSheetName(0)
	if err := f.SetSheetName(defaultSheet, sheetName); err != nil {
		return nil, fmt.Errorf("set sheet name: %w", err)
	}

	columns := []string{"A", "B", "C", "D"}
	lastCol := columns[len(columns)-1]

	widths := []float64{6, 14, 48, 18}
	for i, col := range columns {
		if err := f.SetColWidth(sheetName, col, col, widths[i]); err != nil {
			return nil, fmt.Errorf("set col width %s: %w", col, err)
		}
	}

	// ── Styles ──────────────────────────────────────────────────────────

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 16},
	})
	if err != nil {
		return nil, fmt.Errorf("create title style: %w", err)
	}

	subtitleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Size: 11},
	})
	if err != nil {
		return nil, fmt.Errorf("create subtitle style: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 11},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#333333"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorders(),
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	lineStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Size: 10},
		Border: thinBorders(),
	})
	if err != nil {
		return nil, fmt.Errorf("create line style: %w", err)
	}

	summaryLabelStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "right"},
	})
	if err != nil {
		return nil, fmt.Errorf("create summary label style: %w", err)
	}

	summaryValueStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "right"},
	})
	if err != nil {
		return nil, fmt.Errorf("create summary value style: %w", err)
	}

	warningStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#B00020", Size: 10},
	})
	if err != nil {
		return nil, fmt.Errorf("create warning style: %w", err)
	}

	// ── Header Rows (1-3) ───────────────────────────────────────────────

	if err := f.MergeCell(sheetName, "A1", lastCol+"1"); err != nil {
		return nil, fmt.Errorf("merge title: %w", err)
	}
	f.SetCellValue(sheetName, "A1", sanitizeExcelCell(data.Title))
	f.SetCellStyle(sheetName, "A1", lastCol+"1", titleStyle)

	if data.Customer != "" {
		if err := f.MergeCell(sheetName, "A2", lastCol+"2"); err != nil {
			return nil, fmt.Errorf("merge customer: %w", err)
		}
		f.SetCellValue(sheetName, "A2", "Customer: "+sanitizeExcelCell(data.Customer))
		f.SetCellStyle(sheetName, "A2", lastCol+"2", subtitleStyle)
	}

	if err := f.MergeCell(sheetName, "A3", lastCol+"3"); err != nil {
		return nil, fmt.Errorf("merge date: %w", err)
	}
	f.SetCellValue(sheetName, "A3", "Date: "+data.CreatedDate)
	f.SetCellStyle(sheetName, "A3", lastCol+"3", subtitleStyle)

	// ── Row 5: Column Headers ───────────────────────────────────────────

	headers := []string{"#", "Stream", "Description", "Amount"}
	for i, h := range headers {
		f.SetCellValue(sheetName, fmt.Sprintf("%s5", columns[i]), h)
	}
	f.SetCellStyle(sheetName, "A5", lastCol+"5", headerStyle)

	// ── Line Rows (starting row 6) ──────────────────────────────────────

	row := 6
	for i, r := range data.Rows {
		rowStr := fmt.Sprintf("%d", row)
		f.SetCellValue(sheetName, "A"+rowStr, i+1)
		f.SetCellValue(sheetName, "B"+rowStr, streamLabels[r.Stream])
		f.SetCellValue(sheetName, "C"+rowStr, sanitizeExcelCell(r.Description))
		f.SetCellValue(sheetName, "D"+rowStr, FormatAmount(r.Amount))
		f.SetCellStyle(sheetName, "A"+rowStr, lastCol+rowStr, lineStyle)
		row++
	}

	// ── Summary Rows ────────────────────────────────────────────────────

	row++

	s := data.Summary
	summary := []struct {
		label string
		value float64
	}{
		{"Labor Subtotal:", s.LaborSubtotal},
		{"Parts Subtotal:", s.PartsSubtotal},
		{"Outsource Subtotal:", s.OutsourceSubtotal},
		{vatLabel("Labor VAT", data.Flags.Labor), s.LaborVAT},
		{vatLabel("Parts VAT", data.Flags.Spare), s.SpareVAT},
		{vatLabel("Outsource VAT", data.Flags.Outsource), s.OutsourceVAT},
		{"Total Before VAT:", s.PreTaxTotal},
		{"Total VAT:", s.TotalVAT},
		{"Additional Cost:", s.AdditionalCost},
		{"Grand Total:", s.GrandTotal},
	}
	for _, line := range summary {
		summaryRow := fmt.Sprintf("%d", row)
		f.SetCellValue(sheetName, "C"+summaryRow, line.label)
		f.SetCellStyle(sheetName, "C"+summaryRow, "C"+summaryRow, summaryLabelStyle)
		f.SetCellValue(sheetName, "D"+summaryRow, FormatAmount(line.value))
		f.SetCellStyle(sheetName, "D"+summaryRow, "D"+summaryRow, summaryValueStyle)
		row++
	}

	for _, w := range data.Warnings {
		row++
		warnRow := fmt.Sprintf("%d", row)
		f.SetCellValue(sheetName, "A"+warnRow, "Warning: "+sanitizeExcelCell(w))
		f.SetCellStyle(sheetName, "A"+warnRow, "A"+warnRow, warningStyle)
	}

	// ── Write to buffer ─────────────────────────────────────────────────

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}

	return buf.Bytes(), nil
}

func vatLabel(name string, included bool) string {
	if included {
		return name + ":"
	}
	return name + " (not applied):"
}

// sanitizeExcelCell prevents formula injection by prefixing dangerous leading
// characters with a single quote.
func sanitizeExcelCell(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r', '|':
		return "'" + s
	}
	return s
}

// thinBorders returns thin borders on all four sides.
func thinBorders() []excelize.Border {
	sides := []string{"left", "top", "bottom", "right"}
	borders := make([]excelize.Border, len(sides))
	for i, side := range sides {
		borders[i] = excelize.Border{
			Type:  side,
			Color: "#000000",
			Style: 1,
		}
	}
	return borders
}
