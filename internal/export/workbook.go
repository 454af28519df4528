// Package export renders dashboards as Excel workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/iwvelando/tireintel/internal/dashboard"
	"github.com/xuri/excelize/v2"
)

// Sheet names.
const (
	SheetForecast = "Forecast"
	SheetAnnual   = "Annual"
	SheetCards    = "Cards"
)

// Workbook builds a workbook with the monthly series, the annual totals and
// the summary cards of view.
func Workbook(view *dashboard.View) (*excelize.File, error) {
	if view == nil {
		return nil, fmt.Errorf("dashboard view cannot be nil")
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetForecast); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetAnnual, SheetCards} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	forecastRows := [][]interface{}{{"Month", "Segment", "Market Size ($B)", "Avg Price ($)", "Reference"}}
	for _, r := range view.Records {
		var ref interface{}
		if r.ReferenceValue != nil {
			ref = *r.ReferenceValue
		}
		forecastRows = append(forecastRows, []interface{}{r.Month(), string(r.Segment), r.MarketSize, r.AvgPrice, ref})
	}

	annualRows := [][]interface{}{{"Year", "Months", "Forecast Months", "Market Size ($B)", "Avg Price ($)"}}
	for _, a := range view.Annual {
		annualRows = append(annualRows, []interface{}{a.Year, a.Months, a.ForecastMonths, a.MarketSize, a.AvgPrice})
	}

	cardRows := [][]interface{}{{"Metric", "Value", "Change"}}
	for _, c := range view.Cards {
		cardRows = append(cardRows, []interface{}{c.Label, c.Value, c.Delta})
	}
	if view.Note != "" {
		cardRows = append(cardRows, []interface{}{"Analyst Note", view.Note, nil})
	}

	sheets := []struct {
		name string
		rows [][]interface{}
	}{
		{SheetForecast, forecastRows},
		{SheetAnnual, annualRows},
		{SheetCards, cardRows},
	}
	for _, sheet := range sheets {
		if err := writeRows(f, sheet.name, sheet.rows); err != nil {
			return nil, err
		}
		if err := f.SetRowStyle(sheet.name, 1, 1, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to style %s header: %w", sheet.name, err)
		}
	}

	if err := f.SetColWidth(SheetForecast, "A", "B", 12); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(SheetForecast, "C", "E", 18); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(SheetCards, "A", "A", 32); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(SheetCards, "B", "C", 18); err != nil {
		return nil, err
	}

	sizeFormat, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return nil, err
	}
	if len(view.Records) > 0 {
		last := fmt.Sprintf("E%d", len(view.Records)+1)
		if err := f.SetCellStyle(SheetForecast, "C2", last, sizeFormat); err != nil {
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// Write renders view as an xlsx document to w.
func Write(w io.Writer, view *dashboard.View) error {
	f, err := Workbook(view)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
