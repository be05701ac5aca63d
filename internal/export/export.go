// Package export renders forecasts as downloadable documents.
package export

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/Dan9191/cashflow-service/internal/models"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Supported export formats.
const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

// ContentType returns the MIME type of a format.
func ContentType(format string) string {
	switch format {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Filename names the exported file for a branch.
func Filename(branch, format string, now time.Time) string {
	return fmt.Sprintf("forecast_%s_%s.%s", branch, now.Format("20060102"), format)
}

// Build renders res in the requested format.
func Build(format string, res *models.ForecastResult, generated time.Time) ([]byte, error) {
	switch format {
	case FormatXLSX:
		return BuildForecastXLSX(res, generated)
	case FormatPDF:
		return BuildForecastPDF(res, generated)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// BuildForecastPDF renders a one-table PDF of history and forecast.
func BuildForecastPDF(res *models.ForecastResult, generated time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Cashflow Forecast")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Branch: %s", res.Branch))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generated.Format(time.RFC3339)))
	pdf.Ln(5)
	if n := len(res.History); n > 0 {
		pdf.Cell(0, 6, fmt.Sprintf("Current balance: %s", res.History[n-1].Cash.StringFixed(2)))
		pdf.Ln(5)
	}
	if n := len(res.Forecast); n > 0 {
		pdf.Cell(0, 6, fmt.Sprintf("Projected balance on %s: %s", res.Forecast[n-1].Date, res.Forecast[n-1].Cash.StringFixed(2)))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 6, "Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Cash", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Series", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	writeRows := func(points []models.TimeSeriesPoint, series string) {
		for _, p := range points {
			pdf.CellFormat(40, 6, p.Date.String(), "1", 0, "C", false, 0, "")
			pdf.CellFormat(50, 6, p.Cash.StringFixed(2), "1", 0, "R", false, 0, "")
			pdf.CellFormat(40, 6, series, "1", 0, "C", false, 0, "")
			pdf.Ln(-1)
		}
	}
	writeRows(res.History, "history")
	writeRows(res.Forecast, "forecast")

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, "Drivers")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 10)
	for _, d := range driverRows(res.Drivers) {
		pdf.CellFormat(50, 6, d.group, "1", 0, "L", false, 0, "")
		pdf.CellFormat(60, 6, d.name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, d.amount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildForecastXLSX renders summary, series and drivers sheets.
func BuildForecastXLSX(res *models.ForecastResult, generated time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	seriesSheet := "series"
	driversSheet := "drivers"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(seriesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(driversSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Cashflow Forecast")
	_ = f.SetCellValue(summarySheet, "A3", "Branch")
	_ = f.SetCellValue(summarySheet, "B3", res.Branch)
	_ = f.SetCellValue(summarySheet, "A4", "Generated")
	_ = f.SetCellValue(summarySheet, "B4", generated.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "History days")
	_ = f.SetCellValue(summarySheet, "B5", len(res.History))
	_ = f.SetCellValue(summarySheet, "A6", "Horizon days")
	_ = f.SetCellValue(summarySheet, "B6", len(res.Forecast))

	_ = f.SetCellValue(seriesSheet, "A1", "Date")
	_ = f.SetCellValue(seriesSheet, "B1", "Cash")
	_ = f.SetCellValue(seriesSheet, "C1", "Series")
	row := 2
	for _, s := range []struct {
		name   string
		points []models.TimeSeriesPoint
	}{{"history", res.History}, {"forecast", res.Forecast}} {
		for _, p := range s.points {
			_ = f.SetCellValue(seriesSheet, fmt.Sprintf("A%d", row), p.Date.String())
			_ = f.SetCellValue(seriesSheet, fmt.Sprintf("B%d", row), p.Cash.InexactFloat64())
			_ = f.SetCellValue(seriesSheet, fmt.Sprintf("C%d", row), s.name)
			row++
		}
	}

	_ = f.SetCellValue(driversSheet, "A1", "Group")
	_ = f.SetCellValue(driversSheet, "B1", "Name")
	_ = f.SetCellValue(driversSheet, "C1", "Amount")
	for i, d := range driverRows(res.Drivers) {
		r := i + 2
		_ = f.SetCellValue(driversSheet, fmt.Sprintf("A%d", r), d.group)
		_ = f.SetCellValue(driversSheet, fmt.Sprintf("B%d", r), d.name)
		_ = f.SetCellValue(driversSheet, fmt.Sprintf("C%d", r), d.amount.InexactFloat64())
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type driverRow struct {
	group  string
	name   string
	amount decimal.Decimal
}

// driverRows flattens drivers in a stable order: group, then amount size.
func driverRows(d models.Drivers) []driverRow {
	var out []driverRow
	for _, g := range []struct {
		name string
		m    map[string]decimal.Decimal
	}{
		{"Top inflows", d.TopInflowsByCategory},
		{"Top outflows", d.TopOutflowsByCategory},
		{"Top counterparties", d.TopCounterparties},
	} {
		rows := make([]driverRow, 0, len(g.m))
		for name, amount := range g.m {
			rows = append(rows, driverRow{group: g.name, name: name, amount: amount})
		}
		sort.Slice(rows, func(i, j int) bool {
			a, b := rows[i].amount.Abs(), rows[j].amount.Abs()
			if !a.Equal(b) {
				return a.GreaterThan(b)
			}
			return rows[i].name < rows[j].name
		})
		out = append(out, rows...)
	}
	return out
}
