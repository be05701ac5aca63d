package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/Dan9191/cashflow-service/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleResult(t *testing.T) *models.ForecastResult {
	t.Helper()
	d, err := models.ParseDate("2024-01-01")
	require.NoError(t, err)
	return &models.ForecastResult{
		Branch: "CPT01",
		History: []models.TimeSeriesPoint{
			{Date: d, Cash: decimal.NewFromInt(1000)},
			{Date: d.AddDays(1), Cash: decimal.NewFromInt(1100)},
		},
		Forecast: []models.TimeSeriesPoint{
			{Date: d.AddDays(2), Cash: decimal.RequireFromString("1150.55")},
		},
		Drivers: models.Drivers{
			TopInflowsByCategory:  map[string]decimal.Decimal{"Sales": decimal.NewFromInt(500)},
			TopOutflowsByCategory: map[string]decimal.Decimal{"Rent": decimal.NewFromInt(-300), "Fuel": decimal.NewFromInt(-80)},
			TopCounterparties:     map[string]decimal.Decimal{"Landlord": decimal.NewFromInt(-300)},
		},
	}
}

var generated = time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)

func TestBuildForecastXLSX(t *testing.T) {
	data, err := BuildForecastXLSX(sampleResult(t), generated)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"summary", "series", "drivers"}, f.GetSheetList())

	branch, err := f.GetCellValue("summary", "B3")
	require.NoError(t, err)
	assert.Equal(t, "CPT01", branch)

	rows, err := f.GetRows("series")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"2024-01-03", "1150.55", "forecast"}, rows[3])

	drivers, err := f.GetRows("drivers")
	require.NoError(t, err)
	require.Len(t, drivers, 5)
	assert.Equal(t, "Rent", drivers[2][1])
	assert.Equal(t, "Fuel", drivers[3][1])
}

func TestBuildForecastPDF(t *testing.T) {
	data, err := BuildForecastPDF(sampleResult(t), generated)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestBuild(t *testing.T) {
	_, err := Build("csv", sampleResult(t), generated)
	assert.Error(t, err)

	data, err := Build(FormatPDF, sampleResult(t), generated)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	assert.Equal(t, "application/pdf", ContentType(FormatPDF))
	assert.Equal(t, "forecast_CPT01_20240103.xlsx", Filename("CPT01", FormatXLSX, generated))
}
