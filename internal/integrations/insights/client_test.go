package insights

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dan9191/cashflow-service/internal/config"
	"github.com/Dan9191/cashflow-service/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSummary() Summary {
	d1, _ := models.ParseDate("2024-03-01")
	return Summary{
		Branch:         "CPT02",
		CurrentBalance: decimal.NewFromInt(25000),
		DeltaToday:     decimal.NewFromInt(-1200),
		UpcomingDebits: decimal.NewFromInt(17000),
		Forecast: []models.TimeSeriesPoint{
			{Date: d1, Cash: decimal.NewFromInt(24000)},
			{Date: d1.AddDays(1), Cash: decimal.NewFromInt(9000)},
			{Date: d1.AddDays(2), Cash: decimal.NewFromInt(12000)},
		},
		Categories: map[string]decimal.Decimal{"Rent": decimal.NewFromInt(-5000), "Sales": decimal.NewFromInt(8000)},
	}
}

func newClient(url string) (*Client, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetOutput(io.Discard)
	return NewClient(&config.Config{
		InsightsURL:     url,
		InsightsAPIKey:  "key",
		InsightsModel:   "test-model",
		InsightsTimeout: time.Second,
	}, log), hook
}

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "Branch: CPT02")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Liquidity dips mid-month.  "}}]}`))
	}))
	defer server.Close()

	client, _ := newClient(server.URL)
	got := client.Generate(context.Background(), testSummary())
	require.NotNil(t, got)
	assert.Equal(t, "Liquidity dips mid-month.", *got)
}

func TestGenerate_DegradesToNil(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"no choices", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"choices":[]}`)) }},
		{"not json", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`<html>`)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client, hook := newClient(server.URL)
			assert.Nil(t, client.Generate(context.Background(), testSummary()))
			require.NotNil(t, hook.LastEntry())
			assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
		})
	}
}

func TestGenerate_Unconfigured(t *testing.T) {
	client := NewClient(&config.Config{}, logrus.New())
	assert.Nil(t, client)
	assert.Nil(t, client.Generate(context.Background(), testSummary()))
}

func TestPrompt(t *testing.T) {
	p := Prompt(testSummary())
	assert.Contains(t, p, "Current balance: 25000.00")
	assert.Contains(t, p, "Projected balance on 2024-03-03: 12000.00")
	assert.Contains(t, p, "Lowest projected balance: 9000.00 on 2024-03-02")
	assert.Contains(t, p, "- Rent: -5000.00")
}
