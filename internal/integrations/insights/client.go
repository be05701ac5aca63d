// Package insights asks a chat-completions endpoint for a short narrative
// about a forecast. Every failure degrades to a nil insight.
package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/Dan9191/cashflow-service/internal/config"
	"github.com/Dan9191/cashflow-service/internal/metrics"
	"github.com/Dan9191/cashflow-service/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const maxBodySize = 1 << 20

const systemPrompt = "You are a treasury analyst for a bank branch. " +
	"Given a cash forecast summary, reply with two or three short sentences " +
	"highlighting liquidity risk and the largest drivers. No preamble."

// Summary is the forecast digest sent to the model.
type Summary struct {
	Branch         string
	CurrentBalance decimal.Decimal
	DeltaToday     decimal.Decimal
	UpcomingDebits decimal.Decimal
	Forecast       []models.TimeSeriesPoint
	Categories     map[string]decimal.Decimal
}

// Client calls the insight endpoint.
type Client struct {
	url    string
	apiKey string
	model  string
	http   *http.Client
	log    *logrus.Logger
}

// NewClient returns nil when no endpoint is configured.
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	if cfg.InsightsURL == "" {
		return nil
	}
	return &Client{
		url:    cfg.InsightsURL,
		apiKey: cfg.InsightsAPIKey,
		model:  cfg.InsightsModel,
		http:   &http.Client{Timeout: cfg.InsightsTimeout},
		log:    log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate returns a narrative for s, or nil if the call fails for any reason.
func (c *Client) Generate(ctx context.Context, s Summary) *string {
	if c == nil {
		return nil
	}
	text, err := c.generate(ctx, s)
	if err != nil {
		metrics.IncInsight(metrics.ResultError)
		c.log.WithField("branch", s.Branch).Warnf("Insight generation failed: %v", err)
		return nil
	}
	metrics.IncInsight(metrics.ResultSuccess)
	return &text
}

func (c *Client) generate(ctx context.Context, s Summary) (string, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: Prompt(s)},
		},
		Temperature: 0.2,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("insight endpoint returned %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decoding insight response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("insight response has no choices")
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("insight response is empty")
	}
	return text, nil
}

// Prompt renders the forecast digest as plain text.
func Prompt(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Branch: %s\n", s.Branch)
	fmt.Fprintf(&b, "Current balance: %s\n", s.CurrentBalance.StringFixed(2))
	fmt.Fprintf(&b, "Change since yesterday: %s\n", s.DeltaToday.StringFixed(2))
	fmt.Fprintf(&b, "Upcoming debits: %s\n", s.UpcomingDebits.StringFixed(2))
	if n := len(s.Forecast); n > 0 {
		last := s.Forecast[n-1]
		fmt.Fprintf(&b, "Projected balance on %s: %s\n", last.Date, last.Cash.StringFixed(2))
		low := s.Forecast[0]
		for _, p := range s.Forecast[1:] {
			if p.Cash.LessThan(low.Cash) {
				low = p
			}
		}
		fmt.Fprintf(&b, "Lowest projected balance: %s on %s\n", low.Cash.StringFixed(2), low.Date)
	}
	if len(s.Categories) > 0 {
		names := make([]string, 0, len(s.Categories))
		for k := range s.Categories {
			names = append(names, k)
		}
		sort.Strings(names)
		b.WriteString("Category drivers:\n")
		for _, k := range names {
			fmt.Fprintf(&b, "- %s: %s\n", k, s.Categories[k].StringFixed(2))
		}
	}
	return b.String()
}
