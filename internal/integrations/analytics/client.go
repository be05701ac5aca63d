package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Dan9191/cashflow-service/internal/apperrors"
	"github.com/Dan9191/cashflow-service/internal/config"
	"github.com/Dan9191/cashflow-service/internal/metrics"
	"github.com/Dan9191/cashflow-service/internal/middleware"
	"github.com/Dan9191/cashflow-service/internal/models"
	"github.com/Dan9191/cashflow-service/internal/servicetoken"
	"github.com/getsentry/sentry-go"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	contentTypeJSON = "application/json"
	maxResponseSize = 16 << 20
)

// Client talks to the forecast provider over HTTP. It adds no business logic:
// requests are forwarded as given and provider failures come back as
// *apperrors.UpstreamError or *apperrors.TransportError.
type Client struct {
	baseURL     string
	issuer      string
	tokenSecret []byte
	http        *retryablehttp.Client
	log         *logrus.Logger
	now         func() time.Time
}

// NewClient initializes a new provider client
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Timeout: cfg.AnalyticsTimeout}
	rc.RetryMax = cfg.AnalyticsRetries
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.CheckRetry = retryTransportOnly
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = &retryLogger{log: log}

	var secret []byte
	if cfg.AnalyticsTokenSecret != "" {
		secret = []byte(cfg.AnalyticsTokenSecret)
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.AnalyticsURL, "/"),
		issuer:      cfg.ServiceName,
		tokenSecret: secret,
		http:        rc,
		log:         log,
		now:         time.Now,
	}
}

// Forecast calls POST /forecast
func (c *Client) Forecast(ctx context.Context, req models.ForecastRequest) (*models.ForecastResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal forecast request")
	}
	var out models.ForecastResult
	if err := c.do(ctx, "forecast", http.MethodPost, "/forecast", nil, contentTypeJSON, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Simulate calls POST /simulate
func (c *Client) Simulate(ctx context.Context, req models.SimulationRequest) (*models.SimulationResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal simulation request")
	}
	var out models.SimulationResult
	if err := c.do(ctx, "simulate", http.MethodPost, "/simulate", nil, contentTypeJSON, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WhatIf calls POST /whatif
func (c *Client) WhatIf(ctx context.Context, req models.WhatIfRequest) (*models.SimulationResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal what-if request")
	}
	var out models.SimulationResult
	if err := c.do(ctx, "whatif", http.MethodPost, "/whatif", nil, contentTypeJSON, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WhatIfUpload re-sends the upload to POST /whatif/upload: the raw file as
// multipart field "file" plus the branch and horizon_days form fields when set
func (c *Client) WhatIfUpload(ctx context.Context, req models.UploadRequest) (*models.SimulationResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", req.Filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create multipart field")
	}
	if _, err := part.Write(req.Data); err != nil {
		return nil, errors.Wrap(err, "failed to write multipart field")
	}
	fields := []struct{ name, value string }{
		{"branch", req.Branch},
		{"horizon_days", req.HorizonDays},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := mw.WriteField(f.name, f.value); err != nil {
			return nil, errors.Wrapf(err, "failed to write %s field", f.name)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to close multipart body")
	}

	var out models.SimulationResult
	if err := c.do(ctx, "whatif_upload", http.MethodPost, "/whatif/upload", nil, mw.FormDataContentType(), buf.Bytes(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// InvoicesDue calls GET /invoices_due
func (c *Client) InvoicesDue(ctx context.Context, windowDays int) (*models.InvoicesDue, error) {
	q := url.Values{}
	q.Set("window_days", strconv.Itoa(windowDays))
	var out models.InvoicesDue
	if err := c.do(ctx, "invoices_due", http.MethodGet, "/invoices_due", q, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DebitOrdersDue calls GET /debit_orders_due
func (c *Client) DebitOrdersDue(ctx context.Context, branch string, windowDays int) (*models.DebitOrdersDue, error) {
	q := url.Values{}
	q.Set("branch", branch)
	q.Set("window_days", strconv.Itoa(windowDays))
	var out models.DebitOrdersDue
	if err := c.do(ctx, "debit_orders_due", http.MethodGet, "/debit_orders_due", q, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends one request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, contentType string, body []byte, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reqBody interface{}
	if body != nil {
		reqBody = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", contentTypeJSON)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if id := middleware.RequestID(ctx); id != "" {
		req.Header.Set(middleware.RequestIDHeader, id)
	}
	if len(c.tokenSecret) > 0 {
		token, err := servicetoken.Sign(c.tokenSecret, c.issuer, op, c.now())
		if err != nil {
			return errors.Wrap(err, "failed to sign provider token")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)
	if err != nil {
		terr := classifyTransport(op, err)
		metrics.ObserveProvider(op, metrics.ResultTransport, duration)
		c.log.WithFields(logrus.Fields{
			"op":          op,
			"request_id":  middleware.RequestID(ctx),
			"timeout":     terr.Timeout,
			"duration_ms": duration.Milliseconds(),
		}).Errorf("Provider call failed: %v", err)
		capture(ctx, op, terr)
		return terr
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		metrics.ObserveProvider(op, metrics.ResultTransport, duration)
		terr := &apperrors.TransportError{Op: op, Err: errors.Wrap(err, "failed to read response")}
		capture(ctx, op, terr)
		return terr
	}

	c.log.Debugf("Provider %s response %d: %s", op, resp.StatusCode, string(respBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ObserveProvider(op, metrics.ResultUpstream, duration)
		c.log.WithFields(logrus.Fields{
			"op":         op,
			"request_id": middleware.RequestID(ctx),
			"status":     resp.StatusCode,
		}).Warn("Provider returned non-success status")
		uerr := &apperrors.UpstreamError{Op: op, Status: resp.StatusCode, Body: respBody}
		if resp.StatusCode >= http.StatusInternalServerError {
			capture(ctx, op, uerr)
		}
		return uerr
	}

	metrics.ObserveProvider(op, metrics.ResultSuccess, duration)
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrapf(err, "failed to decode %s response", op)
	}
	return nil
}

// retryTransportOnly retries when the provider could not be reached. Any HTTP
// response, including 5xx, is final so its status reaches the caller unchanged.
func retryTransportOnly(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return err != nil, nil
}

func classifyTransport(op string, err error) *apperrors.TransportError {
	timeout := errors.Is(err, context.DeadlineExceeded)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		timeout = true
	}
	return &apperrors.TransportError{Op: op, Timeout: timeout, Err: err}
}

func capture(ctx context.Context, op string, err error) {
	report := func(hub *sentry.Hub) {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("provider.op", op)
			if id := middleware.RequestID(ctx); id != "" {
				scope.SetTag("request_id", id)
			}
			hub.CaptureException(err)
		})
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		report(hub)
		return
	}
	report(sentry.CurrentHub())
}

// retryLogger adapts logrus to retryablehttp.LeveledLogger
type retryLogger struct {
	log *logrus.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(toFields(keysAndValues)).Error(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(toFields(keysAndValues)).Debug(msg)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(toFields(keysAndValues)).Debug(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(toFields(keysAndValues)).Warn(msg)
}

func toFields(keysAndValues []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
