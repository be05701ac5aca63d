package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/Dan9191/cashflow-service/internal/apperrors"
	"github.com/Dan9191/cashflow-service/internal/export"
	"github.com/Dan9191/cashflow-service/internal/middleware"
	"github.com/Dan9191/cashflow-service/internal/models"
	"github.com/Dan9191/cashflow-service/internal/service"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// multipart parts beyond this size are spooled to disk
const maxMemory = 8 << 20

type Handler struct {
	svc            *service.Service
	log            *logrus.Logger
	serviceName    string
	maxUploadBytes int64
}

func NewHandler(svc *service.Service, log *logrus.Logger, serviceName string, maxUploadBytes int64) *Handler {
	return &Handler{svc: svc, log: log, serviceName: serviceName, maxUploadBytes: maxUploadBytes}
}

// Routes registers the gateway API on r
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/forecast", h.Forecast).Methods(http.MethodPost)
	api.HandleFunc("/forecast/export", h.ExportForecast).Methods(http.MethodPost)
	api.HandleFunc("/simulate", h.Simulate).Methods(http.MethodPost)
	api.HandleFunc("/whatif", h.WhatIf).Methods(http.MethodPost)
	api.HandleFunc("/whatif/upload", h.WhatIfUpload).Methods(http.MethodPost)
	api.HandleFunc("/whatif/chart", h.WhatIfChart).Methods(http.MethodPost)
	api.HandleFunc("/dashboard", h.Dashboard).Methods(http.MethodPost)
	api.HandleFunc("/invoices_due", h.InvoicesDue).Methods(http.MethodGet)
	api.HandleFunc("/debit_orders_due", h.DebitOrdersDue).Methods(http.MethodGet)
	api.HandleFunc("/reminders", h.ListReminders).Methods(http.MethodGet)
	api.HandleFunc("/reminders", h.SaveReminder).Methods(http.MethodPost)
	api.HandleFunc("/reminders/{id:[0-9]+}", h.DeleteReminder).Methods(http.MethodDelete)
	api.HandleFunc("/invoices/paid", h.ListPaid).Methods(http.MethodGet)
	api.HandleFunc("/invoices/paid", h.MarkPaid).Methods(http.MethodPost)
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": h.serviceName})
}

// Forecast handles POST /api/forecast
func (h *Handler) Forecast(w http.ResponseWriter, r *http.Request) {
	var req models.ForecastRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Forecast(r.Context(), req)
	h.respond(w, r, res, err)
}

// Simulate handles POST /api/simulate
func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req models.SimulationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Simulate(r.Context(), req)
	h.respond(w, r, res, err)
}

// WhatIf handles POST /api/whatif
func (h *Handler) WhatIf(w http.ResponseWriter, r *http.Request) {
	var req models.WhatIfRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.WhatIf(r.Context(), req)
	h.respond(w, r, res, err)
}

// WhatIfUpload handles POST /api/whatif/upload
func (h *Handler) WhatIfUpload(w http.ResponseWriter, r *http.Request) {
	tooLarge := &apperrors.ValidationError{
		Field:   "file",
		Message: "upload exceeds " + strconv.FormatInt(h.maxUploadBytes, 10) + " bytes",
		Status:  http.StatusRequestEntityTooLarge,
	}
	if r.ContentLength > h.maxUploadBytes {
		h.fail(w, r, tooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.fail(w, r, tooLarge)
			return
		}
		h.fail(w, r, apperrors.NewValidationError("file", "multipart form with a file field is required"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, apperrors.NewValidationError("file", "file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, r, apperrors.NewValidationError("file", "failed to read upload"))
		return
	}
	res, err := h.svc.WhatIfUpload(r.Context(), models.UploadRequest{
		Filename:    header.Filename,
		Data:        data,
		Branch:      r.FormValue("branch"),
		HorizonDays: r.FormValue("horizon_days"),
	})
	h.respond(w, r, res, err)
}

// WhatIfChart handles POST /api/whatif/chart
func (h *Handler) WhatIfChart(w http.ResponseWriter, r *http.Request) {
	var req models.SimulationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.WhatIfChart(r.Context(), req)
	h.respond(w, r, res, err)
}

// Dashboard handles POST /api/dashboard
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	var req models.DashboardRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Dashboard(r.Context(), req)
	h.respond(w, r, res, err)
}

// ExportForecast handles POST /api/forecast/export?format=xlsx|pdf
func (h *Handler) ExportForecast(w http.ResponseWriter, r *http.Request) {
	var req models.ForecastRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = export.FormatXLSX
	}
	out, err := h.svc.ExportForecast(r.Context(), req, format)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": out.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Data)
}

// InvoicesDue handles GET /api/invoices_due
func (h *Handler) InvoicesDue(w http.ResponseWriter, r *http.Request) {
	window, err := queryInt(r, "window_days", models.DefaultInvoiceWindowDays)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.InvoicesDue(r.Context(), window)
	h.respond(w, r, res, err)
}

// DebitOrdersDue handles GET /api/debit_orders_due
func (h *Handler) DebitOrdersDue(w http.ResponseWriter, r *http.Request) {
	window, err := queryInt(r, "window_days", models.DefaultDebitOrderWindowDays)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.DebitOrdersDue(r.Context(), r.URL.Query().Get("branch"), window)
	h.respond(w, r, res, err)
}

// ListReminders handles GET /api/reminders
func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListReminders(r.Context())
	h.respond(w, r, res, err)
}

// SaveReminder handles POST /api/reminders
func (h *Handler) SaveReminder(w http.ResponseWriter, r *http.Request) {
	var ref models.InvoiceRef
	if err := decodeJSON(r, &ref); err != nil {
		h.fail(w, r, err)
		return
	}
	res, created, err := h.svc.SaveReminder(r.Context(), ref)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, createdStatus(created), res)
}

// DeleteReminder handles DELETE /api/reminders/{id}
func (h *Handler) DeleteReminder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.fail(w, r, apperrors.NewValidationError("id", "id must be an integer"))
		return
	}
	if err := h.svc.DeleteReminder(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListPaid handles GET /api/invoices/paid
func (h *Handler) ListPaid(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListPaid(r.Context())
	h.respond(w, r, res, err)
}

// MarkPaid handles POST /api/invoices/paid
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	var ref models.InvoiceRef
	if err := decodeJSON(r, &ref); err != nil {
		h.fail(w, r, err)
		return
	}
	res, created, err := h.svc.MarkPaid(r.Context(), ref)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, createdStatus(created), res)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, res interface{}, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// fail writes err as a problem response. Provider and validation failures are
// already logged where they happen.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if !apperrors.IsValidation(err) && !apperrors.IsUpstream(err) && !apperrors.IsTransport(err) {
		h.log.WithFields(logrus.Fields{
			"request_id": middleware.RequestID(r.Context()),
			"path":       r.URL.Path,
		}).WithError(err).Error("Request failed")
	}
	apperrors.WriteProblem(w, err)
}

func createdStatus(created bool) int {
	if created {
		return http.StatusCreated
	}
	return http.StatusOK
}

func decodeJSON(r *http.Request, dst interface{}) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return apperrors.NewValidationError("body", "request body is required")
	}
	if err != nil {
		return apperrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidationError(key, key+" must be an integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
