package analytics

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/Dan9191/cashflow-service/internal/models"
	"github.com/Dan9191/cashflow-service/internal/servicetoken"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const maxUploadBytes = 32 << 20

// Server exposes an Engine over HTTP.
type Server struct {
	engine      *Engine
	tokenSecret []byte
	log         *logrus.Logger
}

// NewServer wires the engine. Requests must carry a valid service token when
// tokenSecret is not empty.
func NewServer(engine *Engine, tokenSecret string, log *logrus.Logger) *Server {
	return &Server{engine: engine, tokenSecret: []byte(tokenSecret), log: log}
}

// Router returns the provider routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api := r.PathPrefix("/").Subrouter()
	api.Use(s.authenticate)
	api.HandleFunc("/forecast", s.forecast).Methods(http.MethodPost)
	api.HandleFunc("/simulate", s.simulate).Methods(http.MethodPost)
	api.HandleFunc("/whatif", s.whatIf).Methods(http.MethodPost)
	api.HandleFunc("/whatif/upload", s.upload).Methods(http.MethodPost)
	api.HandleFunc("/invoices_due", s.invoicesDue).Methods(http.MethodGet)
	api.HandleFunc("/debit_orders_due", s.debitOrdersDue).Methods(http.MethodGet)
	return r
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.tokenSecret) > 0 {
			if _, err := servicetoken.Verify(s.tokenSecret, r.Header.Get("Authorization")); err != nil {
				s.log.WithError(err).WithField("path", r.URL.Path).Warn("Rejected request with invalid service token")
				writeDetail(w, http.StatusUnauthorized, "invalid service token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) forecast(w http.ResponseWriter, r *http.Request) {
	var req models.ForecastRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.engine.Forecast(req)
	s.respond(w, r, res, err)
}

func (s *Server) simulate(w http.ResponseWriter, r *http.Request) {
	var req models.SimulationRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.engine.Simulate(req)
	s.respond(w, r, res, err)
}

func (s *Server) whatIf(w http.ResponseWriter, r *http.Request) {
	var req models.WhatIfRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.engine.WhatIf(req)
	s.respond(w, r, res, err)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	res, err := s.engine.Upload(models.UploadRequest{
		Filename:    header.Filename,
		Data:        data,
		Branch:      r.FormValue("branch"),
		HorizonDays: r.FormValue("horizon_days"),
	})
	s.respond(w, r, res, err)
}

func (s *Server) invoicesDue(w http.ResponseWriter, r *http.Request) {
	window, ok := queryInt(w, r, "window_days", models.DefaultInvoiceWindowDays)
	if !ok {
		return
	}
	res, err := s.engine.InvoicesDue(window)
	s.respond(w, r, res, err)
}

func (s *Server) debitOrdersDue(w http.ResponseWriter, r *http.Request) {
	window, ok := queryInt(w, r, "window_days", models.DefaultDebitOrderWindowDays)
	if !ok {
		return
	}
	res, err := s.engine.DebitOrdersDue(r.URL.Query().Get("branch"), window)
	s.respond(w, r, res, err)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, res interface{}, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, res)
		return
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		s.log.WithFields(logrus.Fields{"path": r.URL.Path, "status": reqErr.Status}).Info(reqErr.Detail)
		writeDetail(w, reqErr.Status, reqErr.Detail)
		return
	}
	s.log.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
	writeDetail(w, http.StatusInternalServerError, "internal error")
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func queryInt(w http.ResponseWriter, r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, key+" must be an integer")
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
