package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"salonbook/internal/config"
	"salonbook/internal/domain"
	"salonbook/internal/logging"
	"salonbook/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReadyCheck is a named dependency check for /readyz.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

// Services bundles what the HTTP API calls into. Sheets may be nil.
type Services struct {
	Holds        domain.HoldService
	Appointments domain.AppointmentService
	Schedule     domain.ScheduleService
	Catalog      domain.CatalogService
	Sweeper      domain.HoldSweeper
	Attendance   domain.AttendanceSweeper
	Resyncer     domain.IndexResyncer
	Sheets       domain.SheetsPublisher
	ReadyChecks  []ReadyCheck
}

// HTTPServer exposes the booking JSON API.
type HTTPServer struct {
	cfg    config.APIConfig
	svc    Services
	auth   *HTTPAuth
	server *http.Server
	logger *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	srv := &HTTPServer{cfg: cfg, svc: svc, auth: NewHTTPAuth(cfg), logger: logger}

	mux := http.NewServeMux()
	srv.routes(mux)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           loggingMiddleware(logger, srv.auth.Wrap(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	handle(mux, "GET /healthz", s.handleHealth)
	handle(mux, "GET /readyz", s.handleReady)

	handle(mux, "GET /api/v1/windows", s.handleWindows)
	handle(mux, "GET /api/v1/availability", s.handleAvailability)
	handle(mux, "POST /api/v1/holds", s.handleCreateHold)
	handle(mux, "DELETE /api/v1/holds/{id}", s.handleReleaseHold)
	handle(mux, "POST /api/v1/appointments", s.handleConfirmAppointment)
	handle(mux, "GET /api/v1/appointments/{id}", s.handleGetAppointment)
	handle(mux, "GET /api/v1/services", s.handleListServices)
	handle(mux, "POST /api/v1/customers", s.handleCreateCustomer)

	handle(mux, "GET /api/v1/admin/appointments", s.handleListAppointments)
	handle(mux, "POST /api/v1/admin/appointments/{id}/cancel", s.handleCancelAppointment)
	handle(mux, "DELETE /api/v1/admin/appointments/{id}", s.handleDeleteAppointment)
	handle(mux, "POST /api/v1/admin/appointments/{id}/attendance", s.handleSetAttendance)
	handle(mux, "POST /api/v1/admin/holds/cleanup", s.handleCleanupExpiredHolds)
	handle(mux, "POST /api/v1/admin/availability/resync", s.handleResync)
	handle(mux, "POST /api/v1/admin/attendance/sweep", s.handleAttendanceSweep)
	handle(mux, "GET /api/v1/admin/export.xlsx", s.handleExportXLSX)
	handle(mux, "POST /api/v1/admin/export/sheets", s.handleExportSheets)
	handle(mux, "GET /api/v1/admin/settings/{name}", s.handleGetSettings)
	handle(mux, "PUT /api/v1/admin/settings/{name}", s.handlePutSettings)
	handle(mux, "POST /api/v1/admin/services", s.handleSaveService)
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	var failures []string
	for _, check := range s.svc.ReadyChecks {
		if check.Check == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := check.Check(ctx)
		cancel()
		if err != nil {
			name := check.Name
			if name == "" {
				name = "dependency"
			}
			failures = append(failures, name+": "+err.Error())
		}
	}
	if len(failures) > 0 {
		writeError(w, http.StatusServiceUnavailable, domain.CodeTransientStorage, strings.Join(failures, "; "))
		return
	}
	writeOK(w, map[string]string{"status": "ready"})
}

const requestIDHeader = "X-Request-ID"

// loggingMiddleware tags each request with an id, stores a request logger in
// the context and writes one access line.
func loggingMiddleware(logger *zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		r = r.WithContext(logging.WithRequestID(r.Context(), logger, requestID))

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		logging.FromContext(r.Context(), logger).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// handle registers fn and counts requests under its route pattern.
func handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		metrics.IncHTTP(pattern)
		fn(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
