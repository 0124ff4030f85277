// Package httpapi exposes the sync manager as a local JSON API for a front
// end. Every operation is submitted to the dispatcher; a client that
// disconnects cancels its ticket and its result is dropped.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/njoerd114/clinicsync/internal/dispatch"
	"github.com/njoerd114/clinicsync/internal/model"
	"github.com/njoerd114/clinicsync/internal/sync"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Service is the part of the sync manager the facade uses.
type Service interface {
	ListPatients(ctx context.Context) (sync.Read[[]model.Patient], error)
	SearchPatients(ctx context.Context, query string) (sync.Read[[]model.Patient], error)
	CreatePatient(ctx context.Context, p model.Patient) (sync.WriteOutcome, error)
	UpdatePatient(ctx context.Context, p model.Patient) (sync.WriteOutcome, error)
	DeletePatient(ctx context.Context, code int64) (sync.WriteOutcome, error)

	ListDoctors(ctx context.Context) (sync.Read[[]model.Doctor], error)
	SearchDoctors(ctx context.Context, query string) (sync.Read[[]model.Doctor], error)
	CreateDoctor(ctx context.Context, d model.Doctor) (sync.WriteOutcome, error)
	UpdateDoctor(ctx context.Context, d model.Doctor) (sync.WriteOutcome, error)
	DeleteDoctor(ctx context.Context, code int64) (sync.WriteOutcome, error)

	ListAppointments(ctx context.Context) (sync.Read[[]model.Appointment], error)
	SearchAppointments(ctx context.Context, patientName string) (sync.Read[[]model.Appointment], error)
	CreateAppointment(ctx context.Context, a model.Appointment) (sync.WriteOutcome, error)
	UpdateAppointment(ctx context.Context, a model.Appointment) (sync.WriteOutcome, error)
	DeleteAppointment(ctx context.Context, code int64) (sync.WriteOutcome, error)

	Report(ctx context.Context) (sync.Read[model.Report], error)

	CheckHoliday(ctx context.Context, date string, year int) sync.HolidayCheck
	NextHolidays(ctx context.Context) ([]model.Holiday, error)
}

// Server routes facade requests to a [Service] through a dispatcher.
type Server struct {
	svc     Service
	disp    *dispatch.Dispatcher
	metrics *Metrics
	log     *slog.Logger
}

// NewServer creates a Server. The dispatcher must be running for requests
// to complete.
func NewServer(svc Service, d *dispatch.Dispatcher, logger *slog.Logger) *Server {
	return &Server{
		svc:     svc,
		disp:    d,
		metrics: NewMetrics(),
		log:     logger,
	}
}

// Metrics returns the server's Prometheus collectors.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Handler builds the full handler tree, middleware included.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.metrics.Middleware)

	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/patients", s.listPatients).Methods(http.MethodGet)
	v1.HandleFunc("/patients", s.createPatient).Methods(http.MethodPost)
	v1.HandleFunc("/patients/search", s.searchPatients).Methods(http.MethodGet)
	v1.HandleFunc("/patients/{code:[0-9]+}", s.updatePatient).Methods(http.MethodPut)
	v1.HandleFunc("/patients/{code:[0-9]+}", s.deletePatient).Methods(http.MethodDelete)

	v1.HandleFunc("/doctors", s.listDoctors).Methods(http.MethodGet)
	v1.HandleFunc("/doctors", s.createDoctor).Methods(http.MethodPost)
	v1.HandleFunc("/doctors/search", s.searchDoctors).Methods(http.MethodGet)
	v1.HandleFunc("/doctors/{code:[0-9]+}", s.updateDoctor).Methods(http.MethodPut)
	v1.HandleFunc("/doctors/{code:[0-9]+}", s.deleteDoctor).Methods(http.MethodDelete)

	v1.HandleFunc("/appointments", s.listAppointments).Methods(http.MethodGet)
	v1.HandleFunc("/appointments", s.createAppointment).Methods(http.MethodPost)
	v1.HandleFunc("/appointments/search", s.searchAppointments).Methods(http.MethodGet)
	v1.HandleFunc("/appointments/{code:[0-9]+}", s.updateAppointment).Methods(http.MethodPut)
	v1.HandleFunc("/appointments/{code:[0-9]+}", s.deleteAppointment).Methods(http.MethodDelete)

	v1.HandleFunc("/report", s.report).Methods(http.MethodGet)
	v1.HandleFunc("/holidays/check", s.checkHoliday).Methods(http.MethodGet)
	v1.HandleFunc("/holidays/next", s.nextHolidays).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	h := Chain(r,
		WithRequestID,
		WithAccessLog(s.log),
		WithBodyLimit(maxBodyBytes),
	)
	return otelhttp.NewHandler(h, "clinicsync.http")
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	select {
	case <-s.disp.Done():
		writeError(w, http.StatusServiceUnavailable, "Dispatcher stopped", nil)
	default:
		writeJSON(w, http.StatusOK, Response{Success: true, Message: "ok"})
	}
}
