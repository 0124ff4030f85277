package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/njoerd114/clinicsync/internal/dispatch"
	"github.com/njoerd114/clinicsync/internal/model"
	"github.com/njoerd114/clinicsync/internal/sync"
)

// writeBody is the data part of a successful write reply.
type writeBody struct {
	Code      int64  `json:"code,omitempty"`
	LocalRows int64  `json:"local_rows"`
	LocalErr  string `json:"local_error,omitempty"`
	RemoteErr string `json:"remote_error,omitempty"`

	// Holiday is set on appointment writes. It is advisory only.
	Holiday *holidayBody `json:"holiday,omitempty"`
}

type holidayBody struct {
	Date     string `json:"date"`
	Holiday  bool   `json:"holiday"`
	Name     string `json:"name,omitempty"`
	Verified bool   `json:"verified"`
}

// serveRead runs a Manager read on the dispatcher and replies with its data
// and source.
func serveRead[T any](s *Server, w http.ResponseWriter, r *http.Request, name string, op func(context.Context) (sync.Read[T], error)) {
	res, err := dispatch.Call(r.Context(), s.disp, name, op)
	if err != nil {
		s.fail(w, r, name, err)
		return
	}
	body := Response{Success: true, Data: res.Data, Source: string(res.Source)}
	if !res.FromRemote() {
		body.Message = "Showing local data (server unreachable)"
	}
	writeJSON(w, http.StatusOK, body)
}

// serveWrite runs a Manager write on the dispatcher and replies with its
// outcome.
func serveWrite(s *Server, w http.ResponseWriter, r *http.Request, name string, created bool, op func(context.Context) (sync.WriteOutcome, error)) {
	out, err := dispatch.Call(r.Context(), s.disp, name, op)
	if err != nil {
		s.fail(w, r, name, err)
		return
	}
	writeOutcome(w, created, out, nil)
}

// serveAppointmentWrite runs an appointment write and then checks the
// appointment's date against public holidays. The check never affects the
// write.
func serveAppointmentWrite(s *Server, w http.ResponseWriter, r *http.Request, name string, created bool, a model.Appointment, op func(context.Context, model.Appointment) (sync.WriteOutcome, error)) {
	type result struct {
		out sync.WriteOutcome
		hc  sync.HolidayCheck
	}
	res, err := dispatch.Call(r.Context(), s.disp, name, func(ctx context.Context) (result, error) {
		out, err := op(ctx, a)
		if err != nil {
			return result{}, err
		}
		return result{out: out, hc: s.svc.CheckHoliday(ctx, a.Date, 0)}, nil
	})
	if err != nil {
		s.fail(w, r, name, err)
		return
	}
	writeOutcome(w, created, res.out, newHolidayBody(a.Date, res.hc))
}

func writeOutcome(w http.ResponseWriter, created bool, out sync.WriteOutcome, holiday *holidayBody) {
	body := writeBody{Code: out.Code, LocalRows: out.LocalRows, Holiday: holiday}
	if out.LocalErr != nil {
		body.LocalErr = out.LocalErr.Error()
	}
	if out.RemoteErr != nil {
		body.RemoteErr = out.RemoteErr.Error()
	}
	message := out.Message
	if holiday != nil && holiday.Holiday {
		message += fmt.Sprintf(". Note: %s is a public holiday (%s)", holiday.Date, holiday.Name)
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, Response{
		Success: true,
		Message: message,
		Data:    body,
		Status:  string(out.Status),
	})
}

func newHolidayBody(date string, hc sync.HolidayCheck) *holidayBody {
	return &holidayBody{Date: date, Holiday: hc.Holiday, Name: hc.Name, Verified: hc.Verified}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case sync.IsNotFound(err):
		writeNotFound(w, "No record with that code")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// The client is usually gone by now; the reply is best effort.
		s.log.Debug("request abandoned", "op", op, "request_id", RequestIDFromContext(r.Context()), "error", err)
		writeError(w, http.StatusServiceUnavailable, "Request cancelled", nil)
	case errors.Is(err, dispatch.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "Server shutting down", nil)
	default:
		s.log.Error("operation failed", "op", op, "request_id", RequestIDFromContext(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "Operation failed", nil)
	}
}

// decodeRecord reads a JSON record from the body and validates it. It
// writes the error reply itself and returns false on failure.
func decodeRecord[T any](w http.ResponseWriter, r *http.Request, v *T, fill func(*T)) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return false
	}
	if fill != nil {
		fill(v)
	}
	if err := model.Validate(v); err != nil {
		if fields := model.FieldErrors(err); fields != nil {
			writeValidationError(w, fields)
		} else {
			writeError(w, http.StatusBadRequest, "Invalid record", err)
		}
		return false
	}
	return true
}

// pathCode parses the {code} route variable.
func pathCode(w http.ResponseWriter, r *http.Request) (int64, bool) {
	code, err := strconv.ParseInt(mux.Vars(r)["code"], 10, 64)
	if err != nil || code <= 0 {
		writeError(w, http.StatusBadRequest, "Code must be a positive integer", err)
		return 0, false
	}
	return code, true
}

// --- patients ----------------------------------------------------------------

func (s *Server) listPatients(w http.ResponseWriter, r *http.Request) {
	serveRead(s, w, r, "list_patients", s.svc.ListPatients)
}

func (s *Server) searchPatients(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("name")
	serveRead(s, w, r, "search_patients", func(ctx context.Context) (sync.Read[[]model.Patient], error) {
		return s.svc.SearchPatients(ctx, q)
	})
}

func (s *Server) createPatient(w http.ResponseWriter, r *http.Request) {
	var p model.Patient
	if !decodeRecord(w, r, &p, func(p *model.Patient) { p.Code = 0 }) {
		return
	}
	serveWrite(s, w, r, "create_patient", true, func(ctx context.Context) (sync.WriteOutcome, error) {
		return s.svc.CreatePatient(ctx, p)
	})
}

func (s *Server) updatePatient(w http.ResponseWriter, r *http.Request) {
	code, ok := pathCode(w, r)
	if !ok {
		return
	}
	var p model.Patient
	if !decodeRecord(w, r, &p, func(p *model.Patient) { p.Code = code }) {
		return
	}
	serveWrite(s, w, r, "update_patient", false, func(ctx context.Context) (sync.WriteOutcome, error) {
		return s.svc.UpdatePatient(ctx, p)
	})
}

func (s *Server) deletePatient(w http.ResponseWriter, r *http.Request) {
	code, ok := pathCode(w, r)
	if !ok {
		return
	}
	serveWrite(s, w, r, "delete_patient", false, func(ctx context.Context) (sync.WriteOutcome, error) {
		return s.svc.DeletePatient(ctx, code)
	})
}

// --- doctors -----------------------------------------------------------------

func (s *Server) listDoctors(w http.ResponseWriter, r *http.Request) {
	serveRead(s, w, r, "list_doctors", s.svc.ListDoctors)
}

func (s *Server) searchDoctors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("name")
	serveRead(s, w, r, "search_doctors", func(ctx context.Context) (sync.Read[[]model.Doctor], error) {
		return s.svc.SearchDoctors(ctx, q)
	})
}

func (s *Server) createDoctor(w http.ResponseWriter, r *http.Request) {
	var d model.Doctor
	if !decodeRecord(w, r, &d, func(d *model.Doctor) { d.Code = 0 }) {
		return
	}
	serveWrite(s, w, r, "create_doctor", true, func(ctx context.Context) (sync.WriteOutcome, error) {
		return s.svc.CreateDoctor(ctx, d)
	})
}

func (s *Server) updateDoctor(w http.ResponseWriter, r *http.Request) {
	code, ok := pathCode(w, r)
	if !ok {
		return
	}
	var d model.Doctor
	if !decodeRecord(w, r, &d, func(d *model.Doctor) { d.Code = code }) {
		return
	}
	serveWrite(s, w, r, "update_doctor", false, func(ctx context.Context) (sync.WriteOutcome, error) {
		return s.svc.UpdateDoctor(ctx, d)
	})
}

func (s *Server) deleteDoctor(w http.ResponseWriter, r *http.Request) {
	code, ok := pathCode(w, r)
	if !ok {
		return
	}
	serveWrite(s, w, r, "delete_doctor", false, func(ctx context.Context) (sync.WriteOutcome, error) {
		return s.svc.DeleteDoctor(ctx, code)
	})
}

// --- appointments ------------------------------------------------------------

func (s *Server) listAppointments(w http.ResponseWriter, r *http.Request) {
	serveRead(s, w, r, "list_appointments", s.svc.ListAppointments)
}

func (s *Server) searchAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("patient")
	serveRead(s, w, r, "search_appointments", func(ctx context.Context) (sync.Read[[]model.Appointment], error) {
		return s.svc.SearchAppointments(ctx, q)
	})
}

// appointmentInput clears the display-only name fields, which are derived
// from the codes on read.
func appointmentInput(code int64) func(*model.Appointment) {
	return func(a *model.Appointment) {
		a.Code = code
		a.PatientName = ""
		a.DoctorName = ""
	}
}

func (s *Server) createAppointment(w http.ResponseWriter, r *http.Request) {
	var a model.Appointment
	if !decodeRecord(w, r, &a, appointmentInput(0)) {
		return
	}
	serveAppointmentWrite(s, w, r, "create_appointment", true, a, s.svc.CreateAppointment)
}

func (s *Server) updateAppointment(w http.ResponseWriter, r *http.Request) {
	code, ok := pathCode(w, r)
	if !ok {
		return
	}
	var a model.Appointment
	if !decodeRecord(w, r, &a, appointmentInput(code)) {
		return
	}
	serveAppointmentWrite(s, w, r, "update_appointment", false, a, s.svc.UpdateAppointment)
}

func (s *Server) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	code, ok := pathCode(w, r)
	if !ok {
		return
	}
	serveWrite(s, w, r, "delete_appointment", false, func(ctx context.Context) (sync.WriteOutcome, error) {
		return s.svc.DeleteAppointment(ctx, code)
	})
}

// --- report & holidays -------------------------------------------------------

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	serveRead(s, w, r, "report", s.svc.Report)
}

func (s *Server) checkHoliday(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := strings.TrimSpace(q.Get("date"))
	if _, err := model.ParseDate(date); err != nil {
		writeValidationError(w, map[string]string{"date": "date must be a date in dd/MM/yyyy format"})
		return
	}
	year := 0
	if raw := q.Get("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil || y < 1 {
			writeValidationError(w, map[string]string{"year": fmt.Sprintf("year %q must be a positive integer", raw)})
			return
		}
		year = y
	}

	hc, err := dispatch.Call(r.Context(), s.disp, "check_holiday", func(ctx context.Context) (sync.HolidayCheck, error) {
		return s.svc.CheckHoliday(ctx, date, year), nil
	})
	if err != nil {
		s.fail(w, r, "check_holiday", err)
		return
	}
	body := Response{
		Success: true,
		Data:    newHolidayBody(date, hc),
	}
	switch {
	case hc.Holiday:
		body.Message = fmt.Sprintf("%s is a public holiday (%s)", date, hc.Name)
	case !hc.Verified:
		body.Message = "Holiday service unavailable, date not verified"
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) nextHolidays(w http.ResponseWriter, r *http.Request) {
	hs, err := dispatch.Call(r.Context(), s.disp, "next_holidays", s.svc.NextHolidays)
	if err != nil {
		s.log.Warn("holidays unavailable", "request_id", RequestIDFromContext(r.Context()), "error", err)
		writeError(w, http.StatusBadGateway, "Holiday service unavailable", nil)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: hs})
}
