package store

import (
	"context"
	"fmt"

	"github.com/njoerd114/clinicsync/internal/model"
)

// appointmentSelect projects appointments with the display names of the
// referenced patient and doctor. LEFT JOINs keep appointments whose patient
// or doctor has been deleted; their names come back empty.
const appointmentSelect = `
	SELECT a.code,
	       a.patient_code,
	       COALESCE(TRIM(p.first_names || ' ' || p.last_names), ''),
	       a.doctor_code,
	       COALESCE(TRIM(d.first_names || ' ' || d.last_names), ''),
	       a.date, a.time, a.reason, a.status
	FROM appointments a
	LEFT JOIN patients p ON p.code = a.patient_code
	LEFT JOIN doctors  d ON d.code = a.doctor_code`

// appointmentOrder sorts newest first. Dates are stored as dd/MM/yyyy, so
// they are compared year, then month, then day.
const appointmentOrder = `
	ORDER BY substr(a.date, 7, 4) DESC,
	         substr(a.date, 4, 2) DESC,
	         substr(a.date, 1, 2) DESC,
	         a.time DESC,
	         a.code DESC`

// CreateAppointment inserts a and returns its newly assigned code. An empty
// status is stored as Pending. Patient and doctor codes are not checked.
func (s *Store) CreateAppointment(ctx context.Context, a model.Appointment) (int64, error) {
	const q = `
		INSERT INTO appointments (patient_code, doctor_code, date, time, reason, status)
		VALUES (?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, a.PatientCode, a.DoctorCode, a.Date, a.Time, a.Reason, string(a.Status.OrDefault()))
	if err != nil {
		return 0, persistErr(fmt.Sprintf("inserting appointment on %s %s", a.Date, a.Time), err)
	}
	code, err := res.LastInsertId()
	if err != nil {
		return 0, persistErr("reading new appointment code", err)
	}
	return code, nil
}

// UpdateAppointment overwrites the appointment identified by a.Code and
// returns the number of affected rows. Names on a are ignored.
func (s *Store) UpdateAppointment(ctx context.Context, a model.Appointment) (int64, error) {
	const q = `
		UPDATE appointments
		SET patient_code = ?, doctor_code = ?, date = ?, time = ?, reason = ?, status = ?
		WHERE code = ?`
	op := fmt.Sprintf("updating appointment code=%d", a.Code)
	res, err := s.db.ExecContext(ctx, q, a.PatientCode, a.DoctorCode, a.Date, a.Time, a.Reason, string(a.Status.OrDefault()), a.Code)
	if err != nil {
		return 0, persistErr(op, err)
	}
	return affected(op, res)
}

// DeleteAppointment removes the appointment with the given code.
func (s *Store) DeleteAppointment(ctx context.Context, code int64) (int64, error) {
	op := fmt.Sprintf("deleting appointment code=%d", code)
	res, err := s.db.ExecContext(ctx, `DELETE FROM appointments WHERE code = ?`, code)
	if err != nil {
		return 0, persistErr(op, err)
	}
	return affected(op, res)
}

// ListAppointments returns every appointment with patient and doctor names
// filled in, newest date first.
func (s *Store) ListAppointments(ctx context.Context) ([]model.Appointment, error) {
	return s.queryAppointments(ctx, "listing appointments", appointmentSelect+appointmentOrder)
}

// SearchAppointments returns appointments whose patient name contains
// patientName, ignoring case. Appointments whose patient was deleted never
// match a non-empty query. An empty query equals [Store.ListAppointments].
func (s *Store) SearchAppointments(ctx context.Context, patientName string) ([]model.Appointment, error) {
	if patientName == "" {
		return s.ListAppointments(ctx)
	}
	// p.* is NULL for a dangling patient reference; casefold only takes text.
	const where = `
	WHERE casefold(COALESCE(p.first_names, '')) LIKE ?1 ESCAPE '\'
	   OR casefold(COALESCE(p.last_names, '')) LIKE ?1 ESCAPE '\'
	   OR casefold(COALESCE(p.first_names || ' ' || p.last_names, '')) LIKE ?1 ESCAPE '\'`
	op := fmt.Sprintf("searching appointments for %q", patientName)
	return s.queryAppointments(ctx, op, appointmentSelect+where+appointmentOrder, containsPattern(patientName))
}

func (s *Store) queryAppointments(ctx context.Context, op, q string, args ...any) ([]model.Appointment, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, persistErr(op, err)
	}
	defer func() { _ = rows.Close() }()

	appointments := []model.Appointment{}
	for rows.Next() {
		var a model.Appointment
		var status string
		if err := rows.Scan(
			&a.Code,
			&a.PatientCode,
			&a.PatientName,
			&a.DoctorCode,
			&a.DoctorName,
			&a.Date,
			&a.Time,
			&a.Reason,
			&status,
		); err != nil {
			return nil, persistErr("scanning appointment row", err)
		}
		a.Status = model.Status(status)
		appointments = append(appointments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(op, err)
	}
	return appointments, nil
}
