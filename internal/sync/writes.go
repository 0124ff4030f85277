package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/njoerd114/clinicsync/internal/model"
)

// WriteStatus says which backends accepted a write.
type WriteStatus string

const (
	// WriteSynchronized means both the local store and the API accepted it.
	WriteSynchronized WriteStatus = "synchronized"
	// WriteLocalOnly means only the local store accepted it.
	WriteLocalOnly WriteStatus = "local_only"
	// WriteRemoteOnly means only the API accepted it. The local failure is
	// reported in WriteOutcome.LocalErr but the write counts as a success.
	WriteRemoteOnly WriteStatus = "remote_only"
)

// WriteOutcome describes a successful write.
type WriteOutcome struct {
	Status WriteStatus

	// Code identifies the record. For creates it is the locally assigned
	// code, or 0 if the local insert failed.
	Code int64

	// LocalRows is the number of local rows affected.
	LocalRows int64

	// Message is a human-readable summary for the user.
	Message string

	LocalErr  error
	RemoteErr error
}

// ErrorKind classifies a failed write.
type ErrorKind int

const (
	// KindLocalFailure means the local store returned an error.
	KindLocalFailure ErrorKind = iota
	// KindNotFound means no local row had the given code.
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindLocalFailure:
		return "local failure"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// WriteError is returned when neither backend accepted a write.
type WriteError struct {
	Op        string
	Kind      ErrorKind
	Code      int64
	LocalErr  error
	RemoteErr error
}

func (e *WriteError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Code > 0 {
		fmt.Fprintf(&b, " code=%d", e.Code)
	}
	fmt.Fprintf(&b, ": %s", e.Kind)
	if e.LocalErr != nil {
		fmt.Fprintf(&b, ": local: %v", e.LocalErr)
	}
	if e.RemoteErr != nil {
		fmt.Fprintf(&b, ": remote: %v", e.RemoteErr)
	}
	return b.String()
}

func (e *WriteError) Unwrap() []error {
	var errs []error
	if e.LocalErr != nil {
		errs = append(errs, e.LocalErr)
	}
	if e.RemoteErr != nil {
		errs = append(errs, e.RemoteErr)
	}
	return errs
}

// IsNotFound reports whether err is a [WriteError] of kind [KindNotFound].
func IsNotFound(err error) bool {
	var we *WriteError
	return errors.As(err, &we) && we.Kind == KindNotFound
}

type action struct {
	op     string // span and metric name, e.g. "create_patient"
	entity string // "Patient"
	past   string // "registered"
}

var (
	createPatient     = action{"create_patient", "Patient", "registered"}
	updatePatient     = action{"update_patient", "Patient", "updated"}
	deletePatient     = action{"delete_patient", "Patient", "deleted"}
	createDoctor      = action{"create_doctor", "Doctor", "registered"}
	updateDoctor      = action{"update_doctor", "Doctor", "updated"}
	deleteDoctor      = action{"delete_doctor", "Doctor", "deleted"}
	createAppointment = action{"create_appointment", "Appointment", "registered"}
	updateAppointment = action{"update_appointment", "Appointment", "updated"}
	deleteAppointment = action{"delete_appointment", "Appointment", "deleted"}
)

func (a action) message(s WriteStatus) string {
	switch s {
	case WriteSynchronized:
		return fmt.Sprintf("%s %s (synchronized with server)", a.entity, a.past)
	case WriteLocalOnly:
		return fmt.Sprintf("%s %s locally only (server unreachable)", a.entity, a.past)
	default:
		return fmt.Sprintf("%s %s on server", a.entity, a.past)
	}
}

// localWrite performs the local half of a write and reports the record code
// and affected rows.
type localWrite func(ctx context.Context) (code, rows int64, err error)

// remoteWrite performs the remote half. code is the local result's code.
type remoteWrite func(ctx context.Context, code int64) error

// write runs the local write to completion, then the remote write, and
// resolves the pair of outcomes.
func (m *Manager) write(ctx context.Context, act action, local localWrite, remote remoteWrite) (WriteOutcome, error) {
	ctx, span := m.startSpan(ctx, act.op)
	defer span.End()

	code, rows, localErr := local(ctx)
	localOK := localErr == nil && rows >= 1

	remoteErr := remote(ctx, code)
	if remoteErr != nil {
		m.remoteFailed(ctx, span, act.op, remoteErr)
	}

	if !localOK && remoteErr != nil {
		we := &WriteError{Op: act.op, Code: code, LocalErr: localErr, RemoteErr: remoteErr}
		if localErr != nil {
			we.Kind = KindLocalFailure
		} else {
			we.Kind = KindNotFound
		}
		fail(span, we)
		m.log.Warn("write failed on both backends", "op", act.op, "kind", we.Kind.String(), "code", code,
			"local_error", localErr, "remote_error", remoteErr)
		return WriteOutcome{}, we
	}

	out := WriteOutcome{Code: code, LocalRows: rows, LocalErr: localErr, RemoteErr: remoteErr}
	switch {
	case localOK && remoteErr == nil:
		out.Status = WriteSynchronized
	case localOK:
		out.Status = WriteLocalOnly
	default:
		out.Status = WriteRemoteOnly
	}
	out.Message = act.message(out.Status)

	span.SetAttributes(attribute.String("sync.write_status", string(out.Status)))
	m.cntWrites.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(out.Status))))
	m.log.Info("write resolved", "op", act.op, "status", out.Status, "code", code, "local_rows", rows)
	if out.Status == WriteRemoteOnly {
		m.log.Warn("local write failed, server accepted it", "op", act.op, "code", code, "local_error", localErr)
	}
	return out, nil
}

// createdRows turns a create's (code, err) into the (code, rows, err) shape.
func createdRows(code int64, err error) (int64, int64, error) {
	if err != nil || code <= 0 {
		return code, 0, err
	}
	return code, 1, nil
}

// --- patients ----------------------------------------------------------------

// CreatePatient registers p. The remote copy carries the locally assigned
// code when the local insert succeeded.
func (m *Manager) CreatePatient(ctx context.Context, p model.Patient) (WriteOutcome, error) {
	return m.write(ctx, createPatient,
		func(ctx context.Context) (int64, int64, error) {
			return createdRows(m.store.CreatePatient(ctx, p))
		},
		func(ctx context.Context, code int64) error {
			if code > 0 {
				p.Code = code
			}
			return m.clinic.CreatePatient(ctx, p)
		},
	)
}

// UpdatePatient overwrites the patient identified by p.Code.
func (m *Manager) UpdatePatient(ctx context.Context, p model.Patient) (WriteOutcome, error) {
	return m.write(ctx, updatePatient,
		func(ctx context.Context) (int64, int64, error) {
			rows, err := m.store.UpdatePatient(ctx, p)
			return p.Code, rows, err
		},
		func(ctx context.Context, _ int64) error { return m.clinic.UpdatePatient(ctx, p) },
	)
}

// DeletePatient removes the patient with the given code. Appointments that
// reference it are kept.
func (m *Manager) DeletePatient(ctx context.Context, code int64) (WriteOutcome, error) {
	return m.write(ctx, deletePatient,
		func(ctx context.Context) (int64, int64, error) {
			rows, err := m.store.DeletePatient(ctx, code)
			return code, rows, err
		},
		func(ctx context.Context, _ int64) error { return m.clinic.DeletePatient(ctx, code) },
	)
}

// --- doctors -----------------------------------------------------------------

// CreateDoctor registers d.
func (m *Manager) CreateDoctor(ctx context.Context, d model.Doctor) (WriteOutcome, error) {
	return m.write(ctx, createDoctor,
		func(ctx context.Context) (int64, int64, error) {
			return createdRows(m.store.CreateDoctor(ctx, d))
		},
		func(ctx context.Context, code int64) error {
			if code > 0 {
				d.Code = code
			}
			return m.clinic.CreateDoctor(ctx, d)
		},
	)
}

// UpdateDoctor overwrites the doctor identified by d.Code.
func (m *Manager) UpdateDoctor(ctx context.Context, d model.Doctor) (WriteOutcome, error) {
	return m.write(ctx, updateDoctor,
		func(ctx context.Context) (int64, int64, error) {
			rows, err := m.store.UpdateDoctor(ctx, d)
			return d.Code, rows, err
		},
		func(ctx context.Context, _ int64) error { return m.clinic.UpdateDoctor(ctx, d) },
	)
}

// DeleteDoctor removes the doctor with the given code.
func (m *Manager) DeleteDoctor(ctx context.Context, code int64) (WriteOutcome, error) {
	return m.write(ctx, deleteDoctor,
		func(ctx context.Context) (int64, int64, error) {
			rows, err := m.store.DeleteDoctor(ctx, code)
			return code, rows, err
		},
		func(ctx context.Context, _ int64) error { return m.clinic.DeleteDoctor(ctx, code) },
	)
}

// --- appointments ------------------------------------------------------------

// CreateAppointment registers a. An empty status becomes Pending on both
// backends.
func (m *Manager) CreateAppointment(ctx context.Context, a model.Appointment) (WriteOutcome, error) {
	a.Status = a.Status.OrDefault()
	return m.write(ctx, createAppointment,
		func(ctx context.Context) (int64, int64, error) {
			return createdRows(m.store.CreateAppointment(ctx, a))
		},
		func(ctx context.Context, code int64) error {
			if code > 0 {
				a.Code = code
			}
			return m.clinic.CreateAppointment(ctx, a)
		},
	)
}

// UpdateAppointment overwrites the appointment identified by a.Code.
func (m *Manager) UpdateAppointment(ctx context.Context, a model.Appointment) (WriteOutcome, error) {
	a.Status = a.Status.OrDefault()
	return m.write(ctx, updateAppointment,
		func(ctx context.Context) (int64, int64, error) {
			rows, err := m.store.UpdateAppointment(ctx, a)
			return a.Code, rows, err
		},
		func(ctx context.Context, _ int64) error { return m.clinic.UpdateAppointment(ctx, a) },
	)
}

// DeleteAppointment removes the appointment with the given code.
func (m *Manager) DeleteAppointment(ctx context.Context, code int64) (WriteOutcome, error) {
	return m.write(ctx, deleteAppointment,
		func(ctx context.Context) (int64, int64, error) {
			rows, err := m.store.DeleteAppointment(ctx, code)
			return code, rows, err
		},
		func(ctx context.Context, _ int64) error { return m.clinic.DeleteAppointment(ctx, code) },
	)
}
