// Package sync is the API-with-local-fallback layer of clinicsync. It decides,
// per operation, which backend answers and how the two backends' results are
// reconciled:
//
//   - Reads go to the clinical API first and fall back to the local store on
//     any remote failure.
//   - Writes go to the local store first, then to the API; the pair of
//     outcomes is folded into one [WriteOutcome].
//   - Holiday lookups never fail: an unreachable holiday API yields an
//     unverified "not a holiday" answer.
//
// [Manager] keeps no state between calls; the local store is the only
// persistent state.
package sync

import (
	"context"

	"github.com/njoerd114/clinicsync/internal/model"
)

// ClinicAPI is the clinical REST backend.
// Implemented by [remote.ClinicClient].
type ClinicAPI interface {
	ListPatients(ctx context.Context) ([]model.Patient, error)
	SearchPatients(ctx context.Context, name string) ([]model.Patient, error)
	CreatePatient(ctx context.Context, p model.Patient) error
	UpdatePatient(ctx context.Context, p model.Patient) error
	DeletePatient(ctx context.Context, code int64) error

	ListDoctors(ctx context.Context) ([]model.Doctor, error)
	SearchDoctors(ctx context.Context, name string) ([]model.Doctor, error)
	CreateDoctor(ctx context.Context, d model.Doctor) error
	UpdateDoctor(ctx context.Context, d model.Doctor) error
	DeleteDoctor(ctx context.Context, code int64) error

	ListAppointments(ctx context.Context) ([]model.Appointment, error)
	SearchAppointments(ctx context.Context, patientName string) ([]model.Appointment, error)
	CreateAppointment(ctx context.Context, a model.Appointment) error
	UpdateAppointment(ctx context.Context, a model.Appointment) error
	DeleteAppointment(ctx context.Context, code int64) error

	Report(ctx context.Context) (model.Report, error)
}

// HolidayAPI is the public holiday backend.
// Implemented by [remote.HolidayClient].
type HolidayAPI interface {
	PublicHolidays(ctx context.Context, year int, countryCode string) ([]model.Holiday, error)
	NextPublicHolidays(ctx context.Context, countryCode string) ([]model.Holiday, error)
}

// LocalStore is the on-device database.
// Implemented by [store.Store].
type LocalStore interface {
	CreatePatient(ctx context.Context, p model.Patient) (int64, error)
	UpdatePatient(ctx context.Context, p model.Patient) (int64, error)
	DeletePatient(ctx context.Context, code int64) (int64, error)
	ListPatients(ctx context.Context) ([]model.Patient, error)
	SearchPatients(ctx context.Context, query string) ([]model.Patient, error)

	CreateDoctor(ctx context.Context, d model.Doctor) (int64, error)
	UpdateDoctor(ctx context.Context, d model.Doctor) (int64, error)
	DeleteDoctor(ctx context.Context, code int64) (int64, error)
	ListDoctors(ctx context.Context) ([]model.Doctor, error)
	SearchDoctors(ctx context.Context, query string) ([]model.Doctor, error)

	CreateAppointment(ctx context.Context, a model.Appointment) (int64, error)
	UpdateAppointment(ctx context.Context, a model.Appointment) (int64, error)
	DeleteAppointment(ctx context.Context, code int64) (int64, error)
	ListAppointments(ctx context.Context) ([]model.Appointment, error)
	SearchAppointments(ctx context.Context, patientName string) ([]model.Appointment, error)

	Report(ctx context.Context) (model.Report, error)
}
