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

// ErrLocalStore is wrapped by every read error: a read only fails when the
// remote call failed and the local store failed too.
var ErrLocalStore = errors.New("local store failed")

// Source names the backend that answered a read.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Read is the result of a read operation.
type Read[T any] struct {
	Data   T
	Source Source

	// RemoteErr is the remote failure that caused a fallback to local data.
	// Nil when Source is SourceRemote.
	RemoteErr error
}

// FromRemote reports whether the data came from the clinical API.
func (r Read[T]) FromRemote() bool { return r.Source == SourceRemote }

// readThrough runs remote and falls back to local on any remote error.
func readThrough[T any](
	ctx context.Context,
	m *Manager,
	op string,
	remote func(context.Context) (T, error),
	local func(context.Context) (T, error),
) (Read[T], error) {
	ctx, span := m.startSpan(ctx, op)
	defer span.End()

	data, remoteErr := remote(ctx)
	if remoteErr == nil {
		m.servedFrom(ctx, SourceRemote)
		span.SetAttributes(attribute.String("sync.source", string(SourceRemote)))
		return Read[T]{Data: data, Source: SourceRemote}, nil
	}

	m.remoteFailed(ctx, span, op, remoteErr)
	m.log.Warn("clinic API unavailable, reading local data", "op", op, "error", remoteErr)

	data, localErr := local(ctx)
	if localErr != nil {
		err := fmt.Errorf("%s: %w: %w (remote: %v)", op, ErrLocalStore, localErr, remoteErr)
		fail(span, err)
		return Read[T]{}, err
	}

	m.servedFrom(ctx, SourceLocal)
	span.SetAttributes(attribute.String("sync.source", string(SourceLocal)))
	return Read[T]{Data: data, Source: SourceLocal, RemoteErr: remoteErr}, nil
}

func (m *Manager) servedFrom(ctx context.Context, src Source) {
	m.cntReads.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(src))))
}

// ListPatients returns every patient.
func (m *Manager) ListPatients(ctx context.Context) (Read[[]model.Patient], error) {
	return readThrough(ctx, m, "list_patients", m.clinic.ListPatients, m.store.ListPatients)
}

// SearchPatients returns patients whose name contains query. A blank query
// lists every patient.
func (m *Manager) SearchPatients(ctx context.Context, query string) (Read[[]model.Patient], error) {
	if strings.TrimSpace(query) == "" {
		return m.ListPatients(ctx)
	}
	return readThrough(ctx, m, "search_patients",
		func(ctx context.Context) ([]model.Patient, error) { return m.clinic.SearchPatients(ctx, query) },
		func(ctx context.Context) ([]model.Patient, error) { return m.store.SearchPatients(ctx, query) },
	)
}

// ListDoctors returns every doctor.
func (m *Manager) ListDoctors(ctx context.Context) (Read[[]model.Doctor], error) {
	return readThrough(ctx, m, "list_doctors", m.clinic.ListDoctors, m.store.ListDoctors)
}

// SearchDoctors returns doctors whose name contains query.
func (m *Manager) SearchDoctors(ctx context.Context, query string) (Read[[]model.Doctor], error) {
	if strings.TrimSpace(query) == "" {
		return m.ListDoctors(ctx)
	}
	return readThrough(ctx, m, "search_doctors",
		func(ctx context.Context) ([]model.Doctor, error) { return m.clinic.SearchDoctors(ctx, query) },
		func(ctx context.Context) ([]model.Doctor, error) { return m.store.SearchDoctors(ctx, query) },
	)
}

// ListAppointments returns every appointment with patient and doctor names.
func (m *Manager) ListAppointments(ctx context.Context) (Read[[]model.Appointment], error) {
	return readThrough(ctx, m, "list_appointments", m.clinic.ListAppointments, m.store.ListAppointments)
}

// SearchAppointments returns appointments whose patient name contains
// patientName.
func (m *Manager) SearchAppointments(ctx context.Context, patientName string) (Read[[]model.Appointment], error) {
	if strings.TrimSpace(patientName) == "" {
		return m.ListAppointments(ctx)
	}
	return readThrough(ctx, m, "search_appointments",
		func(ctx context.Context) ([]model.Appointment, error) {
			return m.clinic.SearchAppointments(ctx, patientName)
		},
		func(ctx context.Context) ([]model.Appointment, error) {
			return m.store.SearchAppointments(ctx, patientName)
		},
	)
}

// Report returns the statistics snapshot.
func (m *Manager) Report(ctx context.Context) (Read[model.Report], error) {
	return readThrough(ctx, m, "report", m.clinic.Report, m.store.Report)
}
