package sync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/njoerd114/clinicsync/internal/model"
)

var errUnreachable = errors.New("dial tcp: connection refused")

// callLog records the order in which mocks are called, across mocks.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.calls)
}

// --- Mock Clinic API ---------------------------------------------------------

// mockClinic is an in-memory clinical API. When err is set every call fails
// with it, as if the server were unreachable.
type mockClinic struct {
	mu           sync.Mutex
	err          error
	log          *callLog
	patients     []model.Patient
	doctors      []model.Doctor
	appointments []model.Appointment
	report       model.Report
}

func (m *mockClinic) call(name string) error {
	m.log.add("remote." + name)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *mockClinic) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *mockClinic) ListPatients(context.Context) ([]model.Patient, error) {
	if err := m.call("ListPatients"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.patients), nil
}

func (m *mockClinic) SearchPatients(_ context.Context, name string) ([]model.Patient, error) {
	if err := m.call("SearchPatients"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Patient
	for _, p := range m.patients {
		if containsFold(p.FullName(), name) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockClinic) CreatePatient(_ context.Context, p model.Patient) error {
	if err := m.call("CreatePatient"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients = append(m.patients, p)
	return nil
}

func (m *mockClinic) UpdatePatient(_ context.Context, p model.Patient) error {
	return m.call("UpdatePatient")
}

func (m *mockClinic) DeletePatient(_ context.Context, code int64) error {
	return m.call("DeletePatient")
}

func (m *mockClinic) ListDoctors(context.Context) ([]model.Doctor, error) {
	if err := m.call("ListDoctors"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.doctors), nil
}

func (m *mockClinic) SearchDoctors(_ context.Context, name string) ([]model.Doctor, error) {
	if err := m.call("SearchDoctors"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Doctor
	for _, d := range m.doctors {
		if containsFold(d.FullName(), name) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockClinic) CreateDoctor(_ context.Context, d model.Doctor) error {
	if err := m.call("CreateDoctor"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doctors = append(m.doctors, d)
	return nil
}

func (m *mockClinic) UpdateDoctor(_ context.Context, d model.Doctor) error {
	return m.call("UpdateDoctor")
}

func (m *mockClinic) DeleteDoctor(_ context.Context, code int64) error {
	return m.call("DeleteDoctor")
}

func (m *mockClinic) ListAppointments(context.Context) ([]model.Appointment, error) {
	if err := m.call("ListAppointments"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.appointments), nil
}

func (m *mockClinic) SearchAppointments(_ context.Context, name string) ([]model.Appointment, error) {
	if err := m.call("SearchAppointments"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Appointment
	for _, a := range m.appointments {
		if containsFold(a.PatientName, name) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockClinic) CreateAppointment(_ context.Context, a model.Appointment) error {
	if err := m.call("CreateAppointment"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appointments = append(m.appointments, a)
	return nil
}

func (m *mockClinic) UpdateAppointment(_ context.Context, a model.Appointment) error {
	return m.call("UpdateAppointment")
}

func (m *mockClinic) DeleteAppointment(_ context.Context, code int64) error {
	return m.call("DeleteAppointment")
}

func (m *mockClinic) Report(context.Context) (model.Report, error) {
	if err := m.call("Report"); err != nil {
		return model.Report{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.report, nil
}

// --- Mock Holiday API --------------------------------------------------------

type mockHolidays struct {
	mu      sync.Mutex
	byYear  map[int][]model.Holiday
	next    []model.Holiday
	yearErr error
	nextErr error
	years   []int
}

func (m *mockHolidays) PublicHolidays(_ context.Context, year int, countryCode string) ([]model.Holiday, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.years = append(m.years, year)
	if m.yearErr != nil {
		return nil, m.yearErr
	}
	return slices.Clone(m.byYear[year]), nil
}

func (m *mockHolidays) NextPublicHolidays(_ context.Context, countryCode string) ([]model.Holiday, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nextErr != nil {
		return nil, m.nextErr
	}
	return slices.Clone(m.next), nil
}

// --- Mock Local Store --------------------------------------------------------

// mockStore is an in-memory LocalStore. When err is set every call fails.
type mockStore struct {
	mu           sync.Mutex
	err          error
	log          *callLog
	nextCode     int64
	patients     map[int64]model.Patient
	doctors      map[int64]model.Doctor
	appointments map[int64]model.Appointment
}

func newMockStore(log *callLog) *mockStore {
	return &mockStore{
		log:          log,
		patients:     make(map[int64]model.Patient),
		doctors:      make(map[int64]model.Doctor),
		appointments: make(map[int64]model.Appointment),
	}
}

// begin logs the call and locks the store; callers must m.mu.Unlock.
func (m *mockStore) begin(name string) error {
	m.log.add("local." + name)
	m.mu.Lock()
	return m.err
}

func (m *mockStore) code() int64 {
	m.nextCode++
	return m.nextCode
}

func sortedValues[T any](rows map[int64]T, keep func(T) bool) []T {
	codes := make([]int64, 0, len(rows))
	for c := range rows {
		codes = append(codes, c)
	}
	slices.Sort(codes)
	out := []T{}
	for _, c := range codes {
		if keep == nil || keep(rows[c]) {
			out = append(out, rows[c])
		}
	}
	return out
}

func (m *mockStore) CreatePatient(_ context.Context, p model.Patient) (int64, error) {
	defer m.mu.Unlock()
	if err := m.begin("CreatePatient"); err != nil {
		return 0, err
	}
	p.Code = m.code()
	m.patients[p.Code] = p
	return p.Code, nil
}

func (m *mockStore) UpdatePatient(_ context.Context, p model.Patient) (int64, error) {
	defer m.mu.Unlock()
	if err := m.begin("UpdatePatient"); err != nil {
		return 0, err
	}
	if _, ok := m.patients[p.Code]; !ok {
		return 0, nil
	}
	m.patients[p.Code] = p
	return 1, nil
}

func (m *mockStore) DeletePatient(_ context.Context, code int64) (int64, error) {
	defer m.mu.Unlock()
	if err := m.begin("DeletePatient"); err != nil {
		return 0, err
	}
	if _, ok := m.patients[code]; !ok {
		return 0, nil
	}
	delete(m.patients, code)
	return 1, nil
}

func (m *mockStore) ListPatients(context.Context) ([]model.Patient, error) {
	defer m.mu.Unlock()
	if err := m.begin("ListPatients"); err != nil {
		return nil, err
	}
	return sortedValues(m.patients, nil), nil
}

func (m *mockStore) SearchPatients(_ context.Context, q string) ([]model.Patient, error) {
	defer m.mu.Unlock()
	if err := m.begin("SearchPatients"); err != nil {
		return nil, err
	}
	return sortedValues(m.patients, func(p model.Patient) bool { return containsFold(p.FullName(), q) }), nil
}

func (m *mockStore) CreateDoctor(_ context.Context, d model.Doctor) (int64, error) {
	defer m.mu.Unlock()
	if err := m.begin("CreateDoctor"); err != nil {
		return 0, err
	}
	d.Code = m.code()
	m.doctors[d.Code] = d
	return d.Code, nil
}

func (m *mockStore) UpdateDoctor(_ context.Context, d model.Doctor) (int64, error) {
	defer m.mu.Unlock()
	if err := m.begin("UpdateDoctor"); err != nil {
		return 0, err
	}
	if _, ok := m.doctors[d.Code]; !ok {
		return 0, nil
	}
	m.doctors[d.Code] = d
	return 1, nil
}

func (m *mockStore) DeleteDoctor(_ context.Context, code int64) (int64, error) {
	defer m.mu.Unlock()
	if err := m.begin("DeleteDoctor"); err != nil {
		return 0, err
	}
	if _, ok := m.doctors[code]; !ok {
		return 0, nil
	}
	delete(m.doctors, code)
	return 1, nil
}

func (m *mockStore) ListDoctors(context.Context) ([]model.Doctor, error) {
	defer m.mu.Unlock()
	if err := m.begin("ListDoctors"); err != nil {
		return nil, err
	}
	return sortedValues(m.doctors, nil), nil
}

func (m *mockStore) SearchDoctors(_ context.Context, q string) ([]model.Doctor, error) {
	defer m.mu.Unlock()
	if err := m.begin("SearchDoctors"); err != nil {
		return nil, err
	}
	return sortedValues(m.doctors, func(d model.Doctor) bool { return containsFold(d.FullName(), q) }), nil
}

func (m *mockStore) CreateAppointment(_ context.Context, a model.Appointment) (int64, error) {
	defer m.mu.Unlock()
	if err := m.begin("CreateAppointment"); err != nil {
		return 0, err
	}
	a.Code = m.code()
	m.appointments[a.Code] = a
	return a.Code, nil
}

func (m *mockStore) UpdateAppointment(_ context.Context, a model.Appointment) (int64, error) {
	defer m.mu.Unlock()
	if err := m.begin("UpdateAppointment"); err != nil {
		return 0, err
	}
	if _, ok := m.appointments[a.Code]; !ok {
		return 0, nil
	}
	m.appointments[a.Code] = a
	return 1, nil
}

func (m *mockStore) DeleteAppointment(_ context.Context, code int64) (int64, error) {
	defer m.mu.Unlock()
	if err := m.begin("DeleteAppointment"); err != nil {
		return 0, err
	}
	if _, ok := m.appointments[code]; !ok {
		return 0, nil
	}
	delete(m.appointments, code)
	return 1, nil
}

func (m *mockStore) withNames(a model.Appointment) model.Appointment {
	a.PatientName = m.patients[a.PatientCode].FullName()
	a.DoctorName = m.doctors[a.DoctorCode].FullName()
	return a
}

func (m *mockStore) ListAppointments(context.Context) ([]model.Appointment, error) {
	defer m.mu.Unlock()
	if err := m.begin("ListAppointments"); err != nil {
		return nil, err
	}
	out := sortedValues(m.appointments, nil)
	for i := range out {
		out[i] = m.withNames(out[i])
	}
	return out, nil
}

func (m *mockStore) SearchAppointments(_ context.Context, q string) ([]model.Appointment, error) {
	defer m.mu.Unlock()
	if err := m.begin("SearchAppointments"); err != nil {
		return nil, err
	}
	out := []model.Appointment{}
	for _, a := range sortedValues(m.appointments, nil) {
		a = m.withNames(a)
		if containsFold(a.PatientName, q) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockStore) Report(context.Context) (model.Report, error) {
	defer m.mu.Unlock()
	if err := m.begin("Report"); err != nil {
		return model.Report{}, err
	}
	r := model.Report{
		TotalPatients:     len(m.patients),
		TotalDoctors:      len(m.doctors),
		TotalAppointments: len(m.appointments),
	}
	for _, a := range m.appointments {
		if a.Status == model.StatusPending {
			r.Pending++
		}
	}
	return r, nil
}

func (m *mockStore) patient(code int64) (model.Patient, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[code]
	return p, ok
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func holiday(date, localName string) model.Holiday {
	return model.Holiday{Date: date, LocalName: localName, Name: fmt.Sprintf("%s (en)", localName), CountryCode: "PE"}
}
