package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/njoerd114/clinicsync/internal/model"
)

const (
	pathPatients     = "pacientes"
	pathDoctors      = "doctores"
	pathAppointments = "citas"
	pathReport       = "reportes"
	pathSearch       = "buscar"

	// maxErrorBody caps how much of a non-2xx body is kept in a StatusError.
	maxErrorBody = 512
)

// ErrEmptyPayload is returned when a successful response carries no data
// where data is required.
var ErrEmptyPayload = errors.New("response carried no data")

// StatusError is returned for any non-2xx HTTP response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

// RejectedError is returned when the server answers 2xx with success=false.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return "request rejected by server"
	}
	return "request rejected by server: " + e.Message
}

// ClinicClient is a client for the clinical REST API. It neither retries nor
// caches; every error is returned to the caller, which decides whether to
// fall back to local data.
type ClinicClient struct {
	base *url.URL
	hc   *http.Client
}

// NewClinicClient returns a client rooted at baseURL (for example
// "https://example.com/api/").
func NewClinicClient(baseURL string, t *Transport) (*ClinicClient, error) {
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("clinic API: %w", err)
	}
	return &ClinicClient{base: u, hc: t.HTTPClient()}, nil
}

// Ping checks that the API answers a cheap listing request.
func (c *ClinicClient) Ping(ctx context.Context) error {
	if err := c.call(ctx, http.MethodGet, c.endpoint(pathPatients), nil, nil); err != nil {
		return fmt.Errorf("pinging clinic API: %w", err)
	}
	return nil
}

// --- patients ----------------------------------------------------------------

func (c *ClinicClient) ListPatients(ctx context.Context) ([]model.Patient, error) {
	return getList(ctx, c, "listing patients", c.endpoint(pathPatients), patientFromWire)
}

func (c *ClinicClient) SearchPatients(ctx context.Context, name string) ([]model.Patient, error) {
	u := c.search(pathPatients, "nombre", name)
	return getList(ctx, c, "searching patients", u, patientFromWire)
}

func (c *ClinicClient) CreatePatient(ctx context.Context, p model.Patient) error {
	return c.write(ctx, "creating patient", http.MethodPost, c.endpoint(pathPatients), patientToWire(p))
}

func (c *ClinicClient) UpdatePatient(ctx context.Context, p model.Patient) error {
	return c.write(ctx, "updating patient", http.MethodPut, c.record(pathPatients, p.Code), patientToWire(p))
}

func (c *ClinicClient) DeletePatient(ctx context.Context, code int64) error {
	return c.write(ctx, "deleting patient", http.MethodDelete, c.record(pathPatients, code), nil)
}

// --- doctors -----------------------------------------------------------------

func (c *ClinicClient) ListDoctors(ctx context.Context) ([]model.Doctor, error) {
	return getList(ctx, c, "listing doctors", c.endpoint(pathDoctors), doctorFromWire)
}

func (c *ClinicClient) SearchDoctors(ctx context.Context, name string) ([]model.Doctor, error) {
	u := c.search(pathDoctors, "nombre", name)
	return getList(ctx, c, "searching doctors", u, doctorFromWire)
}

func (c *ClinicClient) CreateDoctor(ctx context.Context, d model.Doctor) error {
	return c.write(ctx, "creating doctor", http.MethodPost, c.endpoint(pathDoctors), doctorToWire(d))
}

func (c *ClinicClient) UpdateDoctor(ctx context.Context, d model.Doctor) error {
	return c.write(ctx, "updating doctor", http.MethodPut, c.record(pathDoctors, d.Code), doctorToWire(d))
}

func (c *ClinicClient) DeleteDoctor(ctx context.Context, code int64) error {
	return c.write(ctx, "deleting doctor", http.MethodDelete, c.record(pathDoctors, code), nil)
}

// --- appointments ------------------------------------------------------------

func (c *ClinicClient) ListAppointments(ctx context.Context) ([]model.Appointment, error) {
	return getList(ctx, c, "listing appointments", c.endpoint(pathAppointments), appointmentFromWire)
}

// SearchAppointments filters appointments by patient name.
func (c *ClinicClient) SearchAppointments(ctx context.Context, patientName string) ([]model.Appointment, error) {
	u := c.search(pathAppointments, "paciente", patientName)
	return getList(ctx, c, "searching appointments", u, appointmentFromWire)
}

func (c *ClinicClient) CreateAppointment(ctx context.Context, a model.Appointment) error {
	return c.write(ctx, "creating appointment", http.MethodPost, c.endpoint(pathAppointments), appointmentToWire(a))
}

func (c *ClinicClient) UpdateAppointment(ctx context.Context, a model.Appointment) error {
	return c.write(ctx, "updating appointment", http.MethodPut, c.record(pathAppointments, a.Code), appointmentToWire(a))
}

func (c *ClinicClient) DeleteAppointment(ctx context.Context, code int64) error {
	return c.write(ctx, "deleting appointment", http.MethodDelete, c.record(pathAppointments, code), nil)
}

// --- report ------------------------------------------------------------------

// Report fetches the server-side statistics snapshot.
func (c *ClinicClient) Report(ctx context.Context) (model.Report, error) {
	var data *wireReport
	if err := c.call(ctx, http.MethodGet, c.endpoint(pathReport), nil, &data); err != nil {
		return model.Report{}, fmt.Errorf("fetching report: %w", err)
	}
	if data == nil {
		return model.Report{}, fmt.Errorf("fetching report: %w", ErrEmptyPayload)
	}
	return reportFromWire(*data), nil
}

// --- plumbing ----------------------------------------------------------------

func getList[W, M any](ctx context.Context, c *ClinicClient, op string, u *url.URL, conv func(W) M) ([]M, error) {
	var data []W
	if err := c.call(ctx, http.MethodGet, u, nil, &data); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := make([]M, 0, len(data))
	for _, w := range data {
		out = append(out, conv(w))
	}
	return out, nil
}

func (c *ClinicClient) write(ctx context.Context, op, method string, u *url.URL, body any) error {
	if err := c.call(ctx, method, u, body, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *ClinicClient) endpoint(elem ...string) *url.URL {
	return c.base.JoinPath(elem...)
}

func (c *ClinicClient) record(collection string, code int64) *url.URL {
	return c.endpoint(collection, strconv.FormatInt(code, 10))
}

func (c *ClinicClient) search(collection, param, value string) *url.URL {
	u := c.endpoint(collection, pathSearch)
	u.RawQuery = url.Values{param: {value}}.Encode()
	return u
}

// call performs one request and unwraps the response envelope. When data is
// non-nil the envelope's data field is decoded into it; a null or missing
// data field leaves it untouched. 204 No Content counts as success.
func (c *ClinicClient) call(ctx context.Context, method string, u *url.URL, body, data any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(req, resp)
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if !env.Success {
		return &RejectedError{Message: env.Message}
	}
	if data == nil || len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(env.Data, data); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}

func newStatusError(req *http.Request, resp *http.Response) *StatusError {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Method:     req.Method,
		URL:        req.URL.Redacted(),
		StatusCode: resp.StatusCode,
		Body:       string(b),
	}
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base URL %q has no host", raw)
	}
	return u, nil
}
