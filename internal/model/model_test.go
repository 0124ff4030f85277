package model

import (
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Date conversion
// ---------------------------------------------------------------------------

func TestToISODate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"28/07/2026", "2026-07-28"},
		{"01/01/2026", "2026-01-01"},
		{"29/02/2024", "2024-02-29"},
	}
	for _, tt := range tests {
		got, err := ToISODate(tt.in)
		if err != nil {
			t.Fatalf("ToISODate(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ToISODate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestToISODate_Invalid(t *testing.T) {
	for _, in := range []string{"", "2026-07-28", "1/7/2026", "31/02/2026", "28/13/2026", "aa/bb/cccc"} {
		if _, err := ToISODate(in); err == nil {
			t.Errorf("ToISODate(%q) expected error, got nil", in)
		}
	}
}

func TestDateRoundTrip_EveryDayOfFourYears(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2028, 1, 1, 0, 0, 0, 0, time.UTC)
	for ; day.Before(end); day = day.AddDate(0, 0, 1) {
		in := day.Format(DateLayout)
		iso, err := ToISODate(in)
		if err != nil {
			t.Fatalf("ToISODate(%q): %v", in, err)
		}
		back, err := FromISODate(iso)
		if err != nil {
			t.Fatalf("FromISODate(%q): %v", iso, err)
		}
		if back != in {
			t.Fatalf("round trip %q -> %q -> %q", in, iso, back)
		}
	}
}

// ---------------------------------------------------------------------------
// Holidays
// ---------------------------------------------------------------------------

func TestDedupeHolidays(t *testing.T) {
	in := []Holiday{
		{Date: "2026-07-28", LocalName: "Día de la Independencia"},
		{Date: "2026-07-28", LocalName: "Día de la Independencia", Types: []string{"Bank"}},
		{Date: "2026-07-29", LocalName: "Día de la Gran Parada Militar"},
		{Date: "2026-07-28", LocalName: "Fiestas Patrias"},
	}
	got := DedupeHolidays(in)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Types != nil {
		t.Errorf("first occurrence not kept: %+v", got[0])
	}
	if got[2].LocalName != "Fiestas Patrias" {
		t.Errorf("order not preserved: %+v", got)
	}
}

func TestHolidaysFrom(t *testing.T) {
	in := []Holiday{
		{Date: "2026-01-01", LocalName: "Año Nuevo"},
		{Date: "2026-07-28", LocalName: "Independencia"},
		{Date: "2026-12-25", LocalName: "Navidad"},
		{Date: "bad", LocalName: "Broken"},
	}
	from := time.Date(2026, 7, 28, 15, 30, 0, 0, time.UTC)
	got := HolidaysFrom(in, from)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (%+v)", len(got), got)
	}
	if got[0].LocalName != "Independencia" {
		t.Errorf("today's holiday should be included, got %+v", got[0])
	}
}

func TestHoliday_DisplayName(t *testing.T) {
	if got := (Holiday{Name: "Christmas"}).DisplayName(); got != "Christmas" {
		t.Errorf("DisplayName = %q, want fallback to Name", got)
	}
	if got := (Holiday{Name: "Christmas", LocalName: "Navidad"}).DisplayName(); got != "Navidad" {
		t.Errorf("DisplayName = %q, want LocalName", got)
	}
}

// ---------------------------------------------------------------------------
// Records
// ---------------------------------------------------------------------------

func TestStatus(t *testing.T) {
	if !StatusCancelled.Valid() {
		t.Error("StatusCancelled should be valid")
	}
	if Status("Pendiente").Valid() {
		t.Error("wire value must not be a valid model status")
	}
	if got := Status("").OrDefault(); got != StatusPending {
		t.Errorf("OrDefault = %q, want Pending", got)
	}
}

func TestFullName(t *testing.T) {
	p := Patient{FirstNames: " Ana ", LastNames: "Vargas Flores"}
	if got := p.FullName(); got != "Ana Vargas Flores" {
		t.Errorf("FullName = %q", got)
	}
	if got := (Doctor{FirstNames: "Luis"}).FullName(); got != "Luis" {
		t.Errorf("FullName with empty last names = %q", got)
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

func TestValidate_Patient(t *testing.T) {
	ok := Patient{FirstNames: "Ana", LastNames: "Vargas", NationalID: "12345678", Phone: "987654321"}
	if err := Validate(ok); err != nil {
		t.Fatalf("valid patient rejected: %v", err)
	}

	bad := Patient{FirstNames: "Ana", NationalID: "1234567X", Phone: "+98765432", Email: "nope"}
	errs := FieldErrors(Validate(bad))
	for _, field := range []string{"last_names", "national_id", "phone", "email"} {
		if _, ok := errs[field]; !ok {
			t.Errorf("expected error for %s, got %v", field, errs)
		}
	}
}

func TestValidate_OptionalFieldsMayBeEmpty(t *testing.T) {
	if err := Validate(Patient{FirstNames: "Ana", LastNames: "Vargas"}); err != nil {
		t.Errorf("empty optional fields rejected: %v", err)
	}
}

func TestValidate_Doctor(t *testing.T) {
	d := Doctor{FirstNames: "Luis", LastNames: "Ramírez", Specialty: "Astrology"}
	errs := FieldErrors(Validate(d))
	if _, ok := errs["specialty"]; !ok {
		t.Errorf("expected specialty error, got %v", errs)
	}
	d.Specialty = "Cardiology"
	if err := Validate(d); err != nil {
		t.Errorf("valid doctor rejected: %v", err)
	}
}

func TestValidate_Appointment(t *testing.T) {
	a := Appointment{PatientCode: 1, DoctorCode: 2, Date: "25/02/2026", Time: "09:00"}
	if err := Validate(a); err != nil {
		t.Fatalf("valid appointment rejected: %v", err)
	}

	a = Appointment{Date: "2026-02-25", Time: "9am", Status: "Pendiente"}
	errs := FieldErrors(Validate(a))
	for _, field := range []string{"patient_code", "doctor_code", "date", "time", "status"} {
		if _, ok := errs[field]; !ok {
			t.Errorf("expected error for %s, got %v", field, errs)
		}
	}
}

func TestFieldErrors_NonValidationError(t *testing.T) {
	if got := FieldErrors(nil); got != nil {
		t.Errorf("FieldErrors(nil) = %v, want nil", got)
	}
}
