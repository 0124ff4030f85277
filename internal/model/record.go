// Package model defines the clinic records shared by the local store, the
// remote clients, the sync manager and the HTTP facade.
package model

import "strings"

// Status is the lifecycle state of an appointment.
type Status string

const (
	// StatusPending is the default for new appointments.
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

// Statuses lists every valid Status in display order.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// OrDefault returns s, or StatusPending when s is empty.
func (s Status) OrDefault() Status {
	if s == "" {
		return StatusPending
	}
	return s
}

// Specialties is the fixed set of doctor specialties offered at registration.
var Specialties = []string{
	"General Medicine",
	"Cardiology",
	"Dermatology",
	"Gastroenterology",
	"Gynecology",
	"Neurology",
	"Ophthalmology",
	"Pediatrics",
	"Traumatology",
	"Urology",
	"Otorhinolaryngology",
	"Psychiatry",
	"Endocrinology",
}

// IsSpecialty reports whether s is in [Specialties].
func IsSpecialty(s string) bool {
	for _, v := range Specialties {
		if s == v {
			return true
		}
	}
	return false
}

// Patient is a registered patient. Code is assigned by the store on creation.
type Patient struct {
	Code       int64  `json:"code"`
	FirstNames string `json:"first_names" validate:"required,max=100"`
	LastNames  string `json:"last_names" validate:"required,max=100"`
	NationalID string `json:"national_id" validate:"omitempty,len=8,digits"`
	Phone      string `json:"phone" validate:"omitempty,len=9,digits"`
	Email      string `json:"email" validate:"omitempty,email"`
}

// FullName returns "first last", trimmed.
func (p Patient) FullName() string {
	return joinName(p.FirstNames, p.LastNames)
}

// Doctor is a registered doctor.
type Doctor struct {
	Code          int64  `json:"code"`
	FirstNames    string `json:"first_names" validate:"required,max=100"`
	LastNames     string `json:"last_names" validate:"required,max=100"`
	Specialty     string `json:"specialty" validate:"required,specialty"`
	Phone         string `json:"phone" validate:"omitempty,len=9,digits"`
	LicenseNumber string `json:"license_number" validate:"max=30"`
	Email         string `json:"email" validate:"omitempty,email"`
}

// FullName returns "first last", trimmed.
func (d Doctor) FullName() string {
	return joinName(d.FirstNames, d.LastNames)
}

// Appointment links a patient and a doctor at a date and time.
//
// PatientCode and DoctorCode are plain references: the referenced records may
// have been deleted since. PatientName and DoctorName are filled in on read
// and are never stored.
type Appointment struct {
	Code        int64  `json:"code"`
	PatientCode int64  `json:"patient_code" validate:"gt=0"`
	PatientName string `json:"patient_name,omitempty"`
	DoctorCode  int64  `json:"doctor_code" validate:"gt=0"`
	DoctorName  string `json:"doctor_name,omitempty"`
	Date        string `json:"date" validate:"required,clinicdate"` // dd/MM/yyyy
	Time        string `json:"time" validate:"required,datetime=15:04"`
	Reason      string `json:"reason" validate:"max=500"`
	Status      Status `json:"status" validate:"omitempty,status"`
}

// Report is a point-in-time summary computed on demand. It is never stored.
type Report struct {
	TotalPatients     int          `json:"total_patients"`
	TotalDoctors      int          `json:"total_doctors"`
	TotalAppointments int          `json:"total_appointments"`
	Pending           int          `json:"pending"`
	Confirmed         int          `json:"confirmed"`
	Completed         int          `json:"completed"`
	Cancelled         int          `json:"cancelled"`
	TopDoctors        []DoctorRank `json:"top_doctors"`
}

// DoctorRank is one row of the most-requested doctors ranking.
type DoctorRank struct {
	Name         string `json:"name"`
	Specialty    string `json:"specialty"`
	Appointments int    `json:"appointments"`
}

// TopDoctorsLimit caps the ranking in [Report.TopDoctors].
const TopDoctorsLimit = 5

func joinName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}
