package remote

import "github.com/njoerd114/clinicsync/internal/model"

// envelope wraps every clinical API response.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type wirePatient struct {
	Code       int64  `json:"codigo"`
	FirstNames string `json:"nombres"`
	LastNames  string `json:"apellidos"`
	NationalID string `json:"dni"`
	Phone      string `json:"telefono"`
	Email      string `json:"correo"`
}

type wireDoctor struct {
	Code          int64  `json:"codigo"`
	FirstNames    string `json:"nombres"`
	LastNames     string `json:"apellidos"`
	Specialty     string `json:"especialidad"`
	Phone         string `json:"telefono"`
	LicenseNumber string `json:"colegiatura"`
	Email         string `json:"correo"`
}

type wireAppointment struct {
	Code        int64  `json:"codigo"`
	PatientCode int64  `json:"codigoPaciente"`
	PatientName string `json:"nombrePaciente"`
	DoctorCode  int64  `json:"codigoDoctor"`
	DoctorName  string `json:"nombreDoctor"`
	Date        string `json:"fecha"`
	Time        string `json:"hora"`
	Reason      string `json:"motivo"`
	Status      string `json:"estado"`
}

type wireReport struct {
	TotalPatients     int             `json:"totalPacientes"`
	TotalDoctors      int             `json:"totalDoctores"`
	TotalAppointments int             `json:"totalCitas"`
	Pending           int             `json:"citasPendientes"`
	Confirmed         int             `json:"citasConfirmadas"`
	Completed         int             `json:"citasCompletadas"`
	Cancelled         int             `json:"citasCanceladas"`
	TopDoctors        []wireDoctorTop `json:"doctoresTop"`
}

type wireDoctorTop struct {
	Name         string `json:"nombre"`
	Specialty    string `json:"especialidad"`
	Appointments int    `json:"totalCitas"`
}

type wireHoliday struct {
	Date        string   `json:"date"`
	LocalName   string   `json:"localName"`
	Name        string   `json:"name"`
	CountryCode string   `json:"countryCode"`
	Fixed       bool     `json:"fixed"`
	Global      bool     `json:"global"`
	Types       []string `json:"types"`
}

// Appointment status values as spelled by the clinical API.
var (
	statusToWire = map[model.Status]string{
		model.StatusPending:   "Pendiente",
		model.StatusConfirmed: "Confirmada",
		model.StatusCompleted: "Completada",
		model.StatusCancelled: "Cancelada",
	}
	statusFromWire = map[string]model.Status{
		"Pendiente":  model.StatusPending,
		"Confirmada": model.StatusConfirmed,
		"Completada": model.StatusCompleted,
		"Cancelada":  model.StatusCancelled,
	}
)

// Unknown values pass through unchanged in both directions.
func toWireStatus(s model.Status) string {
	if w, ok := statusToWire[s.OrDefault()]; ok {
		return w
	}
	return string(s)
}

func fromWireStatus(w string) model.Status {
	if s, ok := statusFromWire[w]; ok {
		return s
	}
	if w == "" {
		return model.StatusPending
	}
	return model.Status(w)
}

func patientToWire(p model.Patient) wirePatient {
	return wirePatient{
		Code:       p.Code,
		FirstNames: p.FirstNames,
		LastNames:  p.LastNames,
		NationalID: p.NationalID,
		Phone:      p.Phone,
		Email:      p.Email,
	}
}

func patientFromWire(w wirePatient) model.Patient {
	return model.Patient{
		Code:       w.Code,
		FirstNames: w.FirstNames,
		LastNames:  w.LastNames,
		NationalID: w.NationalID,
		Phone:      w.Phone,
		Email:      w.Email,
	}
}

func doctorToWire(d model.Doctor) wireDoctor {
	return wireDoctor{
		Code:          d.Code,
		FirstNames:    d.FirstNames,
		LastNames:     d.LastNames,
		Specialty:     d.Specialty,
		Phone:         d.Phone,
		LicenseNumber: d.LicenseNumber,
		Email:         d.Email,
	}
}

func doctorFromWire(w wireDoctor) model.Doctor {
	return model.Doctor{
		Code:          w.Code,
		FirstNames:    w.FirstNames,
		LastNames:     w.LastNames,
		Specialty:     w.Specialty,
		Phone:         w.Phone,
		LicenseNumber: w.LicenseNumber,
		Email:         w.Email,
	}
}

func appointmentToWire(a model.Appointment) wireAppointment {
	return wireAppointment{
		Code:        a.Code,
		PatientCode: a.PatientCode,
		PatientName: a.PatientName,
		DoctorCode:  a.DoctorCode,
		DoctorName:  a.DoctorName,
		Date:        a.Date,
		Time:        a.Time,
		Reason:      a.Reason,
		Status:      toWireStatus(a.Status),
	}
}

func appointmentFromWire(w wireAppointment) model.Appointment {
	return model.Appointment{
		Code:        w.Code,
		PatientCode: w.PatientCode,
		PatientName: w.PatientName,
		DoctorCode:  w.DoctorCode,
		DoctorName:  w.DoctorName,
		Date:        w.Date,
		Time:        w.Time,
		Reason:      w.Reason,
		Status:      fromWireStatus(w.Status),
	}
}

func reportFromWire(w wireReport) model.Report {
	r := model.Report{
		TotalPatients:     w.TotalPatients,
		TotalDoctors:      w.TotalDoctors,
		TotalAppointments: w.TotalAppointments,
		Pending:           w.Pending,
		Confirmed:         w.Confirmed,
		Completed:         w.Completed,
		Cancelled:         w.Cancelled,
		TopDoctors:        make([]model.DoctorRank, 0, len(w.TopDoctors)),
	}
	for _, t := range w.TopDoctors {
		r.TopDoctors = append(r.TopDoctors, model.DoctorRank{
			Name:         t.Name,
			Specialty:    t.Specialty,
			Appointments: t.Appointments,
		})
	}
	return r
}

func holidayFromWire(w wireHoliday) model.Holiday {
	return model.Holiday{
		Date:        w.Date,
		LocalName:   w.LocalName,
		Name:        w.Name,
		CountryCode: w.CountryCode,
		Fixed:       w.Fixed,
		Global:      w.Global,
		Types:       w.Types,
	}
}
