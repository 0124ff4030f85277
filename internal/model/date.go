package model

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the app-internal appointment date format (dd/MM/yyyy).
	DateLayout = "02/01/2006"

	// ISODateLayout is the date format used by the holiday API (yyyy-MM-dd).
	ISODateLayout = "2006-01-02"

	// TimeLayout is the appointment time format (HH:mm).
	TimeLayout = "15:04"
)

// ParseDate parses an app-internal dd/MM/yyyy date. Day and month must be
// zero-padded.
func ParseDate(date string) (time.Time, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", date, err)
	}
	return t, nil
}

// ToISODate converts dd/MM/yyyy to yyyy-MM-dd.
func ToISODate(date string) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return t.Format(ISODateLayout), nil
}

// FromISODate converts yyyy-MM-dd to dd/MM/yyyy.
func FromISODate(iso string) (string, error) {
	t, err := time.Parse(ISODateLayout, iso)
	if err != nil {
		return "", fmt.Errorf("parsing ISO date %q: %w", iso, err)
	}
	return t.Format(DateLayout), nil
}
