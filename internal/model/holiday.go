package model

import "time"

// Holiday is a public holiday as reported by the holiday API. Holidays are
// read-only and never stored locally.
type Holiday struct {
	Date        string   `json:"date"` // yyyy-MM-dd
	LocalName   string   `json:"local_name"`
	Name        string   `json:"name"`
	CountryCode string   `json:"country_code"`
	Fixed       bool     `json:"fixed"`
	Global      bool     `json:"global"`
	Types       []string `json:"types,omitempty"`
}

// DisplayName prefers the local name and falls back to the international one.
func (h Holiday) DisplayName() string {
	if h.LocalName != "" {
		return h.LocalName
	}
	return h.Name
}

// DedupeHolidays drops repeated (date, local name) pairs, keeping the first
// occurrence and the input order.
func DedupeHolidays(in []Holiday) []Holiday {
	type key struct{ date, name string }
	seen := make(map[key]bool, len(in))
	out := make([]Holiday, 0, len(in))
	for _, h := range in {
		k := key{h.Date, h.LocalName}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, h)
	}
	return out
}

// HolidaysFrom keeps holidays dated on or after the calendar day of from.
// Entries whose date cannot be parsed are dropped.
func HolidaysFrom(in []Holiday, from time.Time) []Holiday {
	y, m, d := from.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	out := make([]Holiday, 0, len(in))
	for _, h := range in {
		t, err := time.Parse(ISODateLayout, h.Date)
		if err != nil {
			continue
		}
		if !t.Before(day) {
			out = append(out, h)
		}
	}
	return out
}
