package sync

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/njoerd114/clinicsync/internal/model"
)

// HolidayCheck is the answer to "is this date a public holiday?".
type HolidayCheck struct {
	Holiday bool
	// Name is the holiday's local name, empty when Holiday is false.
	Name string
	// Verified is false when the holiday API could not be asked. The answer
	// is then "not a holiday" by default and must not block anything.
	Verified bool
}

// CheckHoliday reports whether date (dd/MM/yyyy) is a public holiday in the
// Manager's country. It looks the date up in year's holiday list; a year of
// 0 means the date's own year. It never fails: a malformed date is not a
// holiday, and an unreachable API gives an unverified "no".
func (m *Manager) CheckHoliday(ctx context.Context, date string, year int) HolidayCheck {
	const op = "check_holiday"
	ctx, span := m.startSpan(ctx, op)
	defer span.End()

	day, err := model.ParseDate(date)
	if err != nil {
		m.log.Debug("holiday check on malformed date", "date", date, "error", err)
		return HolidayCheck{Verified: true}
	}
	iso := day.Format(model.ISODateLayout)
	if year == 0 {
		year = day.Year()
	}

	hs, err := m.holidays.PublicHolidays(ctx, year, m.country)
	if err != nil {
		m.remoteFailed(ctx, span, op, err)
		m.log.Warn("holiday API unavailable, date not verified", "date", date, "error", err)
		return HolidayCheck{}
	}

	for _, h := range hs {
		if h.Date == iso {
			span.SetAttributes(attribute.Bool("holiday", true))
			return HolidayCheck{Holiday: true, Name: h.DisplayName(), Verified: true}
		}
	}
	return HolidayCheck{Verified: true}
}

// NextHolidays returns the upcoming public holidays. If the API's
// next-holidays endpoint fails, the current year's list filtered to today
// and later is used instead. Repeated (date, local name) pairs are dropped.
func (m *Manager) NextHolidays(ctx context.Context) ([]model.Holiday, error) {
	const op = "next_holidays"
	ctx, span := m.startSpan(ctx, op)
	defer span.End()

	hs, nextErr := m.holidays.NextPublicHolidays(ctx, m.country)
	if nextErr == nil {
		return model.DedupeHolidays(hs), nil
	}
	m.remoteFailed(ctx, span, op, nextErr)
	m.log.Warn("next holidays unavailable, using this year's list", "error", nextErr)

	now := m.now()
	hs, yearErr := m.holidays.PublicHolidays(ctx, now.Year(), m.country)
	if yearErr != nil {
		m.remoteFailed(ctx, span, op, yearErr)
		err := fmt.Errorf("fetching upcoming holidays: %w (next holidays: %v)", yearErr, nextErr)
		fail(span, err)
		return nil, err
	}
	return model.DedupeHolidays(model.HolidaysFrom(hs, now)), nil
}
