// Package calendar implements working-day deadline arithmetic: a target is N
// working minutes after a start instant, skipping weekends and holidays and
// clamped to the working-hours window.
package calendar

import (
	"time"
)

const minutesPerDay = 24 * 60

// HolidayCalendar reports region-specific non-working dates.
type HolidayCalendar interface {
	IsHoliday(t time.Time) bool
}

// Calendar computes due dates within a working-hours window in a fixed time
// zone. Instances are immutable and safe for concurrent use.
type Calendar struct {
	loc           *time.Location
	workStartHour int
	workEndHour   int
	holidays      HolidayCalendar
}

// New builds a calendar for the given location and holiday set with the given
// working-hours window, e.g. 9 and 18 for a 09:00-18:00 workday.
func New(loc *time.Location, holidays HolidayCalendar, workStartHour, workEndHour int) *Calendar {
	return &Calendar{
		loc:           loc,
		workStartHour: workStartHour,
		workEndHour:   workEndHour,
		holidays:      holidays,
	}
}

// IsWorkingDay reports whether t falls on neither a weekend nor a holiday.
func (c *Calendar) IsWorkingDay(t time.Time) bool {
	t = t.In(c.loc)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return !c.holidays.IsHoliday(t)
}

// Advance returns the instant `minutes` working minutes after start.
//
// The start's time of day is folded into the minute budget, which is then
// split into whole working days and a remainder time of day. A remainder past
// the end of the workday moves to the start of the next working day; one
// before the start of the workday is pulled up to it. A remainder exactly on
// either bound is accepted unmodified.
func (c *Calendar) Advance(start time.Time, minutes int) time.Time {
	return c.roll(start, minutes, c.addWorkingDays)
}

// Retreat is the inverse direction: whole working days are subtracted instead
// of added, with the same clamping rules for the remainder.
func (c *Calendar) Retreat(start time.Time, minutes int) time.Time {
	return c.roll(start, minutes, c.subWorkingDays)
}

func (c *Calendar) roll(start time.Time, minutes int, shift func(time.Time, int) time.Time) time.Time {
	start = start.In(c.loc)
	minutes += start.Hour()*60 + start.Minute()

	days := minutes / minutesPerDay
	remainder := minutes % minutesPerDay
	hour := remainder / 60
	minute := remainder % 60

	result := shift(start, days)

	if hour > c.workEndHour {
		hour = c.workStartHour
		minute = 0
		result = c.addWorkingDays(result, 1)
	}
	if hour < c.workStartHour {
		hour = c.workStartHour
		minute = 0
	}

	return time.Date(result.Year(), result.Month(), result.Day(), hour, minute, 0, 0, c.loc)
}

func (c *Calendar) addWorkingDays(t time.Time, days int) time.Time {
	for i := 0; i < days; i++ {
		t = t.AddDate(0, 0, 1)
		for !c.IsWorkingDay(t) {
			t = t.AddDate(0, 0, 1)
		}
	}
	return t
}

func (c *Calendar) subWorkingDays(t time.Time, days int) time.Time {
	for i := 0; i < days; i++ {
		t = t.AddDate(0, 0, -1)
		for !c.IsWorkingDay(t) {
			t = t.AddDate(0, 0, -1)
		}
	}
	return t
}
