package calendar

import "time"

// BrazilHolidays is the Brazilian national holiday set: the fixed civil
// holidays plus the Easter-derived Good Friday and Corpus Christi.
type BrazilHolidays struct{}

func (BrazilHolidays) IsHoliday(t time.Time) bool {
	month, day := t.Month(), t.Day()

	switch {
	case month == time.January && day == 1: // New Year's Day
		return true
	case month == time.April && day == 21: // Tiradentes
		return true
	case month == time.May && day == 1: // Labour Day
		return true
	case month == time.September && day == 7: // Independence Day
		return true
	case month == time.October && day == 12: // Our Lady of Aparecida
		return true
	case month == time.November && day == 2: // All Souls' Day
		return true
	case month == time.November && day == 15: // Republic Proclamation Day
		return true
	case month == time.December && day == 25: // Christmas
		return true
	}

	easter := easterSunday(t.Year())
	goodFriday := easter.AddDate(0, 0, -2)
	corpusChristi := easter.AddDate(0, 0, 60)

	return sameDate(t, goodFriday) || sameDate(t, corpusChristi)
}

// NoHolidays is a holiday calendar with no entries, for deployments that only
// want weekend skipping.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(time.Time) bool { return false }

// HolidayDates is a fixed set of dates, keyed by "2006-01-02".
type HolidayDates map[string]struct{}

func (h HolidayDates) IsHoliday(t time.Time) bool {
	_, ok := h[t.Format("2006-01-02")]
	return ok
}

func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// easterSunday computes Gregorian Easter with the anonymous computus.
func easterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
