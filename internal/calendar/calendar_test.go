package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saoPaulo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	return loc
}

func TestAdvance(t *testing.T) {
	loc := saoPaulo(t)
	cal := New(loc, BrazilHolidays{}, 9, 18)

	tests := []struct {
		name    string
		start   time.Time
		minutes int
		want    time.Time
	}{
		{
			name:    "two days over new year",
			start:   time.Date(2019, 12, 31, 17, 0, 0, 0, loc),
			minutes: 2880,
			want:    time.Date(2020, 1, 3, 17, 0, 0, 0, loc),
		},
		{
			name:    "overflow past end of workday",
			start:   time.Date(2020, 7, 31, 17, 0, 0, 0, loc),
			minutes: 120,
			want:    time.Date(2020, 8, 3, 9, 0, 0, 0, loc),
		},
		{
			name:    "one day over a weekend",
			start:   time.Date(2020, 7, 31, 17, 0, 0, 0, loc),
			minutes: 1440,
			want:    time.Date(2020, 8, 3, 17, 0, 0, 0, loc),
		},
		{
			name:    "remainder before start of workday",
			start:   time.Date(2020, 7, 30, 16, 0, 0, 0, loc),
			minutes: 540,
			want:    time.Date(2020, 7, 31, 9, 0, 0, 0, loc),
		},
		{
			name:    "remainder exactly at end of workday",
			start:   time.Date(2020, 7, 31, 9, 0, 0, 0, loc),
			minutes: 540,
			want:    time.Date(2020, 7, 31, 18, 0, 0, 0, loc),
		},
		{
			name:    "remainder exactly at start of workday",
			start:   time.Date(2020, 7, 31, 9, 0, 0, 0, loc),
			minutes: 0,
			want:    time.Date(2020, 7, 31, 9, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(cal.Advance(tt.start, tt.minutes)),
				"got %s", cal.Advance(tt.start, tt.minutes))
		})
	}
}

func TestRetreat(t *testing.T) {
	loc := saoPaulo(t)
	cal := New(loc, BrazilHolidays{}, 9, 18)

	// One working day back from a Monday lands on Friday.
	got := cal.Retreat(time.Date(2020, 8, 3, 17, 0, 0, 0, loc), 1440)
	assert.True(t, time.Date(2020, 7, 31, 17, 0, 0, 0, loc).Equal(got), "got %s", got)
}

func TestIsWorkingDay(t *testing.T) {
	loc := saoPaulo(t)
	cal := New(loc, BrazilHolidays{}, 9, 18)

	assert.True(t, cal.IsWorkingDay(time.Date(2020, 7, 31, 12, 0, 0, 0, loc)))
	assert.False(t, cal.IsWorkingDay(time.Date(2020, 8, 1, 12, 0, 0, 0, loc)), "saturday")
	assert.False(t, cal.IsWorkingDay(time.Date(2020, 1, 1, 12, 0, 0, 0, loc)), "holiday")
}

func TestBrazilHolidays(t *testing.T) {
	holidays := BrazilHolidays{}

	assert.True(t, holidays.IsHoliday(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, holidays.IsHoliday(time.Date(2020, 9, 7, 0, 0, 0, 0, time.UTC)))
	assert.True(t, holidays.IsHoliday(time.Date(2020, 4, 10, 0, 0, 0, 0, time.UTC)), "good friday")
	assert.True(t, holidays.IsHoliday(time.Date(2020, 6, 11, 0, 0, 0, 0, time.UTC)), "corpus christi")
	assert.False(t, holidays.IsHoliday(time.Date(2020, 7, 31, 0, 0, 0, 0, time.UTC)))
}

func TestHolidayDates(t *testing.T) {
	dates := HolidayDates{"2020-03-02": {}}
	assert.True(t, dates.IsHoliday(time.Date(2020, 3, 2, 15, 0, 0, 0, time.UTC)))
	assert.False(t, dates.IsHoliday(time.Date(2020, 3, 3, 15, 0, 0, 0, time.UTC)))
}
