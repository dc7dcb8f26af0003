package domain

import (
	"testing"
	"time"

	clientdomain "github.com/smallbiznis/agencydesk/internal/client/domain"
	"github.com/stretchr/testify/assert"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestNextDueDate_Monthly(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{"mid-month keeps the day", date(2026, time.March, 15), date(2026, time.April, 15)},
		{"jan 31 clamps to feb 28", date(2026, time.January, 31), date(2026, time.February, 28)},
		{"jan 31 keeps feb 29 in leap years", date(2024, time.January, 31), date(2024, time.February, 29)},
		{"mar 31 clamps to apr 30", date(2026, time.March, 31), date(2026, time.April, 30)},
		{"may 31 clamps to jun 30", date(2026, time.May, 31), date(2026, time.June, 30)},
		{"december rolls into january", date(2026, time.December, 15), date(2027, time.January, 15)},
		{"feb 29 maps to mar 29", date(2024, time.February, 29), date(2024, time.March, 29)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextDueDate(tt.from, clientdomain.BillingModeMonthly)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextDueDate_ClampDoesNotStick(t *testing.T) {
	// A clamped date keeps advancing from the clamped day, it does not
	// restore the original day of month.
	jan31 := date(2026, time.January, 31)
	feb28 := NextDueDate(jan31, clientdomain.BillingModeMonthly)
	mar28 := NextDueDate(feb28, clientdomain.BillingModeMonthly)
	assert.Equal(t, date(2026, time.March, 28), mar28)
}

func TestNextDueDate_Weekly(t *testing.T) {
	got := NextDueDate(date(2026, time.February, 26), clientdomain.BillingModeWeekly)
	assert.Equal(t, date(2026, time.March, 5), got)
}

func TestNextDueDate_PreservesTimeOfDay(t *testing.T) {
	from := time.Date(2026, time.January, 15, 9, 30, 0, 0, time.UTC)
	got := NextDueDate(from, clientdomain.BillingModeMonthly)
	assert.Equal(t, time.Date(2026, time.February, 15, 9, 30, 0, 0, time.UTC), got)
}

func TestNextFixedDay(t *testing.T) {
	tests := []struct {
		name  string
		today time.Time
		day   int
		want  time.Time
	}{
		{"later this month", date(2026, time.January, 10), 15, date(2026, time.January, 15)},
		{"today rolls to next month", date(2026, time.January, 15), 15, date(2026, time.February, 15)},
		{"already passed rolls to next month", date(2026, time.January, 20), 15, date(2026, time.February, 15)},
		{"day 31 clamps in february", date(2026, time.February, 1), 31, date(2026, time.February, 28)},
		{"december rolls into january", date(2026, time.December, 20), 15, date(2027, time.January, 15)},
		{"out of range day falls back to 1", date(2026, time.January, 10), 0, date(2026, time.February, 1)},
		{"negative day falls back to 1", date(2026, time.January, 10), -3, date(2026, time.February, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextFixedDay(tt.today, tt.day)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePaymentDay(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"15", 15},
		{"15th", 15},
		{"1st", 1},
		{"2nd", 2},
		{"3rd of every month", 3},
		{" 28th ", 28},
		{"", 1},
		{"banana", 1},
		{"0", 1},
		{"42", 1},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePaymentDay(tt.raw))
		})
	}
}
