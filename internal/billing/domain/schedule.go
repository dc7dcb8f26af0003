package domain

import (
	"strconv"
	"strings"
	"time"

	clientdomain "github.com/smallbiznis/agencydesk/internal/client/domain"
)

// NextDueDate advances a due date by one billing cycle. Monthly cadence keeps
// the day of month, clamping to the last day when the target month is shorter
// (Jan 31 -> Feb 28/29). Weekly cadence is an exact seven-day advance.
func NextDueDate(from time.Time, cadence clientdomain.BillingMode) time.Time {
	if cadence == clientdomain.BillingModeWeekly {
		return from.AddDate(0, 0, 7)
	}

	year, month, day := from.Date()
	month++
	if month > time.December {
		month = time.January
		year++
	}
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, from.Hour(), from.Minute(), from.Second(), from.Nanosecond(), from.Location())
}

// NextFixedDay returns the next occurrence of the given day of month strictly
// after today. Days beyond the target month's length are clamped; days outside
// 1..31 fall back to 1 so scheduling always produces a date.
func NextFixedDay(today time.Time, day int) time.Time {
	if day < 1 || day > 31 {
		day = 1
	}

	candidate := dateWithDay(today.Year(), today.Month(), day, today.Location())
	if candidate.After(today) {
		return candidate
	}

	year, month := today.Year(), today.Month()+1
	if month > time.December {
		month = time.January
		year++
	}
	return dateWithDay(year, month, day, today.Location())
}

// ParsePaymentDay interprets a free-form payment-day field. Unparseable or
// out-of-range values fall back to 1 rather than failing.
func ParsePaymentDay(raw string) int {
	if fields := strings.Fields(raw); len(fields) > 0 {
		raw = fields[0]
	}
	raw = strings.TrimSuffix(raw, "st")
	raw = strings.TrimSuffix(raw, "nd")
	raw = strings.TrimSuffix(raw, "rd")
	raw = strings.TrimSuffix(raw, "th")

	day, err := strconv.Atoi(raw)
	if err != nil || day < 1 || day > 31 {
		return 1
	}
	return day
}

func dateWithDay(year int, month time.Month, day int, loc *time.Location) time.Time {
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
