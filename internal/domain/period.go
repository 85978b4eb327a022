package domain

import (
	"fmt"
	"time"
)

// PeriodKey identifies a usage period as "YYYY-MM" of the month the period
// started in. Keys sort chronologically as strings.
type PeriodKey string

// String returns the string representation of the key.
func (k PeriodKey) String() string {
	return string(k)
}

// CurrentPeriodKey returns the key of the period containing now.
//
// Periods start on the anchor's day of month. When that day does not exist
// in a month (e.g. the 31st in April) the period starts on the month's last
// day instead. A zero anchor means calendar months.
func CurrentPeriodKey(anchor, now time.Time) PeriodKey {
	start, _ := PeriodBounds(anchor, now)
	return periodKeyFor(start)
}

// PeriodBounds returns the [start, end) interval of the period containing now, in UTC.
func PeriodBounds(anchor, now time.Time) (start, end time.Time) {
	now = now.UTC()
	day := anchorDay(anchor)

	y, m := now.Year(), now.Month()
	start = periodStart(y, m, day)
	if now.Before(start) {
		y, m = addMonths(y, m, -1)
		start = periodStart(y, m, day)
	}

	ny, nm := addMonths(y, m, 1)
	end = periodStart(ny, nm, day)
	return start, end
}

// DaysUntilReset returns the number of whole or partial days before the next period.
func DaysUntilReset(anchor, now time.Time) int {
	_, end := PeriodBounds(anchor, now)
	remaining := end.Sub(now.UTC())
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// PreviousPeriodKeys returns up to n keys ending with the current one, newest first.
func PreviousPeriodKeys(anchor, now time.Time, n int) []PeriodKey {
	start, _ := PeriodBounds(anchor, now)
	y, m := start.Year(), start.Month()

	keys := make([]PeriodKey, 0, n)
	for i := 0; i < n; i++ {
		keys = append(keys, PeriodKey(fmt.Sprintf("%04d-%02d", y, int(m))))
		y, m = addMonths(y, m, -1)
	}
	return keys
}

func periodKeyFor(start time.Time) PeriodKey {
	return PeriodKey(fmt.Sprintf("%04d-%02d", start.Year(), int(start.Month())))
}

func anchorDay(anchor time.Time) int {
	if anchor.IsZero() {
		return 1
	}
	return anchor.UTC().Day()
}

func periodStart(y int, m time.Month, day int) time.Time {
	if last := daysIn(y, m); day > last {
		day = last
	}
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func daysIn(y int, m time.Month) int {
	// Day 0 of the next month normalises to the last day of m.
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func addMonths(y int, m time.Month, delta int) (int, time.Month) {
	total := y*12 + int(m-1) + delta
	return total / 12, time.Month(total%12 + 1)
}
