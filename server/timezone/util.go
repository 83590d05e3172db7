// Package timezone resolves the pharmacy's local time settings: the report
// timezone and the daily HH:MM schedule.
package timezone

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// TimezoneMexicoCity is the default pharmacy timezone.
	TimezoneMexicoCity = "America/Mexico_City"

	// DefaultReportClock is when the daily report job runs.
	DefaultReportClock = "07:30"
)

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// String formats the clock as HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseTimezone parses an IANA timezone identifier. Empty input yields
// America/Mexico_City. Invalid input yields UTC and an error.
func ParseTimezone(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		tz = TimezoneMexicoCity
	}
	if tz == "UTC" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return loc, nil
}

// IsValidTimezone checks if a timezone identifier is valid.
func IsValidTimezone(tz string) bool {
	_, err := ParseTimezone(tz)
	return err == nil
}

// ParseClock parses "HH:MM" (24h). Empty input yields DefaultReportClock.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = DefaultReportClock
	}

	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return Clock{}, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 || len(mm) != 2 {
		return Clock{}, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

// DailySpec returns a five-field cron spec firing every day at c in loc.
func DailySpec(c Clock, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("CRON_TZ=%s %d %d * * *", loc.String(), c.Minute, c.Hour)
}

// NextRun returns the first occurrence of c in loc strictly after t.
func NextRun(t time.Time, c Clock, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), c.Hour, c.Minute, 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// NowInTimezone returns the current time in the given timezone.
func NowInTimezone(tz *time.Location) time.Time {
	if tz == nil {
		tz = time.UTC
	}
	return time.Now().In(tz)
}
