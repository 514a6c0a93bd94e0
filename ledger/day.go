package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// DAY - Calendar-day abstraction (streaks and challenges are day-granular)
// =============================================================================

// Day is a calendar day in UTC. The zero value means "no day".
type Day struct {
	Year       int
	Month      time.Month
	DayOfMonth int
}

// Constructors
func NewDay(year int, month time.Month, day int) Day {
	return Day{Year: year, Month: month, DayOfMonth: day}
}

// DayOf truncates a timestamp to its UTC calendar day.
func DayOf(t time.Time) Day {
	u := t.UTC()
	return Day{Year: u.Year(), Month: u.Month(), DayOfMonth: u.Day()}
}

// Today returns the current UTC calendar day.
func Today() Day { return DayOf(time.Now()) }

func (d Day) Time() time.Time {
	return time.Date(d.Year, d.Month, d.DayOfMonth, 0, 0, 0, 0, time.UTC)
}

func (d Day) IsZero() bool { return d == Day{} }

// Comparison
func (d Day) Equal(other Day) bool  { return d == other }
func (d Day) Before(other Day) bool { return d.Time().Before(other.Time()) }
func (d Day) After(other Day) bool  { return d.Time().After(other.Time()) }

// Arithmetic
func (d Day) AddDays(n int) Day { return DayOf(d.Time().AddDate(0, 0, n)) }

// DaysBetween returns to - from in whole days.
func DaysBetween(from, to Day) int {
	return int(to.Time().Sub(from.Time()).Hours() / 24)
}

func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format("2006-01-02")
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	if s == "" {
		return Day{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return DayOf(t), nil
}

// MarshalText/UnmarshalText make Day round-trip through JSON and YAML as a
// plain date string.
func (d Day) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Day) UnmarshalText(b []byte) error {
	parsed, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
