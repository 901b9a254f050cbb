package domain

import (
	"strings"
	"time"
)

// DaysPerWeek is the number of day columns in one displayed week.
const DaysPerWeek = 7

// DateLayout is the wire format for spent-on dates.
const DateLayout = "2006-01-02"

// Week identifies one displayed Monday-to-Sunday window. Start is always
// normalized to Monday at UTC midnight.
type Week struct {
	Start time.Time
}

// NewWeek returns the week containing t.
func NewWeek(t time.Time) Week {
	day := DayStart(t)
	offset := (int(day.Weekday()) + 6) % 7
	return Week{Start: day.AddDate(0, 0, -offset)}
}

// ParseWeek parses a yyyy-mm-dd date and returns its containing week.
func ParseWeek(s string) (Week, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Week{}, ErrInvalidDate
	}
	return NewWeek(t), nil
}

// Day returns the date of day index i. Indices outside 0..6 walk past the
// week boundary, matching time.Time date arithmetic.
func (w Week) Day(i int) time.Time {
	return w.Start.AddDate(0, 0, i)
}

// End returns the Sunday closing the week.
func (w Week) End() time.Time {
	return w.Start.AddDate(0, 0, DaysPerWeek-1)
}

// IndexOf maps a date to its day index within the week.
func (w Week) IndexOf(date time.Time) (int, bool) {
	diff := int(DayStart(date).Sub(w.Start).Hours() / 24)
	if diff < 0 || diff >= DaysPerWeek {
		return 0, false
	}
	return diff, true
}

// Contains reports whether date falls inside the week.
func (w Week) Contains(date time.Time) bool {
	_, ok := w.IndexOf(date)
	return ok
}

// IsZero reports whether the week has been initialized.
func (w Week) IsZero() bool {
	return w.Start.IsZero()
}

// String returns the week's Monday in wire format.
func (w Week) String() string {
	return w.Start.Format(DateLayout)
}

// DayStart truncates t to UTC midnight.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
