package period

import (
	"fmt"
	"time"
)

// Period is a half-open taxation window [Start, End).
type Period struct {
	Start time.Time
	End   time.Time
}

// Month returns the calendar-month period containing t, in UTC.
func Month(t time.Time) Period {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

// Parse accepts "YYYY-MM" and returns that calendar month.
func Parse(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q (want YYYY-MM): %w", s, err)
	}
	return Month(t), nil
}

func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

func (p Period) String() string {
	return p.Start.Format("2006-01")
}
