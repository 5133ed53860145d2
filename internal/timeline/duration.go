package timeline

import (
    "errors"
    "time"
)

// ErrInvalidRange is returned when the finish date precedes the start date.
// It signals upstream data inconsistency; batch callers record the issue and
// continue rather than abort the run.
var ErrInvalidRange = errors.New("timeline: finish precedes start")

// BusinessDays counts the calendar days between two instants that are not
// Saturday or Sunday. Both instants are truncated to their UTC calendar date;
// the count runs from the start date inclusive up to the finish date
// exclusive, so a same-day window is 0 and Friday to the following Monday
// is 1. A nil endpoint yields a nil count and no error.
func BusinessDays(start, finish *time.Time) (*float64, error) {
    if start == nil || finish == nil { return nil, nil }
    s := truncateDay(*start)
    f := truncateDay(*finish)
    if f.Before(s) { return nil, ErrInvalidRange }
    days := 0.0
    for d := s; d.Before(f); d = d.AddDate(0, 0, 1) {
        if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday { days++ }
    }
    return &days, nil
}

func truncateDay(t time.Time) time.Time {
    u := t.UTC()
    return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
