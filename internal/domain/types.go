package domain

import "time"

// FieldTransition is one field-value change from an issue's changelog.
// Field is the display name, FieldID the stable customfield id; Jira sends
// either or both. Created once during normalization, never mutated afterwards.
type FieldTransition struct {
    Field   string
    FieldID string
    From    string
    To      string
    At      time.Time
}

// ChangeLog is the ordered change history of one issue: ascending by
// timestamp, ties kept in original changelog order.
type ChangeLog []FieldTransition

// Timeline is the inferred actual development window. Nil instants mean no
// qualifying event was found; the method strings record which rule matched.
type Timeline struct {
    Start        *time.Time
    StartMethod  string
    Finish       *time.Time
    FinishMethod string
}

// Inconsistent reports whether both endpoints were found but the finish
// precedes the start. That indicates a malformed or out-of-order changelog
// and is surfaced by callers, never corrected here.
func (t Timeline) Inconsistent() bool {
    return t.Start != nil && t.Finish != nil && t.Finish.Before(*t.Start)
}

// IssueFact is one warehouse row: basic issue fields, the planned window and
// the inferred actual window. Built fresh per run and handed to the repo.
type IssueFact struct {
    IssueKey         string
    Summary          string
    Status           string
    ProjectTicket    string
    PlannedDevStart  *time.Time
    PlannedDevFinish *time.Time
    PlannedDuration  *float64
    ActualStart      *time.Time
    ActualFinish     *time.Time
    ActualDuration   *float64
    DetailsUpdatedAt *time.Time
}
