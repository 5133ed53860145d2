package timeline

import (
    "fmt"
    "time"

    "github.com/larkinmaxim/JiraIssueLogger/internal/domain"
)

// FactInput carries everything AssembleFact needs. Missing custom fields
// arrive as nil pointers and stay nil in the fact; that is expected for
// issues early in their lifecycle, not an error.
type FactInput struct {
    Key           string
    Summary       string
    Status        string
    ProjectTicket string

    PlannedStart  *time.Time
    PlannedFinish *time.Time

    Timeline domain.Timeline

    // NewlyResolved is supplied by the caller: true when this run resolved at
    // least one of the actual dates. The assembler itself keeps no state and
    // never compares against what is already stored.
    NewlyResolved bool
    ProcessedAt   time.Time
}

// AssembleFact merges basic fields, the planned window and the inferred
// timeline into one IssueFact. Pure: identical input yields an identical
// fact. An inverted planned or actual window fails with ErrInvalidRange
// rather than producing a partial fact.
func AssembleFact(in FactInput) (domain.IssueFact, error) {
    planned, err := BusinessDays(in.PlannedStart, in.PlannedFinish)
    if err != nil {
        return domain.IssueFact{}, fmt.Errorf("issue %s: planned window: %w", in.Key, err)
    }
    actual, err := BusinessDays(in.Timeline.Start, in.Timeline.Finish)
    if err != nil {
        return domain.IssueFact{}, fmt.Errorf("issue %s: actual window: %w", in.Key, err)
    }
    fact := domain.IssueFact{
        IssueKey:         in.Key,
        Summary:          in.Summary,
        Status:           in.Status,
        ProjectTicket:    in.ProjectTicket,
        PlannedDevStart:  in.PlannedStart,
        PlannedDevFinish: in.PlannedFinish,
        PlannedDuration:  planned,
        ActualStart:      in.Timeline.Start,
        ActualFinish:     in.Timeline.Finish,
        ActualDuration:   actual,
    }
    if in.NewlyResolved {
        at := in.ProcessedAt.UTC()
        fact.DetailsUpdatedAt = &at
    }
    return fact, nil
}
