package timeline

import (
    "errors"
    "reflect"
    "testing"
    "time"

    "github.com/larkinmaxim/JiraIssueLogger/internal/domain"
)

func sampleInput() FactInput {
    ps := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
    pf := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
    as := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
    af := time.Date(2024, 3, 11, 15, 0, 0, 0, time.UTC)
    return FactInput{
        Key:           "EI-1234",
        Summary:       "Carrier onboarding flow",
        Status:        "deployed ac",
        ProjectTicket: "PRJ-88",
        PlannedStart:  &ps,
        PlannedFinish: &pf,
        Timeline: domain.Timeline{
            Start: &as, StartMethod: "In Progress",
            Finish: &af, FinishMethod: MethodStatusDeployedAC,
        },
        NewlyResolved: true,
        ProcessedAt:   time.Date(2024, 3, 12, 1, 30, 0, 0, time.UTC),
    }
}

func TestAssembleFact_ComputesBothDurations(t *testing.T) {
    fact, err := AssembleFact(sampleInput())
    if err != nil { t.Fatalf("unexpected error: %v", err) }
    if fact.PlannedDuration == nil || *fact.PlannedDuration != 4 {
        t.Fatalf("planned duration = %v, want 4", fact.PlannedDuration)
    }
    if fact.ActualDuration == nil || *fact.ActualDuration != 5 {
        t.Fatalf("actual duration = %v, want 5", fact.ActualDuration)
    }
    if fact.DetailsUpdatedAt == nil || !fact.DetailsUpdatedAt.Equal(time.Date(2024, 3, 12, 1, 30, 0, 0, time.UTC)) {
        t.Fatalf("details stamp = %v", fact.DetailsUpdatedAt)
    }
}

func TestAssembleFact_MissingCustomFieldsYieldNulls(t *testing.T) {
    in := sampleInput()
    in.PlannedStart = nil
    in.PlannedFinish = nil
    in.Timeline = domain.Timeline{}
    in.NewlyResolved = false
    fact, err := AssembleFact(in)
    if err != nil { t.Fatalf("absence is not an error: %v", err) }
    if fact.PlannedDuration != nil || fact.ActualDuration != nil {
        t.Fatalf("expected nil durations, got %v / %v", fact.PlannedDuration, fact.ActualDuration)
    }
    if fact.DetailsUpdatedAt != nil {
        t.Fatalf("details stamp must stay nil when nothing was resolved, got %v", fact.DetailsUpdatedAt)
    }
}

func TestAssembleFact_StampOnlyWhenNewlyResolved(t *testing.T) {
    in := sampleInput()
    in.NewlyResolved = false
    fact, err := AssembleFact(in)
    if err != nil { t.Fatalf("unexpected error: %v", err) }
    if fact.DetailsUpdatedAt != nil { t.Fatalf("expected nil stamp, got %v", fact.DetailsUpdatedAt) }
}

func TestAssembleFact_InvertedActualWindowFails(t *testing.T) {
    in := sampleInput()
    s := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
    f := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
    in.Timeline.Start = &s
    in.Timeline.Finish = &f
    _, err := AssembleFact(in)
    if !errors.Is(err, ErrInvalidRange) { t.Fatalf("expected ErrInvalidRange, got %v", err) }
}

func TestAssembleFact_Deterministic(t *testing.T) {
    a, err1 := AssembleFact(sampleInput())
    b, err2 := AssembleFact(sampleInput())
    if err1 != nil || err2 != nil { t.Fatalf("unexpected errors: %v / %v", err1, err2) }
    if !reflect.DeepEqual(a, b) { t.Fatalf("same input produced different facts:\n%+v\n%+v", a, b) }
}
