package services

import (
    "encoding/json"
    "strings"
    "testing"
    "time"

    "github.com/larkinmaxim/JiraIssueLogger/internal/config"
    "github.com/larkinmaxim/JiraIssueLogger/internal/timeline"
    "github.com/rs/zerolog"
)

func testConfig() config.Config {
    return config.Config{
        JiraProject:        "EI",
        JiraIssueType:      "Project",
        SyncStatuses:       []string{"in progress", "deployed ac", "deployed pd", "closed"},
        FieldProjectTicket: "customfield_11491",
        FieldPlannedStart:  "customfield_15990",
        FieldPlannedFinish: "customfield_15994",
        PlannedStartName:   "Start Date",
        PlannedFinishName:  "End date",
    }
}

func TestStatusJQL(t *testing.T) {
    got := statusJQL(testConfig())
    want := `project in (EI) AND issuetype = Project AND "Project ticket" is not EMPTY AND "Start Date" is not empty AND "End date" is not empty AND status in ("in progress", "deployed ac", "deployed pd", "closed")`
    if got != want { t.Fatalf("jql mismatch:\n got %s\nwant %s", got, want) }
}

func TestStatusJQL_PlannedDateNamesConfigurable(t *testing.T) {
    cfg := testConfig()
    cfg.PlannedStartName = "Dev start"
    cfg.PlannedFinishName = "Dev finish"
    got := statusJQL(cfg)
    if !strings.Contains(got, `"Dev start" is not empty`) || !strings.Contains(got, `"Dev finish" is not empty`) {
        t.Fatalf("renamed planned-date clauses missing: %s", got)
    }
}

func TestStatusJQL_Override(t *testing.T) {
    cfg := testConfig()
    cfg.JiraJQL = "project = OPS"
    if got := statusJQL(cfg); got != "project = OPS" { t.Fatalf("override ignored: %s", got) }
}

const issuePayload = `{
    "key": "EI-1234",
    "fields": {
        "summary": "Carrier onboarding flow",
        "status": {"name": "Deployed AC"},
        "customfield_11491": {"key": "PRJ-88"},
        "customfield_15990": "2024-03-04",
        "customfield_15994": "2024-03-08"
    },
    "changelog": {
        "total": 3,
        "histories": [
            {"created": "2024-03-04T10:00:00.000+0000", "items": [
                {"field": "status", "fromString": "Open", "toString": "In Progress"}
            ]},
            {"created": "2024-03-07T16:00:00.000+0000", "items": [
                {"field": "Environment", "fromString": "Development", "toString": "Acceptance"}
            ]},
            {"created": "2024-03-08T09:00:00.000+0000", "items": [
                {"field": "status", "fromString": "In Progress", "toString": "Deployed AC"}
            ]}
        ]
    }
}`

func TestBuildFact_FromIssuePayload(t *testing.T) {
    var payload map[string]any
    if err := json.Unmarshal([]byte(issuePayload), &payload); err != nil { t.Fatalf("fixture: %v", err) }
    fact, err := buildFact(payload, testConfig(), timeline.DefaultIndicators(), zerolog.Nop())
    if err != nil { t.Fatalf("buildFact: %v", err) }
    if fact.IssueKey != "EI-1234" { t.Fatalf("key = %s", fact.IssueKey) }
    if fact.Status != "deployed ac" { t.Fatalf("status must be lowercased, got %q", fact.Status) }
    if fact.ProjectTicket != "PRJ-88" { t.Fatalf("project ticket = %q", fact.ProjectTicket) }
    if fact.ActualStart == nil || !fact.ActualStart.Equal(time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)) {
        t.Fatalf("actual start = %v", fact.ActualStart)
    }
    // the Environment transition wins over the later status transition
    if fact.ActualFinish == nil || !fact.ActualFinish.Equal(time.Date(2024, 3, 7, 16, 0, 0, 0, time.UTC)) {
        t.Fatalf("actual finish = %v", fact.ActualFinish)
    }
    if fact.ActualDuration == nil || *fact.ActualDuration != 3 {
        t.Fatalf("actual duration = %v, want 3", fact.ActualDuration)
    }
    if fact.PlannedDuration == nil || *fact.PlannedDuration != 4 {
        t.Fatalf("planned duration = %v, want 4", fact.PlannedDuration)
    }
    if fact.DetailsUpdatedAt == nil { t.Fatal("expected details stamp after successful inference") }
}

func TestBuildFact_EnvFieldRemappedToID(t *testing.T) {
    // deployments that load a fields file end up with EnvField set to the
    // customfield id; the acceptance transition must still be found
    cfg := testConfig()
    cfg.EnvField = "customfield_10145"
    payload := map[string]any{
        "key":    "EI-77",
        "fields": map[string]any{"status": map[string]any{"name": "Deployed AC"}},
        "changelog": map[string]any{"total": float64(2), "histories": []any{
            map[string]any{"created": "2024-03-04T10:00:00.000+0000", "items": []any{
                map[string]any{"field": "status", "toString": "In Progress"},
            }},
            map[string]any{"created": "2024-03-07T16:00:00.000+0000", "items": []any{
                map[string]any{"field": "Environment", "fieldId": "customfield_10145", "toString": "Acceptance"},
            }},
        }},
    }
    fact, err := buildFact(payload, cfg, indicators(cfg), zerolog.Nop())
    if err != nil { t.Fatalf("buildFact: %v", err) }
    if fact.ActualFinish == nil || !fact.ActualFinish.Equal(time.Date(2024, 3, 7, 16, 0, 0, 0, time.UTC)) {
        t.Fatalf("id-configured env field not matched, finish = %v", fact.ActualFinish)
    }
}

func TestBuildFact_NoChangelogNoStamp(t *testing.T) {
    payload := map[string]any{
        "key": "EI-9",
        "fields": map[string]any{
            "summary": "No history yet",
            "status":  map[string]any{"name": "In Progress"},
        },
    }
    fact, err := buildFact(payload, testConfig(), timeline.DefaultIndicators(), zerolog.Nop())
    if err != nil { t.Fatalf("buildFact: %v", err) }
    if fact.ActualStart != nil || fact.ActualFinish != nil || fact.ActualDuration != nil {
        t.Fatalf("expected empty actuals, got %+v", fact)
    }
    if fact.DetailsUpdatedAt != nil { t.Fatal("no inference, no stamp") }
}

func TestStatusFact(t *testing.T) {
    var payload map[string]any
    if err := json.Unmarshal([]byte(issuePayload), &payload); err != nil { t.Fatalf("fixture: %v", err) }
    fact, err := statusFact(payload, testConfig())
    if err != nil { t.Fatalf("statusFact: %v", err) }
    if fact.Status != "deployed ac" { t.Fatalf("status = %q", fact.Status) }
    if fact.PlannedDuration == nil || *fact.PlannedDuration != 4 {
        t.Fatalf("planned duration = %v", fact.PlannedDuration)
    }
    if fact.ActualStart != nil { t.Fatal("status sync must not touch actuals") }
}

func TestStatusFact_MissingKey(t *testing.T) {
    if _, err := statusFact(map[string]any{"fields": map[string]any{}}, testConfig()); err == nil {
        t.Fatal("expected error for hit without key")
    }
}

func TestParseTimeUTC(t *testing.T) {
    if got := parseTimeUTC("2024-03-04"); got == nil || !got.Equal(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)) {
        t.Fatalf("date-only = %v", got)
    }
    if got := parseTimeUTC("2024-03-04T10:00:00.000+0200"); got == nil || !got.Equal(time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)) {
        t.Fatalf("offset not normalized to UTC: %v", got)
    }
    if parseTimeUTC("") != nil || parseTimeUTC("garbage") != nil {
        t.Fatal("empty/garbage must yield nil")
    }
}

func TestOptionToString(t *testing.T) {
    if got := optionToString("PRJ-1"); got != "PRJ-1" { t.Fatalf("string: %q", got) }
    if got := optionToString(map[string]any{"value": "Acceptance"}); got != "Acceptance" { t.Fatalf("option: %q", got) }
    if got := optionToString(map[string]any{"key": "PRJ-2"}); got != "PRJ-2" { t.Fatalf("link: %q", got) }
    if got := optionToString(nil); got != "" { t.Fatalf("nil: %q", got) }
    if got := optionToString(42); got != "" { t.Fatalf("number: %q", got) }
}

func TestIndicatorsFromConfig(t *testing.T) {
    cfg := testConfig()
    cfg.EnvField = "customfield_777"
    cfg.StartStatuses = []string{"Doing"}
    ind := indicators(cfg)
    if ind.EnvField != "customfield_777" { t.Fatalf("env field = %s", ind.EnvField) }
    if len(ind.Start) != 1 || !strings.EqualFold(ind.Start[0], "doing") { t.Fatalf("start = %v", ind.Start) }
    // unset values keep the defaults
    if len(ind.StatusFinish) == 0 { t.Fatal("status finish defaults lost") }
}
