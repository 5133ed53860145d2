package services

import (
    "fmt"
    "strings"
    "time"

    "github.com/larkinmaxim/JiraIssueLogger/internal/config"
    "github.com/larkinmaxim/JiraIssueLogger/internal/domain"
    "github.com/larkinmaxim/JiraIssueLogger/internal/timeline"
    "github.com/rs/zerolog"
)

// statusJQL builds the tracked-issue query. JIRA_JQL overrides it wholesale
// for deployments whose workflow differs.
func statusJQL(cfg config.Config) string {
    if cfg.JiraJQL != "" { return cfg.JiraJQL }
    quoted := make([]string, 0, len(cfg.SyncStatuses))
    for _, st := range cfg.SyncStatuses {
        quoted = append(quoted, fmt.Sprintf("%q", st))
    }
    return fmt.Sprintf(
        `project in (%s) AND issuetype = %s AND "Project ticket" is not EMPTY AND %q is not empty AND %q is not empty AND status in (%s)`,
        cfg.JiraProject, cfg.JiraIssueType, cfg.PlannedStartName, cfg.PlannedFinishName, strings.Join(quoted, ", "))
}

// statusFact extracts the status-sync view of a search hit. Only the key is
// mandatory; everything else degrades to empty/nil.
func statusFact(issue map[string]any, cfg config.Config) (domain.IssueFact, error) {
    key := toStrAny(issue["key"])
    if key == "" { return domain.IssueFact{}, fmt.Errorf("search hit without issue key") }
    fields, _ := issue["fields"].(map[string]any)
    f := domain.IssueFact{IssueKey: key}
    if fields == nil { return f, nil }
    f.Summary = toStrAny(fields["summary"])
    if st, ok := fields["status"].(map[string]any); ok {
        f.Status = strings.ToLower(toStrAny(st["name"]))
    }
    f.ProjectTicket = optionToString(fields[cfg.FieldProjectTicket])
    f.PlannedDevStart = parseTimeUTC(toStrAny(fields[cfg.FieldPlannedStart]))
    f.PlannedDevFinish = parseTimeUTC(toStrAny(fields[cfg.FieldPlannedFinish]))
    if pd, err := timeline.BusinessDays(f.PlannedDevStart, f.PlannedDevFinish); err == nil {
        f.PlannedDuration = pd
    } else {
        return f, fmt.Errorf("issue %s: planned window: %w", key, err)
    }
    return f, nil
}

// buildFact runs the full pipeline for one issue payload: normalize the
// changelog, infer the actual window, assemble the fact.
func buildFact(payload map[string]any, cfg config.Config, ind timeline.Indicators, log zerolog.Logger) (domain.IssueFact, error) {
    key := toStrAny(payload["key"])
    fields, _ := payload["fields"].(map[string]any)

    cl, err := timeline.Normalize(payload)
    if err != nil { return domain.IssueFact{}, fmt.Errorf("issue %s: %w", key, err) }
    tl := timeline.Infer(cl, ind)
    if tl.Inconsistent() {
        log.Warn().Str("issue", key).
            Time("start", *tl.Start).Time("finish", *tl.Finish).
            Msg("inferred finish precedes start")
    }

    in := timeline.FactInput{
        Key:           key,
        Timeline:      tl,
        NewlyResolved: tl.Start != nil || tl.Finish != nil,
        ProcessedAt:   time.Now(),
    }
    if fields != nil {
        in.Summary = toStrAny(fields["summary"])
        if st, ok := fields["status"].(map[string]any); ok {
            in.Status = strings.ToLower(toStrAny(st["name"]))
        }
        in.ProjectTicket = optionToString(fields[cfg.FieldProjectTicket])
        in.PlannedStart = parseTimeUTC(toStrAny(fields[cfg.FieldPlannedStart]))
        in.PlannedFinish = parseTimeUTC(toStrAny(fields[cfg.FieldPlannedFinish]))
    }
    return timeline.AssembleFact(in)
}

var fieldTimeLayouts = []string{
    time.RFC3339Nano,
    time.RFC3339,
    "2006-01-02T15:04:05.000-0700",
    "2006-01-02T15:04:05-0700",
    "2006-01-02",
}

// parseTimeUTC parses a Jira field value; date-only planned fields are taken
// as midnight UTC. Unparseable or empty values yield nil.
func parseTimeUTC(s string) *time.Time {
    s = strings.TrimSpace(s)
    if s == "" { return nil }
    for _, layout := range fieldTimeLayouts {
        if t, err := time.Parse(layout, s); err == nil {
            u := t.UTC()
            return &u
        }
    }
    return nil
}

func toStrAny(v any) string {
    s, _ := v.(string)
    return s
}

// optionToString flattens the shapes a custom field value arrives in: plain
// string, option object with "value", or issue-link object with "key".
func optionToString(v any) string {
    switch x := v.(type) {
    case string:
        return x
    case map[string]any:
        if s := toStrAny(x["value"]); s != "" { return s }
        if s := toStrAny(x["key"]); s != "" { return s }
        if s := toStrAny(x["name"]); s != "" { return s }
    }
    return ""
}

func intFromAny(v any) int {
    switch x := v.(type) {
    case float64:
        return int(x)
    case int:
        return x
    case int64:
        return int(x)
    }
    return 0
}
