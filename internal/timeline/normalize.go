package timeline

import (
    "fmt"
    "sort"
    "time"

    "github.com/larkinmaxim/JiraIssueLogger/internal/domain"
)

// MalformedChangelogError reports a history entry whose timestamp could not
// be parsed. The whole normalization fails; the caller decides whether to
// skip the issue or abort the batch.
type MalformedChangelogError struct {
    Raw string
}

func (e *MalformedChangelogError) Error() string {
    return fmt.Sprintf("changelog: unparseable history timestamp %q", e.Raw)
}

// Jira emits RFC3339-ish stamps with a compact zone offset; cloud and server
// deployments disagree on the exact shape, so try the known layouts in order.
var timeLayouts = []string{
    time.RFC3339Nano,
    time.RFC3339,
    "2006-01-02T15:04:05.000-0700",
    "2006-01-02T15:04:05-0700",
}

func parseChangelogTime(s string) (time.Time, error) {
    for _, l := range timeLayouts {
        if t, err := time.Parse(l, s); err == nil { return t.UTC(), nil }
    }
    return time.Time{}, &MalformedChangelogError{Raw: s}
}

// Normalize flattens the changelog section of a raw issue payload into a
// ChangeLog. Each history entry may carry several field items sharing one
// timestamp; every item becomes its own transition with that timestamp.
// A payload without a changelog yields an empty ChangeLog, not an error.
func Normalize(payload map[string]any) (domain.ChangeLog, error) {
    if payload == nil { return nil, nil }
    ch, _ := payload["changelog"].(map[string]any)
    if ch == nil { return nil, nil }
    hs, _ := ch["histories"].([]any)
    var out domain.ChangeLog
    for _, h0 := range hs {
        hv, _ := h0.(map[string]any)
        if hv == nil { continue }
        raw, _ := hv["created"].(string)
        at, err := parseChangelogTime(raw)
        if err != nil { return nil, err }
        items, _ := hv["items"].([]any)
        for _, it0 := range items {
            itm, _ := it0.(map[string]any)
            if itm == nil { continue }
            out = append(out, domain.FieldTransition{
                Field:   toStr(itm["field"]),
                FieldID: toStr(itm["fieldId"]),
                From:    toStr(itm["fromString"]),
                To:      toStr(itm["toString"]),
                At:      at,
            })
        }
    }
    // histories are not guaranteed chronological; stable sort keeps the
    // original changelog order for equal timestamps
    sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
    return out, nil
}

func toStr(v any) string {
    if v == nil { return "" }
    if s, ok := v.(string); ok { return s }
    return fmt.Sprintf("%v", v)
}
