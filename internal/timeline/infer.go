package timeline

import (
    "strings"

    "github.com/larkinmaxim/JiraIssueLogger/internal/domain"
)

// Finish method labels stored alongside the inferred instants so downstream
// consumers can tell which rule produced a date.
const (
    MethodEnvAcceptance    = "environment_change_to_acceptance"
    MethodStatusDeployedAC = "status_deployed_ac"
)

// Indicators is the configuration of the inference scan: which changelog
// fields to look at and which target values qualify. All value matching is
// case-insensitive. Passed explicitly so alternate workflows can be inferred
// without code changes.
type Indicators struct {
    StatusField  string
    EnvField     string
    Start        []string
    EnvFinish    []string
    StatusFinish []string
}

// DefaultIndicators mirrors the production Jira workflow: development starts
// at In Progress or Code review, and ends when the Environment field flips to
// Acceptance or, failing that, when the status reaches Deployed AC. Statuses
// like "ready for deployment", "deployed pd" and "closed" happen after the
// measured window and are deliberately absent.
func DefaultIndicators() Indicators {
    return Indicators{
        StatusField:  "status",
        EnvField:     "Environment",
        Start:        []string{"in progress", "code review"},
        EnvFinish:    []string{"acceptance"},
        StatusFinish: []string{"deployed ac"},
    }
}

func matchesAny(vals []string, v string) bool {
    for _, s := range vals {
        if strings.EqualFold(strings.TrimSpace(v), s) { return true }
    }
    return false
}

// fieldIs matches the configured identifier against either the display name
// or the customfield id, so indicator sets can be configured with whichever
// the deployment's fields file yields.
func fieldIs(e domain.FieldTransition, name string) bool {
    return strings.EqualFold(e.Field, name) || (e.FieldID != "" && strings.EqualFold(e.FieldID, name))
}

// Infer scans an ordered ChangeLog and produces the actual development
// window. An empty changelog yields an all-null Timeline. When the data is
// malformed and the finish chronologically precedes the start, both values
// are still reported; flagging is the caller's job.
func Infer(cl domain.ChangeLog, ind Indicators) domain.Timeline {
    var tl domain.Timeline

    for _, e := range cl {
        if !fieldIs(e, ind.StatusField) { continue }
        if matchesAny(ind.Start, e.To) {
            at := e.At
            tl.Start = &at
            tl.StartMethod = e.To
            break
        }
    }

    // Ordered rule list: first satisfied rule wins, later rules are not
    // consulted even if their event is chronologically earlier.
    finishRules := []struct {
        method string
        match  func(domain.FieldTransition) bool
    }{
        {MethodEnvAcceptance, func(e domain.FieldTransition) bool {
            return fieldIs(e, ind.EnvField) && matchesAny(ind.EnvFinish, e.To)
        }},
        {MethodStatusDeployedAC, func(e domain.FieldTransition) bool {
            return fieldIs(e, ind.StatusField) && matchesAny(ind.StatusFinish, e.To)
        }},
    }
    for _, rule := range finishRules {
        for _, e := range cl {
            if rule.match(e) {
                at := e.At
                tl.Finish = &at
                tl.FinishMethod = rule.method
                return tl
            }
        }
    }
    return tl
}
