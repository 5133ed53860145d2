package jira

import (
    "context"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/larkinmaxim/JiraIssueLogger/internal/config"
    "github.com/rs/zerolog"
)

func testClient(t *testing.T, apiVer string, handler http.HandlerFunc) *Client {
    t.Helper()
    srv := httptest.NewServer(handler)
    t.Cleanup(srv.Close)
    cfg := config.Config{JiraBaseURL: srv.URL, JiraAPIVersion: apiVer, HTTPTimeout: 5 * time.Second}
    return NewClient(cfg, zerolog.Nop())
}

func TestDoJSON_RetriesServerErrorsWithoutTrailingSleep(t *testing.T) {
    calls := 0
    c := testClient(t, "2", func(w http.ResponseWriter, r *http.Request) {
        calls++
        w.WriteHeader(http.StatusBadGateway)
    })
    start := time.Now()
    _, err := c.Issue(context.Background(), "EI-1", false)
    if err == nil { t.Fatal("expected error after exhausted retries") }
    if calls != 3 { t.Fatalf("attempts = %d, want 3", calls) }
    // two backoffs of 300ms and 600ms sit between the attempts; a sleep
    // after the final one would push well past this bound
    if elapsed := time.Since(start); elapsed > 1800*time.Millisecond {
        t.Fatalf("retries took %v, final attempt must return without sleeping", elapsed)
    }
}

func TestDoJSON_NoRetryOnClientError(t *testing.T) {
    calls := 0
    c := testClient(t, "2", func(w http.ResponseWriter, r *http.Request) {
        calls++
        w.WriteHeader(http.StatusNotFound)
    })
    if _, err := c.Issue(context.Background(), "EI-404", false); err == nil {
        t.Fatal("expected error")
    }
    if calls != 1 { t.Fatalf("4xx must not be retried, got %d attempts", calls) }
}

func TestFields_HonorsAPIVersion(t *testing.T) {
    for ver, want := range map[string]string{
        "2": "/rest/api/2/field",
        "3": "/rest/api/3/field",
    } {
        var gotPath string
        c := testClient(t, ver, func(w http.ResponseWriter, r *http.Request) {
            gotPath = r.URL.Path
            w.Header().Set("Content-Type", "application/json")
            w.Write([]byte(`[{"id": "customfield_10145", "name": "Environment"}]`))
        })
        fields, err := c.Fields(context.Background())
        if err != nil { t.Fatalf("version %s: %v", ver, err) }
        if gotPath != want { t.Fatalf("version %s hit %s, want %s", ver, gotPath, want) }
        if len(fields) != 1 || fields[0]["id"] != "customfield_10145" {
            t.Fatalf("version %s: unexpected fields %v", ver, fields)
        }
    }
}
