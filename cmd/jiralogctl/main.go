package main

import (
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "os"
    "strings"
    "time"

    "github.com/larkinmaxim/JiraIssueLogger/internal/adapters/jira"
    "github.com/larkinmaxim/JiraIssueLogger/internal/config"
    "github.com/larkinmaxim/JiraIssueLogger/internal/logger"
    "github.com/larkinmaxim/JiraIssueLogger/internal/timeline"
    "github.com/spf13/cobra"
)

var apiBase string

func main() {
    root := &cobra.Command{
        Use:   "jiralogctl",
        Short: "Operator tooling for the Jira issue logger",
    }
    root.AddCommand(inspectCmd(), triggerCmd(), fieldsCmd())
    if err := root.Execute(); err != nil {
        fmt.Fprintln(os.Stderr, err)
        os.Exit(1)
    }
}

// inspect fetches one issue straight from Jira and prints how its timeline
// would be interpreted, without touching the database.
func inspectCmd() *cobra.Command {
    return &cobra.Command{
        Use:   "inspect <issue-key>",
        Short: "Fetch an issue's changelog and show the inferred timeline",
        Args:  cobra.ExactArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            cfg := config.Load()
            log := logger.New(cfg)
            jc := jira.NewClient(cfg, log)

            ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
            defer cancel()
            payload, err := jc.Issue(ctx, args[0], true)
            if err != nil { return err }

            cl, err := timeline.Normalize(payload)
            if err != nil { return err }
            fmt.Printf("issue %s: %d transitions\n", args[0], len(cl))
            for _, e := range cl {
                fmt.Printf("  %s  %-20s %q -> %q\n",
                    e.At.Format(time.RFC3339), e.Field, e.From, e.To)
            }

            ind := timeline.DefaultIndicators()
            if cfg.EnvField != "" { ind.EnvField = cfg.EnvField }
            if len(cfg.StartStatuses) > 0 { ind.Start = cfg.StartStatuses }
            if len(cfg.EnvFinishValues) > 0 { ind.EnvFinish = cfg.EnvFinishValues }
            if len(cfg.FinishStatuses) > 0 { ind.StatusFinish = cfg.FinishStatuses }
            tl := timeline.Infer(cl, ind)

            if tl.Start != nil {
                fmt.Printf("actual start:  %s (via %s)\n", tl.Start.Format(time.RFC3339), tl.StartMethod)
            } else {
                fmt.Println("actual start:  not detected")
            }
            if tl.Finish != nil {
                fmt.Printf("actual finish: %s (via %s)\n", tl.Finish.Format(time.RFC3339), tl.FinishMethod)
            } else {
                fmt.Println("actual finish: not detected")
            }
            if tl.Inconsistent() { fmt.Println("warning: finish precedes start") }
            if d, err := timeline.BusinessDays(tl.Start, tl.Finish); err != nil {
                fmt.Printf("duration: %v\n", err)
            } else if d != nil {
                fmt.Printf("duration: %.0f business days\n", *d)
            }
            return nil
        },
    }
}

// fields lists the instance's field ids, for filling in the fields file when
// pointing at a freshly re-mapped Jira.
func fieldsCmd() *cobra.Command {
    return &cobra.Command{
        Use:   "fields",
        Short: "List Jira field names and ids",
        Args:  cobra.NoArgs,
        RunE: func(cmd *cobra.Command, args []string) error {
            cfg := config.Load()
            log := logger.New(cfg)
            jc := jira.NewClient(cfg, log)
            ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
            defer cancel()
            fields, err := jc.Fields(ctx)
            if err != nil { return err }
            for _, f := range fields {
                name, _ := f["name"].(string)
                id, _ := f["id"].(string)
                fmt.Printf("%-30s %s\n", id, name)
            }
            return nil
        },
    }
}

// trigger posts to a running instance's API, mirroring what the scheduler does.
func triggerCmd() *cobra.Command {
    jobs := []string{"update-status", "collect-closed-details", "collect-ac-details"}
    cmd := &cobra.Command{
        Use:       "trigger <" + strings.Join(jobs, "|") + ">",
        Short:     "Trigger a sync job on a running instance",
        Args:      cobra.ExactArgs(1),
        ValidArgs: jobs,
        RunE: func(cmd *cobra.Command, args []string) error {
            url := strings.TrimRight(apiBase, "/") + "/api/" + args[0]
            ctx, cancel := context.WithTimeout(cmd.Context(), 35*time.Minute)
            defer cancel()
            req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
            if err != nil { return err }
            resp, err := http.DefaultClient.Do(req)
            if err != nil { return err }
            defer resp.Body.Close()
            var body map[string]any
            if err := json.NewDecoder(resp.Body).Decode(&body); err != nil { return err }
            out, _ := json.MarshalIndent(body, "", "  ")
            fmt.Println(string(out))
            if resp.StatusCode >= 300 {
                return fmt.Errorf("trigger failed with status %d", resp.StatusCode)
            }
            return nil
        },
    }
    cmd.Flags().StringVar(&apiBase, "api-base", "http://localhost:8000", "base URL of a running instance")
    return cmd
}
