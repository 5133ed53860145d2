package services

import (
    "context"
    "fmt"
    "strings"
    "sync"

    "github.com/larkinmaxim/JiraIssueLogger/internal/adapters/jira"
    "github.com/larkinmaxim/JiraIssueLogger/internal/adapters/telegram"
    "github.com/larkinmaxim/JiraIssueLogger/internal/config"
    "github.com/larkinmaxim/JiraIssueLogger/internal/domain"
    "github.com/larkinmaxim/JiraIssueLogger/internal/repo"
    "github.com/larkinmaxim/JiraIssueLogger/internal/timeline"
    "github.com/rs/zerolog"
)

const (
    JobUpdateStatus         = "update_status"
    JobCollectClosedDetails = "collect_closed_details"
    JobCollectACDetails     = "collect_ac_details"
)

type Service struct {
    cfg  config.Config
    log  zerolog.Logger
    repo *repo.Repository
    jira *jira.Client
    tg   *telegram.Client
    ind  timeline.Indicators
}

func New(cfg config.Config, log zerolog.Logger, r *repo.Repository, jc *jira.Client, tg *telegram.Client) *Service {
    return &Service{cfg: cfg, log: log, repo: r, jira: jc, tg: tg, ind: indicators(cfg)}
}

func indicators(cfg config.Config) timeline.Indicators {
    ind := timeline.DefaultIndicators()
    if cfg.StatusField != "" { ind.StatusField = cfg.StatusField }
    if cfg.EnvField != "" { ind.EnvField = cfg.EnvField }
    if len(cfg.StartStatuses) > 0 { ind.Start = cfg.StartStatuses }
    if len(cfg.EnvFinishValues) > 0 { ind.EnvFinish = cfg.EnvFinishValues }
    if len(cfg.FinishStatuses) > 0 { ind.StatusFinish = cfg.FinishStatuses }
    return ind
}

type RunResult struct {
    Job           string   `json:"job"`
    UpdatedCount  int      `json:"updated_count"`
    InsertedCount int      `json:"inserted_count"`
    ErrorCount    int      `json:"error_count"`
    Errors        []string `json:"errors,omitempty"`
}

// SyncStatuses pulls every tracked project issue from Jira and upserts its
// status view: key, summary, status, project ticket and the planned window.
func (s *Service) SyncStatuses(ctx context.Context) (RunResult, error) {
    res := RunResult{Job: JobUpdateStatus}
    runID, err := s.repo.StartSyncRun(ctx, JobUpdateStatus)
    if err != nil { return res, err }

    jql := statusJQL(s.cfg)
    fields := []string{"summary", "status", s.cfg.FieldProjectTicket, s.cfg.FieldPlannedStart, s.cfg.FieldPlannedFinish}

    var facts []domain.IssueFact
    startAt := 0
    for {
        page, err := s.jira.Search(ctx, jql, fields, startAt, s.cfg.PageSize)
        if err != nil {
            s.finishRun(ctx, runID, false, err.Error())
            return res, err
        }
        issues, _ := page["issues"].([]any)
        for _, raw := range issues {
            issue, ok := raw.(map[string]any)
            if !ok { continue }
            fact, err := statusFact(issue, s.cfg)
            if err != nil {
                res.ErrorCount++
                res.Errors = append(res.Errors, err.Error())
                continue
            }
            facts = append(facts, fact)
        }
        total := intFromAny(page["total"])
        startAt += len(issues)
        if len(issues) == 0 || startAt >= total { break }
    }

    ins, upd, err := s.repo.UpsertStatuses(ctx, facts)
    res.InsertedCount, res.UpdatedCount = ins, upd
    if err != nil {
        s.finishRun(ctx, runID, false, err.Error())
        return res, err
    }
    s.finishRun(ctx, runID, res.ErrorCount == 0, fmt.Sprintf("inserted=%d updated=%d errors=%d", ins, upd, res.ErrorCount))
    s.notify(ctx, res)
    return res, nil
}

// CollectClosedDetails infers actuals for issues that reached a terminal
// status without having their details recorded yet.
func (s *Service) CollectClosedDetails(ctx context.Context) (RunResult, error) {
    keys, err := s.repo.IssuesNeedingDetails(ctx, []string{"closed", "deployed pd"})
    if err != nil { return RunResult{Job: JobCollectClosedDetails}, err }
    return s.collectDetails(ctx, JobCollectClosedDetails, keys)
}

// CollectACDetails refreshes actuals for everything on acceptance; an issue
// can move back and forth there, so prior details are recomputed each run.
func (s *Service) CollectACDetails(ctx context.Context) (RunResult, error) {
    keys, err := s.repo.IssuesByStatus(ctx, []string{"deployed ac"})
    if err != nil { return RunResult{Job: JobCollectACDetails}, err }
    return s.collectDetails(ctx, JobCollectACDetails, keys)
}

func (s *Service) collectDetails(ctx context.Context, job string, keys []string) (RunResult, error) {
    res := RunResult{Job: job}
    runID, err := s.repo.StartSyncRun(ctx, job)
    if err != nil { return res, err }
    if len(keys) == 0 {
        s.finishRun(ctx, runID, true, "nothing to collect")
        return res, nil
    }

    workers := s.cfg.WorkersJira
    if workers < 1 { workers = 1 }
    jobs := make(chan string)
    var mu sync.Mutex
    var facts []domain.IssueFact
    var wg sync.WaitGroup
    for i := 0; i < workers; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            for key := range jobs {
                fact, err := s.processIssue(ctx, key)
                mu.Lock()
                if err != nil {
                    res.ErrorCount++
                    res.Errors = append(res.Errors, err.Error())
                } else {
                    facts = append(facts, fact)
                }
                mu.Unlock()
            }
        }()
    }
    for _, k := range keys {
        select {
        case jobs <- k:
        case <-ctx.Done():
            close(jobs)
            wg.Wait()
            s.finishRun(ctx, runID, false, ctx.Err().Error())
            return res, ctx.Err()
        }
    }
    close(jobs)
    wg.Wait()

    if err := s.repo.UpdateDetails(ctx, facts); err != nil {
        s.finishRun(ctx, runID, false, err.Error())
        return res, err
    }
    res.UpdatedCount = len(facts)
    s.finishRun(ctx, runID, res.ErrorCount == 0, fmt.Sprintf("updated=%d errors=%d", res.UpdatedCount, res.ErrorCount))
    s.notify(ctx, res)
    return res, nil
}

// processIssue fetches one issue with its changelog and turns it into a fact.
func (s *Service) processIssue(ctx context.Context, key string) (domain.IssueFact, error) {
    payload, err := s.jira.Issue(ctx, key, true)
    if err != nil { return domain.IssueFact{}, fmt.Errorf("issue %s: %w", key, err) }
    if err := s.fetchFullChangelog(ctx, key, payload); err != nil {
        return domain.IssueFact{}, fmt.Errorf("issue %s: %w", key, err)
    }
    return buildFact(payload, s.cfg, s.ind, s.log)
}

// fetchFullChangelog pages the dedicated changelog endpoint when the expanded
// changelog on the issue payload was truncated, and splices the rest in.
func (s *Service) fetchFullChangelog(ctx context.Context, key string, payload map[string]any) error {
    cl, _ := payload["changelog"].(map[string]any)
    if cl == nil { return nil }
    histories, _ := cl["histories"].([]any)
    total := intFromAny(cl["total"])
    if total <= len(histories) { return nil }
    s.log.Debug().Str("issue", key).Int("have", len(histories)).Int("total", total).Msg("changelog truncated, paging")
    startAt := len(histories)
    for startAt < total {
        page, err := s.jira.Changelog(ctx, key, startAt, s.cfg.PageSize)
        if err != nil { return err }
        // the paged endpoint calls the list "values"; expand calls it "histories"
        vals, _ := page["values"].([]any)
        if vals == nil { vals, _ = page["histories"].([]any) }
        if len(vals) == 0 { break }
        histories = append(histories, vals...)
        startAt += len(vals)
        total = intFromAny(page["total"])
    }
    cl["histories"] = histories
    cl["total"] = float64(len(histories))
    return nil
}

func (s *Service) finishRun(ctx context.Context, id int64, ok bool, detail string) {
    if err := s.repo.FinishSyncRun(ctx, id, ok, detail); err != nil {
        s.log.Error().Err(err).Int64("run_id", id).Msg("cannot finish sync run")
    }
}

func (s *Service) notify(ctx context.Context, res RunResult) {
    if s.tg == nil || !s.tg.Enabled() || len(s.cfg.TelegramChatIDs) == 0 { return }
    text := fmt.Sprintf("[%s] inserted=%d updated=%d errors=%d",
        res.Job, res.InsertedCount, res.UpdatedCount, res.ErrorCount)
    if res.ErrorCount > 0 && len(res.Errors) > 0 {
        n := len(res.Errors)
        if n > 5 { n = 5 }
        text += "\n" + strings.Join(res.Errors[:n], "\n")
    }
    for _, chat := range s.cfg.TelegramChatIDs {
        if err := s.tg.SendMessage(ctx, chat, text); err != nil {
            s.log.Error().Err(err).Int64("chat", chat).Msg("telegram notify failed")
        }
    }
}

func (s *Service) GetLastRun(ctx context.Context, job string) (*repo.LastRun, error) {
    return s.repo.GetLastRun(ctx, job)
}
