package jobs

import (
    "context"
    "time"

    "github.com/larkinmaxim/JiraIssueLogger/internal/config"
    "github.com/larkinmaxim/JiraIssueLogger/internal/repo"
    "github.com/larkinmaxim/JiraIssueLogger/internal/services"
    "github.com/robfig/cron/v3"
    "github.com/rs/zerolog"
)

// lockKeySync serializes all scheduled jobs across replicas; the three
// nightly runs are ordered and must not interleave.
const lockKeySync int64 = 7423901

type Cron struct {
    c    *cron.Cron
    cfg  config.Config
    log  zerolog.Logger
    svc  *services.Service
    repo *repo.Repository
}

func New(cfg config.Config, log zerolog.Logger, svc *services.Service, r *repo.Repository) *Cron {
    loc := time.Local
    if l, err := time.LoadLocation(cfg.TZ); err == nil { loc = l }
    c := cron.New(
        cron.WithLocation(loc),
        cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)),
    )
    return &Cron{c: c, cfg: cfg, log: log, svc: svc, repo: r}
}

func (j *Cron) Start() error {
    specs := []struct {
        spec string
        name string
        fn   func(ctx context.Context) (services.RunResult, error)
    }{
        {j.cfg.StatusCron, services.JobUpdateStatus, j.svc.SyncStatuses},
        {j.cfg.ClosedDetailsCron, services.JobCollectClosedDetails, j.svc.CollectClosedDetails},
        {j.cfg.ACDetailsCron, services.JobCollectACDetails, j.svc.CollectACDetails},
    }
    for _, s := range specs {
        s := s
        if _, err := j.c.AddFunc(s.spec, func() { j.runLocked(s.name, s.fn) }); err != nil {
            return err
        }
        j.log.Info().Str("job", s.name).Str("cron", s.spec).Msg("scheduled")
    }
    j.c.Start()
    return nil
}

func (j *Cron) Stop() {
    ctx := j.c.Stop()
    <-ctx.Done()
}

func (j *Cron) runLocked(name string, fn func(ctx context.Context) (services.RunResult, error)) {
    ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
    defer cancel()

    got, err := j.repo.TryAdvisoryLock(ctx, lockKeySync)
    if err != nil {
        j.log.Error().Err(err).Str("job", name).Msg("advisory lock")
        return
    }
    if !got {
        j.log.Warn().Str("job", name).Msg("another replica holds the sync lock, skipping")
        return
    }
    defer func() {
        if err := j.repo.AdvisoryUnlock(context.Background(), lockKeySync); err != nil {
            j.log.Error().Err(err).Str("job", name).Msg("advisory unlock")
        }
    }()

    res, err := fn(ctx)
    if err != nil {
        j.log.Error().Err(err).Str("job", name).Msg("scheduled run failed")
        return
    }
    j.log.Info().Str("job", name).
        Int("inserted", res.InsertedCount).
        Int("updated", res.UpdatedCount).
        Int("errors", res.ErrorCount).
        Msg("scheduled run finished")
}
