package main

import (
    "context"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/larkinmaxim/JiraIssueLogger/internal/adapters/jira"
    "github.com/larkinmaxim/JiraIssueLogger/internal/adapters/telegram"
    "github.com/larkinmaxim/JiraIssueLogger/internal/config"
    httpapi "github.com/larkinmaxim/JiraIssueLogger/internal/http"
    "github.com/larkinmaxim/JiraIssueLogger/internal/jobs"
    "github.com/larkinmaxim/JiraIssueLogger/internal/logger"
    "github.com/larkinmaxim/JiraIssueLogger/internal/repo"
    "github.com/larkinmaxim/JiraIssueLogger/internal/services"
)

func main() {
    cfg := config.Load()
    log := logger.New(cfg)
    log.Info().Str("env", cfg.AppEnv).Msg("starting jira issue logger")

    ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
    db := repo.MustOpen(ctx, cfg)
    cancel()
    defer db.Close()

    r := repo.NewRepository(db)
    if err := r.EnsureSchema(context.Background()); err != nil {
        log.Fatal().Err(err).Msg("cannot ensure schema")
    }

    jc := jira.NewClient(cfg, log)
    tg := telegram.NewClient(cfg, log)
    svc := services.New(cfg, log, r, jc, tg)

    handlers := httpapi.NewHandlers(svc, log)
    router := httpapi.NewRouter(cfg, log, handlers)

    crons := jobs.New(cfg, log, svc, r)
    if err := crons.Start(); err != nil {
        log.Fatal().Err(err).Msg("cannot start scheduler")
    }
    defer crons.Stop()

    errCh := make(chan error, 1)
    go func() { errCh <- router.Run(cfg.HTTPAddr) }()
    log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")

    quit := make(chan os.Signal, 1)
    signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
    select {
    case err := <-errCh:
        log.Fatal().Err(err).Msg("http server stopped")
    case sig := <-quit:
        log.Info().Str("signal", sig.String()).Msg("shutting down")
    }
}
