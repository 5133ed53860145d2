package http

import (
    "context"
    "net/http"
    "time"

    "github.com/gin-gonic/gin"
    "github.com/larkinmaxim/JiraIssueLogger/internal/repo"
    "github.com/larkinmaxim/JiraIssueLogger/internal/services"
    "github.com/rs/zerolog"
)

// SyncService is what the handlers need from the service layer.
type SyncService interface {
    SyncStatuses(ctx context.Context) (services.RunResult, error)
    CollectClosedDetails(ctx context.Context) (services.RunResult, error)
    CollectACDetails(ctx context.Context) (services.RunResult, error)
    GetLastRun(ctx context.Context, job string) (*repo.LastRun, error)
}

type Handlers struct {
    svc     SyncService
    log     zerolog.Logger
    timeout time.Duration
}

func NewHandlers(svc SyncService, log zerolog.Logger) *Handlers {
    return &Handlers{svc: svc, log: log, timeout: 30 * time.Minute}
}

func (h *Handlers) Health(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// The trigger endpoints run synchronously and return the run result, so the
// scheduler calling them can log the outcome.

func (h *Handlers) UpdateStatus(c *gin.Context) {
    h.run(c, h.svc.SyncStatuses)
}

func (h *Handlers) CollectClosedDetails(c *gin.Context) {
    h.run(c, h.svc.CollectClosedDetails)
}

func (h *Handlers) CollectACDetails(c *gin.Context) {
    h.run(c, h.svc.CollectACDetails)
}

func (h *Handlers) run(c *gin.Context, fn func(ctx context.Context) (services.RunResult, error)) {
    ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
    defer cancel()
    res, err := fn(ctx)
    if err != nil {
        h.log.Error().Err(err).Str("job", res.Job).Msg("run failed")
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "result": res})
        return
    }
    c.JSON(http.StatusOK, res)
}

func (h *Handlers) LastRun(c *gin.Context) {
    job := c.DefaultQuery("job", services.JobUpdateStatus)
    lr, err := h.svc.GetLastRun(c.Request.Context(), job)
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    if lr == nil {
        c.JSON(http.StatusNotFound, gin.H{"error": "no runs recorded for job", "job": job})
        return
    }
    c.JSON(http.StatusOK, lr)
}

// RunAll kicks the full nightly sequence in the background and returns 202.
func (h *Handlers) RunAll(c *gin.Context) {
    go func() {
        ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
        defer cancel()
        for _, fn := range []func(ctx context.Context) (services.RunResult, error){
            h.svc.SyncStatuses, h.svc.CollectClosedDetails, h.svc.CollectACDetails,
        } {
            if res, err := fn(ctx); err != nil {
                h.log.Error().Err(err).Str("job", res.Job).Msg("run-all step failed")
                return
            }
        }
    }()
    c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}
