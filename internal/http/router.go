package http

import (
    "time"

    "github.com/gin-gonic/gin"
    "github.com/larkinmaxim/JiraIssueLogger/internal/config"
    "github.com/rs/zerolog"
)

func NewRouter(cfg config.Config, log zerolog.Logger, h *Handlers) *gin.Engine {
    if cfg.AppEnv != "dev" {
        gin.SetMode(gin.ReleaseMode)
    }
    r := gin.New()
    r.Use(gin.Recovery())
    r.Use(requestLogger(log))

    r.GET("/healthz", h.Health)

    api := r.Group("/api")
    {
        api.POST("/update-status", h.UpdateStatus)
        api.POST("/collect-closed-details", h.CollectClosedDetails)
        api.POST("/collect-ac-details", h.CollectACDetails)
    }

    admin := r.Group("/admin")
    {
        admin.GET("/last-run", h.LastRun)
        admin.POST("/run-all", h.RunAll)
    }

    return r
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
    return func(c *gin.Context) {
        start := time.Now()
        c.Next()
        log.Info().
            Str("method", c.Request.Method).
            Str("path", c.Request.URL.Path).
            Int("status", c.Writer.Status()).
            Dur("latency", time.Since(start)).
            Msg("http")
    }
}
