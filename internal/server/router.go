package server

import (
	"net/http"

	"github.com/cloo-solutions/ragindex/internal/api"
	"github.com/cloo-solutions/ragindex/internal/api/handlers"
	"github.com/cloo-solutions/ragindex/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type RouterConfig struct {
	PipelineHandler *handlers.PipelineHandler
	Logger          *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(logger))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/ingest", cfg.PipelineHandler.Ingest)
	r.Post("/query", cfg.PipelineHandler.Query)
	r.Delete("/records", cfg.PipelineHandler.Clear)

	return r
}
