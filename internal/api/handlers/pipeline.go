package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cloo-solutions/ragindex/internal/api"
	"github.com/cloo-solutions/ragindex/internal/domain"
	"github.com/cloo-solutions/ragindex/internal/service"
)

type PipelineEngine interface {
	Ingest(ctx context.Context, input service.IngestInput, cfg service.PipelineConfig) (*domain.EvalResult, error)
	Query(ctx context.Context, input service.QueryInput, cfg service.PipelineConfig) (*domain.EvalResult, error)
	Clear(ctx context.Context, cfg service.PipelineConfig) error
}

// PipelineHandler serves ingest, query and clear against one pipeline
// configuration, fixed at start-up.
type PipelineHandler struct {
	engine PipelineEngine
	cfg    service.PipelineConfig
}

func NewPipelineHandler(engine PipelineEngine, cfg service.PipelineConfig) *PipelineHandler {
	return &PipelineHandler{engine: engine, cfg: cfg}
}

type IngestRequest struct {
	Text       string         `json:"text"`
	Provenance string         `json:"provenance"`
	Metadata   map[string]any `json:"metadata"`
}

type QueryRequest struct {
	Text string `json:"text"`
	TopK int    `json:"top_k"`
}

func (h *PipelineHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		api.Error(w, http.StatusBadRequest, "text is required")
		return
	}

	result, err := h.engine.Ingest(r.Context(), service.IngestInput{
		Text:       req.Text,
		Provenance: req.Provenance,
		Metadata:   req.Metadata,
	}, h.cfg)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, result)
}

func (h *PipelineHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Text == "" {
		api.Error(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.TopK < 0 {
		api.Error(w, http.StatusBadRequest, "top_k must not be negative")
		return
	}

	result, err := h.engine.Query(r.Context(), service.QueryInput{Text: req.Text, TopK: req.TopK}, h.cfg)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, result)
}

func (h *PipelineHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Clear(r.Context(), h.cfg); err != nil {
		api.HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
