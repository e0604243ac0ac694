package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloo-solutions/ragindex/internal/api/handlers"
	"github.com/cloo-solutions/ragindex/internal/domain"
	"github.com/cloo-solutions/ragindex/internal/embedding"
	"github.com/cloo-solutions/ragindex/internal/service"
	"github.com/cloo-solutions/ragindex/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(cfg service.PipelineConfig) http.Handler {
	engine := service.NewEngine(
		service.WithEmbedder(service.EmbedderReference, embedding.NewReference()),
		service.WithStore(service.StoreMemory, vectorstore.NewMemoryStore()),
	)
	return NewRouter(RouterConfig{
		PipelineHandler: handlers.NewPipelineHandler(engine, cfg),
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func evalResult(t *testing.T, w *httptest.ResponseRecorder) domain.EvalResult {
	t.Helper()
	var envelope struct {
		Data domain.EvalResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(service.DefaultPipelineConfig())

	w := do(t, router, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"data": {"status": "ok"}}`, w.Body.String())
}

func TestRouter_IngestQueryClear(t *testing.T) {
	router := newTestRouter(service.DefaultPipelineConfig())

	w := do(t, router, http.MethodPost, "/ingest", `{"text": "Hello world. How are you?", "provenance": "greeting"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	ingested := evalResult(t, w)
	assert.Equal(t, 2, ingested.CountIngested)
	assert.Equal(t, "greeting", ingested.Provenance)

	w = do(t, router, http.MethodPost, "/query", `{"text": "How are you?", "top_k": 1}`)
	require.Equal(t, http.StatusOK, w.Code)
	queried := evalResult(t, w)
	require.Len(t, queried.Matches, 1)
	assert.Equal(t, "c2", queried.Matches[0].ChunkID)
	assert.Equal(t, 2, queried.CountSearched)

	w = do(t, router, http.MethodDelete, "/records", "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, router, http.MethodPost, "/query", `{"text": "How are you?"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, evalResult(t, w).Matches)
}

func TestRouter_ConfigurationErrorIsBadRequest(t *testing.T) {
	cfg := service.DefaultPipelineConfig()
	cfg.Store = "qdrant"
	router := newTestRouter(cfg)

	w := do(t, router, http.MethodPost, "/ingest", `{"text": "Hello."}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), domain.ErrCodeConfiguration)
}

func TestRouter_UnknownRoute(t *testing.T) {
	router := newTestRouter(service.DefaultPipelineConfig())

	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/knowledge", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, router, http.MethodGet, "/ingest", "").Code)
}
