//go:build e2e

package e2e

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloo-solutions/ragindex/internal/cli/pipeline"
	"github.com/cloo-solutions/ragindex/internal/domain"
	"github.com/cloo-solutions/ragindex/internal/service"
	"github.com/cloo-solutions/ragindex/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeResult(t *testing.T, resp *APIResponse) domain.EvalResult {
	t.Helper()
	var res domain.EvalResult
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	return res
}

// TestE2E_HTTPPipeline drives ingest, query and clear through the daemon's API.
func TestE2E_HTTPPipeline(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	t.Run("ingest then query", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(env.Ctx, env.Pool))

		resp, err := env.Post("/ingest", map[string]any{
			"text":       "Hello world. How are you?",
			"provenance": "greeting",
			"metadata":   map[string]any{"lang": "en"},
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.Status)

		ingested := decodeResult(t, resp)
		assert.Equal(t, 2, ingested.CountIngested)
		assert.Equal(t, "greeting", ingested.Provenance)
		assert.Equal(t, domain.StageDone, ingested.Stage)

		resp, err = env.Post("/query", map[string]any{"text": "How are you?", "top_k": 1})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.Status)

		res := decodeResult(t, resp)
		require.Len(t, res.Matches, 1)
		assert.Equal(t, "c2", res.Matches[0].ChunkID)
		assert.Equal(t, "greeting", res.Matches[0].Provenance)
		assert.Equal(t, "en", res.Matches[0].Metadata["lang"])
		assert.InDelta(t, 1.0, res.Matches[0].Score, 1e-5)
		assert.Equal(t, 2, res.CountSearched)
	})

	t.Run("reingest replaces records", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(env.Ctx, env.Pool))

		for i := 0; i < 2; i++ {
			resp, err := env.Post("/ingest", map[string]any{"text": "One. Two. Three.", "provenance": "counting"})
			require.NoError(t, err)
			require.Equal(t, http.StatusCreated, resp.Status)
		}

		resp, err := env.Post("/query", map[string]any{"text": "Two."})
		require.NoError(t, err)
		assert.Equal(t, 3, decodeResult(t, resp).CountSearched)
	})

	t.Run("clear removes every record", func(t *testing.T) {
		resp, err := env.Post("/ingest", map[string]any{"text": "Something to forget."})
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.Status)

		resp, err = env.Delete("/records")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.Status)

		resp, err = env.Post("/query", map[string]any{"text": "Something to forget."})
		require.NoError(t, err)
		res := decodeResult(t, resp)
		assert.Empty(t, res.Matches)
		assert.Zero(t, res.CountSearched)
	})

	t.Run("invalid requests", func(t *testing.T) {
		resp, err := env.Post("/query", map[string]any{"text": ""})
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.Status)
		assert.Equal(t, "text is required", resp.Error)

		resp, err = env.Post("/query", map[string]any{"text": "x", "top_k": -1})
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.Status)
	})
}

// TestE2E_CLI runs the ragindex binary against the same database the daemon
// serves, with sources read from S3 and the local filesystem.
func TestE2E_CLI(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.BuildBinaries()
	workDir := t.TempDir()

	t.Run("ingest from s3 prefix, query over http", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(env.Ctx, env.Pool))
		env.PutSource("docs/guide.md", "text/markdown", []byte("Alpha beta. Gamma delta."))
		env.PutSource("docs/notes.txt", "text/plain", []byte("Epsilon zeta."))
		env.PutSource("docs/image.png", "image/png", []byte{0x89, 0x50, 0x4e, 0x47})

		out, err := env.RunRagindex(workDir, "ingest", "s3://"+sourceBucket+"/docs/", "--output")
		require.NoError(t, err)

		var ingested pipeline.IngestOutput
		require.NoError(t, json.Unmarshal([]byte(out), &ingested))
		assert.Equal(t, 3, ingested.CountIngested)
		require.Len(t, ingested.Documents, 2)

		resp, err := env.Post("/query", map[string]any{"text": "Gamma delta.", "top_k": 1})
		require.NoError(t, err)
		res := decodeResult(t, resp)
		require.Len(t, res.Matches, 1)
		assert.Equal(t, "s3://"+sourceBucket+"/docs/guide.md", res.Matches[0].Provenance)
		assert.Equal(t, "c2", res.Matches[0].ChunkID)
	})

	t.Run("ingest files, query and clear from the cli", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(env.Ctx, env.Pool))
		path := filepath.Join(workDir, "faq.txt")
		require.NoError(t, os.WriteFile(path, []byte("Where is the office? It is in Lisbon."), 0o600))

		_, err := env.RunRagindex(workDir, "ingest", path)
		require.NoError(t, err)

		out, err := env.RunRagindex(workDir, "query", "It is in Lisbon.", "--k", "1", "--output")
		require.NoError(t, err)
		var res domain.EvalResult
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		require.Len(t, res.Matches, 1)
		assert.Equal(t, path, res.Matches[0].Provenance)

		out, err = env.RunRagindex(workDir, "clear")
		require.NoError(t, err)
		assert.Equal(t, "Cleared postgres store.\n", out)
	})

	t.Run("eval against postgres", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(env.Ctx, env.Pool))
		suite := service.EvalSuite{
			Documents: []service.EvalDocument{{Provenance: "greeting", Text: "Hello world. How are you?"}},
			Cases: []service.EvalCase{
				{Query: "How are you?", ExpectedIDs: []string{"greeting#c2"}},
				{Query: "Hello world.", ExpectedIDs: []string{"c1"}},
			},
			K: 1,
		}
		data, err := json.Marshal(suite)
		require.NoError(t, err)
		suitePath := filepath.Join(workDir, "suite.json")
		require.NoError(t, os.WriteFile(suitePath, data, 0o600))

		out, err := env.RunRagindex(workDir, "eval", "--file", suitePath, "--output")
		require.NoError(t, err)

		var report service.EvalReport
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.Equal(t, 2, report.Summary.Total)
		assert.InDelta(t, 1.0, report.Summary.RecallAtK, 1e-9)
		assert.InDelta(t, 1.0, report.Summary.MRR, 1e-9)
	})

	t.Run("openai without a key is a configuration error", func(t *testing.T) {
		_, err := env.RunRagindex(workDir, "ingest", "--text", "x", "--embedder", "openai")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CONFIGURATION_ERROR")
	})
}
