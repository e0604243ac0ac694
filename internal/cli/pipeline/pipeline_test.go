package pipeline

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloo-solutions/ragindex/internal/domain"
	"github.com/cloo-solutions/ragindex/internal/service"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("RAGINDEX_LOG_LEVEL", "error")
	t.Setenv("RAGINDEX_DEBUG", "false")
	t.Setenv("RAGINDEX_PIPELINE_FILE", "")
	t.Setenv("RAGINDEX_CHUNKER", "sentence")
	t.Setenv("RAGINDEX_EMBEDDER", "reference")
	t.Setenv("RAGINDEX_STORE", "memory")
	t.Setenv("RAGINDEX_TOP_K", "5")
	t.Setenv("RAGINDEX_DATABASE_URL", "")
	t.Setenv("RAGINDEX_SQLITE_PATH", "")
	t.Setenv("RAGINDEX_OPENAI_API_KEY", "")
	t.Setenv("RAGINDEX_S3_ENDPOINT", "")
	t.Setenv("RAGINDEX_SENTRY_DSN", "")
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{Use: "ragindex", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().Bool("output", false, "Output as JSON")
	AddPipelineFlags(root)
	for _, cmd := range Commands() {
		root.AddCommand(cmd)
	}
	return root
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestIngestThenQuery_SQLiteKeepsRecordsBetweenRuns(t *testing.T) {
	setTestEnv(t)
	t.Setenv("RAGINDEX_SQLITE_PATH", filepath.Join(t.TempDir(), "records.db"))

	out, err := execute(t, "", "ingest", "--store", "sqlite", "--output",
		"--text", "Hello world. How are you?", "--provenance", "greeting")
	require.NoError(t, err)

	var ingested IngestOutput
	require.NoError(t, json.Unmarshal([]byte(out), &ingested))
	assert.Equal(t, 2, ingested.CountIngested)
	require.Len(t, ingested.Documents, 1)
	assert.Equal(t, "greeting", ingested.Documents[0].Provenance)
	assert.Equal(t, domain.StageDone, ingested.Documents[0].Stage)

	out, err = execute(t, "", "query", "How are you?", "--store", "sqlite", "--k", "1", "--output")
	require.NoError(t, err)

	var res domain.EvalResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "c2", res.Matches[0].ChunkID)
	assert.Equal(t, "greeting", res.Matches[0].Provenance)
	assert.Equal(t, 2, res.CountSearched)

	out, err = execute(t, "", "clear", "--store", "sqlite")
	require.NoError(t, err)
	assert.Equal(t, "Cleared sqlite store.\n", out)

	out, err = execute(t, "", "query", "How are you?", "--store", "sqlite")
	require.NoError(t, err)
	assert.Equal(t, "No matches among 0 records.\n", out)
}

func TestIngest_Stdin(t *testing.T) {
	setTestEnv(t)

	out, err := execute(t, "One. Two. Three.", "ingest", "--output")
	require.NoError(t, err)

	var ingested IngestOutput
	require.NoError(t, json.Unmarshal([]byte(out), &ingested))
	assert.Equal(t, 3, ingested.CountIngested)
	require.Len(t, ingested.Documents, 1)
	assert.NotEmpty(t, ingested.Documents[0].Provenance)
}

func TestIngest_Directory(t *testing.T) {
	setTestEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("Alpha beta."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("Gamma. Delta."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.bin"), []byte{0x00, 0x01}, 0o600))

	out, err := execute(t, "", "ingest", dir)
	require.NoError(t, err)

	assert.Contains(t, out, filepath.Join(dir, "a.md")+": 1 chunks")
	assert.Contains(t, out, filepath.Join(dir, "b.txt")+": 2 chunks")
	assert.Contains(t, out, "Ingested 3 chunks from 2 documents into memory.")
	assert.NotContains(t, out, "c.bin")
}

func TestIngest_InvalidInput(t *testing.T) {
	setTestEnv(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"text with files", []string{"ingest", "--text", "x", "notes.md"}, "--text cannot be combined"},
		{"missing file", []string{"ingest", filepath.Join(t.TempDir(), "missing.md")}, "failed to stat"},
		{"empty directory", []string{"ingest", t.TempDir()}, "no supported documents found"},
		{"s3 without configuration", []string{"ingest", "s3://docs/guide.md"}, "S3 is not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "", tt.args...)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestQuery_Validation(t *testing.T) {
	setTestEnv(t)

	_, err := execute(t, "", "query", "hello", "--k", "-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--k must not be negative")

	_, err = execute(t, "", "query")
	assert.Error(t, err)
}

func TestCommands_ConfigurationErrors(t *testing.T) {
	setTestEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown store", []string{"query", "hello", "--store", "redis"}},
		{"unknown embedder", []string{"query", "hello", "--embedder", "cohere"}},
		{"openai without key", []string{"query", "hello", "--embedder", "openai"}},
		{"sqlite without path", []string{"clear", "--store", "sqlite"}},
		{"postgres without url", []string{"clear", "--store", "postgres"}},
		{"unknown chunker", []string{"ingest", "--text", "x", "--chunker", "paragraph"}},
		{"missing pipeline file", []string{"clear", "--pipeline", filepath.Join(t.TempDir(), "none.yaml")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "", tt.args...)

			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestIngest_PipelineFile(t *testing.T) {
	setTestEnv(t)
	profile := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(profile, []byte("chunker: fixed\nchunk_size: 3\n"), 0o600))

	out, err := execute(t, "", "ingest", "--pipeline", profile, "--text", "abcdefg", "--output")
	require.NoError(t, err)

	var ingested IngestOutput
	require.NoError(t, json.Unmarshal([]byte(out), &ingested))
	assert.Equal(t, 3, ingested.CountIngested)

	out, err = execute(t, "", "ingest", "--pipeline", profile, "--chunk-size", "4", "--text", "abcdefg", "--output")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &ingested))
	assert.Equal(t, 2, ingested.CountIngested)
}

func writeSuite(t *testing.T) string {
	t.Helper()
	suite := service.EvalSuite{
		Documents: []service.EvalDocument{
			{Provenance: "greeting", Text: "Hello world. How are you?"},
		},
		Cases: []service.EvalCase{
			{Query: "How are you?", ExpectedIDs: []string{"greeting#c2"}},
			{Query: "Hello world.", ExpectedIDs: []string{"c1"}},
			{Query: "How are you?", ExpectedIDs: []string{"c1"}},
		},
	}
	data, err := json.Marshal(suite)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "suite.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestEval(t *testing.T) {
	setTestEnv(t)
	path := writeSuite(t)

	t.Run("json summary", func(t *testing.T) {
		out, err := execute(t, "", "eval", "--file", path, "--k", "1", "--output")
		require.NoError(t, err)

		var report service.EvalReport
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.Equal(t, 3, report.Summary.Total)
		assert.Equal(t, 1, report.Summary.K)
		assert.Equal(t, 2, report.Summary.CountIngested)
		assert.InDelta(t, 2.0/3.0, report.Summary.HitRateAtK, 1e-9)
		assert.Empty(t, report.Cases)
	})

	t.Run("verbose text", func(t *testing.T) {
		out, err := execute(t, "", "eval", "--file", path, "--k", "2", "--verbose")
		require.NoError(t, err)

		assert.Contains(t, out, "Cases: 3  k=2  ingested=2")
		assert.Contains(t, out, "Hit@2: 1.000")
		assert.Contains(t, out, "- How are you?\n  rank=2 recall=1.000 rr=0.500")
	})

	t.Run("missing file flag", func(t *testing.T) {
		_, err := execute(t, "", "eval")
		assert.Error(t, err)
	})
}
