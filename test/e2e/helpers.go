//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cloo-solutions/ragindex/internal/api/handlers"
	"github.com/cloo-solutions/ragindex/internal/cli"
	"github.com/cloo-solutions/ragindex/internal/config"
	"github.com/cloo-solutions/ragindex/internal/server"
	"github.com/cloo-solutions/ragindex/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const sourceBucket = "ragindex-e2e"

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	Config       *config.Config
	ServerURL    string
	ServerCloser func()
	BinaryDir    string
	HTTPClient   *http.Client

	s3 *s3.Client
}

// SetupE2EEnv starts Postgres and RustFS, then serves the pipeline with the
// postgres store over HTTP.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	cfg := &config.Config{
		LogLevel:         "error",
		DatabaseURL:      pgC.ConnectionString(),
		DatabaseMaxConns: 4,
		S3Endpoint:       s3C.Endpoint(),
		S3AccessKey:      testutil.RustFSAccessKey,
		S3SecretKey:      testutil.RustFSSecretKey,
		S3Bucket:         sourceBucket,
		S3Region:         "us-east-1",
		Chunker:          "sentence",
		Embedder:         "reference",
		Store:            "postgres",
		TopK:             5,
	}

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		Pool:       pool,
		Config:     cfg,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	env.s3 = newRawS3Client(ctx, t, cfg)
	if _, err := env.s3.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(sourceBucket)}); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}
	env.ServerURL, env.ServerCloser = startServer(t, cfg, port)

	return env
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// PutSource uploads a source document to the test bucket.
func (e *E2ETestEnv) PutSource(key, contentType string, body []byte) {
	_, err := e.s3.PutObject(e.Ctx, &s3.PutObjectInput{
		Bucket:      aws.String(sourceBucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Body:        bytes.NewReader(body),
	})
	if err != nil {
		e.T.Fatalf("failed to upload %s: %v", key, err)
	}
}

// BuildBinaries builds the ragindex binary
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "ragindex-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "ragindex"), "./cmd/ragindex")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build ragindex: %v\n%s", err, out)
	}
}

// RunRagindex runs the ragindex CLI against the test database and bucket.
func (e *E2ETestEnv) RunRagindex(workDir string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "ragindex"), args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		"RAGINDEX_LOG_LEVEL=error",
		"RAGINDEX_STORE=postgres",
		"RAGINDEX_EMBEDDER=reference",
		"RAGINDEX_PIPELINE_FILE=",
		"RAGINDEX_OPENAI_API_KEY=",
		fmt.Sprintf("RAGINDEX_DATABASE_URL=%s", e.Config.DatabaseURL),
		fmt.Sprintf("RAGINDEX_S3_ENDPOINT=%s", e.Config.S3Endpoint),
		fmt.Sprintf("RAGINDEX_S3_ACCESS_KEY_ID=%s", e.Config.S3AccessKey),
		fmt.Sprintf("RAGINDEX_S3_SECRET_ACCESS_KEY=%s", e.Config.S3SecretKey),
		fmt.Sprintf("RAGINDEX_S3_BUCKET=%s", e.Config.S3Bucket),
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("%w: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

// APIResponse represents a standard API response
type APIResponse struct {
	Status int             `json:"-"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("POST", path, body)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil)
}

// doRequest returns the decoded response for every status; err is only set
// for transport and decoding failures.
func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	apiResp := &APIResponse{Status: resp.StatusCode}
	if len(respBody) == 0 {
		return apiResp, nil
	}
	if err := json.Unmarshal(respBody, apiResp); err != nil {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	return apiResp, nil
}

func newRawS3Client(ctx context.Context, t *testing.T, cfg *config.Config) *s3.Client {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
	)
	if err != nil {
		t.Fatalf("failed to load AWS config: %v", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		o.UsePathStyle = true
	})
}

// startServer wires the same stack ragindexd serve builds.
func startServer(t *testing.T, cfg *config.Config, port int) (string, func()) {
	pipeline, err := cli.ResolvePipeline(cfg, cli.PipelineOverrides{})
	if err != nil {
		t.Fatalf("failed to resolve pipeline: %v", err)
	}

	stack, err := cli.BuildStack(context.Background(), cfg, pipeline, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to build stack: %v", err)
	}

	router := server.NewRouter(server.RouterConfig{
		PipelineHandler: handlers.NewPipelineHandler(stack.Engine, pipeline),
		Logger:          zap.NewNop(),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		stack.Close()
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
