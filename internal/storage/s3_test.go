package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves path-style GetObject, HeadObject and ListObjectsV2.
func fakeS3(t *testing.T, objects map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")
		bucket, key, _ := strings.Cut(path, "/")

		if key == "" && r.URL.Query().Get("list-type") == "2" {
			prefix := r.URL.Query().Get("prefix")
			var contents strings.Builder
			n := 0
			for k := range objects {
				b, objKey, _ := strings.Cut(k, "/")
				if b == bucket && strings.HasPrefix(objKey, prefix) {
					fmt.Fprintf(&contents, "<Contents><Key>%s</Key><Size>%d</Size></Contents>", objKey, len(objects[k]))
					n++
				}
			}
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><ListBucketResult><Name>%s</Name><Prefix>%s</Prefix><KeyCount>%d</KeyCount><IsTruncated>false</IsTruncated>%s</ListBucketResult>`,
				bucket, prefix, n, contents.String())
			return
		}

		body, ok := objects[bucket+"/"+key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		w.Header().Set("ETag", `"abc123"`)
		if r.Method == http.MethodHead {
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *S3Client {
	t.Helper()
	client, err := NewS3Client(context.Background(), S3ClientConfig{
		Endpoint:        srv.URL,
		Region:          "us-east-1",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		Bucket:          "docs",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	return client
}

func TestS3Client_GetObject(t *testing.T) {
	srv := fakeS3(t, map[string]string{
		"docs/guide.md":   "# Guide\nHello world.",
		"archive/old.txt": "Old notes.",
	})
	client := newTestClient(t, srv)
	ctx := context.Background()

	obj, err := client.GetObject(ctx, "", "guide.md")
	require.NoError(t, err)
	assert.Equal(t, "docs", obj.Bucket)
	assert.Equal(t, "guide.md", obj.Key)
	assert.Equal(t, "text/plain", obj.ContentType)
	assert.Equal(t, "# Guide\nHello world.", string(obj.Body))

	obj, err = client.GetObject(ctx, "archive", "old.txt")
	require.NoError(t, err)
	assert.Equal(t, "Old notes.", string(obj.Body))

	_, err = client.GetObject(ctx, "", "missing.md")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get object docs/missing.md")
}

func TestS3Client_ListKeys(t *testing.T) {
	srv := fakeS3(t, map[string]string{
		"docs/notes/a.md": "A.",
		"docs/notes/b.md": "B.",
		"docs/other.md":   "C.",
	})
	client := newTestClient(t, srv)

	keys, err := client.ListKeys(context.Background(), "", "notes/")

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"notes/a.md", "notes/b.md"}, keys)
}

func TestS3Client_HeadObject(t *testing.T) {
	srv := fakeS3(t, map[string]string{"docs/a.txt": "hello"})
	client := newTestClient(t, srv)

	meta, err := client.HeadObject(context.Background(), "", "a.txt")

	require.NoError(t, err)
	assert.Equal(t, int64(5), meta.ContentLength)
	assert.Equal(t, `"abc123"`, meta.ETag)
}
