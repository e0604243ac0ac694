package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/ragindex/internal/storage"
)

// S3Scheme prefixes object references: s3://bucket/key.
const S3Scheme = "s3://"

// ObjectStore is the part of storage.S3Client the loader needs.
type ObjectStore interface {
	GetObject(ctx context.Context, bucket, key string) (*storage.Object, error)
	ListKeys(ctx context.Context, bucket, prefix string) ([]string, error)
}

// S3Loader reads documents from S3-compatible storage.
type S3Loader struct {
	store ObjectStore
}

func NewS3Loader(store ObjectStore) *S3Loader {
	return &S3Loader{store: store}
}

// ParseS3Ref splits s3://bucket/key. A reference without the scheme is a key
// in the default bucket, returned with an empty bucket.
func ParseS3Ref(ref string) (bucket, key string, err error) {
	if !strings.HasPrefix(ref, S3Scheme) {
		return "", strings.TrimPrefix(ref, "/"), nil
	}
	bucket, key, _ = strings.Cut(strings.TrimPrefix(ref, S3Scheme), "/")
	if bucket == "" {
		return "", "", fmt.Errorf("invalid s3 reference %q: missing bucket", ref)
	}
	return bucket, key, nil
}

func (l *S3Loader) Load(ctx context.Context, ref string) (*Document, error) {
	bucket, key, err := ParseS3Ref(ref)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, fmt.Errorf("invalid s3 reference %q: missing key", ref)
	}

	obj, err := l.store.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}

	format, err := DetectFormat(obj.Key, obj.ContentType)
	if err != nil {
		return nil, err
	}
	return newDocument(S3Scheme+obj.Bucket+"/"+obj.Key, format, "s3", obj.Body)
}

// Expand lists supported objects under a prefix reference (one ending in
// "/"); any other reference is returned unchanged.
func (l *S3Loader) Expand(ctx context.Context, ref string) ([]string, error) {
	bucket, key, err := ParseS3Ref(ref)
	if err != nil {
		return nil, err
	}
	if key != "" && !strings.HasSuffix(key, "/") {
		return []string{ref}, nil
	}

	keys, err := l.store.ListKeys(ctx, bucket, key)
	if err != nil {
		return nil, err
	}

	refs := make([]string, 0, len(keys))
	for _, k := range keys {
		if !Supported(k) {
			continue
		}
		if bucket == "" {
			refs = append(refs, k)
		} else {
			refs = append(refs, S3Scheme+bucket+"/"+k)
		}
	}
	return refs, nil
}
