package source

import (
	"context"
	"fmt"
	"strings"
)

// Resolver sends s3:// references to the S3 loader and everything else to
// the filesystem.
type Resolver struct {
	files *FileLoader
	s3    *S3Loader
}

// NewResolver builds a resolver; s3 may be nil when S3 is not configured.
func NewResolver(files *FileLoader, s3 *S3Loader) *Resolver {
	return &Resolver{files: files, s3: s3}
}

func (r *Resolver) Load(ctx context.Context, ref string) (*Document, error) {
	if strings.HasPrefix(ref, S3Scheme) {
		if r.s3 == nil {
			return nil, fmt.Errorf("cannot load %s: S3 is not configured", ref)
		}
		return r.s3.Load(ctx, ref)
	}
	return r.files.Load(ctx, ref)
}

// Expand turns directories and S3 prefixes into the documents below them.
func (r *Resolver) Expand(ctx context.Context, refs []string) ([]string, error) {
	var out []string
	for _, ref := range refs {
		var (
			expanded []string
			err      error
		)
		if strings.HasPrefix(ref, S3Scheme) {
			if r.s3 == nil {
				return nil, fmt.Errorf("cannot load %s: S3 is not configured", ref)
			}
			expanded, err = r.s3.Expand(ctx, ref)
		} else {
			expanded, err = r.files.Expand(ctx, ref)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}
