package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// MaxFileSize caps how much of a local file is read.
const MaxFileSize = 32 << 20

// FileLoader reads .txt, .md and .pdf files from the local filesystem.
type FileLoader struct{}

func NewFileLoader() *FileLoader {
	return &FileLoader{}
}

func (l *FileLoader) Load(ctx context.Context, ref string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clean := filepath.Clean(ref)
	format, err := DetectFormat(clean, "")
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", clean, err)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%s exceeds %d bytes", clean, MaxFileSize)
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", clean, err)
	}
	return newDocument(clean, format, "file", data)
}

// Expand returns ref itself for a file, or every supported file below it
// for a directory, in lexical order.
func (l *FileLoader) Expand(ctx context.Context, ref string) ([]string, error) {
	clean := filepath.Clean(ref)
	info, err := os.Stat(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", clean, err)
	}
	if !info.IsDir() {
		return []string{clean}, nil
	}

	var files []string
	err = filepath.WalkDir(clean, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != clean && len(d.Name()) > 1 && d.Name()[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}
		if Supported(d.Name()) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", clean, err)
	}
	sort.Strings(files)
	return files, nil
}
