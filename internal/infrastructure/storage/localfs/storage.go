package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

// Save writes the object under basePath. Keys are knowledge-base scoped
// (kbID/filename), so the parent directory is created on demand.
func (s *Storage) Save(_ context.Context, key string, data io.Reader) error {
	path := filepath.Join(s.basePath, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path := filepath.Join(s.basePath, key)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// RemoveAll deletes every object stored under the prefix. Called on
// knowledge base teardown with the knowledge base id as prefix.
func (s *Storage) RemoveAll(_ context.Context, prefix string) error {
	prefix = filepath.Clean(strings.TrimSpace(prefix))
	if prefix == "" || prefix == "." || prefix == string(filepath.Separator) || strings.Contains(prefix, "..") {
		return fmt.Errorf("refusing to remove prefix %q", prefix)
	}
	if err := os.RemoveAll(filepath.Join(s.basePath, prefix)); err != nil {
		return fmt.Errorf("remove objects: %w", err)
	}
	return nil
}
