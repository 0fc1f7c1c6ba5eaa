package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmitro/peak-mem/pkg/model"
)

// FileStore keeps one JSON document per baseline in a directory.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore returns a FileStore rooted at dir.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	return &FileStore{
		dir:    dir,
		logger: logger.With("component", "store", "backend", BackendFile),
	}, nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

// Migrate ensures the directory exists.
func (s *FileStore) Migrate(_ context.Context) error {
	return os.MkdirAll(s.dir, 0o755)
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, SanitizeName(name)+".json")
}

func (s *FileStore) SaveBaseline(_ context.Context, b *model.Baseline, overwrite bool) error {
	if err := validateName(b.Name); err != nil {
		return err
	}
	path := s.path(b.Name)
	s.logger.Debug("file", "op", "write", "name", b.Name, "path", path, "overwrite", overwrite)

	if existing, err := readBaselineFile(path, b.Name); err == nil {
		if existing.Name != b.Name {
			return fmt.Errorf("%w: %s shares file %s with baseline %q", ErrExists, b.Name, filepath.Base(path), existing.Name)
		}
		if !overwrite {
			return fmt.Errorf("%w: %s", ErrExists, b.Name)
		}
	} else if !errors.Is(err, ErrNotFound) && !overwrite {
		return fmt.Errorf("%w: %s", ErrExists, b.Name)
	}

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal baseline: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".baseline-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write baseline: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close baseline: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename baseline: %w", err)
	}
	return nil
}

func (s *FileStore) GetBaseline(_ context.Context, name string) (*model.Baseline, error) {
	path := s.path(name)
	s.logger.Debug("file", "op", "read", "name", name, "path", path)
	b, err := readBaselineFile(path, name)
	if err != nil {
		return nil, err
	}
	if b.Name != name {
		// Another name sanitizes to the same file.
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return b, nil
}

func (s *FileStore) ListBaselines(_ context.Context) ([]*model.Baseline, error) {
	s.logger.Debug("file", "op", "list", "dir", s.dir)

	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []*model.Baseline
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		b, err := readBaselineFile(filepath.Join(s.dir, e.Name()), name)
		if err != nil {
			s.logger.Warn("skipping unreadable baseline", "file", e.Name(), "error", err)
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *FileStore) DeleteBaseline(_ context.Context, name string) error {
	path := s.path(name)
	s.logger.Debug("file", "op", "remove", "name", name, "path", path)

	if b, err := readBaselineFile(path, name); err == nil && b.Name != name {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return err
}

func readBaselineFile(path, name string) (*model.Baseline, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	var b model.Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	return &b, nil
}
