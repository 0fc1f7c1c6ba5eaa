// Package store persists named baselines.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmitro/peak-mem/pkg/model"
)

// Sentinel errors returned by every backend.
var (
	ErrNotFound    = errors.New("baseline not found")
	ErrExists      = errors.New("baseline already exists")
	ErrCorrupt     = errors.New("baseline is corrupt")
	ErrInvalidName = errors.New("invalid baseline name")
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// Backends lists the supported backend names.
var Backends = []string{BackendFile, BackendSQLite, BackendBolt}

// Store defines the persistence layer for baselines. Baselines are only
// created, replaced or removed through explicit calls.
type Store interface {
	// SaveBaseline stores b under b.Name. An existing baseline with the
	// same name is replaced only when overwrite is true; otherwise
	// ErrExists is returned.
	SaveBaseline(ctx context.Context, b *model.Baseline, overwrite bool) error
	GetBaseline(ctx context.Context, name string) (*model.Baseline, error)
	// ListBaselines returns all baselines ordered by name.
	ListBaselines(ctx context.Context) ([]*model.Baseline, error)
	DeleteBaseline(ctx context.Context, name string) error

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

// Open creates the backend named by backend under dir and migrates it.
func Open(ctx context.Context, backend, dir string, logger *slog.Logger) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create baseline dir %s: %w", dir, err)
	}

	var (
		st  Store
		err error
	)
	switch backend {
	case BackendFile, "":
		st, err = NewFileStore(dir, logger)
	case BackendSQLite:
		st, err = NewSQLiteStore(filepath.Join(dir, "baselines.db"), logger)
	case BackendBolt:
		st, err = NewBoltStore(filepath.Join(dir, "baselines.bolt"), logger)
	default:
		return nil, fmt.Errorf("unknown baseline backend %q (want one of %s)", backend, strings.Join(Backends, ", "))
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate %s store: %w", backend, err)
	}
	return st, nil
}

// DefaultDir returns peak-mem/baselines under the user cache directory
// (~/.cache on Linux), or a relative path when none is available.
func DefaultDir() string {
	if dir, err := os.UserCacheDir(); err == nil && dir != "" {
		return filepath.Join(dir, "peak-mem", "baselines")
	}
	return filepath.Join(".peak-mem", "baselines")
}

// SanitizeName maps a baseline name to a file-system safe form.
func SanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	return nil
}
