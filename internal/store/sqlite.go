package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmitro/peak-mem/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if dbPath == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode so concurrent CI jobs can read while one saves.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store", "backend", BackendSQLite),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

func (s *SQLiteStore) SaveBaseline(ctx context.Context, b *model.Baseline, overwrite bool) error {
	if err := validateName(b.Name); err != nil {
		return err
	}
	s.logger.Debug("sql", "op", "upsert", "table", "baselines", "name", b.Name, "overwrite", overwrite)

	commandJSON, err := json.Marshal(b.Command)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM baselines WHERE name = ?`, b.Name).Scan(&exists)
	switch {
	case err == nil && !overwrite:
		return fmt.Errorf("%w: %s", ErrExists, b.Name)
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO baselines
		 (name, version, command, peak_rss_bytes, peak_vsz_bytes, duration_ms, created_at, platform, arch, main_pid)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Name, b.Version, string(commandJSON), int64(b.PeakRSSBytes), int64(b.PeakVSZBytes), b.DurationMS,
		b.CreatedAt.UTC().Format(time.RFC3339Nano), b.Metadata.Platform, b.Metadata.Arch, int(b.Metadata.MainPID),
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetBaseline(ctx context.Context, name string) (*model.Baseline, error) {
	s.logger.Debug("sql", "op", "select", "table", "baselines", "name", name)

	row := s.db.QueryRowContext(ctx,
		`SELECT name, version, command, peak_rss_bytes, peak_vsz_bytes, duration_ms, created_at, platform, arch, main_pid
		 FROM baselines WHERE name = ?`, name)
	b, err := s.scanBaseline(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *SQLiteStore) ListBaselines(ctx context.Context) ([]*model.Baseline, error) {
	s.logger.Debug("sql", "op", "select", "table", "baselines")

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, version, command, peak_rss_bytes, peak_vsz_bytes, duration_ms, created_at, platform, arch, main_pid
		 FROM baselines ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Baseline
	for rows.Next() {
		b, err := s.scanBaseline(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteBaseline(ctx context.Context, name string) error {
	s.logger.Debug("sql", "op", "delete", "table", "baselines", "name", name)

	res, err := s.db.ExecContext(ctx, `DELETE FROM baselines WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanBaseline(row scanner) (*model.Baseline, error) {
	var b model.Baseline
	var commandJSON, createdAt string
	var rss, vsz int64
	var mainPID int

	if err := row.Scan(&b.Name, &b.Version, &commandJSON, &rss, &vsz, &b.DurationMS, &createdAt,
		&b.Metadata.Platform, &b.Metadata.Arch, &mainPID); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(commandJSON), &b.Command); err != nil {
		return nil, fmt.Errorf("%w: %s: command: %v", ErrCorrupt, b.Name, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: created_at: %v", ErrCorrupt, b.Name, err)
	}
	b.CreatedAt = ts
	b.PeakRSSBytes = uint64(rss)
	b.PeakVSZBytes = uint64(vsz)
	b.Metadata.MainPID = model.ProcessID(mainPID)
	return &b, nil
}
