package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/charmitro/peak-mem/pkg/model"
)

var bucketBaselines = []byte("baselines")

// BoltStore keeps baselines as JSON values in a bbolt bucket keyed by name.
type BoltStore struct {
	db     *bolt.DB
	logger *slog.Logger
}

// NewBoltStore opens (or creates) a bolt database at path.
func NewBoltStore(path string, logger *slog.Logger) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	return &BoltStore{
		db:     db,
		logger: logger.With("component", "store", "backend", BackendBolt),
	}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Migrate creates the baselines bucket.
func (s *BoltStore) Migrate(_ context.Context) error {
	s.logger.Debug("bolt", "op", "migrate")
	return s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBaselines)
		return err
	})
}

func (s *BoltStore) SaveBaseline(_ context.Context, b *model.Baseline, overwrite bool) error {
	if err := validateName(b.Name); err != nil {
		return err
	}
	s.logger.Debug("bolt", "op", "put", "name", b.Name, "overwrite", overwrite)

	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal baseline: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketBaselines)
		key := []byte(b.Name)
		if !overwrite && bkt.Get(key) != nil {
			return fmt.Errorf("%w: %s", ErrExists, b.Name)
		}
		return bkt.Put(key, data)
	})
}

func (s *BoltStore) GetBaseline(_ context.Context, name string) (*model.Baseline, error) {
	s.logger.Debug("bolt", "op", "get", "name", name)

	var b *model.Baseline
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketBaselines).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		var err error
		b, err = decodeBaseline(name, data)
		return err
	})
	return b, err
}

func (s *BoltStore) ListBaselines(_ context.Context) ([]*model.Baseline, error) {
	s.logger.Debug("bolt", "op", "list")

	var out []*model.Baseline
	err := s.db.View(func(tx *bolt.Tx) error {
		// Keys iterate in byte order, which is name order.
		return tx.Bucket(bucketBaselines).ForEach(func(k, v []byte) error {
			b, err := decodeBaseline(string(k), v)
			if err != nil {
				s.logger.Warn("skipping unreadable baseline", "name", string(k), "error", err)
				return nil
			}
			out = append(out, b)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) DeleteBaseline(_ context.Context, name string) error {
	s.logger.Debug("bolt", "op", "delete", "name", name)

	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketBaselines)
		key := []byte(name)
		if bkt.Get(key) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return bkt.Delete(key)
	})
}

func decodeBaseline(name string, data []byte) (*model.Baseline, error) {
	var b model.Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	return &b, nil
}
