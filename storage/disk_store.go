package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Dosada05/tournament-hub/models"
)

type diskSnapshotStore struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// NewDiskSnapshotStore хранит по одному сжатому файлу на матч в каталоге dir.
func NewDiskSnapshotStore(dir string, logger *slog.Logger) (SnapshotStore, error) {
	if dir == "" {
		return nil, errors.New("disk snapshot store: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory %s: %w", dir, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &diskSnapshotStore{dir: dir, now: time.Now, logger: logger}, nil
}

func (s *diskSnapshotStore) path(key models.MatchStateKey) string {
	return filepath.Join(s.dir, recordName(key))
}

func (s *diskSnapshotStore) Save(ctx context.Context, state *models.CachedMatchState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	record := state.Clone()
	record.SavedToDisk = s.now()

	data, err := encodeRecord(record)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".pending-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", state.Key(), err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write match state %s: %w", state.Key(), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close match state %s: %w", state.Key(), err)
	}
	if err := os.Rename(tmpName, s.path(state.Key())); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to publish match state %s: %w", state.Key(), err)
	}

	state.SavedToDisk = record.SavedToDisk
	return nil
}

func (s *diskSnapshotStore) Load(ctx context.Context, key models.MatchStateKey) (*models.CachedMatchState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to read match state %s: %w", key, err)
	}
	state, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	// Хэш имени файла не обратим, поэтому сверяем ключ внутри записи.
	if state.Key() != key {
		return nil, ErrSnapshotNotFound
	}
	return state, nil
}

func (s *diskSnapshotStore) Delete(ctx context.Context, key models.MatchStateKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete match state %s: %w", key, err)
	}
	return nil
}

func (s *diskSnapshotStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list snapshot directory %s: %w", s.dir, err)
	}

	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), recordExtension) {
			continue
		}
		full := filepath.Join(s.dir, entry.Name())
		data, err := os.ReadFile(full)
		if err != nil {
			s.logger.Warn("Failed to read snapshot during sweep", "file", entry.Name(), "error", err)
			continue
		}
		state, err := decodeRecord(data)
		if err != nil {
			// Битые записи всё равно никто не сможет восстановить.
			s.logger.Warn("Removing unreadable snapshot", "file", entry.Name(), "error", err)
			if err := os.Remove(full); err == nil {
				removed++
			}
			continue
		}
		if state.SavedToDisk.Before(cutoff) {
			if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn("Failed to remove expired snapshot", "key", state.Key().String(), "error", err)
				continue
			}
			removed++
		}
	}
	return removed, nil
}
