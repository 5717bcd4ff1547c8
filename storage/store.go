package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Dosada05/tournament-hub/models"
)

var ErrSnapshotNotFound = errors.New("match state snapshot not found")

// SnapshotStore is the durable tier of the match state cache.
type SnapshotStore interface {
	// Save writes the record and stamps SavedToDisk.
	Save(ctx context.Context, state *models.CachedMatchState) error

	// Load returns ErrSnapshotNotFound when nothing is stored under key.
	Load(ctx context.Context, key models.MatchStateKey) (*models.CachedMatchState, error)

	// Delete is a no-op for missing keys.
	Delete(ctx context.Context, key models.MatchStateKey) error

	// Sweep deletes records saved before cutoff and reports how many went.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}
