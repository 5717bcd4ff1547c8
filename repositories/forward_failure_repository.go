package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Dosada05/tournament-hub/models"
	"github.com/lib/pq"
)

var ErrForwardFailureNotFound = errors.New("forward failure not found")

// ForwardFailureRepository хранит результаты, которые так и не удалось
// передать во внешнюю систему после всех попыток.
type ForwardFailureRepository interface {
	Record(ctx context.Context, item *models.PendingForward) error
	Get(ctx context.Context, id string) (*models.PendingForward, error)
	List(ctx context.Context, tournamentID string, limit int) ([]*models.PendingForward, error)
	Delete(ctx context.Context, id string) error
}

type memoryForwardFailureRepository struct {
	mu    sync.RWMutex
	items []*models.PendingForward
	limit int
}

// NewMemoryForwardFailureRepository keeps the most recent limit failures.
func NewMemoryForwardFailureRepository(limit int) ForwardFailureRepository {
	if limit <= 0 {
		limit = 500
	}
	return &memoryForwardFailureRepository{limit: limit}
}

func (r *memoryForwardFailureRepository) Record(_ context.Context, item *models.PendingForward) error {
	c := *item
	c.Payload = item.Payload.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, &c)
	if over := len(r.items) - r.limit; over > 0 {
		r.items = append([]*models.PendingForward(nil), r.items[over:]...)
	}
	return nil
}

func (r *memoryForwardFailureRepository) Get(_ context.Context, id string) (*models.PendingForward, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, item := range r.items {
		if item.ID == id {
			c := *item
			c.Payload = item.Payload.Clone()
			return &c, nil
		}
	}
	return nil, ErrForwardFailureNotFound
}

func (r *memoryForwardFailureRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, item := range r.items {
		if item.ID == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return nil
		}
	}
	return ErrForwardFailureNotFound
}

func (r *memoryForwardFailureRepository) List(_ context.Context, tournamentID string, limit int) ([]*models.PendingForward, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.PendingForward, 0)
	for i := len(r.items) - 1; i >= 0; i-- {
		item := r.items[i]
		if tournamentID != "" && item.TournamentID != tournamentID {
			continue
		}
		c := *item
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type postgresForwardFailureRepository struct {
	db *sql.DB
}

func NewPostgresForwardFailureRepository(db *sql.DB) ForwardFailureRepository {
	return &postgresForwardFailureRepository{db: db}
}

// EnsureForwardFailureSchema creates the failure log table if it is missing.
func EnsureForwardFailureSchema(ctx context.Context, db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS forward_failures (
			id            TEXT PRIMARY KEY,
			tournament_id TEXT NOT NULL,
			match_id      TEXT NOT NULL,
			unique_id     TEXT,
			payload       JSONB NOT NULL,
			attempts      INTEGER NOT NULL,
			max_attempts  INTEGER NOT NULL,
			last_error    TEXT,
			enqueued_at   TIMESTAMPTZ NOT NULL,
			failed_at     TIMESTAMPTZ NOT NULL
		)`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create forward_failures table: %w", err)
	}
	return nil
}

func (r *postgresForwardFailureRepository) Record(ctx context.Context, item *models.PendingForward) error {
	payload, err := json.Marshal(item.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode forward payload %s: %w", item.ID, err)
	}

	query := `
		INSERT INTO forward_failures
			(id, tournament_id, match_id, unique_id, payload, attempts, max_attempts, last_error, enqueued_at, failed_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
			SET attempts = EXCLUDED.attempts, last_error = EXCLUDED.last_error, failed_at = EXCLUDED.failed_at`

	_, err = r.db.ExecContext(ctx, query,
		item.ID,
		item.TournamentID,
		item.MatchID,
		item.UniqueID,
		payload,
		item.Attempts,
		item.MaxAttempts,
		item.LastError,
		item.EnqueuedAt,
		item.FailedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			return fmt.Errorf("failed to record forward failure %s (%s): %w", item.ID, pqErr.Code.Name(), err)
		}
		return fmt.Errorf("failed to record forward failure %s: %w", item.ID, err)
	}
	return nil
}

func (r *postgresForwardFailureRepository) List(ctx context.Context, tournamentID string, limit int) ([]*models.PendingForward, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + forwardFailureColumns + `
		FROM forward_failures
		WHERE ($1 = '' OR tournament_id = $1)
		ORDER BY failed_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, tournamentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list forward failures: %w", err)
	}
	defer rows.Close()

	items := make([]*models.PendingForward, 0)
	for rows.Next() {
		item, err := scanForwardFailure(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating forward failures: %w", err)
	}
	return items, nil
}

const forwardFailureColumns = `id, tournament_id, match_id, COALESCE(unique_id, ''), payload, attempts, max_attempts,
		       COALESCE(last_error, ''), enqueued_at, failed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanForwardFailure(row rowScanner) (*models.PendingForward, error) {
	item := &models.PendingForward{}
	var payload []byte
	if err := row.Scan(
		&item.ID,
		&item.TournamentID,
		&item.MatchID,
		&item.UniqueID,
		&payload,
		&item.Attempts,
		&item.MaxAttempts,
		&item.LastError,
		&item.EnqueuedAt,
		&item.FailedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrForwardFailureNotFound
		}
		return nil, fmt.Errorf("failed to scan forward failure row: %w", err)
	}
	if len(payload) > 0 {
		item.Payload = &models.Match{}
		if err := json.Unmarshal(payload, item.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode forward payload %s: %w", item.ID, err)
		}
	}
	return item, nil
}

func (r *postgresForwardFailureRepository) Get(ctx context.Context, id string) (*models.PendingForward, error) {
	query := `SELECT ` + forwardFailureColumns + ` FROM forward_failures WHERE id = $1`
	return scanForwardFailure(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresForwardFailureRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM forward_failures WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete forward failure %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrForwardFailureNotFound)
}
