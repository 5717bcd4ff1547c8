package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/tournament-hub/models"
	"github.com/Dosada05/tournament-hub/storage"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultResumableFor is how long a session may be picked up again.
	DefaultResumableFor = 24 * time.Hour
	// DefaultMaxStateAge is the hard limit after which records are deleted.
	DefaultMaxStateAge = 7 * 24 * time.Hour

	durableWriteTimeout = 30 * time.Second
)

// MatchStateStatus answers whether a session exists and whether it can still
// be resumed. The two differ for sessions between one and seven days old.
type MatchStateStatus struct {
	Exists      bool          `json:"exists"`
	Resumable   bool          `json:"resumable"`
	Age         time.Duration `json:"-"`
	AgeSeconds  int64         `json:"ageSeconds"`
	LastUpdated *time.Time    `json:"lastUpdated,omitempty"`
}

// SweepStats reports what a cache sweep removed.
type SweepStats struct {
	MemoryDropped  int `json:"memoryDropped"`
	DurableDeleted int `json:"durableDeleted"`
}

type MatchStateCacheConfig struct {
	ResumableFor time.Duration
	MaxAge       time.Duration
}

// MatchStateCache держит снимки счёта в памяти и асинхронно дублирует их в
// долговременное хранилище. Память всегда главнее.
type MatchStateCache struct {
	mu       sync.RWMutex
	memory   map[models.MatchStateKey]*models.CachedMatchState
	gens     map[models.MatchStateKey]uint64
	clearing map[models.MatchStateKey]int
	nextGen  uint64

	store   storage.SnapshotStore
	loads   singleflight.Group
	writes  sync.WaitGroup
	writeMu sync.Mutex

	logger       *slog.Logger
	now          func() time.Time
	resumableFor time.Duration
	maxAge       time.Duration
}

// NewMatchStateCache builds a cache. A nil store keeps everything in memory.
func NewMatchStateCache(store storage.SnapshotStore, logger *slog.Logger, cfg MatchStateCacheConfig) *MatchStateCache {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ResumableFor <= 0 {
		cfg.ResumableFor = DefaultResumableFor
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxStateAge
	}
	return &MatchStateCache{
		memory:       make(map[models.MatchStateKey]*models.CachedMatchState),
		gens:         make(map[models.MatchStateKey]uint64),
		clearing:     make(map[models.MatchStateKey]int),
		store:        store,
		logger:       logger,
		now:          time.Now,
		resumableFor: cfg.ResumableFor,
		maxAge:       cfg.MaxAge,
	}
}

func stateKey(tournamentID, matchID string) (models.MatchStateKey, error) {
	if tournamentID == "" || matchID == "" {
		return models.MatchStateKey{}, fmt.Errorf("%w: tournament id and match id are required", ErrValidationFailed)
	}
	return models.MatchStateKey{TournamentID: tournamentID, MatchID: matchID}, nil
}

// Save stores the snapshot in memory and schedules a durable write. A failing
// durable write is only logged.
func (c *MatchStateCache) Save(ctx context.Context, tournamentID, matchID string, snapshot []byte) (*models.CachedMatchState, error) {
	key, err := stateKey(tournamentID, matchID)
	if err != nil {
		return nil, err
	}
	state := &models.CachedMatchState{
		TournamentID: tournamentID,
		MatchID:      matchID,
		Snapshot:     append([]byte(nil), snapshot...),
		LastUpdated:  c.now(),
	}

	// Копии снимаются под блокировкой: persist обновляет SavedToDisk у записи в памяти.
	c.mu.Lock()
	c.memory[key] = state
	gen := c.bumpGen(key)
	persisted := state.Clone()
	out := state.Clone()
	c.mu.Unlock()

	if c.store != nil {
		c.writes.Add(1)
		go c.persist(context.WithoutCancel(ctx), persisted, gen)
	}
	return out, nil
}

// bumpGen invalidates pending durable writes and loads for key. Callers hold c.mu.
func (c *MatchStateCache) bumpGen(key models.MatchStateKey) uint64 {
	c.nextGen++
	c.gens[key] = c.nextGen
	return c.nextGen
}

func (c *MatchStateCache) persist(ctx context.Context, state *models.CachedMatchState, gen uint64) {
	defer c.writes.Done()
	ctx, cancel := context.WithTimeout(ctx, durableWriteTimeout)
	defer cancel()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	key := state.Key()
	c.mu.RLock()
	current := c.gens[key] == gen
	c.mu.RUnlock()
	if !current {
		// Запись устарела: после неё был новый Save или Clear.
		return
	}

	if err := c.store.Save(ctx, state); err != nil {
		c.logger.ErrorContext(ctx, "Failed to persist match state",
			slog.String("tournament_id", state.TournamentID),
			slog.String("match_id", state.MatchID),
			slog.Any("error", err),
		)
		return
	}

	c.mu.Lock()
	if m, ok := c.memory[key]; ok && c.gens[key] == gen {
		m.SavedToDisk = state.SavedToDisk
	}
	c.mu.Unlock()
}

// Load returns the snapshot from memory, falling back to the durable tier.
// Records past the hard age limit are deleted and reported as missing.
func (c *MatchStateCache) Load(ctx context.Context, tournamentID, matchID string) (*models.CachedMatchState, error) {
	key, err := stateKey(tournamentID, matchID)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	state, ok := c.memory[key]
	if ok {
		state = state.Clone()
	}
	c.mu.RUnlock()

	if ok {
		if c.now().Sub(state.LastUpdated) <= c.maxAge {
			return state, nil
		}
		c.EvictMemory(tournamentID, matchID)
	}
	if c.store == nil {
		return nil, ErrMatchStateNotFound
	}
	return c.loadDurable(ctx, key)
}

func (c *MatchStateCache) loadDurable(ctx context.Context, key models.MatchStateKey) (*models.CachedMatchState, error) {
	v, err, _ := c.loads.Do(key.TournamentID+"\x00"+key.MatchID, func() (any, error) {
		c.mu.RLock()
		gen := c.gens[key]
		c.mu.RUnlock()

		state, err := c.store.Load(ctx, key)
		if err != nil {
			return nil, err
		}

		stamp := state.SavedToDisk
		if stamp.IsZero() {
			stamp = state.LastUpdated
		}
		if c.now().Sub(stamp) > c.maxAge {
			if delErr := c.store.Delete(ctx, key); delErr != nil {
				c.logger.WarnContext(ctx, "Failed to delete expired match state",
					slog.String("key", key.String()), slog.Any("error", delErr))
			}
			return nil, storage.ErrSnapshotNotFound
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if existing, ok := c.memory[key]; ok {
			// Пока читали с диска, пришёл более свежий Save.
			return existing.Clone(), nil
		}
		if c.clearing[key] > 0 || c.gens[key] > gen {
			// Запись очищена, пока её читали.
			return nil, storage.ErrSnapshotNotFound
		}
		c.memory[key] = state
		return state.Clone(), nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrSnapshotNotFound) {
			return nil, ErrMatchStateNotFound
		}
		return nil, fmt.Errorf("failed to load match state %s: %w", key, err)
	}
	return v.(*models.CachedMatchState).Clone(), nil
}

// CheckExists reports presence and resumability without returning the snapshot.
func (c *MatchStateCache) CheckExists(ctx context.Context, tournamentID, matchID string) (MatchStateStatus, error) {
	state, err := c.Load(ctx, tournamentID, matchID)
	if err != nil {
		if errors.Is(err, ErrMatchStateNotFound) {
			return MatchStateStatus{}, nil
		}
		return MatchStateStatus{}, err
	}
	age := c.now().Sub(state.LastUpdated)
	lastUpdated := state.LastUpdated
	return MatchStateStatus{
		Exists:      true,
		Resumable:   age <= c.resumableFor,
		Age:         age,
		AgeSeconds:  int64(age / time.Second),
		LastUpdated: &lastUpdated,
	}, nil
}

// Clear removes the session from both tiers.
func (c *MatchStateCache) Clear(ctx context.Context, tournamentID, matchID string) error {
	key, err := stateKey(tournamentID, matchID)
	if err != nil {
		return err
	}

	// The bumped generation is a tombstone: a durable load that started
	// before this call must not promote the record again.
	c.mu.Lock()
	delete(c.memory, key)
	c.bumpGen(key)
	c.clearing[key]++
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.clearing[key]--; c.clearing[key] <= 0 {
			delete(c.clearing, key)
		}
		c.mu.Unlock()
	}()

	if c.store == nil {
		return nil
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to clear match state %s: %w", key, err)
	}
	return nil
}

// EvictMemory drops the in-memory copy only; the durable record stays.
func (c *MatchStateCache) EvictMemory(tournamentID, matchID string) {
	key := models.MatchStateKey{TournamentID: tournamentID, MatchID: matchID}
	c.mu.Lock()
	delete(c.memory, key)
	c.mu.Unlock()
}

// Sweep drops memory entries that are no longer resumable and deletes durable
// records past the hard age limit.
func (c *MatchStateCache) Sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	now := c.now()

	c.mu.Lock()
	for key, state := range c.memory {
		if now.Sub(state.LastUpdated) > c.resumableFor {
			delete(c.memory, key)
			stats.MemoryDropped++
		}
	}
	// Поколения без записи в памяти больше никого не защищают.
	for key := range c.gens {
		if _, ok := c.memory[key]; !ok && c.clearing[key] == 0 {
			delete(c.gens, key)
		}
	}
	c.mu.Unlock()

	if c.store == nil {
		return stats, nil
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deleted, err := c.store.Sweep(ctx, now.Add(-c.maxAge))
	stats.DurableDeleted = deleted
	if err != nil {
		return stats, fmt.Errorf("failed to sweep durable match states: %w", err)
	}
	return stats, nil
}

// Flush waits for scheduled durable writes to finish.
func (c *MatchStateCache) Flush() {
	c.writes.Wait()
}

// Len returns the number of sessions held in memory.
func (c *MatchStateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.memory)
}
