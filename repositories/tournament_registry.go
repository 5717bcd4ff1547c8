package repositories

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/tournament-hub/models"
)

var (
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrMatchNotFound      = errors.New("match not found")
	ErrTournamentConflict = errors.New("tournament id is claimed by another active tournament")
)

const (
	DefaultActiveWindow = 5 * time.Minute
	DefaultStaleAfter   = 10 * time.Minute
)

// TournamentRegistration — данные регистрации турнира.
type TournamentRegistration struct {
	TournamentID string
	Name         string
	Classes      []models.Class
	GameRules    []models.GameRule
	TotalPlayers *int
}

// SyncData replaces a tournament's collections. A nil slice keeps the
// current collection, an empty one clears it.
type SyncData struct {
	Classes        []models.Class
	GameRules      []models.GameRule
	Matches        []*models.Match
	CurrentClassID *int
	TotalPlayers   *int
}

type SyncCounts struct {
	Classes       int `json:"classes"`
	GameRules     int `json:"gameRules"`
	Matches       int `json:"matches"`
	ActiveMatches int `json:"activeMatches"`
}

// MatchUpdateFunc mutates a match in place. It runs while the tournament is
// locked; t must be treated as read-only.
type MatchUpdateFunc func(t *models.Tournament, m *models.Match) error

type tournamentSlot struct {
	mu    sync.Mutex
	t     *models.Tournament
	index *models.MatchIndex
}

// TournamentRegistry is the in-memory source of truth for tournaments.
// Each tournament has its own lock; operations on different tournaments
// never wait on each other. The registry lock is only held to find or
// add slots and is always taken before a slot lock.
type TournamentRegistry struct {
	mu           sync.RWMutex
	tournaments  map[string]*tournamentSlot
	now          func() time.Time
	activeWindow time.Duration
	staleAfter   time.Duration
}

type RegistryOption func(*TournamentRegistry)

func WithClock(now func() time.Time) RegistryOption {
	return func(r *TournamentRegistry) { r.now = now }
}

func WithLiveness(activeWindow, staleAfter time.Duration) RegistryOption {
	return func(r *TournamentRegistry) {
		if activeWindow > 0 {
			r.activeWindow = activeWindow
		}
		if staleAfter > 0 {
			r.staleAfter = staleAfter
		}
	}
}

func NewTournamentRegistry(opts ...RegistryOption) *TournamentRegistry {
	r := &TournamentRegistry{
		tournaments:  make(map[string]*tournamentSlot),
		now:          time.Now,
		activeWindow: DefaultActiveWindow,
		staleAfter:   DefaultStaleAfter,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *TournamentRegistry) slot(id string) (*tournamentSlot, error) {
	r.mu.RLock()
	s, ok := r.tournaments[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrTournamentNotFound
	}
	return s, nil
}

// Register adds a tournament or refreshes an existing one. Re-registering the
// same id never duplicates it; created reports whether a new entry was made.
func (r *TournamentRegistry) Register(reg TournamentRegistration) (*models.Tournament, bool, error) {
	now := r.now()

	r.mu.Lock()
	s, exists := r.tournaments[reg.TournamentID]
	if !exists {
		t := &models.Tournament{
			ID:            reg.TournamentID,
			Name:          reg.Name,
			Classes:       append([]models.Class(nil), reg.Classes...),
			GameRules:     cloneRules(reg.GameRules),
			Matches:       []*models.Match{},
			RegisteredAt:  now,
			LastHeartbeat: now,
			LastUpdate:    now,
		}
		if len(t.Classes) == 0 {
			t.Classes = models.DefaultClasses()
		}
		if len(t.GameRules) == 0 {
			t.GameRules = []models.GameRule{models.DefaultGameRule()}
		}
		if reg.TotalPlayers != nil {
			t.TotalPlayers = *reg.TotalPlayers
		}
		s = &tournamentSlot{t: t, index: models.NewMatchIndex(nil)}
		r.tournaments[reg.TournamentID] = s
		r.mu.Unlock()
		return t.Clone(), true, nil
	}
	r.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.t
	if reg.Name != "" && t.Name != "" && reg.Name != t.Name && now.Sub(t.LastHeartbeat) < r.activeWindow {
		return nil, false, ErrTournamentConflict
	}
	if reg.Name != "" {
		t.Name = reg.Name
	}
	if len(reg.Classes) > 0 {
		t.Classes = append([]models.Class(nil), reg.Classes...)
		recount(t)
	}
	if len(reg.GameRules) > 0 {
		t.GameRules = cloneRules(reg.GameRules)
	}
	if reg.TotalPlayers != nil {
		t.TotalPlayers = *reg.TotalPlayers
	}
	t.LastHeartbeat = now
	return t.Clone(), false, nil
}

// Get returns a copy of the tournament.
func (r *TournamentRegistry) Get(id string) (*models.Tournament, error) {
	s, err := r.slot(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.Clone(), nil
}

// FullSync replaces classes, game rules and matches of a tournament.
func (r *TournamentRegistry) FullSync(id string, data SyncData) (SyncCounts, error) {
	s, err := r.slot(id)
	if err != nil {
		return SyncCounts{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.t
	if data.Classes != nil {
		t.Classes = append([]models.Class(nil), data.Classes...)
	}
	if data.GameRules != nil {
		t.GameRules = cloneRules(data.GameRules)
	}
	if data.CurrentClassID != nil {
		v := *data.CurrentClassID
		t.CurrentClassID = &v
	}
	if data.TotalPlayers != nil {
		t.TotalPlayers = *data.TotalPlayers
	}
	if data.Matches != nil {
		matches := make([]*models.Match, 0, len(data.Matches))
		for _, m := range data.Matches {
			if m == nil {
				continue
			}
			c := m.Clone()
			applyClassDefaults(t, c)
			if c.Status == "" {
				c.Status = models.MatchStatusNotStarted
			}
			matches = append(matches, c)
		}
		t.Matches = matches
		s.index = models.NewMatchIndex(t.Matches)
	}

	now := r.now()
	t.LastUpdate = now
	t.LastHeartbeat = now
	recount(t)

	return SyncCounts{
		Classes:       len(t.Classes),
		GameRules:     len(t.GameRules),
		Matches:       len(t.Matches),
		ActiveMatches: t.ActiveMatches,
	}, nil
}

// GetMatch resolves a match by token or legacy id and returns a copy.
func (r *TournamentRegistry) GetMatch(tournamentID, matchID string) (*models.Match, error) {
	s, err := r.slot(tournamentID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index.Resolve(matchID)
	if !ok {
		return nil, ErrMatchNotFound
	}
	return s.t.Matches[i].Clone(), nil
}

// UpdateMatch resolves a match and applies fn to it under the tournament lock.
// If fn fails the match is left untouched. Identifiers are restored after fn
// runs, so a mutation can never re-key a match.
func (r *TournamentRegistry) UpdateMatch(tournamentID, matchID string, fn MatchUpdateFunc) (*models.Match, models.TournamentSummary, error) {
	s, err := r.slot(tournamentID)
	if err != nil {
		return nil, models.TournamentSummary{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index.Resolve(matchID)
	if !ok {
		return nil, models.TournamentSummary{}, ErrMatchNotFound
	}
	current := s.t.Matches[i]
	working := current.Clone()
	if err := fn(s.t, working); err != nil {
		return nil, models.TournamentSummary{}, err
	}
	working.UniqueID = current.UniqueID
	working.ID = current.ID
	s.t.Matches[i] = working

	s.t.LastUpdate = r.now()
	recount(s.t)
	return working.Clone(), s.t.Summary(), nil
}

// UpdateHeartbeat records a liveness signal from the tournament owner.
func (r *TournamentRegistry) UpdateHeartbeat(id string) error {
	s, err := r.slot(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.t.LastHeartbeat = r.now()
	s.mu.Unlock()
	return nil
}

func (r *TournamentRegistry) ListAll() []models.TournamentSummary {
	return r.list(func(*models.Tournament, time.Time) bool { return true })
}

// ListActive returns tournaments with a heartbeat inside the active window.
func (r *TournamentRegistry) ListActive() []models.TournamentSummary {
	return r.list(func(t *models.Tournament, now time.Time) bool {
		return now.Sub(t.LastHeartbeat) < r.activeWindow
	})
}

func (r *TournamentRegistry) list(keep func(*models.Tournament, time.Time) bool) []models.TournamentSummary {
	now := r.now()
	r.mu.RLock()
	slots := make([]*tournamentSlot, 0, len(r.tournaments))
	for _, s := range r.tournaments {
		slots = append(slots, s)
	}
	r.mu.RUnlock()

	out := make([]models.TournamentSummary, 0, len(slots))
	for _, s := range slots {
		s.mu.Lock()
		if keep(s.t, now) {
			out = append(out, s.t.Summary())
		}
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CleanupStale removes tournaments whose owner has been silent longer than
// the stale threshold and returns their ids.
func (r *TournamentRegistry) CleanupStale() []string {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for id, s := range r.tournaments {
		s.mu.Lock()
		stale := now.Sub(s.t.LastHeartbeat) >= r.staleAfter
		s.mu.Unlock()
		if stale {
			delete(r.tournaments, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return removed
}

// Unregister removes a tournament explicitly.
func (r *TournamentRegistry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tournaments[id]; !ok {
		return ErrTournamentNotFound
	}
	delete(r.tournaments, id)
	return nil
}

func applyClassDefaults(t *models.Tournament, m *models.Match) {
	if m.ClassID == nil && t.CurrentClassID != nil {
		v := *t.CurrentClassID
		m.ClassID = &v
	}
	if m.ClassName != "" || m.ClassID == nil {
		return
	}
	if name, ok := t.ClassName(*m.ClassID); ok {
		m.ClassName = name
		return
	}
	for _, c := range models.DefaultClasses() {
		if c.ID == *m.ClassID {
			m.ClassName = c.Name
			return
		}
	}
}

func recount(t *models.Tournament) {
	active := 0
	perClass := make(map[int]int)
	for _, m := range t.Matches {
		if m.Status == models.MatchStatusInProgress {
			active++
		}
		if m.ClassID != nil {
			perClass[*m.ClassID]++
		}
	}
	t.ActiveMatches = active
	t.TotalMatches = len(t.Matches)
	for i := range t.Classes {
		t.Classes[i].MatchCount = perClass[t.Classes[i].ID]
	}
}

func cloneRules(rules []models.GameRule) []models.GameRule {
	if rules == nil {
		return nil
	}
	out := make([]models.GameRule, len(rules))
	for i := range rules {
		out[i] = rules[i].Clone()
	}
	return out
}
