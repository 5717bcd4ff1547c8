package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/tournament-hub/models"
	"github.com/Dosada05/tournament-hub/repositories"
)

// Broadcaster pushes confirmed changes to connected peers.
type Broadcaster interface {
	BroadcastMatchUpdate(ctx context.Context, update models.AuthoringMatchUpdate)
	BroadcastTournament(ctx context.Context, tournamentID, event string, payload any)
}

type RegisterInput struct {
	TournamentID string            `json:"tournamentId"`
	Name         string            `json:"name"`
	Classes      []models.Class    `json:"classes,omitempty"`
	GameRules    []models.GameRule `json:"gameRules,omitempty"`
	TotalPlayers *int              `json:"totalPlayers,omitempty"`
}

// Endpoints tells a registering client where to connect.
type Endpoints struct {
	Rooms     string `json:"rooms"`
	Socket    string `json:"socket"`
	Broadcast string `json:"broadcast"`
}

type RegisterResult struct {
	Tournament   *models.Tournament `json:"tournament"`
	Endpoints    Endpoints          `json:"endpoints"`
	RegisteredAt time.Time          `json:"registeredAt"`
	Created      bool               `json:"created"`
}

type SyncInput struct {
	Classes        []models.Class    `json:"classes"`
	GameRules      []models.GameRule `json:"gameRules"`
	Matches        []*models.Match   `json:"matches"`
	CurrentClassID *int              `json:"currentClassId,omitempty"`
	TotalPlayers   *int              `json:"totalPlayers,omitempty"`
}

type TournamentService struct {
	registry    *repositories.TournamentRegistry
	results     *MatchResultService
	cache       *MatchStateCache
	broadcaster Broadcaster
	logger      *slog.Logger
	publicURL   string

	// drain runs after every accepted result.
	drain func()
}

func NewTournamentService(
	registry *repositories.TournamentRegistry,
	results *MatchResultService,
	cache *MatchStateCache,
	broadcaster Broadcaster,
	logger *slog.Logger,
	publicURL string,
) *TournamentService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &TournamentService{
		registry:    registry,
		results:     results,
		cache:       cache,
		broadcaster: broadcaster,
		logger:      logger,
		publicURL:   strings.TrimRight(publicURL, "/"),
	}
	s.drain = func() {
		go results.DrainQueue(context.Background())
	}
	return s
}

func (s *TournamentService) Results() *MatchResultService {
	return s.results
}

func (s *TournamentService) Cache() *MatchStateCache {
	return s.cache
}

func (s *TournamentService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	input.TournamentID = strings.TrimSpace(input.TournamentID)
	if input.TournamentID == "" {
		return nil, fmt.Errorf("%w: tournamentId is required", ErrValidationFailed)
	}
	if input.TotalPlayers != nil && *input.TotalPlayers < 0 {
		return nil, fmt.Errorf("%w: totalPlayers must not be negative", ErrValidationFailed)
	}

	t, created, err := s.registry.Register(repositories.TournamentRegistration{
		TournamentID: input.TournamentID,
		Name:         strings.TrimSpace(input.Name),
		Classes:      input.Classes,
		GameRules:    input.GameRules,
		TotalPlayers: input.TotalPlayers,
	})
	if err != nil {
		return nil, registryError(err, input.TournamentID, "")
	}

	s.logger.InfoContext(ctx, "Tournament registered",
		slog.String("tournament_id", t.ID),
		slog.String("name", t.Name),
		slog.Bool("created", created),
	)

	return &RegisterResult{
		Tournament:   t,
		Endpoints:    s.endpoints(t.ID),
		RegisteredAt: t.RegisteredAt,
		Created:      created,
	}, nil
}

func (s *TournamentService) endpoints(tournamentID string) Endpoints {
	base := s.publicURL
	wsBase := base
	switch {
	case strings.HasPrefix(base, "https://"):
		wsBase = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		wsBase = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return Endpoints{
		Rooms:     wsBase + "/ws/rooms",
		Socket:    wsBase + "/ws/socket?tournamentId=" + tournamentID,
		Broadcast: base + "/api/tournaments/" + tournamentID + "/sync",
	}
}

func (s *TournamentService) Get(ctx context.Context, id string) (*models.Tournament, error) {
	t, err := s.registry.Get(id)
	if err != nil {
		return nil, registryError(err, id, "")
	}
	return t, nil
}

func (s *TournamentService) ListAll(ctx context.Context) []models.TournamentSummary {
	return s.registry.ListAll()
}

func (s *TournamentService) ListActive(ctx context.Context) []models.TournamentSummary {
	return s.registry.ListActive()
}

// FullSync replaces the tournament's state and tells its viewers.
func (s *TournamentService) FullSync(ctx context.Context, id string, input SyncInput) (repositories.SyncCounts, error) {
	for i, m := range input.Matches {
		if m == nil {
			return repositories.SyncCounts{}, fmt.Errorf("%w: match %d is null", ErrValidationFailed, i)
		}
	}

	counts, err := s.registry.FullSync(id, repositories.SyncData{
		Classes:        input.Classes,
		GameRules:      input.GameRules,
		Matches:        input.Matches,
		CurrentClassID: input.CurrentClassID,
		TotalPlayers:   input.TotalPlayers,
	})
	if err != nil {
		return repositories.SyncCounts{}, registryError(err, id, "")
	}

	s.logger.InfoContext(ctx, "Tournament synced",
		slog.String("tournament_id", id),
		slog.Int("matches", counts.Matches),
		slog.Int("active_matches", counts.ActiveMatches),
	)

	if s.broadcaster != nil {
		if t, err := s.registry.Get(id); err == nil {
			s.broadcaster.BroadcastTournament(ctx, id, models.EventTournamentSynced, t)
		}
	}
	return counts, nil
}

func (s *TournamentService) Heartbeat(ctx context.Context, id string) error {
	if err := s.registry.UpdateHeartbeat(id); err != nil {
		return registryError(err, id, "")
	}
	return nil
}

func (s *TournamentService) Unregister(ctx context.Context, id string) error {
	if err := s.registry.Unregister(id); err != nil {
		return registryError(err, id, "")
	}
	s.logger.InfoContext(ctx, "Tournament unregistered", slog.String("tournament_id", id))
	s.announceRemoval(ctx, id, "unregistered")
	return nil
}

// CleanupStale removes tournaments whose owner stopped sending heartbeats.
func (s *TournamentService) CleanupStale(ctx context.Context) []string {
	removed := s.registry.CleanupStale()
	for _, id := range removed {
		s.logger.InfoContext(ctx, "Removed stale tournament", slog.String("tournament_id", id))
		s.announceRemoval(ctx, id, "stale")
	}
	return removed
}

func (s *TournamentService) announceRemoval(ctx context.Context, id, reason string) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.BroadcastTournament(ctx, id, models.EventTournamentRemoved, map[string]string{
		"tournamentId": id,
		"reason":       reason,
	})
}

func (s *TournamentService) GetMatch(ctx context.Context, tournamentID, matchID string) (*models.Match, error) {
	m, err := s.registry.GetMatch(tournamentID, matchID)
	if err != nil {
		return nil, registryError(err, tournamentID, matchID)
	}
	return m, nil
}

// SubmitResult stores a result, broadcasts it and kicks off forwarding.
func (s *TournamentService) SubmitResult(ctx context.Context, tournamentID, matchID string, input MatchResultInput) (*SubmitResult, error) {
	res, err := s.results.Submit(ctx, tournamentID, matchID, input)
	if err != nil {
		return nil, err
	}

	if s.broadcaster != nil {
		rule := res.RuleApplied
		s.broadcaster.BroadcastMatchUpdate(ctx, models.AuthoringMatchUpdate{
			MatchUpdate: models.MatchUpdate{
				TournamentID: tournamentID,
				MatchID:      res.MatchID,
				UniqueID:     res.UniqueID,
				Match:        res.Match,
				Source:       input.Source,
				UpdatedAt:    derefTime(res.Match.SyncedAt),
			},
			ActiveMatches: res.Summary.ActiveMatches,
			TotalMatches:  res.Summary.TotalMatches,
			RuleApplied:   &rule,
			ForwardID:     res.ForwardID,
		})
	}

	if res.Match.Status == models.MatchStatusFinished && s.cache != nil {
		s.clearFinishedState(ctx, tournamentID, matchID, res.Match)
	}

	s.drain()
	return res, nil
}

// clearFinishedState drops scoring sessions of a finished match under its
// canonical id and any raw id they may have been stored under.
func (s *TournamentService) clearFinishedState(ctx context.Context, tournamentID, requestedID string, m *models.Match) {
	seen := make(map[string]bool, 4)
	for _, id := range []string{canonicalMatchID(m, requestedID), m.UniqueID, string(m.ID), requestedID} {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if err := s.cache.Clear(ctx, tournamentID, id); err != nil {
			s.logger.WarnContext(ctx, "Failed to clear match state of finished match",
				slog.String("tournament_id", tournamentID),
				slog.String("match_id", id),
				slog.Any("error", err),
			)
		}
	}
}

// canonicalMatchID is the id scoring sessions of m are stored under: the
// unique token if the planner sent one, the legacy id otherwise.
func canonicalMatchID(m *models.Match, fallback string) string {
	switch {
	case m == nil:
		return fallback
	case m.UniqueID != "":
		return m.UniqueID
	case m.ID != "":
		return string(m.ID)
	default:
		return fallback
	}
}

// MatchStateID resolves any alias of a registered match to its canonical id.
// Unknown tournaments and matches keep the raw id, so sessions can be saved
// before the first sync arrives.
func (s *TournamentService) MatchStateID(tournamentID, matchID string) string {
	m, err := s.registry.GetMatch(tournamentID, matchID)
	if err != nil {
		return matchID
	}
	return canonicalMatchID(m, matchID)
}

// SaveMatchState stores a scoring-session snapshot under the canonical match id.
func (s *TournamentService) SaveMatchState(ctx context.Context, tournamentID, matchID string, snapshot []byte) (*models.CachedMatchState, error) {
	return s.cache.Save(ctx, tournamentID, s.MatchStateID(tournamentID, matchID), snapshot)
}

// LoadMatchState returns the session together with its resumability status.
func (s *TournamentService) LoadMatchState(ctx context.Context, tournamentID, matchID string) (*models.CachedMatchState, MatchStateStatus, error) {
	id := s.MatchStateID(tournamentID, matchID)
	status, err := s.cache.CheckExists(ctx, tournamentID, id)
	if err != nil {
		return nil, MatchStateStatus{}, err
	}
	if !status.Exists {
		return nil, status, ErrMatchStateNotFound
	}
	state, err := s.cache.Load(ctx, tournamentID, id)
	if err != nil {
		return nil, MatchStateStatus{}, err
	}
	return state, status, nil
}

func (s *TournamentService) CheckMatchState(ctx context.Context, tournamentID, matchID string) (MatchStateStatus, error) {
	return s.cache.CheckExists(ctx, tournamentID, s.MatchStateID(tournamentID, matchID))
}

func (s *TournamentService) ClearMatchState(ctx context.Context, tournamentID, matchID string) error {
	return s.cache.Clear(ctx, tournamentID, s.MatchStateID(tournamentID, matchID))
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
