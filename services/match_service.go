package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-hub/brackets"
	"github.com/Dosada05/tournament-hub/models"
	"github.com/Dosada05/tournament-hub/repositories"
	"github.com/google/uuid"
)

type MatchResultConfig struct {
	ForwardTimeout time.Duration
	MaxAttempts    int
}

// SubmitResult describes an accepted result and the identifiers it was stored under.
type SubmitResult struct {
	TournamentID string                   `json:"tournamentId"`
	MatchID      string                   `json:"matchId"`
	UniqueID     string                   `json:"uniqueId,omitempty"`
	Match        *models.Match            `json:"match"`
	Summary      models.TournamentSummary `json:"-"`
	RuleApplied  models.RuleSet           `json:"-"`
	ForwardID    string                   `json:"-"`
}

// DrainStats summarizes one pass over the forward queue.
type DrainStats struct {
	Attempted int `json:"attempted"`
	Delivered int `json:"delivered"`
	Retrying  int `json:"retrying"`
	Exhausted int `json:"exhausted"`
}

type MatchResultService struct {
	registry       *repositories.TournamentRegistry
	validator      *ResultValidator
	queue          *ForwardQueue
	forwarder      Forwarder
	failures       repositories.ForwardFailureRepository
	logger         *slog.Logger
	now            func() time.Time
	forwardTimeout time.Duration
	maxAttempts    int
}

func NewMatchResultService(
	registry *repositories.TournamentRegistry,
	forwarder Forwarder,
	failures repositories.ForwardFailureRepository,
	logger *slog.Logger,
	cfg MatchResultConfig,
) *MatchResultService {
	if logger == nil {
		logger = slog.Default()
	}
	if failures == nil {
		failures = repositories.NewMemoryForwardFailureRepository(0)
	}
	if cfg.ForwardTimeout <= 0 {
		cfg.ForwardTimeout = DefaultForwardTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxForwardAttempts
	}
	return &MatchResultService{
		registry:       registry,
		validator:      NewResultValidator(logger),
		queue:          NewForwardQueue(),
		forwarder:      forwarder,
		failures:       failures,
		logger:         logger,
		now:            time.Now,
		forwardTimeout: cfg.ForwardTimeout,
		maxAttempts:    cfg.MaxAttempts,
	}
}

func (s *MatchResultService) Queue() *ForwardQueue {
	return s.queue
}

// Submit validates a result, stores it on the match and queues it for the
// system of record. Broadcasting is left to the caller.
func (s *MatchResultService) Submit(ctx context.Context, tournamentID, matchID string, input MatchResultInput) (*SubmitResult, error) {
	var (
		pending *models.PendingForward
		applied models.RuleSet
	)

	updated, summary, err := s.registry.UpdateMatch(tournamentID, matchID, func(t *models.Tournament, m *models.Match) error {
		rule := s.ruleFor(input, t, m)
		if err := s.validator.Validate(ctx, input, &rule); err != nil {
			return err
		}
		applied = rule.Rules()

		now := s.now()
		applyResult(m, input, rule, now)

		pending = &models.PendingForward{
			ID:           uuid.NewString(),
			TournamentID: t.ID,
			MatchID:      string(m.ID),
			UniqueID:     m.UniqueID,
			Payload:      m.Clone(),
			MaxAttempts:  s.maxAttempts,
			EnqueuedAt:   now,
		}
		// Очередь пополняется под блокировкой турнира, чтобы порядок
		// отправки совпадал с порядком изменений.
		s.queue.Enqueue(pending)
		return nil
	})
	if err != nil {
		return nil, registryError(err, tournamentID, matchID)
	}

	s.logger.InfoContext(ctx, "Match result accepted",
		slog.String("tournament_id", tournamentID),
		slog.String("match_id", string(updated.ID)),
		slog.String("unique_id", updated.UniqueID),
		slog.String("requested_id", matchID),
		slog.Int("player1_sets", updated.Player1Sets),
		slog.Int("player2_sets", updated.Player2Sets),
		slog.String("forward_id", pending.ID),
	)

	return &SubmitResult{
		TournamentID: tournamentID,
		MatchID:      string(updated.ID),
		UniqueID:     updated.UniqueID,
		Match:        updated,
		Summary:      summary,
		RuleApplied:  applied,
		ForwardID:    pending.ID,
	}, nil
}

// ruleFor picks the rule a result is checked against: the one the client
// scored with, then the one recorded on the match, then the tournament's rules.
func (s *MatchResultService) ruleFor(input MatchResultInput, t *models.Tournament, m *models.Match) models.GameRule {
	switch {
	case input.GameRulesUsed != nil:
		return input.GameRulesUsed.Clone()
	case m.GameRulesUsed != nil:
		return m.GameRulesUsed.Clone()
	default:
		return brackets.RuleForMatch(t, m)
	}
}

func applyResult(m *models.Match, input MatchResultInput, rule models.GameRule, now time.Time) {
	m.Player1Sets = derefInt(input.Player1Sets)
	m.Player2Sets = derefInt(input.Player2Sets)
	m.Player1Legs = derefInt(input.Player1Legs)
	m.Player2Legs = derefInt(input.Player2Legs)

	m.Status = models.MatchStatusFinished
	if input.Status != nil {
		m.Status = *input.Status
	}
	if input.Notes != nil {
		m.Notes = *input.Notes
	}
	// Класс меняется только если клиент прислал его явно.
	if input.ClassID != nil {
		m.ClassID = intPtr(*input.ClassID)
	}
	if input.ClassName != nil {
		m.ClassName = *input.ClassName
	}
	if m.GameRulesUsed == nil || input.GameRulesUsed != nil {
		r := rule.Clone()
		m.GameRulesUsed = &r
	}

	m.Winner = m.DecideWinner()
	if input.Winner != nil && *input.Winner != "" {
		m.Winner = *input.Winner
	}

	if m.StartedAt == nil {
		m.StartedAt = &now
	}
	if m.Status == models.MatchStatusFinished {
		m.FinishedAt = &now
	}
	m.SyncedAt = &now
}

// DrainQueue tries every idle queued forward once. It is safe to run from
// several goroutines; each item is handled by only one of them.
func (s *MatchResultService) DrainQueue(ctx context.Context) DrainStats {
	var stats DrainStats
	if s.forwarder == nil {
		return stats
	}

	for _, item := range s.queue.claim() {
		stats.Attempted++

		fctx, cancel := context.WithTimeout(ctx, s.forwardTimeout)
		err := s.forwarder.Forward(fctx, item)
		cancel()

		if err == nil {
			s.queue.complete(item.ID)
			stats.Delivered++
			s.logger.DebugContext(ctx, "Forwarded match result",
				slog.String("forward_id", item.ID),
				slog.String("tournament_id", item.TournamentID),
				slog.String("match_id", item.MatchID),
			)
			continue
		}

		exhausted := s.queue.fail(item.ID, err, s.now())
		if exhausted == nil {
			stats.Retrying++
			s.logger.WarnContext(ctx, "Forward attempt failed, will retry",
				slog.String("forward_id", item.ID),
				slog.String("tournament_id", item.TournamentID),
				slog.String("match_id", item.MatchID),
				slog.Int("attempt", item.Attempts+1),
				slog.Any("error", err),
			)
			continue
		}

		stats.Exhausted++
		s.logger.ErrorContext(ctx, "Forward permanently failed",
			slog.String("forward_id", exhausted.ID),
			slog.String("tournament_id", exhausted.TournamentID),
			slog.String("match_id", exhausted.MatchID),
			slog.Int("attempts", exhausted.Attempts),
			slog.String("last_error", exhausted.LastError),
		)
		if recErr := s.failures.Record(ctx, exhausted); recErr != nil {
			s.logger.ErrorContext(ctx, "Failed to record forward failure",
				slog.String("forward_id", exhausted.ID),
				slog.Any("error", recErr),
			)
		}
	}
	return stats
}

// ForwardingStatus lists what is still queued and what was given up on.
type ForwardingStatus struct {
	Pending []*models.PendingForward `json:"pending"`
	Failed  []*models.PendingForward `json:"failed"`
}

func (s *MatchResultService) ForwardingStatus(ctx context.Context, tournamentID string, limit int) (*ForwardingStatus, error) {
	failed, err := s.failures.List(ctx, tournamentID, limit)
	if err != nil {
		return nil, err
	}
	return &ForwardingStatus{
		Pending: s.queue.Pending(tournamentID),
		Failed:  failed,
	}, nil
}

// RequeueFailed moves a permanently failed forward back into the queue with a
// fresh attempt budget.
func (s *MatchResultService) RequeueFailed(ctx context.Context, id string) (*models.PendingForward, error) {
	item, err := s.failures.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrForwardFailureNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrForwardNotFound, id)
		}
		return nil, err
	}
	if err := s.failures.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrForwardFailureNotFound) {
			// Параллельный запрос успел забрать запись первым.
			return nil, fmt.Errorf("%w: %s", ErrForwardNotFound, id)
		}
		return nil, err
	}

	item.Attempts = 0
	item.LastError = ""
	item.FailedAt = time.Time{}
	item.MaxAttempts = s.maxAttempts
	s.queue.Enqueue(item)

	s.logger.InfoContext(ctx, "Requeued failed forward",
		slog.String("forward_id", item.ID),
		slog.String("tournament_id", item.TournamentID),
		slog.String("match_id", item.MatchID),
	)
	c := *item
	return &c, nil
}
