package services

import (
	"context"
	"log/slog"

	"github.com/Dosada05/tournament-hub/models"
)

// MatchResultInput — результат матча от клиента. Отсутствующие поля счёта
// считаются нулями.
type MatchResultInput struct {
	Player1Sets   *int                `json:"player1Sets"`
	Player2Sets   *int                `json:"player2Sets"`
	Player1Legs   *int                `json:"player1Legs"`
	Player2Legs   *int                `json:"player2Legs"`
	Status        *models.MatchStatus `json:"status,omitempty"`
	Winner        *string             `json:"winner,omitempty"`
	Notes         *string             `json:"notes,omitempty"`
	ClassID       *int                `json:"classId,omitempty"`
	ClassName     *string             `json:"className,omitempty"`
	GameRulesUsed *models.GameRule    `json:"gameRulesUsed,omitempty"`
	Source        string              `json:"source,omitempty"`
}

type ResultValidator struct {
	logger *slog.Logger
}

func NewResultValidator(logger *slog.Logger) *ResultValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultValidator{logger: logger}
}

// Validate accepts or rejects a submitted score. The sets cap of rule is a
// hard limit; leg counts beyond what the rule allows are only logged.
func (v *ResultValidator) Validate(ctx context.Context, result MatchResultInput, rule *models.GameRule) error {
	p1Sets, p2Sets := derefInt(result.Player1Sets), derefInt(result.Player2Sets)
	p1Legs, p2Legs := derefInt(result.Player1Legs), derefInt(result.Player2Legs)

	for _, f := range []struct {
		name  string
		value int
	}{
		{"player1Sets", p1Sets},
		{"player2Sets", p2Sets},
		{"player1Legs", p1Legs},
		{"player2Legs", p2Legs},
	} {
		if f.value < 0 {
			return invalidResult("%s must not be negative (got %d)", f.name, f.value)
		}
	}

	declaredFinished := result.Status != nil && *result.Status == models.MatchStatusFinished
	if p1Sets == p2Sets && p1Legs == p2Legs && !declaredFinished {
		return invalidResult("no winner can be determined: sets and legs are tied and the match is not marked finished")
	}

	if rule == nil {
		return nil
	}
	if rule.SetsToWin > 0 && (p1Sets > rule.SetsToWin || p2Sets > rule.SetsToWin) {
		return invalidResult("sets %d:%d exceed the %d sets to win of rule %q", p1Sets, p2Sets, rule.SetsToWin, rule.ID)
	}

	maxLegs := rule.LegsToWin
	if rule.SetsToWin > 0 {
		maxLegs = rule.LegsToWin * rule.SetsToWin
	}
	if maxLegs > 0 && (p1Legs > maxLegs || p2Legs > maxLegs) {
		v.logger.WarnContext(ctx, "Submitted legs exceed game rule",
			slog.Int("player1_legs", p1Legs),
			slog.Int("player2_legs", p2Legs),
			slog.Int("max_legs", maxLegs),
			slog.String("rule_id", rule.ID),
		)
	}
	return nil
}
