package brackets

import "github.com/Dosada05/tournament-hub/models"

const (
	maxSetsToWin = 5
	maxLegsToWin = 6
)

// adjustment shifts sets/legs relative to the base rule for one round.
type adjustment struct {
	sets int
	legs int
}

// Early rounds play shorter, semifinal and final longer. The caps only apply
// to escalation; a base rule already above a cap is left as it is.
// TODO: the caps come from the planner's hand-tuned tables and need product
// confirmation before adding rounds beyond the ones listed here.
var winnerEscalation = map[Round]adjustment{
	RoundOf64:    {sets: -1},
	RoundOf32:    {sets: -1},
	RoundOf16:    {},
	Quarterfinal: {},
	Semifinal:    {legs: +1},
	Final:        {sets: +1, legs: +1},
	GrandFinal:   {sets: +1, legs: +1},
}

// EffectiveRules returns the win conditions for a round of the given bracket.
// Resolution order: base.RoundOverrides (by label, then canonical round name),
// then the escalation table, then the base rule unchanged. Rounds that are not
// in the tables are never extrapolated.
func EffectiveRules(bracket models.BracketType, roundLabel string, base models.GameRule) models.RuleSet {
	rules := base.Rules()
	if rs, ok := base.RoundOverrides[roundLabel]; ok {
		return rs
	}
	round, known := NormalizeRound(bracket, roundLabel)
	if known {
		if rs, ok := base.RoundOverrides[string(round)]; ok {
			return rs
		}
	}

	if bracket == models.BracketLoser {
		if !known || round == LoserFinal {
			return rules
		}
		rules.SetsToWin = relax(rules.SetsToWin)
		return rules
	}

	if !known {
		return rules
	}
	adj, ok := winnerEscalation[round]
	if !ok {
		return rules
	}
	rules.SetsToWin = apply(rules.SetsToWin, adj.sets, maxSetsToWin)
	rules.LegsToWin = apply(rules.LegsToWin, adj.legs, maxLegsToWin)
	return rules
}

func apply(value, delta, ceiling int) int {
	switch {
	case delta < 0:
		return relax(value)
	case delta > 0:
		if value >= ceiling {
			return value
		}
		return min(value+delta, ceiling)
	default:
		return value
	}
}

func relax(value int) int {
	if value <= 1 {
		return value
	}
	return value - 1
}

// RuleForMatch picks the rule a match is played under. An explicit round rule
// (composite id or bracket/round scope) is used as is. Otherwise the class
// rule, the tournament default or the built-in default is taken as the base
// and, for knockout matches, escalated through EffectiveRules.
func RuleForMatch(t *models.Tournament, m *models.Match) models.GameRule {
	if m.IsKnockout() {
		if rule, ok := explicitRoundRule(t, *m.Bracket, *m.Round); ok {
			return rule
		}
	}
	base := baseRule(t, m)
	if !m.IsKnockout() {
		return base
	}
	return base.WithRules(EffectiveRules(*m.Bracket, *m.Round, base))
}

func explicitRoundRule(t *models.Tournament, bracket models.BracketType, round string) (models.GameRule, bool) {
	id := models.RoundRuleID(t.ID, bracket, round)
	canonical, known := NormalizeRound(bracket, round)
	for _, r := range t.GameRules {
		if r.ID == id {
			return r.Clone(), true
		}
		if r.Bracket == nil || r.Round == nil || *r.Bracket != bracket {
			continue
		}
		if *r.Round == round {
			return r.Clone(), true
		}
		if known {
			if other, ok := NormalizeRound(bracket, *r.Round); ok && other == canonical {
				return r.Clone(), true
			}
		}
	}
	return models.GameRule{}, false
}

func baseRule(t *models.Tournament, m *models.Match) models.GameRule {
	var fallback *models.GameRule
	for i := range t.GameRules {
		r := &t.GameRules[i]
		if r.Round != nil {
			continue
		}
		if m.ClassID != nil && r.ClassID != nil && *r.ClassID == *m.ClassID {
			if r.MatchType == nil || *r.MatchType == m.MatchType {
				return r.Clone()
			}
		}
		if fallback == nil && r.ClassID == nil && (r.IsDefault || r.ID == models.DefaultGameRuleID) {
			fallback = r
		}
	}
	if fallback != nil {
		return fallback.Clone()
	}
	for i := range t.GameRules {
		if t.GameRules[i].ClassID == nil && t.GameRules[i].Round == nil {
			return t.GameRules[i].Clone()
		}
	}
	return models.DefaultGameRule()
}
