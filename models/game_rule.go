package models

import "strings"

// BracketType identifies the elimination structure a knockout match belongs to.
type BracketType string

const (
	BracketWinner BracketType = "winner"
	BracketLoser  BracketType = "loser"
)

// ParseBracketType accepts the spellings used by planner exports ("Winner", "LB", ...).
func ParseBracketType(s string) (BracketType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "winner", "winners", "wb", "main":
		return BracketWinner, true
	case "loser", "losers", "lb", "consolation":
		return BracketLoser, true
	default:
		return "", false
	}
}

// RuleSet is the triple of win conditions that decides a match.
type RuleSet struct {
	SetsToWin  int `json:"setsToWin"`
	LegsToWin  int `json:"legsToWin"`
	LegsPerSet int `json:"legsPerSet"`
}

// GameRule описывает правила игры для класса, типа матча или раунда.
type GameRule struct {
	ID             string             `json:"id"`
	Name           string             `json:"name,omitempty"`
	ClassID        *int               `json:"classId,omitempty"`
	MatchType      *string            `json:"matchType,omitempty"`
	Bracket        *BracketType       `json:"bracket,omitempty"`
	Round          *string            `json:"round,omitempty"`
	GameMode       string             `json:"gameMode,omitempty"`
	SetsToWin      int                `json:"setsToWin"`
	LegsToWin      int                `json:"legsToWin"`
	LegsPerSet     int                `json:"legsPerSet"`
	DoubleOut      bool               `json:"doubleOut"`
	IsDefault      bool               `json:"isDefault,omitempty"`
	RoundOverrides map[string]RuleSet `json:"roundOverrides,omitempty"`
}

// DefaultGameRuleID is the id of the rule assigned to tournaments registered without rules.
const DefaultGameRuleID = "default"

// DefaultGameRule returns 501 double out, first to three sets of first to three legs.
func DefaultGameRule() GameRule {
	return GameRule{
		ID:         DefaultGameRuleID,
		Name:       "501 Double Out",
		GameMode:   "501",
		SetsToWin:  3,
		LegsToWin:  3,
		LegsPerSet: 5,
		DoubleOut:  true,
		IsDefault:  true,
	}
}

// Rules returns the win conditions of the rule.
func (r GameRule) Rules() RuleSet {
	return RuleSet{SetsToWin: r.SetsToWin, LegsToWin: r.LegsToWin, LegsPerSet: r.LegsPerSet}
}

// WithRules returns a copy of r carrying the given win conditions.
func (r GameRule) WithRules(rs RuleSet) GameRule {
	c := r.Clone()
	c.SetsToWin = rs.SetsToWin
	c.LegsToWin = rs.LegsToWin
	c.LegsPerSet = rs.LegsPerSet
	return c
}

// Clone deep-copies the pointer and map fields.
func (r GameRule) Clone() GameRule {
	c := r
	if r.ClassID != nil {
		v := *r.ClassID
		c.ClassID = &v
	}
	if r.MatchType != nil {
		v := *r.MatchType
		c.MatchType = &v
	}
	if r.Bracket != nil {
		v := *r.Bracket
		c.Bracket = &v
	}
	if r.Round != nil {
		v := *r.Round
		c.Round = &v
	}
	if r.RoundOverrides != nil {
		c.RoundOverrides = make(map[string]RuleSet, len(r.RoundOverrides))
		for k, v := range r.RoundOverrides {
			c.RoundOverrides[k] = v
		}
	}
	return c
}

// RoundRuleID builds the composite id under which planners store per-round rules.
func RoundRuleID(tournamentID string, bracket BracketType, round string) string {
	return tournamentID + "_" + string(bracket) + "_" + round
}
