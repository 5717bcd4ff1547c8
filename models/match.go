package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type MatchStatus string

const (
	MatchStatusNotStarted MatchStatus = "not-started"
	MatchStatusInProgress MatchStatus = "in-progress"
	MatchStatusFinished   MatchStatus = "finished"
	MatchStatusBye        MatchStatus = "bye"
)

// ParseMatchStatus normalizes the status spellings seen in planner exports.
func ParseMatchStatus(s string) (MatchStatus, bool) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "-")) {
	case "not-started", "notstarted", "pending", "scheduled", "":
		return MatchStatusNotStarted, true
	case "in-progress", "inprogress", "active", "running":
		return MatchStatusInProgress, true
	case "finished", "completed", "done":
		return MatchStatusFinished, true
	case "bye", "freilos":
		return MatchStatusBye, true
	default:
		return "", false
	}
}

func (s *MatchStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("match status must be a string: %w", err)
	}
	status, ok := ParseMatchStatus(raw)
	if !ok {
		return fmt.Errorf("unknown match status %q", raw)
	}
	*s = status
	return nil
}

// LegacyID is the numeric match id the planner assigns. It is unique within a
// tournament only, and arrives either as a JSON number or as a string.
type LegacyID string

func (id LegacyID) String() string { return string(id) }

// Int returns the integer value of the id if it has one.
func (id LegacyID) Int() (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(string(id)), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (id LegacyID) MarshalJSON() ([]byte, error) {
	if n, ok := id.Int(); ok && strconv.FormatInt(n, 10) == string(id) {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	return json.Marshal(string(id))
}

func (id *LegacyID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = LegacyID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("match id must be a number or a string: %w", err)
	}
	*id = LegacyID(n.String())
	return nil
}

// Match — матч турнира с двумя схемами идентификаторов.
type Match struct {
	UniqueID      string       `json:"uniqueId,omitempty"`
	ID            LegacyID     `json:"id"`
	Player1       string       `json:"player1"`
	Player2       string       `json:"player2"`
	Player1Sets   int          `json:"player1Sets"`
	Player2Sets   int          `json:"player2Sets"`
	Player1Legs   int          `json:"player1Legs"`
	Player2Legs   int          `json:"player2Legs"`
	Status        MatchStatus  `json:"status"`
	Winner        string       `json:"winner,omitempty"`
	ClassID       *int         `json:"classId,omitempty"`
	ClassName     string       `json:"className,omitempty"`
	MatchType     string       `json:"matchType,omitempty"`
	Bracket       *BracketType `json:"bracket,omitempty"`
	Round         *string      `json:"round,omitempty"`
	Position      *int         `json:"position,omitempty"`
	Notes         string       `json:"notes,omitempty"`
	CreatedAt     *time.Time   `json:"createdAt,omitempty"`
	StartedAt     *time.Time   `json:"startedAt,omitempty"`
	FinishedAt    *time.Time   `json:"finishedAt,omitempty"`
	SyncedAt      *time.Time   `json:"syncedAt,omitempty"`
	GameRulesUsed *GameRule    `json:"gameRulesUsed,omitempty"`
}

// IsKnockout reports whether the match sits in a bracket round.
func (m *Match) IsKnockout() bool {
	return m.Bracket != nil && m.Round != nil && *m.Round != ""
}

// DecideWinner returns the name of the leading player by sets, then legs.
func (m *Match) DecideWinner() string {
	switch {
	case m.Player1Sets != m.Player2Sets:
		if m.Player1Sets > m.Player2Sets {
			return m.Player1
		}
		return m.Player2
	case m.Player1Legs != m.Player2Legs:
		if m.Player1Legs > m.Player2Legs {
			return m.Player1
		}
		return m.Player2
	default:
		return ""
	}
}

func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	c.ClassID = cloneInt(m.ClassID)
	c.Position = cloneInt(m.Position)
	if m.Bracket != nil {
		b := *m.Bracket
		c.Bracket = &b
	}
	if m.Round != nil {
		r := *m.Round
		c.Round = &r
	}
	c.CreatedAt = cloneTime(m.CreatedAt)
	c.StartedAt = cloneTime(m.StartedAt)
	c.FinishedAt = cloneTime(m.FinishedAt)
	c.SyncedAt = cloneTime(m.SyncedAt)
	if m.GameRulesUsed != nil {
		r := m.GameRulesUsed.Clone()
		c.GameRulesUsed = &r
	}
	return &c
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
