package models

import "time"

// Tournament представляет турнир, зарегистрированный в хабе.
type Tournament struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Classes        []Class    `json:"classes"`
	GameRules      []GameRule `json:"gameRules"`
	Matches        []*Match   `json:"matches"`
	TotalPlayers   int        `json:"totalPlayers"`
	ActiveMatches  int        `json:"activeMatches"`
	TotalMatches   int        `json:"totalMatches"`
	CurrentClassID *int       `json:"currentClassId,omitempty"`
	RegisteredAt   time.Time  `json:"registeredAt"`
	LastHeartbeat  time.Time  `json:"lastHeartbeat"`
	LastUpdate     time.Time  `json:"lastUpdate"`
}

// Class is a player class (skill division) of a tournament.
type Class struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	PlayerCount int    `json:"playerCount"`
	GroupCount  int    `json:"groupCount"`
	MatchCount  int    `json:"matchCount"`
}

// DefaultClasses возвращает набор классов, который назначается турниру без собственных классов.
func DefaultClasses() []Class {
	return []Class{
		{ID: 1, Name: "Platin"},
		{ID: 2, Name: "Gold"},
		{ID: 3, Name: "Silber"},
		{ID: 4, Name: "Bronze"},
	}
}

// ClassName returns the name of the class with the given id.
func (t *Tournament) ClassName(id int) (string, bool) {
	for _, c := range t.Classes {
		if c.ID == id {
			return c.Name, true
		}
	}
	return "", false
}

// Clone returns a copy that shares nothing mutable with t.
func (t *Tournament) Clone() *Tournament {
	if t == nil {
		return nil
	}
	c := *t
	c.Classes = append([]Class(nil), t.Classes...)
	c.GameRules = make([]GameRule, len(t.GameRules))
	for i := range t.GameRules {
		c.GameRules[i] = t.GameRules[i].Clone()
	}
	c.Matches = make([]*Match, len(t.Matches))
	for i, m := range t.Matches {
		c.Matches[i] = m.Clone()
	}
	if t.CurrentClassID != nil {
		id := *t.CurrentClassID
		c.CurrentClassID = &id
	}
	return &c
}

// TournamentSummary is the listing view of a tournament without its matches.
type TournamentSummary struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	TotalPlayers  int       `json:"totalPlayers"`
	ActiveMatches int       `json:"activeMatches"`
	TotalMatches  int       `json:"totalMatches"`
	ClassCount    int       `json:"classCount"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
	LastUpdate    time.Time `json:"lastUpdate"`
}

func (t *Tournament) Summary() TournamentSummary {
	return TournamentSummary{
		ID:            t.ID,
		Name:          t.Name,
		TotalPlayers:  t.TotalPlayers,
		ActiveMatches: t.ActiveMatches,
		TotalMatches:  t.TotalMatches,
		ClassCount:    len(t.Classes),
		LastHeartbeat: t.LastHeartbeat,
		LastUpdate:    t.LastUpdate,
	}
}
