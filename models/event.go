package models

import "time"

// Имена событий, которые хаб рассылает подписчикам.
const (
	EventMatchUpdated      = "match-updated"
	EventMatchResult       = "match-result"
	EventTournamentSynced  = "tournament-synced"
	EventTournamentRemoved = "tournament-removed"
	EventForwardResult     = "forward-result"
	EventConnected         = "connected"
	EventAck               = "ack"
	EventError             = "error"
	EventPong              = "pong"
)

// Outbound is a message the router hands to a peer. Each transport decides
// how it is framed on the wire.
type Outbound struct {
	Event     string `json:"event"`
	Channel   string `json:"channel,omitempty"`
	Payload   any    `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

// MatchUpdate is the payload of a match-updated broadcast.
type MatchUpdate struct {
	TournamentID string    `json:"tournamentId"`
	MatchID      string    `json:"matchId"`
	UniqueID     string    `json:"uniqueId,omitempty"`
	Match        *Match    `json:"match"`
	Source       string    `json:"source,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// AuthoringMatchUpdate is the enriched payload delivered to the authoring client.
type AuthoringMatchUpdate struct {
	MatchUpdate
	ActiveMatches int      `json:"activeMatches"`
	TotalMatches  int      `json:"totalMatches"`
	RuleApplied   *RuleSet `json:"ruleApplied,omitempty"`
	ForwardID     string   `json:"forwardId,omitempty"`
}
