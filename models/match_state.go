package models

import "time"

// CachedMatchState is a scoring session checkpoint kept so a client can resume
// after a reconnect. Snapshot is opaque to the hub and stored byte for byte.
type CachedMatchState struct {
	TournamentID string    `json:"tournamentId"`
	MatchID      string    `json:"matchId"`
	Snapshot     []byte    `json:"snapshot"`
	LastUpdated  time.Time `json:"lastUpdated"`
	SavedToDisk  time.Time `json:"savedToDisk,omitempty"`
}

// MatchStateKey addresses one cached scoring session.
type MatchStateKey struct {
	TournamentID string
	MatchID      string
}

func (k MatchStateKey) String() string {
	return k.TournamentID + "_" + k.MatchID
}

func (s *CachedMatchState) Key() MatchStateKey {
	return MatchStateKey{TournamentID: s.TournamentID, MatchID: s.MatchID}
}

func (s *CachedMatchState) Clone() *CachedMatchState {
	if s == nil {
		return nil
	}
	c := *s
	c.Snapshot = append([]byte(nil), s.Snapshot...)
	return &c
}

// PendingForward is an accepted result waiting to reach the system of record.
type PendingForward struct {
	ID           string    `json:"id"`
	TournamentID string    `json:"tournamentId"`
	MatchID      string    `json:"matchId"`
	UniqueID     string    `json:"uniqueId,omitempty"`
	Payload      *Match    `json:"payload"`
	Attempts     int       `json:"attempts"`
	MaxAttempts  int       `json:"maxAttempts"`
	LastError    string    `json:"lastError,omitempty"`
	EnqueuedAt   time.Time `json:"enqueuedAt"`
	FailedAt     time.Time `json:"failedAt,omitempty"`
}
