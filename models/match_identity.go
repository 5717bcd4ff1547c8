package models

import (
	"strconv"
	"strings"
)

// MatchIndex resolves a requested match identifier to a position in a
// tournament's match list. Resolution order is fixed:
//
//  1. exact match on the unique token,
//  2. numeric match on the legacy id (only if the request parses as an integer),
//  3. string equality on the legacy id.
//
// When two matches share a key the first one in list order wins, so equal
// inputs always resolve to the same record.
type MatchIndex struct {
	byToken  map[string]int
	byNumber map[int64]int
	byLegacy map[string]int
}

// NewMatchIndex builds the side index for matches. Nil entries are skipped.
func NewMatchIndex(matches []*Match) *MatchIndex {
	ix := &MatchIndex{
		byToken:  make(map[string]int, len(matches)),
		byNumber: make(map[int64]int, len(matches)),
		byLegacy: make(map[string]int, len(matches)),
	}
	for i, m := range matches {
		if m == nil {
			continue
		}
		if m.UniqueID != "" {
			if _, dup := ix.byToken[m.UniqueID]; !dup {
				ix.byToken[m.UniqueID] = i
			}
		}
		legacy := string(m.ID)
		if legacy == "" {
			continue
		}
		if n, ok := m.ID.Int(); ok {
			if _, dup := ix.byNumber[n]; !dup {
				ix.byNumber[n] = i
			}
		}
		if _, dup := ix.byLegacy[legacy]; !dup {
			ix.byLegacy[legacy] = i
		}
	}
	return ix
}

// Resolve returns the position of the match addressed by id.
func (ix *MatchIndex) Resolve(id string) (int, bool) {
	if ix == nil || id == "" {
		return 0, false
	}
	if i, ok := ix.byToken[id]; ok {
		return i, true
	}
	if n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64); err == nil {
		if i, ok := ix.byNumber[n]; ok {
			return i, true
		}
	}
	if i, ok := ix.byLegacy[id]; ok {
		return i, true
	}
	return 0, false
}

// ResolveMatch looks a match up without a prebuilt index.
func ResolveMatch(matches []*Match, id string) (*Match, int, bool) {
	i, ok := NewMatchIndex(matches).Resolve(id)
	if !ok {
		return nil, 0, false
	}
	return matches[i], i, true
}
