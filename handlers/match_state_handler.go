package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/Dosada05/tournament-hub/services"
)

// maxSnapshotBytes ограничивает размер одного снимка состояния матча.
const maxSnapshotBytes = 4 << 20

// MatchStateHandler stores scoring-session snapshots. The body is kept
// byte-for-byte, so GET returns exactly what PUT received. Any alias of a
// registered match (token, legacy id) addresses the same session.
type MatchStateHandler struct {
	tournamentService *services.TournamentService
}

func NewMatchStateHandler(tournamentService *services.TournamentService) *MatchStateHandler {
	return &MatchStateHandler{tournamentService: tournamentService}
}

func matchStateParams(r *http.Request) (string, string, error) {
	tournamentID, err := pathParam(r, "tournamentID")
	if err != nil {
		return "", "", err
	}
	matchID, err := pathParam(r, "matchID")
	if err != nil {
		return "", "", err
	}
	return tournamentID, matchID, nil
}

// SaveHandler обрабатывает PUT /api/match-state/{tournamentID}/{matchID}
func (h *MatchStateHandler) SaveHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, matchID, err := matchStateParams(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxSnapshotBytes)
	snapshot, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			errorResponse(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("snapshot must not be larger than %d bytes", maxBytesError.Limit))
			return
		}
		badRequestResponse(w, r, err)
		return
	}
	if len(snapshot) == 0 {
		badRequestResponse(w, r, errors.New("body must not be empty"))
		return
	}

	state, err := h.tournamentService.SaveMatchState(r.Context(), tournamentID, matchID, snapshot)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	env := jsonResponse{
		"success":      true,
		"tournamentId": tournamentID,
		"matchId":      matchID,
		"lastUpdated":  state.LastUpdated,
		"size":         len(snapshot),
	}
	if err := writeJSON(w, http.StatusOK, env, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// LoadHandler обрабатывает GET /api/match-state/{tournamentID}/{matchID}
func (h *MatchStateHandler) LoadHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, matchID, err := matchStateParams(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	state, status, err := h.tournamentService.LoadMatchState(r.Context(), tournamentID, matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	contentType := "application/octet-stream"
	if json.Valid(state.Snapshot) {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Last-Modified", state.LastUpdated.UTC().Format(http.TimeFormat))
	w.Header().Set("X-Match-State-Resumable", strconv.FormatBool(status.Resumable))
	w.Header().Set("X-Match-State-Age", strconv.FormatInt(status.AgeSeconds, 10))
	w.WriteHeader(http.StatusOK)
	w.Write(state.Snapshot)
}

// ExistsHandler обрабатывает GET /api/match-state/{tournamentID}/{matchID}/exists
func (h *MatchStateHandler) ExistsHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, matchID, err := matchStateParams(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	status, err := h.tournamentService.CheckMatchState(r.Context(), tournamentID, matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, status, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ClearHandler обрабатывает DELETE /api/match-state/{tournamentID}/{matchID}
func (h *MatchStateHandler) ClearHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, matchID, err := matchStateParams(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.tournamentService.ClearMatchState(r.Context(), tournamentID, matchID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
