package handlers

import (
	"net/http"

	"github.com/Dosada05/tournament-hub/services"
)

// GetMatchHandler обрабатывает GET /api/tournaments/{tournamentID}/matches/{matchID}.
// matchID может быть как токеном матча, так и его номером.
func (h *TournamentHandler) GetMatchHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := pathParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	matchID, err := pathParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.tournamentService.GetMatch(r.Context(), tournamentID, matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SubmitResultHandler обрабатывает POST /api/tournaments/{tournamentID}/matches/{matchID}/result
func (h *TournamentHandler) SubmitResultHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := pathParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	matchID, err := pathParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.MatchResultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Source == "" {
		input.Source = "http"
	}

	res, err := h.tournamentService.SubmitResult(r.Context(), tournamentID, matchID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	env := jsonResponse{
		"success":      true,
		"tournamentId": res.TournamentID,
		"matchId":      res.MatchID,
		"uniqueId":     res.UniqueID,
		"match":        res.Match,
	}
	if err := writeJSON(w, http.StatusOK, env, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ForwardingStatusHandler обрабатывает GET /api/forwarding?tournamentId=&limit=
func (h *TournamentHandler) ForwardingStatusHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	tournamentID := r.URL.Query().Get("tournamentId")

	status, err := h.tournamentService.Results().ForwardingStatus(r.Context(), tournamentID, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"forwarding": status}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RequeueForwardHandler обрабатывает POST /api/forwarding/{forwardID}/retry
func (h *TournamentHandler) RequeueForwardHandler(w http.ResponseWriter, r *http.Request) {
	forwardID, err := pathParam(r, "forwardID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	item, err := h.tournamentService.Results().RequeueFailed(r.Context(), forwardID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusAccepted, jsonResponse{"forward": item}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
