package handlers

import (
	"net/http"

	"github.com/Dosada05/tournament-hub/services"
)

type TournamentHandler struct {
	tournamentService *services.TournamentService
}

func NewTournamentHandler(ts *services.TournamentService) *TournamentHandler {
	return &TournamentHandler{
		tournamentService: ts,
	}
}

// RegisterHandler обрабатывает POST /api/tournaments/register
func (h *TournamentHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var input services.RegisterInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.tournamentService.Register(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	// Повторная регистрация того же турнира не создаёт новый
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	if err := writeJSON(w, status, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByIDHandler обрабатывает GET /api/tournaments/{tournamentID}
func (h *TournamentHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.Get(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListHandler обрабатывает GET /api/tournaments
func (h *TournamentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	tournaments := h.tournamentService.ListAll(r.Context())
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments, "count": len(tournaments)}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListActiveHandler обрабатывает GET /api/tournaments/active
func (h *TournamentHandler) ListActiveHandler(w http.ResponseWriter, r *http.Request) {
	tournaments := h.tournamentService.ListActive(r.Context())
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments, "count": len(tournaments)}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SyncHandler обрабатывает POST /api/tournaments/{tournamentID}/sync
func (h *TournamentHandler) SyncHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.SyncInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	counts, err := h.tournamentService.FullSync(r.Context(), id, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"success": true, "tournamentId": id, "synced": counts}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// HeartbeatHandler обрабатывает POST /api/tournaments/{tournamentID}/heartbeat
func (h *TournamentHandler) HeartbeatHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.tournamentService.Heartbeat(r.Context(), id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"success": true, "tournamentId": id}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UnregisterHandler обрабатывает DELETE /api/tournaments/{tournamentID}
func (h *TournamentHandler) UnregisterHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.tournamentService.Unregister(r.Context(), id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
