package handlers

import (
	"net/http"
	"time"

	"github.com/Dosada05/tournament-hub/services"
)

type DashboardHandler struct {
	tournamentService *services.TournamentService
	startedAt         time.Time
}

func NewDashboardHandler(ts *services.TournamentService) *DashboardHandler {
	return &DashboardHandler{tournamentService: ts, startedAt: time.Now()}
}

// Health обрабатывает GET /health
func (h *DashboardHandler) Health(w http.ResponseWriter, r *http.Request) {
	env := jsonResponse{
		"status":            "ok",
		"uptimeSeconds":     int64(time.Since(h.startedAt) / time.Second),
		"tournaments":       len(h.tournamentService.ListAll(r.Context())),
		"activeTournaments": len(h.tournamentService.ListActive(r.Context())),
		"pendingForwards":   h.tournamentService.Results().Queue().Len(),
		"cachedStates":      h.tournamentService.Cache().Len(),
	}
	if err := writeJSON(w, http.StatusOK, env, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
