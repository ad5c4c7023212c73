package handlers

import (
	"net/http"

	"github.com/Dosada05/court-scoring/services"
)

type DashboardHandler struct {
	dashboardService services.DashboardService
	scoringService   services.ScoringService
}

func NewDashboardHandler(dashboardService services.DashboardService, scoringService services.ScoringService) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		scoringService:   scoringService,
	}
}

// LiveHandler — снапшот дашборда директора. Фронтенд опрашивает его
// раз в несколько секунд; websocket-события лишь ускоряют обновление.
func (h *DashboardHandler) LiveHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	dashboard, err := h.dashboardService.Live(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, dashboard, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *DashboardHandler) VerifyMatchHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.scoringService.Verify(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
