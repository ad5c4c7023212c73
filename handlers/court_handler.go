package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/court-scoring/middleware"
	"github.com/Dosada05/court-scoring/services"
)

// CourtHandler обслуживает интерфейс судьи корта. Корт уже лежит в
// контексте — его кладёт middleware.CourtToken по токену из URL.
type CourtHandler struct {
	courtService   services.CourtService
	scoringService services.ScoringService
}

func NewCourtHandler(courtService services.CourtService, scoringService services.ScoringService) *CourtHandler {
	return &CourtHandler{
		courtService:   courtService,
		scoringService: scoringService,
	}
}

func (h *CourtHandler) BoardHandler(w http.ResponseWriter, r *http.Request) {
	court, err := middleware.CourtFromContext(r.Context())
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	board, err := h.courtService.Board(r.Context(), court)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, board, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CourtHandler) StartMatchHandler(w http.ResponseWriter, r *http.Request) {
	court, err := middleware.CourtFromContext(r.Context())
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.scoringService.Start(r.Context(), court, matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type submitScoreInput struct {
	ScoreTeam1 *int    `json:"score_team1"`
	ScoreTeam2 *int    `json:"score_team2"`
	Notes      *string `json:"notes"`
}

func (h *CourtHandler) SubmitScoreHandler(w http.ResponseWriter, r *http.Request) {
	court, err := middleware.CourtFromContext(r.Context())
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input submitScoreInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	// Счёт либо по обеим командам, либо никакого: половинчатый счёт не
	// принимаем даже на время.
	if input.ScoreTeam1 == nil || input.ScoreTeam2 == nil {
		mapServiceErrorToHTTP(w, r, services.ErrScoreInvalid)
		return
	}

	match, err := h.scoringService.SubmitScore(r.Context(), court, matchID, *input.ScoreTeam1, *input.ScoreTeam2, input.Notes)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CourtHandler) ClaimMatchHandler(w http.ResponseWriter, r *http.Request) {
	court, err := middleware.CourtFromContext(r.Context())
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.scoringService.Claim(r.Context(), court, matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CourtHandler) UploadScoresheetHandler(w http.ResponseWriter, r *http.Request) {
	court, err := middleware.CourtFromContext(r.Context())
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		badRequestResponse(w, r, errors.New("content type required"))
		return
	}

	match, err := h.scoringService.AttachScoresheet(r.Context(), court, matchID, contentType, file)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
