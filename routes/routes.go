package routes

import (
	"net/http"

	"github.com/Dosada05/court-scoring/handlers"
	appMiddleware "github.com/Dosada05/court-scoring/middleware"
	"github.com/Dosada05/court-scoring/services"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes собирает всю HTTP-поверхность: административный setup,
// интерфейс судьи по токену, дашборд директора и websocket.
func SetupRoutes(
	router *chi.Mux,
	courtService services.CourtService,
	setupHandler *handlers.SetupHandler,
	courtHandler *handlers.CourtHandler,
	dashboardHandler *handlers.DashboardHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Администратор турнира: корты и расписание.
	router.Route("/api/setup", func(r chi.Router) {
		r.Route("/tournaments/{tournamentID}", func(r chi.Router) {
			r.Post("/courts", setupHandler.CreateCourtsHandler)
			r.Get("/courts", setupHandler.ListCourtsHandler)
			r.Post("/matches/import", setupHandler.ImportScheduleHandler)
			r.Post("/matches", setupHandler.CreateMatchHandler)
			r.Get("/matches", setupHandler.ListMatchesHandler)
		})
		r.Route("/matches/{matchID}", func(r chi.Router) {
			r.Get("/", setupHandler.GetMatchHandler)
			r.Patch("/", setupHandler.UpdateMatchHandler)
			r.Delete("/", setupHandler.DeleteMatchHandler)
			r.Post("/assign-court", setupHandler.AssignCourtHandler)
		})
	})

	// Судья корта: доступ только по токену из ссылки.
	router.Route("/court/{token}", func(r chi.Router) {
		r.Use(appMiddleware.CourtToken(courtService))

		r.Get("/", courtHandler.BoardHandler)
		r.Route("/matches/{matchID}", func(r chi.Router) {
			r.Post("/start", courtHandler.StartMatchHandler)
			r.Post("/score", courtHandler.SubmitScoreHandler)
			r.Post("/claim", courtHandler.ClaimMatchHandler)
			r.Post("/scoresheet", courtHandler.UploadScoresheetHandler)
		})
	})

	// Директор турнира.
	router.Get("/api/live/{tournamentID}", dashboardHandler.LiveHandler)
	router.Post("/api/matches/{matchID}/verify", dashboardHandler.VerifyMatchHandler)

	router.Get("/ws/live/{tournamentID}", webSocketHandler.ServeWs)
}
