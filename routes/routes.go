package routes

import (
	"net/http"
	"time"

	"github.com/Dosada05/tournament-hub/handlers"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
)

const requestTimeout = 30 * time.Second

func SetupRoutes(
	router chi.Router,
	allowedOrigins []string,
	tournamentHandler *handlers.TournamentHandler,
	matchStateHandler *handlers.MatchStateHandler,
	dashboardHandler *handlers.DashboardHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Last-Modified", "X-Match-State-Resumable", "X-Match-State-Age"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/health", dashboardHandler.Health)

	// Websocket-соединения живут дольше любого таймаута запроса
	router.Get("/ws/rooms", webSocketHandler.ServeRooms)
	router.Get("/ws/socket", webSocketHandler.ServeSocket)

	router.Route("/api", func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(requestTimeout))

		r.Route("/tournaments", func(r chi.Router) {
			r.Get("/", tournamentHandler.ListHandler)
			r.Get("/active", tournamentHandler.ListActiveHandler)
			r.Post("/register", tournamentHandler.RegisterHandler)

			r.Route("/{tournamentID}", func(r chi.Router) {
				r.Get("/", tournamentHandler.GetByIDHandler)
				r.Delete("/", tournamentHandler.UnregisterHandler)
				r.Post("/sync", tournamentHandler.SyncHandler)
				r.Post("/heartbeat", tournamentHandler.HeartbeatHandler)

				r.Get("/matches/{matchID}", tournamentHandler.GetMatchHandler)
				r.Post("/matches/{matchID}/result", tournamentHandler.SubmitResultHandler)
			})
		})

		r.Route("/match-state/{tournamentID}/{matchID}", func(r chi.Router) {
			r.Get("/", matchStateHandler.LoadHandler)
			r.Put("/", matchStateHandler.SaveHandler)
			r.Delete("/", matchStateHandler.ClearHandler)
			r.Get("/exists", matchStateHandler.ExistsHandler)
		})

		r.Get("/forwarding", tournamentHandler.ForwardingStatusHandler)
		r.Post("/forwarding/{forwardID}/retry", tournamentHandler.RequeueForwardHandler)
	})
}
