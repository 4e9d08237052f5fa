package rest

import (
	"net/http"
	"os"

	"compclient/internal/cache"
	"compclient/internal/service"
	"compclient/internal/transport/rest/handler"
	"compclient/internal/transport/rest/middleware"
	"compclient/internal/transport/ws"

	"github.com/gorilla/mux"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService        *service.AuthService
	CompetitionService *service.CompetitionService
	WSHub              *ws.Hub

	// RateLimiter is optional; nil disables rate limiting
	RateLimiter cache.RateLimiter
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService)
	competitionHandler := handler.NewCompetitionHandler(c.CompetitionService)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware)

	api := r.PathPrefix("/api").Subrouter()

	// Public routes
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	api.HandleFunc("/competition/config", competitionHandler.Config).Methods("GET", "OPTIONS")

	// WebSocket route (token in query param)
	api.HandleFunc("/ws/status", wsHandler.StatusWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Participant routes (require auth)
	participant := api.NewRoute().Subrouter()
	participant.Use(authMW.RequireParticipant)
	if c.RateLimiter != nil {
		participant.Use(middleware.RateLimit(c.RateLimiter))
	}

	participant.HandleFunc("/auth/me", authHandler.Me).Methods("GET", "OPTIONS")
	participant.HandleFunc("/auth/logout", authHandler.Logout).Methods("GET", "OPTIONS")
	participant.HandleFunc("/competition/status", competitionHandler.Status).Methods("GET", "OPTIONS")
	participant.HandleFunc("/competition/start", competitionHandler.Start).Methods("POST", "OPTIONS")
	participant.HandleFunc("/competition/submit/{questionId}", competitionHandler.Submit).Methods("POST", "OPTIONS")
	participant.HandleFunc("/competition/progress", competitionHandler.Progress).Methods("GET", "OPTIONS")
	participant.HandleFunc("/competition/questions", competitionHandler.Questions).Methods("GET", "OPTIONS")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
