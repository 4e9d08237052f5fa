package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"compclient/internal/cache"
	"compclient/internal/config"
	"compclient/internal/repository"
	"compclient/internal/service"
	"compclient/internal/transport/rest"
	"compclient/internal/transport/ws"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	log.Println("started")
	ctx := context.Background()

	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	var (
		participations repository.ParticipationRepo
		questions      repository.QuestionRepo
	)

	if cfg.MongoURI != "" {
		mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatal("Failed to connect to MongoDB:", err)
		}
		defer mongoClient.Disconnect(ctx)

		// Ping MongoDB
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := mongoClient.Ping(pingCtx, nil); err != nil {
			log.Fatal("Failed to ping MongoDB:", err)
		}
		log.Println("Connected to MongoDB")

		db := mongoClient.Database(cfg.Database)
		if err := repository.EnsureIndexes(ctx, db); err != nil {
			log.Fatal("Failed to create indexes:", err)
		}
		participations = repository.NewParticipationRepo(db)
		questions = repository.NewQuestionRepo(db)
	} else {
		log.Println("Warning: MONGO_URI not set, using in-memory storage with sample questions")
		participations = repository.NewMemoryParticipationRepo()
		questions = repository.NewMemoryQuestionRepo(repository.SampleQuestions()...)
	}

	var limiter cache.RateLimiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		defer rdb.Close()

		// Ping Redis
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			log.Fatal("Failed to ping Redis:", err)
		}
		log.Println("Connected to Redis")
		limiter = cache.NewRateLimiter(rdb, cfg.RateLimit, cfg.RateLimitWindow)
	} else {
		log.Println("Warning: REDIS_URI not set, rate limiting disabled")
	}

	// Initialize WebSocket hub
	wsHub := ws.NewHub()
	log.Println("WebSocket hub started")

	// Initialize services
	authSvc, err := service.NewAuthService(cfg.Username, cfg.Password, cfg.JWTSecret)
	if err != nil {
		log.Fatal("Failed to initialize auth:", err)
	}
	competitionSvc := service.NewCompetitionService(service.Window{
		Start:       cfg.CompetitionStart,
		EntryWindow: cfg.EntryWindow,
		Length:      cfg.CompetitionLength,
	}, participations, questions)

	// Inject broadcaster (wsHub implements service.Broadcaster)
	competitionSvc.SetBroadcaster(wsHub)

	router := rest.NewRouter(&rest.Container{
		AuthService:        authSvc,
		CompetitionService: competitionSvc,
		WSHub:              wsHub,
		RateLimiter:        limiter,
	})

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		log.Printf("Participant: username=%s", cfg.Username)
		log.Printf("Competition: start=%s entry=%s length=%s",
			cfg.CompetitionStart.Format(time.RFC3339), cfg.EntryWindow, cfg.CompetitionLength)
		log.Println("Endpoints:")
		log.Println("  POST /api/auth/login")
		log.Println("  GET  /api/auth/me, /api/auth/logout")
		log.Println("  GET  /api/competition/config, /status, /progress, /questions")
		log.Println("  POST /api/competition/start, /submit/{questionId}")
		log.Println("  WS   /api/ws/status")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe:", err)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
