package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ScalabilityIssues/ticket-service/internal/auth"
	"github.com/ScalabilityIssues/ticket-service/internal/config"
	"github.com/ScalabilityIssues/ticket-service/internal/flightmngr"
	"github.com/ScalabilityIssues/ticket-service/internal/logger"
	"github.com/ScalabilityIssues/ticket-service/internal/monitoring"
	"github.com/ScalabilityIssues/ticket-service/internal/rabbitmq"
	ticket_db "github.com/ScalabilityIssues/ticket-service/internal/tickets/db"
	tickets "github.com/ScalabilityIssues/ticket-service/internal/tickets/service"
	"github.com/ScalabilityIssues/ticket-service/internal/tickets/ticket_api"
	"github.com/ScalabilityIssues/ticket-service/internal/validationsvc"
)

func connectMongo(ctx context.Context, cfg config.MongoConfig, log *logger.Logger) *mongo.Database {
	opts := options.Client().
		ApplyURI(cfg.URL).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to create MongoDB client: %v", err))
	}

	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Pinging MongoDB (attempt %d/%d)", i+1, maxRetries))
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = client.Ping(pingCtx, readpref.Primary())
		cancel()
		if err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("MongoDB ping failed: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to MongoDB after %d attempts: %v", maxRetries, err))
	}

	log.Info("DATABASE", "✅ MongoDB connection successful")
	return client.Database(cfg.Database)
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Ticket Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	ctx := context.Background()
	httpClient := &http.Client{Timeout: 10 * time.Second}

	mongoDB := connectMongo(ctx, cfg.Mongo, log)
	defer func() {
		if err := mongoDB.Client().Disconnect(ctx); err != nil {
			log.Error("DATABASE", fmt.Sprintf("MongoDB disconnect failed: %v", err))
		}
	}()

	var (
		flightTokens     flightmngr.TokenSource
		validationTokens validationsvc.TokenSource
		authMiddleware   func(http.Handler) http.Handler
	)
	if cfg.Auth.Enabled {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
		}
		defer redisClient.Close()
		log.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))

		provider := auth.NewTokenProvider(cfg.Auth, httpClient, redisClient, log)
		flightTokens = provider
		validationTokens = provider

		mw, err := auth.Middleware(ctx, cfg.Auth.OIDCIssuer)
		if err != nil {
			log.Fatal("AUTH", fmt.Sprintf("Failed to set up OIDC middleware: %v", err))
		}
		authMiddleware = mw
		log.Info("AUTH", "JWT middleware configured for API routes")
	} else {
		log.Warn("AUTH", "Authentication disabled, running with open endpoints")
	}

	rabbit, err := rabbitmq.Connect(cfg.Rabbit, log)
	if err != nil {
		log.Fatal("RABBITMQ", fmt.Sprintf("Broker setup failed: %v", err))
	}
	defer rabbit.Close()

	ticketService := tickets.NewTicketService(
		&ticket_db.DB{Mongo: mongoDB},
		flightmngr.NewClient(cfg.Flightmngr.URL, httpClient, flightTokens),
		validationsvc.NewClient(cfg.Validation.URL, httpClient, validationTokens),
		rabbit,
	)

	handler := &ticket_api.Handler{
		TicketService: ticketService,
		Logger:        log,
	}

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(monitoring.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if authMiddleware != nil {
			r.Use(authMiddleware)
		}
		handler.RegisterRoutes(r)
	})
	log.Info("ROUTER", "Ticket routes registered under /api/v1")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Ticket Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Ticket Service shutdown complete")
	}
}
