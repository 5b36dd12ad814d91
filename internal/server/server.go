package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/campuslink/apiserver/config"
	"github.com/campuslink/apiserver/internal/auth"
	"github.com/campuslink/apiserver/internal/db"
	"github.com/campuslink/apiserver/internal/events"
	"github.com/campuslink/apiserver/internal/handlers"
	"github.com/campuslink/apiserver/internal/mq"
	"github.com/campuslink/apiserver/internal/services"
	"github.com/campuslink/apiserver/internal/storage"
	"github.com/campuslink/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server, router and long-lived clients.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
}

// New constructs a Server with all dependencies wired.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	jwtSecret := strings.TrimSpace(cfg.JWT.Secret)
	if jwtSecret == "" {
		_ = dbConn.Close()
		return nil, errors.New("JWT_SECRET is required")
	}

	accountRepo := store.NewAccountRepository(dbConn)
	tagRepo := store.NewAccountTagRepository(dbConn)
	hasher := auth.NewBcryptHasher()
	tokens := auth.NewJWTProvider(jwtSecret, cfg.JWT.TokenTTL)

	queue, err := openQueue(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	var publisher *events.Publisher
	if queue != nil {
		publisher = events.NewPublisher(queue, cfg.MQ.Channel, logger)
	}

	avatars, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		closeAll(dbConn, queue)
		return nil, err
	}

	accountService := services.NewAccountService(accountRepo, tagRepo, hasher, tokens, publisher, avatars, logger)
	validator := services.NewSignUpValidator(accountRepo)
	accountHandler := handlers.NewAccountHandler(accountService, validator, tokens, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", accountHandler.AuthRouter)
	router.Route("/profile", accountHandler.ProfileRouter)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}
	return s.httpServer.Close()
}

func openQueue(ctx context.Context, cfg config.MQConfig) (*mq.MQ, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "rabbitmq":
		backend, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return mq.New(backend), nil
	case "pubsub":
		backend, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return mq.New(backend), nil
	}
	return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
}

func openStorage(ctx context.Context, cfg config.StorageConfig) (*storage.Storage, error) {
	var backend storage.ObjectStorage
	switch cfg.Backend {
	case "":
		return nil, nil
	case "minio":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		backend = client
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	wrapped := storage.NewStorage(backend)
	if err := wrapped.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return wrapped, nil
}

func closeAll(dbConn *sql.DB, queue *mq.MQ) {
	if dbConn != nil {
		_ = dbConn.Close()
	}
	if queue != nil {
		_ = queue.Close()
	}
}
