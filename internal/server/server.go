// Package server wires stores, services, handlers and routes together and
// runs the HTTP server.
//
// This is the composition root: every dependency is built in New and handed
// down explicitly.
//
//	config → sqlite.DB ─┬─ AccountStore ── AccountService, SyncService
//	                    └─ MessageStore ─┐
//	         redis ──────── MessageStore ┴─ MessageService, expiry.Sweeper
//
// Handlers only ever see services; services only ever see repository
// interfaces.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/sakif/candle-clicker/internal/auth"
	"github.com/sakif/candle-clicker/internal/config"
	"github.com/sakif/candle-clicker/internal/expiry"
	"github.com/sakif/candle-clicker/internal/handler"
	"github.com/sakif/candle-clicker/internal/metrics"
	"github.com/sakif/candle-clicker/internal/middleware"
	"github.com/sakif/candle-clicker/internal/repository"
	redisRepo "github.com/sakif/candle-clicker/internal/repository/redis"
	sqliteRepo "github.com/sakif/candle-clicker/internal/repository/sqlite"
	"github.com/sakif/candle-clicker/internal/service"
)

// shutdownTimeout is how long in-flight requests and a running sweep get to
// finish after SIGINT/SIGTERM.
const shutdownTimeout = 30 * time.Second

// Server owns the router and every long-lived resource: the database, the
// optional Redis client and the expiry sweeper. Start closes them all on the
// way out.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	db      *sqliteRepo.DB
	redis   *goredis.Client // nil unless MESSAGE_STORE=redis
	sweeper *expiry.Sweeper
}

// New opens the stores and builds the full handler tree.
//
// IMPORT ALIASES:
// repository/sqlite and repository/redis are imported as sqliteRepo and
// redisRepo so they don't shadow the driver packages they wrap.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath, sqliteRepo.WithPublicationRetention(cfg.PublicationRetention))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		metrics: metrics.New(),
		db:      db,
	}

	messages, err := s.messageStore()
	if err != nil {
		s.closeStores()
		return nil, err
	}

	s.sweeper, err = expiry.New(messages, cfg.MessageSweepSchedule, logger, expiry.WithMetrics(s.metrics))
	if err != nil {
		s.closeStores()
		return nil, fmt.Errorf("creating message sweeper: %w", err)
	}

	s.setupRoutes(messages)
	return s, nil
}

// messageStore picks the direct message backend from config.
func (s *Server) messageStore() (repository.MessageRepository, error) {
	if s.config.MessageStore != config.StoreRedis {
		return s.db.Messages(), nil
	}

	s.redis = redisRepo.NewClient(s.config.RedisAddr, s.config.RedisPassword, s.config.RedisDB)
	store := redisRepo.NewMessageStore(s.redis)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", s.config.RedisAddr, err)
	}

	return store, nil
}

// setupRoutes configures middleware and routes.
//
// ROUTES:
// GET  /                                 liveness text
// GET  /register?username&password       create account
// GET  /login?username&password          check credentials
// GET  /progress/{userId}                pull live progress
// POST /progress/{userId}                push live progress
// POST /publish/{userId}                 append to the public feed
// GET  /users/search?username=           prefix search
// GET  /profile/{userId}                 public profile with feed
// POST /profile/picture/{userId}         set profile picture
// POST /messages/send                    send a direct message
// GET  /messages/conversation?user1Id&user2Id
// GET  /metrics                          Prometheus exposition
//
// MIDDLEWARE ORDER:
// RequestID and RealIP first so the logger sees them, Recoverer inside the
// logger so a panic is still logged as a 500, CORS before any route so
// preflight requests are answered, metrics last so it sees the matched route.
func (s *Server) setupRoutes(messages repository.MessageRepository) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	s.router.Use(s.metrics.InstrumentHandler)

	passwords := auth.NewPasswordService(s.config.BcryptCost)
	accountService := service.NewAccountService(s.db.Accounts(), passwords, s.metrics, s.logger)
	syncService := service.NewSyncService(s.db.Accounts(), s.metrics, s.logger)
	messageService := service.NewMessageService(messages, s.metrics, s.logger)

	accountHandler := handler.NewAccountHandler(accountService, s.logger)
	progressHandler := handler.NewProgressHandler(syncService, s.logger)
	messageHandler := handler.NewMessageHandler(messageService, s.logger)

	s.router.Get("/", handler.HandleRoot)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router.Get("/register", accountHandler.HandleRegister)
	s.router.Get("/login", accountHandler.HandleLogin)

	s.router.Get("/progress/{userId}", progressHandler.HandlePull)
	s.router.Post("/progress/{userId}", progressHandler.HandlePush)
	s.router.Post("/publish/{userId}", progressHandler.HandlePublish)

	s.router.Get("/users/search", accountHandler.HandleSearch)
	s.router.Get("/profile/{userId}", accountHandler.HandleProfile)
	s.router.Post("/profile/picture/{userId}", accountHandler.HandleSetPicture)

	s.router.Route("/messages", func(r chi.Router) {
		r.Post("/send", messageHandler.HandleSend)
		r.Get("/conversation", messageHandler.HandleConversation)
	})
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the sweeper and the HTTP server until SIGINT/SIGTERM, then
// shuts down in order: HTTP, sweeper, Redis, database.
func (s *Server) Start() error {
	defer s.closeStores()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	s.sweeper.Start()

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.String("messageStore", s.config.MessageStore),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			s.stopSweeper()
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		if err := s.sweeper.Stop(ctx); err != nil {
			s.logger.Warn("sweeper did not stop in time", slog.String("error", err.Error()))
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

func (s *Server) stopSweeper() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = s.sweeper.Stop(ctx)
}

// closeStores releases Redis (if used) and the database.
func (s *Server) closeStores() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("closing redis", slog.String("error", err.Error()))
		}
	}
	if err := s.db.Close(); err != nil {
		s.logger.Warn("closing database", slog.String("error", err.Error()))
	}
}
