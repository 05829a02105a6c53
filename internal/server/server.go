// Package server is the composition root: it opens the configured store,
// wires repositories → services → handlers, and owns the HTTP lifecycle.
//
// DEPENDENCY FLOW:
//
//	config.Config → store.Store (sqlite | mongodb)
//	             → document.UserRepo / document.PlaylistRepo
//	             → service.SocialService / service.AuthService
//	             → handler.UserHandler / PlaylistHandler / SessionHandler
//
// Every layer receives only the interface it needs, so tests can swap any
// of them out.
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

	"github.com/sakif/putmeon/internal/auth"
	"github.com/sakif/putmeon/internal/config"
	"github.com/sakif/putmeon/internal/handler"
	"github.com/sakif/putmeon/internal/middleware"
	"github.com/sakif/putmeon/internal/repository/document"
	"github.com/sakif/putmeon/internal/service"
	"github.com/sakif/putmeon/internal/store"
	"github.com/sakif/putmeon/internal/store/mongodb"
	"github.com/sakif/putmeon/internal/store/sqlite"
)

// Server holds the router and the store it must close on shutdown.
type Server struct {
	router    *chi.Mux
	config    config.Config
	logger    *slog.Logger
	store     store.Store
	passwords *auth.PasswordService
}

// Option customises a Server before its routes are built.
type Option func(*Server)

// WithPasswordService replaces the production bcrypt cost, mainly so tests
// can hash at bcrypt.MinCost.
func WithPasswordService(ps *auth.PasswordService) Option {
	return func(s *Server) { s.passwords = ps }
}

// New opens the store named by cfg and builds the router on top of it.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	s, err := NewWithStore(ctx, cfg, st, logger, opts...)
	if err != nil {
		st.Close(context.WithoutCancel(ctx))
		return nil, err
	}
	return s, nil
}

// NewWithStore builds a Server over an already-open store. The Server
// takes ownership of st.
func NewWithStore(ctx context.Context, cfg config.Config, st store.Store, logger *slog.Logger, opts ...Option) (*Server, error) {
	if err := document.EnsureCollections(ctx, st); err != nil {
		return nil, fmt.Errorf("ensuring collections: %w", err)
	}

	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		store:     st,
		passwords: auth.NewPasswordService(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverMongo:
		st, err := mongodb.New(ctx, cfg.Store.MongoURI, cfg.Store.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("connecting to mongodb: %w", err)
		}
		return st, nil
	case config.DriverSQLite:
		st, err := sqlite.New(cfg.Store.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes registers middleware and routes.
//
// ROUTES:
//
//	GET  /hello, GET /endpoints          public
//	GET  /api/users..., /api/playlists... public reads
//	POST /api/users, POST /api/sessions   public (register, login)
//	everything else under /api            session required
//
// Middleware order: RequestID first so the logger can read it, Recoverer
// inside the logger so panics are logged as 500s.
func (s *Server) setupRoutes() error {
	users := document.NewUserRepo(s.store, s.logger)
	playlists := document.NewPlaylistRepo(s.store, s.logger)

	tokens, err := auth.NewSessionTokens(s.config.Auth.SessionSecret, s.config.Auth.SessionTTL)
	if err != nil {
		return err
	}
	authService := service.NewAuthService(users, s.passwords, tokens, s.logger)
	socialService := service.NewSocialService(users, playlists, s.logger)

	userHandler := handler.NewUserHandler(socialService, authService, s.logger)
	playlistHandler := handler.NewPlaylistHandler(socialService, s.logger)
	sessionHandler := handler.NewSessionHandler(authService, s.logger)

	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/hello", handler.HandleHello)
	r.Get("/endpoints", handler.HandleEndpoints(r, s.logger))

	r.Route("/api", func(r chi.Router) {
		// Public.
		r.Get("/users", userHandler.HandleList)
		r.Post("/users", userHandler.HandleRegister)
		r.Get("/users/{username}", userHandler.HandleGet)
		r.Post("/sessions", sessionHandler.HandleLogin)
		r.Get("/playlists", playlistHandler.HandleList)
		r.Get("/playlists/{name}", playlistHandler.HandleGet)

		// Session required.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSession(authService))

			r.Delete("/sessions", sessionHandler.HandleLogout)

			r.Delete("/users/{username}", userHandler.HandleDelete)
			r.Post("/users/{username}/requests/{other}", userHandler.HandleRequestFriend())
			r.Delete("/users/{username}/requests/outgoing/{other}", userHandler.HandleWithdrawRequest())
			r.Delete("/users/{username}/requests/incoming/{other}", userHandler.HandleDeclineRequest())
			r.Post("/users/{username}/friends/{other}", userHandler.HandleBefriend())
			r.Delete("/users/{username}/friends/{other}", userHandler.HandleUnfriend())
			r.Post("/users/{username}/likes/{other}", userHandler.HandleLike())
			r.Delete("/users/{username}/likes/{other}", userHandler.HandleUnlike())
			r.Post("/users/{username}/playlists", userHandler.HandleCreatePlaylist)

			r.Post("/playlists", playlistHandler.HandleCreate)
			r.Delete("/playlists/{name}", playlistHandler.HandleDelete)
			r.Post("/playlists/{name}/songs/{song}", playlistHandler.HandleAddSong)
			r.Delete("/playlists/{name}/songs/{song}", playlistHandler.HandleRemoveSong)
		})

		if s.config.TestMode {
			s.logger.Warn("test mode: POST /api/admin/purge is enabled")
			r.Post("/admin/purge", handler.HandlePurge(socialService, s.logger))
		}
	})

	return nil
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for
// up to 30s and closes the store.
func (s *Server) Start() error {
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.store.Close(ctx); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("store", s.config.Store.Driver),
			slog.String("database", s.config.Store.Database),
			slog.Bool("test_mode", s.config.TestMode),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
