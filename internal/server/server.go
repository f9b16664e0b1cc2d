// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer — it connects handlers, middleware, and routes.
// It decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes (public, any user, admin only)
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go creates:
//
//	config.Config + *slog.Logger → server.New
//
// server.New creates:
//
//	sqlstore.DB (sqlite or postgres)
//	  → AuthService / UserService / TodoService
//	  → AuthHandler / UserHandler / TodoHandler
//	books.Store → BooksHandler
//
// This is the "composition root" pattern — all dependencies are wired
// in one place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/todo-service/internal/auth"
	"github.com/sakif/todo-service/internal/books"
	"github.com/sakif/todo-service/internal/config"
	"github.com/sakif/todo-service/internal/handler"
	"github.com/sakif/todo-service/internal/middleware"
	"github.com/sakif/todo-service/internal/model"
	"github.com/sakif/todo-service/internal/repository/postgres"
	"github.com/sakif/todo-service/internal/repository/sqlite"
	"github.com/sakif/todo-service/internal/repository/sqlstore"
	"github.com/sakif/todo-service/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection pool. Start closes it on the
// way out; tests that never call Start call Close.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	db       *sqlstore.DB
	tokens   *auth.TokenService
	registry *prometheus.Registry
}

// New opens the configured database and wires every layer on top of it.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	// === CREATE DATABASE ===
	db, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		tokens:   tokens,
		registry: prometheus.NewRegistry(),
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func openStore(cfg *config.Config) (*sqlstore.DB, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		return postgres.New(cfg.DatabaseURL)
	case config.DriverSQLite, "":
		return sqlite.New(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                    → liveness + database ping
//	GET    /metrics                    → Prometheus metrics
//
//	POST   /auth/                      → register
//	POST   /auth/token                 → login (OAuth2 password form)
//
//	GET    /todo/                      → list own todos          [user]
//	GET    /todo/{id}                  → get own todo            [user]
//	POST   /todo                       → create todo             [user]
//	PUT    /todo/{id}                  → replace own todo        [user]
//	DELETE /todo/{id}                  → delete own todo         [user]
//	GET    /user/                      → own profile             [user]
//	PUT    /user/password              → change password         [user]
//	PUT    /user/phonenumber/{phone}   → change phone number     [user]
//
//	GET    /admin/todo                 → every todo              [admin]
//	DELETE /admin/todo/{id}            → delete any todo         [admin]
//
//	GET    /books, /books/{id}, /books/?book_rating=, /books/publish/?publish_date=
//	POST   /create_book
//	PUT    /books/update_book
//	DELETE /books/{id}
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID — assigns unique ID to each request (for tracing)
// 2. RealIP — extracts real client IP from proxy headers
// 3. Logger — logs each request with timing info and the request ID
// 4. Metrics — counts requests per route pattern
// 5. Recoverer — catches panics and returns 500 instead of crashing
func (s *Server) setupRoutes() error {
	// === Global Middleware ===
	metrics := middleware.NewMetrics(s.registry)
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(s.db.Pool(), s.db.Dialect()),
	)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(chimiddleware.Recoverer)

	// === Dependency chain ===
	// The handler never touches the database directly.
	// The service never touches HTTP.
	passwords := auth.NewPasswordService(s.config.BcryptCost)

	authService := service.NewAuthService(s.db, s.tokens, passwords, s.logger)
	userService := service.NewUserService(s.db, passwords, s.logger)
	todoService := service.NewTodoService(s.db, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	userHandler := handler.NewUserHandler(userService, s.logger)
	todoHandler := handler.NewTodoHandler(todoService, s.logger)
	booksHandler := handler.NewBooksHandler(books.NewSeededStore(), s.logger)

	// === Operational ===
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))

	// === Public auth routes ===
	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/", authHandler.HandleRegister)
		r.Post("/token", authHandler.HandleToken)
	})

	// === Authenticated routes ===
	// RequireAuth rejects the request with 401 before any handler runs if the
	// bearer token is missing, forged, or expired.
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(s.tokens, s.logger))

		r.Get("/todo", todoHandler.HandleList)
		r.Get("/todo/", todoHandler.HandleList)
		r.Get("/todo/{id}", todoHandler.HandleGet)
		r.Post("/todo", todoHandler.HandleCreate)
		r.Put("/todo/{id}", todoHandler.HandleUpdate)
		r.Delete("/todo/{id}", todoHandler.HandleDelete)

		r.Get("/user", userHandler.HandleMe)
		r.Get("/user/", userHandler.HandleMe)
		r.Put("/user/password", userHandler.HandleChangePassword)
		r.Put("/user/phonenumber/{phone}", userHandler.HandleChangePhoneNumber)

		// === Admin routes ===
		// 403 for a valid non-admin token.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(model.RoleAdmin))

			r.Get("/admin/todo", todoHandler.HandleAdminList)
			r.Get("/admin/todo/", todoHandler.HandleAdminList)
			r.Delete("/admin/todo/{id}", todoHandler.HandleAdminDelete)
		})
	})

	// === Books demo (no auth) ===
	s.router.Get("/books", booksHandler.HandleList)
	s.router.Get("/books/", booksHandler.HandleByRating)
	s.router.Get("/books/publish/", booksHandler.HandleByPublishedDate)
	s.router.Get("/books/{id}", booksHandler.HandleGet)
	s.router.Post("/create_book", booksHandler.HandleCreate)
	s.router.Put("/books/update_book", booksHandler.HandleUpdate)
	s.router.Delete("/books/{id}", booksHandler.HandleDelete)

	return nil
}

// Handler returns the fully wired router. Tests serve it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database connection pool.
func (s *Server) Close() error {
	return s.db.Close()
}

// handleHealth reports whether the database answers a ping.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable"}` + "\n"))
		return
	}
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (SHUTDOWN_TIMEOUT_SEC)
// 3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.db.Dialect()),
			slog.Duration("tokenTTL", s.tokens.TTL()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
