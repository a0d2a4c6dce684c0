// Пакет server — HTTP-сервер zimbra-sync с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на ingress.
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

	"github.com/bigkaa/zimbra-sync/internal/api/handlers"
	"github.com/bigkaa/zimbra-sync/internal/api/middleware"
	"github.com/bigkaa/zimbra-sync/internal/config"
)

// Server — HTTP-сервер zimbra-sync.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными маршрутами и middleware.
// jwtAuth — JWT middleware для /api (nil — без аутентификации).
func New(cfg *config.Config, logger *slog.Logger, handler *handlers.APIHandler, jwtAuth *middleware.JWTAuth) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(logger, handler, jwtAuth, cfg.JWTAdminRole),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // публикация адресной книги выполняется синхронно
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter строит маршруты. Health и metrics доступны без JWT:
// их опрашивают Kubernetes и Prometheus напрямую.
func NewRouter(logger *slog.Logger, h *handlers.APIHandler, jwtAuth *middleware.JWTAuth, adminRole string) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	router.Get("/health/live", h.HealthLive)
	router.Get("/health/ready", h.HealthReady)
	router.Get("/metrics", h.GetMetrics)

	router.Route("/api/v1", func(r chi.Router) {
		if jwtAuth != nil {
			r.Use(jwtAuth.Middleware())
			r.Use(middleware.RequireRole(adminRole))
		}

		r.Post("/sync/drain", h.StartDrain)
		r.Get("/sync/status", h.GetSyncStatus)
		r.Post("/sync/reset-stale", h.ResetStale)
		r.Post("/sync/jobs", h.EnqueueJob)
		r.Post("/groups/{groupID}/sync", h.SyncGroup)
		r.Post("/addressbooks/structures/{uai}", h.SyncStructureAddressBook)
		r.Post("/addressbooks/users/{userID}", h.SyncUserAddressBook)
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
