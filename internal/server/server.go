// Пакет server — HTTP-сервер Event Module с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
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

	"github.com/bigkaa/geostar/event-module/internal/api/handlers"
	"github.com/bigkaa/geostar/event-module/internal/api/middleware"
	"github.com/bigkaa/geostar/event-module/internal/config"
)

// Server — HTTP-сервер Event Module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
// jwtAuth — JWT middleware (может быть nil для тестирования без auth).
func New(cfg *config.Config, logger *slog.Logger, handler *handlers.APIHandler, jwtAuth *middleware.JWTAuth) *Server {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// JWT middleware с исключениями для публичных endpoints.
	// Health и metrics проверяются Kubernetes напрямую, без API Gateway;
	// регистрация, вход и social-вход доступны без токена.
	if jwtAuth != nil {
		router.Use(jwtAuth.MiddlewareWithExclusions(
			"/health/", "/metrics",
			"/api/v1/auth/register",
			"/api/v1/auth/login",
			"/api/v1/auth/refresh",
			"/api/v1/auth/social/",
		))
	}

	registerRoutes(router, handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// registerRoutes связывает маршруты API с обработчиками.
func registerRoutes(router chi.Router, h *handlers.APIHandler) {
	// Health и метрики
	router.Get("/health/live", h.HealthLive)
	router.Get("/health/ready", h.HealthReady)
	router.Get("/metrics", h.GetMetrics)

	router.Route("/api/v1", func(r chi.Router) {
		// Аутентификация
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)
		r.Post("/auth/refresh", h.Refresh)
		r.Post("/auth/social/{provider}", h.SocialLogin)
		r.Post("/auth/link/{provider}", h.LinkProvider)

		// Аккаунты
		r.Get("/users/me", h.GetMe)
		r.Patch("/users/me", h.UpdateMe)
		r.Delete("/users/me", h.DeleteMe)
		r.Put("/users/me/password", h.ChangePassword)
		r.Get("/users/me/identities", h.ListMyIdentities)
		r.Delete("/users/me/identities/{provider}", h.UnlinkIdentity)
		r.Get("/users/me/participations", h.ListMyParticipations)
		r.Get("/users/{id}", h.GetUser)
		r.Get("/users/{id}/provider", h.GetUserProvider)

		// События
		r.Post("/events", h.CreateEvent)
		r.Get("/events", h.ListEvents)
		r.Get("/events/{id}", h.GetEvent)
		r.Put("/events/{id}", h.UpdateEvent)
		r.Delete("/events/{id}", h.DeleteEvent)
		r.Get("/events/{id}/admins", h.ListEventAdmins)
		r.Post("/events/{id}/admins", h.GrantEventAdmin)
		r.Delete("/events/{id}/admins/{user_id}", h.RevokeEventAdmin)

		// Участие
		r.Post("/events/{id}/enroll", h.Enroll)
		r.Delete("/events/{id}/enroll", h.Unenroll)
		r.Post("/events/{id}/start", h.StartParticipation)
		r.Post("/events/{id}/finish", h.FinishParticipation)
		r.Post("/events/{id}/reset", h.ResetParticipations)
		r.Get("/events/{id}/participants", h.ListParticipants)
		r.Get("/events/{id}/participants/me", h.GetMyParticipation)

		// GPS
		r.Post("/gps/locations", h.RecordLocation)
		r.Get("/gps/locations", h.GetMyLocationHistory)
		r.Get("/gps/latest", h.ListLatestLocations)
		r.Get("/gps/latest/{user_id}", h.GetLatestLocation)
	})
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
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

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
