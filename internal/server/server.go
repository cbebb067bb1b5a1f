// Пакет server — HTTP-сервер Realm Builder с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
//
// Маршруты клиентов не объявляются статически: реконсилятор вызывает
// Mount для каждого клиента realm, и сервер подключает его контроллер
// под /api/v1/{app}/{client}.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/bigkaa/realmbuilder/internal/api/errors"
	"github.com/bigkaa/realmbuilder/internal/api/handlers"
	"github.com/bigkaa/realmbuilder/internal/api/middleware"
	"github.com/bigkaa/realmbuilder/internal/config"
	"github.com/bigkaa/realmbuilder/internal/reconcile"
)

// Server — HTTP-сервер Realm Builder.
type Server struct {
	httpServer *http.Server
	router     chi.Router
	jwtAuth    *middleware.JWTAuth
	users      handlers.UserService
	logger     *slog.Logger
	cfg        *config.Config

	mu      sync.Mutex
	mounted map[string]bool
}

var _ reconcile.Mounter = (*Server)(nil)

// New создаёт HTTP-сервер с health endpoints и глобальными middleware.
// validator может быть nil (без валидации по контракту).
func New(
	cfg *config.Config,
	logger *slog.Logger,
	health *handlers.HealthHandler,
	jwtAuth *middleware.JWTAuth,
	validator *middleware.RequestValidator,
	users handlers.UserService,
) *Server {
	router := chi.NewRouter()

	router.Use(chimw.RequestID)
	router.Use(chimw.Recoverer)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))
	if validator != nil {
		router.Use(validator.Middleware())
	}

	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.NotFound(w, "Маршрут не найден")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.WriteError(w, http.StatusMethodNotAllowed, apierrors.CodeValidationError, "Метод не поддерживается")
	})

	// Health и metrics проверяются Kubernetes напрямую, без API Gateway.
	router.Get("/health/live", health.HealthLive)
	router.Get("/health/ready", health.HealthReady)
	router.Get("/metrics", health.GetMetrics)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		router:     router,
		jwtAuth:    jwtAuth,
		users:      users,
		logger:     logger,
		cfg:        cfg,
		mounted:    make(map[string]bool),
	}
}

// Handler возвращает корневой обработчик (для тестов).
func (s *Server) Handler() http.Handler { return s.router }

// Mount подключает контроллер клиента t под /api/v1/{app}/{client}.
// Повторное подключение того же клиента ничего не меняет.
func (s *Server) Mount(t reconcile.Target) error {
	prefix := fmt.Sprintf("/api/v1/%s/%s", t.App.Name(), t.Client.Name())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mounted[prefix] {
		s.logger.Debug("Контроллер клиента уже подключён", slog.String("prefix", prefix))
		return nil
	}

	s.router.Mount(prefix, handlers.NewClientHandler(t, s.users, s.logger).Routes(s.jwtAuth))
	s.mounted[prefix] = true

	s.logger.Info("Контроллер клиента подключён",
		slog.String("prefix", prefix),
		slog.String("client_id", t.ClientID()),
		slog.String("collection", t.Collection()),
	)
	return nil
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM)
// или отмены ctx. Затем выполняется graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
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
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("Контекст сервера отменён")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
