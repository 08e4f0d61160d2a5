// Точка входа Event Module — сервис событий системы GEOStar.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// инициализирует провайдеров identity, создаёт сервисный слой и API handlers,
// запускает мониторинг зависимостей (topologymetrics),
// HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/geostar/event-module/internal/api/handlers"
	"github.com/bigkaa/geostar/event-module/internal/api/middleware"
	"github.com/bigkaa/geostar/event-module/internal/auth"
	"github.com/bigkaa/geostar/event-module/internal/config"
	"github.com/bigkaa/geostar/event-module/internal/database"
	"github.com/bigkaa/geostar/event-module/internal/provider"
	"github.com/bigkaa/geostar/event-module/internal/repository"
	"github.com/bigkaa/geostar/event-module/internal/server"
	"github.com/bigkaa/geostar/event-module/internal/service"
)

// интервал обновления Google JWKS и таймаут запросов к GitHub API
const (
	jwksRefreshInterval = 1 * time.Hour
	githubAPITimeout    = 10 * time.Second
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Event Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// Предупреждение о дефолтных значениях topologymetrics
	if os.Getenv("EM_DEPHEALTH_GROUP") == "" {
		logger.Warn("EM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL будет идти через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Провайдеры identity
	var verifiers []provider.Verifier
	if cfg.GoogleEnabled() {
		googleVerifier, gErr := provider.NewGoogleVerifier(
			cfg.GoogleJWKSURL, cfg.GoogleClientID, cfg.GoogleIssuer,
			jwksRefreshInterval, logger,
		)
		if gErr != nil {
			logger.Error("Ошибка создания Google verifier", slog.String("error", gErr.Error()))
			os.Exit(1)
		}
		verifiers = append(verifiers, googleVerifier)
		logger.Info("Google verifier инициализирован",
			slog.String("jwks_url", cfg.GoogleJWKSURL),
		)
	} else {
		logger.Info("Вход через Google отключён (EM_GOOGLE_CLIENT_ID не задан)")
	}
	verifiers = append(verifiers, provider.NewGitHubVerifier(cfg.GitHubAPIURL, githubAPITimeout, logger))
	providers := provider.NewRegistry(verifiers...)

	// 6. Repositories
	txRunner := repository.NewTxRunner(pool)
	userRepo := repository.NewUserRepository(pool)
	idRepo := repository.NewIdentityRepository(pool)
	eventRepo := repository.NewEventRepository(pool)
	partRepo := repository.NewParticipationRepository(pool)
	grantRepo := repository.NewAdminGrantRepository(pool)
	gpsRepo := repository.NewGPSRepository(pool)

	// 7. Services
	hasher := auth.NewBcryptHasher()
	accountsSvc := service.NewAccountService(userRepo, hasher, logger)
	identitySvc := service.NewIdentityService(txRunner, userRepo, idRepo, cfg.UsernameMaxAttempts, logger)
	eventsSvc := service.NewEventService(eventRepo, grantRepo, logger)
	participationSvc := service.NewParticipationService(txRunner, eventRepo, partRepo, logger)
	gpsSvc := service.NewGPSService(txRunner, gpsRepo, logger)

	// 8. Токены сервиса
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	// 9. Readiness checker и API handler
	pgChecker := database.NewReadinessChecker(pool)
	healthHandler := handlers.NewHealthHandler(pgChecker)

	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		accountsSvc,
		identitySvc,
		eventsSvc,
		participationSvc,
		gpsSvc,
		tokens,
		providers,
		logger,
	)

	// 10. JWT middleware
	jwtAuth := middleware.NewJWTAuth(tokens, logger)
	logger.Info("JWT middleware инициализирован",
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 11. topologymetrics — мониторинг зависимостей (PostgreSQL + Google JWKS)
	googleJWKSURL := ""
	if cfg.GoogleEnabled() {
		googleJWKSURL = cfg.GoogleJWKSURL
	}
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"event-module",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		googleJWKSURL,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 12. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 13. Graceful shutdown фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Event Module остановлен")
}
