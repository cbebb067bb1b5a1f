// Точка входа Realm Builder.
// Загружает конфигурацию и blueprint realm, подключается к PostgreSQL,
// применяет миграции, открывает админскую сессию Keycloak, приводит realm
// к описанию (realm → приложения → клиенты → роли → группы → встроенные
// пользователи), подключает контроллеры клиентов и запускает HTTP-сервер
// с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/realmbuilder/internal/api/handlers"
	"github.com/bigkaa/realmbuilder/internal/api/middleware"
	"github.com/bigkaa/realmbuilder/internal/api/openapi"
	"github.com/bigkaa/realmbuilder/internal/blueprint"
	"github.com/bigkaa/realmbuilder/internal/config"
	"github.com/bigkaa/realmbuilder/internal/database"
	"github.com/bigkaa/realmbuilder/internal/keycloak"
	"github.com/bigkaa/realmbuilder/internal/reconcile"
	"github.com/bigkaa/realmbuilder/internal/repository"
	"github.com/bigkaa/realmbuilder/internal/server"
	"github.com/bigkaa/realmbuilder/internal/service"
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
	logger.Info("Realm Builder запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Blueprint realm: ошибки описания обнаруживаются до обращения к Keycloak
	rlm, err := blueprint.LoadFile(cfg.BlueprintPath)
	if err != nil {
		logger.Error("Ошибка загрузки blueprint",
			slog.String("path", cfg.BlueprintPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	logger.Info("Blueprint загружен",
		slog.String("realm", rlm.Name()),
		slog.Int("apps", len(rlm.Apps())),
	)

	// 4. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Подключение к PostgreSQL (pgxpool)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 5.1 Адаптер pgxpool → *sql.DB для topologymetrics (проверка через общий пул)
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 6. HTTP-клиент с кастомным CA (для Keycloak)
	httpClient := &http.Client{Timeout: cfg.KeycloakTimeout}
	if cfg.CACertPath != "" {
		httpClient, err = middleware.HTTPClientWithCA(cfg.CACertPath, cfg.KeycloakTimeout)
		if err != nil {
			logger.Error("Ошибка загрузки CA-сертификата",
				slog.String("path", cfg.CACertPath),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
		logger.Info("CA-сертификат загружен", slog.String("path", cfg.CACertPath))
	}

	// 7. Админская сессия Keycloak с фоновой переаутентификацией
	session := keycloak.NewSession(keycloak.SessionConfig{
		BaseURL:  cfg.KeycloakURL,
		Realm:    cfg.KeycloakAdminRealm,
		ClientID: cfg.KeycloakAdminClientID,
		Username: cfg.KeycloakAdminUser,
		Password: cfg.KeycloakAdminPassword,
		Interval: cfg.KeycloakReauthInterval,
	}, httpClient, logger)
	if err := session.Start(ctx); err != nil {
		logger.Error("Ошибка аутентификации в Keycloak",
			slog.String("url", cfg.KeycloakURL),
			slog.String("admin_realm", cfg.KeycloakAdminRealm),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer session.Stop()

	// 8. Admin REST API рабочего realm за фасадом с классификатором ошибок
	kcClient := keycloak.New(cfg.KeycloakURL, rlm.Name(), session, httpClient, logger)
	facade := kcClient.Facade(keycloak.NewClassifier(cfg.ErrorLogPolicy, logger))
	logger.Info("Keycloak клиент создан",
		slog.String("url", cfg.KeycloakURL),
		slog.String("realm", rlm.Name()),
	)

	// 9. Репозиторий, кэш входа и сервис пользователей
	userRepo := repository.NewUserRepository(pool)
	loginCache := service.NewLoginCache(cfg.LoginCacheSize, cfg.LoginCacheTTL)
	usersSvc := service.NewUserService(facade, userRepo, loginCache, logger)

	// 10. JWT middleware (JWKS рабочего realm)
	jwtAuth, err := middleware.NewJWTAuth(
		kcClient.JWKSURL(),
		cfg.CACertPath,
		kcClient.Issuer(),
		cfg.KeycloakTimeout,
		cfg.JWKSRefreshInterval,
		cfg.JWTLeeway,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", kcClient.JWKSURL()),
		slog.String("issuer", kcClient.Issuer()),
	)

	// 11. Валидация запросов по OpenAPI-контракту
	doc, err := openapi.Load(ctx)
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI-контракта", slog.String("error", err.Error()))
		os.Exit(1)
	}
	validator, err := middleware.NewRequestValidator(doc, logger)
	if err != nil {
		logger.Error("Ошибка создания валидатора запросов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 12. HTTP-сервер; контроллеры клиентов подключаются реконсилятором
	health := handlers.NewHealthHandler(database.NewReadinessChecker(pool), kcClient)
	srv := server.New(cfg, logger, health, jwtAuth, validator, usersSvc)

	// 13. Реконсиляция realm
	builder := reconcile.New(facade, logger,
		reconcile.WithSeeder(usersSvc),
		reconcile.WithMounter(srv),
	)
	result, err := builder.Build(ctx, rlm)
	if err != nil {
		logger.Error("Ошибка построения realm",
			slog.String("realm", rlm.Name()),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	health.MarkRealmBuilt()
	logger.Info("Realm построен",
		slog.String("realm", rlm.Name()),
		slog.Int("created", result.TotalCreated()),
		slog.Int("clients", len(result.Targets)),
		slog.Duration("duration", result.Duration),
	)

	// 14. topologymetrics — мониторинг зависимостей (PostgreSQL + Keycloak)
	dephealthSvc, err := service.NewDephealthService(service.DephealthConfig{
		ServiceID:       "realm-builder",
		Group:           cfg.DephealthGroup,
		DB:              pgDB,
		PGConnURL:       cfg.DatabaseURL(),
		Realm:           rlm.Name(),
		KeycloakJWKSURL: kcClient.JWKSURL(),
		TLSSkipVerify:   cfg.CACertPath != "",
		CheckInterval:   cfg.DephealthCheckInterval,
	}, logger)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
	} else if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
		dephealthSvc = nil
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 15. Запуск HTTP-сервера до сигнала завершения
	runErr := srv.Run(ctx)

	// 16. Остановка фоновых задач
	logger.Info("Останавливаем фоновые задачи...")
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
		session.Stop()
		pgDB.Close()
		pool.Close()
		os.Exit(1)
	}
	logger.Info("Realm Builder остановлен")
}
