// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Realm Builder мониторит две зависимости:
//   - PostgreSQL — SQL checker через существующий pgxpool (connection pool mode, critical)
//   - Keycloak — HTTP checker к JWKS endpoint рабочего realm (critical)
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
//   - app_dependency_status — категория статуса
//   - app_dependency_status_detail — детальный статус
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // HTTP checker для Keycloak
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"     // PostgreSQL checker (pool mode)
	"github.com/prometheus/client_golang/prometheus"
)

// maxDepNameLen — ограничение длины имени зависимости (как у DNS-label).
const maxDepNameLen = 63

var (
	depNameInvalid = regexp.MustCompile(`[^a-z0-9-]+`)
	depNameDashes  = regexp.MustCompile(`-{2,}`)
)

// NormalizeDepName приводит имя к формату имени зависимости dephealth:
// нижний регистр, [a-z0-9-], начинается с буквы, не длиннее 63 символов.
func NormalizeDepName(name string) string {
	s := depNameInvalid.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(depNameDashes.ReplaceAllString(s, "-"), "-")
	if s == "" {
		return "unknown"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "dep-" + s
	}
	if len(s) > maxDepNameLen {
		s = strings.TrimRight(s[:maxDepNameLen], "-")
	}
	return s
}

// keycloakHealthPath возвращает path JWKS URL для HTTP-проверки.
// /health у Keycloak доступен только на management-порту, поэтому
// проверяется сам JWKS endpoint: он подтверждает существование realm.
func keycloakHealthPath(jwksURL string) string {
	parsed, err := url.Parse(jwksURL)
	if err != nil || parsed.Path == "" {
		return "/health"
	}
	return parsed.Path
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// DephealthConfig — параметры мониторинга.
type DephealthConfig struct {
	// ServiceID — имя вершины графа текущего приложения.
	ServiceID string
	// Group — имя группы в метриках (RB_DEPHEALTH_GROUP).
	Group string
	// DB — *sql.DB, полученный из pgxpool через stdlib.OpenDBFromPool().
	DB *sql.DB
	// PGConnURL — URL PostgreSQL (для лейблов, не для подключения).
	PGConnURL string
	// Realm — рабочий realm; входит в имя зависимости Keycloak.
	Realm string
	// KeycloakJWKSURL — JWKS endpoint рабочего realm.
	KeycloakJWKSURL string
	// TLSSkipVerify — не проверять сертификат Keycloak (собственный CA).
	TLSSkipVerify bool
	// CheckInterval — интервал проверки (RB_DEPHEALTH_CHECK_INTERVAL).
	CheckInterval time.Duration
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
func NewDephealthService(cfg DephealthConfig, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(cfg, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(cfg DephealthConfig, logger *slog.Logger, registerer prometheus.Registerer) (*DephealthService, error) {
	return newDephealthService(cfg, logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(cfg DephealthConfig, logger *slog.Logger, extraOpts ...dephealth.Option) (*DephealthService, error) {
	kcOpts := []dephealth.DependencyOption{
		dephealth.FromURL(cfg.KeycloakJWKSURL),
		dephealth.WithHTTPHealthPath(keycloakHealthPath(cfg.KeycloakJWKSURL)),
		dephealth.CheckInterval(cfg.CheckInterval),
		dephealth.Critical(true),
	}
	if cfg.TLSSkipVerify {
		kcOpts = append(kcOpts, dephealth.WithHTTPTLSSkipVerify(true))
	}

	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
		// pgcheck.New + AddDependency напрямую, без contrib/sqldb.
		dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(cfg.DB)),
			dephealth.FromURL(cfg.PGConnURL),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(true),
		),
		dephealth.HTTP(NormalizeDepName("keycloak-"+cfg.Realm), kcOpts...),
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(cfg.ServiceID, cfg.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен (PostgreSQL + Keycloak)")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
