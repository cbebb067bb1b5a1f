// Пакет config — загрузка и валидация конфигурации realm-builder
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/realmbuilder/internal/apperror"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации realm-builder.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Keycloak ---

	// URL Keycloak (например, https://keycloak.kryukov.lan)
	KeycloakURL string
	// Realm, в котором аутентифицируется администратор (по умолчанию master)
	KeycloakAdminRealm string
	// Client ID для password grant администратора (по умолчанию admin-cli)
	KeycloakAdminClientID string
	// Логин администратора
	KeycloakAdminUser string
	// Пароль администратора
	KeycloakAdminPassword string
	// Интервал фоновой переаутентификации администратора
	KeycloakReauthInterval time.Duration
	// Таймаут HTTP-запросов к Keycloak
	KeycloakTimeout time.Duration
	// Путь к CA-сертификату для TLS-соединений с Keycloak (опционально)
	CACertPath string

	// --- Реконсиляция ---

	// Путь к YAML-описанию realm
	BlueprintPath string
	// Политика логирования классификатора ошибок IdP
	ErrorLogPolicy apperror.LogPolicy

	// --- JWT ---

	// Интервал обновления JWKS
	JWKSRefreshInterval time.Duration
	// Допуск на расхождение часов при проверке exp/nbf
	JWTLeeway time.Duration

	// --- Кэш входа ---

	// Размер LRU-кэша идентификатор → username
	LoginCacheSize int
	// Время жизни записи кэша
	LoginCacheTTL time.Duration

	// --- topologymetrics ---

	// Группа зависимостей в метриках topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// RB_PORT — порт HTTP-сервера (по умолчанию 8000)
	cfg.Port, err = getEnvInt("RB_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("RB_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("RB_PORT: значение %d не является портом TCP", cfg.Port)
	}

	// RB_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("RB_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("RB_LOG_LEVEL: %w", err)
	}

	// RB_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("RB_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("RB_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	cfg.DBHost, err = getEnvRequired("RB_DB_HOST")
	if err != nil {
		return nil, err
	}

	cfg.DBPort, err = getEnvInt("RB_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("RB_DB_PORT: %w", err)
	}

	cfg.DBName, err = getEnvRequired("RB_DB_NAME")
	if err != nil {
		return nil, err
	}

	cfg.DBUser, err = getEnvRequired("RB_DB_USER")
	if err != nil {
		return nil, err
	}

	cfg.DBPassword, err = getEnvRequired("RB_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// RB_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("RB_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("RB_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Keycloak ---

	cfg.KeycloakURL, err = getEnvRequired("RB_KEYCLOAK_URL")
	if err != nil {
		return nil, err
	}
	// Убираем trailing slash
	cfg.KeycloakURL = strings.TrimRight(cfg.KeycloakURL, "/")

	cfg.KeycloakAdminRealm = getEnvDefault("RB_KEYCLOAK_ADMIN_REALM", "master")
	cfg.KeycloakAdminClientID = getEnvDefault("RB_KEYCLOAK_ADMIN_CLIENT_ID", "admin-cli")
	cfg.KeycloakAdminUser = getEnvDefault("RB_KEYCLOAK_ADMIN_USER", "admin")

	cfg.KeycloakAdminPassword, err = getEnvRequired("RB_KEYCLOAK_ADMIN_PASSWORD")
	if err != nil {
		return nil, err
	}

	// RB_KEYCLOAK_REAUTH_INTERVAL — меньше времени жизни admin-токена (по умолчанию 58s)
	cfg.KeycloakReauthInterval, err = getEnvDuration("RB_KEYCLOAK_REAUTH_INTERVAL", 58*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RB_KEYCLOAK_REAUTH_INTERVAL: %w", err)
	}
	if cfg.KeycloakReauthInterval <= 0 {
		return nil, fmt.Errorf("RB_KEYCLOAK_REAUTH_INTERVAL: значение должно быть положительным")
	}

	cfg.KeycloakTimeout, err = getEnvDuration("RB_KEYCLOAK_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RB_KEYCLOAK_TIMEOUT: %w", err)
	}

	cfg.CACertPath = getEnvDefault("RB_CA_CERT_PATH", "")

	// --- Реконсиляция ---

	cfg.BlueprintPath, err = getEnvRequired("RB_BLUEPRINT_PATH")
	if err != nil {
		return nil, err
	}

	// RB_ERROR_LOG_POLICY — never, known, all, unknown-only (по умолчанию unknown-only)
	cfg.ErrorLogPolicy, err = apperror.ParseLogPolicy(getEnvDefault("RB_ERROR_LOG_POLICY", string(apperror.LogUnknownOnly)))
	if err != nil {
		return nil, fmt.Errorf("RB_ERROR_LOG_POLICY: %w", err)
	}

	// --- JWT ---

	cfg.JWKSRefreshInterval, err = getEnvDuration("RB_JWKS_REFRESH_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("RB_JWKS_REFRESH_INTERVAL: %w", err)
	}

	cfg.JWTLeeway, err = getEnvDuration("RB_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RB_JWT_LEEWAY: %w", err)
	}

	// --- Кэш входа ---

	cfg.LoginCacheSize, err = getEnvInt("RB_LOGIN_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("RB_LOGIN_CACHE_SIZE: %w", err)
	}
	if cfg.LoginCacheSize < 1 {
		return nil, fmt.Errorf("RB_LOGIN_CACHE_SIZE: значение %d должно быть не меньше 1", cfg.LoginCacheSize)
	}

	cfg.LoginCacheTTL, err = getEnvDuration("RB_LOGIN_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("RB_LOGIN_CACHE_TTL: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("RB_DEPHEALTH_GROUP", "realm-builder")

	cfg.DephealthCheckInterval, err = getEnvDuration("RB_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RB_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("RB_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RB_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов topologymetrics).
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.User(c.DBUser),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
