// Пакет config — загрузка и валидация конфигурации Event Module
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
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Event Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8000-8009)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// Максимальный размер пула подключений
	DBMaxConns int
	// Минимальное число подключений, которое пул держит открытыми
	DBMinConns int

	// --- JWT (локальная выдача и проверка токенов) ---

	// Секрет подписи HS256 (минимум 32 символа)
	JWTSecret string
	// Issuer выдаваемых токенов
	JWTIssuer string
	// Время жизни access-токена
	AccessTokenTTL time.Duration
	// Время жизни refresh-токена
	RefreshTokenTTL time.Duration

	// --- OAuth-провайдеры ---

	// Client ID приложения в Google (audience ID-токенов).
	// Если не задан — вход через Google отключён.
	GoogleClientID string
	// URL JWKS endpoint Google (для проверки подписи ID-токенов)
	GoogleJWKSURL string
	// Ожидаемый issuer ID-токенов Google
	GoogleIssuer string
	// Базовый URL GitHub API (переопределяется в тестах)
	GitHubAPIURL string

	// --- Identity Resolver ---

	// Лимит попыток подбора уникального username при создании
	// аккаунта из сторонней identity
	UsernameMaxAttempts int

	// --- Мониторинг зависимостей ---

	// Имя группы topologymetrics
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

	// EM_PORT — порт HTTP-сервера (по умолчанию 8000)
	cfg.Port, err = getEnvInt("EM_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("EM_PORT: %w", err)
	}
	if cfg.Port < 8000 || cfg.Port > 8009 {
		return nil, fmt.Errorf("EM_PORT: значение %d вне допустимого диапазона 8000-8009", cfg.Port)
	}

	// EM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("EM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("EM_LOG_LEVEL: %w", err)
	}

	// EM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("EM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("EM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// EM_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("EM_DB_HOST")
	if err != nil {
		return nil, err
	}

	// EM_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("EM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("EM_DB_PORT: %w", err)
	}

	// EM_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("EM_DB_NAME")
	if err != nil {
		return nil, err
	}

	// EM_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("EM_DB_USER")
	if err != nil {
		return nil, err
	}

	// EM_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("EM_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// EM_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("EM_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("EM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// EM_DB_MAX_CONNS — максимальный размер пула (по умолчанию 10)
	cfg.DBMaxConns, err = getEnvInt("EM_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("EM_DB_MAX_CONNS: %w", err)
	}
	if cfg.DBMaxConns < 1 {
		return nil, fmt.Errorf("EM_DB_MAX_CONNS: значение %d меньше 1", cfg.DBMaxConns)
	}

	// EM_DB_MIN_CONNS — минимум открытых подключений (по умолчанию 2)
	cfg.DBMinConns, err = getEnvInt("EM_DB_MIN_CONNS", 2)
	if err != nil {
		return nil, fmt.Errorf("EM_DB_MIN_CONNS: %w", err)
	}
	if cfg.DBMinConns < 0 || cfg.DBMinConns > cfg.DBMaxConns {
		return nil, fmt.Errorf("EM_DB_MIN_CONNS: значение %d вне диапазона 0-%d", cfg.DBMinConns, cfg.DBMaxConns)
	}

	// --- JWT ---

	// EM_JWT_SECRET — обязательный, минимум 32 символа
	cfg.JWTSecret, err = getEnvRequired("EM_JWT_SECRET")
	if err != nil {
		return nil, err
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("EM_JWT_SECRET: длина %d меньше минимальной (32 символа)", len(cfg.JWTSecret))
	}

	// EM_JWT_ISSUER — issuer токенов (по умолчанию geostar-event-module)
	cfg.JWTIssuer = getEnvDefault("EM_JWT_ISSUER", "geostar-event-module")

	// EM_ACCESS_TOKEN_TTL — время жизни access-токена (по умолчанию 15m)
	cfg.AccessTokenTTL, err = getEnvDuration("EM_ACCESS_TOKEN_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("EM_ACCESS_TOKEN_TTL: %w", err)
	}

	// EM_REFRESH_TOKEN_TTL — время жизни refresh-токена (по умолчанию 720h = 30 суток)
	cfg.RefreshTokenTTL, err = getEnvDuration("EM_REFRESH_TOKEN_TTL", 720*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("EM_REFRESH_TOKEN_TTL: %w", err)
	}

	// --- OAuth-провайдеры ---

	// EM_GOOGLE_CLIENT_ID — опциональный (без него Google-вход отключён)
	cfg.GoogleClientID = getEnvDefault("EM_GOOGLE_CLIENT_ID", "")

	// EM_GOOGLE_JWKS_URL — JWKS endpoint Google
	cfg.GoogleJWKSURL = getEnvDefault("EM_GOOGLE_JWKS_URL", "https://www.googleapis.com/oauth2/v3/certs")
	if _, parseErr := url.Parse(cfg.GoogleJWKSURL); parseErr != nil {
		return nil, fmt.Errorf("EM_GOOGLE_JWKS_URL: некорректный URL: %w", parseErr)
	}

	// EM_GOOGLE_ISSUER — issuer ID-токенов Google
	cfg.GoogleIssuer = getEnvDefault("EM_GOOGLE_ISSUER", "https://accounts.google.com")

	// EM_GITHUB_API_URL — базовый URL GitHub API
	cfg.GitHubAPIURL = strings.TrimRight(getEnvDefault("EM_GITHUB_API_URL", "https://api.github.com"), "/")

	// --- Identity Resolver ---

	// EM_USERNAME_MAX_ATTEMPTS — лимит подбора username (по умолчанию 100)
	cfg.UsernameMaxAttempts, err = getEnvInt("EM_USERNAME_MAX_ATTEMPTS", 100)
	if err != nil {
		return nil, fmt.Errorf("EM_USERNAME_MAX_ATTEMPTS: %w", err)
	}
	if cfg.UsernameMaxAttempts < 1 || cfg.UsernameMaxAttempts > 1000 {
		return nil, fmt.Errorf("EM_USERNAME_MAX_ATTEMPTS: значение %d вне допустимого диапазона 1-1000", cfg.UsernameMaxAttempts)
	}

	// --- Мониторинг зависимостей ---

	// EM_DEPHEALTH_GROUP — имя группы topologymetrics (по умолчанию geostar)
	cfg.DephealthGroup = getEnvDefault("EM_DEPHEALTH_GROUP", "geostar")

	// EM_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("EM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("EM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	// EM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("EM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("EM_SHUTDOWN_TIMEOUT: %w", err)
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

// DatabaseURL возвращает URL подключения к PostgreSQL
// (для лейблов topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.DBUser), url.QueryEscape(c.DBPassword),
		c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// GoogleEnabled сообщает, настроен ли вход через Google.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != ""
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
