package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"EM_DB_HOST":    "localhost",
		"EM_DB_NAME":    "geostar",
		"EM_DB_USER":    "geostar",
		"EM_DB_PASSWORD": "secret",
		"EM_JWT_SECRET": "0123456789abcdef0123456789abcdef",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	// Проверяем значения по умолчанию
	if cfg.Port != 8000 {
		t.Errorf("Port = %d, ожидается 8000", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидается 5432", cfg.DBPort)
	}
	if cfg.DBSSLMode != "disable" {
		t.Errorf("DBSSLMode = %q, ожидается disable", cfg.DBSSLMode)
	}
	if cfg.DBMaxConns != 10 {
		t.Errorf("DBMaxConns = %d, ожидается 10", cfg.DBMaxConns)
	}
	if cfg.DBMinConns != 2 {
		t.Errorf("DBMinConns = %d, ожидается 2", cfg.DBMinConns)
	}
	if cfg.JWTIssuer != "geostar-event-module" {
		t.Errorf("JWTIssuer = %q, ожидается geostar-event-module", cfg.JWTIssuer)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Errorf("AccessTokenTTL = %v, ожидается 15m", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 720*time.Hour {
		t.Errorf("RefreshTokenTTL = %v, ожидается 720h", cfg.RefreshTokenTTL)
	}
	if cfg.GoogleEnabled() {
		t.Error("GoogleEnabled() = true без EM_GOOGLE_CLIENT_ID")
	}
	if cfg.GoogleJWKSURL != "https://www.googleapis.com/oauth2/v3/certs" {
		t.Errorf("GoogleJWKSURL = %q", cfg.GoogleJWKSURL)
	}
	if cfg.GitHubAPIURL != "https://api.github.com" {
		t.Errorf("GitHubAPIURL = %q", cfg.GitHubAPIURL)
	}
	if cfg.UsernameMaxAttempts != 100 {
		t.Errorf("UsernameMaxAttempts = %d, ожидается 100", cfg.UsernameMaxAttempts)
	}
	if cfg.DephealthCheckInterval != 15*time.Second {
		t.Errorf("DephealthCheckInterval = %v, ожидается 15s", cfg.DephealthCheckInterval)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	required := []string{"EM_DB_HOST", "EM_DB_NAME", "EM_DB_USER", "EM_DB_PASSWORD", "EM_JWT_SECRET"}

	for _, missing := range required {
		t.Run(missing, func(t *testing.T) {
			envs := minimalEnvs()
			envs[missing] = ""
			setEnvs(t, envs)

			if _, err := Load(); err == nil {
				t.Errorf("Load() без %s должен вернуть ошибку", missing)
			}
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"порт вне диапазона", "EM_PORT", "9000"},
		{"порт не число", "EM_PORT", "abc"},
		{"неизвестный уровень логов", "EM_LOG_LEVEL", "verbose"},
		{"неизвестный формат логов", "EM_LOG_FORMAT", "xml"},
		{"недопустимый ssl mode", "EM_DB_SSL_MODE", "prefer"},
		{"нулевой пул", "EM_DB_MAX_CONNS", "0"},
		{"мин больше макс", "EM_DB_MIN_CONNS", "100"},
		{"некорректная длительность", "EM_ACCESS_TOKEN_TTL", "15 минут"},
		{"лимит username вне диапазона", "EM_USERNAME_MAX_ATTEMPTS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envs := minimalEnvs()
			envs[tt.key] = tt.val
			setEnvs(t, envs)

			if _, err := Load(); err == nil {
				t.Errorf("Load() с %s=%q должен вернуть ошибку", tt.key, tt.val)
			}
		})
	}
}

func TestLoad_ShortJWTSecret(t *testing.T) {
	envs := minimalEnvs()
	envs["EM_JWT_SECRET"] = "short"
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Error("Load() с коротким EM_JWT_SECRET должен вернуть ошибку")
	}
}

func TestDatabaseDSN(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	dsn := cfg.DatabaseDSN()
	for _, part := range []string{"host=localhost", "port=5432", "dbname=geostar", "sslmode=disable"} {
		if !strings.Contains(dsn, part) {
			t.Errorf("DatabaseDSN() = %q, нет %q", dsn, part)
		}
	}
}

func TestDatabaseURL_EscapesCredentials(t *testing.T) {
	envs := minimalEnvs()
	envs["EM_DB_PASSWORD"] = "p@ss:word"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	u := cfg.DatabaseURL()
	if strings.Contains(u, "p@ss:word") {
		t.Errorf("DatabaseURL() = %q, пароль не экранирован", u)
	}
}

func TestLoad_GitHubAPIURLTrailingSlash(t *testing.T) {
	envs := minimalEnvs()
	envs["EM_GITHUB_API_URL"] = "https://github.example.com/api/v3/"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.GitHubAPIURL != "https://github.example.com/api/v3" {
		t.Errorf("GitHubAPIURL = %q, trailing slash не убран", cfg.GitHubAPIURL)
	}
}
