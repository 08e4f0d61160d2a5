// Пакет database — PostgreSQL-слой Event Module: пул подключений pgx,
// применение миграций схемы (golang-migrate) и readiness-проверка.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/geostar/event-module/internal/config"
)

// Миграции схемы: users, linked_identities, events, event_participations,
// event_admin_grants, gps_locations, gps_latest.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// connectTimeout — таймаут первичного ping при старте.
const connectTimeout = 5 * time.Second

// Connect создаёт пул подключений к PostgreSQL с лимитами из конфигурации
// и проверяет доступность базы первичным ping.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	log := logger.With(slog.String("component", "database"))

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("разбор DSN PostgreSQL: %w", err)
	}

	// Лимиты пула — EM_DB_MAX_CONNS / EM_DB_MIN_CONNS.
	// application_name виден в pg_stat_activity при разборе инцидентов.
	poolCfg.MaxConns = int32(cfg.DBMaxConns)
	poolCfg.MinConns = int32(cfg.DBMinConns)
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "event-module"

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("создание пула подключений: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("PostgreSQL недоступен на старте: %w", err)
	}

	log.Info("пул подключений к PostgreSQL готов",
		slog.String("host", cfg.DBHost),
		slog.Int("port", cfg.DBPort),
		slog.String("database", cfg.DBName),
		slog.Int("max_conns", cfg.DBMaxConns),
	)
	return pool, nil
}

// Migrate приводит схему БД к актуальной версии.
// Миграции читаются из embedded FS, применяются драйвером pgx5.
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	log := logger.With(slog.String("component", "database"))

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("чтение embedded-миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(cfg))
	if err != nil {
		return fmt.Errorf("инициализация миграций: %w", err)
	}
	defer m.Close()

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		version, _, _ := m.Version()
		log.Info("схема БД актуальна, новых миграций нет",
			slog.Uint64("version", uint64(version)),
		)
		return nil
	case err != nil:
		return fmt.Errorf("применение миграций: %w", err)
	}

	version, dirty, _ := m.Version()
	log.Info("миграции схемы применены",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// migrateURL собирает URL подключения для golang-migrate
// (схема pgx5:// выбирает драйвер pgx/v5).
func migrateURL(cfg *config.Config) string {
	return fmt.Sprintf(
		"pgx5://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode,
	)
}

// readyTimeout — таймаут ping в readiness-проверке.
const readyTimeout = 3 * time.Second

// ReadinessChecker — проверка PostgreSQL для /health/ready.
// Реализует интерфейс handlers.ReadinessChecker.
type ReadinessChecker struct {
	pool *pgxpool.Pool
}

// NewReadinessChecker создаёт readiness-проверку поверх пула.
func NewReadinessChecker(pool *pgxpool.Pool) *ReadinessChecker {
	return &ReadinessChecker{pool: pool}
}

// CheckReady выполняет ping PostgreSQL.
// Возвращает статус ("ok", "fail") и сообщение для ответа health endpoint.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()

	if err := c.pool.Ping(ctx); err != nil {
		return "fail", fmt.Sprintf("нет связи с PostgreSQL: %v", err)
	}
	return "ok", "PostgreSQL отвечает"
}
