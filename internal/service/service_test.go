package service

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/geostar/event-module/internal/config"
	"github.com/bigkaa/geostar/event-module/internal/database"
	"github.com/bigkaa/geostar/event-module/internal/domain/model"
	"github.com/bigkaa/geostar/event-module/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

// testLogger — логгер, не засоряющий вывод тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestDB запускает PostgreSQL контейнер и применяет миграции.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("geostar_test"),
		postgres.WithUsername("geostar"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	os.Setenv("EM_DB_HOST", host)
	os.Setenv("EM_DB_PORT", port.Port())
	os.Setenv("EM_DB_NAME", "geostar_test")
	os.Setenv("EM_DB_USER", "geostar")
	os.Setenv("EM_DB_PASSWORD", "test-password")
	os.Setenv("EM_DB_SSL_MODE", "disable")
	os.Setenv("EM_JWT_SECRET", "0123456789abcdef0123456789abcdef")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := testLogger()
	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

// mkUser создаёт пользователя напрямую через репозиторий.
func mkUser(t *testing.T, pool *pgxpool.Pool, username, email string) *model.User {
	t.Helper()
	u := &model.User{
		ID:       uuid.New().String(),
		Username: username,
		Email:    email,
		Active:   true,
	}
	if err := repository.NewUserRepository(pool).Create(context.Background(), u); err != nil {
		t.Fatalf("Создание пользователя %s: %v", username, err)
	}
	return u
}

// mkEvent создаёт событие напрямую через репозиторий.
// maxParticipants = 0 означает событие без лимита.
func mkEvent(t *testing.T, pool *pgxpool.Pool, adminID string, maxParticipants int) *model.Event {
	t.Helper()
	e := &model.Event{
		ID:          uuid.New().String(),
		Name:        "Тестовое событие",
		Type:        model.EventTypeRace,
		AdminUserID: adminID,
		Active:      true,
	}
	if maxParticipants > 0 {
		e.MaxParticipants = &maxParticipants
	}
	if err := repository.NewEventRepository(pool).Create(context.Background(), e); err != nil {
		t.Fatalf("Создание события: %v", err)
	}
	return e
}
