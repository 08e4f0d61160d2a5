package repository

import (
	"context"
	"errors"
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

	"github.com/jackc/pgx/v5/pgxpool"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool и функцию очистки.
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

	// Настраиваем env для config.Load()
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

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Применяем миграции
	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	// Подключаемся
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

// createTestUser — вспомогательное создание пользователя.
func createTestUser(t *testing.T, repo UserRepository, username, email string) *model.User {
	t.Helper()
	u := &model.User{
		ID:       uuid.New().String(),
		Username: username,
		Email:    email,
		Active:   true,
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("Создание пользователя %s: %v", username, err)
	}
	return u
}

// --- Тесты UserRepository ---

func TestUserCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(pool)

	u := createTestUser(t, repo, "alice", "alice@example.com")
	if u.CreatedAt.IsZero() {
		t.Error("CreatedAt не установлен")
	}

	// GetByID / GetByEmail / GetByUsername
	got, err := repo.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Username != "alice" {
		t.Errorf("Username = %q, хотели %q", got.Username, "alice")
	}

	got2, err := repo.GetByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() ошибка: %v", err)
	}
	if got2.ID != u.ID {
		t.Errorf("GetByEmail ID = %q, хотели %q", got2.ID, u.ID)
	}

	if _, err := repo.GetByUsername(ctx, "alice"); err != nil {
		t.Fatalf("GetByUsername() ошибка: %v", err)
	}

	// Update
	u.Username = "alice-renamed"
	if err := repo.Update(ctx, u); err != nil {
		t.Fatalf("Update() ошибка: %v", err)
	}
	got3, _ := repo.GetByID(ctx, u.ID)
	if got3.Username != "alice-renamed" {
		t.Errorf("После Update: Username = %q", got3.Username)
	}

	// Count
	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() ошибка: %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, хотели 1", count)
	}

	// Delete
	if err := repo.Delete(ctx, u.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := repo.GetByID(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("После Delete ожидали ErrNotFound, получили: %v", err)
	}
}

func TestUserUniqueConstraints(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(pool)

	createTestUser(t, repo, "bob", "bob@example.com")

	// Дубликат username
	dup := &model.User{
		ID:       uuid.New().String(),
		Username: "bob",
		Email:    "bob2@example.com",
		Active:   true,
	}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("Дубликат username: ожидали ErrUsernameTaken, получили: %v", err)
	}

	// Дубликат email
	dup2 := &model.User{
		ID:       uuid.New().String(),
		Username: "bob2",
		Email:    "bob@example.com",
		Active:   true,
	}
	if err := repo.Create(ctx, dup2); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("Дубликат email: ожидали ErrEmailTaken, получили: %v", err)
	}
}

// --- Тесты IdentityRepository ---

func TestIdentityRepository(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	userRepo := NewUserRepository(pool)
	idRepo := NewIdentityRepository(pool)

	u := createTestUser(t, userRepo, "carol", "carol@example.com")

	li := &model.LinkedIdentity{
		ID:        uuid.New().String(),
		UserID:    u.ID,
		Provider:  model.ProviderGoogle,
		SubjectID: "google-sub-1",
		Profile:   []byte(`{"name":"Carol"}`),
	}
	if err := idRepo.Create(ctx, li); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	// GetByProviderSubject
	got, err := idRepo.GetByProviderSubject(ctx, model.ProviderGoogle, "google-sub-1")
	if err != nil {
		t.Fatalf("GetByProviderSubject() ошибка: %v", err)
	}
	if got.UserID != u.ID {
		t.Errorf("UserID = %q, хотели %q", got.UserID, u.ID)
	}

	// Тот же (provider, subject_id) для другого пользователя — ErrIdentityTaken
	u2 := createTestUser(t, userRepo, "dave", "dave@example.com")
	dup := &model.LinkedIdentity{
		ID:        uuid.New().String(),
		UserID:    u2.ID,
		Provider:  model.ProviderGoogle,
		SubjectID: "google-sub-1",
	}
	if err := idRepo.Create(ctx, dup); !errors.Is(err, ErrIdentityTaken) {
		t.Errorf("Дубликат identity: ожидали ErrIdentityTaken, получили: %v", err)
	}

	// Второй google у того же пользователя — ErrProviderLinked
	dup2 := &model.LinkedIdentity{
		ID:        uuid.New().String(),
		UserID:    u.ID,
		Provider:  model.ProviderGoogle,
		SubjectID: "google-sub-other",
	}
	if err := idRepo.Create(ctx, dup2); !errors.Is(err, ErrProviderLinked) {
		t.Errorf("Повторный провайдер: ожидали ErrProviderLinked, получили: %v", err)
	}

	// GetEarliestByUser — после добавления github ранней остаётся google
	gh := &model.LinkedIdentity{
		ID:        uuid.New().String(),
		UserID:    u.ID,
		Provider:  model.ProviderGitHub,
		SubjectID: "gh-1",
	}
	if err := idRepo.Create(ctx, gh); err != nil {
		t.Fatalf("Создание github привязки: %v", err)
	}
	earliest, err := idRepo.GetEarliestByUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetEarliestByUser() ошибка: %v", err)
	}
	if earliest.Provider != model.ProviderGoogle {
		t.Errorf("Ранняя привязка = %q, хотели %q", earliest.Provider, model.ProviderGoogle)
	}

	// ListByUser
	list, err := idRepo.ListByUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListByUser() ошибка: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("ListByUser() вернул %d записей, хотели 2", len(list))
	}

	// Delete
	if err := idRepo.Delete(ctx, u.ID, model.ProviderGitHub); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := idRepo.GetByProviderSubject(ctx, model.ProviderGitHub, "gh-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("После Delete ожидали ErrNotFound, получили: %v", err)
	}
}

// --- Тесты EventRepository ---

func TestEventCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	userRepo := NewUserRepository(pool)
	eventRepo := NewEventRepository(pool)

	admin := createTestUser(t, userRepo, "organizer", "organizer@example.com")

	maxP := 100
	e := &model.Event{
		ID:              uuid.New().String(),
		Name:            "Весенний трейл",
		Type:            model.EventTypeTrail,
		AdminUserID:     admin.ID,
		DistanceKm:      21.1,
		ElevationM:      850,
		Country:         "RU",
		Location:        "Сочи",
		Active:          true,
		MaxParticipants: &maxP,
	}
	if err := eventRepo.Create(ctx, e); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if e.EnrolledCount != 0 {
		t.Errorf("EnrolledCount = %d, хотели 0", e.EnrolledCount)
	}

	// GetByID
	got, err := eventRepo.GetByID(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Name != "Весенний трейл" || got.Type != model.EventTypeTrail {
		t.Errorf("Name=%q, Type=%q", got.Name, got.Type)
	}

	// List с фильтром по типу
	trail := model.EventTypeTrail
	list, err := eventRepo.List(ctx, EventFilter{Type: &trail}, 10, 0)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List() вернул %d записей, хотели 1", len(list))
	}

	race := model.EventTypeRace
	empty, err := eventRepo.List(ctx, EventFilter{Type: &race}, 10, 0)
	if err != nil {
		t.Fatalf("List() с фильтром race ошибка: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("List(race) вернул %d записей, хотели 0", len(empty))
	}

	// AdjustEnrolled
	if err := eventRepo.AdjustEnrolled(ctx, e.ID, 1); err != nil {
		t.Fatalf("AdjustEnrolled() ошибка: %v", err)
	}
	got2, _ := eventRepo.GetByID(ctx, e.ID)
	if got2.EnrolledCount != 1 {
		t.Errorf("После AdjustEnrolled: EnrolledCount = %d, хотели 1", got2.EnrolledCount)
	}

	// Update не трогает enrolled_count
	got2.Name = "Осенний трейл"
	if err := eventRepo.Update(ctx, got2); err != nil {
		t.Fatalf("Update() ошибка: %v", err)
	}
	got3, _ := eventRepo.GetByID(ctx, e.ID)
	if got3.Name != "Осенний трейл" {
		t.Errorf("После Update: Name = %q", got3.Name)
	}
	if got3.EnrolledCount != 1 {
		t.Errorf("Update изменил enrolled_count: %d", got3.EnrolledCount)
	}

	// Delete
	if err := eventRepo.Delete(ctx, e.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := eventRepo.GetByID(ctx, e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("После Delete ожидали ErrNotFound, получили: %v", err)
	}
}

// --- Тесты ParticipationRepository ---

func TestParticipationLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	userRepo := NewUserRepository(pool)
	eventRepo := NewEventRepository(pool)
	partRepo := NewParticipationRepository(pool)

	admin := createTestUser(t, userRepo, "org2", "org2@example.com")
	runner := createTestUser(t, userRepo, "runner", "runner@example.com")

	e := &model.Event{
		ID:          uuid.New().String(),
		Name:        "Ночной забег",
		Type:        model.EventTypeRace,
		AdminUserID: admin.ID,
	}
	if err := eventRepo.Create(ctx, e); err != nil {
		t.Fatalf("Создание события: %v", err)
	}

	p := &model.EventParticipation{
		ID:      uuid.New().String(),
		EventID: e.ID,
		UserID:  runner.ID,
	}
	if err := partRepo.Create(ctx, p); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if p.EnrolledAt.IsZero() {
		t.Error("EnrolledAt не установлен")
	}

	// Повторная запись — ErrParticipationExists
	dup := &model.EventParticipation{
		ID:      uuid.New().String(),
		EventID: e.ID,
		UserID:  runner.ID,
	}
	if err := partRepo.Create(ctx, dup); !errors.Is(err, ErrParticipationExists) {
		t.Errorf("Повторная запись: ожидали ErrParticipationExists, получили: %v", err)
	}

	// Update: старт + финиш + чистое время
	start := time.Now().UTC().Truncate(time.Microsecond)
	finish := start.Add(92 * time.Minute)
	net := finish.Sub(start)
	p.StartedAt = &start
	p.FinishedAt = &finish
	p.NetTime = &net
	p.Completed = true
	p.DistanceKm = 10
	if err := partRepo.Update(ctx, p); err != nil {
		t.Fatalf("Update() ошибка: %v", err)
	}

	got, err := partRepo.GetByEventUser(ctx, e.ID, runner.ID)
	if err != nil {
		t.Fatalf("GetByEventUser() ошибка: %v", err)
	}
	if got.NetTime == nil || *got.NetTime != net {
		t.Errorf("NetTime = %v, хотели %v", got.NetTime, net)
	}
	if got.State() != model.StateCompleted {
		t.Errorf("State() = %q, хотели %q", got.State(), model.StateCompleted)
	}

	// BulkReset очищает результаты, но не удаляет строку
	n, err := partRepo.BulkReset(ctx, []string{p.ID, uuid.New().String()})
	if err != nil {
		t.Fatalf("BulkReset() ошибка: %v", err)
	}
	if n != 1 {
		t.Errorf("BulkReset сбросил %d строк, хотели 1", n)
	}
	got2, _ := partRepo.GetByEventUser(ctx, e.ID, runner.ID)
	if got2.StartedAt != nil || got2.FinishedAt != nil || got2.NetTime != nil || got2.Completed {
		t.Errorf("После BulkReset результаты не очищены: %+v", got2)
	}
	if got2.State() != model.StateRegistered {
		t.Errorf("После BulkReset State() = %q, хотели %q", got2.State(), model.StateRegistered)
	}

	// CountByEvent
	count, err := partRepo.CountByEvent(ctx, e.ID)
	if err != nil {
		t.Fatalf("CountByEvent() ошибка: %v", err)
	}
	if count != 1 {
		t.Errorf("CountByEvent() = %d, хотели 1", count)
	}

	// Delete
	if err := partRepo.Delete(ctx, e.ID, runner.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := partRepo.GetByEventUser(ctx, e.ID, runner.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("После Delete ожидали ErrNotFound, получили: %v", err)
	}
}

// --- Тесты AdminGrantRepository ---

func TestAdminGrantRepository(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	userRepo := NewUserRepository(pool)
	eventRepo := NewEventRepository(pool)
	grantRepo := NewAdminGrantRepository(pool)

	owner := createTestUser(t, userRepo, "owner", "owner@example.com")
	helper := createTestUser(t, userRepo, "helper", "helper@example.com")

	e := &model.Event{
		ID:          uuid.New().String(),
		Name:        "Марафон",
		Type:        model.EventTypeRace,
		AdminUserID: owner.ID,
	}
	if err := eventRepo.Create(ctx, e); err != nil {
		t.Fatalf("Создание события: %v", err)
	}

	g := &model.EventAdminGrant{
		ID:      uuid.New().String(),
		EventID: e.ID,
		UserID:  helper.ID,
		Role:    "co-organizer",
	}
	if err := grantRepo.Create(ctx, g); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	// Повторная выдача — ErrGrantExists
	dup := &model.EventAdminGrant{
		ID:      uuid.New().String(),
		EventID: e.ID,
		UserID:  helper.ID,
	}
	if err := grantRepo.Create(ctx, dup); !errors.Is(err, ErrGrantExists) {
		t.Errorf("Повторная выдача: ожидали ErrGrantExists, получили: %v", err)
	}

	// Exists
	ok, err := grantRepo.Exists(ctx, e.ID, helper.ID)
	if err != nil {
		t.Fatalf("Exists() ошибка: %v", err)
	}
	if !ok {
		t.Error("Exists() = false, хотели true")
	}
	ok2, _ := grantRepo.Exists(ctx, e.ID, owner.ID)
	if ok2 {
		t.Error("Exists() для владельца без grant = true, хотели false")
	}

	// Delete
	if err := grantRepo.Delete(ctx, e.ID, helper.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if err := grantRepo.Delete(ctx, e.ID, helper.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Повторный Delete: ожидали ErrNotFound, получили: %v", err)
	}
}

// --- Тесты GPSRepository ---

func TestGPSRepository(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	userRepo := NewUserRepository(pool)
	gpsRepo := NewGPSRepository(pool)

	u := createTestUser(t, userRepo, "tracker", "tracker@example.com")

	t1 := time.Now().UTC().Add(-time.Minute).Truncate(time.Microsecond)
	t2 := time.Now().UTC().Truncate(time.Microsecond)

	loc1 := &model.GPSLocation{
		ID: uuid.New().String(), UserID: u.ID,
		Latitude: 43.58, Longitude: 39.72, RecordedAt: t1,
	}
	loc2 := &model.GPSLocation{
		ID: uuid.New().String(), UserID: u.ID,
		Latitude: 43.60, Longitude: 39.73, RecordedAt: t2,
	}
	for _, loc := range []*model.GPSLocation{loc1, loc2} {
		if err := gpsRepo.InsertLocation(ctx, loc); err != nil {
			t.Fatalf("InsertLocation() ошибка: %v", err)
		}
	}

	// Upsert последней позиции: last write wins
	for _, loc := range []*model.GPSLocation{loc1, loc2} {
		err := gpsRepo.UpsertLatest(ctx, &model.GPSLatest{
			UserID: u.ID, Latitude: loc.Latitude, Longitude: loc.Longitude,
			RecordedAt: loc.RecordedAt,
		})
		if err != nil {
			t.Fatalf("UpsertLatest() ошибка: %v", err)
		}
	}

	latest, err := gpsRepo.GetLatest(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetLatest() ошибка: %v", err)
	}
	if latest.Latitude != 43.60 || !latest.RecordedAt.Equal(t2) {
		t.Errorf("GetLatest() = (%f, %v), хотели (43.60, %v)", latest.Latitude, latest.RecordedAt, t2)
	}

	// History: новые первыми
	history, err := gpsRepo.History(ctx, u.ID, 10, 0)
	if err != nil {
		t.Fatalf("History() ошибка: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("History() вернул %d записей, хотели 2", len(history))
	}
	if !history[0].RecordedAt.Equal(t2) {
		t.Errorf("History()[0].RecordedAt = %v, хотели %v", history[0].RecordedAt, t2)
	}

	// ListLatest
	all, err := gpsRepo.ListLatest(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListLatest() ошибка: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("ListLatest() вернул %d записей, хотели 1", len(all))
	}
}
