package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/geostar/event-module/internal/domain/model"
)

// EventFilter — фильтры списка событий.
type EventFilter struct {
	// Active — фильтр по флагу активности (nil — без фильтра)
	Active *bool
	// Type — фильтр по типу события (nil — без фильтра)
	Type *string
	// AdminUserID — фильтр по владельцу (nil — без фильтра)
	AdminUserID *string
}

// EventRepository — интерфейс CRUD для таблицы events.
type EventRepository interface {
	// Create создаёт новое событие.
	Create(ctx context.Context, e *model.Event) error
	// GetByID возвращает событие по UUID.
	GetByID(ctx context.Context, id string) (*model.Event, error)
	// GetForUpdate возвращает событие по UUID с блокировкой строки
	// (SELECT ... FOR UPDATE). Использовать только внутри транзакции:
	// блокировка сериализует конкурентные записи на событие.
	GetForUpdate(ctx context.Context, id string) (*model.Event, error)
	// List возвращает список событий с фильтрацией.
	List(ctx context.Context, filter EventFilter, limit, offset int) ([]*model.Event, error)
	// Update обновляет событие. Поле enrolled_count не трогает:
	// им управляет только AdjustEnrolled.
	Update(ctx context.Context, e *model.Event) error
	// Delete удаляет событие.
	Delete(ctx context.Context, id string) error
	// AdjustEnrolled меняет кэш enrolled_count на delta.
	// Вызывается только в одной транзакции с созданием или
	// удалением строки участия.
	AdjustEnrolled(ctx context.Context, id string, delta int) error
	// Count возвращает количество событий по фильтру.
	Count(ctx context.Context, filter EventFilter) (int, error)
}

// eventRepo — реализация EventRepository.
type eventRepo struct {
	db DBTX
}

// NewEventRepository создаёт репозиторий событий.
func NewEventRepository(db DBTX) EventRepository {
	return &eventRepo{db: db}
}

const eventColumns = `id, name, type, admin_user_id, description, distance_km,
	elevation_m, country, location, start_at, end_at, active,
	enrolled_count, max_participants, created_at, updated_at`

// scanEvent сканирует строку результата в модель Event.
func scanEvent(row pgx.Row) (*model.Event, error) {
	e := &model.Event{}
	err := row.Scan(
		&e.ID, &e.Name, &e.Type, &e.AdminUserID, &e.Description, &e.DistanceKm,
		&e.ElevationM, &e.Country, &e.Location, &e.StartAt, &e.EndAt, &e.Active,
		&e.EnrolledCount, &e.MaxParticipants, &e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

func (r *eventRepo) Create(ctx context.Context, e *model.Event) error {
	query := `
		INSERT INTO events (id, name, type, admin_user_id, description, distance_km,
			elevation_m, country, location, start_at, end_at, active, max_participants)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING enrolled_count, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		e.ID, e.Name, e.Type, e.AdminUserID, e.Description, e.DistanceKm,
		e.ElevationM, e.Country, e.Location, e.StartAt, e.EndAt, e.Active,
		e.MaxParticipants,
	).Scan(&e.EnrolledCount, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: событие уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания события: %w", err)
	}
	return nil
}

func (r *eventRepo) GetByID(ctx context.Context, id string) (*model.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM events WHERE id = $1`, eventColumns)
	e, err := scanEvent(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения события: %w", err)
	}
	return e, nil
}

func (r *eventRepo) GetForUpdate(ctx context.Context, id string) (*model.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM events WHERE id = $1 FOR UPDATE`, eventColumns)
	e, err := scanEvent(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения события с блокировкой: %w", err)
	}
	return e, nil
}

func (r *eventRepo) List(ctx context.Context, filter EventFilter, limit, offset int) ([]*model.Event, error) {
	where, args := buildEventWhere(filter)
	argNum := len(args) + 1

	query := fmt.Sprintf(`
		SELECT %s
		FROM events
		%s
		ORDER BY start_at DESC NULLS LAST, created_at DESC
		LIMIT $%d OFFSET $%d`, eventColumns, where, argNum, argNum+1)

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка событий: %w", err)
	}
	defer rows.Close()

	var result []*model.Event
	for rows.Next() {
		e := &model.Event{}
		if err := rows.Scan(
			&e.ID, &e.Name, &e.Type, &e.AdminUserID, &e.Description, &e.DistanceKm,
			&e.ElevationM, &e.Country, &e.Location, &e.StartAt, &e.EndAt, &e.Active,
			&e.EnrolledCount, &e.MaxParticipants, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования события: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *eventRepo) Update(ctx context.Context, e *model.Event) error {
	query := `
		UPDATE events
		SET name = $2, type = $3, description = $4, distance_km = $5,
			elevation_m = $6, country = $7, location = $8,
			start_at = $9, end_at = $10, active = $11, max_participants = $12,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		e.ID, e.Name, e.Type, e.Description, e.DistanceKm,
		e.ElevationM, e.Country, e.Location,
		e.StartAt, e.EndAt, e.Active, e.MaxParticipants,
	).Scan(&e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления события: %w", err)
	}
	return nil
}

func (r *eventRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления события: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *eventRepo) AdjustEnrolled(ctx context.Context, id string, delta int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE events
		SET enrolled_count = enrolled_count + $2, updated_at = now()
		WHERE id = $1`, id, delta)
	if err != nil {
		return fmt.Errorf("ошибка изменения enrolled_count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *eventRepo) Count(ctx context.Context, filter EventFilter) (int, error) {
	where, args := buildEventWhere(filter)
	query := "SELECT COUNT(*) FROM events " + where

	var count int
	err := r.db.QueryRow(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта событий: %w", err)
	}
	return count, nil
}

// buildEventWhere собирает WHERE-часть запроса из фильтра.
func buildEventWhere(filter EventFilter) (string, []any) {
	var conditions []string
	var args []any
	argNum := 1

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", argNum))
		args = append(args, *filter.Active)
		argNum++
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argNum))
		args = append(args, *filter.Type)
		argNum++
	}
	if filter.AdminUserID != nil {
		conditions = append(conditions, fmt.Sprintf("admin_user_id = $%d", argNum))
		args = append(args, *filter.AdminUserID)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}
