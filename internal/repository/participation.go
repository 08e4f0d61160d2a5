package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/geostar/event-module/internal/domain/model"
)

// ErrParticipationExists — пользователь уже записан на событие.
var ErrParticipationExists = fmt.Errorf("%w: участие уже существует", ErrConflict)

// ParticipationRepository — интерфейс для таблицы event_participations.
type ParticipationRepository interface {
	// Create создаёт запись участия.
	Create(ctx context.Context, p *model.EventParticipation) error
	// GetByEventUser возвращает участие по (event_id, user_id).
	GetByEventUser(ctx context.Context, eventID, userID string) (*model.EventParticipation, error)
	// GetByEventUserForUpdate — то же с блокировкой строки.
	// Использовать только внутри транзакции.
	GetByEventUserForUpdate(ctx context.Context, eventID, userID string) (*model.EventParticipation, error)
	// ListByEvent возвращает участия события.
	ListByEvent(ctx context.Context, eventID string, limit, offset int) ([]*model.EventParticipation, error)
	// ListByUser возвращает участия пользователя.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.EventParticipation, error)
	// Update обновляет поля результата участия.
	Update(ctx context.Context, p *model.EventParticipation) error
	// Delete удаляет участие по (event_id, user_id).
	Delete(ctx context.Context, eventID, userID string) error
	// BulkReset сбрасывает результаты участий одним запросом:
	// очищает started_at, finished_at, net_time_ns, distance_km
	// и снимает completed. Строки участия и enrolled_count не трогает.
	// Возвращает количество сброшенных строк.
	BulkReset(ctx context.Context, ids []string) (int, error)
	// ResetByEvent сбрасывает результаты всех участий события
	// одним запросом, без постраничной выборки идентификаторов.
	ResetByEvent(ctx context.Context, eventID string) (int, error)
	// CountByEvent возвращает фактическое количество участий события.
	CountByEvent(ctx context.Context, eventID string) (int, error)
}

// participationRepo — реализация ParticipationRepository.
type participationRepo struct {
	db DBTX
}

// NewParticipationRepository создаёт репозиторий участий.
func NewParticipationRepository(db DBTX) ParticipationRepository {
	return &participationRepo{db: db}
}

const participationColumns = `id, event_id, user_id, enrolled_at, started_at,
	finished_at, net_time_ns, completed, distance_km, notes`

// scanParticipation сканирует строку результата в модель EventParticipation.
// net_time_ns хранится как BIGINT и конвертируется в time.Duration.
func scanParticipation(row pgx.Row) (*model.EventParticipation, error) {
	p := &model.EventParticipation{}
	var netNs *int64
	err := row.Scan(
		&p.ID, &p.EventID, &p.UserID, &p.EnrolledAt, &p.StartedAt,
		&p.FinishedAt, &netNs, &p.Completed, &p.DistanceKm, &p.Notes,
	)
	if netNs != nil {
		d := time.Duration(*netNs)
		p.NetTime = &d
	}
	return p, err
}

// netTimeNs конвертирует NetTime модели в значение колонки net_time_ns.
func netTimeNs(p *model.EventParticipation) *int64 {
	if p.NetTime == nil {
		return nil
	}
	ns := int64(*p.NetTime)
	return &ns
}

func (r *participationRepo) Create(ctx context.Context, p *model.EventParticipation) error {
	query := `
		INSERT INTO event_participations (id, event_id, user_id)
		VALUES ($1, $2, $3)
		RETURNING enrolled_at`

	err := r.db.QueryRow(ctx, query, p.ID, p.EventID, p.UserID).Scan(&p.EnrolledAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrParticipationExists
		}
		return fmt.Errorf("ошибка создания участия: %w", err)
	}
	return nil
}

func (r *participationRepo) GetByEventUser(ctx context.Context, eventID, userID string) (*model.EventParticipation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM event_participations
		WHERE event_id = $1 AND user_id = $2`, participationColumns)
	p, err := scanParticipation(r.db.QueryRow(ctx, query, eventID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения участия: %w", err)
	}
	return p, nil
}

func (r *participationRepo) GetByEventUserForUpdate(ctx context.Context, eventID, userID string) (*model.EventParticipation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM event_participations
		WHERE event_id = $1 AND user_id = $2
		FOR UPDATE`, participationColumns)
	p, err := scanParticipation(r.db.QueryRow(ctx, query, eventID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения участия с блокировкой: %w", err)
	}
	return p, nil
}

func (r *participationRepo) ListByEvent(ctx context.Context, eventID string, limit, offset int) ([]*model.EventParticipation, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM event_participations
		WHERE event_id = $1
		ORDER BY enrolled_at, id
		LIMIT $2 OFFSET $3`, participationColumns)

	return r.list(ctx, query, eventID, limit, offset)
}

func (r *participationRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.EventParticipation, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM event_participations
		WHERE user_id = $1
		ORDER BY enrolled_at DESC, id
		LIMIT $2 OFFSET $3`, participationColumns)

	return r.list(ctx, query, userID, limit, offset)
}

func (r *participationRepo) list(ctx context.Context, query string, args ...any) ([]*model.EventParticipation, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка участий: %w", err)
	}
	defer rows.Close()

	var result []*model.EventParticipation
	for rows.Next() {
		p := &model.EventParticipation{}
		var netNs *int64
		if err := rows.Scan(
			&p.ID, &p.EventID, &p.UserID, &p.EnrolledAt, &p.StartedAt,
			&p.FinishedAt, &netNs, &p.Completed, &p.DistanceKm, &p.Notes,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования участия: %w", err)
		}
		if netNs != nil {
			d := time.Duration(*netNs)
			p.NetTime = &d
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *participationRepo) Update(ctx context.Context, p *model.EventParticipation) error {
	query := `
		UPDATE event_participations
		SET started_at = $2, finished_at = $3, net_time_ns = $4,
			completed = $5, distance_km = $6, notes = $7
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		p.ID, p.StartedAt, p.FinishedAt, netTimeNs(p),
		p.Completed, p.DistanceKm, p.Notes,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления участия: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *participationRepo) Delete(ctx context.Context, eventID, userID string) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM event_participations
		WHERE event_id = $1 AND user_id = $2`, eventID, userID)
	if err != nil {
		return fmt.Errorf("ошибка удаления участия: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *participationRepo) BulkReset(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE event_participations
		SET started_at = NULL, finished_at = NULL, net_time_ns = NULL,
			completed = FALSE, distance_km = 0
		WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("ошибка массового сброса участий: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *participationRepo) ResetByEvent(ctx context.Context, eventID string) (int, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE event_participations
		SET started_at = NULL, finished_at = NULL, net_time_ns = NULL,
			completed = FALSE, distance_km = 0
		WHERE event_id = $1`, eventID)
	if err != nil {
		return 0, fmt.Errorf("ошибка сброса участий события: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *participationRepo) CountByEvent(ctx context.Context, eventID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM event_participations WHERE event_id = $1`, eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта участий: %w", err)
	}
	return count, nil
}
