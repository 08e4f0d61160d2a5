package repository

import (
	"context"
	"fmt"

	"github.com/bigkaa/geostar/event-module/internal/domain/model"
)

// ErrGrantExists — у пользователя уже есть право на это событие.
var ErrGrantExists = fmt.Errorf("%w: право уже выдано", ErrConflict)

// AdminGrantRepository — интерфейс для таблицы event_admin_grants.
type AdminGrantRepository interface {
	// Create выдаёт административное право на событие.
	Create(ctx context.Context, g *model.EventAdminGrant) error
	// Delete отзывает право.
	Delete(ctx context.Context, eventID, userID string) error
	// ListByEvent возвращает права события.
	ListByEvent(ctx context.Context, eventID string) ([]*model.EventAdminGrant, error)
	// Exists проверяет наличие права у пользователя.
	Exists(ctx context.Context, eventID, userID string) (bool, error)
}

// adminGrantRepo — реализация AdminGrantRepository.
type adminGrantRepo struct {
	db DBTX
}

// NewAdminGrantRepository создаёт репозиторий административных прав.
func NewAdminGrantRepository(db DBTX) AdminGrantRepository {
	return &adminGrantRepo{db: db}
}

func (r *adminGrantRepo) Create(ctx context.Context, g *model.EventAdminGrant) error {
	query := `
		INSERT INTO event_admin_grants (id, event_id, user_id, role)
		VALUES ($1, $2, $3, $4)
		RETURNING assigned_at`

	err := r.db.QueryRow(ctx, query, g.ID, g.EventID, g.UserID, g.Role).Scan(&g.AssignedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrGrantExists
		}
		return fmt.Errorf("ошибка выдачи права: %w", err)
	}
	return nil
}

func (r *adminGrantRepo) Delete(ctx context.Context, eventID, userID string) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM event_admin_grants
		WHERE event_id = $1 AND user_id = $2`, eventID, userID)
	if err != nil {
		return fmt.Errorf("ошибка отзыва права: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *adminGrantRepo) ListByEvent(ctx context.Context, eventID string) ([]*model.EventAdminGrant, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, event_id, user_id, role, assigned_at
		FROM event_admin_grants
		WHERE event_id = $1
		ORDER BY assigned_at, id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка прав: %w", err)
	}
	defer rows.Close()

	var result []*model.EventAdminGrant
	for rows.Next() {
		g := &model.EventAdminGrant{}
		if err := rows.Scan(&g.ID, &g.EventID, &g.UserID, &g.Role, &g.AssignedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования права: %w", err)
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func (r *adminGrantRepo) Exists(ctx context.Context, eventID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM event_admin_grants
			WHERE event_id = $1 AND user_id = $2
		)`, eventID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки права: %w", err)
	}
	return exists, nil
}
