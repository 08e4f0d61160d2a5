package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/geostar/event-module/internal/domain/model"
)

// Ошибки уникальности таблицы linked_identities.
var (
	// ErrIdentityTaken — (provider, subject_id) уже привязан к другому пользователю.
	ErrIdentityTaken = fmt.Errorf("%w: identity уже привязана", ErrConflict)
	// ErrProviderLinked — у пользователя уже есть привязка этого провайдера.
	ErrProviderLinked = fmt.Errorf("%w: провайдер уже привязан к аккаунту", ErrConflict)
)

// IdentityRepository — интерфейс для таблицы linked_identities.
type IdentityRepository interface {
	// Create создаёт привязку identity к пользователю.
	Create(ctx context.Context, li *model.LinkedIdentity) error
	// GetByProviderSubject возвращает привязку по (provider, subject_id).
	GetByProviderSubject(ctx context.Context, provider, subjectID string) (*model.LinkedIdentity, error)
	// ListByUser возвращает привязки пользователя (старые первыми).
	ListByUser(ctx context.Context, userID string) ([]*model.LinkedIdentity, error)
	// GetEarliestByUser возвращает самую раннюю привязку пользователя.
	GetEarliestByUser(ctx context.Context, userID string) (*model.LinkedIdentity, error)
	// UpdateProfile обновляет сырой профиль привязки.
	UpdateProfile(ctx context.Context, id string, profile []byte) error
	// Delete удаляет привязку провайдера у пользователя.
	Delete(ctx context.Context, userID, provider string) error
}

// identityRepo — реализация IdentityRepository.
type identityRepo struct {
	db DBTX
}

// NewIdentityRepository создаёт репозиторий привязок identity.
func NewIdentityRepository(db DBTX) IdentityRepository {
	return &identityRepo{db: db}
}

const identityColumns = `id, user_id, provider, subject_id, profile, created_at, updated_at`

// scanIdentity сканирует строку результата в модель LinkedIdentity.
func scanIdentity(row pgx.Row) (*model.LinkedIdentity, error) {
	li := &model.LinkedIdentity{}
	err := row.Scan(
		&li.ID, &li.UserID, &li.Provider, &li.SubjectID, &li.Profile,
		&li.CreatedAt, &li.UpdatedAt,
	)
	return li, err
}

func (r *identityRepo) Create(ctx context.Context, li *model.LinkedIdentity) error {
	query := `
		INSERT INTO linked_identities (id, user_id, provider, subject_id, profile)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		li.ID, li.UserID, li.Provider, li.SubjectID, li.Profile,
	).Scan(&li.CreatedAt, &li.UpdatedAt)
	if err != nil {
		switch uniqueConstraint(err) {
		case "linked_identities_provider_subject_key":
			return ErrIdentityTaken
		case "linked_identities_user_provider_key":
			return ErrProviderLinked
		}
		return fmt.Errorf("ошибка создания привязки identity: %w", err)
	}
	return nil
}

func (r *identityRepo) GetByProviderSubject(ctx context.Context, provider, subjectID string) (*model.LinkedIdentity, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM linked_identities
		WHERE provider = $1 AND subject_id = $2`, identityColumns)
	li, err := scanIdentity(r.db.QueryRow(ctx, query, provider, subjectID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения привязки identity: %w", err)
	}
	return li, nil
}

func (r *identityRepo) ListByUser(ctx context.Context, userID string) ([]*model.LinkedIdentity, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM linked_identities
		WHERE user_id = $1
		ORDER BY created_at, id`, identityColumns)

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения привязок пользователя: %w", err)
	}
	defer rows.Close()

	var result []*model.LinkedIdentity
	for rows.Next() {
		li := &model.LinkedIdentity{}
		if err := rows.Scan(
			&li.ID, &li.UserID, &li.Provider, &li.SubjectID, &li.Profile,
			&li.CreatedAt, &li.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования привязки: %w", err)
		}
		result = append(result, li)
	}
	return result, rows.Err()
}

func (r *identityRepo) GetEarliestByUser(ctx context.Context, userID string) (*model.LinkedIdentity, error) {
	// Порядок (created_at, id) детерминирован и при равных created_at
	query := fmt.Sprintf(`
		SELECT %s FROM linked_identities
		WHERE user_id = $1
		ORDER BY created_at, id
		LIMIT 1`, identityColumns)
	li, err := scanIdentity(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения ранней привязки: %w", err)
	}
	return li, nil
}

func (r *identityRepo) UpdateProfile(ctx context.Context, id string, profile []byte) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE linked_identities
		SET profile = $2, updated_at = now()
		WHERE id = $1`, id, profile)
	if err != nil {
		return fmt.Errorf("ошибка обновления профиля привязки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *identityRepo) Delete(ctx context.Context, userID, provider string) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM linked_identities
		WHERE user_id = $1 AND provider = $2`, userID, provider)
	if err != nil {
		return fmt.Errorf("ошибка удаления привязки identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
