package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/geostar/event-module/internal/domain/model"
)

// GPSRepository — интерфейс для таблиц gps_locations и gps_latest.
type GPSRepository interface {
	// InsertLocation добавляет точку в историю трека.
	InsertLocation(ctx context.Context, loc *model.GPSLocation) error
	// UpsertLatest перезаписывает последнюю позицию пользователя
	// (last write wins).
	UpsertLatest(ctx context.Context, latest *model.GPSLatest) error
	// GetLatest возвращает последнюю позицию пользователя.
	GetLatest(ctx context.Context, userID string) (*model.GPSLatest, error)
	// ListLatest возвращает последние позиции всех пользователей.
	ListLatest(ctx context.Context, limit, offset int) ([]*model.GPSLatest, error)
	// History возвращает историю точек пользователя (новые первыми).
	History(ctx context.Context, userID string, limit, offset int) ([]*model.GPSLocation, error)
}

// gpsRepo — реализация GPSRepository.
type gpsRepo struct {
	db DBTX
}

// NewGPSRepository создаёт репозиторий GPS-данных.
func NewGPSRepository(db DBTX) GPSRepository {
	return &gpsRepo{db: db}
}

func (r *gpsRepo) InsertLocation(ctx context.Context, loc *model.GPSLocation) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO gps_locations (id, user_id, latitude, longitude, altitude, accuracy, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		loc.ID, loc.UserID, loc.Latitude, loc.Longitude, loc.Altitude, loc.Accuracy, loc.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка записи GPS-точки: %w", err)
	}
	return nil
}

func (r *gpsRepo) UpsertLatest(ctx context.Context, latest *model.GPSLatest) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO gps_latest (user_id, latitude, longitude, altitude, accuracy, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
			altitude = EXCLUDED.altitude, accuracy = EXCLUDED.accuracy,
			recorded_at = EXCLUDED.recorded_at`,
		latest.UserID, latest.Latitude, latest.Longitude, latest.Altitude, latest.Accuracy, latest.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления последней позиции: %w", err)
	}
	return nil
}

func (r *gpsRepo) GetLatest(ctx context.Context, userID string) (*model.GPSLatest, error) {
	l := &model.GPSLatest{}
	err := r.db.QueryRow(ctx, `
		SELECT user_id, latitude, longitude, altitude, accuracy, recorded_at
		FROM gps_latest
		WHERE user_id = $1`, userID,
	).Scan(&l.UserID, &l.Latitude, &l.Longitude, &l.Altitude, &l.Accuracy, &l.RecordedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения последней позиции: %w", err)
	}
	return l, nil
}

func (r *gpsRepo) ListLatest(ctx context.Context, limit, offset int) ([]*model.GPSLatest, error) {
	rows, err := r.db.Query(ctx, `
		SELECT user_id, latitude, longitude, altitude, accuracy, recorded_at
		FROM gps_latest
		ORDER BY recorded_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения последних позиций: %w", err)
	}
	defer rows.Close()

	var result []*model.GPSLatest
	for rows.Next() {
		l := &model.GPSLatest{}
		if err := rows.Scan(&l.UserID, &l.Latitude, &l.Longitude, &l.Altitude, &l.Accuracy, &l.RecordedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования позиции: %w", err)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

func (r *gpsRepo) History(ctx context.Context, userID string, limit, offset int) ([]*model.GPSLocation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, latitude, longitude, altitude, accuracy, recorded_at
		FROM gps_locations
		WHERE user_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории GPS: %w", err)
	}
	defer rows.Close()

	var result []*model.GPSLocation
	for rows.Next() {
		loc := &model.GPSLocation{}
		if err := rows.Scan(
			&loc.ID, &loc.UserID, &loc.Latitude, &loc.Longitude,
			&loc.Altitude, &loc.Accuracy, &loc.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования GPS-точки: %w", err)
		}
		result = append(result, loc)
	}
	return result, rows.Err()
}
