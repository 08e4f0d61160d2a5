// gps.go — сервис GPS-трекинга: история точек + последняя позиция.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/geostar/event-module/internal/domain/model"
	"github.com/bigkaa/geostar/event-module/internal/repository"
)

// GPSService — сервис GPS-трекинга.
type GPSService struct {
	txRunner *repository.TxRunner
	gpsRepo  repository.GPSRepository
	logger   *slog.Logger
}

// NewGPSService создаёт сервис GPS-трекинга.
func NewGPSService(
	txRunner *repository.TxRunner,
	gpsRepo repository.GPSRepository,
	logger *slog.Logger,
) *GPSService {
	return &GPSService{
		txRunner: txRunner,
		gpsRepo:  gpsRepo,
		logger:   logger.With(slog.String("component", "gps_service")),
	}
}

// GPSInput — входные данные GPS-точки.
type GPSInput struct {
	Latitude   float64
	Longitude  float64
	Altitude   *float64
	Accuracy   *float64
	RecordedAt *time.Time
}

// Record сохраняет точку в историю и обновляет последнюю позицию
// пользователя в одной транзакции.
func (s *GPSService) Record(ctx context.Context, userID string, in GPSInput) (*model.GPSLocation, error) {
	if in.Latitude < -90 || in.Latitude > 90 {
		return nil, fmt.Errorf("%w: широта вне диапазона [-90, 90]", ErrValidation)
	}
	if in.Longitude < -180 || in.Longitude > 180 {
		return nil, fmt.Errorf("%w: долгота вне диапазона [-180, 180]", ErrValidation)
	}

	recordedAt := time.Now().UTC()
	if in.RecordedAt != nil {
		recordedAt = in.RecordedAt.UTC()
	}

	loc := &model.GPSLocation{
		ID:         uuid.New().String(),
		UserID:     userID,
		Latitude:   in.Latitude,
		Longitude:  in.Longitude,
		Altitude:   in.Altitude,
		Accuracy:   in.Accuracy,
		RecordedAt: recordedAt,
	}

	err := s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		gpsRepo := repository.NewGPSRepository(tx)

		if err := gpsRepo.InsertLocation(ctx, loc); err != nil {
			return err
		}
		return gpsRepo.UpsertLatest(ctx, &model.GPSLatest{
			UserID:     userID,
			Latitude:   loc.Latitude,
			Longitude:  loc.Longitude,
			Altitude:   loc.Altitude,
			Accuracy:   loc.Accuracy,
			RecordedAt: loc.RecordedAt,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("сохранение GPS-точки: %w", err)
	}
	return loc, nil
}

// Latest возвращает последнюю позицию пользователя.
func (s *GPSService) Latest(ctx context.Context, userID string) (*model.GPSLatest, error) {
	l, err := s.gpsRepo.GetLatest(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение последней позиции: %w", err)
	}
	return l, nil
}

// ListLatest возвращает последние позиции пользователей.
func (s *GPSService) ListLatest(ctx context.Context, limit, offset int) ([]*model.GPSLatest, error) {
	list, err := s.gpsRepo.ListLatest(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("получение последних позиций: %w", err)
	}
	return list, nil
}

// History возвращает историю точек пользователя (новые первыми).
func (s *GPSService) History(ctx context.Context, userID string, limit, offset int) ([]*model.GPSLocation, error) {
	list, err := s.gpsRepo.History(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("получение истории GPS: %w", err)
	}
	return list, nil
}
