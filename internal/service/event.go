// event.go — сервис управления событиями и административными правами.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/geostar/event-module/internal/domain/model"
	"github.com/bigkaa/geostar/event-module/internal/repository"
)

// EventService — сервис событий.
type EventService struct {
	eventRepo repository.EventRepository
	grantRepo repository.AdminGrantRepository
	logger    *slog.Logger
	now       func() time.Time
}

// NewEventService создаёт сервис событий.
func NewEventService(
	eventRepo repository.EventRepository,
	grantRepo repository.AdminGrantRepository,
	logger *slog.Logger,
) *EventService {
	return &EventService{
		eventRepo: eventRepo,
		grantRepo: grantRepo,
		logger:    logger.With(slog.String("component", "event_service")),
		now:       time.Now,
	}
}

// EventInput — входные данные создания и обновления события.
type EventInput struct {
	Name            string
	Type            string
	Description     string
	DistanceKm      float64
	ElevationM      int
	Country         string
	Location        string
	StartAt         *time.Time
	EndAt           *time.Time
	Active          bool
	MaxParticipants *int
}

// validate проверяет входные данные события.
func (in *EventInput) validate() error {
	if in.Name == "" {
		return fmt.Errorf("%w: пустое название события", ErrValidation)
	}
	if !model.KnownEventType(in.Type) {
		return fmt.Errorf("%w: неизвестный тип события %q", ErrValidation, in.Type)
	}
	if in.DistanceKm < 0 {
		return fmt.Errorf("%w: отрицательная дистанция", ErrValidation)
	}
	if in.MaxParticipants != nil && *in.MaxParticipants <= 0 {
		return fmt.Errorf("%w: лимит участников должен быть положительным", ErrValidation)
	}
	if in.StartAt != nil && in.EndAt != nil && in.EndAt.Before(*in.StartAt) {
		return fmt.Errorf("%w: окончание события раньше начала", ErrValidation)
	}
	return nil
}

// Create создаёт событие. Владельцем становится adminUserID.
func (s *EventService) Create(ctx context.Context, adminUserID string, in EventInput) (*model.Event, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	e := &model.Event{
		ID:              uuid.New().String(),
		Name:            in.Name,
		Type:            in.Type,
		AdminUserID:     adminUserID,
		Description:     in.Description,
		DistanceKm:      in.DistanceKm,
		ElevationM:      in.ElevationM,
		Country:         in.Country,
		Location:        in.Location,
		StartAt:         in.StartAt,
		EndAt:           in.EndAt,
		Active:          in.Active,
		MaxParticipants: in.MaxParticipants,
	}
	e.DeriveActive(s.now())

	if err := s.eventRepo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("создание события: %w", err)
	}

	s.logger.Info("событие создано",
		slog.String("event_id", e.ID),
		slog.String("name", e.Name),
		slog.String("admin_user_id", adminUserID),
	)
	return e, nil
}

// Get возвращает событие по ID.
func (s *EventService) Get(ctx context.Context, id string) (*model.Event, error) {
	e, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение события: %w", err)
	}
	return e, nil
}

// List возвращает список событий с фильтрацией и пагинацией.
func (s *EventService) List(ctx context.Context, filter repository.EventFilter, limit, offset int) ([]*model.Event, int, error) {
	events, err := s.eventRepo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение списка событий: %w", err)
	}
	total, err := s.eventRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт событий: %w", err)
	}
	return events, total, nil
}

// Update обновляет событие. Разрешено только администраторам события.
func (s *EventService) Update(ctx context.Context, id, actorID string, in EventInput) (*model.Event, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, e, actorID); err != nil {
		return nil, err
	}

	e.Name = in.Name
	e.Type = in.Type
	e.Description = in.Description
	e.DistanceKm = in.DistanceKm
	e.ElevationM = in.ElevationM
	e.Country = in.Country
	e.Location = in.Location
	e.StartAt = in.StartAt
	e.EndAt = in.EndAt
	e.Active = in.Active
	e.MaxParticipants = in.MaxParticipants
	e.DeriveActive(s.now())

	if err := s.eventRepo.Update(ctx, e); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("обновление события: %w", err)
	}

	s.logger.Info("событие обновлено", slog.String("event_id", id))
	return e, nil
}

// Delete удаляет событие. Разрешено только владельцу.
func (s *EventService) Delete(ctx context.Context, id, actorID string) error {
	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if e.AdminUserID != actorID {
		return fmt.Errorf("%w: удалять событие может только владелец", ErrForbidden)
	}

	if err := s.eventRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление события: %w", err)
	}

	s.logger.Info("событие удалено", slog.String("event_id", id))
	return nil
}

// IsAdmin сообщает, является ли пользователь администратором события:
// владельцем или обладателем выданного права.
func (s *EventService) IsAdmin(ctx context.Context, e *model.Event, userID string) (bool, error) {
	if e.AdminUserID == userID {
		return true, nil
	}
	ok, err := s.grantRepo.Exists(ctx, e.ID, userID)
	if err != nil {
		return false, fmt.Errorf("проверка административного права: %w", err)
	}
	return ok, nil
}

// requireAdmin возвращает ErrForbidden, если actor не администратор события.
func (s *EventService) requireAdmin(ctx context.Context, e *model.Event, actorID string) error {
	ok, err := s.IsAdmin(ctx, e, actorID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: требуется право администратора события", ErrForbidden)
	}
	return nil
}

// Grant выдаёт административное право на событие.
// Выдавать права может только администратор события.
func (s *EventService) Grant(ctx context.Context, eventID, actorID, userID, role string) (*model.EventAdminGrant, error) {
	e, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, e, actorID); err != nil {
		return nil, err
	}
	if userID == e.AdminUserID {
		return nil, fmt.Errorf("%w: владелец уже администратор", ErrValidation)
	}

	g := &model.EventAdminGrant{
		ID:      uuid.New().String(),
		EventID: eventID,
		UserID:  userID,
		Role:    role,
	}
	if err := s.grantRepo.Create(ctx, g); err != nil {
		if errors.Is(err, repository.ErrGrantExists) {
			return nil, fmt.Errorf("%w: право уже выдано", ErrConflict)
		}
		return nil, fmt.Errorf("выдача права: %w", err)
	}

	s.logger.Info("выдано административное право",
		slog.String("event_id", eventID),
		slog.String("user_id", userID),
	)
	return g, nil
}

// Revoke отзывает административное право.
func (s *EventService) Revoke(ctx context.Context, eventID, actorID, userID string) error {
	e, err := s.Get(ctx, eventID)
	if err != nil {
		return err
	}
	if err := s.requireAdmin(ctx, e, actorID); err != nil {
		return err
	}

	if err := s.grantRepo.Delete(ctx, eventID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("отзыв права: %w", err)
	}

	s.logger.Info("административное право отозвано",
		slog.String("event_id", eventID),
		slog.String("user_id", userID),
	)
	return nil
}

// Grants возвращает выданные права события. Доступно администраторам.
func (s *EventService) Grants(ctx context.Context, eventID, actorID string) ([]*model.EventAdminGrant, error) {
	e, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, e, actorID); err != nil {
		return nil, err
	}

	grants, err := s.grantRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("получение списка прав: %w", err)
	}
	return grants, nil
}
