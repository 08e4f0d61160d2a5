// participation.go — сервис участия в событиях.
// Запись и отмена записи меняют кэш enrolled_count строго в одной
// транзакции со строкой участия; конкурентные записи на одно событие
// сериализуются блокировкой строки события (SELECT ... FOR UPDATE).
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

// ParticipationService — сервис участия в событиях.
type ParticipationService struct {
	txRunner  *repository.TxRunner
	eventRepo repository.EventRepository
	partRepo  repository.ParticipationRepository
	logger    *slog.Logger
}

// NewParticipationService создаёт сервис участия.
func NewParticipationService(
	txRunner *repository.TxRunner,
	eventRepo repository.EventRepository,
	partRepo repository.ParticipationRepository,
	logger *slog.Logger,
) *ParticipationService {
	return &ParticipationService{
		txRunner:  txRunner,
		eventRepo: eventRepo,
		partRepo:  partRepo,
		logger:    logger.With(slog.String("component", "participation_service")),
	}
}

// Enroll записывает пользователя на событие.
//
// В одной транзакции: блокировка строки события, проверка лимита
// участников, создание строки участия, инкремент enrolled_count.
// Блокировка гарантирует, что при лимите N событие никогда не получит
// больше N участников, сколько бы записей ни шло одновременно.
func (s *ParticipationService) Enroll(ctx context.Context, eventID, userID string) (*model.EventParticipation, error) {
	var created *model.EventParticipation

	err := s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		eventRepo := repository.NewEventRepository(tx)
		partRepo := repository.NewParticipationRepository(tx)

		e, err := eventRepo.GetForUpdate(ctx, eventID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("получение события: %w", err)
		}

		// Вставка до проверки лимита: уже записанный пользователь
		// получает ErrAlreadyEnrolled даже на заполненном событии.
		// При превышении лимита откат транзакции удаляет вставку.
		p := &model.EventParticipation{
			ID:      uuid.New().String(),
			EventID: eventID,
			UserID:  userID,
		}
		if err := partRepo.Create(ctx, p); err != nil {
			if errors.Is(err, repository.ErrParticipationExists) {
				return ErrAlreadyEnrolled
			}
			return fmt.Errorf("создание участия: %w", err)
		}

		if e.AtCapacity() {
			return fmt.Errorf("%w: событие %s, лимит %d", ErrCapacityExceeded, eventID, *e.MaxParticipants)
		}

		if err := eventRepo.AdjustEnrolled(ctx, eventID, 1); err != nil {
			return fmt.Errorf("инкремент enrolled_count: %w", err)
		}

		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("пользователь записан на событие",
		slog.String("event_id", eventID),
		slog.String("user_id", userID),
	)
	return created, nil
}

// Unenroll отменяет запись пользователя на событие.
// Удаление строки участия и декремент enrolled_count — в одной транзакции.
func (s *ParticipationService) Unenroll(ctx context.Context, eventID, userID string) error {
	err := s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		eventRepo := repository.NewEventRepository(tx)
		partRepo := repository.NewParticipationRepository(tx)

		if _, err := eventRepo.GetForUpdate(ctx, eventID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("получение события: %w", err)
		}

		if err := partRepo.Delete(ctx, eventID, userID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotEnrolled
			}
			return fmt.Errorf("удаление участия: %w", err)
		}

		if err := eventRepo.AdjustEnrolled(ctx, eventID, -1); err != nil {
			return fmt.Errorf("декремент enrolled_count: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("запись на событие отменена",
		slog.String("event_id", eventID),
		slog.String("user_id", userID),
	)
	return nil
}

// Start фиксирует старт участника.
// Допустим только из состояния Registered; повторный старт — ErrInvalidState.
func (s *ParticipationService) Start(ctx context.Context, eventID, userID string, at time.Time) (*model.EventParticipation, error) {
	return s.transition(ctx, eventID, userID, func(p *model.EventParticipation) error {
		if p.State() != model.StateRegistered {
			return fmt.Errorf("%w: старт допустим только из состояния %s, текущее — %s",
				ErrInvalidState, model.StateRegistered, p.State())
		}
		t := at.UTC()
		p.StartedAt = &t
		return nil
	})
}

// Finish фиксирует финиш участника и вычисляет чистое время.
// Допустим только из состояния Active. Финиш раньше старта — ErrNegativeDuration.
func (s *ParticipationService) Finish(ctx context.Context, eventID, userID string, at time.Time, distanceKm float64) (*model.EventParticipation, error) {
	if distanceKm < 0 {
		return nil, fmt.Errorf("%w: отрицательная дистанция", ErrValidation)
	}
	return s.transition(ctx, eventID, userID, func(p *model.EventParticipation) error {
		if p.State() != model.StateActive {
			return fmt.Errorf("%w: финиш допустим только из состояния %s, текущее — %s",
				ErrInvalidState, model.StateActive, p.State())
		}
		t := at.UTC()
		if t.Before(*p.StartedAt) {
			return fmt.Errorf("%w: финиш %s раньше старта %s",
				ErrNegativeDuration, t.Format(time.RFC3339), p.StartedAt.Format(time.RFC3339))
		}
		net := t.Sub(*p.StartedAt)
		p.FinishedAt = &t
		p.NetTime = &net
		p.Completed = true
		if distanceKm > 0 {
			p.DistanceKm = distanceKm
		}
		return nil
	})
}

// transition выполняет переход состояния участия в транзакции
// с блокировкой строки участия.
func (s *ParticipationService) transition(ctx context.Context, eventID, userID string, apply func(*model.EventParticipation) error) (*model.EventParticipation, error) {
	var updated *model.EventParticipation

	err := s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		partRepo := repository.NewParticipationRepository(tx)

		p, err := partRepo.GetByEventUserForUpdate(ctx, eventID, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotEnrolled
			}
			return fmt.Errorf("получение участия: %w", err)
		}

		if err := apply(p); err != nil {
			return err
		}

		if err := partRepo.Update(ctx, p); err != nil {
			return fmt.Errorf("обновление участия: %w", err)
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// BulkReset сбрасывает результаты указанных участий одним запросом.
// Строки участия остаются, enrolled_count не меняется. Идентификаторы,
// которых нет в БД, молча пропускаются. Возвращает число сброшенных строк.
func (s *ParticipationService) BulkReset(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := s.partRepo.BulkReset(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("массовый сброс участий: %w", err)
	}

	s.logger.Info("результаты участий сброшены",
		slog.Int("requested", len(ids)),
		slog.Int("reset", n),
	)
	return n, nil
}

// ResetEvent сбрасывает результаты всех участий события.
// В отличие от BulkReset не требует перечисления идентификаторов,
// поэтому охватывает события любого размера.
func (s *ParticipationService) ResetEvent(ctx context.Context, eventID string) (int, error) {
	n, err := s.partRepo.ResetByEvent(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("сброс участий события: %w", err)
	}

	s.logger.Info("результаты участий события сброшены",
		slog.String("event_id", eventID),
		slog.Int("reset", n),
	)
	return n, nil
}

// Get возвращает участие пользователя в событии.
func (s *ParticipationService) Get(ctx context.Context, eventID, userID string) (*model.EventParticipation, error) {
	p, err := s.partRepo.GetByEventUser(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotEnrolled
		}
		return nil, fmt.Errorf("получение участия: %w", err)
	}
	return p, nil
}

// ListByEvent возвращает участия события с пагинацией.
func (s *ParticipationService) ListByEvent(ctx context.Context, eventID string, limit, offset int) ([]*model.EventParticipation, int, error) {
	list, err := s.partRepo.ListByEvent(ctx, eventID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение участий события: %w", err)
	}
	total, err := s.partRepo.CountByEvent(ctx, eventID)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт участий события: %w", err)
	}
	return list, total, nil
}

// ListByUser возвращает участия пользователя с пагинацией.
func (s *ParticipationService) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.EventParticipation, error) {
	list, err := s.partRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("получение участий пользователя: %w", err)
	}
	return list, nil
}
