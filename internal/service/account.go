// account.go — сервис локальных аккаунтов: регистрация по email и паролю,
// проверка учётных данных, управление профилем.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"

	"github.com/google/uuid"

	"github.com/bigkaa/geostar/event-module/internal/domain/model"
	"github.com/bigkaa/geostar/event-module/internal/repository"
)

// PasswordHasher — хэширование и проверка паролей.
// Реализуется пакетом auth (bcrypt).
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// AccountService — сервис локальных аккаунтов.
type AccountService struct {
	userRepo repository.UserRepository
	hasher   PasswordHasher
	logger   *slog.Logger
}

// NewAccountService создаёт сервис аккаунтов.
func NewAccountService(
	userRepo repository.UserRepository,
	hasher PasswordHasher,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		userRepo: userRepo,
		hasher:   hasher,
		logger:   logger.With(slog.String("component", "account_service")),
	}
}

// минимальная длина пароля при регистрации
const minPasswordLen = 8

// Register создаёт аккаунт с email и паролем.
func (s *AccountService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: пустой username", ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: некорректный email", ErrValidation)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: пароль короче %d символов", ErrValidation, minPasswordLen)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("хэширование пароля: %w", err)
	}

	u := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: &hash,
		Active:       true,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, fmt.Errorf("%w: username %q уже занят", ErrConflict, username)
		}
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, fmt.Errorf("%w: email уже зарегистрирован", ErrConflict)
		}
		return nil, fmt.Errorf("создание аккаунта: %w", err)
	}

	s.logger.Info("аккаунт зарегистрирован",
		slog.String("user_id", u.ID),
		slog.String("username", username),
	)
	return u, nil
}

// Authenticate проверяет учётные данные и возвращает аккаунт.
// Неизвестный email, отсутствие пароля у аккаунта и неверный пароль
// неразличимы для вызывающего — всегда ErrInvalidCredentials.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("поиск аккаунта: %w", err)
	}
	if !u.Active || !u.HasPassword() {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(*u.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Get возвращает аккаунт по ID.
func (s *AccountService) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение аккаунта: %w", err)
	}
	return u, nil
}

// List возвращает список аккаунтов с пагинацией.
func (s *AccountService) List(ctx context.Context, limit, offset int) ([]*model.User, int, error) {
	users, err := s.userRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение списка аккаунтов: %w", err)
	}
	total, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт аккаунтов: %w", err)
	}
	return users, total, nil
}

// UpdateProfile обновляет username аккаунта.
func (s *AccountService) UpdateProfile(ctx context.Context, id, username string) (*model.User, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: пустой username", ErrValidation)
	}

	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Username = username

	if err := s.userRepo.Update(ctx, u); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, fmt.Errorf("%w: username %q уже занят", ErrConflict, username)
		}
		return nil, fmt.Errorf("обновление аккаунта: %w", err)
	}

	s.logger.Info("профиль обновлён", slog.String("user_id", id))
	return u, nil
}

// ChangePassword меняет пароль аккаунта.
// Для аккаунтов с паролем требуется текущий пароль; identity-only
// аккаунты задают пароль впервые без проверки.
func (s *AccountService) ChangePassword(ctx context.Context, id, current, next string) error {
	if len(next) < minPasswordLen {
		return fmt.Errorf("%w: пароль короче %d символов", ErrValidation, minPasswordLen)
	}

	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if u.HasPassword() {
		if err := s.hasher.Compare(*u.PasswordHash, current); err != nil {
			return ErrInvalidCredentials
		}
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("хэширование пароля: %w", err)
	}
	u.PasswordHash = &hash

	if err := s.userRepo.Update(ctx, u); err != nil {
		return fmt.Errorf("обновление аккаунта: %w", err)
	}

	s.logger.Info("пароль изменён", slog.String("user_id", id))
	return nil
}

// Delete удаляет аккаунт. Привязки, участия и GPS-данные удаляются
// каскадно на уровне БД.
func (s *AccountService) Delete(ctx context.Context, id string) error {
	if err := s.userRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление аккаунта: %w", err)
	}

	s.logger.Info("аккаунт удалён", slog.String("user_id", id))
	return nil
}
