// identity.go — сервис разрешения identity сторонних провайдеров.
// Проверенная у провайдера identity (provider, subject_id) разрешается
// в локальный аккаунт: по существующей привязке, по совпадению email
// или созданием нового аккаунта с подбором свободного username.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/geostar/event-module/internal/domain/model"
	"github.com/bigkaa/geostar/event-module/internal/repository"
)

// VerifiedIdentity — identity, уже проверенная у провайдера.
// Email считается подтверждённым провайдером.
type VerifiedIdentity struct {
	// Provider — имя провайдера (google, github)
	Provider string
	// SubjectID — идентификатор субъекта у провайдера
	SubjectID string
	// Email — подтверждённый email
	Email string
	// Profile — сырой профиль от провайдера (JSON)
	Profile []byte
}

// IdentityService — сервис разрешения identity.
type IdentityService struct {
	txRunner    *repository.TxRunner
	userRepo    repository.UserRepository
	idRepo      repository.IdentityRepository
	maxAttempts int
	logger      *slog.Logger
}

// NewIdentityService создаёт сервис разрешения identity.
// maxAttempts ограничивает подбор свободного username (EM_USERNAME_MAX_ATTEMPTS).
func NewIdentityService(
	txRunner *repository.TxRunner,
	userRepo repository.UserRepository,
	idRepo repository.IdentityRepository,
	maxAttempts int,
	logger *slog.Logger,
) *IdentityService {
	return &IdentityService{
		txRunner:    txRunner,
		userRepo:    userRepo,
		idRepo:      idRepo,
		maxAttempts: maxAttempts,
		logger:      logger.With(slog.String("component", "identity_service")),
	}
}

// ResolveOrCreate разрешает проверенную identity в локальный аккаунт.
//
// Порядок разрешения (в одной транзакции):
//  1. Привязка (provider, subject_id) существует — вернуть её аккаунт.
//  2. Аккаунт с таким email существует — привязать identity к нему.
//     Если у аккаунта уже привязан этот провайдер с другим subject_id —
//     ErrIdentityConflict.
//  3. Иначе создать аккаунт с username из email и привязать identity.
//
// Конкурентные запросы одной identity сериализуются ограничениями
// уникальности БД: проигравший гонку повторяет разрешение и находит
// привязку победителя.
func (s *IdentityService) ResolveOrCreate(ctx context.Context, vi VerifiedIdentity) (*model.User, error) {
	if !model.KnownProvider(vi.Provider) {
		return nil, fmt.Errorf("%w: неизвестный провайдер %q", ErrValidation, vi.Provider)
	}
	if vi.SubjectID == "" {
		return nil, fmt.Errorf("%w: пустой subject_id", ErrValidation)
	}
	if vi.Email == "" {
		return nil, fmt.Errorf("%w: провайдер не вернул подтверждённый email", ErrValidation)
	}

	// Две попытки: проигравший гонку за (provider, subject_id)
	// на второй попытке находит привязку победителя.
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		user, err := s.resolveOnce(ctx, vi)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, repository.ErrIdentityTaken) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("разрешение identity после повтора: %w", lastErr)
}

// resolveOnce — одна попытка разрешения в транзакции.
func (s *IdentityService) resolveOnce(ctx context.Context, vi VerifiedIdentity) (*model.User, error) {
	var resolved *model.User

	err := s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		userRepo := repository.NewUserRepository(tx)
		idRepo := repository.NewIdentityRepository(tx)

		// 1. Существующая привязка
		li, err := idRepo.GetByProviderSubject(ctx, vi.Provider, vi.SubjectID)
		if err == nil {
			// Профиль провайдера обновляется при каждом входе
			if len(vi.Profile) > 0 {
				if err := idRepo.UpdateProfile(ctx, li.ID, vi.Profile); err != nil {
					return fmt.Errorf("обновление профиля привязки: %w", err)
				}
			}
			u, err := userRepo.GetByID(ctx, li.UserID)
			if err != nil {
				return fmt.Errorf("получение аккаунта по привязке: %w", err)
			}
			resolved = u
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("поиск привязки: %w", err)
		}

		// 2. Аккаунт с тем же email
		u, err := userRepo.GetByEmail(ctx, vi.Email)
		if err == nil {
			if err := s.linkTo(ctx, idRepo, u, vi); err != nil {
				return err
			}
			resolved = u
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("поиск аккаунта по email: %w", err)
		}

		// 3. Новый аккаунт
		u, err = s.createUser(ctx, userRepo, vi.Email)
		if err != nil {
			return err
		}
		if err := s.linkTo(ctx, idRepo, u, vi); err != nil {
			return err
		}
		resolved = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("identity разрешена",
		slog.String("provider", vi.Provider),
		slog.String("user_id", resolved.ID),
	)
	return resolved, nil
}

// linkTo привязывает identity к аккаунту.
func (s *IdentityService) linkTo(ctx context.Context, idRepo repository.IdentityRepository, u *model.User, vi VerifiedIdentity) error {
	li := &model.LinkedIdentity{
		ID:        uuid.New().String(),
		UserID:    u.ID,
		Provider:  vi.Provider,
		SubjectID: vi.SubjectID,
		Profile:   vi.Profile,
	}
	err := idRepo.Create(ctx, li)
	if errors.Is(err, repository.ErrProviderLinked) {
		// Тот же провайдер уже привязан к аккаунту с другим subject_id
		return fmt.Errorf("%w: провайдер %s уже привязан к аккаунту %s",
			ErrIdentityConflict, vi.Provider, u.ID)
	}
	return err
}

// createUser создаёт аккаунт с username, выведенным из email.
// При занятом username добавляется числовой суффикс; число попыток
// ограничено maxAttempts.
func (s *IdentityService) createUser(ctx context.Context, userRepo repository.UserRepository, email string) (*model.User, error) {
	base := usernameBase(email)

	for i := 0; i < s.maxAttempts; i++ {
		username := base
		if i > 0 {
			username = fmt.Sprintf("%s%d", base, i)
		}

		u := &model.User{
			ID:       uuid.New().String(),
			Username: username,
			Email:    email,
			Active:   true,
		}
		err := userRepo.Create(ctx, u)
		if err == nil {
			s.logger.Info("создан аккаунт из identity",
				slog.String("user_id", u.ID),
				slog.String("username", username),
			)
			return u, nil
		}
		if errors.Is(err, repository.ErrUsernameTaken) {
			continue
		}
		if errors.Is(err, repository.ErrEmailTaken) {
			// Email появился между поиском и созданием — конфликт разрешит
			// повтор внешнего цикла
			return nil, repository.ErrIdentityTaken
		}
		return nil, fmt.Errorf("создание аккаунта: %w", err)
	}

	return nil, fmt.Errorf("%w: base=%q, попыток=%d", ErrUsernameExhausted, base, s.maxAttempts)
}

// ProviderFor возвращает провайдера самой ранней привязки аккаунта.
// Для аккаунтов без привязок возвращает "email".
func (s *IdentityService) ProviderFor(ctx context.Context, userID string) (string, error) {
	li, err := s.idRepo.GetEarliestByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.ProviderEmail, nil
		}
		return "", fmt.Errorf("получение привязок аккаунта: %w", err)
	}
	return li.Provider, nil
}

// Link привязывает проверенную identity к существующему аккаунту
// (операция «привязать провайдера» из профиля).
func (s *IdentityService) Link(ctx context.Context, userID string, vi VerifiedIdentity) error {
	if !model.KnownProvider(vi.Provider) {
		return fmt.Errorf("%w: неизвестный провайдер %q", ErrValidation, vi.Provider)
	}

	li := &model.LinkedIdentity{
		ID:        uuid.New().String(),
		UserID:    userID,
		Provider:  vi.Provider,
		SubjectID: vi.SubjectID,
		Profile:   vi.Profile,
	}
	err := s.idRepo.Create(ctx, li)
	if err != nil {
		if errors.Is(err, repository.ErrIdentityTaken) {
			return fmt.Errorf("%w: identity привязана к другому аккаунту", ErrIdentityConflict)
		}
		if errors.Is(err, repository.ErrProviderLinked) {
			return fmt.Errorf("%w: провайдер %s уже привязан", ErrConflict, vi.Provider)
		}
		return fmt.Errorf("привязка identity: %w", err)
	}

	s.logger.Info("identity привязана к аккаунту",
		slog.String("user_id", userID),
		slog.String("provider", vi.Provider),
	)
	return nil
}

// Unlink отвязывает провайдера от аккаунта.
func (s *IdentityService) Unlink(ctx context.Context, userID, provider string) error {
	if !model.KnownProvider(provider) {
		return fmt.Errorf("%w: неизвестный провайдер %q", ErrValidation, provider)
	}
	err := s.idRepo.Delete(ctx, userID, provider)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("отвязка identity: %w", err)
	}
	return nil
}

// ListLinked возвращает привязки аккаунта.
func (s *IdentityService) ListLinked(ctx context.Context, userID string) ([]*model.LinkedIdentity, error) {
	list, err := s.idRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("получение привязок: %w", err)
	}
	return list, nil
}

// usernameBase выводит базовый username из email: local-part в нижнем
// регистре, только буквы, цифры, точка, дефис и подчёркивание.
func usernameBase(email string) string {
	local := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		local = email[:at]
	}

	var b strings.Builder
	for _, r := range strings.ToLower(local) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}
