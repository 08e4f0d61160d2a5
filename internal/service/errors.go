// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"

	"github.com/bigkaa/geostar/event-module/internal/repository"
)

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — конфликт (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — ресурс уже существует")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrForbidden — недостаточно прав для операции.
	ErrForbidden = errors.New("недостаточно прав")
	// ErrInvalidCredentials — неверные учётные данные.
	ErrInvalidCredentials = errors.New("неверные учётные данные")
	// ErrIdentityConflict — identity конфликтует с существующими привязками:
	// у найденного по email аккаунта уже привязан этот провайдер
	// с другим subject_id.
	ErrIdentityConflict = errors.New("identity конфликтует с существующей привязкой")
	// ErrUsernameExhausted — не удалось подобрать свободный username
	// за допустимое число попыток.
	ErrUsernameExhausted = errors.New("исчерпаны попытки подбора username")
	// ErrAlreadyEnrolled — пользователь уже записан на событие.
	ErrAlreadyEnrolled = errors.New("пользователь уже записан на событие")
	// ErrCapacityExceeded — достигнут лимит участников события.
	ErrCapacityExceeded = errors.New("достигнут лимит участников")
	// ErrNotEnrolled — пользователь не записан на событие.
	ErrNotEnrolled = errors.New("пользователь не записан на событие")
	// ErrInvalidState — операция недопустима в текущем состоянии участия.
	ErrInvalidState = errors.New("недопустимое состояние участия")
	// ErrNegativeDuration — время финиша раньше времени старта.
	ErrNegativeDuration = errors.New("время финиша раньше времени старта")
	// ErrStorageUnavailable — хранилище недоступно.
	ErrStorageUnavailable = errors.New("хранилище недоступно")
)

// StorageUnavailable сообщает, вызвана ли ошибка потерей связи
// с PostgreSQL. Сервисы оборачивают ошибки репозиториев через %w,
// поэтому классификация работает по всей цепочке. Транспортный слой
// отвечает на такие ошибки 503 — клиент может повторить запрос.
func StorageUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) || repository.IsUnavailable(err)
}
