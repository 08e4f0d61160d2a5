// Пакет auth — выпуск и проверка JWT сервиса и хэширование паролей.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordTooLong — пароль длиннее лимита bcrypt (72 байта).
var ErrPasswordTooLong = errors.New("пароль длиннее 72 байт")

// BcryptHasher — хэширование паролей через bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher создаёт хэшер со стандартной стоимостью bcrypt.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: bcrypt.DefaultCost}
}

// Hash возвращает bcrypt-хэш пароля.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if len(password) > 72 {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("ошибка bcrypt: %w", err)
	}
	return string(hash), nil
}

// Compare проверяет пароль против хэша.
func (h *BcryptHasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
