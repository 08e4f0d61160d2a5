// Пакет provider — проверка токенов сторонних Identity Provider.
// Каждый провайдер превращает токен клиента в проверенную identity
// с подтверждённым email; сервис никогда не доверяет данным клиента
// без проверки у провайдера.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Ошибки проверки identity.
var (
	// ErrTokenInvalid — токен не прошёл проверку у провайдера.
	ErrTokenInvalid = errors.New("токен провайдера не прошёл проверку")
	// ErrEmailUnverified — провайдер не подтвердил email.
	ErrEmailUnverified = errors.New("провайдер не подтвердил email")
	// ErrUnavailable — провайдер недоступен.
	ErrUnavailable = errors.New("провайдер недоступен")
	// ErrUnknownProvider — провайдер не зарегистрирован.
	ErrUnknownProvider = errors.New("неизвестный провайдер")
)

// Identity — проверенная identity от провайдера.
type Identity struct {
	// Provider — имя провайдера
	Provider string
	// SubjectID — стабильный идентификатор субъекта у провайдера
	SubjectID string
	// Email — подтверждённый провайдером email
	Email string
	// Profile — сырой профиль от провайдера (JSON)
	Profile []byte
}

// Verifier — проверка токена у конкретного провайдера.
type Verifier interface {
	// Name возвращает имя провайдера.
	Name() string
	// Verify проверяет токен и возвращает identity.
	Verify(ctx context.Context, token string) (*Identity, error)
}

// Registry — реестр зарегистрированных провайдеров.
type Registry struct {
	verifiers map[string]Verifier
}

// NewRegistry создаёт реестр из списка провайдеров.
func NewRegistry(verifiers ...Verifier) *Registry {
	m := make(map[string]Verifier, len(verifiers))
	for _, v := range verifiers {
		m[v.Name()] = v
	}
	return &Registry{verifiers: m}
}

// Verify проверяет токен у провайдера по имени.
func (r *Registry) Verify(ctx context.Context, providerName, token string) (*Identity, error) {
	v, ok := r.verifiers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
	}
	return v.Verify(ctx, token)
}

// Has сообщает, зарегистрирован ли провайдер.
func (r *Registry) Has(providerName string) bool {
	_, ok := r.verifiers[providerName]
	return ok
}
