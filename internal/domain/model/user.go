// Пакет model — доменные модели Event Module.
package model

import "time"

// Поддерживаемые сторонние провайдеры identity.
const (
	// ProviderGoogle — вход через Google (проверка ID-токена)
	ProviderGoogle = "google"
	// ProviderGitHub — вход через GitHub (проверка access-токена)
	ProviderGitHub = "github"
	// ProviderEmail — sentinel для аккаунтов без привязанных identity
	ProviderEmail = "email"
)

// KnownProvider проверяет, что имя провайдера поддерживается.
func KnownProvider(p string) bool {
	return p == ProviderGoogle || p == ProviderGitHub
}

// User — локальный аккаунт.
// Хранится в таблице users.
type User struct {
	// ID — UUID записи
	ID string
	// Username — уникальное имя пользователя
	Username string
	// Email — уникальный адрес электронной почты
	Email string
	// PasswordHash — bcrypt-хэш пароля (nil для identity-only аккаунтов)
	PasswordHash *string
	// Active — активен ли аккаунт
	Active bool
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// HasPassword сообщает, задан ли у аккаунта пароль.
// Identity-only аккаунты (созданные из сторонней identity) пароля не имеют.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// LinkedIdentity — привязка локального аккаунта к стороннему провайдеру.
// Хранится в таблице linked_identities.
// Инварианты: не более одной записи на (user, provider);
// (provider, subject_id) указывает не более чем на одного пользователя.
type LinkedIdentity struct {
	// ID — UUID записи
	ID string
	// UserID — владелец привязки
	UserID string
	// Provider — имя провайдера (google, github)
	Provider string
	// SubjectID — идентификатор субъекта, выданный провайдером (sub)
	SubjectID string
	// Profile — сырой профиль от провайдера (JSON, как есть)
	Profile []byte
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}
