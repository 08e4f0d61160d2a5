package model

import "time"

// Типы событий.
const (
	// EventTypeTrail — трейл
	EventTypeTrail = "trail"
	// EventTypeRace — забег
	EventTypeRace = "race"
	// EventTypeCasual — любительское событие
	EventTypeCasual = "casual"
)

// KnownEventType проверяет, что тип события допустим.
func KnownEventType(t string) bool {
	return t == EventTypeTrail || t == EventTypeRace || t == EventTypeCasual
}

// Event — спортивное событие.
// Хранится в таблице events.
type Event struct {
	// ID — UUID записи
	ID string
	// Name — название события
	Name string
	// Type — тип события (trail, race, casual)
	Type string
	// AdminUserID — владелец события (основной администратор)
	AdminUserID string
	// Description — описание
	Description string
	// DistanceKm — дистанция в километрах
	DistanceKm float64
	// ElevationM — набор высоты в метрах
	ElevationM int
	// Country — страна проведения
	Country string
	// Location — место проведения
	Location string
	// StartAt — плановое время старта (nil если не назначено)
	StartAt *time.Time
	// EndAt — плановое время завершения (nil если не назначено)
	EndAt *time.Time
	// Active — активно ли событие. При заданных StartAt и EndAt
	// выводится из условия StartAt <= now <= EndAt, иначе ставится вручную.
	Active bool
	// EnrolledCount — кэшированное количество записанных участников.
	// Должно совпадать с COUNT строк event_participations в любой момент.
	EnrolledCount int
	// MaxParticipants — лимит участников (nil — без лимита)
	MaxParticipants *int
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// IsUpcoming сообщает, что событие ещё не началось.
func (e *Event) IsUpcoming(now time.Time) bool {
	return e.StartAt != nil && e.StartAt.After(now)
}

// IsOngoing сообщает, что событие идёт прямо сейчас
// (оба плановых времени заданы и now между ними).
func (e *Event) IsOngoing(now time.Time) bool {
	return e.StartAt != nil && e.EndAt != nil &&
		!now.Before(*e.StartAt) && !now.After(*e.EndAt)
}

// IsPast сообщает, что событие завершилось.
func (e *Event) IsPast(now time.Time) bool {
	return e.EndAt != nil && e.EndAt.Before(now)
}

// DeriveActive пересчитывает флаг Active из планового окна.
// Если оба времени заданы — Active выводится, иначе текущее значение
// сохраняется (ручное управление флагом).
func (e *Event) DeriveActive(now time.Time) {
	if e.StartAt != nil && e.EndAt != nil {
		e.Active = e.IsOngoing(now)
	}
}

// AtCapacity сообщает, достигнут ли лимит участников.
func (e *Event) AtCapacity() bool {
	return e.MaxParticipants != nil && e.EnrolledCount >= *e.MaxParticipants
}

// ParticipationState — состояние участия в событии.
type ParticipationState string

const (
	// StateRegistered — записан, старт не зафиксирован
	StateRegistered ParticipationState = "registered"
	// StateActive — стартовал, финиш не зафиксирован
	StateActive ParticipationState = "active"
	// StateCompleted — финишировал
	StateCompleted ParticipationState = "completed"
)

// EventParticipation — участие пользователя в событии.
// Хранится в таблице event_participations.
// Инвариант: уникально по (event, user); создание и удаление строки
// меняют Event.EnrolledCount ровно на единицу в той же транзакции.
type EventParticipation struct {
	// ID — UUID записи
	ID string
	// EventID — событие
	EventID string
	// UserID — участник
	UserID string
	// EnrolledAt — время записи на событие
	EnrolledAt time.Time
	// StartedAt — фактическое время старта участника (nil до старта)
	StartedAt *time.Time
	// FinishedAt — фактическое время финиша (nil до финиша)
	FinishedAt *time.Time
	// NetTime — чистое время (FinishedAt - StartedAt, nil до финиша)
	NetTime *time.Duration
	// Completed — участник финишировал
	Completed bool
	// DistanceKm — пройденная дистанция в километрах
	DistanceKm float64
	// Notes — заметки об участии
	Notes string
}

// State возвращает текущее состояние участия.
// Переходы монотонны: Registered → Active → Completed;
// назад возвращает только административный bulk reset.
func (p *EventParticipation) State() ParticipationState {
	switch {
	case p.FinishedAt != nil:
		return StateCompleted
	case p.StartedAt != nil:
		return StateActive
	default:
		return StateRegistered
	}
}

// EventAdminGrant — дополнительное административное право на событие,
// помимо основного владельца. Уникально по (event, user).
// Хранится в таблице event_admin_grants.
type EventAdminGrant struct {
	// ID — UUID записи
	ID string
	// EventID — событие
	EventID string
	// UserID — пользователь, получивший право
	UserID string
	// Role — описание роли (опционально, например "co-organizer")
	Role string
	// AssignedAt — время выдачи права
	AssignedAt time.Time
}
