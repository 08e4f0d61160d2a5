package model

import "time"

// GPSLocation — точка GPS-трека пользователя.
// Хранится в таблице gps_locations (история, только добавление).
type GPSLocation struct {
	// ID — UUID записи
	ID string
	// UserID — владелец точки
	UserID string
	// Latitude — широта в градусах
	Latitude float64
	// Longitude — долгота в градусах
	Longitude float64
	// Altitude — высота в метрах (опционально)
	Altitude *float64
	// Accuracy — точность GPS в метрах (опционально)
	Accuracy *float64
	// RecordedAt — время фиксации точки
	RecordedAt time.Time
}

// GPSLatest — последняя известная позиция пользователя.
// Хранится в таблице gps_latest, одна строка на пользователя,
// перезаписывается по принципу last write wins.
type GPSLatest struct {
	// UserID — пользователь (первичный ключ)
	UserID string
	// Latitude — широта в градусах
	Latitude float64
	// Longitude — долгота в градусах
	Longitude float64
	// Altitude — высота в метрах (опционально)
	Altitude *float64
	// Accuracy — точность GPS в метрах (опционально)
	Accuracy *float64
	// RecordedAt — время фиксации позиции
	RecordedAt time.Time
}
