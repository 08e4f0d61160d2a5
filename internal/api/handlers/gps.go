// gps.go — обработчики /api/v1/gps endpoints.
// Приём GPS-точек, последняя позиция и история трека.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/geostar/event-module/internal/api/errors"
	"github.com/bigkaa/geostar/event-module/internal/api/middleware"
	"github.com/bigkaa/geostar/event-module/internal/domain/model"
	"github.com/bigkaa/geostar/event-module/internal/service"
)

// gpsLocationResponse — представление GPS-точки в API.
type gpsLocationResponse struct {
	UserID     string   `json:"user_id"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Altitude   *float64 `json:"altitude,omitempty"`
	Accuracy   *float64 `json:"accuracy,omitempty"`
	RecordedAt string   `json:"recorded_at"`
}

// mapLocation конвертирует точку истории в ответ API.
func mapLocation(l *model.GPSLocation) gpsLocationResponse {
	return gpsLocationResponse{
		UserID:     l.UserID,
		Latitude:   l.Latitude,
		Longitude:  l.Longitude,
		Altitude:   l.Altitude,
		Accuracy:   l.Accuracy,
		RecordedAt: l.RecordedAt.UTC().Format(time.RFC3339),
	}
}

// mapLatest конвертирует последнюю позицию в ответ API.
func mapLatest(l *model.GPSLatest) gpsLocationResponse {
	return gpsLocationResponse{
		UserID:     l.UserID,
		Latitude:   l.Latitude,
		Longitude:  l.Longitude,
		Altitude:   l.Altitude,
		Accuracy:   l.Accuracy,
		RecordedAt: l.RecordedAt.UTC().Format(time.RFC3339),
	}
}

// RecordLocation — POST /api/v1/gps/locations.
// Сохраняет GPS-точку текущего пользователя и обновляет его
// последнюю позицию.
func (h *APIHandler) RecordLocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Latitude   float64    `json:"latitude"`
		Longitude  float64    `json:"longitude"`
		Altitude   *float64   `json:"altitude"`
		Accuracy   *float64   `json:"accuracy"`
		RecordedAt *time.Time `json:"recorded_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	loc, err := h.gps.Record(r.Context(), middleware.SubjectFromContext(r.Context()), service.GPSInput{
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Altitude:   req.Altitude,
		Accuracy:   req.Accuracy,
		RecordedAt: req.RecordedAt,
	})
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			apierrors.ValidationError(w, err.Error())
			return
		}
		h.writeServerError(w, err, "Ошибка записи GPS-точки")
		return
	}
	writeJSON(w, http.StatusCreated, mapLocation(loc))
}

// ListLatestLocations — GET /api/v1/gps/latest.
// Возвращает последние позиции пользователей.
func (h *APIHandler) ListLatestLocations(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationFromQuery(r)

	list, err := h.gps.ListLatest(r.Context(), limit, offset)
	if err != nil {
		h.writeServerError(w, err, "Ошибка получения последних позиций")
		return
	}

	items := make([]gpsLocationResponse, len(list))
	for i, l := range list {
		items[i] = mapLatest(l)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// GetLatestLocation — GET /api/v1/gps/latest/{user_id}.
// Возвращает последнюю позицию пользователя.
func (h *APIHandler) GetLatestLocation(w http.ResponseWriter, r *http.Request) {
	l, err := h.gps.Latest(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Позиция пользователя неизвестна")
			return
		}
		h.writeServerError(w, err, "Ошибка получения позиции")
		return
	}
	writeJSON(w, http.StatusOK, mapLatest(l))
}

// GetMyLocationHistory — GET /api/v1/gps/locations.
// Возвращает историю точек текущего пользователя (новые первыми).
func (h *APIHandler) GetMyLocationHistory(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationFromQuery(r)

	list, err := h.gps.History(r.Context(), middleware.SubjectFromContext(r.Context()), limit, offset)
	if err != nil {
		h.writeServerError(w, err, "Ошибка получения истории GPS")
		return
	}

	items := make([]gpsLocationResponse, len(list))
	for i, l := range list {
		items[i] = mapLocation(l)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
