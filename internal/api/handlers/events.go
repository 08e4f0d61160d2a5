// events.go — обработчики /api/v1/events endpoints.
// CRUD событий и управление административными правами.
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
	"github.com/bigkaa/geostar/event-module/internal/repository"
	"github.com/bigkaa/geostar/event-module/internal/service"
)

// eventRequest — тело создания и обновления события.
type eventRequest struct {
	Name            string     `json:"name"`
	Type            string     `json:"type"`
	Description     string     `json:"description"`
	DistanceKm      float64    `json:"distance_km"`
	ElevationM      int        `json:"elevation_m"`
	Country         string     `json:"country"`
	Location        string     `json:"location"`
	StartAt         *time.Time `json:"start_at"`
	EndAt           *time.Time `json:"end_at"`
	Active          bool       `json:"active"`
	MaxParticipants *int       `json:"max_participants"`
}

// input конвертирует тело запроса во вход сервисного слоя.
func (req *eventRequest) input() service.EventInput {
	return service.EventInput{
		Name:            req.Name,
		Type:            req.Type,
		Description:     req.Description,
		DistanceKm:      req.DistanceKm,
		ElevationM:      req.ElevationM,
		Country:         req.Country,
		Location:        req.Location,
		StartAt:         req.StartAt,
		EndAt:           req.EndAt,
		Active:          req.Active,
		MaxParticipants: req.MaxParticipants,
	}
}

// eventResponse — представление события в API.
type eventResponse struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Type            string     `json:"type"`
	AdminUserID     string     `json:"admin_user_id"`
	Description     string     `json:"description"`
	DistanceKm      float64    `json:"distance_km"`
	ElevationM      int        `json:"elevation_m"`
	Country         string     `json:"country"`
	Location        string     `json:"location"`
	StartAt         *time.Time `json:"start_at"`
	EndAt           *time.Time `json:"end_at"`
	Active          bool       `json:"active"`
	EnrolledCount   int        `json:"enrolled_count"`
	MaxParticipants *int       `json:"max_participants"`
	CreatedAt       string     `json:"created_at"`
}

// mapEvent конвертирует модель события в ответ API.
func mapEvent(e *model.Event) eventResponse {
	return eventResponse{
		ID:              e.ID,
		Name:            e.Name,
		Type:            e.Type,
		AdminUserID:     e.AdminUserID,
		Description:     e.Description,
		DistanceKm:      e.DistanceKm,
		ElevationM:      e.ElevationM,
		Country:         e.Country,
		Location:        e.Location,
		StartAt:         e.StartAt,
		EndAt:           e.EndAt,
		Active:          e.Active,
		EnrolledCount:   e.EnrolledCount,
		MaxParticipants: e.MaxParticipants,
		CreatedAt:       e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// writeEventError маппит ошибки сервиса событий в HTTP-ответы.
func (h *APIHandler) writeEventError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Событие не найдено")
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	case service.StorageUnavailable(err):
		h.logger.Warn("Хранилище недоступно", "op", op, "error", err)
		apierrors.StorageUnavailable(w, "Хранилище временно недоступно, повторите запрос позже")
	default:
		h.logger.Error("Ошибка операции с событием", "op", op, "error", err)
		apierrors.InternalError(w, "Ошибка операции с событием")
	}
}

// CreateEvent — POST /api/v1/events.
// Создаёт событие; владельцем становится текущий пользователь.
func (h *APIHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	e, err := h.events.Create(r.Context(), middleware.SubjectFromContext(r.Context()), req.input())
	if err != nil {
		h.writeEventError(w, err, "create")
		return
	}
	writeJSON(w, http.StatusCreated, mapEvent(e))
}

// ListEvents — GET /api/v1/events.
// Возвращает список событий с фильтрами active, type, admin_user_id.
func (h *APIHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationFromQuery(r)
	q := r.URL.Query()

	var filter repository.EventFilter
	if raw := q.Get("active"); raw != "" {
		active := raw == "true"
		filter.Active = &active
	}
	if raw := q.Get("type"); raw != "" {
		if !model.KnownEventType(raw) {
			apierrors.ValidationError(w, "Неизвестный тип события: "+raw)
			return
		}
		filter.Type = &raw
	}
	if raw := q.Get("admin_user_id"); raw != "" {
		filter.AdminUserID = &raw
	}

	events, total, err := h.events.List(r.Context(), filter, limit, offset)
	if err != nil {
		h.writeEventError(w, err, "list")
		return
	}

	items := make([]eventResponse, len(events))
	for i, e := range events {
		items[i] = mapEvent(e)
	}
	writeJSON(w, http.StatusOK, newListResponse(items, total, limit, offset))
}

// GetEvent — GET /api/v1/events/{id}.
func (h *APIHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := h.events.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeEventError(w, err, "get")
		return
	}
	writeJSON(w, http.StatusOK, mapEvent(e))
}

// UpdateEvent — PUT /api/v1/events/{id}.
// Доступ: администраторы события.
func (h *APIHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	e, err := h.events.Update(r.Context(), chi.URLParam(r, "id"),
		middleware.SubjectFromContext(r.Context()), req.input())
	if err != nil {
		h.writeEventError(w, err, "update")
		return
	}
	writeJSON(w, http.StatusOK, mapEvent(e))
}

// DeleteEvent — DELETE /api/v1/events/{id}.
// Доступ: владелец события.
func (h *APIHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	err := h.events.Delete(r.Context(), chi.URLParam(r, "id"), middleware.SubjectFromContext(r.Context()))
	if err != nil {
		h.writeEventError(w, err, "delete")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// grantResponse — представление административного права в API.
type grantResponse struct {
	UserID     string `json:"user_id"`
	Role       string `json:"role,omitempty"`
	AssignedAt string `json:"assigned_at"`
}

// ListEventAdmins — GET /api/v1/events/{id}/admins.
// Доступ: администраторы события.
func (h *APIHandler) ListEventAdmins(w http.ResponseWriter, r *http.Request) {
	grants, err := h.events.Grants(r.Context(), chi.URLParam(r, "id"), middleware.SubjectFromContext(r.Context()))
	if err != nil {
		h.writeEventError(w, err, "list_admins")
		return
	}

	items := make([]grantResponse, len(grants))
	for i, g := range grants {
		items[i] = grantResponse{
			UserID:     g.UserID,
			Role:       g.Role,
			AssignedAt: g.AssignedAt.UTC().Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// GrantEventAdmin — POST /api/v1/events/{id}/admins.
// Выдаёт административное право на событие.
func (h *APIHandler) GrantEventAdmin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if req.UserID == "" {
		apierrors.ValidationError(w, "Пустой user_id")
		return
	}

	g, err := h.events.Grant(r.Context(), chi.URLParam(r, "id"),
		middleware.SubjectFromContext(r.Context()), req.UserID, req.Role)
	if err != nil {
		h.writeEventError(w, err, "grant_admin")
		return
	}
	writeJSON(w, http.StatusCreated, grantResponse{
		UserID:     g.UserID,
		Role:       g.Role,
		AssignedAt: g.AssignedAt.UTC().Format(time.RFC3339),
	})
}

// RevokeEventAdmin — DELETE /api/v1/events/{id}/admins/{user_id}.
// Отзывает административное право.
func (h *APIHandler) RevokeEventAdmin(w http.ResponseWriter, r *http.Request) {
	err := h.events.Revoke(r.Context(), chi.URLParam(r, "id"),
		middleware.SubjectFromContext(r.Context()), chi.URLParam(r, "user_id"))
	if err != nil {
		h.writeEventError(w, err, "revoke_admin")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
