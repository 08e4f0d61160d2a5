// participations.go — обработчики участия в событиях.
// Запись, отмена записи, фиксация старта и финиша, массовый сброс
// результатов, списки участников.
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

// participationResponse — представление участия в API.
type participationResponse struct {
	ID         string     `json:"id"`
	EventID    string     `json:"event_id"`
	UserID     string     `json:"user_id"`
	State      string     `json:"state"`
	EnrolledAt string     `json:"enrolled_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	// NetTimeMs — чистое время в миллисекундах
	NetTimeMs  *int64  `json:"net_time_ms,omitempty"`
	Completed  bool    `json:"completed"`
	DistanceKm float64 `json:"distance_km"`
	Notes      string  `json:"notes,omitempty"`
}

// mapParticipation конвертирует модель участия в ответ API.
func mapParticipation(p *model.EventParticipation) participationResponse {
	resp := participationResponse{
		ID:         p.ID,
		EventID:    p.EventID,
		UserID:     p.UserID,
		State:      string(p.State()),
		EnrolledAt: p.EnrolledAt.UTC().Format(time.RFC3339),
		StartedAt:  p.StartedAt,
		FinishedAt: p.FinishedAt,
		Completed:  p.Completed,
		DistanceKm: p.DistanceKm,
		Notes:      p.Notes,
	}
	if p.NetTime != nil {
		ms := p.NetTime.Milliseconds()
		resp.NetTimeMs = &ms
	}
	return resp
}

// writeParticipationError маппит ошибки сервиса участия в HTTP-ответы.
func (h *APIHandler) writeParticipationError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Событие не найдено")
	case errors.Is(err, service.ErrAlreadyEnrolled):
		apierrors.AlreadyEnrolled(w, "Пользователь уже записан на событие")
	case errors.Is(err, service.ErrCapacityExceeded):
		apierrors.CapacityExceeded(w, "Достигнут лимит участников события")
	case errors.Is(err, service.ErrNotEnrolled):
		apierrors.NotEnrolled(w, "Пользователь не записан на событие")
	case errors.Is(err, service.ErrInvalidState):
		apierrors.InvalidState(w, err.Error())
	case errors.Is(err, service.ErrNegativeDuration):
		apierrors.NegativeDuration(w, err.Error())
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, err.Error())
	case service.StorageUnavailable(err):
		h.logger.Warn("Хранилище недоступно", "op", op, "error", err)
		apierrors.StorageUnavailable(w, "Хранилище временно недоступно, повторите запрос позже")
	default:
		h.logger.Error("Ошибка операции с участием", "op", op, "error", err)
		apierrors.InternalError(w, "Ошибка операции с участием")
	}
}

// Enroll — POST /api/v1/events/{id}/enroll.
// Записывает текущего пользователя на событие.
func (h *APIHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	p, err := h.participations.Enroll(r.Context(), chi.URLParam(r, "id"),
		middleware.SubjectFromContext(r.Context()))
	if err != nil {
		h.writeParticipationError(w, err, "enroll")
		return
	}
	writeJSON(w, http.StatusCreated, mapParticipation(p))
}

// Unenroll — DELETE /api/v1/events/{id}/enroll.
// Отменяет запись текущего пользователя.
func (h *APIHandler) Unenroll(w http.ResponseWriter, r *http.Request) {
	err := h.participations.Unenroll(r.Context(), chi.URLParam(r, "id"),
		middleware.SubjectFromContext(r.Context()))
	if err != nil {
		h.writeParticipationError(w, err, "unenroll")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// timestampRequest — тело запросов старта и финиша.
// at опционален: по умолчанию текущее время сервера.
type timestampRequest struct {
	At         *time.Time `json:"at"`
	DistanceKm float64    `json:"distance_km"`
}

// parseTimestamp читает тело запроса; пустое тело допустимо.
func parseTimestamp(r *http.Request) (timestampRequest, error) {
	var req timestampRequest
	if r.Body == nil || r.ContentLength == 0 {
		return req, nil
	}
	err := json.NewDecoder(r.Body).Decode(&req)
	return req, err
}

// StartParticipation — POST /api/v1/events/{id}/start.
// Фиксирует старт текущего пользователя.
func (h *APIHandler) StartParticipation(w http.ResponseWriter, r *http.Request) {
	req, err := parseTimestamp(r)
	if err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	at := time.Now().UTC()
	if req.At != nil {
		at = *req.At
	}

	p, err := h.participations.Start(r.Context(), chi.URLParam(r, "id"),
		middleware.SubjectFromContext(r.Context()), at)
	if err != nil {
		h.writeParticipationError(w, err, "start")
		return
	}
	writeJSON(w, http.StatusOK, mapParticipation(p))
}

// FinishParticipation — POST /api/v1/events/{id}/finish.
// Фиксирует финиш текущего пользователя и вычисляет чистое время.
func (h *APIHandler) FinishParticipation(w http.ResponseWriter, r *http.Request) {
	req, err := parseTimestamp(r)
	if err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	at := time.Now().UTC()
	if req.At != nil {
		at = *req.At
	}

	p, err := h.participations.Finish(r.Context(), chi.URLParam(r, "id"),
		middleware.SubjectFromContext(r.Context()), at, req.DistanceKm)
	if err != nil {
		h.writeParticipationError(w, err, "finish")
		return
	}
	writeJSON(w, http.StatusOK, mapParticipation(p))
}

// ListParticipants — GET /api/v1/events/{id}/participants.
// Возвращает участия события.
func (h *APIHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationFromQuery(r)

	// Существование события проверяется явно: пустой список
	// неотличим от несуществующего события
	if _, err := h.events.Get(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeEventError(w, err, "list_participants")
		return
	}

	list, total, err := h.participations.ListByEvent(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		h.writeParticipationError(w, err, "list_participants")
		return
	}

	items := make([]participationResponse, len(list))
	for i, p := range list {
		items[i] = mapParticipation(p)
	}
	writeJSON(w, http.StatusOK, newListResponse(items, total, limit, offset))
}

// GetMyParticipation — GET /api/v1/events/{id}/participants/me.
// Возвращает участие текущего пользователя в событии.
func (h *APIHandler) GetMyParticipation(w http.ResponseWriter, r *http.Request) {
	p, err := h.participations.Get(r.Context(), chi.URLParam(r, "id"),
		middleware.SubjectFromContext(r.Context()))
	if err != nil {
		h.writeParticipationError(w, err, "get_my")
		return
	}
	writeJSON(w, http.StatusOK, mapParticipation(p))
}

// ResetParticipations — POST /api/v1/events/{id}/reset.
// Массово сбрасывает результаты участий события.
// Доступ: администраторы события.
func (h *APIHandler) ResetParticipations(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	actorID := middleware.SubjectFromContext(r.Context())

	e, err := h.events.Get(r.Context(), eventID)
	if err != nil {
		h.writeEventError(w, err, "reset")
		return
	}
	isAdmin, err := h.events.IsAdmin(r.Context(), e, actorID)
	if err != nil {
		h.writeServerError(w, err, "Ошибка проверки прав")
		return
	}
	if !isAdmin {
		apierrors.Forbidden(w, "Требуется право администратора события")
		return
	}

	var req struct {
		// ParticipationIDs — какие участия сбросить; пустой список —
		// все участия события
		ParticipationIDs []string `json:"participation_ids"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
			return
		}
	}

	var n int
	if len(req.ParticipationIDs) == 0 {
		// Пустой список — сброс всех участий события одним запросом
		n, err = h.participations.ResetEvent(r.Context(), eventID)
	} else {
		n, err = h.participations.BulkReset(r.Context(), req.ParticipationIDs)
	}
	if err != nil {
		h.writeParticipationError(w, err, "reset")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"reset": n})
}

// ListMyParticipations — GET /api/v1/users/me/participations.
// Возвращает участия текущего пользователя.
func (h *APIHandler) ListMyParticipations(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationFromQuery(r)

	list, err := h.participations.ListByUser(r.Context(),
		middleware.SubjectFromContext(r.Context()), limit, offset)
	if err != nil {
		h.writeParticipationError(w, err, "list_my")
		return
	}

	items := make([]participationResponse, len(list))
	for i, p := range list {
		items[i] = mapParticipation(p)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
