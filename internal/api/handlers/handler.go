// handler.go — основной обработчик API Event Module.
// Объединяет все доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	apierrors "github.com/bigkaa/geostar/event-module/internal/api/errors"
	"github.com/bigkaa/geostar/event-module/internal/auth"
	"github.com/bigkaa/geostar/event-module/internal/provider"
	"github.com/bigkaa/geostar/event-module/internal/service"
)

// APIHandler — основной обработчик API Event Module.
// Делегирует запросы в сервисный слой.
type APIHandler struct {
	health         *HealthHandler
	accounts       *service.AccountService
	identities     *service.IdentityService
	events         *service.EventService
	participations *service.ParticipationService
	gps            *service.GPSService
	tokens         *auth.TokenService
	providers      *provider.Registry
	logger         *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	accounts *service.AccountService,
	identities *service.IdentityService,
	events *service.EventService,
	participations *service.ParticipationService,
	gps *service.GPSService,
	tokens *auth.TokenService,
	providers *provider.Registry,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:         health,
		accounts:       accounts,
		identities:     identities,
		events:         events,
		participations: participations,
		gps:            gps,
		tokens:         tokens,
		providers:      providers,
		logger:         logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeServerError — ответ на ошибку, не разобранную доменным маппером.
// Потеря связи с PostgreSQL — 503, запрос можно повторить; прочее — 500.
func (h *APIHandler) writeServerError(w http.ResponseWriter, err error, message string) {
	if service.StorageUnavailable(err) {
		h.logger.Warn("Хранилище недоступно", "error", err)
		apierrors.StorageUnavailable(w, "Хранилище временно недоступно, повторите запрос позже")
		return
	}
	h.logger.Error(message, "error", err)
	apierrors.InternalError(w, message)
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// paginationFromQuery читает limit и offset из query-параметров
// и нормализует их.
func paginationFromQuery(r *http.Request) (int, int) {
	limit := 100
	offset := 0

	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			offset = v
		}
	}

	if limit < 1 {
		limit = 1
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// listResponse — обёртка списочных ответов с пагинацией.
type listResponse struct {
	Items   any  `json:"items"`
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// newListResponse собирает списочный ответ.
func newListResponse(items any, total, limit, offset int) listResponse {
	return listResponse{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}
