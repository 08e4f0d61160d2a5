// users.go — обработчики /api/v1/users endpoints.
// Профиль текущего пользователя, смена пароля, привязки identity,
// публичные данные аккаунтов.
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

// userResponse — представление аккаунта в API.
type userResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

// mapUser конвертирует модель аккаунта в ответ API.
// Хэш пароля наружу не отдаётся никогда.
func mapUser(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Active:    u.Active,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// identityResponse — представление привязки identity в API.
type identityResponse struct {
	Provider  string `json:"provider"`
	CreatedAt string `json:"created_at"`
}

// GetMe — GET /api/v1/users/me.
// Возвращает профиль текущего пользователя.
func (h *APIHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.accounts.Get(r.Context(), middleware.SubjectFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Аккаунт не найден")
			return
		}
		h.writeServerError(w, err, "Ошибка получения профиля")
		return
	}
	writeJSON(w, http.StatusOK, mapUser(u))
}

// UpdateMe — PATCH /api/v1/users/me.
// Обновляет username текущего пользователя.
func (h *APIHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	u, err := h.accounts.UpdateProfile(r.Context(), middleware.SubjectFromContext(r.Context()), req.Username)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, err.Error())
		case errors.Is(err, service.ErrConflict):
			apierrors.Conflict(w, err.Error())
		case errors.Is(err, service.ErrNotFound):
			apierrors.NotFound(w, "Аккаунт не найден")
		default:
			h.writeServerError(w, err, "Ошибка обновления профиля")
		}
		return
	}
	writeJSON(w, http.StatusOK, mapUser(u))
}

// ChangePassword — PUT /api/v1/users/me/password.
// Меняет пароль текущего пользователя.
func (h *APIHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	err := h.accounts.ChangePassword(r.Context(),
		middleware.SubjectFromContext(r.Context()), req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, err.Error())
		case errors.Is(err, service.ErrInvalidCredentials):
			apierrors.Unauthorized(w, "Неверный текущий пароль")
		default:
			h.writeServerError(w, err, "Ошибка смены пароля")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteMe — DELETE /api/v1/users/me.
// Удаляет аккаунт текущего пользователя со всеми связанными данными.
func (h *APIHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	err := h.accounts.Delete(r.Context(), middleware.SubjectFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Аккаунт не найден")
			return
		}
		h.writeServerError(w, err, "Ошибка удаления аккаунта")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMyIdentities — GET /api/v1/users/me/identities.
// Возвращает привязки провайдеров текущего пользователя.
func (h *APIHandler) ListMyIdentities(w http.ResponseWriter, r *http.Request) {
	list, err := h.identities.ListLinked(r.Context(), middleware.SubjectFromContext(r.Context()))
	if err != nil {
		h.writeServerError(w, err, "Ошибка получения привязок")
		return
	}

	items := make([]identityResponse, len(list))
	for i, li := range list {
		items[i] = identityResponse{
			Provider:  li.Provider,
			CreatedAt: li.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// UnlinkIdentity — DELETE /api/v1/users/me/identities/{provider}.
// Отвязывает провайдера от текущего аккаунта.
func (h *APIHandler) UnlinkIdentity(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")

	err := h.identities.Unlink(r.Context(), middleware.SubjectFromContext(r.Context()), providerName)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, err.Error())
		case errors.Is(err, service.ErrNotFound):
			apierrors.NotFound(w, "Привязка не найдена")
		default:
			h.writeServerError(w, err, "Ошибка отвязки провайдера")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetUser — GET /api/v1/users/{id}.
// Возвращает публичные данные аккаунта.
func (h *APIHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.accounts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Аккаунт не найден")
			return
		}
		h.writeServerError(w, err, "Ошибка получения аккаунта")
		return
	}
	writeJSON(w, http.StatusOK, mapUser(u))
}

// GetUserProvider — GET /api/v1/users/{id}/provider.
// Возвращает провайдера самой ранней привязки аккаунта
// или "email" для аккаунтов без привязок.
func (h *APIHandler) GetUserProvider(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	// Существование аккаунта проверяется отдельно:
	// ProviderFor для несуществующего аккаунта вернул бы "email"
	if _, err := h.accounts.Get(r.Context(), userID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Аккаунт не найден")
			return
		}
		h.writeServerError(w, err, "Ошибка получения аккаунта")
		return
	}

	p, err := h.identities.ProviderFor(r.Context(), userID)
	if err != nil {
		h.writeServerError(w, err, "Ошибка определения провайдера")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"provider": p})
}
