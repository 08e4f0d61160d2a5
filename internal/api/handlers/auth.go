// auth.go — обработчики /api/v1/auth endpoints.
// Регистрация, вход по паролю, обновление токенов, вход через
// сторонних провайдеров и привязка провайдера к аккаунту.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/geostar/event-module/internal/api/errors"
	"github.com/bigkaa/geostar/event-module/internal/api/middleware"
	"github.com/bigkaa/geostar/event-module/internal/domain/model"
	"github.com/bigkaa/geostar/event-module/internal/provider"
	"github.com/bigkaa/geostar/event-module/internal/service"
)

// tokenResponse — ответ с парой токенов и аккаунтом.
type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"`
	User         userResponse `json:"user"`
}

// Register — POST /api/v1/auth/register.
// Регистрирует аккаунт по email и паролю, возвращает пару токенов.
func (h *APIHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	u, err := h.accounts.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, err.Error())
		case errors.Is(err, service.ErrConflict):
			apierrors.Conflict(w, err.Error())
		default:
			h.writeServerError(w, err, "Ошибка регистрации аккаунта")
		}
		return
	}

	h.respondWithTokens(w, http.StatusCreated, u)
}

// Login — POST /api/v1/auth/login.
// Проверяет email и пароль, возвращает пару токенов.
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	u, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			apierrors.Unauthorized(w, "Неверный email или пароль")
			return
		}
		h.writeServerError(w, err, "Ошибка входа")
		return
	}

	h.respondWithTokens(w, http.StatusOK, u)
}

// Refresh — POST /api/v1/auth/refresh.
// Обменивает refresh-токен на новую пару токенов.
func (h *APIHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	claims, err := h.tokens.ParseRefresh(req.RefreshToken)
	if err != nil {
		apierrors.Unauthorized(w, "Невалидный refresh-токен")
		return
	}

	// Аккаунт перечитывается: мог быть удалён или деактивирован
	u, err := h.accounts.Get(r.Context(), claims.Subject)
	if err != nil || !u.Active {
		apierrors.Unauthorized(w, "Аккаунт недоступен")
		return
	}

	h.respondWithTokens(w, http.StatusOK, u)
}

// SocialLogin — POST /api/v1/auth/social/{provider}.
// Проверяет токен у провайдера, разрешает identity в локальный аккаунт
// (существующий или новый) и возвращает пару токенов сервиса.
func (h *APIHandler) SocialLogin(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")

	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if req.Token == "" {
		apierrors.ValidationError(w, "Пустой токен провайдера")
		return
	}

	ident, err := h.verifyProviderToken(w, r, providerName, req.Token)
	if err != nil {
		return
	}

	u, err := h.identities.ResolveOrCreate(r.Context(), service.VerifiedIdentity{
		Provider:  ident.Provider,
		SubjectID: ident.SubjectID,
		Email:     ident.Email,
		Profile:   ident.Profile,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, err.Error())
		case errors.Is(err, service.ErrIdentityConflict):
			apierrors.Conflict(w, err.Error())
		case errors.Is(err, service.ErrUsernameExhausted):
			apierrors.Conflict(w, err.Error())
		default:
			h.writeServerError(w, err, "Ошибка входа через провайдера")
		}
		return
	}

	h.respondWithTokens(w, http.StatusOK, u)
}

// LinkProvider — POST /api/v1/auth/link/{provider}.
// Привязывает проверенную identity провайдера к текущему аккаунту.
func (h *APIHandler) LinkProvider(w http.ResponseWriter, r *http.Request) {
	userID := middleware.SubjectFromContext(r.Context())
	providerName := chi.URLParam(r, "provider")

	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	ident, err := h.verifyProviderToken(w, r, providerName, req.Token)
	if err != nil {
		return
	}

	err = h.identities.Link(r.Context(), userID, service.VerifiedIdentity{
		Provider:  ident.Provider,
		SubjectID: ident.SubjectID,
		Email:     ident.Email,
		Profile:   ident.Profile,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, err.Error())
		case errors.Is(err, service.ErrIdentityConflict), errors.Is(err, service.ErrConflict):
			apierrors.Conflict(w, err.Error())
		default:
			h.writeServerError(w, err, "Ошибка привязки провайдера")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// verifyProviderToken проверяет токен у провайдера.
// Пишет ответ ошибки и возвращает err при неудаче.
func (h *APIHandler) verifyProviderToken(w http.ResponseWriter, r *http.Request, providerName, token string) (*provider.Identity, error) {
	ident, err := h.providers.Verify(r.Context(), providerName, token)
	if err != nil {
		switch {
		case errors.Is(err, provider.ErrUnknownProvider):
			apierrors.ValidationError(w, "Неизвестный провайдер: "+providerName)
		case errors.Is(err, provider.ErrTokenInvalid), errors.Is(err, provider.ErrEmailUnverified):
			apierrors.Unauthorized(w, err.Error())
		case errors.Is(err, provider.ErrUnavailable):
			apierrors.IDPUnavailable(w, "Провайдер "+providerName+" недоступен")
		default:
			h.logger.Error("Ошибка проверки токена провайдера",
				"provider", providerName, "error", err)
			apierrors.InternalError(w, "Ошибка проверки токена провайдера")
		}
		return nil, err
	}
	return ident, nil
}

// respondWithTokens выпускает пару токенов и пишет ответ.
func (h *APIHandler) respondWithTokens(w http.ResponseWriter, status int, u *model.User) {
	pair, err := h.tokens.IssuePair(u)
	if err != nil {
		h.logger.Error("Ошибка выпуска токенов", "error", err)
		apierrors.InternalError(w, "Ошибка выпуска токенов")
		return
	}

	writeJSON(w, status, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    pair.ExpiresIn,
		User:         mapUser(u),
	})
}
