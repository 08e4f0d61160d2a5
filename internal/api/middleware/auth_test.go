package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bigkaa/geostar/event-module/internal/auth"
	"github.com/bigkaa/geostar/event-module/internal/domain/model"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestJWTAuth создаёт middleware с сервисом токенов.
func newTestJWTAuth() (*JWTAuth, *auth.TokenService) {
	tokens := auth.NewTokenService(testSecret, "event-module", 15*time.Minute, 24*time.Hour)
	return NewJWTAuth(tokens, testLogger()), tokens
}

// issueAccess выпускает access-токен для тестового пользователя.
func issueAccess(t *testing.T, tokens *auth.TokenService) string {
	t.Helper()
	pair, err := tokens.IssuePair(&model.User{
		ID:       "user-123",
		Username: "alice",
		Email:    "alice@example.com",
	})
	if err != nil {
		t.Fatalf("IssuePair() ошибка: %v", err)
	}
	return pair.AccessToken
}

func TestJWTAuth_ValidToken(t *testing.T) {
	jwtAuth, tokens := newTestJWTAuth()

	handler := jwtAuth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			t.Fatal("claims не найдены в контексте")
		}
		if claims.Subject != "user-123" {
			t.Errorf("Subject = %q, хотели user-123", claims.Subject)
		}
		if claims.Username != "alice" || claims.Email != "alice@example.com" {
			t.Errorf("Claims: %+v", claims)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+issueAccess(t, tokens))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получен %d, тело: %s", rec.Code, rec.Body.String())
	}
}

func TestJWTAuth_MissingToken(t *testing.T) {
	jwtAuth, _ := newTestJWTAuth()
	handler := jwtAuth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен быть вызван")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
}

func TestJWTAuth_InvalidFormat(t *testing.T) {
	jwtAuth, _ := newTestJWTAuth()
	handler := jwtAuth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен быть вызван")
	}))

	tests := []struct {
		name   string
		header string
	}{
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"no bearer prefix", "token123"},
		{"empty bearer", "Bearer "},
		{"garbage token", "Bearer не-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("ожидался статус 401, получен %d", rec.Code)
			}
		})
	}
}

func TestJWTAuth_RefreshTokenRejected(t *testing.T) {
	jwtAuth, tokens := newTestJWTAuth()
	handler := jwtAuth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен быть вызван")
	}))

	pair, err := tokens.IssuePair(&model.User{ID: "user-123", Username: "alice"})
	if err != nil {
		t.Fatalf("IssuePair() ошибка: %v", err)
	}

	// Refresh-токен не проходит как access
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
}

func TestJWTAuth_ExpiredToken(t *testing.T) {
	expired := auth.NewTokenService(testSecret, "event-module", -time.Minute, 24*time.Hour)
	jwtAuth := NewJWTAuth(expired, testLogger())
	handler := jwtAuth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен быть вызван")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+issueAccess(t, expired))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
}

func TestJWTAuth_Exclusions(t *testing.T) {
	jwtAuth, _ := newTestJWTAuth()
	handler := jwtAuth.MiddlewareWithExclusions("/health/", "/api/v1/auth/login")(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	tests := []struct {
		path string
		want int
	}{
		{"/health/live", http.StatusOK},
		{"/health/ready", http.StatusOK},
		{"/api/v1/auth/login", http.StatusOK},
		{"/api/v1/users/me", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("путь %s: ожидался статус %d, получен %d", tt.path, tt.want, rec.Code)
			}
		})
	}
}

func TestClaimsFromContext_Empty(t *testing.T) {
	if claims := ClaimsFromContext(context.Background()); claims != nil {
		t.Errorf("ожидался nil, получено %+v", claims)
	}
}

func TestSubjectFromContext(t *testing.T) {
	claims := &AuthClaims{Subject: "user-123"}
	ctx := context.WithValue(context.Background(), ContextKeyClaims, claims)

	if sub := SubjectFromContext(ctx); sub != "user-123" {
		t.Errorf("ожидался user-123, получен %q", sub)
	}
	if sub := SubjectFromContext(context.Background()); sub != "" {
		t.Errorf("ожидалась пустая строка, получено %q", sub)
	}
}
