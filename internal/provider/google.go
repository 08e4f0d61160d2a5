// google.go — проверка Google ID-токенов через JWKS.
// Подпись проверяется ключами из JWKS endpoint Google с фоновым
// обновлением; дополнительно проверяются issuer, audience и
// подтверждённость email.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/geostar/event-module/internal/domain/model"
)

// googleClaims — claims Google ID-токена.
type googleClaims struct {
	jwt.RegisteredClaims
	// Email — email пользователя.
	Email string `json:"email"`
	// EmailVerified — подтверждён ли email у Google.
	EmailVerified bool `json:"email_verified"`
	// Name — отображаемое имя.
	Name string `json:"name,omitempty"`
	// Picture — URL аватара.
	Picture string `json:"picture,omitempty"`
}

// GoogleVerifier — проверка Google ID-токенов.
type GoogleVerifier struct {
	jwks     keyfunc.Keyfunc
	clientID string
	issuer   string
	logger   *slog.Logger
}

// NewGoogleVerifier создаёт verifier Google ID-токенов.
// jwksURL — endpoint сертификатов Google (EM_GOOGLE_JWKS_URL),
// clientID — OAuth client ID приложения (audience ID-токена),
// issuer — ожидаемый issuer (EM_GOOGLE_ISSUER).
func NewGoogleVerifier(
	jwksURL, clientID, issuer string,
	refreshInterval time.Duration,
	logger *slog.Logger,
) (*GoogleVerifier, error) {
	// JWKS storage с фоновым обновлением.
	// NoErrorReturnFirstHTTPReq — стартуем даже если Google недоступен.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           refreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления Google JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return &GoogleVerifier{
		jwks:     k,
		clientID: clientID,
		issuer:   issuer,
		logger:   logger.With(slog.String("component", "google_verifier")),
	}, nil
}

// NewGoogleVerifierWithKeyfunc создаёт verifier с предоставленной keyfunc.
// Используется в тестах для подстановки mock JWKS.
func NewGoogleVerifierWithKeyfunc(kf keyfunc.Keyfunc, clientID, issuer string, logger *slog.Logger) *GoogleVerifier {
	return &GoogleVerifier{
		jwks:     kf,
		clientID: clientID,
		issuer:   issuer,
		logger:   logger.With(slog.String("component", "google_verifier")),
	}
}

// Name возвращает имя провайдера.
func (g *GoogleVerifier) Name() string {
	return model.ProviderGoogle
}

// Verify проверяет Google ID-токен и возвращает identity.
func (g *GoogleVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	claims := &googleClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, g.jwks.KeyfuncCtx(ctx),
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(g.issuer),
		jwt.WithAudience(g.clientID),
	)
	if err != nil {
		g.logger.Debug("ID-токен Google не прошёл проверку",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: отсутствует sub", ErrTokenInvalid)
	}
	if claims.Email == "" || !claims.EmailVerified {
		return nil, ErrEmailUnverified
	}

	profile, err := json.Marshal(map[string]string{
		"email":   claims.Email,
		"name":    claims.Name,
		"picture": claims.Picture,
	})
	if err != nil {
		return nil, fmt.Errorf("сериализация профиля: %w", err)
	}

	return &Identity{
		Provider:  model.ProviderGoogle,
		SubjectID: claims.Subject,
		Email:     claims.Email,
		Profile:   profile,
	}, nil
}
