package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/geostar/event-module/internal/domain/model"
)

// Типы токенов сервиса.
const (
	// TokenTypeAccess — короткоживущий access-токен
	TokenTypeAccess = "access"
	// TokenTypeRefresh — долгоживущий refresh-токен
	TokenTypeRefresh = "refresh"
)

// Ошибки проверки токенов.
var (
	// ErrInvalidToken — токен не прошёл проверку.
	ErrInvalidToken = errors.New("невалидный токен")
	// ErrWrongTokenType — токен не того типа (access вместо refresh и наоборот).
	ErrWrongTokenType = errors.New("неверный тип токена")
)

// Claims — полезная нагрузка JWT сервиса.
type Claims struct {
	jwt.RegisteredClaims
	// Username — username аккаунта
	Username string `json:"username"`
	// Email — email аккаунта
	Email string `json:"email"`
	// TokenType — access или refresh
	TokenType string `json:"token_type"`
}

// TokenPair — пара access + refresh токенов.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn — время жизни access-токена в секундах
	ExpiresIn int
}

// TokenService — выпуск и проверка JWT сервиса (HS256).
type TokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenService создаёт сервис токенов.
func NewTokenService(secret, issuer string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// IssuePair выпускает пару access + refresh токенов для аккаунта.
func (s *TokenService) IssuePair(u *model.User) (*TokenPair, error) {
	access, err := s.issue(u, TokenTypeAccess, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("выпуск access-токена: %w", err)
	}
	refresh, err := s.issue(u, TokenTypeRefresh, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("выпуск refresh-токена: %w", err)
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.accessTTL.Seconds()),
	}, nil
}

// issue подписывает токен указанного типа.
func (s *TokenService) issue(u *model.User, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Username:  u.Username,
		Email:     u.Email,
		TokenType: tokenType,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseAccess проверяет access-токен и возвращает claims.
func (s *TokenService) ParseAccess(tokenString string) (*Claims, error) {
	return s.parse(tokenString, TokenTypeAccess)
}

// ParseRefresh проверяет refresh-токен и возвращает claims.
func (s *TokenService) ParseRefresh(tokenString string) (*Claims, error) {
	return s.parse(tokenString, TokenTypeRefresh)
}

// parse проверяет подпись, срок действия, issuer и тип токена.
func (s *TokenService) parse(tokenString, wantType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("%w: ожидался %s", ErrWrongTokenType, wantType)
	}
	return claims, nil
}
