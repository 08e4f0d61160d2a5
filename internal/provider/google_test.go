package provider

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/geostar/event-module/internal/domain/model"
)

// testKeyID — идентификатор ключа для тестов.
const testKeyID = "test-key-em"

const (
	testClientID = "client-id.apps.googleusercontent.com"
	testIssuer   = "https://accounts.google.com"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// generateTestKey генерирует RSA ключ для тестов.
func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

// buildJWKSetJSON строит JWKS JSON из RSA публичного ключа.
func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	nB64 := base64.RawURLEncoding.EncodeToString(pub.N.Bytes())
	eB64 := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes())

	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   nB64,
				"e":   eB64,
			},
		},
	}
	data, _ := json.Marshal(jwks)
	return data
}

// newTestGoogleVerifier создаёт verifier с mock JWKS.
func newTestGoogleVerifier(t *testing.T, key *rsa.PrivateKey) *GoogleVerifier {
	t.Helper()
	kf, err := keyfunc.NewJWKSetJSON(buildJWKSetJSON(&key.PublicKey, testKeyID))
	if err != nil {
		t.Fatalf("не удалось создать keyfunc: %v", err)
	}
	return NewGoogleVerifierWithKeyfunc(kf, testClientID, testIssuer, testLogger())
}

// googleTokenOpts — параметры генерируемого ID-токена.
type googleTokenOpts struct {
	sub           string
	email         string
	emailVerified bool
	aud           string
	iss           string
	expired       bool
}

// generateIDToken подписывает Google-подобный ID-токен тестовым ключом.
func generateIDToken(t *testing.T, key *rsa.PrivateKey, opts googleTokenOpts) string {
	t.Helper()

	exp := time.Now().Add(time.Hour)
	if opts.expired {
		exp = time.Now().Add(-time.Hour)
	}
	if opts.aud == "" {
		opts.aud = testClientID
	}
	if opts.iss == "" {
		opts.iss = testIssuer
	}

	claims := jwt.MapClaims{
		"sub":            opts.sub,
		"email":          opts.email,
		"email_verified": opts.emailVerified,
		"name":           "Test User",
		"iss":            opts.iss,
		"aud":            opts.aud,
		"exp":            jwt.NewNumericDate(exp),
		"iat":            jwt.NewNumericDate(time.Now()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return tokenStr
}

func TestGoogleVerify_Valid(t *testing.T) {
	key := generateTestKey(t)
	v := newTestGoogleVerifier(t, key)

	tokenStr := generateIDToken(t, key, googleTokenOpts{
		sub: "google-sub-1", email: "alice@example.com", emailVerified: true,
	})

	id, err := v.Verify(context.Background(), tokenStr)
	if err != nil {
		t.Fatalf("Verify() ошибка: %v", err)
	}
	if id.Provider != model.ProviderGoogle {
		t.Errorf("Provider = %q", id.Provider)
	}
	if id.SubjectID != "google-sub-1" || id.Email != "alice@example.com" {
		t.Errorf("Identity: %+v", id)
	}
	if len(id.Profile) == 0 {
		t.Error("Profile пустой")
	}
}

func TestGoogleVerify_Invalid(t *testing.T) {
	key := generateTestKey(t)
	v := newTestGoogleVerifier(t, key)
	otherKey := generateTestKey(t)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{
			"просроченный токен",
			generateIDToken(t, key, googleTokenOpts{
				sub: "s", email: "a@b.c", emailVerified: true, expired: true,
			}),
			ErrTokenInvalid,
		},
		{
			"чужой audience",
			generateIDToken(t, key, googleTokenOpts{
				sub: "s", email: "a@b.c", emailVerified: true, aud: "other-client",
			}),
			ErrTokenInvalid,
		},
		{
			"чужой issuer",
			generateIDToken(t, key, googleTokenOpts{
				sub: "s", email: "a@b.c", emailVerified: true, iss: "https://evil.example",
			}),
			ErrTokenInvalid,
		},
		{
			"чужой ключ подписи",
			generateIDToken(t, otherKey, googleTokenOpts{
				sub: "s", email: "a@b.c", emailVerified: true,
			}),
			ErrTokenInvalid,
		},
		{
			"email не подтверждён",
			generateIDToken(t, key, googleTokenOpts{
				sub: "s", email: "a@b.c", emailVerified: false,
			}),
			ErrEmailUnverified,
		},
		{
			"без email",
			generateIDToken(t, key, googleTokenOpts{
				sub: "s", emailVerified: true,
			}),
			ErrEmailUnverified,
		},
		{
			"мусор вместо токена",
			"не-jwt",
			ErrTokenInvalid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.Verify(context.Background(), tt.token); !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() = %v, ожидали %v", err, tt.wantErr)
			}
		})
	}
}
