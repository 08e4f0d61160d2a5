// github.go — проверка GitHub access-токенов через REST API.
// GitHub не выдаёт ID-токены, поэтому identity подтверждается запросами
// /user и /user/emails с токеном клиента; берётся primary verified email.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bigkaa/geostar/event-module/internal/domain/model"
)

// githubUser — ответ GitHub GET /user.
type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// githubEmail — элемент ответа GitHub GET /user/emails.
type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// GitHubVerifier — проверка GitHub access-токенов.
type GitHubVerifier struct {
	apiURL string
	client *http.Client
	logger *slog.Logger
}

// NewGitHubVerifier создаёт verifier GitHub-токенов.
// apiURL — базовый URL API (EM_GITHUB_API_URL), без завершающего слэша.
func NewGitHubVerifier(apiURL string, timeout time.Duration, logger *slog.Logger) *GitHubVerifier {
	return &GitHubVerifier{
		apiURL: apiURL,
		client: &http.Client{Timeout: timeout},
		logger: logger.With(slog.String("component", "github_verifier")),
	}
}

// Name возвращает имя провайдера.
func (g *GitHubVerifier) Name() string {
	return model.ProviderGitHub
}

// Verify проверяет access-токен у GitHub и возвращает identity.
func (g *GitHubVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	user := &githubUser{}
	if err := g.get(ctx, token, "/user", user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("%w: отсутствует id пользователя", ErrTokenInvalid)
	}

	email := user.Email
	if email == "" {
		// Публичный email не задан — ищем primary verified в /user/emails
		var emails []githubEmail
		if err := g.get(ctx, token, "/user/emails", &emails); err != nil {
			return nil, err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				email = e.Email
				break
			}
		}
	}
	if email == "" {
		return nil, ErrEmailUnverified
	}

	profile, err := json.Marshal(map[string]string{
		"login": user.Login,
		"name":  user.Name,
		"email": email,
	})
	if err != nil {
		return nil, fmt.Errorf("сериализация профиля: %w", err)
	}

	return &Identity{
		Provider:  model.ProviderGitHub,
		SubjectID: strconv.FormatInt(user.ID, 10),
		Email:     email,
		Profile:   profile,
	}, nil
}

// get выполняет авторизованный GET-запрос к API GitHub.
func (g *GitHubVerifier) get(ctx context.Context, token, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("GitHub API недоступен",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: GitHub вернул статус %d", ErrTokenInvalid, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: GitHub вернул статус %d", ErrUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("разбор ответа GitHub: %w", err)
	}
	return nil
}
