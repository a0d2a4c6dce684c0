package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bigkaa/zimbra-sync/internal/domain/model"
)

// HTTPSource — клиент HTTP JSON API каталога.
//
//	GET /directory/users/{id}
//	GET /directory/users/{id}/groups
//	GET /directory/users/{id}/visible
//	GET /directory/groups/{id}
//	GET /directory/structures/{uai}
//	GET /directory/structures/{uai}/users
//	GET /directory/structures/{uai}/groups
type HTTPSource struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPSource создаёт клиент каталога. token — bearer-токен (может быть пустым).
func NewHTTPSource(baseURL, token string, httpClient *http.Client, logger *slog.Logger) *HTTPSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "identity_source")),
	}
}

// PrincipalSnapshot возвращает снимок пользователя.
func (s *HTTPSource) PrincipalSnapshot(ctx context.Context, id string) (*model.IdentitySnapshot, error) {
	var snap model.IdentitySnapshot
	if err := s.get(ctx, "/directory/users/"+url.PathEscape(id), &snap); err != nil {
		return nil, fmt.Errorf("пользователь %s: %w", id, err)
	}
	return &snap, nil
}

// GroupSnapshot возвращает снимок группы.
func (s *HTTPSource) GroupSnapshot(ctx context.Context, id string) (*model.GroupSnapshot, error) {
	var snap model.GroupSnapshot
	if err := s.get(ctx, "/directory/groups/"+url.PathEscape(id), &snap); err != nil {
		return nil, fmt.Errorf("группа %s: %w", id, err)
	}
	return &snap, nil
}

// GroupsOfPrincipal возвращает группы пользователя.
func (s *HTTPSource) GroupsOfPrincipal(ctx context.Context, id string) ([]model.GroupRef, error) {
	var groups []model.GroupRef
	if err := s.get(ctx, "/directory/users/"+url.PathEscape(id)+"/groups", &groups); err != nil {
		return nil, fmt.Errorf("группы пользователя %s: %w", id, err)
	}
	return groups, nil
}

// Structure возвращает структуру по UAI.
func (s *HTTPSource) Structure(ctx context.Context, uai string) (*model.StructureRef, error) {
	var ref model.StructureRef
	if err := s.get(ctx, "/directory/structures/"+url.PathEscape(uai), &ref); err != nil {
		return nil, fmt.Errorf("структура %s: %w", uai, err)
	}
	return &ref, nil
}

// UsersOfStructure возвращает пользователей структуры.
func (s *HTTPSource) UsersOfStructure(ctx context.Context, uai string) ([]model.DirectoryUser, error) {
	var users []model.DirectoryUser
	if err := s.get(ctx, "/directory/structures/"+url.PathEscape(uai)+"/users", &users); err != nil {
		return nil, fmt.Errorf("пользователи структуры %s: %w", uai, err)
	}
	return users, nil
}

// GroupsOfStructure возвращает группы структуры.
func (s *HTTPSource) GroupsOfStructure(ctx context.Context, uai string) ([]model.DirectoryGroup, error) {
	var groups []model.DirectoryGroup
	if err := s.get(ctx, "/directory/structures/"+url.PathEscape(uai)+"/groups", &groups); err != nil {
		return nil, fmt.Errorf("группы структуры %s: %w", uai, err)
	}
	return groups, nil
}

// visibleResponse — ответ /directory/users/{id}/visible.
type visibleResponse struct {
	Users  []model.DirectoryUser  `json:"users"`
	Groups []model.DirectoryGroup `json:"groups"`
}

// VisibleContacts возвращает пользователей и группы, видимые пользователю.
func (s *HTTPSource) VisibleContacts(ctx context.Context, userID string) ([]model.DirectoryUser, []model.DirectoryGroup, error) {
	var resp visibleResponse
	if err := s.get(ctx, "/directory/users/"+url.PathEscape(userID)+"/visible", &resp); err != nil {
		return nil, nil, fmt.Errorf("видимые контакты %s: %w", userID, err)
	}
	return resp.Users, resp.Groups, nil
}

// get выполняет GET и декодирует JSON-ответ в target.
func (s *HTTPSource) get(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("запрос к каталогу: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("каталог вернул статус %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("декодирование ответа каталога: %w", err)
	}
	return nil
}
