// auth.go — получение и кэширование токенов Zimbra.
// Пользователь аутентифицируется через preauth (HMAC ключа домена),
// администратор — сервисной учётной записью и паролем.
package mailbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bigkaa/zimbra-sync/internal/domain/model"
)

// AuthConfig — параметры аутентификации.
type AuthConfig struct {
	// UserURL — SOAP endpoint пользовательских операций
	UserURL string
	// AdminURL — SOAP endpoint административных операций
	AdminURL      string
	PreauthKey    string
	AdminAccount  string
	AdminPassword string
	// SafetyMargin вычитается из lifetime токена; ограничен половиной lifetime
	SafetyMargin time.Duration
}

// Authenticator выдаёт токены сессий Zimbra и кэширует их в TokenCache.
type Authenticator struct {
	cfg       AuthConfig
	cache     *TokenCache
	transport *transport
	group     singleflight.Group
	now       func() time.Time
	logger    *slog.Logger
}

// NewAuthenticator создаёт Authenticator. Кэш передаётся снаружи и может
// разделяться несколькими клиентами.
func NewAuthenticator(cfg AuthConfig, cache *TokenCache, httpClient *http.Client, logger *slog.Logger) *Authenticator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Authenticator{
		cfg:       cfg,
		cache:     cache,
		transport: &transport{httpClient: httpClient},
		now:       time.Now,
		logger:    logger.With(slog.String("component", "zimbra_auth")),
	}
}

// SetClock подменяет источник времени (для тестов).
func (a *Authenticator) SetClock(now func() time.Time) {
	a.now = now
}

// cacheKey — id субъекта или имя сервисной учётной записи администратора.
func (a *Authenticator) cacheKey(p model.Principal, asAdmin bool) string {
	if asAdmin {
		return a.cfg.AdminAccount
	}
	return p.ID
}

// GetToken возвращает действующий токен из кэша или аутентифицируется заново.
// Конкурентные промахи по одному ключу выполняют одну аутентификацию.
func (a *Authenticator) GetToken(ctx context.Context, p model.Principal, asAdmin bool) (string, error) {
	key := a.cacheKey(p, asAdmin)
	if s, ok := a.cache.Get(key, a.now()); ok {
		tokenCacheHits.Inc()
		return s.Token, nil
	}

	v, err, _ := a.group.Do(key, func() (any, error) {
		if s, ok := a.cache.Get(key, a.now()); ok {
			return s.Token, nil
		}
		return a.authenticate(ctx, key, p, asAdmin)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Refresh аутентифицируется заново в обход кэша и сохраняет новый токен.
func (a *Authenticator) Refresh(ctx context.Context, p model.Principal, asAdmin bool) (string, error) {
	key := a.cacheKey(p, asAdmin)
	a.cache.Invalidate(key)

	v, err, _ := a.group.Do("refresh:"+key, func() (any, error) {
		return a.authenticate(ctx, key, p, asAdmin)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (a *Authenticator) authenticate(ctx context.Context, key string, p model.Principal, asAdmin bool) (string, error) {
	issuedAt := a.now()

	var (
		url string
		env envelope
	)
	if asAdmin {
		authRequestsTotal.WithLabelValues("admin").Inc()
		url = a.cfg.AdminURL
		env = newEnvelope("AuthRequest", NamespaceAdmin, map[string]any{
			"name":     a.cfg.AdminAccount,
			"password": a.cfg.AdminPassword,
		}, "")
	} else {
		authRequestsTotal.WithLabelValues("preauth").Inc()
		ts := issuedAt.UnixMilli()
		pa, err := ComputePreauth(a.cfg.PreauthKey, p.Address, false, ts)
		if err != nil {
			return "", err
		}
		url = a.cfg.UserURL
		env = newEnvelope("AuthRequest", NamespaceAccount, map[string]any{
			"account": map[string]any{"by": "name", "_content": p.Address},
			"preauth": map[string]any{"timestamp": ts, "expires": 0, "_content": pa},
		}, "")
	}

	raw, err := a.transport.call(ctx, url, "AuthRequest", env)
	if err != nil {
		return "", err
	}

	var resp authResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%w: AuthResponse: %v", ErrMalformedResponse, err)
	}
	if len(resp.AuthToken) == 0 || resp.AuthToken[0].Content == "" {
		return "", fmt.Errorf("%w: AuthResponse без authToken", ErrMalformedResponse)
	}

	lifetime := time.Duration(resp.Lifetime) * time.Millisecond
	margin := a.cfg.SafetyMargin
	if margin >= lifetime/2 {
		margin = lifetime / 2
		a.logger.Warn("Запас до истечения токена не меньше половины lifetime, уменьшен",
			slog.Duration("lifetime", lifetime),
			slog.Duration("configured_margin", a.cfg.SafetyMargin),
			slog.Duration("margin", margin),
		)
	}

	s := Session{
		Token:     resp.AuthToken[0].Content,
		ExpiresAt: issuedAt.Add(lifetime - margin),
		IsAdmin:   asAdmin,
	}
	a.cache.Put(key, s)

	a.logger.Debug("Токен Zimbra получен",
		slog.String("key", key),
		slog.Bool("admin", asAdmin),
		slog.Time("expires_at", s.ExpiresAt),
	)
	return s.Token, nil
}
