package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// testKeyID — идентификатор ключа для тестов.
const testKeyID = "test-key-zs"

const testIssuer = "https://auth.ent.lan/realms/ent"

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
	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}
	data, _ := json.Marshal(jwks)
	return data
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestJWTAuth(t *testing.T, key *rsa.PrivateKey) *JWTAuth {
	t.Helper()
	kf, err := keyfunc.NewJWKSetJSON(buildJWKSetJSON(&key.PublicKey, testKeyID))
	if err != nil {
		t.Fatalf("не удалось создать keyfunc: %v", err)
	}
	return NewJWTAuthWithKeyfunc(kf, testIssuer, testLogger())
}

// generateToken генерирует JWT с указанными claims поверх стандартных.
func generateToken(t *testing.T, key *rsa.PrivateKey, sub string, extra jwt.MapClaims, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": sub,
		"iss": testIssuer,
		"exp": jwt.NewNumericDate(exp),
		"iat": jwt.NewNumericDate(time.Now()),
	}
	for k, v := range extra {
		claims[k] = v
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// TestJWTAuth_ValidToken — валидный токен, роли realm и клиента объединяются.
func TestJWTAuth_ValidToken(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)

	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			t.Fatal("claims не найдены в контексте")
		}
		if claims.Subject != "svc-1" || claims.PreferredUsername != "scheduler" {
			t.Errorf("claims = %+v", claims)
		}
		if !claims.HasRole("zimbra-sync-admin") || !claims.HasRole("offline_access") {
			t.Errorf("роли = %v", claims.Roles)
		}
		if len(claims.Roles) != 2 {
			t.Errorf("роли не должны повторяться: %v", claims.Roles)
		}
		w.WriteHeader(http.StatusOK)
	}))

	tokenStr := generateToken(t, key, "svc-1", jwt.MapClaims{
		"preferred_username": "scheduler",
		"realm_access":       map[string]any{"roles": []string{"offline_access", "zimbra-sync-admin"}},
		"resource_access": map[string]any{
			"zimbra-sync": map[string]any{"roles": []string{"zimbra-sync-admin"}},
		},
	}, time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/drain", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получен %d, тело: %s", rec.Code, rec.Body.String())
	}
}

// TestJWTAuth_Rejected — токены, которые не должны проходить.
func TestJWTAuth_Rejected(t *testing.T) {
	key := generateTestKey(t)
	otherKey := generateTestKey(t)
	auth := newTestJWTAuth(t, key)

	tests := []struct {
		name   string
		header string
	}{
		{"без заголовка", ""},
		{"не Bearer", "Basic dXNlcjpwYXNz"},
		{"пустой токен", "Bearer "},
		{"мусор", "Bearer not-a-jwt"},
		{"просрочен", "Bearer " + generateToken(t, key, "svc-1", nil, time.Now().Add(-time.Hour))},
		{"чужой ключ", "Bearer " + generateToken(t, otherKey, "svc-1", nil, time.Now().Add(time.Hour))},
		{"чужой issuer", "Bearer " + generateToken(t, key, "svc-1", jwt.MapClaims{"iss": "https://evil"}, time.Now().Add(time.Hour))},
		{"без sub", "Bearer " + generateToken(t, key, "", nil, time.Now().Add(time.Hour))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler не должен быть вызван")
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("ожидался статус 401, получен %d", rec.Code)
			}
		})
	}
}

// TestRequireRole проверяет авторизацию по роли.
func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		claims   *AuthClaims
		expected int
	}{
		{"есть роль", &AuthClaims{Subject: "a", Roles: []string{"zimbra-sync-admin"}}, http.StatusOK},
		{"нет роли", &AuthClaims{Subject: "b", Roles: []string{"viewer"}}, http.StatusForbidden},
		{"нет claims", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireRole("zimbra-sync-admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.claims != nil {
				req = req.WithContext(context.WithValue(req.Context(), ContextKeyClaims, tt.claims))
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expected {
				t.Errorf("ожидался статус %d, получен %d", tt.expected, rec.Code)
			}
		})
	}
}

func TestSubjectFromContext(t *testing.T) {
	if got := SubjectFromContext(context.Background()); got != "" {
		t.Errorf("пустой контекст: %q", got)
	}
	ctx := context.WithValue(context.Background(), ContextKeyClaims, &AuthClaims{Subject: "svc-1"})
	if got := SubjectFromContext(ctx); got != "svc-1" {
		t.Errorf("SubjectFromContext() = %q", got)
	}
}
