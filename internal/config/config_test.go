package config

import (
	"log/slog"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"ZS_DB_HOST":               "localhost",
		"ZS_DB_NAME":               "zimbrasync",
		"ZS_DB_USER":               "zimbrasync",
		"ZS_DB_PASSWORD":           "secret",
		"ZS_ZIMBRA_URL":            "https://mail.ent.lan/service/soap/",
		"ZS_ZIMBRA_ADMIN_URL":      "https://mail.ent.lan:7071/service/admin/soap",
		"ZS_ZIMBRA_DOMAIN":         "ent.lan",
		"ZS_ZIMBRA_PREAUTH_KEY":    "0f1e2d3c4b5a",
		"ZS_ZIMBRA_ADMIN_ACCOUNT":  "admin@ent.lan",
		"ZS_ZIMBRA_ADMIN_PASSWORD": "admin-secret",
		"ZS_DIRECTORY_URL":         "http://directory.ent.lan/",
		"ZS_ADDRESSBOOK_ACCOUNT":   "carnets@ent.lan",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	// Проверяем значения по умолчанию
	if cfg.Port != 8010 {
		t.Errorf("Port = %d, ожидается 8010", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидается 5432", cfg.DBPort)
	}
	if cfg.ZimbraURL != "https://mail.ent.lan/service/soap" {
		t.Errorf("ZimbraURL = %q, ожидался URL без trailing slash", cfg.ZimbraURL)
	}
	if cfg.DirectoryURL != "http://directory.ent.lan" {
		t.Errorf("DirectoryURL = %q, ожидался URL без trailing slash", cfg.DirectoryURL)
	}
	if cfg.TokenSafetyMargin != 30*time.Second {
		t.Errorf("TokenSafetyMargin = %v, ожидается 30s", cfg.TokenSafetyMargin)
	}
	if cfg.TokenCacheSize != 10000 {
		t.Errorf("TokenCacheSize = %d, ожидается 10000", cfg.TokenCacheSize)
	}
	if cfg.DrainInterval != time.Minute {
		t.Errorf("DrainInterval = %v, ожидается 1m", cfg.DrainInterval)
	}
	if cfg.StaleClaimTimeout != time.Hour {
		t.Errorf("StaleClaimTimeout = %v, ожидается 1h", cfg.StaleClaimTimeout)
	}
	if cfg.MaxNameSuffix != 100 {
		t.Errorf("MaxNameSuffix = %d, ожидается 100", cfg.MaxNameSuffix)
	}
	if cfg.AddressBookRootFolder != "Carnets d'adresses" {
		t.Errorf("AddressBookRootFolder = %q", cfg.AddressBookRootFolder)
	}
	if cfg.AddressBookParallelism != 5 {
		t.Errorf("AddressBookParallelism = %d, ожидается 5", cfg.AddressBookParallelism)
	}
	if cfg.JWTJWKSURL != "" {
		t.Errorf("JWTJWKSURL = %q, ожидалась пустая строка", cfg.JWTJWKSURL)
	}
	if cfg.JWTAdminRole != "zimbra-sync-admin" {
		t.Errorf("JWTAdminRole = %q, ожидается zimbra-sync-admin", cfg.JWTAdminRole)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	envs := minimalEnvs()
	envs["ZS_PORT"] = "9000"
	envs["ZS_LOG_LEVEL"] = "debug"
	envs["ZS_LOG_FORMAT"] = "text"
	envs["ZS_DB_SSL_MODE"] = "require"
	envs["ZS_TOKEN_SAFETY_MARGIN"] = "1m"
	envs["ZS_DRAIN_INTERVAL"] = "10s"
	envs["ZS_STALE_CLAIM_TIMEOUT"] = "0s"
	envs["ZS_MAX_NAME_SUFFIX"] = "5"
	envs["ZS_ADDRESSBOOK_PARALLELISM"] = "2"
	envs["ZS_JWT_JWKS_URL"] = "https://auth.ent.lan/certs"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Port = %d, ожидается 9000", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, ожидается Debug", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, ожидается text", cfg.LogFormat)
	}
	if cfg.DBSSLMode != "require" {
		t.Errorf("DBSSLMode = %q, ожидается require", cfg.DBSSLMode)
	}
	if cfg.TokenSafetyMargin != time.Minute {
		t.Errorf("TokenSafetyMargin = %v, ожидается 1m", cfg.TokenSafetyMargin)
	}
	if cfg.DrainInterval != 10*time.Second {
		t.Errorf("DrainInterval = %v, ожидается 10s", cfg.DrainInterval)
	}
	if cfg.StaleClaimTimeout != 0 {
		t.Errorf("StaleClaimTimeout = %v, ожидается 0", cfg.StaleClaimTimeout)
	}
	if cfg.MaxNameSuffix != 5 {
		t.Errorf("MaxNameSuffix = %d, ожидается 5", cfg.MaxNameSuffix)
	}
	if cfg.AddressBookParallelism != 2 {
		t.Errorf("AddressBookParallelism = %d, ожидается 2", cfg.AddressBookParallelism)
	}
	if cfg.JWTJWKSURL != "https://auth.ent.lan/certs" {
		t.Errorf("JWTJWKSURL = %q", cfg.JWTJWKSURL)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	for missing := range minimalEnvs() {
		t.Run(missing, func(t *testing.T) {
			setEnvs(t, minimalEnvs())
			t.Setenv(missing, "")

			if _, err := Load(); err == nil {
				t.Errorf("Load() не вернул ошибку при отсутствии %s", missing)
			}
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"порт не число", "ZS_PORT", "abc"},
		{"порт вне диапазона", "ZS_PORT", "70000"},
		{"уровень логов", "ZS_LOG_LEVEL", "verbose"},
		{"формат логов", "ZS_LOG_FORMAT", "xml"},
		{"ssl mode", "ZS_DB_SSL_MODE", "prefer"},
		{"margin", "ZS_TOKEN_SAFETY_MARGIN", "soon"},
		{"размер кэша", "ZS_TOKEN_CACHE_SIZE", "0"},
		{"отрицательный stale timeout", "ZS_STALE_CLAIM_TIMEOUT", "-1m"},
		{"суффикс", "ZS_MAX_NAME_SUFFIX", "0"},
		{"параллелизм", "ZS_ADDRESSBOOK_PARALLELISM", "100"},
		{"корневая папка со слешем", "ZS_ADDRESSBOOK_ROOT_FOLDER", "a/b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envs := minimalEnvs()
			envs[tt.key] = tt.value
			setEnvs(t, envs)

			if _, err := Load(); err == nil {
				t.Errorf("Load() не вернул ошибку для %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DBHost:     "db",
		DBPort:     5432,
		DBName:     "zs",
		DBUser:     "u",
		DBPassword: "p",
		DBSSLMode:  "disable",
	}

	expected := "host=db port=5432 dbname=zs user=u password=p sslmode=disable"
	if got := cfg.DatabaseDSN(); got != expected {
		t.Errorf("DatabaseDSN() = %q, ожидается %q", got, expected)
	}
	if got := cfg.DatabaseURL(); got != "postgres://db:5432/zs" {
		t.Errorf("DatabaseURL() = %q", got)
	}
}
