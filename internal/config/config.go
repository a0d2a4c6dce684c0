// Пакет config — загрузка и валидация конфигурации zimbra-sync
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации zimbra-sync.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Zimbra ---

	// SOAP endpoint пользовательских операций (…/service/soap)
	ZimbraURL string
	// SOAP endpoint административных операций (…:7071/service/admin/soap)
	ZimbraAdminURL string
	// Почтовый домен всех учётных записей
	ZimbraDomain string
	// Ключ preauth домена (ключ HMAC)
	ZimbraPreauthKey string
	// Сервисная учётная запись администратора
	ZimbraAdminAccount string
	// Пароль сервисной учётной записи администратора
	ZimbraAdminPassword string
	// Путь к CA-сертификату Zimbra (опционально)
	ZimbraCACertPath string
	// Запас времени до истечения токена, после которого токен считается просроченным
	TokenSafetyMargin time.Duration
	// Максимальное количество сессий в кэше токенов
	TokenCacheSize int

	// --- Каталог (identity graph) ---

	// Базовый URL HTTP API каталога
	DirectoryURL string
	// Bearer-токен каталога (опционально)
	DirectoryToken string

	// --- Очередь синхронизации ---

	// Интервал периодического разбора очереди
	DrainInterval time.Duration
	// Возраст IN_PROGRESS записи, после которого она снова доступна для захвата (0 — никогда)
	StaleClaimTimeout time.Duration
	// Максимальный суффикс при разрешении коллизий имени учётной записи (login-N)
	MaxNameSuffix int

	// --- Адресные книги ---

	// Общий почтовый ящик, в который публикуются адресные книги структур
	AddressBookAccount string
	// Имя корневой папки адресных книг
	AddressBookRootFolder string
	// Максимальное число параллельно создаваемых соседних папок
	AddressBookParallelism int

	// --- JWT (опционально, защита /api) ---

	JWTJWKSURL   string
	JWTIssuer    string
	JWTAdminRole string

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	cfg.Port, err = getEnvInt("ZS_PORT", 8010)
	if err != nil {
		return nil, fmt.Errorf("ZS_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("ZS_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("ZS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("ZS_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("ZS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("ZS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	if cfg.DBHost, err = getEnvRequired("ZS_DB_HOST"); err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("ZS_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("ZS_DB_PORT: %w", err)
	}
	if cfg.DBName, err = getEnvRequired("ZS_DB_NAME"); err != nil {
		return nil, err
	}
	if cfg.DBUser, err = getEnvRequired("ZS_DB_USER"); err != nil {
		return nil, err
	}
	if cfg.DBPassword, err = getEnvRequired("ZS_DB_PASSWORD"); err != nil {
		return nil, err
	}
	cfg.DBSSLMode = getEnvDefault("ZS_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("ZS_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Zimbra ---

	if cfg.ZimbraURL, err = getEnvRequired("ZS_ZIMBRA_URL"); err != nil {
		return nil, err
	}
	cfg.ZimbraURL = strings.TrimRight(cfg.ZimbraURL, "/")

	if cfg.ZimbraAdminURL, err = getEnvRequired("ZS_ZIMBRA_ADMIN_URL"); err != nil {
		return nil, err
	}
	cfg.ZimbraAdminURL = strings.TrimRight(cfg.ZimbraAdminURL, "/")

	if cfg.ZimbraDomain, err = getEnvRequired("ZS_ZIMBRA_DOMAIN"); err != nil {
		return nil, err
	}
	if cfg.ZimbraPreauthKey, err = getEnvRequired("ZS_ZIMBRA_PREAUTH_KEY"); err != nil {
		return nil, err
	}
	if cfg.ZimbraAdminAccount, err = getEnvRequired("ZS_ZIMBRA_ADMIN_ACCOUNT"); err != nil {
		return nil, err
	}
	if cfg.ZimbraAdminPassword, err = getEnvRequired("ZS_ZIMBRA_ADMIN_PASSWORD"); err != nil {
		return nil, err
	}
	cfg.ZimbraCACertPath = getEnvDefault("ZS_ZIMBRA_CA_CERT_PATH", "")

	cfg.TokenSafetyMargin, err = getEnvDuration("ZS_TOKEN_SAFETY_MARGIN", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("ZS_TOKEN_SAFETY_MARGIN: %w", err)
	}

	cfg.TokenCacheSize, err = getEnvInt("ZS_TOKEN_CACHE_SIZE", 10000)
	if err != nil {
		return nil, fmt.Errorf("ZS_TOKEN_CACHE_SIZE: %w", err)
	}
	if cfg.TokenCacheSize < 1 {
		return nil, fmt.Errorf("ZS_TOKEN_CACHE_SIZE: значение %d должно быть положительным", cfg.TokenCacheSize)
	}

	// --- Каталог ---

	if cfg.DirectoryURL, err = getEnvRequired("ZS_DIRECTORY_URL"); err != nil {
		return nil, err
	}
	cfg.DirectoryURL = strings.TrimRight(cfg.DirectoryURL, "/")
	cfg.DirectoryToken = getEnvDefault("ZS_DIRECTORY_TOKEN", "")

	// --- Очередь синхронизации ---

	cfg.DrainInterval, err = getEnvDuration("ZS_DRAIN_INTERVAL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("ZS_DRAIN_INTERVAL: %w", err)
	}

	cfg.StaleClaimTimeout, err = getEnvDuration("ZS_STALE_CLAIM_TIMEOUT", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("ZS_STALE_CLAIM_TIMEOUT: %w", err)
	}
	if cfg.StaleClaimTimeout < 0 {
		return nil, fmt.Errorf("ZS_STALE_CLAIM_TIMEOUT: отрицательная длительность %s", cfg.StaleClaimTimeout)
	}

	cfg.MaxNameSuffix, err = getEnvInt("ZS_MAX_NAME_SUFFIX", 100)
	if err != nil {
		return nil, fmt.Errorf("ZS_MAX_NAME_SUFFIX: %w", err)
	}
	if cfg.MaxNameSuffix < 1 {
		return nil, fmt.Errorf("ZS_MAX_NAME_SUFFIX: значение %d должно быть положительным", cfg.MaxNameSuffix)
	}

	// --- Адресные книги ---

	if cfg.AddressBookAccount, err = getEnvRequired("ZS_ADDRESSBOOK_ACCOUNT"); err != nil {
		return nil, err
	}
	cfg.AddressBookRootFolder = getEnvDefault("ZS_ADDRESSBOOK_ROOT_FOLDER", "Carnets d'adresses")
	if strings.Contains(cfg.AddressBookRootFolder, "/") {
		return nil, fmt.Errorf("ZS_ADDRESSBOOK_ROOT_FOLDER: имя папки не может содержать '/'")
	}

	cfg.AddressBookParallelism, err = getEnvInt("ZS_ADDRESSBOOK_PARALLELISM", 5)
	if err != nil {
		return nil, fmt.Errorf("ZS_ADDRESSBOOK_PARALLELISM: %w", err)
	}
	if cfg.AddressBookParallelism < 1 || cfg.AddressBookParallelism > 64 {
		return nil, fmt.Errorf("ZS_ADDRESSBOOK_PARALLELISM: значение %d вне допустимого диапазона 1-64", cfg.AddressBookParallelism)
	}

	// --- JWT ---

	cfg.JWTJWKSURL = getEnvDefault("ZS_JWT_JWKS_URL", "")
	cfg.JWTIssuer = getEnvDefault("ZS_JWT_ISSUER", "")
	cfg.JWTAdminRole = getEnvDefault("ZS_JWT_ADMIN_ROLE", "zimbra-sync-admin")

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("ZS_DEPHEALTH_GROUP", "zimbra-sync")
	cfg.DephealthCheckInterval, err = getEnvDuration("ZS_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("ZS_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("ZS_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("ZS_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов метрик).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
