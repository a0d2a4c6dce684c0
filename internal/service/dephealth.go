// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Мониторинг трёх зависимостей:
//   - PostgreSQL — SQL checker через существующий pgxpool (connection pool mode, critical)
//   - Zimbra — HTTP checker к SOAP endpoint (critical)
//   - каталог — HTTP checker к API каталога (non-critical: нужен только при работе задач)
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
//   - app_dependency_status — категория статуса
//   - app_dependency_status_detail — детальный статус
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // HTTP checker для Zimbra и каталога
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"     // PostgreSQL checker (pool mode)
	"github.com/prometheus/client_golang/prometheus"
)

// DependencyEndpoints — адреса проверяемых зависимостей.
type DependencyEndpoints struct {
	// PostgresURL — URL PostgreSQL (для метрик/лейблов, не для подключения)
	PostgresURL string
	// ZimbraURL — SOAP endpoint Zimbra
	ZimbraURL string
	// DirectoryURL — базовый URL API каталога
	DirectoryURL string
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
// db — *sql.DB, полученный из pgxpool через stdlib.OpenDBFromPool().
func NewDephealthService(
	serviceID string,
	group string,
	db *sql.DB,
	endpoints DependencyEndpoints,
	checkInterval time.Duration,
	logger *slog.Logger,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, db, endpoints, checkInterval, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	serviceID string,
	group string,
	db *sql.DB,
	endpoints DependencyEndpoints,
	checkInterval time.Duration,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, db, endpoints, checkInterval, logger,
		dephealth.WithRegisterer(registerer))
}

func newDephealthService(
	serviceID string,
	group string,
	db *sql.DB,
	endpoints DependencyEndpoints,
	checkInterval time.Duration,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
		// Используем pgcheck.New + dephealth.AddDependency напрямую,
		// чтобы не тянуть contrib/sqldb с транзитивной зависимостью на MySQL.
		dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(db)),
			dephealth.FromURL(endpoints.PostgresURL),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		),
		// У SOAP endpoint нет /health: GET на сам endpoint отвечает без авторизации
		dephealth.HTTP("zimbra",
			dephealth.FromURL(endpoints.ZimbraURL),
			dephealth.WithHTTPHealthPath(healthPath(endpoints.ZimbraURL, "/service/soap")),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		),
		dephealth.HTTP("directory",
			dephealth.FromURL(endpoints.DirectoryURL),
			dephealth.WithHTTPHealthPath(healthPath(endpoints.DirectoryURL, "")+"/health"),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(false),
		),
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(serviceID, group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// healthPath возвращает path из rawURL без завершающего '/'; fallback — если path пуст
// или URL не разбирается.
func healthPath(rawURL, fallback string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return fallback
	}
	path := parsed.Path
	for len(path) > 0 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	if path == "" {
		return fallback
	}
	return path
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен (PostgreSQL + Zimbra + каталог)")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
