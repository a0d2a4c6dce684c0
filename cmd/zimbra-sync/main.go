// Точка входа zimbra-sync — синхронизация каталога ENT с Zimbra.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// создаёт клиентов Zimbra и каталога, сервисный слой и API handlers,
// запускает периодический разбор очереди, topologymetrics,
// HTTP-сервер и выполняет graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/zimbra-sync/internal/api/handlers"
	"github.com/bigkaa/zimbra-sync/internal/api/middleware"
	"github.com/bigkaa/zimbra-sync/internal/config"
	"github.com/bigkaa/zimbra-sync/internal/database"
	"github.com/bigkaa/zimbra-sync/internal/identity"
	"github.com/bigkaa/zimbra-sync/internal/mailbox"
	"github.com/bigkaa/zimbra-sync/internal/repository"
	"github.com/bigkaa/zimbra-sync/internal/server"
	"github.com/bigkaa/zimbra-sync/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("zimbra-sync запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("domain", cfg.ZimbraDomain),
	)

	if os.Getenv("ZS_DEPHEALTH_GROUP") == "" {
		logger.Warn("ZS_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Zimbra: HTTP-клиент, кэш токенов, аутентификация, SOAP-клиент
	zimbraHTTP, err := mailbox.NewHTTPClient(cfg.ZimbraCACertPath)
	if err != nil {
		logger.Error("Ошибка создания HTTP-клиента Zimbra", slog.String("error", err.Error()))
		os.Exit(1)
	}
	tokenCache := mailbox.NewTokenCache(cfg.TokenCacheSize)
	authenticator := mailbox.NewAuthenticator(mailbox.AuthConfig{
		UserURL:       cfg.ZimbraURL,
		AdminURL:      cfg.ZimbraAdminURL,
		PreauthKey:    cfg.ZimbraPreauthKey,
		AdminAccount:  cfg.ZimbraAdminAccount,
		AdminPassword: cfg.ZimbraAdminPassword,
		SafetyMargin:  cfg.TokenSafetyMargin,
	}, tokenCache, zimbraHTTP, logger)
	zimbra := mailbox.NewClient(cfg.ZimbraURL, cfg.ZimbraAdminURL, authenticator, zimbraHTTP, logger)
	logger.Info("Клиент Zimbra создан",
		slog.String("url", cfg.ZimbraURL),
		slog.String("admin_url", cfg.ZimbraAdminURL),
	)

	// 6. Каталог
	directory := identity.NewHTTPSource(cfg.DirectoryURL, cfg.DirectoryToken,
		&http.Client{Timeout: 30 * time.Second}, logger)

	// 7. Repositories
	queueRepo := repository.NewSyncQueueRepository(pool)
	groupsRepo := repository.NewSyncedGroupRepository(pool)
	stateRepo := repository.NewSyncStateRepository(pool)

	// 8. Services
	reconciler := service.NewAccountReconciler(
		directory, zimbra, groupsRepo,
		cfg.ZimbraDomain, cfg.MaxNameSuffix,
		logger,
	)
	// AUTH_FAILED при отсутствии учётной записи → создание через reconciler
	zimbra.SetAccountProvisioner(reconciler)

	drainSvc := service.NewQueueDrainService(
		queueRepo, stateRepo, reconciler,
		cfg.DrainInterval, cfg.StaleClaimTimeout,
		logger,
	)
	addressBookSvc := service.NewAddressBookService(
		directory, zimbra, stateRepo,
		cfg.ZimbraDomain, cfg.AddressBookAccount, cfg.AddressBookRootFolder,
		cfg.AddressBookParallelism,
		logger,
	)

	// 9. Readiness checkers (PostgreSQL + Zimbra) и API handler
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool), zimbra)
	apiHandler := handlers.NewAPIHandler(healthHandler, drainSvc, reconciler, addressBookSvc, logger)

	// 10. JWT middleware (опционально)
	var jwtAuth *middleware.JWTAuth
	if cfg.JWTJWKSURL != "" {
		jwtAuth, err = middleware.NewJWTAuth(cfg.JWTJWKSURL, cfg.JWTIssuer,
			&http.Client{Timeout: 10 * time.Second}, logger)
		if err != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("JWT middleware инициализирован",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
			slog.String("role", cfg.JWTAdminRole),
		)
	} else {
		logger.Warn("ZS_JWT_JWKS_URL не задан, /api доступен без аутентификации")
	}

	// 11. Запуск фоновых задач
	drainSvc.Start(ctx)

	// 11.1 topologymetrics — мониторинг зависимостей
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"zimbra-sync",
		cfg.DephealthGroup,
		pgDB,
		service.DependencyEndpoints{
			PostgresURL:  cfg.DatabaseURL(),
			ZimbraURL:    cfg.ZimbraURL,
			DirectoryURL: cfg.DirectoryURL,
		},
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 12. HTTP-сервер
	srv := server.New(cfg, logger, apiHandler, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 13. Graceful shutdown фоновых задач: текущая задача очереди дорабатывается
	logger.Info("Останавливаем фоновые задачи...")
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	drainSvc.Stop()

	logger.Info("zimbra-sync остановлен")
}
