// Файл: main.go

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"repair-tracker/internal/controllers/telegram"
	"repair-tracker/internal/dialog"
	"repair-tracker/internal/repositories"
	"repair-tracker/internal/routes"
	"repair-tracker/internal/services"
	"repair-tracker/pkg/config"
	"repair-tracker/pkg/customvalidator"
	"repair-tracker/pkg/database/postgresql"
	apperrors "repair-tracker/pkg/errors"
	applogger "repair-tracker/pkg/logger"
	"repair-tracker/pkg/middleware"
	tgclient "repair-tracker/pkg/telegram"
	"repair-tracker/pkg/utils"
	"repair-tracker/seeders"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// 1. Конфиг и логгер
	cfg := config.New()
	logger := applogger.NewLogger(cfg.Log.Level, cfg.Log.File)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc := cfg.Location()

	// 2. Валидатор
	v := validator.New()
	if err := customvalidator.RegisterCustomValidations(v); err != nil {
		logger.Fatal("Ошибка регистрации кастомных правил валидации", zap.Error(err))
	}

	// 3. Хранилище журнала и справочников
	equipmentRepo, lookupRepo, closeStorage, err := initStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Не удалось инициализировать хранилище", zap.Error(err))
	}
	defer closeStorage()

	// 4. Кеш для сессий бота и допуска по паролю
	cacheRepo, closeCache, err := initCache(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Не удалось инициализировать кеш сессий", zap.Error(err))
	}
	defer closeCache()

	// 5. Сервисы
	lifecycleService := services.NewLifecycleService(equipmentRepo, v, loc, logger)
	lookupService := services.NewLookupService(lookupRepo, logger)
	reportService := services.NewReportService(lifecycleService, lookupService, logger)

	svc := routes.Services{
		Lifecycle: lifecycleService,
		Lookups:   lookupService,
		Reports:   reportService,
	}

	// 6. Telegram-бот
	var tgController *telegram.TelegramController
	if cfg.Telegram.BotToken == "" {
		logger.Warn("BOT_TOKEN не задан: Telegram-бот не запущен, работает только HTTP API")
	} else {
		engine := dialog.NewEngine(lookupService, lifecycleService,
			dialog.NewCacheSessionStore(cacheRepo, cfg.Session.TTL), logger)
		tgController = telegram.NewTelegramController(engine, reportService,
			tgclient.NewService(cfg.Telegram.BotToken), cacheRepo, cfg.Telegram, loc, logger)

		go tgController.StartCleanup(ctx)

		if cfg.Telegram.WebhookBaseURL != "" {
			svc.Telegram = tgController
			go func() {
				if err := tgController.RegisterWebhook(ctx, cfg.Telegram.WebhookBaseURL); err != nil {
					logger.Error("Не удалось зарегистрировать Telegram Webhook", zap.Error(err))
				}
			}()
		} else {
			go tgController.RunPolling(ctx)
		}
	}

	// 7. HTTP
	e := newEcho(v, logger)
	routes.InitRouter(e, svc, cfg, logger)

	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info("🚀 Сервер запущен", zap.String("addr", addr), zap.String("storage", cfg.Storage.Driver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Ошибка запуска сервера", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Получен сигнал остановки, завершение работы...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ошибка остановки HTTP сервера", zap.Error(err))
	}
	if tgController != nil {
		tgController.Wait()
	}
	logger.Info("Сервис остановлен")
}

func newEcho(v *validator.Validate, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = utils.NewValidator(v)

	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		DisableStackAll: true,
		StackSize:       1 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("!!! ОБНАРУЖЕНА ПАНИКА (PANIC) !!!",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
				zap.String("stack", string(stack)),
			)
			if !c.Response().Committed {
				httpErr := apperrors.NewHttpError(http.StatusInternalServerError, "Внутренняя ошибка сервера", err, nil)
				_ = utils.ErrorResponse(c, httpErr, logger)
			}
			return err
		},
	}))
	e.Use(middleware.RequestLogger(logger))
	return e
}

func initStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (
	repositories.EquipmentRepositoryInterface,
	repositories.LookupRepositoryInterface,
	func(),
	error,
) {
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		logger.Warn("STORAGE_DRIVER=memory: журнал хранится в памяти и пропадет при перезапуске")
		lookupRepo := repositories.NewMemoryLookupRepository(seeders.DemoLookups())
		return repositories.NewMemoryEquipmentRepository(lookupRepo),
			lookupRepo,
			func() {},
			nil

	case config.StorageDriverPostgres:
		if cfg.Postgres.AutoMigrate {
			if err := postgresql.Migrate(ctx, cfg.Postgres.DSN, logger); err != nil {
				return nil, nil, nil, err
			}
		}
		dbConn, err := postgresql.ConnectDB(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("Подключение к PostgreSQL установлено")
		return repositories.NewEquipmentRepository(dbConn, logger),
			repositories.NewLookupRepository(dbConn, logger),
			dbConn.Close,
			nil

	default:
		return nil, nil, nil, fmt.Errorf("неизвестный STORAGE_DRIVER %q", cfg.Storage.Driver)
	}
}

func initCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.CacheRepositoryInterface, func(), error) {
	switch cfg.Session.Backend {
	case config.SessionBackendMemory:
		return repositories.NewMemoryCacheRepository(), func() {}, nil

	case config.SessionBackendRedis:
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if _, err := redisClient.Ping(ctx).Result(); err != nil {
			_ = redisClient.Close()
			return nil, nil, fmt.Errorf("не удалось подключиться к Redis (%s): %w", cfg.Redis.Address, err)
		}
		logger.Info("Подключение к Redis установлено", zap.String("address", cfg.Redis.Address))
		return repositories.NewRedisCacheRepository(redisClient), func() { _ = redisClient.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("неизвестный SESSION_BACKEND %q", cfg.Session.Backend)
	}
}
