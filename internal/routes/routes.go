package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"repair-tracker/internal/controllers"
	"repair-tracker/internal/controllers/telegram"
	"repair-tracker/internal/services"
	"repair-tracker/pkg/config"
	"repair-tracker/pkg/middleware"
)

// Services - собранные в main сервисы, которые публикуются наружу.
type Services struct {
	Lifecycle services.LifecycleServiceInterface
	Lookups   services.LookupServiceInterface
	Reports   services.ReportServiceInterface
	// nil, если бот работает через long polling или выключен
	Telegram *telegram.TelegramController
}

func InitRouter(e *echo.Echo, svc Services, cfg *config.Config, logger *zap.Logger) {
	logger.Info("InitRouter: Начало создания маршрутов")

	api := e.Group("/api")
	secureGroup := api.Group("", middleware.APIKeyAuth(cfg.API.Key, logger))
	if cfg.API.Key == "" {
		logger.Warn("API_KEY не задан: HTTP API доступен без ключа")
	}

	equipmentCtrl := controllers.NewEquipmentController(svc.Lifecycle, svc.Reports, cfg.Location(), logger)
	lookupCtrl := controllers.NewLookupController(svc.Lookups, logger)

	runLookupRouter(secureGroup, lookupCtrl)
	runEquipmentRouter(secureGroup, equipmentCtrl)
	if svc.Telegram != nil {
		runTelegramRouter(api, svc.Telegram)
	}

	logger.Info("INIT_ROUTER: Создание маршрутов завершено")
}
