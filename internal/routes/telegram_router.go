package routes

import (
	"github.com/labstack/echo/v4"

	"repair-tracker/internal/controllers/telegram"
)

// Вебхук вне группы с API-ключом: Telegram его не передает.
func runTelegramRouter(api *echo.Group, tgController *telegram.TelegramController) {
	api.POST("/webhooks/telegram", tgController.HandleTelegramWebhook)
}
