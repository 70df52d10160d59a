// internal/controllers/telegram/controller.go
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"repair-tracker/internal/dialog"
	"repair-tracker/internal/repositories"
	"repair-tracker/internal/services"
	"repair-tracker/pkg/config"
	"repair-tracker/pkg/telegram"
)

const (
	maxMessageAge         = 2 * time.Minute
	commandCooldown       = 1000 * time.Millisecond
	callbackCooldown      = 500 * time.Millisecond
	menuCooldown          = 2000 * time.Millisecond
	goroutineTimeout      = 45 * time.Second
	pollRetryDelay        = 3 * time.Second
	maxConcurrentRequests = 50
)

// DialogEngine - пошаговые диалоги "в ремонт" / "из ремонта".
type DialogEngine interface {
	Start(ctx context.Context, sessionID int64, kind dialog.Kind) dialog.Response
	Cancel(ctx context.Context, sessionID int64) dialog.Response
	OnTextInput(ctx context.Context, sessionID int64, text string) dialog.Response
	OnChoiceSelected(ctx context.Context, sessionID int64, choiceID string) dialog.Response
}

// TelegramController принимает обновления бота (вебхук или long polling),
// проверяет доступ и передает ввод в движок диалогов.
type TelegramController struct {
	engine        DialogEngine
	reportService services.ReportServiceInterface
	tgService     telegram.ServiceInterface
	cacheRepo     repositories.CacheRepositoryInterface
	deduplicator  *RequestDeduplicator
	cfg           config.TelegramConfig
	loc           *time.Location
	logger        *zap.Logger

	sem chan struct{}
	wg  sync.WaitGroup
}

func NewTelegramController(
	engine DialogEngine,
	reportService services.ReportServiceInterface,
	tgService telegram.ServiceInterface,
	cacheRepo repositories.CacheRepositoryInterface,
	cfg config.TelegramConfig,
	loc *time.Location,
	logger *zap.Logger,
) *TelegramController {
	return &TelegramController{
		engine:        engine,
		reportService: reportService,
		tgService:     tgService,
		cacheRepo:     cacheRepo,
		deduplicator:  NewRequestDeduplicator(),
		cfg:           cfg,
		loc:           loc,
		logger:        logger,
		sem:           make(chan struct{}, maxConcurrentRequests),
	}
}

// HandleTelegramWebhook всегда отвечает 200: Telegram повторяет доставку при любом другом коде.
func (c *TelegramController) HandleTelegramWebhook(ctx echo.Context) error {
	var update telegram.Update
	if err := ctx.Bind(&update); err != nil {
		c.logger.Warn("Не удалось разобрать обновление Telegram", zap.Error(err))
		return ctx.NoContent(http.StatusOK)
	}

	c.dispatchAsync(update)
	return ctx.NoContent(http.StatusOK)
}

// RunPolling получает обновления через getUpdates, пока не отменен ctx.
func (c *TelegramController) RunPolling(ctx context.Context) {
	if err := c.tgService.DeleteWebhook(ctx); err != nil {
		c.logger.Warn("Не удалось удалить вебхук перед запуском polling", zap.Error(err))
	}
	c.logger.Info("Запуск Telegram long polling", zap.Duration("timeout", c.cfg.PollTimeout))

	offset := 0
	for {
		if ctx.Err() != nil {
			c.logger.Info("Telegram long polling остановлен")
			return
		}

		updates, err := c.tgService.GetUpdates(ctx, offset, c.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Error("Ошибка получения обновлений Telegram", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(pollRetryDelay):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			c.dispatchAsync(update)
		}
	}
}

// RegisterWebhook сообщает Telegram адрес вебхука этого сервиса.
func (c *TelegramController) RegisterWebhook(ctx context.Context, baseURL string) error {
	webhookURL := fmt.Sprintf("%s/api/webhooks/telegram", strings.TrimSuffix(baseURL, "/"))
	c.logger.Info("Регистрация вебхука Telegram", zap.String("url", webhookURL))

	if err := c.tgService.SetWebhook(ctx, webhookURL); err != nil {
		return fmt.Errorf("регистрация вебхука: %w", err)
	}
	c.logger.Info("✅ TELEGRAM BOT УСПЕШНО ПОДКЛЮЧЕН")
	return nil
}

func (c *TelegramController) StartCleanup(ctx context.Context) {
	c.logger.Info("Запуск фоновой очистки дедупликатора")
	c.deduplicator.Cleanup(ctx, 1*time.Minute)
	c.logger.Info("Фоновая очистка остановлена")
}

// Wait дожидается обработки уже принятых обновлений.
func (c *TelegramController) Wait() {
	c.wg.Wait()
}

func (c *TelegramController) dispatchAsync(update telegram.Update) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.recoverPanic("dispatchAsync")

		c.sem <- struct{}{}
		defer func() { <-c.sem }()

		ctx, cancel := context.WithTimeout(context.Background(), goroutineTimeout)
		defer cancel()
		c.HandleUpdate(ctx, update)
	}()
}

// HandleUpdate обрабатывает одно обновление синхронно.
func (c *TelegramController) HandleUpdate(ctx context.Context, update telegram.Update) {
	switch {
	case update.CallbackQuery != nil:
		c.handleCallbackQuery(ctx, update.CallbackQuery)
	case update.Message != nil:
		if !c.isMessageRecent(update.Message) {
			return
		}
		c.handleMessage(ctx, update.Message)
	}
}

// isMessageRecent отсекает сообщения, накопившиеся пока бот был выключен.
// Нажатия кнопок не проверяются: дата у них - дата отправки сообщения ботом.
func (c *TelegramController) isMessageRecent(msg *telegram.Message) bool {
	if msg.Date <= 0 {
		return true
	}
	return time.Since(time.Unix(msg.Date, 0)) <= maxMessageAge
}

func (c *TelegramController) recoverPanic(funcName string) {
	if r := recover(); r != nil {
		c.logger.Error("PANIC в горутине",
			zap.String("function", funcName),
			zap.Any("panic", r),
			zap.Stack("stacktrace"))
	}
}
