// internal/controllers/telegram/commands.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"repair-tracker/internal/dialog"
	"repair-tracker/internal/repositories"
	"repair-tracker/pkg/telegram"
	"repair-tracker/pkg/utils"
)

const authorizedKey = "tg_authorized:%d"

const (
	btnToRepair   = "📤 В ремонт"
	btnFromRepair = "📥 Из ремонта"
	btnInRepair   = "📋 В ремонте"
	btnExport     = "📁 Выгрузка"
)

var mainMenu = [][]telegram.ReplyKeyboardButton{
	{{Text: btnToRepair}, {Text: btnFromRepair}},
	{{Text: btnInRepair}, {Text: btnExport}},
}

// ==================== ОБРАБОТКА СООБЩЕНИЙ ====================
func (c *TelegramController) handleMessage(ctx context.Context, msg *telegram.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	isCommand := strings.HasPrefix(text, "/")
	if isCommand {
		if !c.deduplicator.TryAcquire(chatID, "cmd:"+commandName(text), commandCooldown) {
			return
		}
	} else if isMenuButton(text) {
		if !c.deduplicator.TryAcquire(chatID, "menu:"+text, menuCooldown) {
			return
		}
	}

	if !c.isAuthorized(ctx, chatID) {
		c.handleUnauthorized(ctx, chatID, text, isCommand || isMenuButton(text))
		return
	}

	switch {
	case isCommand:
		c.handleCommand(ctx, chatID, text)
	case isMenuButton(text):
		c.handleMenuButton(ctx, chatID, text)
	default:
		c.render(ctx, chatID, 0, c.engine.OnTextInput(ctx, chatID, text))
	}
}

// ==================== ОБРАБОТКА КОМАНД ====================
func (c *TelegramController) handleCommand(ctx context.Context, chatID int64, text string) {
	switch commandName(text) {
	case "/start":
		_ = c.sendMainMenu(ctx, chatID, "👋 Учет оборудования в ремонте. Выберите действие в меню.")
	case "/torepair":
		c.render(ctx, chatID, 0, c.engine.Start(ctx, chatID, dialog.KindIntake))
	case "/fromrepair":
		c.render(ctx, chatID, 0, c.engine.Start(ctx, chatID, dialog.KindReturn))
	case "/show":
		c.handleShow(ctx, chatID)
	case "/file":
		c.handleExportMenu(ctx, chatID)
	case "/cancel":
		c.render(ctx, chatID, 0, c.engine.Cancel(ctx, chatID))
	case "/help":
		_ = c.handleHelpCommand(ctx, chatID)
	default:
		c.send(ctx, chatID, "❓ Неизвестная команда. Используйте /help для помощи.")
	}
}

func (c *TelegramController) handleMenuButton(ctx context.Context, chatID int64, text string) {
	switch text {
	case btnToRepair:
		c.handleCommand(ctx, chatID, "/torepair")
	case btnFromRepair:
		c.handleCommand(ctx, chatID, "/fromrepair")
	case btnInRepair:
		c.handleCommand(ctx, chatID, "/show")
	case btnExport:
		c.handleCommand(ctx, chatID, "/file")
	}
}

func (c *TelegramController) handleHelpCommand(ctx context.Context, chatID int64) error {
	helpText := "📖 *Справка по боту*\n\n" +
		"/torepair \\- отправить оборудование в ремонт\n" +
		"/fromrepair \\- принять оборудование из ремонта\n" +
		"/show \\- оборудование, которое сейчас в ремонте\n" +
		"/file \\- выгрузка журнала в CSV или Excel\n" +
		"/cancel \\- отменить текущее действие\n" +
		"/help \\- эта справка"
	return c.tgService.SendMessageEx(ctx, chatID, helpText,
		telegram.WithMarkdownV2(), telegram.WithReplyKeyboard(mainMenu))
}

func (c *TelegramController) sendMainMenu(ctx context.Context, chatID int64, text string) error {
	err := c.tgService.SendMessageEx(ctx, chatID, telegram.EscapeTextForMarkdownV2(text),
		telegram.WithMarkdownV2(), telegram.WithReplyKeyboard(mainMenu))
	if err != nil {
		c.logger.Error("Ошибка отправки меню", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return err
}

// ==================== ДОСТУП ====================
func (c *TelegramController) passwordRequired() bool {
	return c.cfg.Password != "" || c.cfg.PasswordHash != ""
}

func (c *TelegramController) isAuthorized(ctx context.Context, chatID int64) bool {
	if !c.passwordRequired() {
		return true
	}
	_, err := c.cacheRepo.Get(ctx, fmt.Sprintf(authorizedKey, chatID))
	if err == nil {
		return true
	}
	if !errors.Is(err, repositories.ErrCacheMiss) {
		c.logger.Error("Ошибка проверки доступа", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return false
}

// handleUnauthorized: любой текст, кроме команд и кнопок меню, считается попыткой ввода пароля.
func (c *TelegramController) handleUnauthorized(ctx context.Context, chatID int64, text string, isControl bool) {
	if isControl {
		c.send(ctx, chatID, "🔒 Введите пароль для доступа к боту.")
		return
	}

	if !c.checkPassword(text) {
		c.logger.Warn("Неверный пароль бота", zap.Int64("chat_id", chatID))
		c.send(ctx, chatID, "❌ Неверный пароль.")
		return
	}

	if err := c.cacheRepo.Set(ctx, fmt.Sprintf(authorizedKey, chatID), "1", 0); err != nil {
		c.logger.Error("Не удалось сохранить доступ", zap.Int64("chat_id", chatID), zap.Error(err))
		c.send(ctx, chatID, "⚠️ Не удалось получить данные. Попробуйте позже.")
		return
	}
	c.logger.Info("Доступ к боту открыт", zap.Int64("chat_id", chatID))
	_ = c.sendMainMenu(ctx, chatID, "✅ Доступ открыт. Выберите действие в меню.")
}

func (c *TelegramController) checkPassword(text string) bool {
	if c.cfg.PasswordHash != "" {
		return utils.ComparePasswords(c.cfg.PasswordHash, text) == nil
	}
	return utils.SecretsEqual(c.cfg.Password, text)
}

func commandName(text string) string {
	name := strings.Fields(text)[0]
	// /show@my_bot в групповых чатах
	if i := strings.Index(name, "@"); i > 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

func isMenuButton(text string) bool {
	switch text {
	case btnToRepair, btnFromRepair, btnInRepair, btnExport:
		return true
	}
	return false
}
