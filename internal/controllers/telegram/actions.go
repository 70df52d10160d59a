// internal/controllers/telegram/actions.go
package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"repair-tracker/internal/dialog"
	"repair-tracker/internal/entities"
	"repair-tracker/internal/services"
	"repair-tracker/pkg/telegram"
)

const (
	exportPrefix     = "export:"
	exportCSV        = "csv"
	exportXLSX       = "xlsx"
	maxMessageLength = 4000

	msgRetrieval = "⚠️ Не удалось получить данные. Попробуйте позже."
)

// ==================== CALLBACK-КНОПКИ ====================

// handleCallbackQuery: данные с префиксом "export:" - выбор формата выгрузки,
// остальное - id варианта диалога (в SN и числовых id двоеточия не бывает).
func (c *TelegramController) handleCallbackQuery(ctx context.Context, query *telegram.CallbackQuery) {
	if err := c.tgService.AnswerCallbackQuery(ctx, query.ID, ""); err != nil {
		c.logger.Debug("Не удалось ответить на callback", zap.Error(err))
	}
	if query.Message == nil {
		return
	}
	chatID := query.Message.Chat.ID

	if !c.deduplicator.TryAcquire(chatID, "cb:"+query.Data, callbackCooldown) {
		return
	}
	if !c.isAuthorized(ctx, chatID) {
		c.send(ctx, chatID, "🔒 Введите пароль для доступа к боту.")
		return
	}

	if format, ok := strings.CutPrefix(query.Data, exportPrefix); ok {
		c.handleExport(ctx, chatID, format)
		return
	}

	c.render(ctx, chatID, query.Message.MessageID, c.engine.OnChoiceSelected(ctx, chatID, query.Data))
}

// render показывает ответ движка. messageID != 0 - сообщение с кнопками, которое заменяется ответом,
// чтобы старые кнопки не оставались в чате.
func (c *TelegramController) render(ctx context.Context, chatID int64, messageID int, resp dialog.Response) {
	options := []telegram.MessageOption{telegram.WithMarkdownV2()}
	if len(resp.Choices) > 0 {
		options = append(options, telegram.WithKeyboard(choiceKeyboard(resp.Choices)))
	}

	err := c.tgService.EditOrSendMessage(ctx, chatID, messageID, telegram.EscapeTextForMarkdownV2(resp.Text), options...)
	if err != nil {
		c.logger.Error("Ошибка отправки ответа", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func choiceKeyboard(choices []dialog.Choice) [][]telegram.InlineKeyboardButton {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(choices))
	for _, choice := range choices {
		rows = append(rows, []telegram.InlineKeyboardButton{{Text: choice.Label, CallbackData: choice.ID}})
	}
	return rows
}

// ==================== СПИСОК "В РЕМОНТЕ" ====================
func (c *TelegramController) handleShow(ctx context.Context, chatID int64) {
	items, err := c.reportService.GetEquipment(ctx, entities.StatusInRepair)
	if err != nil {
		c.logger.Error("Ошибка получения списка оборудования в ремонте", zap.Error(err))
		c.send(ctx, chatID, msgRetrieval)
		return
	}
	if len(items) == 0 {
		c.send(ctx, chatID, "Сейчас нет оборудования в ремонте.")
		return
	}

	lines := make([]string, 0, len(items)+1)
	lines = append(lines, fmt.Sprintf("🛠️ В ремонте: %d", len(items)))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("• %s | %s | %s | отправлен %s (%s)",
			item.Serial, item.EquipmentType, item.ServiceCompany, item.SendDate, item.SenderName))
	}

	for _, chunk := range splitMessage(lines, maxMessageLength) {
		c.send(ctx, chatID, chunk)
	}
}

// splitMessage собирает строки в сообщения не длиннее limit символов.
func splitMessage(lines []string, limit int) []string {
	var (
		chunks  []string
		current strings.Builder
	)
	for _, line := range lines {
		if current.Len() > 0 && len([]rune(current.String()))+len([]rune(line))+1 > limit {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// ==================== ВЫГРУЗКА ====================
func (c *TelegramController) handleExportMenu(ctx context.Context, chatID int64) {
	keyboard := [][]telegram.InlineKeyboardButton{{
		{Text: "CSV", CallbackData: exportPrefix + exportCSV},
		{Text: "Excel", CallbackData: exportPrefix + exportXLSX},
	}}
	err := c.tgService.SendMessageEx(ctx, chatID, "Выберите формат выгрузки:", telegram.WithKeyboard(keyboard))
	if err != nil {
		c.logger.Error("Ошибка отправки меню выгрузки", zap.Error(err))
	}
}

func (c *TelegramController) handleExport(ctx context.Context, chatID int64, format string) {
	var (
		content []byte
		err     error
	)
	switch format {
	case exportCSV:
		content, err = c.reportService.ExportCSV(ctx)
	case exportXLSX:
		content, err = c.reportService.ExportXLSX(ctx)
	default:
		return
	}
	if err != nil {
		c.logger.Error("Ошибка формирования выгрузки", zap.String("format", format), zap.Error(err))
		c.send(ctx, chatID, msgRetrieval)
		return
	}

	fileName := services.ExportFileName(format, time.Now().In(c.loc))
	if err := c.tgService.SendDocument(ctx, chatID, fileName, content, "Журнал оборудования"); err != nil {
		c.logger.Error("Ошибка отправки файла", zap.String("file", fileName), zap.Error(err))
		c.send(ctx, chatID, msgRetrieval)
	}
}

func (c *TelegramController) send(ctx context.Context, chatID int64, text string) {
	if err := c.tgService.SendMessage(ctx, chatID, text); err != nil {
		c.logger.Error("Ошибка отправки сообщения", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
