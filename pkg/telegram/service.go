// Файл: pkg/telegram/service.go
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultAPIURL = "https://api.telegram.org"

// --- ОСНОВНОЙ ИНТЕРФЕЙС СЕРВИСА ---

type ServiceInterface interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendMessageEx(ctx context.Context, chatID int64, text string, options ...MessageOption) error
	SendDocument(ctx context.Context, chatID int64, fileName string, content []byte, caption string) error

	AnswerCallbackQuery(ctx context.Context, callbackQueryID string, text string) error

	EditMessageText(ctx context.Context, chatID int64, messageID int, text string, options ...MessageOption) error
	EditOrSendMessage(ctx context.Context, chatID int64, messageID int, text string, options ...MessageOption) error

	GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]Update, error)
	SetWebhook(ctx context.Context, url string) error
	DeleteWebhook(ctx context.Context) error
}

// --- СТРУКТУРА СЕРВИСА ---

type Service struct {
	botToken   string
	apiURL     string
	httpClient *http.Client
	debug      bool
}

type Option func(*Service)

// WithAPIURL подменяет адрес Bot API (локальный bot-api сервер, тесты).
func WithAPIURL(url string) Option {
	return func(s *Service) {
		s.apiURL = strings.TrimSuffix(url, "/")
	}
}

func NewService(botToken string, opts ...Option) ServiceInterface {
	debug := strings.Contains(strings.ToLower(os.Getenv("DEBUG")), "telegram")

	s := &Service{
		botToken:   botToken,
		apiURL:     defaultAPIURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		debug:      debug,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// --- ОСНОВНЫЕ СТРУКТУРЫ ЗАПРОСОВ ---

type sendMessageRequest struct {
	ChatID      int64       `json:"chat_id"`
	Text        string      `json:"text"`
	ParseMode   string      `json:"parse_mode,omitempty"`
	ReplyMarkup interface{} `json:"reply_markup,omitempty"`
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type ReplyKeyboardButton struct {
	Text string `json:"text"`
}

type replyKeyboardMarkup struct {
	Keyboard        [][]ReplyKeyboardButton `json:"keyboard"`
	ResizeKeyboard  bool                    `json:"resize_keyboard"`
	OneTimeKeyboard bool                    `json:"one_time_keyboard,omitempty"`
}

type callbackQueryRequest struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
	ShowAlert       bool   `json:"show_alert,omitempty"`
}

type editMessageTextRequest struct {
	ChatID      int64       `json:"chat_id"`
	MessageID   int         `json:"message_id"`
	Text        string      `json:"text"`
	ParseMode   string      `json:"parse_mode,omitempty"`
	ReplyMarkup interface{} `json:"reply_markup,omitempty"`
}

type getUpdatesRequest struct {
	Offset         int      `json:"offset,omitempty"`
	Timeout        int      `json:"timeout"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

type setWebhookRequest struct {
	URL            string   `json:"url"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

var allowedUpdates = []string{"message", "callback_query"}

type MessageOption func(*sendMessageRequest)

func WithKeyboard(rows [][]InlineKeyboardButton) MessageOption {
	return func(req *sendMessageRequest) {
		if len(rows) > 0 {
			req.ReplyMarkup = inlineKeyboardMarkup{InlineKeyboard: rows}
		}
	}
}

func WithMarkdownV2() MessageOption {
	return func(req *sendMessageRequest) {
		req.ParseMode = "MarkdownV2"
	}
}

func WithReplyKeyboard(rows [][]ReplyKeyboardButton) MessageOption {
	return func(req *sendMessageRequest) {
		if len(rows) > 0 {
			req.ReplyMarkup = replyKeyboardMarkup{
				Keyboard:       rows,
				ResizeKeyboard: true,
			}
		}
	}
}

func (s *Service) EditMessageText(ctx context.Context, chatID int64, messageID int, text string, options ...MessageOption) error {
	if messageID == 0 {
		return s.SendMessageEx(ctx, chatID, text, options...)
	}

	editReq := &editMessageTextRequest{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
	}

	tempSendReq := &sendMessageRequest{}
	for _, opt := range options {
		opt(tempSendReq)
	}

	editReq.ParseMode = tempSendReq.ParseMode
	// у редактируемого сообщения может быть только inline-клавиатура
	if markup, ok := tempSendReq.ReplyMarkup.(inlineKeyboardMarkup); ok {
		editReq.ReplyMarkup = markup
	}

	return s.sendRequest(ctx, "editMessageText", editReq, nil)
}

func (s *Service) EditOrSendMessage(ctx context.Context, chatID int64, messageID int, text string, options ...MessageOption) error {
	if messageID == 0 {
		return s.SendMessageEx(ctx, chatID, text, options...)
	}
	if err := s.EditMessageText(ctx, chatID, messageID, text, options...); err != nil {
		// сообщение могло быть удалено или слишком старое для редактирования
		return s.SendMessageEx(ctx, chatID, text, options...)
	}
	return nil
}

func (s *Service) SendMessage(ctx context.Context, chatID int64, text string) error {
	escapedText := EscapeTextForMarkdownV2(text)
	return s.SendMessageEx(ctx, chatID, escapedText, WithMarkdownV2())
}

func (s *Service) SendMessageEx(ctx context.Context, chatID int64, text string, options ...MessageOption) error {
	reqPayload := &sendMessageRequest{
		ChatID: chatID,
		Text:   text,
	}

	for _, opt := range options {
		opt(reqPayload)
	}

	return s.sendRequest(ctx, "sendMessage", reqPayload, nil)
}

// SendDocument отправляет файл из памяти (multipart/form-data).
func (s *Service) SendDocument(ctx context.Context, chatID int64, fileName string, content []byte, caption string) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	if err := w.WriteField("chat_id", fmt.Sprintf("%d", chatID)); err != nil {
		return fmt.Errorf("ошибка формирования запроса: %w", err)
	}
	if caption != "" {
		if err := w.WriteField("caption", caption); err != nil {
			return fmt.Errorf("ошибка формирования запроса: %w", err)
		}
	}
	part, err := w.CreateFormFile("document", fileName)
	if err != nil {
		return fmt.Errorf("ошибка формирования запроса: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("ошибка записи файла в запрос: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("ошибка формирования запроса: %w", err)
	}

	return s.do(ctx, "sendDocument", w.FormDataContentType(), &body, fmt.Sprintf("<file %s, %d bytes>", fileName, len(content)), nil)
}

// Ответ на callback-кнопку
func (s *Service) AnswerCallbackQuery(ctx context.Context, callbackQueryID string, text string) error {
	if callbackQueryID == "" {
		return fmt.Errorf("callbackQueryID не может быть пустым")
	}

	reqPayload := callbackQueryRequest{
		CallbackQueryID: callbackQueryID,
		Text:            text,
	}
	return s.sendRequest(ctx, "answerCallbackQuery", reqPayload, nil)
}

// GetUpdates - long polling. timeout - сколько Telegram держит запрос при отсутствии обновлений.
func (s *Service) GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]Update, error) {
	reqPayload := getUpdatesRequest{
		Offset:         offset,
		Timeout:        int(timeout.Seconds()),
		AllowedUpdates: allowedUpdates,
	}

	var updates []Update
	if err := s.sendRequest(ctx, "getUpdates", reqPayload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (s *Service) SetWebhook(ctx context.Context, url string) error {
	return s.sendRequest(ctx, "setWebhook", setWebhookRequest{URL: url, AllowedUpdates: allowedUpdates}, nil)
}

// DeleteWebhook нужен перед long polling: пока вебхук установлен, getUpdates возвращает ошибку 409.
func (s *Service) DeleteWebhook(ctx context.Context) error {
	return s.sendRequest(ctx, "deleteWebhook", struct{}{}, nil)
}

// --- ВСПОМОГАТЕЛЬНЫЕ ФУНКЦИИ ---

func (s *Service) sendRequest(ctx context.Context, methodName string, payload interface{}, result interface{}) error {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ошибка сериализации JSON: %w", err)
	}
	return s.do(ctx, methodName, "application/json", bytes.NewReader(reqBody), string(reqBody), result)
}

func (s *Service) do(ctx context.Context, methodName, contentType string, reqBody io.Reader, debugBody string, result interface{}) error {
	if s.botToken == "" {
		return fmt.Errorf("токен Telegram-бота не установлен")
	}

	apiURL := fmt.Sprintf("%s/bot%s/%s", s.apiURL, s.botToken, methodName)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, reqBody)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	client := s.httpClient
	if methodName == "getUpdates" {
		// long polling держит соединение дольше обычного таймаута клиента
		client = &http.Client{Transport: s.httpClient.Transport}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка отправки запроса в Telegram: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if s.debug {
		fmt.Printf("[telegram] %s\nRequest: %s\nResponse: %s\n\n", methodName, debugBody, string(body))
	}

	// Telegram отвечает JSON с полем ok и при ошибках
	var telegramResp struct {
		OK          bool            `json:"ok"`
		Description string          `json:"description,omitempty"`
		ErrorCode   int             `json:"error_code,omitempty"`
		Result      json.RawMessage `json:"result,omitempty"`
	}

	if err := json.Unmarshal(body, &telegramResp); err != nil {
		return fmt.Errorf("ошибка декодирования ответа Telegram API (HTTP %d): %w", resp.StatusCode, err)
	}

	if !telegramResp.OK {
		return &APIError{Method: methodName, Code: telegramResp.ErrorCode, Description: telegramResp.Description}
	}

	if result != nil && len(telegramResp.Result) > 0 {
		if err := json.Unmarshal(telegramResp.Result, result); err != nil {
			return fmt.Errorf("ошибка декодирования результата %s: %w", methodName, err)
		}
	}
	return nil
}

// APIError - ошибка, которую вернул сам Bot API.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram API ошибка (%s): код %d, описание: %s", e.Method, e.Code, e.Description)
}

// --- ЭКРАНИРОВАНИЕ ДЛЯ MARKDOWNV2 ---

var markdownV2Replacer = strings.NewReplacer(
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]",
	"(", "\\(", ")", "\\)", "\\", "\\\\",
	"~", "\\~", "`", "\\`", ">", "\\>", "#", "\\#", "+", "\\+",
	"-", "\\-", "=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}", ".", "\\.", "!", "\\!",
)

func EscapeTextForMarkdownV2(text string) string {
	return markdownV2Replacer.Replace(text)
}
