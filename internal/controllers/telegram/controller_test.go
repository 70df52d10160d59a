package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"repair-tracker/internal/dialog"
	"repair-tracker/internal/dto"
	"repair-tracker/internal/entities"
	"repair-tracker/internal/repositories"
	"repair-tracker/internal/services"
	"repair-tracker/pkg/config"
	"repair-tracker/pkg/customvalidator"
	"repair-tracker/pkg/telegram"
	"repair-tracker/pkg/utils"
)

const testChatID int64 = 42

type apiCall struct {
	Method string
	Body   map[string]interface{}
}

// fakeBotAPI записывает вызовы Bot API и на все отвечает ok.
type fakeBotAPI struct {
	mu    sync.Mutex
	calls []apiCall
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	call := apiCall{Method: method}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		_ = json.NewDecoder(r.Body).Decode(&call.Body)
	} else if err := r.ParseMultipartForm(1 << 20); err == nil {
		call.Body = map[string]interface{}{"chat_id": r.FormValue("chat_id")}
		if _, header, err := r.FormFile("document"); err == nil {
			call.Body["file_name"] = header.Filename
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
}

func (f *fakeBotAPI) take() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := f.calls
	f.calls = nil
	return calls
}

func (f *fakeBotAPI) last(t *testing.T) apiCall {
	calls := f.take()
	require.NotEmpty(t, calls)
	return calls[len(calls)-1]
}

type testEnv struct {
	ctrl      *TelegramController
	api       *fakeBotAPI
	lifecycle *services.LifecycleService
}

func newTestEnv(t *testing.T, cfg config.TelegramConfig) *testEnv {
	t.Helper()

	api := &fakeBotAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	v := validator.New()
	require.NoError(t, customvalidator.RegisterCustomValidations(v))

	logger := zap.NewNop()
	lookupRepo := repositories.NewMemoryLookupRepository(
		[]entities.LookupItem{{ID: 1, Label: "Иванов"}, {ID: 2, Label: "Петров"}},
		[]entities.LookupItem{{ID: 10, Label: "СервисТехника"}},
		[]entities.LookupItem{{ID: 20, Label: "Ноутбук"}},
	)
	lifecycle := services.NewLifecycleService(repositories.NewMemoryEquipmentRepository(lookupRepo), v, time.UTC, logger)
	lookups := services.NewLookupService(lookupRepo, logger)
	report := services.NewReportService(lifecycle, lookups, logger)

	cache := repositories.NewMemoryCacheRepository()
	engine := dialog.NewEngine(lookups, lifecycle, dialog.NewCacheSessionStore(cache, time.Hour), logger)
	ctrl := NewTelegramController(engine, report,
		telegram.NewService("TEST", telegram.WithAPIURL(srv.URL)), cache, cfg, time.UTC, logger)

	return &testEnv{ctrl: ctrl, api: api, lifecycle: lifecycle}
}

func (e *testEnv) message(text string) {
	e.ctrl.HandleUpdate(context.Background(), telegram.Update{
		Message: &telegram.Message{MessageID: 1, Chat: telegram.Chat{ID: testChatID}, Text: text},
	})
}

func (e *testEnv) callback(messageID int, data string) {
	e.ctrl.HandleUpdate(context.Background(), telegram.Update{
		CallbackQuery: &telegram.CallbackQuery{
			ID:      "cb-1",
			Message: &telegram.Message{MessageID: messageID, Chat: telegram.Chat{ID: testChatID}},
			Data:    data,
		},
	})
}

func callbackData(t *testing.T, call apiCall) []string {
	t.Helper()
	markup, ok := call.Body["reply_markup"].(map[string]interface{})
	require.True(t, ok, "нет reply_markup в %s", call.Method)
	rows, ok := markup["inline_keyboard"].([]interface{})
	require.True(t, ok, "нет inline_keyboard в %s", call.Method)

	var data []string
	for _, row := range rows {
		for _, btn := range row.([]interface{}) {
			data = append(data, btn.(map[string]interface{})["callback_data"].(string))
		}
	}
	return data
}

func TestTelegram_PasswordGate(t *testing.T) {
	env := newTestEnv(t, config.TelegramConfig{Password: "secret"})

	env.message("/help")
	call := env.api.last(t)
	assert.Equal(t, "sendMessage", call.Method)
	assert.Contains(t, call.Body["text"], "Введите пароль")

	env.message("wrong")
	assert.Contains(t, env.api.last(t).Body["text"], "Неверный пароль")

	env.message("secret")
	call = env.api.last(t)
	assert.Contains(t, call.Body["text"], "Доступ открыт")
	markup := call.Body["reply_markup"].(map[string]interface{})
	assert.NotEmpty(t, markup["keyboard"])

	env.message("/torepair")
	call = env.api.last(t)
	assert.Equal(t, "sendMessage", call.Method)
	assert.Equal(t, "MarkdownV2", call.Body["parse_mode"])
	assert.Equal(t, []string{"1", "2"}, callbackData(t, call))
}

func TestTelegram_MenuButtonBeforeLogin(t *testing.T) {
	env := newTestEnv(t, config.TelegramConfig{Password: "secret"})

	env.message(btnToRepair)
	text := env.api.last(t).Body["text"]
	assert.Contains(t, text, "Введите пароль")
	assert.NotContains(t, text, "Неверный пароль")
	assert.False(t, env.ctrl.isAuthorized(context.Background(), testChatID))
}

func TestTelegram_PasswordHash(t *testing.T) {
	hash, err := utils.HashPassword("secret")
	require.NoError(t, err)
	env := newTestEnv(t, config.TelegramConfig{PasswordHash: hash})

	env.message("secret")
	assert.Contains(t, env.api.last(t).Body["text"], "Доступ открыт")
	assert.True(t, env.ctrl.isAuthorized(context.Background(), testChatID))
}

func TestTelegram_IntakeDialogOverCallbacks(t *testing.T) {
	env := newTestEnv(t, config.TelegramConfig{})

	env.message(btnToRepair)
	call := env.api.last(t)
	assert.Equal(t, []string{"1", "2"}, callbackData(t, call))

	env.callback(100, "1")
	calls := env.api.take()
	require.Len(t, calls, 2)
	assert.Equal(t, "answerCallbackQuery", calls[0].Method)
	assert.Equal(t, "editMessageText", calls[1].Method)
	assert.EqualValues(t, 100, calls[1].Body["message_id"])
	assert.Equal(t, []string{"10"}, callbackData(t, calls[1]))

	env.callback(100, "10")
	assert.Equal(t, []string{"20"}, callbackData(t, env.api.last(t)))

	env.callback(100, "20")
	call = env.api.last(t)
	assert.Contains(t, call.Body["text"], "Введите серийный номер")
	assert.Nil(t, call.Body["reply_markup"])

	env.message("SN001")
	assert.Contains(t, env.api.last(t).Body["text"], "SN001 отправлено в ремонт")

	inRepair, err := env.lifecycle.ListInRepair(context.Background())
	require.NoError(t, err)
	require.Len(t, inRepair, 1)
	assert.Equal(t, uint64(1), inRepair[0].SenderID)
}

func TestTelegram_RepeatedCallbackIsDeduplicated(t *testing.T) {
	env := newTestEnv(t, config.TelegramConfig{})

	env.message("/torepair")
	env.api.take()

	env.callback(100, "1")
	env.callback(100, "1")
	calls := env.api.take()

	edits := 0
	for _, call := range calls {
		if call.Method == "editMessageText" {
			edits++
		}
	}
	assert.Equal(t, 1, edits)
}

func TestTelegram_StaleMessageIgnored(t *testing.T) {
	env := newTestEnv(t, config.TelegramConfig{})

	env.ctrl.HandleUpdate(context.Background(), telegram.Update{
		Message: &telegram.Message{
			Chat: telegram.Chat{ID: testChatID},
			Text: "/help",
			Date: time.Now().Add(-10 * time.Minute).Unix(),
		},
	})
	assert.Empty(t, env.api.take())
}

func TestTelegram_ShowAndExport(t *testing.T) {
	env := newTestEnv(t, config.TelegramConfig{})

	env.message("/show")
	assert.Contains(t, env.api.last(t).Body["text"], "Сейчас нет оборудования в ремонте")

	_, err := env.lifecycle.Intake(context.Background(), dto.IntakeDTO{
		Serial: "SN001", SenderID: 1, ServiceCompanyID: 10, EquipmentTypeID: 20,
	})
	require.NoError(t, err)

	env.message(btnInRepair)
	text := env.api.last(t).Body["text"].(string)
	assert.Contains(t, text, "SN001")
	assert.Contains(t, text, "СервисТехника")
	assert.Contains(t, text, "Иванов")

	env.message("/file")
	assert.Equal(t, []string{"export:csv", "export:xlsx"}, callbackData(t, env.api.last(t)))

	env.callback(200, "export:csv")
	call := env.api.last(t)
	assert.Equal(t, "sendDocument", call.Method)
	assert.Regexp(t, `^equipment_list_\d{4}-\d{2}-\d{2}\.csv$`, call.Body["file_name"])
}

func TestTelegram_UnknownCommand(t *testing.T) {
	env := newTestEnv(t, config.TelegramConfig{})

	env.message("/unknown")
	assert.Contains(t, env.api.last(t).Body["text"], "Неизвестная команда")
}

func TestTelegram_Webhook(t *testing.T) {
	env := newTestEnv(t, config.TelegramConfig{})

	body := `{"update_id":1,"message":{"message_id":5,"chat":{"id":42},"text":"/help"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/telegram", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	e := echo.New()
	require.NoError(t, env.ctrl.HandleTelegramWebhook(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	env.ctrl.Wait()
	assert.Contains(t, env.api.last(t).Body["text"], "Справка по боту")
}

func TestTelegram_WebhookWithBrokenBody(t *testing.T) {
	env := newTestEnv(t, config.TelegramConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/telegram", strings.NewReader("{"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	require.NoError(t, env.ctrl.HandleTelegramWebhook(echo.New().NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	env.ctrl.Wait()
	assert.Empty(t, env.api.take())
}

func TestCommandName(t *testing.T) {
	assert.Equal(t, "/show", commandName("/Show@repair_bot"))
	assert.Equal(t, "/torepair", commandName("/torepair extra words"))
}

func TestSplitMessage(t *testing.T) {
	lines := []string{strings.Repeat("а", 6), strings.Repeat("б", 6), strings.Repeat("в", 6)}

	chunks := splitMessage(lines, 13)
	require.Len(t, chunks, 2)
	assert.Equal(t, lines[0]+"\n"+lines[1], chunks[0])
	assert.Equal(t, lines[2], chunks[1])

	assert.Empty(t, splitMessage(nil, 10))
}

func TestRequestDeduplicator(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	d := NewRequestDeduplicator()
	d.now = func() time.Time { return now }

	assert.True(t, d.TryAcquire(1, "cb:1", time.Second))
	assert.False(t, d.TryAcquire(1, "cb:1", time.Second))
	assert.True(t, d.TryAcquire(2, "cb:1", time.Second), "другой чат")

	now = now.Add(2 * time.Second)
	d.evictExpired()
	assert.Empty(t, d.locks)
	assert.True(t, d.TryAcquire(1, "cb:1", time.Second))
}
