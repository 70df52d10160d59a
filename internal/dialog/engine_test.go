package dialog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"repair-tracker/internal/dto"
	"repair-tracker/internal/entities"
	"repair-tracker/internal/repositories"
	"repair-tracker/internal/services"
	"repair-tracker/pkg/customvalidator"
	apperrors "repair-tracker/pkg/errors"
)

const chatID int64 = 42

var (
	testEmployees = []entities.LookupItem{{ID: 1, Label: "Иванов"}, {ID: 5, Label: "Петров"}, {ID: 7, Label: "Сидоров"}}
	testCompanies = []entities.LookupItem{{ID: 20, Label: "СервисТехника"}}
	testTypes     = []entities.LookupItem{{ID: 30, Label: "Ноутбук"}}
)

type failingLookups struct{}

func (failingLookups) ListEmployees(context.Context) ([]entities.LookupItem, error) {
	return nil, apperrors.NewRetrievalError("employees", errors.New("connection refused"))
}

func (failingLookups) ListServiceCompanies(context.Context) ([]entities.LookupItem, error) {
	return nil, apperrors.NewRetrievalError("service_companies", errors.New("connection refused"))
}

func (failingLookups) ListEquipmentTypes(context.Context) ([]entities.LookupItem, error) {
	return nil, apperrors.NewRetrievalError("equipment_types", errors.New("connection refused"))
}

// flakyCache - кеш сессий, у которого можно отключить запись и удаление.
type flakyCache struct {
	*repositories.MemoryCacheRepository
	failSet bool
	failDel bool
}

func (c *flakyCache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	if c.failSet {
		return errors.New("redis: connection pool timeout")
	}
	return c.MemoryCacheRepository.Set(ctx, key, value, expiration)
}

func (c *flakyCache) Del(ctx context.Context, keys ...string) error {
	if c.failDel {
		return errors.New("redis: connection pool timeout")
	}
	return c.MemoryCacheRepository.Del(ctx, keys...)
}

// brokenLedger отдает список в ремонте, но любая запись в журнал падает.
type brokenLedger struct {
	writes int
}

func (l *brokenLedger) Intake(context.Context, dto.IntakeDTO) (*entities.Equipment, error) {
	l.writes++
	return nil, apperrors.NewRetrievalError("equipment", errors.New("connection reset by peer"))
}

func (l *brokenLedger) Return(context.Context, dto.ReturnDTO) (*entities.Equipment, error) {
	l.writes++
	return nil, apperrors.NewRetrievalError("equipment", errors.New("connection reset by peer"))
}

func (l *brokenLedger) ListInRepair(context.Context) ([]entities.Equipment, error) {
	return []entities.Equipment{{ID: 1, Serial: "SN001", Status: entities.StatusInRepair}}, nil
}

type EngineSuite struct {
	suite.Suite
	ctx       context.Context
	lifecycle *services.LifecycleService
	lookups   *services.LookupService
	engine    *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctx = context.Background()

	v := validator.New()
	s.Require().NoError(customvalidator.RegisterCustomValidations(v))

	lookupRepo := repositories.NewMemoryLookupRepository(testEmployees, testCompanies, testTypes)
	s.lifecycle = services.NewLifecycleService(repositories.NewMemoryEquipmentRepository(lookupRepo), v, time.UTC, zap.NewNop())
	s.lookups = services.NewLookupService(lookupRepo, zap.NewNop())
	s.engine = s.newEngine(s.lookups)
}

func (s *EngineSuite) newEngine(lookups Lookups) *Engine {
	store := NewCacheSessionStore(repositories.NewMemoryCacheRepository(), 0)
	return NewEngine(lookups, s.lifecycle, store, zap.NewNop())
}

func (s *EngineSuite) newFlakyEngine() *flakyCache {
	cache := &flakyCache{MemoryCacheRepository: repositories.NewMemoryCacheRepository()}
	s.engine = NewEngine(s.lookups, s.lifecycle, NewCacheSessionStore(cache, 0), zap.NewNop())
	return cache
}

func (s *EngineSuite) assertLedgerEmpty() {
	all, err := s.lifecycle.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *EngineSuite) session() Session {
	session, err := s.engine.Session(s.ctx, chatID)
	s.Require().NoError(err)
	return session
}

// toSerialStep проводит диалог отправки до ввода SN.
func (s *EngineSuite) toSerialStep() {
	s.engine.Start(s.ctx, chatID, KindIntake)
	s.engine.OnChoiceSelected(s.ctx, chatID, "1")
	s.engine.OnChoiceSelected(s.ctx, chatID, "20")
	resp := s.engine.OnChoiceSelected(s.ctx, chatID, "30")
	s.Require().Equal(promptSerial, resp.Text)
	s.Require().Equal(StepAwaitingSerial, s.session().Step)
}

func (s *EngineSuite) TestIntakeHappyPath() {
	resp := s.engine.Start(s.ctx, chatID, KindIntake)
	s.Equal(promptSender, resp.Text)
	s.Equal([]Choice{{ID: "1", Label: "Иванов"}, {ID: "5", Label: "Петров"}, {ID: "7", Label: "Сидоров"}}, resp.Choices)
	s.NotEmpty(s.session().DialogID)

	resp = s.engine.OnChoiceSelected(s.ctx, chatID, "1")
	s.Equal(promptServiceCompany, resp.Text)
	s.Equal(StepAwaitingServiceCompany, s.session().Step)
	s.Equal(uint64(1), s.session().Draft.SenderID)

	resp = s.engine.OnChoiceSelected(s.ctx, chatID, "20")
	s.Equal(promptEquipmentType, resp.Text)

	resp = s.engine.OnChoiceSelected(s.ctx, chatID, "30")
	s.Equal(promptSerial, resp.Text)
	s.Empty(resp.Choices)

	resp = s.engine.OnTextInput(s.ctx, chatID, "  SN001 ")
	s.Contains(resp.Text, "SN001")
	s.Contains(resp.Text, "отправлено в ремонт")
	s.Empty(resp.Choices)

	session := s.session()
	s.True(session.IsIdle())
	s.True(session.Draft.IsEmpty())

	inRepair, err := s.lifecycle.ListInRepair(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(inRepair, 1)
	s.Equal("SN001", inRepair[0].Serial)
	s.Equal(uint64(20), inRepair[0].ServiceCompanyID)
	s.Equal(uint64(30), inRepair[0].EquipmentTypeID)
}

func (s *EngineSuite) TestSelectionInSerialStepRepeatsPrompt() {
	s.toSerialStep()

	resp := s.engine.OnChoiceSelected(s.ctx, chatID, "1")
	s.Equal(promptSerial, resp.Text)
	s.Equal(StepAwaitingSerial, s.session().Step)
	s.Equal(uint64(1), s.session().Draft.SenderID)
}

func (s *EngineSuite) TestTextInChoiceStepRepeatsPrompt() {
	s.engine.Start(s.ctx, chatID, KindIntake)

	resp := s.engine.OnTextInput(s.ctx, chatID, "Иванов")
	s.Equal(promptSender, resp.Text)
	s.Len(resp.Choices, len(testEmployees))
	s.Equal(StepAwaitingSender, s.session().Step)
}

func (s *EngineSuite) TestStaleChoiceIsIgnored() {
	s.engine.Start(s.ctx, chatID, KindIntake)
	s.engine.OnChoiceSelected(s.ctx, chatID, "1")

	// кнопка отправителя из старого сообщения, а сейчас ждем компанию
	resp := s.engine.OnChoiceSelected(s.ctx, chatID, "5")
	s.Equal(promptServiceCompany, resp.Text)
	s.Equal(StepAwaitingServiceCompany, s.session().Step)
	s.Equal(uint64(1), s.session().Draft.SenderID)
}

func (s *EngineSuite) TestInvalidSerialKeepsStep() {
	s.toSerialStep()

	for _, input := range []string{"ab c", "a!", "ABCDE-123", "AB"} {
		resp := s.engine.OnTextInput(s.ctx, chatID, input)
		s.True(strings.HasPrefix(resp.Text, errInvalidSerial.Error()), "ввод %q", input)
		s.Contains(resp.Text, promptSerial)
		s.Equal(StepAwaitingSerial, s.session().Step)
	}

	all, err := s.lifecycle.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *EngineSuite) TestDuplicateIntakeEndsInIdle() {
	_, err := s.lifecycle.Intake(s.ctx, dto.IntakeDTO{Serial: "SN001", SenderID: 1, ServiceCompanyID: 20, EquipmentTypeID: 30})
	s.Require().NoError(err)

	s.toSerialStep()
	resp := s.engine.OnTextInput(s.ctx, chatID, "SN001")
	s.Equal("❌ Оборудование с SN SN001 уже находится в ремонте. Начните заново: /torepair", resp.Text)
	s.True(s.session().IsIdle())
}

func (s *EngineSuite) TestReturnHappyPath() {
	_, err := s.lifecycle.Intake(s.ctx, dto.IntakeDTO{Serial: "SN001", SenderID: 1, ServiceCompanyID: 20, EquipmentTypeID: 30})
	s.Require().NoError(err)

	resp := s.engine.Start(s.ctx, chatID, KindReturn)
	s.Equal(promptReturnSerial, resp.Text)
	s.Require().Len(resp.Choices, 1)
	s.Equal("SN001", resp.Choices[0].ID)

	resp = s.engine.OnChoiceSelected(s.ctx, chatID, "SN001")
	s.Equal(promptReceiver, resp.Text)
	s.Len(resp.Choices, len(testEmployees))

	resp = s.engine.OnChoiceSelected(s.ctx, chatID, "5")
	s.Contains(resp.Text, "принято из ремонта")
	s.True(s.session().IsIdle())

	all, err := s.lifecycle.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	s.Equal(entities.StatusReturned, all[0].Status)
	s.Require().NotNil(all[0].ReceiverID)
	s.Equal(uint64(5), *all[0].ReceiverID)

	resp = s.engine.Start(s.ctx, chatID, KindReturn)
	s.Equal(msgNoInRepair, resp.Text)
	s.True(s.session().IsIdle())
}

func (s *EngineSuite) TestReturnRaceBetweenSessions() {
	_, err := s.lifecycle.Intake(s.ctx, dto.IntakeDTO{Serial: "SN001", SenderID: 1, ServiceCompanyID: 20, EquipmentTypeID: 30})
	s.Require().NoError(err)

	const other int64 = 43
	s.engine.Start(s.ctx, chatID, KindReturn)
	s.engine.Start(s.ctx, other, KindReturn)
	s.engine.OnChoiceSelected(s.ctx, chatID, "SN001")
	s.engine.OnChoiceSelected(s.ctx, other, "SN001")

	first := s.engine.OnChoiceSelected(s.ctx, chatID, "5")
	second := s.engine.OnChoiceSelected(s.ctx, other, "7")
	s.Contains(first.Text, "принято из ремонта")
	s.Equal("❌ Оборудование с SN SN001 не находится в ремонте. Начните заново: /fromrepair", second.Text)
}

func (s *EngineSuite) TestLastStartWins() {
	s.engine.Start(s.ctx, chatID, KindIntake)
	s.engine.OnChoiceSelected(s.ctx, chatID, "1")
	firstDialog := s.session().DialogID

	_, err := s.lifecycle.Intake(s.ctx, dto.IntakeDTO{Serial: "SN009", SenderID: 1, ServiceCompanyID: 20, EquipmentTypeID: 30})
	s.Require().NoError(err)

	resp := s.engine.Start(s.ctx, chatID, KindReturn)
	s.Equal(promptReturnSerial, resp.Text)

	session := s.session()
	s.Equal(StepAwaitingReturnSerial, session.Step)
	s.True(session.Draft.IsEmpty(), "черновик прерванного диалога отброшен")
	s.NotEqual(firstDialog, session.DialogID)
}

func (s *EngineSuite) TestRetrievalFailureEndsInIdle() {
	s.engine = s.newEngine(failingLookups{})

	resp := s.engine.Start(s.ctx, chatID, KindIntake)
	s.Equal(msgRetrieval, resp.Text)
	s.Empty(resp.Choices)
	s.True(s.session().IsIdle())
}

func (s *EngineSuite) TestEmptyLookupEndsInIdle() {
	lookups := services.NewLookupService(
		repositories.NewMemoryLookupRepository(nil, testCompanies, testTypes), zap.NewNop())
	s.engine = s.newEngine(lookups)

	resp := s.engine.Start(s.ctx, chatID, KindIntake)
	s.Equal(msgNoEmployees, resp.Text)
	s.True(s.session().IsIdle())
}

func (s *EngineSuite) TestInputWhileIdle() {
	s.Equal(msgIdle, s.engine.OnTextInput(s.ctx, chatID, "SN001").Text)
	s.Equal(msgIdle, s.engine.OnChoiceSelected(s.ctx, chatID, "1").Text)
	s.True(s.session().IsIdle())
}

func (s *EngineSuite) TestCancel() {
	s.engine.Start(s.ctx, chatID, KindIntake)
	s.engine.OnChoiceSelected(s.ctx, chatID, "1")

	resp := s.engine.Cancel(s.ctx, chatID)
	s.Equal(msgCancelled, resp.Text)
	s.True(s.session().IsIdle())

	all, err := s.lifecycle.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *EngineSuite) TestUnclearableDraftIsNotSubmitted() {
	cache := s.newFlakyEngine()
	s.toSerialStep()

	cache.failDel = true
	resp := s.engine.OnTextInput(s.ctx, chatID, "SN001")
	s.Equal(msgRetrieval, resp.Text)
	s.assertLedgerEmpty()

	// черновик остался в кеше, но повторный ввод тоже не доходит до журнала
	resp = s.engine.OnTextInput(s.ctx, chatID, "SN002")
	s.Equal(msgRetrieval, resp.Text)
	s.assertLedgerEmpty()

	cache.failDel = false
	resp = s.engine.OnTextInput(s.ctx, chatID, "SN003")
	s.Contains(resp.Text, "отправлено в ремонт")
	s.True(s.session().IsIdle())
}

func (s *EngineSuite) TestUnclearableReturnIsNotSubmitted() {
	_, err := s.lifecycle.Intake(s.ctx, dto.IntakeDTO{Serial: "SN001", SenderID: 1, ServiceCompanyID: 20, EquipmentTypeID: 30})
	s.Require().NoError(err)

	cache := s.newFlakyEngine()
	s.engine.Start(s.ctx, chatID, KindReturn)
	s.engine.OnChoiceSelected(s.ctx, chatID, "SN001")

	cache.failDel = true
	resp := s.engine.OnChoiceSelected(s.ctx, chatID, "5")
	s.Equal(msgRetrieval, resp.Text)

	inRepair, err := s.lifecycle.ListInRepair(s.ctx)
	s.Require().NoError(err)
	s.Len(inRepair, 1)
}

func (s *EngineSuite) TestCancelWithUnclearableSession() {
	cache := s.newFlakyEngine()
	s.engine.Start(s.ctx, chatID, KindIntake)

	cache.failDel = true
	resp := s.engine.Cancel(s.ctx, chatID)
	s.Equal(msgRetrieval, resp.Text)
	s.NotEqual(msgCancelled, resp.Text)
}

func (s *EngineSuite) TestUnsavableSessionEndsInIdle() {
	cache := s.newFlakyEngine()
	cache.failSet = true

	resp := s.engine.Start(s.ctx, chatID, KindIntake)
	s.Equal(msgRetrieval, resp.Text)
	s.Empty(resp.Choices)
	s.True(s.session().IsIdle())
	s.assertLedgerEmpty()
}

func (s *EngineSuite) TestUnsavableStepEndsInIdle() {
	cache := s.newFlakyEngine()
	s.engine.Start(s.ctx, chatID, KindIntake)

	cache.failSet = true
	resp := s.engine.OnChoiceSelected(s.ctx, chatID, "1")
	s.Equal(msgRetrieval, resp.Text)
	s.True(s.session().IsIdle())
}

func (s *EngineSuite) TestIntakeLedgerFailureEndsInIdle() {
	ledger := &brokenLedger{}
	s.engine = NewEngine(s.lookups, ledger, NewCacheSessionStore(repositories.NewMemoryCacheRepository(), 0), zap.NewNop())
	s.toSerialStep()

	resp := s.engine.OnTextInput(s.ctx, chatID, "SN001")
	s.Equal(msgRetrieval, resp.Text)
	s.Empty(resp.Choices)
	s.Equal(1, ledger.writes)

	session := s.session()
	s.True(session.IsIdle())
	s.True(session.Draft.IsEmpty())
	s.Equal(msgIdle, s.engine.OnTextInput(s.ctx, chatID, "SN001").Text)
	s.Equal(1, ledger.writes)
}

func (s *EngineSuite) TestReturnLedgerFailureEndsInIdle() {
	ledger := &brokenLedger{}
	s.engine = NewEngine(s.lookups, ledger, NewCacheSessionStore(repositories.NewMemoryCacheRepository(), 0), zap.NewNop())

	resp := s.engine.Start(s.ctx, chatID, KindReturn)
	s.Equal(promptReturnSerial, resp.Text)
	s.engine.OnChoiceSelected(s.ctx, chatID, "SN001")

	resp = s.engine.OnChoiceSelected(s.ctx, chatID, "5")
	s.Equal(msgRetrieval, resp.Text)
	s.Equal(1, ledger.writes)

	session := s.session()
	s.True(session.IsIdle())
	s.True(session.Draft.IsEmpty())
}

func (s *EngineSuite) TestDoubleTapIsSerialized() {
	s.engine.Start(s.ctx, chatID, KindIntake)

	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			s.engine.OnChoiceSelected(s.ctx, chatID, "1")
		}()
	}
	wg.Wait()

	session := s.session()
	s.Equal(StepAwaitingServiceCompany, session.Step)
	s.Equal(uint64(1), session.Draft.SenderID)
}

func TestSessionJSONRoundTrip(t *testing.T) {
	session := Session{
		ID:       7,
		Step:     StepAwaitingReceiver,
		DialogID: "d-1",
		Draft:    Draft{Serial: "SN001"},
		Prompt:   promptReceiver,
		Choices:  []Choice{{ID: "5", Label: "Петров"}},
	}
	raw, err := session.ToJSON()
	require.NoError(t, err)

	restored, err := SessionFromJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, session, restored)
}

func TestCacheSessionStore_CorruptStateResetsToIdle(t *testing.T) {
	ctx := context.Background()
	cache := repositories.NewMemoryCacheRepository()
	require.NoError(t, cache.Set(ctx, "tg_dialog_state:1", "{not json", 0))

	store := NewCacheSessionStore(cache, time.Minute)
	session, err := store.Load(ctx, 1)
	require.NoError(t, err)
	assert.True(t, session.IsIdle())

	_, err = cache.Get(ctx, "tg_dialog_state:1")
	assert.ErrorIs(t, err, repositories.ErrCacheMiss)
}
