package dialog

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"repair-tracker/internal/dto"
	"repair-tracker/internal/entities"
	"repair-tracker/pkg/customvalidator"
	apperrors "repair-tracker/pkg/errors"
	"repair-tracker/pkg/utils"
)

// Lookups - справочники, из которых строятся варианты выбора.
type Lookups interface {
	ListEmployees(ctx context.Context) ([]entities.LookupItem, error)
	ListServiceCompanies(ctx context.Context) ([]entities.LookupItem, error)
	ListEquipmentTypes(ctx context.Context) ([]entities.LookupItem, error)
}

// Lifecycle - операции журнала, которые диалог вызывает на последнем шаге.
type Lifecycle interface {
	Intake(ctx context.Context, payload dto.IntakeDTO) (*entities.Equipment, error)
	Return(ctx context.Context, payload dto.ReturnDTO) (*entities.Equipment, error)
	ListInRepair(ctx context.Context) ([]entities.Equipment, error)
}

type inputKind int

const (
	inputText inputKind = iota + 1
	inputChoice
)

// transition описывает, какой ввод ждет шаг и куда он ведет. apply не имеет побочных эффектов:
// загрузка справочников и вызовы журнала выполняются при входе в следующий шаг.
type transition struct {
	expects inputKind
	apply   func(d Draft, value string) (Draft, Step, error)
}

var errInvalidSerial = fmt.Errorf(msgInvalidSerial, customvalidator.SerialMinLength, customvalidator.SerialMaxLength)

var transitions = map[Step]transition{
	StepAwaitingSender: {expects: inputChoice, apply: func(d Draft, v string) (Draft, Step, error) {
		id, err := parseID(v)
		if err != nil {
			return d, StepAwaitingSender, err
		}
		d.SenderID = id
		return d, StepAwaitingServiceCompany, nil
	}},
	StepAwaitingServiceCompany: {expects: inputChoice, apply: func(d Draft, v string) (Draft, Step, error) {
		id, err := parseID(v)
		if err != nil {
			return d, StepAwaitingServiceCompany, err
		}
		d.ServiceCompanyID = id
		return d, StepAwaitingEquipmentType, nil
	}},
	StepAwaitingEquipmentType: {expects: inputChoice, apply: func(d Draft, v string) (Draft, Step, error) {
		id, err := parseID(v)
		if err != nil {
			return d, StepAwaitingEquipmentType, err
		}
		d.EquipmentTypeID = id
		return d, StepAwaitingSerial, nil
	}},
	StepAwaitingSerial: {expects: inputText, apply: func(d Draft, v string) (Draft, Step, error) {
		serial := customvalidator.NormalizeSerial(v)
		if !customvalidator.IsValidSerial(serial) {
			return d, StepAwaitingSerial, errInvalidSerial
		}
		d.Serial = serial
		return d, stepSubmitIntake, nil
	}},
	StepAwaitingReturnSerial: {expects: inputChoice, apply: func(d Draft, v string) (Draft, Step, error) {
		d.Serial = v
		return d, StepAwaitingReceiver, nil
	}},
	StepAwaitingReceiver: {expects: inputChoice, apply: func(d Draft, v string) (Draft, Step, error) {
		id, err := parseID(v)
		if err != nil {
			return d, StepAwaitingReceiver, err
		}
		d.ReceiverID = id
		return d, stepSubmitReturn, nil
	}},
}

func parseID(v string) (uint64, error) {
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("некорректный идентификатор %q", v)
	}
	return id, nil
}

// Engine ведет пошаговые диалоги "в ремонт" и "из ремонта" для каждого чата.
// Вызовы одной сессии выполняются строго по очереди.
type Engine struct {
	lookups   Lookups
	lifecycle Lifecycle
	store     SessionStore
	locks     *sessionLocks
	logger    *zap.Logger
}

func NewEngine(lookups Lookups, lifecycle Lifecycle, store SessionStore, logger *zap.Logger) *Engine {
	return &Engine{
		lookups:   lookups,
		lifecycle: lifecycle,
		store:     store,
		locks:     newSessionLocks(),
		logger:    logger,
	}
}

// Start начинает новый диалог. Незавершенный диалог этой сессии отбрасывается.
func (e *Engine) Start(ctx context.Context, sessionID int64, kind Kind) Response {
	unlock := e.locks.lock(sessionID)
	defer unlock()

	session := NewSession(sessionID)
	session.DialogID = uuid.NewString()

	e.logger.Debug("Начат диалог",
		zap.Int64("session_id", sessionID),
		zap.String("dialog_id", session.DialogID),
		zap.Int("kind", int(kind)),
	)

	switch kind {
	case KindIntake:
		return e.enter(ctx, session, StepAwaitingSender)
	case KindReturn:
		return e.enter(ctx, session, StepAwaitingReturnSerial)
	default:
		return Response{Text: msgIdle}
	}
}

// Cancel сбрасывает сессию в Idle без изменений журнала.
func (e *Engine) Cancel(ctx context.Context, sessionID int64) Response {
	unlock := e.locks.lock(sessionID)
	defer unlock()

	if err := e.reset(ctx, sessionID); err != nil {
		return Response{Text: msgRetrieval}
	}
	return Response{Text: msgCancelled}
}

// OnTextInput обрабатывает свободный текст (сейчас это только SN).
func (e *Engine) OnTextInput(ctx context.Context, sessionID int64, text string) Response {
	return e.handle(ctx, sessionID, inputText, text)
}

// OnChoiceSelected обрабатывает нажатие на вариант выбора.
func (e *Engine) OnChoiceSelected(ctx context.Context, sessionID int64, choiceID string) Response {
	return e.handle(ctx, sessionID, inputChoice, choiceID)
}

// Session возвращает текущее состояние сессии.
func (e *Engine) Session(ctx context.Context, sessionID int64) (Session, error) {
	return e.store.Load(ctx, sessionID)
}

func (e *Engine) handle(ctx context.Context, sessionID int64, kind inputKind, value string) Response {
	unlock := e.locks.lock(sessionID)
	defer unlock()

	session, err := e.store.Load(ctx, sessionID)
	if err != nil {
		e.logger.Error("Ошибка чтения сессии", zap.Int64("session_id", sessionID), zap.Error(err))
		return Response{Text: msgRetrieval}
	}
	if session.IsIdle() {
		return Response{Text: msgIdle}
	}

	tr, ok := transitions[session.Step]
	if !ok {
		e.logger.Warn("Неизвестный шаг сессии, сброс", zap.Int64("session_id", sessionID), zap.String("step", string(session.Step)))
		e.reset(ctx, sessionID)
		return Response{Text: msgIdle}
	}

	// ввод не той формы или устаревшая кнопка: повторяем вопрос, состояние не меняется
	if kind != tr.expects || (kind == inputChoice && !session.hasChoice(value)) {
		return session.repeat()
	}

	draft, next, err := tr.apply(session.Draft, value)
	if err != nil {
		return Response{Text: err.Error() + "\n\n" + session.Prompt, Choices: session.Choices}
	}
	session.Draft = draft
	return e.enter(ctx, session, next)
}

// enter выполняет побочные эффекты входа в шаг и сохраняет сессию.
func (e *Engine) enter(ctx context.Context, session Session, next Step) Response {
	switch next {
	case StepAwaitingSender, StepAwaitingReceiver:
		items, err := e.lookups.ListEmployees(ctx)
		prompt := promptSender
		if next == StepAwaitingReceiver {
			prompt = promptReceiver
		}
		return e.present(ctx, session, next, prompt, lookupChoices(items), err, msgNoEmployees)
	case StepAwaitingServiceCompany:
		items, err := e.lookups.ListServiceCompanies(ctx)
		return e.present(ctx, session, next, promptServiceCompany, lookupChoices(items), err, msgNoCompanies)
	case StepAwaitingEquipmentType:
		items, err := e.lookups.ListEquipmentTypes(ctx)
		return e.present(ctx, session, next, promptEquipmentType, lookupChoices(items), err, msgNoTypes)
	case StepAwaitingReturnSerial:
		records, err := e.lifecycle.ListInRepair(ctx)
		return e.present(ctx, session, next, promptReturnSerial, serialChoices(records), err, msgNoInRepair)
	case StepAwaitingSerial:
		session.Step = next
		session.Prompt = promptSerial
		session.Choices = nil
		return e.save(ctx, session)
	case stepSubmitIntake:
		return e.submitIntake(ctx, session)
	case stepSubmitReturn:
		return e.submitReturn(ctx, session)
	default:
		e.reset(ctx, session.ID)
		return Response{Text: msgIdle}
	}
}

func (e *Engine) present(ctx context.Context, session Session, next Step, prompt string, choices []Choice, err error, emptyText string) Response {
	if err != nil {
		e.logger.Error("Не удалось загрузить варианты выбора",
			zap.Int64("session_id", session.ID),
			zap.String("step", string(next)),
			zap.Error(err),
		)
		e.reset(ctx, session.ID)
		return Response{Text: msgRetrieval}
	}
	if len(choices) == 0 {
		e.reset(ctx, session.ID)
		return Response{Text: emptyText}
	}

	session.Step = next
	session.Prompt = prompt
	session.Choices = choices
	return e.save(ctx, session)
}

func (e *Engine) save(ctx context.Context, session Session) Response {
	if err := e.store.Save(ctx, session); err != nil {
		e.logger.Error("Ошибка сохранения сессии", zap.Int64("session_id", session.ID), zap.Error(err))
		e.reset(ctx, session.ID)
		return Response{Text: msgRetrieval}
	}
	return session.repeat()
}

func (e *Engine) submitIntake(ctx context.Context, session Session) Response {
	payload := dto.IntakeDTO{
		Serial:           session.Draft.Serial,
		SenderID:         session.Draft.SenderID,
		ServiceCompanyID: session.Draft.ServiceCompanyID,
		EquipmentTypeID:  session.Draft.EquipmentTypeID,
	}
	// черновик сбрасывается до записи в журнал: если сбросить его нельзя, отправки не будет
	if err := e.reset(ctx, session.ID); err != nil {
		return Response{Text: msgRetrieval}
	}
	created, err := e.lifecycle.Intake(ctx, payload)

	switch {
	case err == nil:
		return Response{Text: fmt.Sprintf(msgIntakeDone, created.Serial, utils.FormatDate(created.SendDate))}
	case errors.Is(err, apperrors.ErrConflict):
		return Response{Text: fmt.Sprintf(msgSerialInRepair, payload.Serial)}
	case apperrors.IsInvalidInput(err):
		return Response{Text: fmt.Sprintf(msgInvalidSubmit, err.Error())}
	default:
		return Response{Text: msgRetrieval}
	}
}

func (e *Engine) submitReturn(ctx context.Context, session Session) Response {
	payload := dto.ReturnDTO{
		Serial:     session.Draft.Serial,
		ReceiverID: session.Draft.ReceiverID,
	}
	if err := e.reset(ctx, session.ID); err != nil {
		return Response{Text: msgRetrieval}
	}
	updated, err := e.lifecycle.Return(ctx, payload)

	switch {
	case err == nil:
		return Response{Text: fmt.Sprintf(msgReturnDone, updated.Serial, utils.FormatDate(utils.SafeDeref(updated.ReceiveDate)))}
	case errors.Is(err, apperrors.ErrNotFound):
		return Response{Text: fmt.Sprintf(msgSerialNotInRepair, payload.Serial)}
	case apperrors.IsInvalidInput(err):
		return Response{Text: fmt.Sprintf(msgInvalidSubmit, err.Error())}
	default:
		return Response{Text: msgRetrieval}
	}
}

func (e *Engine) reset(ctx context.Context, sessionID int64) error {
	err := e.store.Clear(ctx, sessionID)
	if err != nil {
		e.logger.Error("Не удалось сбросить сессию", zap.Int64("session_id", sessionID), zap.Error(err))
	}
	return err
}

func lookupChoices(items []entities.LookupItem) []Choice {
	choices := make([]Choice, 0, len(items))
	for _, item := range items {
		choices = append(choices, Choice{ID: strconv.FormatUint(item.ID, 10), Label: item.Label})
	}
	return choices
}

func serialChoices(records []entities.Equipment) []Choice {
	choices := make([]Choice, 0, len(records))
	for _, rec := range records {
		choices = append(choices, Choice{
			ID:    rec.Serial,
			Label: fmt.Sprintf("%s (с %s)", rec.Serial, utils.FormatDate(rec.SendDate)),
		})
	}
	return choices
}
