package dialog

import (
	"encoding/json"
	"fmt"
)

// Step - текущий шаг диалога. Idle - начальное и конечное состояние любого диалога.
type Step string

const (
	StepIdle                   Step = "idle"
	StepAwaitingSender         Step = "awaiting_sender"
	StepAwaitingServiceCompany Step = "awaiting_service_company"
	StepAwaitingEquipmentType  Step = "awaiting_equipment_type"
	StepAwaitingSerial         Step = "awaiting_serial"
	StepAwaitingReturnSerial   Step = "awaiting_return_serial"
	StepAwaitingReceiver       Step = "awaiting_receiver"

	// псевдо-шаги отправки, в хранилище не попадают
	stepSubmitIntake Step = "submit_intake"
	stepSubmitReturn Step = "submit_return"
)

// Kind - тип диалога, который запускает команда.
type Kind int

const (
	KindIntake Kind = iota + 1
	KindReturn
)

// Draft - поля, накопленные за время одного диалога.
type Draft struct {
	SenderID         uint64 `json:"sender_id,omitempty"`
	ServiceCompanyID uint64 `json:"service_company_id,omitempty"`
	EquipmentTypeID  uint64 `json:"equipment_type_id,omitempty"`
	Serial           string `json:"serial,omitempty"`
	ReceiverID       uint64 `json:"receiver_id,omitempty"`
}

func (d Draft) IsEmpty() bool {
	return d == Draft{}
}

// Choice - вариант, предложенный пользователю. Следующий выбор проверяется по этому списку.
type Choice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Response - то, что диспетчер должен показать пользователю.
type Response struct {
	Text    string
	Choices []Choice
}

// Session - состояние диалога одного чата.
type Session struct {
	ID       int64    `json:"id"`
	Step     Step     `json:"step"`
	DialogID string   `json:"dialog_id,omitempty"`
	Draft    Draft    `json:"draft"`
	Prompt   string   `json:"prompt,omitempty"`
	Choices  []Choice `json:"choices,omitempty"`
}

func NewSession(id int64) Session {
	return Session{ID: id, Step: StepIdle}
}

func (s Session) IsIdle() bool {
	return s.Step == StepIdle
}

func (s Session) hasChoice(id string) bool {
	for _, c := range s.Choices {
		if c.ID == id {
			return true
		}
	}
	return false
}

// repeat повторяет текущий вопрос без изменения состояния.
func (s Session) repeat() Response {
	return Response{Text: s.Prompt, Choices: s.Choices}
}

func (s Session) ToJSON() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}
	return string(data), nil
}

func SessionFromJSON(data string) (Session, error) {
	var s Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return Session{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if s.Step == "" {
		s.Step = StepIdle
	}
	return s, nil
}
