package entities

import "time"

type EquipmentStatus string

const (
	StatusInRepair EquipmentStatus = "in_repair"
	StatusReturned EquipmentStatus = "returned"
)

// Label - подпись статуса для бота и выгрузок.
func (s EquipmentStatus) Label() string {
	switch s {
	case StatusInRepair:
		return "В ремонте"
	case StatusReturned:
		return "Вернулся из ремонта"
	default:
		return string(s)
	}
}

func (s EquipmentStatus) Valid() bool {
	return s == StatusInRepair || s == StatusReturned
}

// Equipment - одна запись жизненного цикла: отправка в ремонт и (возможно) возврат.
// Повторная отправка того же SN после возврата создает новую запись.
type Equipment struct {
	ID               uint64          `json:"id"`
	Serial           string          `json:"sn"`
	SendDate         time.Time       `json:"send_date"`
	ReceiveDate      *time.Time      `json:"receive_date"`
	Status           EquipmentStatus `json:"status"`
	SenderID         uint64          `json:"sender_id"`
	ReceiverID       *uint64         `json:"receiver_id"`
	ServiceCompanyID uint64          `json:"service_company_id"`
	EquipmentTypeID  uint64          `json:"equipment_type_id"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
