package dto

import "github.com/aarondl/null/v8"

// IntakeDTO - отправка оборудования в ремонт.
type IntakeDTO struct {
	Serial           string `json:"sn"                 validate:"required,serial"`
	SenderID         uint64 `json:"sender_id"          validate:"required,gt=0"`
	ServiceCompanyID uint64 `json:"service_company_id" validate:"required,gt=0"`
	EquipmentTypeID  uint64 `json:"equipment_type_id"  validate:"required,gt=0"`
}

// ReturnDTO - прием оборудования из ремонта. Serial приходит из пути запроса.
type ReturnDTO struct {
	Serial     string `json:"-"           param:"sn" validate:"required,serial"`
	ReceiverID uint64 `json:"receiver_id"            validate:"required,gt=0"`
}

// EquipmentDTO - запись с подставленными подписями справочников.
type EquipmentDTO struct {
	ID               uint64      `json:"id"`
	Serial           string      `json:"sn"`
	SendDate         string      `json:"send_date"`
	ReceiveDate      null.String `json:"receive_date"`
	Status           string      `json:"status"`
	StatusLabel      string      `json:"status_label"`
	SenderID         uint64      `json:"sender_id"`
	SenderName       string      `json:"sender_fio"`
	ReceiverID       null.Uint64 `json:"receiver_id"`
	ReceiverName     null.String `json:"receiver_fio"`
	ServiceCompanyID uint64      `json:"service_company_id"`
	ServiceCompany   string      `json:"service_company"`
	EquipmentTypeID  uint64      `json:"equipment_type_id"`
	EquipmentType    string      `json:"equipment_type"`
}

type LookupItemDTO struct {
	ID    uint64 `json:"id"`
	Label string `json:"label"`
}
