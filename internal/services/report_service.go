package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"repair-tracker/internal/dto"
	"repair-tracker/internal/entities"
	"repair-tracker/pkg/utils"
)

const notSpecified = "Не указан"

// utf8BOM нужен, чтобы Excel открыл CSV в правильной кодировке.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var reportHeaders = []string{
	"Серийный номер",
	"Тип оборудования",
	"Сервисная компания",
	"Дата отправки",
	"Отправитель",
	"Дата приемки",
	"Принимающий",
	"Статус",
}

type ReportServiceInterface interface {
	GetEquipment(ctx context.Context, status entities.EquipmentStatus) ([]dto.EquipmentDTO, error)
	ExportCSV(ctx context.Context) ([]byte, error)
	ExportXLSX(ctx context.Context) ([]byte, error)
}

// ReportService собирает записи журнала с подписями из справочников.
type ReportService struct {
	lifecycle LifecycleServiceInterface
	lookups   LookupServiceInterface
	logger    *zap.Logger
}

func NewReportService(lifecycle LifecycleServiceInterface, lookups LookupServiceInterface, logger *zap.Logger) *ReportService {
	return &ReportService{lifecycle: lifecycle, lookups: lookups, logger: logger}
}

// GetEquipment возвращает записи с указанным статусом; пустой статус - все записи.
func (s *ReportService) GetEquipment(ctx context.Context, status entities.EquipmentStatus) ([]dto.EquipmentDTO, error) {
	var (
		records []entities.Equipment
		err     error
	)
	if status == entities.StatusInRepair {
		records, err = s.lifecycle.ListInRepair(ctx)
	} else {
		records, err = s.lifecycle.ListAll(ctx)
	}
	if err != nil {
		return nil, err
	}

	if status == entities.StatusReturned {
		filtered := records[:0]
		for _, rec := range records {
			if rec.Status == entities.StatusReturned {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	return s.decorate(ctx, records)
}

func (s *ReportService) decorate(ctx context.Context, records []entities.Equipment) ([]dto.EquipmentDTO, error) {
	employees, err := s.lookups.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	companies, err := s.lookups.ListServiceCompanies(ctx)
	if err != nil {
		return nil, err
	}
	types, err := s.lookups.ListEquipmentTypes(ctx)
	if err != nil {
		return nil, err
	}

	employeeNames := entities.LookupIndex(employees)
	companyNames := entities.LookupIndex(companies)
	typeNames := entities.LookupIndex(types)

	result := make([]dto.EquipmentDTO, 0, len(records))
	for _, rec := range records {
		item := dto.EquipmentDTO{
			ID:               rec.ID,
			Serial:           rec.Serial,
			SendDate:         utils.FormatDate(rec.SendDate),
			Status:           string(rec.Status),
			StatusLabel:      rec.Status.Label(),
			SenderID:         rec.SenderID,
			SenderName:       labelOr(employeeNames, rec.SenderID),
			ServiceCompanyID: rec.ServiceCompanyID,
			ServiceCompany:   labelOr(companyNames, rec.ServiceCompanyID),
			EquipmentTypeID:  rec.EquipmentTypeID,
			EquipmentType:    labelOr(typeNames, rec.EquipmentTypeID),
			ReceiverID:       null.Uint64FromPtr(rec.ReceiverID),
		}
		if rec.ReceiveDate != nil {
			item.ReceiveDate = null.StringFrom(utils.FormatDate(*rec.ReceiveDate))
		}
		if rec.ReceiverID != nil {
			item.ReceiverName = null.StringFrom(labelOr(employeeNames, *rec.ReceiverID))
		}
		result = append(result, item)
	}
	return result, nil
}

func (s *ReportService) ExportCSV(ctx context.Context) ([]byte, error) {
	items, err := s.GetEquipment(ctx, "")
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(utf8BOM)
	w := csv.NewWriter(&buf)
	if err := w.Write(reportHeaders); err != nil {
		return nil, fmt.Errorf("запись заголовка CSV: %w", err)
	}
	for _, item := range items {
		if err := w.Write(reportRow(item)); err != nil {
			return nil, fmt.Errorf("запись строки CSV: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("формирование CSV: %w", err)
	}

	s.logger.Info("CSV-файл успешно создан", zap.Int("rows", len(items)))
	return buf.Bytes(), nil
}

func (s *ReportService) ExportXLSX(ctx context.Context) ([]byte, error) {
	items, err := s.GetEquipment(ctx, "")
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Оборудование"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &reportHeaders); err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}
	for i, item := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("xlsx: %w", err)
		}
		row := reportRow(item)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("xlsx: %w", err)
		}
	}
	if err := formatSheet(f, sheet); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}

	s.logger.Info("XLSX-файл успешно создан", zap.Int("rows", len(items)))
	return buf.Bytes(), nil
}

// formatSheet выделяет шапку и задает ширину колонок.
func formatSheet(f *excelize.File, sheet string) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx: стиль шапки: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", "H1", style); err != nil {
		return fmt.Errorf("xlsx: стиль шапки: %w", err)
	}
	if err := f.SetColWidth(sheet, "A", "C", 22); err != nil {
		return fmt.Errorf("xlsx: ширина колонок: %w", err)
	}
	if err := f.SetColWidth(sheet, "D", "H", 20); err != nil {
		return fmt.Errorf("xlsx: ширина колонок: %w", err)
	}
	return nil
}

// ExportFileName - имя файла выгрузки вида equipment_list_2006-01-02.csv.
func ExportFileName(ext string, now time.Time) string {
	return fmt.Sprintf("equipment_list_%s.%s", now.Format("2006-01-02"), ext)
}

func reportRow(item dto.EquipmentDTO) []string {
	return []string{
		item.Serial,
		item.EquipmentType,
		item.ServiceCompany,
		item.SendDate,
		item.SenderName,
		nullOr(item.ReceiveDate),
		nullOr(item.ReceiverName),
		item.StatusLabel,
	}
}

func nullOr(v null.String) string {
	if !v.Valid {
		return notSpecified
	}
	return v.String
}

func labelOr(index map[uint64]string, id uint64) string {
	if label, ok := index[id]; ok {
		return label
	}
	return notSpecified
}
