package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"repair-tracker/internal/dto"
	"repair-tracker/internal/entities"
	"repair-tracker/internal/repositories"
	"repair-tracker/pkg/customvalidator"
	apperrors "repair-tracker/pkg/errors"
	"repair-tracker/pkg/utils"
)

// LifecycleServiceInterface - единственный путь изменения журнала оборудования.
type LifecycleServiceInterface interface {
	Intake(ctx context.Context, payload dto.IntakeDTO) (*entities.Equipment, error)
	Return(ctx context.Context, payload dto.ReturnDTO) (*entities.Equipment, error)
	ListAll(ctx context.Context) ([]entities.Equipment, error)
	ListInRepair(ctx context.Context) ([]entities.Equipment, error)
}

type LifecycleService struct {
	equipmentRepo repositories.EquipmentRepositoryInterface
	validate      *validator.Validate
	loc           *time.Location
	now           func() time.Time
	logger        *zap.Logger
}

func NewLifecycleService(
	equipmentRepo repositories.EquipmentRepositoryInterface,
	validate *validator.Validate,
	loc *time.Location,
	logger *zap.Logger,
) *LifecycleService {
	return &LifecycleService{
		equipmentRepo: equipmentRepo,
		validate:      validate,
		loc:           loc,
		now:           time.Now,
		logger:        logger,
	}
}

// Intake проверяет поля до обращения к хранилищу и создает запись "в ремонте" с датой отправки = сегодня.
func (s *LifecycleService) Intake(ctx context.Context, payload dto.IntakeDTO) (*entities.Equipment, error) {
	payload.Serial = customvalidator.NormalizeSerial(payload.Serial)
	if err := s.validatePayload(payload); err != nil {
		return nil, err
	}

	record := entities.Equipment{
		Serial:           payload.Serial,
		SendDate:         utils.DateOnly(s.now(), s.loc),
		Status:           entities.StatusInRepair,
		SenderID:         payload.SenderID,
		ServiceCompanyID: payload.ServiceCompanyID,
		EquipmentTypeID:  payload.EquipmentTypeID,
	}

	created, err := s.equipmentRepo.Insert(ctx, record)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			s.logger.Info("Отправка в ремонт отклонена: SN уже в ремонте", zap.String("sn", payload.Serial))
			return nil, apperrors.ErrSerialInRepair
		}
		s.logger.Error("Ошибка при отправке оборудования в ремонт", zap.String("sn", payload.Serial), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Оборудование отправлено в ремонт",
		zap.Uint64("id", created.ID),
		zap.String("sn", created.Serial),
		zap.Uint64("sender_id", created.SenderID),
	)
	return created, nil
}

// Return принимает оборудование из ремонта с датой приемки = сегодня.
func (s *LifecycleService) Return(ctx context.Context, payload dto.ReturnDTO) (*entities.Equipment, error) {
	payload.Serial = customvalidator.NormalizeSerial(payload.Serial)
	if err := s.validatePayload(payload); err != nil {
		return nil, err
	}

	updated, err := s.equipmentRepo.UpdateReturn(ctx, payload.Serial, utils.DateOnly(s.now(), s.loc), payload.ReceiverID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Info("Возврат отклонен: SN не в ремонте", zap.String("sn", payload.Serial))
			return nil, apperrors.ErrNotInRepair
		}
		s.logger.Error("Ошибка при приеме оборудования из ремонта", zap.String("sn", payload.Serial), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Оборудование вернулось из ремонта",
		zap.Uint64("id", updated.ID),
		zap.String("sn", updated.Serial),
		zap.Uint64("receiver_id", payload.ReceiverID),
	)
	return updated, nil
}

func (s *LifecycleService) ListAll(ctx context.Context) ([]entities.Equipment, error) {
	return s.equipmentRepo.ListAll(ctx)
}

func (s *LifecycleService) ListInRepair(ctx context.Context) ([]entities.Equipment, error) {
	return s.equipmentRepo.ListInRepair(ctx)
}

func (s *LifecycleService) validatePayload(payload interface{}) error {
	err := s.validate.Struct(payload)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("валидация: %w", err)
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apperrors.NewInvalidInputError("%s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "serial":
		return fmt.Sprintf("SN должен содержать от %d до %d букв или цифр, без пробелов и спецсимволов",
			customvalidator.SerialMinLength, customvalidator.SerialMaxLength)
	case "required", "gt":
		return fmt.Sprintf("поле %s обязательно", fe.Field())
	default:
		return fmt.Sprintf("поле %s не прошло проверку '%s'", fe.Field(), fe.Tag())
	}
}
