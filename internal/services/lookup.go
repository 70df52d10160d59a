package services

import (
	"context"

	"go.uber.org/zap"

	"repair-tracker/internal/entities"
	"repair-tracker/internal/repositories"
)

type LookupServiceInterface interface {
	ListEmployees(ctx context.Context) ([]entities.LookupItem, error)
	ListServiceCompanies(ctx context.Context) ([]entities.LookupItem, error)
	ListEquipmentTypes(ctx context.Context) ([]entities.LookupItem, error)
}

// LookupService - сквозное чтение справочников. Повторов нет: ошибку обрабатывает вызывающий.
type LookupService struct {
	lookupRepo repositories.LookupRepositoryInterface
	logger     *zap.Logger
}

func NewLookupService(lookupRepo repositories.LookupRepositoryInterface, logger *zap.Logger) *LookupService {
	return &LookupService{lookupRepo: lookupRepo, logger: logger}
}

func (s *LookupService) ListEmployees(ctx context.Context) ([]entities.LookupItem, error) {
	items, err := s.lookupRepo.ListEmployees(ctx)
	if err != nil {
		s.logger.Error("Ошибка при получении списка сотрудников", zap.Error(err))
	}
	return items, err
}

func (s *LookupService) ListServiceCompanies(ctx context.Context) ([]entities.LookupItem, error) {
	items, err := s.lookupRepo.ListServiceCompanies(ctx)
	if err != nil {
		s.logger.Error("Ошибка при получении списка сервисных компаний", zap.Error(err))
	}
	return items, err
}

func (s *LookupService) ListEquipmentTypes(ctx context.Context) ([]entities.LookupItem, error) {
	items, err := s.lookupRepo.ListEquipmentTypes(ctx)
	if err != nil {
		s.logger.Error("Ошибка при получении списка типов оборудования", zap.Error(err))
	}
	return items, err
}
