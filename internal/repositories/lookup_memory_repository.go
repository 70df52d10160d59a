package repositories

import (
	"context"

	"repair-tracker/internal/entities"
)

// MemoryLookupRepository отдает справочники, заданные при создании.
type MemoryLookupRepository struct {
	employees        []entities.LookupItem
	serviceCompanies []entities.LookupItem
	equipmentTypes   []entities.LookupItem
}

func NewMemoryLookupRepository(employees, serviceCompanies, equipmentTypes []entities.LookupItem) *MemoryLookupRepository {
	return &MemoryLookupRepository{
		employees:        employees,
		serviceCompanies: serviceCompanies,
		equipmentTypes:   equipmentTypes,
	}
}

func (r *MemoryLookupRepository) ListEmployees(ctx context.Context) ([]entities.LookupItem, error) {
	return append([]entities.LookupItem(nil), r.employees...), nil
}

func (r *MemoryLookupRepository) ListServiceCompanies(ctx context.Context) ([]entities.LookupItem, error) {
	return append([]entities.LookupItem(nil), r.serviceCompanies...), nil
}

func (r *MemoryLookupRepository) ListEquipmentTypes(ctx context.Context) ([]entities.LookupItem, error) {
	return append([]entities.LookupItem(nil), r.equipmentTypes...), nil
}

func (r *MemoryLookupRepository) hasEmployee(id uint64) bool {
	return containsID(r.employees, id)
}

func (r *MemoryLookupRepository) hasServiceCompany(id uint64) bool {
	return containsID(r.serviceCompanies, id)
}

func (r *MemoryLookupRepository) hasEquipmentType(id uint64) bool {
	return containsID(r.equipmentTypes, id)
}

func containsID(items []entities.LookupItem, id uint64) bool {
	for _, item := range items {
		if item.ID == id {
			return true
		}
	}
	return false
}
