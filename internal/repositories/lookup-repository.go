package repositories

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"repair-tracker/internal/entities"
	apperrors "repair-tracker/pkg/errors"
)

const (
	employeeTable       = "employees"
	serviceCompanyTable = "service_companies"
	equipmentTypeTable  = "equipment_types"
)

// LookupRepositoryInterface - справочники только для чтения.
type LookupRepositoryInterface interface {
	ListEmployees(ctx context.Context) ([]entities.LookupItem, error)
	ListServiceCompanies(ctx context.Context) ([]entities.LookupItem, error)
	ListEquipmentTypes(ctx context.Context) ([]entities.LookupItem, error)
}

type LookupRepository struct {
	storage querier
	logger  *zap.Logger
}

func NewLookupRepository(storage querier, logger *zap.Logger) LookupRepositoryInterface {
	return &LookupRepository{storage: storage, logger: logger}
}

func (r *LookupRepository) ListEmployees(ctx context.Context) ([]entities.LookupItem, error) {
	return r.listLabels(ctx, employeeTable, "fio")
}

func (r *LookupRepository) ListServiceCompanies(ctx context.Context) ([]entities.LookupItem, error) {
	return r.listLabels(ctx, serviceCompanyTable, "name")
}

func (r *LookupRepository) ListEquipmentTypes(ctx context.Context) ([]entities.LookupItem, error) {
	return r.listLabels(ctx, equipmentTypeTable, "name")
}

func (r *LookupRepository) listLabels(ctx context.Context, table, labelColumn string) ([]entities.LookupItem, error) {
	query, args, err := sq.Select("id", labelColumn).
		From(table).
		OrderBy(labelColumn, "id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, apperrors.NewRetrievalError(table, err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Ошибка чтения справочника", zap.String("table", table), zap.Error(err))
		return nil, apperrors.NewRetrievalError(table, err)
	}
	defer rows.Close()

	items := make([]entities.LookupItem, 0)
	for rows.Next() {
		var item entities.LookupItem
		if err := rows.Scan(&item.ID, &item.Label); err != nil {
			return nil, apperrors.NewRetrievalError(table, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewRetrievalError(table, err)
	}
	return items, nil
}
