package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"repair-tracker/internal/entities"
	apperrors "repair-tracker/pkg/errors"
)

const (
	equipmentTable  = "equipment"
	equipmentFields = "id, sn, send_date, receive_date, status, sender_id, receiver_id, service_company_id, equipment_type_id, created_at, updated_at"

	// частичный уникальный индекс из миграции 00001
	inRepairUniqueIndex = "ux_equipment_sn_in_repair"

	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// EquipmentRepositoryInterface - журнал оборудования. Инварианты (один SN "в ремонте",
// возврат только из состояния "в ремонте") обеспечиваются самим хранилищем.
type EquipmentRepositoryInterface interface {
	Insert(ctx context.Context, record entities.Equipment) (*entities.Equipment, error)
	UpdateReturn(ctx context.Context, serial string, receiveDate time.Time, receiverID uint64) (*entities.Equipment, error)
	ListAll(ctx context.Context) ([]entities.Equipment, error)
	ListInRepair(ctx context.Context) ([]entities.Equipment, error)
}

type EquipmentRepository struct {
	storage querier
	logger  *zap.Logger
}

func NewEquipmentRepository(storage querier, logger *zap.Logger) EquipmentRepositoryInterface {
	return &EquipmentRepository{storage: storage, logger: logger}
}

type dbEquipment struct {
	ID               uint64
	Serial           string
	SendDate         time.Time
	ReceiveDate      *time.Time
	Status           string
	SenderID         uint64
	ReceiverID       *uint64
	ServiceCompanyID uint64
	EquipmentTypeID  uint64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (db *dbEquipment) scanTargets() []interface{} {
	return []interface{}{
		&db.ID, &db.Serial, &db.SendDate, &db.ReceiveDate, &db.Status,
		&db.SenderID, &db.ReceiverID, &db.ServiceCompanyID, &db.EquipmentTypeID,
		&db.CreatedAt, &db.UpdatedAt,
	}
}

func (db *dbEquipment) toEntity() *entities.Equipment {
	return &entities.Equipment{
		ID:               db.ID,
		Serial:           db.Serial,
		SendDate:         db.SendDate,
		ReceiveDate:      db.ReceiveDate,
		Status:           entities.EquipmentStatus(db.Status),
		SenderID:         db.SenderID,
		ReceiverID:       db.ReceiverID,
		ServiceCompanyID: db.ServiceCompanyID,
		EquipmentTypeID:  db.EquipmentTypeID,
		CreatedAt:        db.CreatedAt,
		UpdatedAt:        db.UpdatedAt,
	}
}

// Insert - одна запись в БД. Проверку "SN уже в ремонте" делает частичный уникальный
// индекс, поэтому две одновременные отправки одного SN не могут пройти обе.
func (r *EquipmentRepository) Insert(ctx context.Context, record entities.Equipment) (*entities.Equipment, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (sn, send_date, status, sender_id, service_company_id, equipment_type_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING %s`, equipmentTable, equipmentFields)

	var row dbEquipment
	err := r.storage.QueryRow(ctx, query,
		record.Serial,
		record.SendDate,
		string(entities.StatusInRepair),
		record.SenderID,
		record.ServiceCompanyID,
		record.EquipmentTypeID,
	).Scan(row.scanTargets()...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch {
			case pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == inRepairUniqueIndex:
				return nil, apperrors.ErrConflict
			case pgErr.Code == pgForeignKeyViolation:
				return nil, apperrors.NewInvalidInputError("неизвестный справочный элемент (%s)", pgErr.ConstraintName)
			}
		}
		return nil, apperrors.NewRetrievalError("equipment insert", err)
	}

	return row.toEntity(), nil
}

// UpdateReturn меняет статус одним UPDATE с условием status = 'in_repair'. Из двух
// конкурентных возвратов один обновит строку, второй получит ErrNotFound.
func (r *EquipmentRepository) UpdateReturn(ctx context.Context, serial string, receiveDate time.Time, receiverID uint64) (*entities.Equipment, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET receive_date = $1, receiver_id = $2, status = $3, updated_at = NOW()
		WHERE sn = $4 AND status = $5
		RETURNING %s`, equipmentTable, equipmentFields)

	var row dbEquipment
	err := r.storage.QueryRow(ctx, query,
		receiveDate,
		receiverID,
		string(entities.StatusReturned),
		serial,
		string(entities.StatusInRepair),
	).Scan(row.scanTargets()...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return nil, apperrors.NewInvalidInputError("неизвестный сотрудник (%s)", pgErr.ConstraintName)
		}
		return nil, apperrors.NewRetrievalError("equipment return", err)
	}

	return row.toEntity(), nil
}

func (r *EquipmentRepository) ListAll(ctx context.Context) ([]entities.Equipment, error) {
	return r.list(ctx, nil)
}

func (r *EquipmentRepository) ListInRepair(ctx context.Context) ([]entities.Equipment, error) {
	return r.list(ctx, sq.Eq{"status": string(entities.StatusInRepair)})
}

func (r *EquipmentRepository) list(ctx context.Context, where sq.Sqlizer) ([]entities.Equipment, error) {
	builder := sq.Select(equipmentFields).
		From(equipmentTable).
		OrderBy("send_date DESC", "id DESC").
		PlaceholderFormat(sq.Dollar)
	if where != nil {
		builder = builder.Where(where)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("сборка запроса списка оборудования: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewRetrievalError("equipment list", err)
	}
	defer rows.Close()

	records := make([]entities.Equipment, 0)
	for rows.Next() {
		var row dbEquipment
		if err := rows.Scan(row.scanTargets()...); err != nil {
			return nil, apperrors.NewRetrievalError("equipment scan", err)
		}
		records = append(records, *row.toEntity())
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewRetrievalError("equipment rows", err)
	}

	r.logger.Debug("Список оборудования получен", zap.Int("count", len(records)))
	return records, nil
}
