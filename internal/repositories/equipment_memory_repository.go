package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"repair-tracker/internal/entities"
	apperrors "repair-tracker/pkg/errors"
	"repair-tracker/pkg/utils"
)

// MemoryEquipmentRepository - журнал в памяти процесса (STORAGE_DRIVER=memory и тесты).
// Проверка и запись выполняются под одной блокировкой, что дает те же гарантии,
// что и уникальный индекс в PostgreSQL. Ссылки на справочники проверяются
// по lookups, как внешние ключи в БД.
type MemoryEquipmentRepository struct {
	mu      sync.RWMutex
	records []entities.Equipment
	nextID  uint64
	lookups *MemoryLookupRepository
	now     func() time.Time
}

func NewMemoryEquipmentRepository(lookups *MemoryLookupRepository) *MemoryEquipmentRepository {
	return &MemoryEquipmentRepository{nextID: 1, lookups: lookups, now: time.Now}
}

func (r *MemoryEquipmentRepository) Insert(ctx context.Context, record entities.Equipment) (*entities.Equipment, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewRetrievalError("equipment insert", err)
	}

	if err := r.checkIntakeRefs(record); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.records {
		if existing.Serial == record.Serial && existing.Status == entities.StatusInRepair {
			return nil, apperrors.ErrConflict
		}
	}

	now := r.now()
	record.ID = r.nextID
	record.Status = entities.StatusInRepair
	record.ReceiveDate = nil
	record.ReceiverID = nil
	record.CreatedAt = now
	record.UpdatedAt = now
	r.nextID++
	r.records = append(r.records, record)

	saved := record
	return &saved, nil
}

func (r *MemoryEquipmentRepository) UpdateReturn(ctx context.Context, serial string, receiveDate time.Time, receiverID uint64) (*entities.Equipment, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewRetrievalError("equipment return", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.records {
		rec := &r.records[i]
		if rec.Serial != serial || rec.Status != entities.StatusInRepair {
			continue
		}
		if !r.lookups.hasEmployee(receiverID) {
			return nil, apperrors.NewInvalidInputError("неизвестный сотрудник (receiver_id=%d)", receiverID)
		}
		rec.ReceiveDate = utils.ToPtr(receiveDate)
		rec.ReceiverID = utils.ToPtr(receiverID)
		rec.Status = entities.StatusReturned
		rec.UpdatedAt = r.now()

		updated := *rec
		return &updated, nil
	}
	return nil, apperrors.ErrNotFound
}

func (r *MemoryEquipmentRepository) checkIntakeRefs(record entities.Equipment) error {
	switch {
	case !r.lookups.hasEmployee(record.SenderID):
		return apperrors.NewInvalidInputError("неизвестный сотрудник (sender_id=%d)", record.SenderID)
	case !r.lookups.hasServiceCompany(record.ServiceCompanyID):
		return apperrors.NewInvalidInputError("неизвестная сервисная компания (service_company_id=%d)", record.ServiceCompanyID)
	case !r.lookups.hasEquipmentType(record.EquipmentTypeID):
		return apperrors.NewInvalidInputError("неизвестный тип оборудования (equipment_type_id=%d)", record.EquipmentTypeID)
	}
	return nil
}

func (r *MemoryEquipmentRepository) ListAll(ctx context.Context) ([]entities.Equipment, error) {
	return r.snapshot(func(entities.Equipment) bool { return true }), nil
}

func (r *MemoryEquipmentRepository) ListInRepair(ctx context.Context) ([]entities.Equipment, error) {
	return r.snapshot(func(e entities.Equipment) bool { return e.Status == entities.StatusInRepair }), nil
}

// snapshot копирует записи, чтобы вызывающий код не держал ссылок на внутренний срез.
func (r *MemoryEquipmentRepository) snapshot(keep func(entities.Equipment) bool) []entities.Equipment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]entities.Equipment, 0, len(r.records))
	for _, rec := range r.records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	// тот же порядок, что и в PostgreSQL: новые сверху
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].SendDate.Equal(out[j].SendDate) {
			return out[i].SendDate.After(out[j].SendDate)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
