package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"repair-tracker/internal/dto"
	"repair-tracker/internal/entities"
	"repair-tracker/internal/repositories"
	"repair-tracker/pkg/customvalidator"
	apperrors "repair-tracker/pkg/errors"
)

var moscow = time.FixedZone("MSK", 3*60*60)

func newTestLookupRepo() *repositories.MemoryLookupRepository {
	return repositories.NewMemoryLookupRepository(
		[]entities.LookupItem{{ID: 1, Label: "Иванов"}, {ID: 5, Label: "Петров"}, {ID: 7, Label: "Сидоров"}},
		[]entities.LookupItem{{ID: 2, Label: "СервисТехника"}},
		[]entities.LookupItem{{ID: 3, Label: "Ноутбук"}},
	)
}

func newTestLifecycle(t *testing.T, now time.Time) (*LifecycleService, *repositories.MemoryEquipmentRepository) {
	t.Helper()
	v := validator.New()
	require.NoError(t, customvalidator.RegisterCustomValidations(v))

	repo := repositories.NewMemoryEquipmentRepository(newTestLookupRepo())
	svc := NewLifecycleService(repo, v, moscow, zap.NewNop())
	svc.now = func() time.Time { return now }
	return svc, repo
}

func intakePayload(serial string) dto.IntakeDTO {
	return dto.IntakeDTO{Serial: serial, SenderID: 1, ServiceCompanyID: 2, EquipmentTypeID: 3}
}

func TestLifecycle_SN001Scenario(t *testing.T) {
	ctx := context.Background()
	// 22:30 UTC - уже следующий день по Москве
	now := time.Date(2026, 3, 10, 22, 30, 0, 0, time.UTC)
	svc, _ := newTestLifecycle(t, now)

	created, err := svc.Intake(ctx, intakePayload("SN001"))
	require.NoError(t, err)
	assert.Equal(t, entities.StatusInRepair, created.Status)
	assert.Equal(t, 11, created.SendDate.Day(), "дата отправки считается в часовом поясе сервиса")

	_, err = svc.Intake(ctx, intakePayload("SN001"))
	assert.ErrorIs(t, err, apperrors.ErrSerialInRepair)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	returned, err := svc.Return(ctx, dto.ReturnDTO{Serial: "SN001", ReceiverID: 5})
	require.NoError(t, err)
	assert.Equal(t, entities.StatusReturned, returned.Status)
	require.NotNil(t, returned.ReceiverID)
	assert.Equal(t, uint64(5), *returned.ReceiverID)
	require.NotNil(t, returned.ReceiveDate)
	assert.Equal(t, 11, returned.ReceiveDate.Day())

	_, err = svc.Return(ctx, dto.ReturnDTO{Serial: "SN001", ReceiverID: 7})
	assert.ErrorIs(t, err, apperrors.ErrNotInRepair)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	inRepair, err := svc.ListInRepair(ctx)
	require.NoError(t, err)
	assert.Empty(t, inRepair)

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestLifecycle_IntakeValidation(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestLifecycle(t, time.Now())

	cases := map[string]dto.IntakeDTO{
		"пробел в SN":         intakePayload("ab c"),
		"пунктуация":          intakePayload("a!"),
		"дефис":               intakePayload("ABCDE-123"),
		"короткий SN":         intakePayload("AB"),
		"нет отправителя":     {Serial: "SN002", ServiceCompanyID: 2, EquipmentTypeID: 3},
		"нет компании":        {Serial: "SN002", SenderID: 1, EquipmentTypeID: 3},
		"нет типа устройства": {Serial: "SN002", SenderID: 1, ServiceCompanyID: 2},
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Intake(ctx, payload)
			assert.True(t, apperrors.IsInvalidInput(err), "ожидалась ошибка ввода, получено: %v", err)
		})
	}

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "неверный ввод не должен попадать в журнал")
}

func TestLifecycle_UnknownLookupIsInvalidInput(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestLifecycle(t, time.Now())

	cases := map[string]dto.IntakeDTO{
		"неизвестный отправитель": {Serial: "SN001", SenderID: 999, ServiceCompanyID: 2, EquipmentTypeID: 3},
		"неизвестная компания":    {Serial: "SN001", SenderID: 1, ServiceCompanyID: 999, EquipmentTypeID: 3},
		"неизвестный тип":         {Serial: "SN001", SenderID: 1, ServiceCompanyID: 2, EquipmentTypeID: 999},
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Intake(ctx, payload)
			assert.True(t, apperrors.IsInvalidInput(err), "ожидалась ошибка ввода, получено: %v", err)
		})
	}

	_, err := svc.Intake(ctx, intakePayload("SN001"))
	require.NoError(t, err)
	_, err = svc.Return(ctx, dto.ReturnDTO{Serial: "SN001", ReceiverID: 999})
	assert.True(t, apperrors.IsInvalidInput(err), "ожидалась ошибка ввода, получено: %v", err)

	inRepair, err := repo.ListInRepair(ctx)
	require.NoError(t, err)
	require.Len(t, inRepair, 1, "неизвестный принимающий не должен закрывать запись")
	assert.Nil(t, inRepair[0].ReceiverID)
}

func TestLifecycle_IntakeTrimsSerial(t *testing.T) {
	svc, _ := newTestLifecycle(t, time.Now())

	created, err := svc.Intake(context.Background(), intakePayload("  AB1  "))
	require.NoError(t, err)
	assert.Equal(t, "AB1", created.Serial)
}

func TestLifecycle_ReturnValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLifecycle(t, time.Now())

	_, err := svc.Return(ctx, dto.ReturnDTO{Serial: "SN001"})
	assert.True(t, apperrors.IsInvalidInput(err))

	_, err = svc.Return(ctx, dto.ReturnDTO{Serial: "a!", ReceiverID: 5})
	assert.True(t, apperrors.IsInvalidInput(err))

	_, err = svc.Return(ctx, dto.ReturnDTO{Serial: "UNKNOWN1", ReceiverID: 5})
	assert.ErrorIs(t, err, apperrors.ErrNotInRepair)
}
