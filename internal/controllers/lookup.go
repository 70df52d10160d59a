package controllers

import (
	"context"
	"net/http"

	"repair-tracker/internal/dto"
	"repair-tracker/internal/entities"
	"repair-tracker/internal/services"
	"repair-tracker/pkg/utils"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type LookupController struct {
	lookupService services.LookupServiceInterface
	logger        *zap.Logger
}

func NewLookupController(lookupService services.LookupServiceInterface, logger *zap.Logger) *LookupController {
	return &LookupController{lookupService: lookupService, logger: logger}
}

func (c *LookupController) GetEmployees(ctx echo.Context) error {
	return c.list(ctx, c.lookupService.ListEmployees, "Список сотрудников успешно получен")
}

func (c *LookupController) GetServiceCompanies(ctx echo.Context) error {
	return c.list(ctx, c.lookupService.ListServiceCompanies, "Список сервисных компаний успешно получен")
}

func (c *LookupController) GetEquipmentTypes(ctx echo.Context) error {
	return c.list(ctx, c.lookupService.ListEquipmentTypes, "Список типов оборудования успешно получен")
}

func (c *LookupController) list(ctx echo.Context, fetch func(context.Context) ([]entities.LookupItem, error), message string) error {
	items, err := fetch(ctx.Request().Context())
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res := make([]dto.LookupItemDTO, 0, len(items))
	for _, item := range items {
		res = append(res, dto.LookupItemDTO{ID: item.ID, Label: item.Label})
	}
	return utils.SuccessResponse(ctx, res, message, http.StatusOK)
}
