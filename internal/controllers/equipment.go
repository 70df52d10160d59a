package controllers

import (
	"net/http"
	"time"

	"repair-tracker/internal/dto"
	"repair-tracker/internal/entities"
	"repair-tracker/internal/services"
	apperrors "repair-tracker/pkg/errors"
	"repair-tracker/pkg/utils"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type EquipmentController struct {
	lifecycleService services.LifecycleServiceInterface
	reportService    services.ReportServiceInterface
	loc              *time.Location
	logger           *zap.Logger
}

func NewEquipmentController(
	lifecycleService services.LifecycleServiceInterface,
	reportService services.ReportServiceInterface,
	loc *time.Location,
	logger *zap.Logger,
) *EquipmentController {
	return &EquipmentController{
		lifecycleService: lifecycleService,
		reportService:    reportService,
		loc:              loc,
		logger:           logger,
	}
}

// ----- РАБОЧИЕ МЕТОДЫ КОНТРОЛЛЕРА -----

// GetEquipment - GET /equipment?status=in_repair|returned
func (c *EquipmentController) GetEquipment(ctx echo.Context) error {
	status := entities.EquipmentStatus(ctx.QueryParam("status"))
	if status != "" && !status.Valid() {
		return utils.ErrorResponse(ctx,
			apperrors.NewHttpError(http.StatusBadRequest, "Неизвестный статус оборудования", nil,
				map[string]interface{}{"status": status}),
			c.logger)
	}

	res, err := c.reportService.GetEquipment(ctx.Request().Context(), status)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Список оборудования успешно получен", http.StatusOK)
}

// GetInRepair - сырые записи журнала без подписей справочников.
func (c *EquipmentController) GetInRepair(ctx echo.Context) error {
	res, err := c.lifecycleService.ListInRepair(ctx.Request().Context())
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Список оборудования в ремонте успешно получен", http.StatusOK)
}

// ShowInRepair - записи "в ремонте" с именами и названиями.
func (c *EquipmentController) ShowInRepair(ctx echo.Context) error {
	res, err := c.reportService.GetEquipment(ctx.Request().Context(), entities.StatusInRepair)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Список оборудования в ремонте успешно получен", http.StatusOK)
}

func (c *EquipmentController) Intake(ctx echo.Context) error {
	var payload dto.IntakeDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx,
			apperrors.NewHttpError(http.StatusBadRequest, "Неверный формат запроса", err, nil),
			c.logger)
	}

	res, err := c.lifecycleService.Intake(ctx.Request().Context(), payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Оборудование отправлено в ремонт", http.StatusCreated)
}

func (c *EquipmentController) Return(ctx echo.Context) error {
	var payload dto.ReturnDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx,
			apperrors.NewHttpError(http.StatusBadRequest, "Неверный формат запроса", err, nil),
			c.logger)
	}

	res, err := c.lifecycleService.Return(ctx.Request().Context(), payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Оборудование принято из ремонта", http.StatusOK)
}

// Export - GET /equipment/export?format=csv|xlsx, по умолчанию csv.
func (c *EquipmentController) Export(ctx echo.Context) error {
	format := ctx.QueryParam("format")
	if format == "" {
		format = "csv"
	}

	var (
		content     []byte
		contentType string
		err         error
	)
	switch format {
	case "csv":
		content, err = c.reportService.ExportCSV(ctx.Request().Context())
		contentType = "text/csv; charset=utf-8"
	case "xlsx":
		content, err = c.reportService.ExportXLSX(ctx.Request().Context())
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return utils.ErrorResponse(ctx,
			apperrors.NewHttpError(http.StatusBadRequest, "Поддерживаются форматы csv и xlsx", nil,
				map[string]interface{}{"format": format}),
			c.logger)
	}
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	fileName := services.ExportFileName(format, time.Now().In(c.loc))
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+fileName+`"`)
	return ctx.Blob(http.StatusOK, contentType, content)
}
