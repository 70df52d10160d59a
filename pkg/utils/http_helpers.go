package utils

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	apperrors "repair-tracker/pkg/errors"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type HTTPResponse struct {
	Status  bool        `json:"status"`
	Body    interface{} `json:"body,omitempty"`
	Message string      `json:"message"`
}

func SuccessResponse(ctx echo.Context, body interface{}, message string, code int) error {
	return ctx.JSON(code, &HTTPResponse{Status: true, Body: body, Message: message})
}

// ErrorResponse превращает ошибку сервиса в JSON-ответ. Доменные ошибки получают
// свой HTTP-код, все остальное - 500 без технических деталей.
func ErrorResponse(c echo.Context, err error, logger *zap.Logger) error {
	var httpErr *apperrors.HttpError
	if errors.As(err, &httpErr) {
		if httpErr.Err != nil {
			logger.Error("HTTP Error",
				zap.Int("code", httpErr.Code),
				zap.String("message", httpErr.Message),
				zap.Error(httpErr.Err),
			)
		}

		response := map[string]interface{}{
			"status":  false,
			"message": httpErr.Message,
		}
		if httpErr.Details != nil {
			response["body"] = httpErr.Details
		}
		return c.JSON(httpErr.Code, response)
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var msgs []string
		for _, e := range validationErrors {
			msgs = append(msgs, fmt.Sprintf("Поле '%s' не прошло проверку '%s'", e.Field(), e.Tag()))
		}
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"status": false, "message": "Ошибка валидации: " + strings.Join(msgs, "; ")})
	}

	if code, ok := statusFor(err); ok {
		return c.JSON(code, map[string]interface{}{"status": false, "message": err.Error()})
	}

	if errors.Is(err, apperrors.ErrRetrieval) {
		logger.Error("Ошибка хранилища", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"status":  false,
			"message": "Не удалось получить данные. Попробуйте позже.",
		})
	}

	logger.Error("Unexpected Error", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"status":  false,
		"message": "Внутренняя ошибка сервера",
	})
}

func statusFor(err error) (int, bool) {
	switch {
	case apperrors.IsInvalidInput(err), errors.Is(err, apperrors.ErrBadRequest):
		return http.StatusBadRequest, true
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, true
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized, true
	}
	return 0, false
}
