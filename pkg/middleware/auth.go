package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	apperrors "repair-tracker/pkg/errors"
	"repair-tracker/pkg/utils"
)

const APIKeyHeader = "X-API-Key"

// APIKeyAuth проверяет заголовок X-API-Key. Пустой ключ отключает проверку.
func APIKeyAuth(apiKey string, logger *zap.Logger) echo.MiddlewareFunc {
	if apiKey == "" {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	return echomw.KeyAuthWithConfig(echomw.KeyAuthConfig{
		KeyLookup: "header:" + APIKeyHeader,
		Validator: func(key string, c echo.Context) (bool, error) {
			return utils.SecretsEqual(key, apiKey), nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			logger.Warn("APIKeyAuth: доступ отклонен",
				zap.String("uri", c.Request().RequestURI),
				zap.String("remote_ip", c.RealIP()),
			)
			return utils.ErrorResponse(c,
				apperrors.NewHttpError(http.StatusUnauthorized, "Неверный или отсутствующий API-ключ", nil, nil),
				logger)
		},
	})
}
