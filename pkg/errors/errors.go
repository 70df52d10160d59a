package errors

import (
	"errors"
	"fmt"
)

var (
	// Авторизация
	ErrUnauthorized = fmt.Errorf("неавторизован")
	ErrForbidden    = fmt.Errorf("доступ запрещён")

	// Общие
	ErrNotFound   = fmt.Errorf("запись не найдена")
	ErrConflict   = fmt.Errorf("конфликт данных")
	ErrBadRequest = fmt.Errorf("неверный запрос")
	ErrRetrieval  = fmt.Errorf("не удалось получить данные")

	// Жизненный цикл оборудования
	ErrSerialInRepair = fmt.Errorf("%w: оборудование с таким SN уже находится в ремонте", ErrConflict)
	ErrNotInRepair    = fmt.Errorf("%w: оборудование с таким SN не находится в ремонте", ErrNotFound)
)

// Кастомные типы ошибок
type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string { return e.Message }

func NewInvalidInputError(format string, args ...interface{}) error {
	return &InvalidInputError{Message: fmt.Sprintf(format, args...)}
}

// IsInvalidInput сообщает, что ошибка исправима пользователем (неверный ввод).
func IsInvalidInput(err error) bool {
	var target *InvalidInputError
	return errors.As(err, &target)
}

// NewRetrievalError оборачивает сбой хранилища так, чтобы он распознавался как ErrRetrieval,
// сохраняя исходную причину для логов.
func NewRetrievalError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrRetrieval, op, err)
}

type HttpError struct {
	Code    int
	Message string
	Err     error
	Details interface{}
}

func (e *HttpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *HttpError) Unwrap() error { return e.Err }

func NewHttpError(code int, message string, err error, details interface{}) *HttpError {
	return &HttpError{Code: code, Message: message, Err: err, Details: details}
}
