// Файл: pkg/customvalidator/validator.go

package customvalidator

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	SerialMinLength = 3
	SerialMaxLength = 32
	// callback_data в Telegram ограничен 64 байтами, серийник передается в кнопке как есть
	SerialMaxBytes = 64
)

// RegisterCustomValidations регистрирует кастомные правила валидации в переданном валидаторе.
func RegisterCustomValidations(v *validator.Validate) error {
	if err := v.RegisterValidation("serial", isSerialField); err != nil {
		return err
	}
	return nil
}

// NormalizeSerial убирает пробелы по краям. Внутренние пробелы остаются и отсекаются IsValidSerial.
func NormalizeSerial(s string) string {
	return strings.TrimSpace(s)
}

// IsValidSerial - единственное правило формата серийного номера:
// от 3 до 32 символов, только буквы и цифры (любого алфавита).
// Пробелы, дефисы, подчеркивания и прочая пунктуация запрещены.
func IsValidSerial(s string) bool {
	if len(s) > SerialMaxBytes {
		return false
	}
	n := utf8.RuneCountInString(s)
	if n < SerialMinLength || n > SerialMaxLength {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func isSerialField(fl validator.FieldLevel) bool {
	return IsValidSerial(fl.Field().String())
}
