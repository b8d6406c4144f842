// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// AffiliationIDLength задаёт длину идентификатора аффилиации.
const AffiliationIDLength = 8

// AffiliationIDAlphabet перечисляет допустимые символы идентификатора аффилиации.
const AffiliationIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = validate.RegisterValidation("affid", func(fl validator.FieldLevel) bool {
			return IsValidAffiliationID(fl.Field().String())
		})
	})
	return validate
}

// FieldError описывает первое нарушенное правило.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}

// Struct проверяет структуру по тегам `validate` и возвращает *FieldError для первого нарушения.
func Struct(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	msgs := FormatValidationError(verrs)
	return &FieldError{Field: verrs[0].Field(), Message: msgs[0]}
}

// FormatValidationError переводит ошибки validator в читаемые сообщения.
func FormatValidationError(err error) []string {
	var errs []string

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			field := e.Field()

			switch e.Tag() {
			case "required":
				errs = append(errs, fmt.Sprintf("%s is required", field))
			case "email":
				errs = append(errs, fmt.Sprintf("%s must be a valid email", field))
			case "min":
				errs = append(errs, fmt.Sprintf("%s must have minimum length %s", field, e.Param()))
			case "max":
				errs = append(errs, fmt.Sprintf("%s must have maximum length %s", field, e.Param()))
			case "oneof":
				errs = append(errs, fmt.Sprintf("%s must be one of [%s]", field, e.Param()))
			case "affid":
				errs = append(errs, fmt.Sprintf("%s must be %d characters of A-Z and 0-9", field, AffiliationIDLength))
			default:
				errs = append(errs, fmt.Sprintf("%s is invalid (%s)", field, e.Tag()))
			}
		}
	}
	return errs
}

// IsValidAffiliationID проверяет формат идентификатора аффилиации.
func IsValidAffiliationID(id string) bool {
	if len(id) != AffiliationIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if !strings.ContainsRune(AffiliationIDAlphabet, rune(id[i])) {
			return false
		}
	}
	return true
}

// NormalizeAffiliationID приводит введённый пользователем идентификатор к каноническому виду.
func NormalizeAffiliationID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
