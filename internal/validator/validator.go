package validator

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// getInstance возвращает синглтон-экземпляр валидатора.
func getInstance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct выполняет валидацию по тегам структуры.
func ValidateStruct(s interface{}) error {
	return getInstance().Struct(s)
}

// FieldError - первая ошибка валидации в удобном для ответа виде.
type FieldError struct {
	Field string
	Tag   string
}

// FirstError возвращает поле и тег первой ошибки валидации.
func FirstError(err error) (FieldError, bool) {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return FieldError{}, false
	}
	return FieldError{Field: verrs[0].Namespace(), Tag: verrs[0].Tag()}, true
}
