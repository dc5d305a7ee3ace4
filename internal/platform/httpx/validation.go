package httpx

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidation adds a custom tag to gin's binding validator.
func RegisterValidation(tag string, fn validator.Func) error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("httpx: binding engine is %T, not *validator.Validate", binding.Validator.Engine())
	}
	return v.RegisterValidation(tag, fn)
}

// OneOf returns a validator that accepts empty values and any value for which parse succeeds.
func OneOf[T any](parse func(string) (T, error)) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return true
		}
		_, err := parse(s)
		return err == nil
	}
}
