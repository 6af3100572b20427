package dto

import (
	"reflect"
	"strings"

	"splatchain-ledger/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("wallet_username", validateUsername)
		_ = v.RegisterValidation("wallet_type", validateWalletType)
	}
}

// validateUsername requires a lowercase alphanumeric username ending in .ink.
func validateUsername(fl validator.FieldLevel) bool {
	return domain.ValidUsername(fl.Field().String())
}

// validateWalletType accepts Person or Business in any case.
func validateWalletType(fl validator.FieldLevel) bool {
	_, ok := domain.ParseWalletType(fl.Field().String())
	return ok
}

// TrimStruct trims surrounding whitespace from every exported string field
// (including *string) of a struct pointer.
func TrimStruct(v any) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	trimFields(rv.Elem())
}

func trimFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(strings.TrimSpace(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			if elem := f.Elem(); elem.Kind() == reflect.String {
				elem.SetString(strings.TrimSpace(elem.String()))
			}
		}
	}
}
