package validate

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// New returns the shared validator with decimal support and the "price" and
// "currency" tags registered.
func New() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterCustomTypeFunc(DecimalValue, decimal.Decimal{})
		_ = v.RegisterValidation("price", ValidatePrice)
		_ = v.RegisterValidation("currency", ValidateCurrency)
		validate = v
	})
	return validate
}

func ValidatePrice(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	d, err := decimal.NewFromString(value)
	if err != nil {
		return false
	}
	return d.IsPositive()
}

func ValidateCurrency(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	if len(value) != 3 {
		return false
	}
	for _, r := range value {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

func DecimalValue(v reflect.Value) interface{} {
	n, ok := v.Interface().(decimal.Decimal)
	if !ok {
		return nil
	}
	return n.String()
}
