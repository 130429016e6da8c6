package validate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type priced struct {
	Price    decimal.Decimal `validate:"price"`
	Currency string          `validate:"currency"`
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   priced
		isValid bool
	}{
		{name: "given positive price and code should pass", input: priced{Price: decimal.RequireFromString("500"), Currency: "usd"}, isValid: true},
		{name: "given zero price should fail", input: priced{Price: decimal.Zero, Currency: "INR"}},
		{name: "given negative price should fail", input: priced{Price: decimal.RequireFromString("-1"), Currency: "INR"}},
		{name: "given numeric currency should fail", input: priced{Price: decimal.NewFromInt(1), Currency: "123"}},
		{name: "given long currency should fail", input: priced{Price: decimal.NewFromInt(1), Currency: "EURO"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := New().Struct(test.input)
			if test.isValid {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
		})
	}
}
