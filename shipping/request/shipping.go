package request

import "github.com/shopspring/decimal"

type Calculate struct {
	CountryCode string          `json:"countryCode" validate:"required,alpha,min=2,max=3"`
	OrderTotal  decimal.Decimal `json:"orderTotal"`
}
