package response

import (
	"time"

	"github.com/shopspring/decimal"
)

type Rates struct {
	Base      string                     `json:"base"`
	FetchedAt time.Time                  `json:"fetchedAt"`
	Rates     map[string]decimal.Decimal `json:"rates"`
}

type Conversion struct {
	Canonical      decimal.Decimal `json:"canonical"`
	CanonicalCode  string          `json:"canonicalCurrency"`
	Converted      decimal.Decimal `json:"converted"`
	Currency       string          `json:"currency"`
	Formatted      string          `json:"formatted"`
	RatesFetchedAt time.Time       `json:"ratesFetchedAt"`
}
