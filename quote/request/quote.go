package request

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type QuoteItem struct {
	Type           string          `json:"type"`
	CategoryName   string          `json:"categoryName"   validate:"required"`
	Specifications json.RawMessage `json:"specifications" validate:"required"`
	Quantity       int             `json:"quantity"       validate:"gte=1,lte=100000"`
}

type SubmitQuote struct {
	Items []QuoteItem `json:"items" validate:"required,min=1,max=50,dive"`
	Notes string      `json:"notes" validate:"max=4000"`
}

type MarkQuoted struct {
	Price decimal.Decimal `json:"price" validate:"price"`
}
