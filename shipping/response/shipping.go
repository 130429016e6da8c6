package response

import "github.com/shopspring/decimal"

// ShippingRate is one row of the destination table. A nil threshold means
// shipping to the country is never free.
type ShippingRate struct {
	CountryCode           string           `json:"countryCode"`
	CountryName           string           `json:"countryName"`
	BaseFee               decimal.Decimal  `json:"baseFee"`
	FreeShippingThreshold *decimal.Decimal `json:"freeShippingThreshold"`
}

type Country struct {
	CountryCode string `json:"countryCode"`
	CountryName string `json:"countryName"`
}

type Shipping struct {
	CountryCode           string           `json:"countryCode"`
	CountryName           string           `json:"countryName"`
	ShippingCost          decimal.Decimal  `json:"shippingCost"`
	IsFreeShipping        bool             `json:"isFreeShipping"`
	FreeShippingThreshold *decimal.Decimal `json:"freeShippingThreshold"`
}
