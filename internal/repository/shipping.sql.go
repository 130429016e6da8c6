package repository

import (
	"context"
)

const findShippingRateByCountryCode = `-- name: FindShippingRateByCountryCode :one
SELECT country_code, country_name, base_fee, free_shipping_threshold
FROM shipping_rates
WHERE country_code = $1
`

func (q *Queries) FindShippingRateByCountryCode(c context.Context, countryCode string) (ShippingRate, error) {
	row := q.db.QueryRow(c, findShippingRateByCountryCode, countryCode)
	var i ShippingRate
	err := row.Scan(&i.CountryCode, &i.CountryName, &i.BaseFee, &i.FreeShippingThreshold)
	return i, err
}

const findShippingRates = `-- name: FindShippingRates :many
SELECT country_code, country_name, base_fee, free_shipping_threshold
FROM shipping_rates
ORDER BY country_name
`

func (q *Queries) FindShippingRates(c context.Context) ([]ShippingRate, error) {
	rows, err := q.db.Query(c, findShippingRates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	rates := []ShippingRate{}
	for rows.Next() {
		var i ShippingRate
		if err := rows.Scan(&i.CountryCode, &i.CountryName, &i.BaseFee, &i.FreeShippingThreshold); err != nil {
			return nil, err
		}
		rates = append(rates, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rates, nil
}
