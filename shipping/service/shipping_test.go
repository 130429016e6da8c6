package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/shipping/response"
)

type fakeRateStore map[string]response.ShippingRate

func (s fakeRateStore) FindShippingRate(_ context.Context, countryCode string) (response.ShippingRate, error) {
	rate, ok := s[countryCode]
	if !ok {
		return response.ShippingRate{}, inErrors.NotFound("shipping is not offered to countryCode=%s", countryCode)
	}
	return rate, nil
}

func (s fakeRateStore) FindShippingRates(context.Context) ([]response.ShippingRate, error) {
	rates := make([]response.ShippingRate, 0, len(s))
	for _, code := range []string{"IN", "US"} {
		if rate, ok := s[code]; ok {
			rates = append(rates, rate)
		}
	}
	return rates, nil
}

func newStore() fakeRateStore {
	threshold := decimal.NewFromInt(1000)
	return fakeRateStore{
		"IN": {CountryCode: "IN", CountryName: "India", BaseFee: decimal.NewFromInt(50), FreeShippingThreshold: &threshold},
		"US": {CountryCode: "US", CountryName: "United States", BaseFee: decimal.NewFromInt(1500)},
	}
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name         string
		countryCode  string
		subtotal     string
		expectedFee  string
		expectedFree bool
		expectedErr  error
	}{
		{name: "given subtotal below threshold should charge base fee", countryCode: "IN", subtotal: "999", expectedFee: "50"},
		{name: "given subtotal equal to threshold should be free", countryCode: "IN", subtotal: "1000", expectedFee: "0", expectedFree: true},
		{name: "given subtotal above threshold should be free", countryCode: "in", subtotal: "1000.01", expectedFee: "0", expectedFree: true},
		{name: "given country without threshold should never be free", countryCode: "US", subtotal: "1000000", expectedFee: "1500"},
		{name: "given unknown country should not fall back", countryCode: "ZZ", subtotal: "10", expectedErr: inErrors.ErrNotFound},
		{name: "given negative subtotal should fail validation", countryCode: "IN", subtotal: "-1", expectedErr: inErrors.ErrValidation},
	}

	svc := NewShippingService(newStore())
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result, err := svc.Calculate(context.Background(), test.countryCode, decimal.RequireFromString(test.subtotal))
			if test.expectedErr != nil {
				assert.ErrorIs(t, err, test.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(test.expectedFee).Equal(result.ShippingCost), "fee=%s", result.ShippingCost)
			assert.Equal(t, test.expectedFree, result.IsFreeShipping)
		})
	}
}

func TestFeeIsZeroIffThresholdReached(t *testing.T) {
	threshold := decimal.NewFromInt(1000)
	rate := response.ShippingRate{CountryCode: "IN", BaseFee: decimal.NewFromInt(50), FreeShippingThreshold: &threshold}
	for cents := int64(99000); cents <= 101000; cents += 37 {
		subtotal := decimal.New(cents, -2)
		fee, free := Fee(rate, subtotal)
		assert.Equal(t, subtotal.GreaterThanOrEqual(threshold), free, "subtotal=%s", subtotal)
		assert.Equal(t, free, fee.IsZero(), "subtotal=%s", subtotal)
	}
}

func TestCountries(t *testing.T) {
	countries, err := NewShippingService(newStore()).Countries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []response.Country{
		{CountryCode: "IN", CountryName: "India"},
		{CountryCode: "US", CountryName: "United States"},
	}, countries)
}
