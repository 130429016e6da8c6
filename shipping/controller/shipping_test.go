package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/shipping/response"
	"github.com/Alturino/storefront/shipping/service"
)

type fakeRateStore struct{}

func (fakeRateStore) FindShippingRate(_ context.Context, code string) (response.ShippingRate, error) {
	if code != "IN" {
		return response.ShippingRate{}, inErrors.NotFound("shipping is not offered to countryCode=%s", code)
	}
	threshold := decimal.NewFromInt(1000)
	return response.ShippingRate{CountryCode: "IN", CountryName: "India", BaseFee: decimal.NewFromInt(50), FreeShippingThreshold: &threshold}, nil
}

func (s fakeRateStore) FindShippingRates(c context.Context) ([]response.ShippingRate, error) {
	rate, _ := s.FindShippingRate(c, "IN")
	return []response.ShippingRate{rate}, nil
}

func TestCalculate(t *testing.T) {
	router := mux.NewRouter()
	AttachShippingController(router, service.NewShippingService(fakeRateStore{}))

	tests := []struct {
		name               string
		body               string
		expectedStatusCode int
		expectedCost       string
		expectedFree       bool
	}{
		{name: "given subtotal below threshold should charge base fee", body: `{"countryCode":"IN","orderTotal":999}`, expectedStatusCode: http.StatusOK, expectedCost: "50"},
		{name: "given subtotal at threshold should be free", body: `{"countryCode":"IN","orderTotal":1000}`, expectedStatusCode: http.StatusOK, expectedCost: "0", expectedFree: true},
		{name: "given unsupported country should answer not found", body: `{"countryCode":"ZZ","orderTotal":1}`, expectedStatusCode: http.StatusNotFound},
		{name: "given missing country should answer bad request", body: `{"orderTotal":1}`, expectedStatusCode: http.StatusBadRequest},
		{name: "given malformed body should answer bad request", body: `{`, expectedStatusCode: http.StatusBadRequest},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			req := httptest.NewRequestWithContext(context.Background(), http.MethodPost, "/shipping/calculate", strings.NewReader(test.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, test.expectedStatusCode, rec.Code)
			if test.expectedStatusCode != http.StatusOK {
				return
			}
			body := struct {
				Data struct {
					Shipping struct {
						ShippingCost   decimal.Decimal `json:"shippingCost"`
						IsFreeShipping bool            `json:"isFreeShipping"`
						CountryName    string          `json:"countryName"`
					} `json:"shipping"`
				} `json:"data"`
			}{}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.True(t, decimal.RequireFromString(test.expectedCost).Equal(body.Data.Shipping.ShippingCost))
			assert.Equal(t, test.expectedFree, body.Data.Shipping.IsFreeShipping)
			assert.Equal(t, "India", body.Data.Shipping.CountryName)
		})
	}
}
