package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alturino/storefront/currency/service"
)

type envelope struct {
	StatusCode int                        `json:"statusCode"`
	Success    bool                       `json:"success"`
	Data       map[string]json.RawMessage `json:"data"`
}

func newRouter() *mux.Router {
	snapshot := service.NewSnapshot("INR", map[string]decimal.Decimal{"USD": decimal.RequireFromString("0.012")}, time.Now())
	converter := service.NewConverter(snapshot, service.NewStaticSource(snapshot), time.Second)
	router := mux.NewRouter()
	AttachCurrencyController(router, converter)
	return router
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name               string
		url                string
		expectedStatusCode int
		expectedConverted  string
	}{
		{name: "given usd should convert", url: "/currency/convert?amount=1000&currency=usd", expectedStatusCode: http.StatusOK, expectedConverted: "12"},
		{name: "given unknown currency should fall back to canonical", url: "/currency/convert?amount=10.5&currency=ABC", expectedStatusCode: http.StatusOK, expectedConverted: "10.5"},
		{name: "given missing amount should fail validation", url: "/currency/convert?currency=USD", expectedStatusCode: http.StatusBadRequest},
		{name: "given malformed currency should fail validation", url: "/currency/convert?amount=1&currency=US", expectedStatusCode: http.StatusBadRequest},
	}
	router := newRouter()
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			req := httptest.NewRequestWithContext(context.Background(), http.MethodGet, test.url, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, test.expectedStatusCode, rec.Code)
			body := envelope{}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, test.expectedStatusCode, body.StatusCode)
			if test.expectedStatusCode != http.StatusOK {
				assert.False(t, body.Success)
				return
			}

			conversion := struct {
				Converted decimal.Decimal `json:"converted"`
			}{}
			require.NoError(t, json.Unmarshal(body.Data["conversion"], &conversion))
			assert.True(t, decimal.RequireFromString(test.expectedConverted).Equal(conversion.Converted), "got=%s", conversion.Converted)
		})
	}
}

func TestRates(t *testing.T) {
	req := httptest.NewRequestWithContext(context.Background(), http.MethodGet, "/currency/rates", nil)
	rec := httptest.NewRecorder()
	newRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := envelope{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	rates := struct {
		Base  string                     `json:"base"`
		Rates map[string]decimal.Decimal `json:"rates"`
	}{}
	require.NoError(t, json.Unmarshal(body.Data["rates"], &rates))
	assert.Equal(t, "INR", rates.Base)
	assert.True(t, decimal.NewFromInt(1).Equal(rates.Rates["INR"]))
}
