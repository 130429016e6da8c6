package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/log"
	inOtel "github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/shipping/internal/otel"
	"github.com/Alturino/storefront/shipping/response"
)

// RateStore is the read-only destination table. FindShippingRate returns a
// not found error for countries that are not served.
type RateStore interface {
	FindShippingRate(c context.Context, countryCode string) (response.ShippingRate, error)
	FindShippingRates(c context.Context) ([]response.ShippingRate, error)
}

type ShippingService struct {
	store RateStore
}

func NewShippingService(store RateStore) ShippingService {
	return ShippingService{store: store}
}

// Fee is the pure part of the calculation: free iff a threshold exists and
// subtotal reaches it.
func Fee(rate response.ShippingRate, subtotal decimal.Decimal) (decimal.Decimal, bool) {
	if rate.FreeShippingThreshold != nil && subtotal.GreaterThanOrEqual(*rate.FreeShippingThreshold) {
		return decimal.Zero, true
	}
	return rate.BaseFee, false
}

func (svc ShippingService) Calculate(
	c context.Context,
	countryCode string,
	subtotal decimal.Decimal,
) (response.Shipping, error) {
	c, span := otel.Tracer.Start(c, "ShippingService Calculate")
	defer span.End()

	code := strings.ToUpper(strings.TrimSpace(countryCode))
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "ShippingService Calculate").
		Str(log.KeyCountryCode, code).
		Stringer(log.KeySubtotal, subtotal).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "validating subtotal").Logger()
	if subtotal.IsNegative() {
		err := fmt.Errorf(
			"failed validating subtotal with error=%w",
			inErrors.Validation("order total=%s must not be negative", subtotal.String()),
		)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Shipping{}, err
	}

	logger = logger.With().Str(log.KeyProcess, "finding shipping rate").Logger()
	logger.Info().Msg("finding shipping rate")
	c = logger.WithContext(c)
	rate, err := svc.store.FindShippingRate(c, code)
	if err != nil {
		err = fmt.Errorf("failed finding shipping rate for countryCode=%s with error=%w", code, err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Shipping{}, err
	}
	logger.Info().Msg("found shipping rate")

	fee, free := Fee(rate, subtotal)
	result := response.Shipping{
		CountryCode:           rate.CountryCode,
		CountryName:           rate.CountryName,
		ShippingCost:          fee,
		IsFreeShipping:        free,
		FreeShippingThreshold: rate.FreeShippingThreshold,
	}
	logger.Info().Any(log.KeyShippingResult, result).Msg("calculated shipping")

	return result, nil
}

func (svc ShippingService) Countries(c context.Context) ([]response.Country, error) {
	c, span := otel.Tracer.Start(c, "ShippingService Countries")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "ShippingService Countries").
		Str(log.KeyProcess, "finding shipping rates").
		Logger()

	logger.Info().Msg("finding shipping rates")
	rates, err := svc.store.FindShippingRates(logger.WithContext(c))
	if err != nil {
		err = fmt.Errorf("failed finding shipping rates with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	logger.Info().Int("count", len(rates)).Msg("found shipping rates")

	countries := make([]response.Country, 0, len(rates))
	for _, rate := range rates {
		countries = append(countries, response.Country{CountryCode: rate.CountryCode, CountryName: rate.CountryName})
	}
	return countries, nil
}
