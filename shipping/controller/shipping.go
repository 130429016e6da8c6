package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	inErrors "github.com/Alturino/storefront/internal/errors"
	inHttp "github.com/Alturino/storefront/internal/http"
	"github.com/Alturino/storefront/internal/log"
	inOtel "github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/internal/validate"
	"github.com/Alturino/storefront/shipping/internal/otel"
	"github.com/Alturino/storefront/shipping/request"
	"github.com/Alturino/storefront/shipping/response"
)

type ShippingService interface {
	Calculate(c context.Context, countryCode string, subtotal decimal.Decimal) (response.Shipping, error)
	Countries(c context.Context) ([]response.Country, error)
}

type ShippingController struct {
	service ShippingService
}

func AttachShippingController(router *mux.Router, service ShippingService) {
	controller := ShippingController{service: service}

	subrouter := router.PathPrefix("/shipping").Subrouter()
	subrouter.HandleFunc("/calculate", controller.Calculate).Methods(http.MethodPost)
	subrouter.HandleFunc("/countries", controller.Countries).Methods(http.MethodGet)
}

func (ctrl ShippingController) Calculate(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "ShippingController Calculate")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "ShippingController Calculate").
		Str(log.KeyProcess, "decoding request body").
		Logger()

	logger.Info().Msg("decoding request body")
	reqBody := request.Calculate{}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", inErrors.Validation("malformed request body"))
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	logger.Info().Msg("decoded request body")

	logger = logger.With().Str(log.KeyProcess, "validating request body").Logger()
	logger.Info().Msg("validating request body")
	if err := validate.New().StructCtx(c, reqBody); err != nil {
		err = fmt.Errorf("failed validating request body with error=%w", inErrors.Validation("%s", err.Error()))
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	logger.Info().Msg("validated request body")

	logger = logger.With().
		Str(log.KeyProcess, "calculating shipping").
		Str(log.KeyCountryCode, reqBody.CountryCode).
		Logger()
	logger.Info().Msg("calculating shipping")
	c = logger.WithContext(c)
	result, err := ctrl.service.Calculate(c, reqBody.CountryCode, reqBody.OrderTotal)
	if err != nil {
		err = fmt.Errorf("failed calculating shipping with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	logger.Info().Msg("calculated shipping")

	inHttp.WriteSuccessResponse(c, w, http.StatusOK, "shipping calculated", map[string]interface{}{
		"shipping": result,
	})
}

func (ctrl ShippingController) Countries(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "ShippingController Countries")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "ShippingController Countries").
		Str(log.KeyProcess, "finding countries").
		Logger()

	logger.Info().Msg("finding countries")
	countries, err := ctrl.service.Countries(logger.WithContext(c))
	if err != nil {
		err = fmt.Errorf("failed finding countries with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	logger.Info().Msg("found countries")

	inHttp.WriteSuccessResponse(c, w, http.StatusOK, "countries found", map[string]interface{}{
		"countries": countries,
	})
}
