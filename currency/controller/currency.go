package controller

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Alturino/storefront/currency/internal/otel"
	"github.com/Alturino/storefront/currency/request"
	"github.com/Alturino/storefront/currency/response"
	"github.com/Alturino/storefront/currency/service"
	inErrors "github.com/Alturino/storefront/internal/errors"
	inHttp "github.com/Alturino/storefront/internal/http"
	"github.com/Alturino/storefront/internal/log"
	inOtel "github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/internal/validate"
)

type CurrencyController struct {
	converter *service.Converter
}

func AttachCurrencyController(router *mux.Router, converter *service.Converter) {
	controller := CurrencyController{converter: converter}

	subrouter := router.PathPrefix("/currency").Subrouter()
	subrouter.HandleFunc("/rates", controller.Rates).Methods(http.MethodGet)
	subrouter.HandleFunc("/convert", controller.Convert).Methods(http.MethodGet)
}

func (ctrl CurrencyController) Rates(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CurrencyController Rates")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CurrencyController Rates").
		Str(log.KeyProcess, "reading exchange rates").
		Logger()

	snapshot := ctrl.converter.Snapshot()
	logger.Info().
		Time(log.KeyRatesFetchedAt, snapshot.FetchedAt).
		Int(log.KeyRatesCount, len(snapshot.Rates)).
		Msg("read exchange rates")

	inHttp.WriteSuccessResponse(c, w, http.StatusOK, "exchange rates found", map[string]interface{}{
		"rates": response.Rates{Base: snapshot.Base, FetchedAt: snapshot.FetchedAt, Rates: snapshot.Rates},
	})
}

// Convert answers GET /currency/convert?amount=1000&currency=USD where amount
// is canonical.
func (ctrl CurrencyController) Convert(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CurrencyController Convert")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CurrencyController Convert").
		Str(log.KeyProcess, "validating query").
		Logger()

	logger.Info().Msg("validating query")
	query := r.URL.Query()
	req := request.Convert{Amount: query.Get("amount"), Currency: query.Get("currency")}
	if err := validate.New().StructCtx(c, req); err != nil {
		err = fmt.Errorf("failed validating query with error=%w", inErrors.Validation("%s", err.Error()))
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		err = fmt.Errorf("failed parsing amount with error=%w", inErrors.Validation("amount=%q is not a number", req.Amount))
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	code := strings.ToUpper(req.Currency)
	logger = logger.With().Str(log.KeyCurrency, code).Stringer(log.KeyAmount, amount).Logger()
	logger.Info().Msg("validated query")

	logger = logger.With().Str(log.KeyProcess, "converting amount").Logger()
	snapshot := ctrl.converter.Snapshot()
	converted := ctrl.converter.ToDisplay(amount, code)
	logger.Info().Stringer("converted", converted).Msg("converted amount")

	inHttp.WriteSuccessResponse(c, w, http.StatusOK, "converted amount", map[string]interface{}{
		"conversion": response.Conversion{
			Canonical:      amount,
			CanonicalCode:  snapshot.Base,
			Converted:      converted.Round(2),
			Currency:       code,
			Formatted:      service.Format(converted, code),
			RatesFetchedAt: snapshot.FetchedAt,
		},
	})
}
