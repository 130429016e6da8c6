package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	cartResponse "github.com/Alturino/storefront/cart/response"
	"github.com/Alturino/storefront/internal/common"
	inErrors "github.com/Alturino/storefront/internal/errors"
	inHttp "github.com/Alturino/storefront/internal/http"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/middleware"
	inOtel "github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/internal/validate"
	"github.com/Alturino/storefront/quote/internal/otel"
	"github.com/Alturino/storefront/quote/request"
	"github.com/Alturino/storefront/quote/response"
)

// transparent 1x1 gif
var pixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

type QuoteService interface {
	Submit(c context.Context, userID uuid.UUID, contactEmail string, submit request.SubmitQuote) (response.QuoteRequest, error)
	MarkQuoted(c context.Context, id uuid.UUID, price decimal.Decimal) (response.QuoteRequest, error)
	Accept(c context.Context, userID uuid.UUID, id uuid.UUID) (response.QuoteRequest, []cartResponse.CartItem, error)
	Reject(c context.Context, userID uuid.UUID, id uuid.UUID) (response.QuoteRequest, error)
	Find(c context.Context, userID uuid.UUID, id uuid.UUID) (response.QuoteRequest, error)
	List(c context.Context, userID uuid.UUID) ([]response.QuoteRequest, error)
	MarkEmailOpened(c context.Context, id uuid.UUID) error
}

type QuoteController struct {
	service QuoteService
}

func AttachQuoteController(router *mux.Router, service QuoteService) {
	controller := QuoteController{service: service}

	// the tracking pixel is fetched by mail clients without credentials
	router.HandleFunc("/quote-request/{quoteId}/opened.gif", controller.Opened).Methods(http.MethodGet)

	subrouter := router.PathPrefix("/quote-request").Subrouter()
	subrouter.Use(middleware.RequireAuth)
	subrouter.HandleFunc("", controller.Submit).Methods(http.MethodPost)
	subrouter.HandleFunc("", controller.List).Methods(http.MethodGet)
	subrouter.HandleFunc("/{quoteId}", controller.Find).Methods(http.MethodGet)
	subrouter.HandleFunc("/{quoteId}/accept", controller.Accept).Methods(http.MethodPost)
	subrouter.HandleFunc("/{quoteId}/reject", controller.Reject).Methods(http.MethodPost)

	admin := router.PathPrefix("/admin/quote-request").Subrouter()
	admin.Use(middleware.RequireAdmin)
	admin.HandleFunc("/{quoteId}/quote", controller.MarkQuoted).Methods(http.MethodPost)
}

func quoteID(r *http.Request) (uuid.UUID, error) {
	raw := mux.Vars(r)["quoteId"]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, inErrors.Validation("quoteId=%q is not a valid id", raw)
	}
	return id, nil
}

func (ctrl QuoteController) Submit(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "QuoteController Submit")
	defer span.End()

	session, _ := common.SessionFromContext(c)
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "QuoteController Submit").
		Str(log.KeyUserID, session.UserID.String()).
		Str(log.KeyProcess, "decoding request body").
		Logger()

	logger.Info().Msg("decoding request body")
	reqBody := request.SubmitQuote{}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", inErrors.Validation("malformed request body"))
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	logger.Info().Msg("decoded request body")

	logger = logger.With().Str(log.KeyProcess, "validating request body").Logger()
	if err := validate.New().StructCtx(c, reqBody); err != nil {
		err = fmt.Errorf("failed validating request body with error=%w", inErrors.Validation("%s", err.Error()))
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	logger.Info().Msg("validated request body")

	logger = logger.With().Str(log.KeyProcess, "submitting quote request").Logger()
	logger.Info().Msg("submitting quote request")
	quote, err := ctrl.service.Submit(logger.WithContext(c), session.UserID, session.Email, reqBody)
	if err != nil {
		err = fmt.Errorf("failed submitting quote request with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	logger.Info().Str(log.KeyQuoteID, quote.ID.String()).Msg("submitted quote request")

	inHttp.WriteSuccessResponse(c, w, http.StatusCreated, "quote request submitted", map[string]interface{}{
		"quoteId": quote.ID,
	})
}

func (ctrl QuoteController) List(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "QuoteController List")
	defer span.End()

	session, _ := common.SessionFromContext(c)
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "QuoteController List").
		Str(log.KeyUserID, session.UserID.String()).
		Str(log.KeyProcess, "finding quote requests").
		Logger()

	logger.Info().Msg("finding quote requests")
	quotes, err := ctrl.service.List(logger.WithContext(c), session.UserID)
	if err != nil {
		err = fmt.Errorf("failed finding quote requests with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	logger.Info().Msg("found quote requests")

	inHttp.WriteSuccessResponse(c, w, http.StatusOK, "quote requests found", map[string]interface{}{
		"quoteRequests": quotes,
	})
}

func (ctrl QuoteController) Find(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "QuoteController Find")
	defer span.End()

	session, _ := common.SessionFromContext(c)
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "QuoteController Find").
		Str(log.KeyUserID, session.UserID.String()).
		Str(log.KeyProcess, "finding quote request").
		Logger()

	id, err := quoteID(r)
	if err != nil {
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}

	logger = logger.With().Str(log.KeyQuoteID, id.String()).Logger()
	logger.Info().Msg("finding quote request")
	quote, err := ctrl.service.Find(logger.WithContext(c), session.UserID, id)
	if err != nil {
		err = fmt.Errorf("failed finding quote request with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	logger.Info().Msg("found quote request")

	inHttp.WriteSuccessResponse(c, w, http.StatusOK, "quote request found", map[string]interface{}{
		"quoteRequest": quote,
	})
}

func (ctrl QuoteController) Accept(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "QuoteController Accept")
	defer span.End()

	session, _ := common.SessionFromContext(c)
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "QuoteController Accept").
		Str(log.KeyUserID, session.UserID.String()).
		Str(log.KeyProcess, "accepting quote request").
		Logger()

	id, err := quoteID(r)
	if err != nil {
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}

	logger = logger.With().Str(log.KeyQuoteID, id.String()).Logger()
	logger.Info().Msg("accepting quote request")
	quote, items, err := ctrl.service.Accept(logger.WithContext(c), session.UserID, id)
	if err != nil {
		err = fmt.Errorf("failed accepting quote request with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	logger.Info().Msg("accepted quote request")

	inHttp.WriteSuccessResponse(c, w, http.StatusOK, "quote request accepted", map[string]interface{}{
		"quoteRequest": quote,
		"cartItems":    items,
	})
}

func (ctrl QuoteController) Reject(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "QuoteController Reject")
	defer span.End()

	session, _ := common.SessionFromContext(c)
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "QuoteController Reject").
		Str(log.KeyUserID, session.UserID.String()).
		Str(log.KeyProcess, "rejecting quote request").
		Logger()

	id, err := quoteID(r)
	if err != nil {
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}

	logger = logger.With().Str(log.KeyQuoteID, id.String()).Logger()
	logger.Info().Msg("rejecting quote request")
	quote, err := ctrl.service.Reject(logger.WithContext(c), session.UserID, id)
	if err != nil {
		err = fmt.Errorf("failed rejecting quote request with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	logger.Info().Msg("rejected quote request")

	inHttp.WriteSuccessResponse(c, w, http.StatusOK, "quote request rejected", map[string]interface{}{
		"quoteRequest": quote,
	})
}

func (ctrl QuoteController) MarkQuoted(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "QuoteController MarkQuoted")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "QuoteController MarkQuoted").
		Str(log.KeyProcess, "decoding request body").
		Logger()

	id, err := quoteID(r)
	if err != nil {
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	logger = logger.With().Str(log.KeyQuoteID, id.String()).Logger()

	reqBody := request.MarkQuoted{}
	if err = json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", inErrors.Validation("malformed request body"))
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	if err = validate.New().StructCtx(c, reqBody); err != nil {
		err = fmt.Errorf("failed validating request body with error=%w", inErrors.Validation("%s", err.Error()))
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}

	logger = logger.With().Str(log.KeyProcess, "quoting request").Stringer(log.KeyPrice, reqBody.Price).Logger()
	logger.Info().Msg("quoting request")
	quote, err := ctrl.service.MarkQuoted(logger.WithContext(c), id, reqBody.Price)
	if err != nil {
		err = fmt.Errorf("failed quoting request with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	logger.Info().Msg("quoted request")

	inHttp.WriteSuccessResponse(c, w, http.StatusOK, "quote request quoted", map[string]interface{}{
		"quoteRequest": quote,
	})
}

// Opened always answers with the pixel so mail clients render nothing odd.
func (ctrl QuoteController) Opened(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "QuoteController Opened")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "QuoteController Opened").
		Str(log.KeyProcess, "marking quote email opened").
		Logger()

	if id, err := quoteID(r); err != nil {
		logger.Warn().Err(err).Msg(err.Error())
	} else if err = ctrl.service.MarkEmailOpened(logger.WithContext(c), id); err != nil {
		inOtel.RecordError(err, span)
		logger.Warn().Err(err).Str(log.KeyQuoteID, id.String()).Msg(err.Error())
	}

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pixel)
}
