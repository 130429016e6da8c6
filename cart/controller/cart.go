package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/cart/internal/otel"
	"github.com/Alturino/storefront/cart/request"
	"github.com/Alturino/storefront/cart/response"
	"github.com/Alturino/storefront/cart/service"
	"github.com/Alturino/storefront/internal/common"
	inErrors "github.com/Alturino/storefront/internal/errors"
	inHttp "github.com/Alturino/storefront/internal/http"
	"github.com/Alturino/storefront/internal/log"
	inOtel "github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/internal/validate"
	"github.com/Alturino/storefront/pricing"
)

const (
	CookieCartToken = "cart_token"
	HeaderCartToken = "X-Cart-Token"
	cartTokenMaxAge = 30 * 24 * time.Hour
)

type CartService interface {
	ResolveOwner(c context.Context, userID *uuid.UUID, anonymousToken string) (service.Owner, string, error)
	AddItem(c context.Context, owner service.Owner, item service.NewItem) (response.Cart, response.CartItem, error)
	UpdateQuantity(c context.Context, owner service.Owner, itemID uuid.UUID, delta int) (response.CartItem, error)
	SetQuantity(c context.Context, owner service.Owner, itemID uuid.UUID, quantity int, version int64) (response.CartItem, error)
	RemoveItem(c context.Context, owner service.Owner, itemID uuid.UUID) error
	GetCart(c context.Context, owner service.Owner) (response.Cart, error)
}

type CartController struct {
	service CartService
}

func AttachCartController(router *mux.Router, service CartService) {
	controller := CartController{service: service}

	subrouter := router.PathPrefix("/cart").Subrouter()
	subrouter.HandleFunc("", controller.AddItem).Methods(http.MethodPost)
	subrouter.HandleFunc("", controller.GetCart).Methods(http.MethodGet)
	subrouter.HandleFunc("/{itemId}", controller.UpdateItem).Methods(http.MethodPatch)
	subrouter.HandleFunc("/{itemId}", controller.RemoveItem).Methods(http.MethodDelete)
}

func anonymousToken(r *http.Request) string {
	if token := r.Header.Get(HeaderCartToken); token != "" {
		return token
	}
	if cookie, err := r.Cookie(CookieCartToken); err == nil {
		return cookie.Value
	}
	return ""
}

// resolveOwner hands a freshly minted anonymous token back to the client in
// both the cookie and the header, and expires the cookie once a logged in
// user has absorbed the anonymous cart.
func (ctrl CartController) resolveOwner(c context.Context, w http.ResponseWriter, r *http.Request) (service.Owner, error) {
	userID := common.UserIdFromContext(c)
	token := anonymousToken(r)

	owner, minted, err := ctrl.service.ResolveOwner(c, userID, token)
	if err != nil {
		return service.Owner{}, err
	}
	switch {
	case minted != "":
		http.SetCookie(w, &http.Cookie{
			Name:     CookieCartToken,
			Value:    minted,
			Path:     "/",
			MaxAge:   int(cartTokenMaxAge.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		w.Header().Set(HeaderCartToken, minted)
	case userID != nil && token != "":
		http.SetCookie(w, &http.Cookie{Name: CookieCartToken, Path: "/", MaxAge: -1})
	}
	return owner, nil
}

func (ctrl CartController) AddItem(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController AddItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController AddItem").
		Str(log.KeyProcess, "decoding request body").
		Logger()

	logger.Info().Msg("decoding request body")
	reqBody := request.AddCartItem{}
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
	item, err := newItem(c, reqBody)
	if err != nil {
		err = fmt.Errorf("failed validating request body with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	logger.Info().Msg("validated request body")

	logger = logger.With().Str(log.KeyProcess, "resolving owner").Logger()
	c = logger.WithContext(c)
	owner, err := ctrl.resolveOwner(c, w, r)
	if err != nil {
		err = fmt.Errorf("failed resolving owner with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}

	logger = logger.With().Str(log.KeyProcess, "adding cart item").Str(log.KeyOwner, owner.String()).Logger()
	logger.Info().Msg("adding cart item")
	cart, added, err := ctrl.service.AddItem(logger.WithContext(c), owner, item)
	if err != nil {
		err = fmt.Errorf("failed adding cart item with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	logger.Info().Str(log.KeyCartItemID, added.ID.String()).Msg("added cart item")

	inHttp.WriteSuccessResponse(c, w, http.StatusCreated, "cart item added", map[string]interface{}{
		"cartItem": added,
		"cart":     cart,
	})
}

func newItem(c context.Context, reqBody request.AddCartItem) (service.NewItem, error) {
	if err := validate.New().StructCtx(c, reqBody); err != nil {
		return service.NewItem{}, inErrors.Validation("%s", err.Error())
	}
	item := service.NewItem{ProductID: reqBody.ProductID, Color: reqBody.Color, Quantity: reqBody.Quantity}
	if reqBody.CustomProduct == nil {
		return item, nil
	}
	if err := validate.New().StructCtx(c, reqBody.CustomProduct); err != nil {
		return service.NewItem{}, inErrors.Validation("%s", err.Error())
	}
	lot := reqBody.CustomProduct.Quantity
	if lot == 0 {
		lot = 1
	}
	spec, err := pricing.ParseSpec(reqBody.CustomProduct.Category, lot, reqBody.CustomProduct.Options)
	if err != nil {
		return service.NewItem{}, err
	}
	item.Custom = &spec
	return item, nil
}

func (ctrl CartController) GetCart(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController GetCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController GetCart").
		Str(log.KeyProcess, "resolving owner").
		Logger()

	c = logger.WithContext(c)
	owner, err := ctrl.resolveOwner(c, w, r)
	if err != nil {
		err = fmt.Errorf("failed resolving owner with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}

	logger = logger.With().Str(log.KeyProcess, "finding cart").Str(log.KeyOwner, owner.String()).Logger()
	logger.Info().Msg("finding cart")
	cart, err := ctrl.service.GetCart(logger.WithContext(c), owner)
	if err != nil {
		err = fmt.Errorf("failed finding cart with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	logger.Info().Int("itemCount", cart.ItemCount).Msg("found cart")

	inHttp.WriteSuccessResponse(c, w, http.StatusOK, "cart found", map[string]interface{}{
		"cart": cart,
	})
}

func itemID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["itemId"])
	if err != nil {
		return uuid.Nil, inErrors.Validation("itemId=%q is not a valid id", mux.Vars(r)["itemId"])
	}
	return id, nil
}

// UpdateItem accepts {"delta": n} for a relative change or
// {"quantity": n, "version": v} for an absolute one.
func (ctrl CartController) UpdateItem(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController UpdateItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController UpdateItem").
		Str(log.KeyProcess, "decoding request body").
		Logger()

	id, err := itemID(r)
	if err != nil {
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	logger = logger.With().Str(log.KeyCartItemID, id.String()).Logger()

	reqBody := request.UpdateCartItem{}
	if err = json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", inErrors.Validation("malformed request body"))
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	switch {
	case (reqBody.Delta == nil) == (reqBody.Quantity == nil):
		err = inErrors.Validation("exactly one of delta and quantity is required")
	case reqBody.Quantity != nil && reqBody.Version == nil:
		err = inErrors.Validation("version is required with quantity")
	}
	if err != nil {
		err = fmt.Errorf("failed validating request body with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}

	logger = logger.With().Str(log.KeyProcess, "resolving owner").Logger()
	c = logger.WithContext(c)
	owner, err := ctrl.resolveOwner(c, w, r)
	if err != nil {
		err = fmt.Errorf("failed resolving owner with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}

	logger = logger.With().Str(log.KeyProcess, "updating cart item").Str(log.KeyOwner, owner.String()).Logger()
	logger.Info().Msg("updating cart item")
	c = logger.WithContext(c)
	var item response.CartItem
	if reqBody.Delta != nil {
		item, err = ctrl.service.UpdateQuantity(c, owner, id, *reqBody.Delta)
	} else {
		item, err = ctrl.service.SetQuantity(c, owner, id, *reqBody.Quantity, *reqBody.Version)
	}
	if err != nil {
		err = fmt.Errorf("failed updating cart item with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	logger.Info().Int(log.KeyQuantity, item.Quantity).Msg("updated cart item")

	inHttp.WriteSuccessResponse(c, w, http.StatusOK, "cart item updated", map[string]interface{}{
		"cartItem": item,
	})
}

func (ctrl CartController) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController RemoveItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController RemoveItem").
		Str(log.KeyProcess, "resolving owner").
		Logger()

	id, err := itemID(r)
	if err != nil {
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	logger = logger.With().Str(log.KeyCartItemID, id.String()).Logger()

	c = logger.WithContext(c)
	owner, err := ctrl.resolveOwner(c, w, r)
	if err != nil {
		err = fmt.Errorf("failed resolving owner with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}

	logger = logger.With().Str(log.KeyProcess, "removing cart item").Str(log.KeyOwner, owner.String()).Logger()
	logger.Info().Msg("removing cart item")
	if err = ctrl.service.RemoveItem(logger.WithContext(c), owner, id); err != nil {
		err = fmt.Errorf("failed removing cart item with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	logger.Info().Msg("removed cart item")

	inHttp.WriteSuccessResponse(c, w, http.StatusOK, "cart item removed", map[string]interface{}{
		"cartItemId": id,
	})
}
