package controller

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	inErrors "github.com/Alturino/storefront/internal/errors"
	inHttp "github.com/Alturino/storefront/internal/http"
	"github.com/Alturino/storefront/internal/log"
	inOtel "github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/internal/validate"
	"github.com/Alturino/storefront/product/internal/otel"
	"github.com/Alturino/storefront/product/request"
	"github.com/Alturino/storefront/product/response"
)

type CatalogService interface {
	FindProductById(c context.Context, id uuid.UUID) (response.Product, error)
	FindProducts(c context.Context) ([]response.Product, error)
}

type ProductController struct {
	service CatalogService
}

func AttachProductController(router *mux.Router, service CatalogService) {
	controller := ProductController{service: service}

	subrouter := router.PathPrefix("/products").Subrouter()
	subrouter.HandleFunc("", controller.FindProducts).Methods(http.MethodGet)
	subrouter.HandleFunc("/{productId}", controller.FindProductById).Methods(http.MethodGet)
}

func (ctrl ProductController) FindProducts(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "ProductController FindProducts")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "ProductController FindProducts").
		Str(log.KeyProcess, "finding products").
		Logger()

	logger.Info().Msg("finding products")
	products, err := ctrl.service.FindProducts(logger.WithContext(c))
	if err != nil {
		err = fmt.Errorf("failed finding products with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	logger.Info().Msg("found products")

	inHttp.WriteSuccessResponse(c, w, http.StatusOK, "products found", map[string]interface{}{
		"products": products,
	})
}

func (ctrl ProductController) FindProductById(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "ProductController FindProductById")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "ProductController FindProductById").
		Str(log.KeyProcess, "validating path values").
		Logger()

	req := request.FindProduct{ProductID: mux.Vars(r)["productId"]}
	logger = logger.With().Str(log.KeyProductID, req.ProductID).Logger()
	if err := validate.New().StructCtx(c, req); err != nil {
		err = fmt.Errorf("failed validating path values with error=%w", inErrors.Validation("%s", err.Error()))
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	productID := uuid.MustParse(req.ProductID)
	logger.Info().Msg("validated path values")

	logger = logger.With().Str(log.KeyProcess, "finding product").Logger()
	logger.Info().Msg("finding product")
	product, err := ctrl.service.FindProductById(logger.WithContext(c), productID)
	if err != nil {
		err = fmt.Errorf("failed finding product with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteErrorResponse(c, w, err)
		return
	}
	logger.Info().Msg("found product")

	inHttp.WriteSuccessResponse(c, w, http.StatusOK, "product found", map[string]interface{}{
		"product": product,
	})
}
