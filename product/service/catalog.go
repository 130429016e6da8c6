package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal/cache"
	"github.com/Alturino/storefront/internal/log"
	inOtel "github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/product/internal/otel"
	"github.com/Alturino/storefront/product/response"
)

const keyAllProducts = "all"

type ProductStore interface {
	FindProductById(c context.Context, id uuid.UUID) (response.Product, error)
	FindProducts(c context.Context) ([]response.Product, error)
}

// CatalogService serves the read-only product catalog. Redis sits in front of
// the store; a cache failure degrades to a store read and is never returned.
type CatalogService struct {
	store       ProductStore
	products    *cache.JSONCache[response.Product]
	allProducts *cache.JSONCache[[]response.Product]
}

func NewCatalogService(
	store ProductStore,
	products *cache.JSONCache[response.Product],
	allProducts *cache.JSONCache[[]response.Product],
) CatalogService {
	return CatalogService{store: store, products: products, allProducts: allProducts}
}

func (svc CatalogService) FindProductById(c context.Context, id uuid.UUID) (response.Product, error) {
	c, span := otel.Tracer.Start(c, "CatalogService FindProductById")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CatalogService FindProductById").
		Str(log.KeyProductID, id.String()).
		Str(log.KeyCacheKey, svc.products.Key(id.String())).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding product in cache").Logger()
	logger.Trace().Msg("finding product in cache")
	product, err := svc.products.Get(c, id.String())
	if err == nil {
		logger.Info().Msg("found product in cache")
		return product, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Warn().Err(err).Msg(err.Error())
	}

	logger = logger.With().Str(log.KeyProcess, "finding product in database").Logger()
	logger.Trace().Msg("finding product in database")
	product, err = svc.store.FindProductById(logger.WithContext(c), id)
	if err != nil {
		err = fmt.Errorf("failed finding product in database with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Product{}, err
	}
	logger.Info().Msg("found product in database")

	if err = svc.products.Set(c, id.String(), product); err != nil {
		logger.Warn().Err(err).Msg(err.Error())
	}
	return product, nil
}

func (svc CatalogService) FindProducts(c context.Context) ([]response.Product, error) {
	c, span := otel.Tracer.Start(c, "CatalogService FindProducts")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CatalogService FindProducts").
		Str(log.KeyCacheKey, svc.allProducts.Key(keyAllProducts)).
		Str(log.KeyProcess, "finding products in cache").
		Logger()

	logger.Trace().Msg("finding products in cache")
	products, err := svc.allProducts.Get(c, keyAllProducts)
	if err == nil {
		logger.Info().Int("count", len(products)).Msg("found products in cache")
		return products, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Warn().Err(err).Msg(err.Error())
	}

	logger = logger.With().Str(log.KeyProcess, "finding products in database").Logger()
	logger.Trace().Msg("finding products in database")
	products, err = svc.store.FindProducts(logger.WithContext(c))
	if err != nil {
		err = fmt.Errorf("failed finding products in database with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	logger.Info().Int("count", len(products)).Msg("found products in database")

	if err = svc.allProducts.Set(c, keyAllProducts, products); err != nil {
		logger.Warn().Err(err).Msg(err.Error())
	}
	return products, nil
}
