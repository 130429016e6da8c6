package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	cartResponse "github.com/Alturino/storefront/cart/response"
	cartService "github.com/Alturino/storefront/cart/service"
	currencyService "github.com/Alturino/storefront/currency/service"
	"github.com/Alturino/storefront/internal/cache"
	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/notifier"
	"github.com/Alturino/storefront/internal/repository"
	"github.com/Alturino/storefront/pricing"
	productResponse "github.com/Alturino/storefront/product/response"
	productService "github.com/Alturino/storefront/product/service"
	quoteService "github.com/Alturino/storefront/quote/service"
	shippingService "github.com/Alturino/storefront/shipping/service"
)

const catalogTTL = 10 * time.Minute

type services struct {
	store     *repository.Store
	catalog   productService.CatalogService
	carts     *cartService.CartService
	quotes    *quoteService.QuoteService
	shipping  shippingService.ShippingService
	converter *currencyService.Converter
}

func newServices(c context.Context, cfg *config.Config, pool *pgxpool.Pool, rdb *redis.Client) (*services, error) {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "cmd newServices").
		Str(log.KeyProcess, "initializing pricer").
		Logger()

	logger.Info().Msg("initializing pricer")
	table, err := pricing.DefaultTable().WithOverrides(cfg.Pricing.Overrides)
	if err != nil {
		err = fmt.Errorf("failed applying pricing overrides with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	pricer := pricing.NewPricer(table)
	logger.Info().Msg("initialized pricer")

	logger = logger.With().Str(log.KeyProcess, "initializing services").Logger()
	logger.Info().Msg("initializing services")
	store := repository.NewStore(pool)
	catalog := productService.NewCatalogService(
		store,
		cache.NewJSONCache[productResponse.Product](rdb, cache.KeyProducts, catalogTTL),
		cache.NewJSONCache[[]productResponse.Product](rdb, cache.KeyProducts, catalogTTL),
	)
	carts := cartService.NewCartService(
		store,
		catalog,
		pricer,
		cache.NewJSONCache[cartResponse.Cart](rdb, cache.KeyCarts, cfg.Cache.CartTTL),
		cfg.Application.SecretKey,
	)
	quotes := quoteService.NewQuoteService(store, carts, pricer, notifier.New(cfg.Mail, cfg.Application.Env), quoteService.Options{
		AdminAddress: cfg.Notification.AdminAddress,
		PublicURL:    cfg.Application.PublicURL,
		Timeout:      cfg.Notification.Timeout,
	})
	logger.Info().Msg("initialized services")

	return &services{
		store:     store,
		catalog:   catalog,
		carts:     carts,
		quotes:    quotes,
		shipping:  shippingService.NewShippingService(store),
		converter: newConverter(cfg.Currency, rdb),
	}, nil
}

// newConverter starts from the configured seed rates, marked stale so the
// first refresh replaces them.
func newConverter(cfg config.Currency, rdb *redis.Client) *currencyService.Converter {
	seed := currencyService.NewSnapshotFromFloats(cfg.Canonical, cfg.SeedRates, time.Time{})

	var source currencyService.RateSource = currencyService.NewStaticSource(seed)
	if cfg.SourceURL != "" {
		source = currencyService.NewHttpSource(cfg.SourceURL, cfg.Canonical)
	}
	if cfg.SharedSnapshot {
		source = currencyService.NewRedisSource(rdb, source, cfg.MaxAge)
	}
	return currencyService.NewConverter(seed, source, cfg.FetchTimeout)
}
