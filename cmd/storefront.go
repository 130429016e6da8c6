package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	cartController "github.com/Alturino/storefront/cart/controller"
	currencyController "github.com/Alturino/storefront/currency/controller"
	"github.com/Alturino/storefront/internal/common/constants"
	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/infra"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/middleware"
	"github.com/Alturino/storefront/internal/otel"
	productController "github.com/Alturino/storefront/product/controller"
	quoteController "github.com/Alturino/storefront/quote/controller"
	shippingController "github.com/Alturino/storefront/shipping/controller"
)

func RunStorefront(c context.Context) {
	cfg := config.InitConfig(c, constants.AppStorefront)

	logger := log.InitLogger(cfg.Application.LogPath, cfg.Application.Env).
		With().
		Str(log.KeyAppName, constants.AppStorefront).
		Str(log.KeyTag, "main RunStorefront").
		Logger()
	logger.Info().Any(log.KeyConfig, cfg).Msg("initialized config")

	// amounts go out as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	logger = logger.With().Str(log.KeyProcess, "initializing otel sdk").Logger()
	logger.Info().Msg("initializing otel sdk")
	c = logger.WithContext(c)
	shutdownFuncs, err := otel.InitOtelSdk(c, constants.AppStorefront, cfg.Otel)
	if err != nil {
		err = fmt.Errorf("failed initializing otel sdk with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return
	}
	logger.Info().Msg("initialized otel sdk")

	logger = logger.With().Str(log.KeyProcess, "initializing database and cache").Logger()
	logger.Info().Msg("initializing database and cache")
	c = logger.WithContext(c)
	pool := infra.NewDatabaseClient(c, cfg.Database)
	defer pool.Close()
	rdb := infra.NewCacheClient(c, cfg.Cache)
	defer rdb.Close()
	logger.Info().Msg("initialized database and cache")

	svcs, err := newServices(c, cfg, pool, rdb)
	if err != nil {
		return
	}

	logger = logger.With().Str(log.KeyProcess, "starting exchange rate refresher").Logger()
	go svcs.converter.Run(logger.WithContext(c), cfg.Currency.RefreshEvery, cfg.Currency.MaxAge)
	logger.Info().Msg("started exchange rate refresher")

	logger = logger.With().Str(log.KeyProcess, "initializing router").Logger()
	logger.Info().Msg("initializing router")
	router := mux.NewRouter()
	router.Use(
		otelmux.Middleware(constants.AppStorefront),
		middleware.Logging,
		middleware.RecoverPanic,
		middleware.Metrics,
	)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", healthz(pool, rdb)).Methods(http.MethodGet)

	api := router.NewRoute().Subrouter()
	api.Use(middleware.Session(cfg.Application.SecretKey))
	productController.AttachProductController(api, svcs.catalog)
	cartController.AttachCartController(api, svcs.carts)
	shippingController.AttachShippingController(api, svcs.shipping)
	currencyController.AttachCurrencyController(api, svcs.converter)
	quoteController.AttachQuoteController(api, svcs.quotes)
	logger.Info().Msg("initialized router")

	serve(c, cfg.Application, router, shutdownFuncs)

	logger = logger.With().Str(log.KeyProcess, "waiting for notifications").Logger()
	logger.Info().Msg("waiting for in flight notifications")
	svcs.quotes.Wait()
	logger.Info().Msg("completely shutdown storefront")
}
