package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Alturino/storefront/internal/common/constants"
	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/infra"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/middleware"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/quote/worker"
)

// RunNotificationWorker retries undelivered quote notifications and exposes
// only health and metrics over http.
func RunNotificationWorker(c context.Context) {
	cfg := config.InitConfig(c, constants.AppNotificationWorker)

	logger := log.InitLogger(cfg.Application.LogPath, cfg.Application.Env).
		With().
		Str(log.KeyAppName, constants.AppNotificationWorker).
		Str(log.KeyTag, "main RunNotificationWorker").
		Logger()
	logger.Info().Any(log.KeyConfig, cfg).Msg("initialized config")

	logger = logger.With().Str(log.KeyProcess, "initializing otel sdk").Logger()
	logger.Info().Msg("initializing otel sdk")
	c = logger.WithContext(c)
	shutdownFuncs, err := otel.InitOtelSdk(c, constants.AppNotificationWorker, cfg.Otel)
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

	logger = logger.With().Str(log.KeyProcess, "starting worker").Logger()
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.NewNotificationWorker(svcs.quotes, cfg.Notification).Run(logger.WithContext(c))
	}()
	logger.Info().Msg("started worker")

	router := mux.NewRouter()
	router.Use(middleware.Logging, middleware.RecoverPanic, middleware.Metrics)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", healthz(pool, rdb)).Methods(http.MethodGet)

	serve(c, cfg.Application, router, shutdownFuncs)

	<-done
	svcs.quotes.Wait()
	logger.Info().Msg("completely shutdown notification worker")
}
