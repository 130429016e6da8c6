package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal/config"
	inErrors "github.com/Alturino/storefront/internal/errors"
	inHttp "github.com/Alturino/storefront/internal/http"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/otel"
)

const shutdownTimeout = 15 * time.Second

// serve blocks until c is cancelled, then drains the server and flushes otel.
func serve(c context.Context, appConfig config.Application, handler http.Handler, shutdownFuncs []otel.ShutdownFunc) {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "cmd serve").
		Str(log.KeyProcess, "initializing server").
		Logger()

	logger.Info().Msg("initializing server")
	server := http.Server{
		Addr:         fmt.Sprintf("%s:%d", appConfig.Host, appConfig.Port),
		BaseContext:  func(net.Listener) context.Context { return c },
		Handler:      handler,
		ReadTimeout:  45 * time.Second,
		WriteTimeout: 45 * time.Second,
	}
	logger.Info().Msg("initialized server")

	go func() {
		logger := logger.With().Str(log.KeyProcess, "start server").Logger()
		logger.Info().Msgf("start listening request at %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			err = fmt.Errorf("error=%w occured while server is running", err)
			logger.Fatal().Err(err).Msg(err.Error())
		}
	}()

	<-c.Done()
	logger = logger.With().Str(log.KeyProcess, "shutdown server").Logger()
	logger.Info().Msg("received interuption signal shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(c), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		err = fmt.Errorf("failed shutting down http server with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
	}
	logger.Info().Msg("shutdown http server")

	logger = logger.With().Str(log.KeyProcess, "shutdown otel").Logger()
	logger.Info().Msg("shutting down otel")
	if err := otel.ShutdownOtel(shutdownCtx, shutdownFuncs); err != nil {
		err = fmt.Errorf("failed shutting down otel with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return
	}
	logger.Info().Msg("shutdown otel")
}

func healthz(pool *pgxpool.Pool, rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		logger := zerolog.Ctx(c).With().Str(log.KeyTag, "cmd healthz").Logger()
		if err := pool.Ping(c); err != nil {
			err = inErrors.ExternalService(err, "database unavailable")
			logger.Error().Err(err).Msg(err.Error())
			inHttp.WriteErrorResponse(c, w, err)
			return
		}
		if err := rdb.Ping(c).Err(); err != nil {
			err = inErrors.ExternalService(err, "cache unavailable")
			logger.Error().Err(err).Msg(err.Error())
			inHttp.WriteErrorResponse(c, w, err)
			return
		}
		inHttp.WriteSuccessResponse(c, w, http.StatusOK, "healthy", map[string]interface{}{})
	}
}
