package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/Alturino/storefront/currency/internal/otel"
	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/metrics"
	inOtel "github.com/Alturino/storefront/internal/otel"
)

const canonicalScale = 10

// Converter converts between the canonical currency and display currencies.
// The current snapshot is swapped atomically and never mutated, so readers
// always see one complete table.
type Converter struct {
	current      atomic.Pointer[Snapshot]
	source       RateSource
	group        singleflight.Group
	fetchTimeout time.Duration
	now          func() time.Time
}

func NewConverter(initial *Snapshot, source RateSource, fetchTimeout time.Duration) *Converter {
	c := &Converter{source: source, fetchTimeout: fetchTimeout, now: time.Now}
	c.current.Store(initial)
	return c
}

func (c *Converter) Snapshot() *Snapshot {
	return c.current.Load()
}

func (c *Converter) Canonical() string {
	return c.current.Load().Base
}

func (c *Converter) ToDisplay(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Mul(c.current.Load().Rate(currency))
}

func (c *Converter) ToCanonical(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.DivRound(c.current.Load().Rate(currency), canonicalScale)
}

// RefreshIfStale replaces the snapshot when it is older than maxAge.
// Concurrent callers share one upstream fetch. On failure the stale snapshot
// stays authoritative and an external service error is returned for logging.
func (c *Converter) RefreshIfStale(ctx context.Context, maxAge time.Duration) (bool, error) {
	if !c.current.Load().IsStale(c.now(), maxAge) {
		metrics.RateRefreshes.WithLabelValues("fresh").Inc()
		return false, nil
	}

	v, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		if !c.current.Load().IsStale(c.now(), maxAge) {
			return false, nil
		}
		return true, c.refresh(ctx)
	})
	if err != nil {
		metrics.RateRefreshes.WithLabelValues("failed").Inc()
		return false, err
	}
	refreshed := v.(bool)
	if refreshed {
		metrics.RateRefreshes.WithLabelValues("refreshed").Inc()
	}
	return refreshed, nil
}

func (c *Converter) refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
	defer cancel()

	ctx, span := otel.Tracer.Start(ctx, "Converter refresh")
	defer span.End()

	logger := zerolog.Ctx(ctx).
		With().
		Str(log.KeyTag, "Converter refresh").
		Str(log.KeyProcess, "refreshing exchange rates").
		Logger()

	logger.Info().Msg("refreshing exchange rates")
	ctx = logger.WithContext(ctx)
	snapshot, err := c.source.Fetch(ctx)
	if err != nil {
		err = fmt.Errorf(
			"failed refreshing exchange rates with error=%w",
			inErrors.ExternalService(err, "exchange rates unavailable"),
		)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	if snapshot.Base != c.Canonical() {
		err = fmt.Errorf(
			"failed refreshing exchange rates with error=%w",
			inErrors.ExternalService(nil, "exchange rates base=%s is not canonical=%s", snapshot.Base, c.Canonical()),
		)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}

	c.current.Store(snapshot)
	logger.Info().
		Time(log.KeyRatesFetchedAt, snapshot.FetchedAt).
		Int(log.KeyRatesCount, len(snapshot.Rates)).
		Msg("refreshed exchange rates")
	return nil
}

// Run refreshes in the background until c is done.
func (c *Converter) Run(ctx context.Context, every time.Duration, maxAge time.Duration) {
	logger := zerolog.Ctx(ctx).
		With().
		Str(log.KeyTag, "Converter Run").
		Str(log.KeyProcess, "refreshing exchange rates periodically").
		Logger()

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if _, err := c.RefreshIfStale(ctx, maxAge); err != nil {
			logger.Error().Err(err).Msg("keeping stale exchange rates")
		}
		select {
		case <-ctx.Done():
			logger.Info().Msg("stopped refreshing exchange rates")
			return
		case <-ticker.C:
		}
	}
}
