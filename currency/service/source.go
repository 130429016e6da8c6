package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Alturino/storefront/currency/internal/otel"
	"github.com/Alturino/storefront/internal/log"
	inOtel "github.com/Alturino/storefront/internal/otel"
)

// RateSource produces a complete snapshot relative to the canonical currency.
type RateSource interface {
	Fetch(c context.Context) (*Snapshot, error)
}

type StaticSource struct {
	snapshot *Snapshot
}

func NewStaticSource(snapshot *Snapshot) *StaticSource {
	return &StaticSource{snapshot: snapshot}
}

func (s *StaticSource) Fetch(context.Context) (*Snapshot, error) {
	return NewSnapshot(s.snapshot.Base, s.snapshot.Rates, time.Now()), nil
}

// HttpSource reads an open exchange rate document:
// {"base_code":"INR","rates":{"USD":0.012}}. The snapshot age counts from
// the moment it was fetched, not from the upstream publication time.
type HttpSource struct {
	client *http.Client
	url    string
	base   string
}

func NewHttpSource(url string, base string) *HttpSource {
	return &HttpSource{
		client: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		url:    url,
		base:   strings.ToUpper(base),
	}
}

type ratesDocument struct {
	BaseCode string                     `json:"base_code"`
	Rates    map[string]decimal.Decimal `json:"rates"`
}

func (s *HttpSource) Fetch(c context.Context) (*Snapshot, error) {
	c, span := otel.Tracer.Start(c, "HttpSource Fetch")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "HttpSource Fetch").
		Str(log.KeyProcess, "fetching exchange rates").
		Logger()

	logger.Info().Msgf("fetching exchange rates from url=%s", s.url)
	req, err := http.NewRequestWithContext(c, http.MethodGet, s.url, nil)
	if err != nil {
		err = fmt.Errorf("failed creating rates request with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		err = fmt.Errorf("failed fetching rates with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("failed fetching rates with statusCode=%d", resp.StatusCode)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}

	doc := ratesDocument{}
	if err = json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		err = fmt.Errorf("failed decoding rates with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	if !strings.EqualFold(doc.BaseCode, s.base) {
		err = fmt.Errorf("rates base=%s does not match canonical=%s", doc.BaseCode, s.base)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}

	logger.Info().Int(log.KeyRatesCount, len(doc.Rates)).Msg("fetched exchange rates")
	return NewSnapshot(s.base, doc.Rates, time.Now()), nil
}

const KeyRatesSnapshot = "currency:snapshot"

// RedisSource shares the last fetched snapshot between storefront
// processes so only one of them has to reach the upstream per maxAge.
type RedisSource struct {
	client   *redis.Client
	upstream RateSource
	maxAge   time.Duration
}

func NewRedisSource(client *redis.Client, upstream RateSource, maxAge time.Duration) *RedisSource {
	return &RedisSource{client: client, upstream: upstream, maxAge: maxAge}
}

func (s *RedisSource) Fetch(c context.Context) (*Snapshot, error) {
	c, span := otel.Tracer.Start(c, "RedisSource Fetch")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "RedisSource Fetch").
		Str(log.KeyCacheKey, KeyRatesSnapshot).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "reading shared snapshot").Logger()
	logger.Info().Msg("reading shared snapshot")
	data, err := s.client.Get(c, KeyRatesSnapshot).Bytes()
	switch {
	case err == nil:
		shared := Snapshot{}
		if err := json.Unmarshal(data, &shared); err != nil {
			logger.Error().Err(err).Msgf("failed decoding shared snapshot with error=%s", err.Error())
			break
		}
		snapshot := NewSnapshot(shared.Base, shared.Rates, shared.FetchedAt)
		if !snapshot.IsStale(time.Now(), s.maxAge) {
			logger.Info().Time(log.KeyRatesFetchedAt, snapshot.FetchedAt).Msg("read shared snapshot")
			return snapshot, nil
		}
		logger.Info().Msg("shared snapshot is stale")
	case errors.Is(err, redis.Nil):
		logger.Info().Msg("shared snapshot missing")
	default:
		logger.Error().Err(err).Msgf("failed reading shared snapshot with error=%s", err.Error())
	}

	logger = logger.With().Str(log.KeyProcess, "fetching upstream snapshot").Logger()
	snapshot, err := s.upstream.Fetch(c)
	if err != nil {
		err = fmt.Errorf("failed fetching upstream snapshot with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}

	logger = logger.With().Str(log.KeyProcess, "writing shared snapshot").Logger()
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		err = fmt.Errorf("failed encoding snapshot with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return snapshot, nil
	}
	if err = s.client.Set(c, KeyRatesSnapshot, encoded, s.maxAge).Err(); err != nil {
		err = fmt.Errorf("failed writing shared snapshot with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return snapshot, nil
	}
	logger.Info().Msg("wrote shared snapshot")

	return snapshot, nil
}
