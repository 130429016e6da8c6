package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storefront"

var (
	HttpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Handled http requests by route template, method and status code.",
	}, []string{"route", "method", "code"})

	HttpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Http request latency by route template and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	CartMerges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cart_merges_total",
		Help:      "Anonymous to user cart merges by outcome (merged, noop, failed).",
	}, []string{"outcome"})

	QuoteTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quote_transitions_total",
		Help:      "Quote status transitions by target status and outcome.",
	}, []string{"status", "outcome"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Notification deliveries by outcome.",
	}, []string{"outcome"})

	RateRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "exchange_rate_refreshes_total",
		Help:      "Exchange rate snapshot refreshes by outcome (refreshed, fresh, failed).",
	}, []string{"outcome"})
)
