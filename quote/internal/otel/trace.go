package otel

import (
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/Alturino/storefront/internal/common/constants"
)

var Tracer = otel.Tracer(
	constants.AppQuoteService,
	trace.WithInstrumentationAttributes(semconv.ServiceNameKey.String(constants.AppQuoteService)),
)
