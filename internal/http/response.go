package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/otel"
)

func WriteJsonResponse(
	c context.Context,
	w http.ResponseWriter,
	header map[string]string,
	body map[string]interface{},
) {
	c, span := otel.Tracer.Start(c, "WriteJsonResponse")
	defer span.End()

	logger := zerolog.Ctx(c).With().Str(log.KeyTag, "WriteJsonResponse").Logger()

	w.Header().Set(KeyHeaderContentType, ValueHeaderApplicationJson)
	for k, v := range header {
		w.Header().Add(k, v)
	}

	if v, ok := body["statusCode"]; ok {
		w.WriteHeader(v.(int))
	}

	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return
	}
}

// WriteErrorResponse answers with the status and caller-safe message of err.
func WriteErrorResponse(c context.Context, w http.ResponseWriter, err error) {
	statusCode := inErrors.StatusCode(err)
	message := inErrors.PublicMessage(err)
	WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "failed",
		"success":    false,
		"statusCode": statusCode,
		"message":    message,
		"error":      message,
	})
}

func WriteSuccessResponse(
	c context.Context,
	w http.ResponseWriter,
	statusCode int,
	message string,
	data map[string]interface{},
) {
	WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"success":    true,
		"statusCode": statusCode,
		"message":    message,
		"data":       data,
	})
}
