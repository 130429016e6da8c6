package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal/common"
	inErrors "github.com/Alturino/storefront/internal/errors"
	inHttp "github.com/Alturino/storefront/internal/http"
	"github.com/Alturino/storefront/internal/log"
)

// Session attaches the caller's session when a bearer token is present.
// Requests without one pass through as anonymous; a present but invalid
// token is rejected.
func Session(secretKey string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := zerolog.Ctx(r.Context()).With().Str(log.KeyTag, "middleware Session").Logger()
			c := logger.WithContext(r.Context())

			authorization := r.Header.Get("Authorization")
			if authorization == "" {
				next.ServeHTTP(w, r)
				return
			}

			scheme, token, ok := strings.Cut(authorization, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
				err := fmt.Errorf("malformed authorization header with error=%w", inErrors.ErrTokenInvalid)
				logger.Error().Err(err).Msg(err.Error())
				inHttp.WriteErrorResponse(c, w, err)
				return
			}

			session, err := common.VerifyToken(c, secretKey, token)
			if err != nil {
				logger.Error().Err(err).Msg(err.Error())
				inHttp.WriteErrorResponse(c, w, err)
				return
			}
			logger = logger.With().Str(log.KeyUserID, session.UserID.String()).Logger()

			c = common.AttachSession(logger.WithContext(c), session)
			next.ServeHTTP(w, r.WithContext(c))
		})
	}
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := common.SessionFromContext(r.Context()); !ok {
			logger := zerolog.Ctx(r.Context()).With().Str(log.KeyTag, "middleware RequireAuth").Logger()
			logger.Error().Err(inErrors.ErrEmptyAuth).Msg(inErrors.ErrEmptyAuth.Error())
			inHttp.WriteErrorResponse(r.Context(), w, inErrors.Unauthenticated("authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := common.SessionFromContext(r.Context())
		if !ok {
			inHttp.WriteErrorResponse(r.Context(), w, inErrors.Unauthenticated("authentication required"))
			return
		}
		if !session.IsAdmin() {
			logger := zerolog.Ctx(r.Context()).With().Str(log.KeyTag, "middleware RequireAdmin").Logger()
			logger.Error().Str(log.KeyUserID, session.UserID.String()).Msg("non admin caller rejected")
			inHttp.WriteErrorResponse(r.Context(), w, inErrors.Forbidden("admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
