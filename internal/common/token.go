package common

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal/common/constants"
	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/otel"
)

type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Session is what the session provider hands to the core: who is calling.
type Session struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

func (s Session) IsAdmin() bool {
	return s.Role == constants.RoleAdmin
}

func VerifyToken(c context.Context, secretKey string, token string) (Session, error) {
	c, span := otel.Tracer.Start(c, "VerifyToken")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "VerifyToken").
		Str(log.KeyProcess, "parsing claims").
		Logger()

	logger.Trace().Msg("parsing claims")
	claims := &Claims{}
	jwtToken, err := jwt.ParseWithClaims(token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			return []byte(secretKey), nil
		},
		jwt.WithAudience(constants.AudienceUser),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithIssuer(constants.IssuerUserService),
	)
	if err != nil {
		err = fmt.Errorf("failed parsing claims with error=%w", inErrors.ErrTokenInvalid)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Session{}, err
	}
	if !jwtToken.Valid {
		err = fmt.Errorf("failed validating token with error=%w", inErrors.ErrTokenInvalid)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Session{}, err
	}
	logger.Trace().Msg("parsed claims")

	logger = logger.With().Str(log.KeyProcess, "parsing subject").Logger()
	if claims.Subject == "" {
		err = fmt.Errorf("failed getting subject with error=%w", inErrors.ErrEmptySubject)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Session{}, err
	}
	userId, err := uuid.Parse(claims.Subject)
	if err != nil {
		err = fmt.Errorf("failed parsing subject=%s with error=%w", claims.Subject, inErrors.ErrTokenInvalid)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Session{}, err
	}
	logger.Info().Str(log.KeyUserID, userId.String()).Msg("verified token")

	return Session{UserID: userId, Email: claims.Email, Role: claims.Role}, nil
}

type sessionKey struct{}

func AttachSession(c context.Context, s Session) context.Context {
	return context.WithValue(c, sessionKey{}, s)
}

func SessionFromContext(c context.Context) (Session, bool) {
	s, ok := c.Value(sessionKey{}).(Session)
	return s, ok
}

// UserIdFromContext returns the authenticated user id or nil for anonymous
// callers.
func UserIdFromContext(c context.Context) *uuid.UUID {
	s, ok := SessionFromContext(c)
	if !ok {
		return nil
	}
	id := s.UserID
	return &id
}
