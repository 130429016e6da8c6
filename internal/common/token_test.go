package common

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alturino/storefront/internal/common/constants"
	inErrors "github.com/Alturino/storefront/internal/errors"
)

const secret = "test-secret"

func sign(t *testing.T, claims Claims, key string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func validClaims(userId uuid.UUID) Claims {
	now := time.Now()
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userId.String(),
			Audience:  jwt.ClaimStrings{constants.AudienceUser},
			Issuer:    constants.IssuerUserService,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Email: "buyer@example.com",
		Role:  constants.RoleAdmin,
	}
}

func TestVerifyToken(t *testing.T) {
	userId := uuid.New()

	session, err := VerifyToken(context.Background(), secret, sign(t, validClaims(userId), secret))
	require.NoError(t, err)
	assert.Equal(t, userId, session.UserID)
	assert.Equal(t, "buyer@example.com", session.Email)
	assert.True(t, session.IsAdmin())

	_, err = VerifyToken(context.Background(), secret, sign(t, validClaims(userId), "other"))
	assert.ErrorIs(t, err, inErrors.ErrTokenInvalid)

	expired := validClaims(userId)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err = VerifyToken(context.Background(), secret, sign(t, expired, secret))
	assert.ErrorIs(t, err, inErrors.ErrTokenInvalid)
}

func TestUserIdFromContext(t *testing.T) {
	assert.Nil(t, UserIdFromContext(context.Background()))

	userId := uuid.New()
	c := AttachSession(context.Background(), Session{UserID: userId})
	got := UserIdFromContext(c)
	require.NotNil(t, got)
	assert.Equal(t, userId, *got)
}
