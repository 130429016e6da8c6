package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alturino/storefront/internal/config"
	inErrors "github.com/Alturino/storefront/internal/errors"
)

var mailConfig = config.Mail{SendgridAPIKey: "sg-key", FromAddress: "shop@example.com", FromName: "Storefront"}

type sendgridPayload struct {
	From struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"from"`
	Subject          string `json:"subject"`
	Personalizations []struct {
		To []struct {
			Email string `json:"email"`
		} `json:"to"`
	} `json:"personalizations"`
	Content []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"content"`
}

func TestSendgridSend(t *testing.T) {
	var (
		authorization string
		payload       sendgridPayload
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, sendEndpoint, r.URL.Path)
		authorization = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(server.Close)

	err := NewSendgrid(mailConfig, server.URL).Send(context.Background(), "admin@example.com", "New quote", "quote body")
	require.NoError(t, err)

	assert.Equal(t, "Bearer sg-key", authorization)
	assert.Equal(t, "shop@example.com", payload.From.Email)
	assert.Equal(t, "Storefront", payload.From.Name)
	assert.Equal(t, "New quote", payload.Subject)
	require.Len(t, payload.Personalizations, 1)
	require.Len(t, payload.Personalizations[0].To, 1)
	assert.Equal(t, "admin@example.com", payload.Personalizations[0].To[0].Email)
	require.NotEmpty(t, payload.Content)
	assert.Equal(t, "text/plain", payload.Content[0].Type)
	assert.Equal(t, "quote body", payload.Content[0].Value)
}

func TestSendgridFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	t.Cleanup(server.Close)

	t.Run("error status is an external service error", func(t *testing.T) {
		err := NewSendgrid(mailConfig, server.URL).Send(context.Background(), "admin@example.com", "s", "b")
		assert.ErrorIs(t, err, inErrors.ErrExternalService)
	})

	t.Run("unreachable host is an external service error", func(t *testing.T) {
		err := NewSendgrid(mailConfig, "http://127.0.0.1:1").Send(context.Background(), "admin@example.com", "s", "b")
		assert.ErrorIs(t, err, inErrors.ErrExternalService)
	})

	t.Run("empty recipient is rejected before calling out", func(t *testing.T) {
		err := NewSendgrid(mailConfig, server.URL).Send(context.Background(), "", "s", "b")
		assert.ErrorIs(t, err, inErrors.ErrValidation)
	})
}

func TestNew(t *testing.T) {
	assert.IsType(t, Log{}, New(config.Mail{}, "production"))
	assert.IsType(t, &Sendgrid{}, New(mailConfig, "production"))
}

func TestLogSend(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		expectedErr error
	}{
		{name: "development counts a logged email as sent", env: "development"},
		{name: "production reports the email as undelivered", env: "production", expectedErr: inErrors.ErrExternalService},
		{name: "unset env is not development", env: "", expectedErr: inErrors.ErrExternalService},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := New(config.Mail{}, test.env).Send(context.Background(), "a@example.com", "s", "b")
			if test.expectedErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, test.expectedErr)
		})
	}
}
