package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/Alturino/storefront/internal/common/constants"
	"github.com/Alturino/storefront/internal/config"
	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/otel"
)

const (
	DefaultSendgridHost = "https://api.sendgrid.com"
	sendEndpoint        = "/v3/mail/send"
)

type Notifier interface {
	Send(c context.Context, recipient string, subject string, body string) error
}

var errNoProvider = errors.New("no mail provider configured")

// New returns a sendgrid notifier, or a logging one when no API key is
// configured.
func New(cfg config.Mail, env string) Notifier {
	if cfg.SendgridAPIKey == "" {
		return NewLog(env)
	}
	return NewSendgrid(cfg, DefaultSendgridHost)
}

type Sendgrid struct {
	apiKey string
	host   string
	from   *mail.Email
}

func NewSendgrid(cfg config.Mail, host string) *Sendgrid {
	return &Sendgrid{
		apiKey: cfg.SendgridAPIKey,
		host:   host,
		from:   mail.NewEmail(cfg.FromName, cfg.FromAddress),
	}
}

func (s *Sendgrid) Send(c context.Context, recipient string, subject string, body string) error {
	c, span := otel.Tracer.Start(c, "Sendgrid Send")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Sendgrid Send").
		Str(log.KeyRecipient, recipient).
		Str(log.KeyProcess, "sending email").
		Logger()

	if recipient == "" {
		err := inErrors.Validation("recipient is empty")
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}

	message := mail.NewSingleEmail(s.from, subject, mail.NewEmail("", recipient), body, "")
	// the client keeps the body on itself, so one per message
	request := sendgrid.GetRequest(s.apiKey, sendEndpoint, s.host)
	request.Method = http.MethodPost
	client := &sendgrid.Client{Request: request}

	logger.Trace().Msg("sending email")
	resp, err := client.SendWithContext(c, message)
	if err != nil {
		err = inErrors.ExternalService(err, "failed sending email")
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		err = inErrors.ExternalService(
			fmt.Errorf("sendgrid answered statusCode=%d body=%s", resp.StatusCode, resp.Body),
			"failed sending email",
		)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Int("statusCode", resp.StatusCode).Msg("sent email")

	return nil
}

// Log writes the message to the context logger instead of delivering it.
// Only in development does that count as sent; elsewhere Send fails so the
// message stays queued for retry.
type Log struct {
	development bool
}

func NewLog(env string) Log {
	return Log{development: env == constants.EnvDevelopment}
}

func (l Log) Send(c context.Context, recipient string, subject string, body string) error {
	logger := zerolog.Ctx(c).With().Str(log.KeyTag, "Log Send").Str(log.KeyRecipient, recipient).Logger()
	if l.development {
		logger.Info().Str("subject", subject).Str("body", body).Msg("email logged, no mail provider configured")
		return nil
	}
	err := inErrors.ExternalService(errNoProvider, "email not delivered")
	logger.Warn().Err(err).Str("subject", subject).Msg(err.Error())
	return err
}
