package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/metrics"
	inOtel "github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/quote/internal/otel"
	"github.com/Alturino/storefront/quote/response"
)

func (svc *QuoteService) quoteURL(quote response.QuoteRequest) string {
	return fmt.Sprintf("%s/quote-request/%s", svc.opts.PublicURL, quote.ID)
}

func (svc *QuoteService) adminMessage(quote response.QuoteRequest) (string, string) {
	subject := fmt.Sprintf("New quote request %s", quote.ID)

	body := strings.Builder{}
	fmt.Fprintf(&body, "Quote request %s from %s\n\n", quote.ID, quote.ContactEmail)
	for _, item := range quote.Items {
		line := item.Spec.Title()
		if priced, err := svc.pricer.Price(item.Spec); err == nil {
			line = fmt.Sprintf("%s (list price %s)", priced.Title, priced.Amount.StringFixed(2))
		}
		fmt.Fprintf(&body, "%d. %s x %d\n", item.Position+1, line, item.Quantity)
	}
	if quote.Notes != "" {
		fmt.Fprintf(&body, "\nNotes:\n%s\n", quote.Notes)
	}
	return subject, body.String()
}

func (svc *QuoteService) customerMessage(quote response.QuoteRequest) (string, string) {
	subject := "Your quote is ready"
	body := strings.Builder{}
	fmt.Fprintf(&body, "Your quote request %s has been priced", quote.ID)
	if quote.AdminPrice != nil {
		fmt.Fprintf(&body, " at %s", quote.AdminPrice.StringFixed(2))
	}
	fmt.Fprintf(&body, ".\n\nReview it at %s\n", svc.quoteURL(quote))
	return subject, body.String()
}

// notifyAdmin reports whether the admin was reached. Only a delivered email
// flips emailSent.
func (svc *QuoteService) notifyAdmin(c context.Context, quote response.QuoteRequest) bool {
	c, span := otel.Tracer.Start(c, "QuoteService notifyAdmin")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "QuoteService notifyAdmin").
		Str(log.KeyQuoteID, quote.ID.String()).
		Str(log.KeyRecipient, svc.opts.AdminAddress).
		Str(log.KeyProcess, "sending admin notification").
		Logger()
	c = logger.WithContext(c)

	subject, body := svc.adminMessage(quote)
	logger.Trace().Msg("sending admin notification")
	if err := svc.notifier.Send(c, svc.opts.AdminAddress, subject, body); err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		err = fmt.Errorf("failed sending admin notification with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return false
	}
	metrics.Notifications.WithLabelValues("sent").Inc()
	logger.Info().Msg("sent admin notification")

	logger = logger.With().Str(log.KeyProcess, "marking quote email sent").Logger()
	if err := svc.store.MarkQuoteEmailSent(c, quote.ID); err != nil {
		err = fmt.Errorf("failed marking quote email sent with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return false
	}
	logger.Trace().Msg("marked quote email sent")
	return true
}

func (svc *QuoteService) notifyCustomer(c context.Context, quote response.QuoteRequest) {
	c, span := otel.Tracer.Start(c, "QuoteService notifyCustomer")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "QuoteService notifyCustomer").
		Str(log.KeyQuoteID, quote.ID.String()).
		Str(log.KeyRecipient, quote.ContactEmail).
		Logger()

	if quote.ContactEmail == "" {
		logger.Warn().Msg("quote request has no contact email")
		return
	}
	subject, body := svc.customerMessage(quote)
	if err := svc.notifier.Send(logger.WithContext(c), quote.ContactEmail, subject, body); err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		err = fmt.Errorf("failed sending customer notification with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return
	}
	metrics.Notifications.WithLabelValues("sent").Inc()
	logger.Info().Msg("sent customer notification")
}

// RetryNotifications resends the admin email for requests older than
// olderThan whose first attempt did not get through. It returns how many were
// delivered this round.
func (svc *QuoteService) RetryNotifications(c context.Context, olderThan time.Duration, limit int) (int, error) {
	c, span := otel.Tracer.Start(c, "QuoteService RetryNotifications")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "QuoteService RetryNotifications").
		Str(log.KeyProcess, "finding unsent quote requests").
		Logger()

	logger.Trace().Msg("finding unsent quote requests")
	quotes, err := svc.store.FindUnsentQuoteRequests(logger.WithContext(c), time.Now().Add(-olderThan), limit)
	if err != nil {
		err = fmt.Errorf("failed finding unsent quote requests with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return 0, err
	}
	logger.Trace().Int("count", len(quotes)).Msg("found unsent quote requests")

	logger = logger.With().Str(log.KeyProcess, "resending admin notifications").Logger()
	sent := 0
	for _, quote := range quotes {
		if c.Err() != nil {
			break
		}
		attempt, cancel := context.WithTimeout(logger.WithContext(c), svc.opts.Timeout)
		if svc.notifyAdmin(attempt, quote) {
			sent++
		}
		cancel()
	}
	logger.Info().Int("sent", sent).Int("pending", len(quotes)-sent).Msg("resent admin notifications")

	return sent, c.Err()
}
