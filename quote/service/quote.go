package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	cartResponse "github.com/Alturino/storefront/cart/response"
	cartService "github.com/Alturino/storefront/cart/service"
	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/metrics"
	inOtel "github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/pricing"
	"github.com/Alturino/storefront/quote/internal/otel"
	"github.com/Alturino/storefront/quote/request"
	"github.com/Alturino/storefront/quote/response"
)

const defaultItemType = "custom"

type QuoteStore interface {
	InTx(c context.Context, fn func(c context.Context) error) error
	InsertQuoteRequest(c context.Context, request response.QuoteRequest) (response.QuoteRequest, error)
	FindQuoteRequest(c context.Context, id uuid.UUID) (response.QuoteRequest, error)
	FindQuoteRequestsByUserId(c context.Context, userID uuid.UUID) ([]response.QuoteRequest, error)
	FindUnsentQuoteRequests(c context.Context, before time.Time, limit int) ([]response.QuoteRequest, error)
	TransitionQuoteRequest(
		c context.Context,
		id uuid.UUID,
		from response.Status,
		to response.Status,
		adminPrice *decimal.Decimal,
		responseReceived bool,
	) (response.QuoteRequest, error)
	MarkQuoteEmailSent(c context.Context, id uuid.UUID) error
	MarkQuoteEmailOpened(c context.Context, id uuid.UUID) error
}

// CartAdder must share the QuoteStore's transaction scope: items added while
// accepting run inside the acceptance transaction.
type CartAdder interface {
	UserOwner(id uuid.UUID) cartService.Owner
	AddItem(c context.Context, owner cartService.Owner, item cartService.NewItem) (cartResponse.Cart, cartResponse.CartItem, error)
	Invalidate(c context.Context, owners ...cartService.Owner)
}

type Pricer interface {
	Price(spec pricing.Spec) (pricing.Quote, error)
}

type Notifier interface {
	Send(c context.Context, recipient string, subject string, body string) error
}

type Options struct {
	AdminAddress string
	PublicURL    string
	Timeout      time.Duration
}

type QuoteService struct {
	store    QuoteStore
	carts    CartAdder
	pricer   Pricer
	notifier Notifier
	opts     Options
	wg       sync.WaitGroup
}

func NewQuoteService(store QuoteStore, carts CartAdder, pricer Pricer, notifier Notifier, opts Options) *QuoteService {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	opts.PublicURL = strings.TrimSuffix(opts.PublicURL, "/")
	return &QuoteService{store: store, carts: carts, pricer: pricer, notifier: notifier, opts: opts}
}

// Submit stores a new PENDING quote request and notifies the shop admin in
// the background. A failed notification leaves emailSent false for the retry
// worker and never fails the submission.
func (svc *QuoteService) Submit(
	c context.Context,
	userID uuid.UUID,
	contactEmail string,
	submit request.SubmitQuote,
) (response.QuoteRequest, error) {
	c, span := otel.Tracer.Start(c, "QuoteService Submit")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "QuoteService Submit").
		Str(log.KeyUserID, userID.String()).
		Int(log.KeyQuoteItems, len(submit.Items)).
		Str(log.KeyProcess, "validating quote items").
		Logger()

	logger.Trace().Msg("validating quote items")
	items, err := svc.quoteItems(submit.Items)
	if err != nil {
		err = fmt.Errorf("failed validating quote items with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.QuoteRequest{}, err
	}
	logger.Trace().Msg("validated quote items")

	logger = logger.With().Str(log.KeyProcess, "inserting quote request").Logger()
	logger.Trace().Msg("inserting quote request")
	created, err := svc.store.InsertQuoteRequest(logger.WithContext(c), response.QuoteRequest{
		ID:           uuid.New(),
		UserID:       userID,
		ContactEmail: contactEmail,
		Notes:        submit.Notes,
		Items:        items,
	})
	if err != nil {
		err = fmt.Errorf("failed inserting quote request with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.QuoteRequest{}, err
	}
	logger = logger.With().Str(log.KeyQuoteID, created.ID.String()).Logger()
	logger.Info().Msg("inserted quote request")

	svc.async(logger.WithContext(c), func(c context.Context) {
		svc.notifyAdmin(c, created)
	})
	return created, nil
}

func (svc *QuoteService) quoteItems(items []request.QuoteItem) ([]response.QuoteItem, error) {
	if len(items) == 0 {
		return nil, inErrors.Validation("a quote request needs at least one item")
	}
	quoteItems := make([]response.QuoteItem, 0, len(items))
	for i, item := range items {
		if item.Quantity < 1 || item.Quantity > pricing.MaxQuantity {
			return nil, inErrors.Validation("item %d: quantity=%d must be between 1 and %d", i, item.Quantity, pricing.MaxQuantity)
		}
		if len(item.Specifications) == 0 {
			return nil, inErrors.Validation("item %d: specifications are required", i)
		}
		spec, err := pricing.ParseSpec(item.CategoryName, item.Quantity, item.Specifications)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if _, err = svc.pricer.Price(spec); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		itemType := item.Type
		if itemType == "" {
			itemType = defaultItemType
		}
		quoteItems = append(quoteItems, response.QuoteItem{
			Type:         itemType,
			CategoryName: string(spec.Category),
			Spec:         spec,
			Quantity:     item.Quantity,
		})
	}
	return quoteItems, nil
}

// MarkQuoted records the admin's price and moves a PENDING request to QUOTED.
// The customer is told in the background.
func (svc *QuoteService) MarkQuoted(c context.Context, id uuid.UUID, price decimal.Decimal) (response.QuoteRequest, error) {
	c, span := otel.Tracer.Start(c, "QuoteService MarkQuoted")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "QuoteService MarkQuoted").
		Str(log.KeyQuoteID, id.String()).
		Stringer(log.KeyPrice, price).
		Str(log.KeyProcess, "transitioning quote request").
		Logger()

	if !price.IsPositive() {
		err := inErrors.Validation("price=%s must be positive", price.String())
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.QuoteRequest{}, err
	}
	price = price.Round(2)

	logger.Trace().Msg("transitioning quote request")
	quoted, err := svc.transition(logger.WithContext(c), id, response.StatusPending, response.StatusQuoted, &price, false)
	if err != nil {
		err = fmt.Errorf("failed transitioning quote request with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.QuoteRequest{}, err
	}
	logger.Info().Msg("transitioned quote request")

	svc.async(logger.WithContext(c), func(c context.Context) {
		svc.notifyCustomer(c, quoted)
	})
	return quoted, nil
}

// Accept turns a QUOTED request into cart lines for its owner. The status
// change and every cart insert commit together or not at all.
func (svc *QuoteService) Accept(
	c context.Context,
	userID uuid.UUID,
	id uuid.UUID,
) (response.QuoteRequest, []cartResponse.CartItem, error) {
	c, span := otel.Tracer.Start(c, "QuoteService Accept")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "QuoteService Accept").
		Str(log.KeyQuoteID, id.String()).
		Str(log.KeyUserID, userID.String()).
		Str(log.KeyProcess, "accepting quote request").
		Logger()

	owner := svc.carts.UserOwner(userID)
	var (
		accepted response.QuoteRequest
		added    []cartResponse.CartItem
	)
	logger.Trace().Msg("accepting quote request")
	err := svc.store.InTx(logger.WithContext(c), func(c context.Context) error {
		if _, err := svc.owned(c, userID, id); err != nil {
			return err
		}
		var err error
		accepted, err = svc.transition(c, id, response.StatusQuoted, response.StatusAccepted, nil, true)
		if err != nil {
			return err
		}

		items, err := svc.cartItems(accepted)
		if err != nil {
			return err
		}
		added = make([]cartResponse.CartItem, 0, len(items))
		for _, item := range items {
			_, line, err := svc.carts.AddItem(c, owner, item)
			if err != nil {
				return fmt.Errorf("failed adding quote item to cart with error=%w", err)
			}
			added = append(added, line)
		}
		return nil
	})
	if err != nil {
		err = fmt.Errorf("failed accepting quote request with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.QuoteRequest{}, nil, err
	}
	svc.carts.Invalidate(c, owner)
	logger.Info().Int(log.KeyQuoteItems, len(added)).Msg("accepted quote request")

	return accepted, added, nil
}

// cartItems spreads the admin price over the quote items in proportion to
// their computed prices. Each item becomes one custom lot; the last one takes
// the rounding remainder so the lines add up to the admin price exactly.
func (svc *QuoteService) cartItems(quote response.QuoteRequest) ([]cartService.NewItem, error) {
	computed := make([]decimal.Decimal, len(quote.Items))
	total := decimal.Zero
	for i, item := range quote.Items {
		priced, err := svc.pricer.Price(item.Spec)
		if err != nil {
			return nil, err
		}
		computed[i] = priced.Amount
		total = total.Add(priced.Amount)
	}

	items := make([]cartService.NewItem, 0, len(quote.Items))
	allotted := decimal.Zero
	for i, item := range quote.Items {
		spec := item.Spec
		newItem := cartService.NewItem{Custom: &spec, Quantity: 1}
		if quote.AdminPrice != nil {
			var share decimal.Decimal
			switch {
			case i == len(quote.Items)-1:
				share = quote.AdminPrice.Sub(allotted)
			case total.IsZero():
				share = quote.AdminPrice.Div(decimal.NewFromInt(int64(len(quote.Items)))).Truncate(2)
			default:
				share = quote.AdminPrice.Mul(computed[i]).Div(total).Truncate(2)
			}
			allotted = allotted.Add(share)
			newItem.OfferPrice = &share
		}
		items = append(items, newItem)
	}
	return items, nil
}

func (svc *QuoteService) Reject(c context.Context, userID uuid.UUID, id uuid.UUID) (response.QuoteRequest, error) {
	c, span := otel.Tracer.Start(c, "QuoteService Reject")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "QuoteService Reject").
		Str(log.KeyQuoteID, id.String()).
		Str(log.KeyUserID, userID.String()).
		Str(log.KeyProcess, "rejecting quote request").
		Logger()

	var rejected response.QuoteRequest
	logger.Trace().Msg("rejecting quote request")
	err := svc.store.InTx(logger.WithContext(c), func(c context.Context) error {
		if _, err := svc.owned(c, userID, id); err != nil {
			return err
		}
		var err error
		rejected, err = svc.transition(c, id, response.StatusQuoted, response.StatusRejected, nil, true)
		return err
	})
	if err != nil {
		err = fmt.Errorf("failed rejecting quote request with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.QuoteRequest{}, err
	}
	logger.Info().Msg("rejected quote request")

	return rejected, nil
}

func (svc *QuoteService) transition(
	c context.Context,
	id uuid.UUID,
	from response.Status,
	to response.Status,
	adminPrice *decimal.Decimal,
	responseReceived bool,
) (response.QuoteRequest, error) {
	quote, err := svc.store.TransitionQuoteRequest(c, id, from, to, adminPrice, responseReceived)
	switch {
	case err == nil:
		metrics.QuoteTransitions.WithLabelValues(string(to), "ok").Inc()
	case errors.Is(err, inErrors.ErrConflict):
		metrics.QuoteTransitions.WithLabelValues(string(to), "conflict").Inc()
	default:
		metrics.QuoteTransitions.WithLabelValues(string(to), "failed").Inc()
	}
	return quote, err
}

// owned hides requests of other users behind NotFound.
func (svc *QuoteService) owned(c context.Context, userID uuid.UUID, id uuid.UUID) (response.QuoteRequest, error) {
	quote, err := svc.store.FindQuoteRequest(c, id)
	if err != nil {
		return response.QuoteRequest{}, err
	}
	if quote.UserID != userID {
		return response.QuoteRequest{}, inErrors.NotFound("quote request id=%s not found", id)
	}
	return quote, nil
}

func (svc *QuoteService) Find(c context.Context, userID uuid.UUID, id uuid.UUID) (response.QuoteRequest, error) {
	c, span := otel.Tracer.Start(c, "QuoteService Find")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "QuoteService Find").
		Str(log.KeyQuoteID, id.String()).
		Str(log.KeyUserID, userID.String()).
		Logger()

	quote, err := svc.owned(logger.WithContext(c), userID, id)
	if err != nil {
		err = fmt.Errorf("failed finding quote request with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.QuoteRequest{}, err
	}
	return quote, nil
}

func (svc *QuoteService) List(c context.Context, userID uuid.UUID) ([]response.QuoteRequest, error) {
	c, span := otel.Tracer.Start(c, "QuoteService List")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "QuoteService List").
		Str(log.KeyUserID, userID.String()).
		Logger()

	quotes, err := svc.store.FindQuoteRequestsByUserId(logger.WithContext(c), userID)
	if err != nil {
		err = fmt.Errorf("failed finding quote requests with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	logger.Trace().Int("count", len(quotes)).Msg("found quote requests")
	return quotes, nil
}

// MarkEmailOpened flips the opened flag. It never touches the status.
func (svc *QuoteService) MarkEmailOpened(c context.Context, id uuid.UUID) error {
	c, span := otel.Tracer.Start(c, "QuoteService MarkEmailOpened")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "QuoteService MarkEmailOpened").
		Str(log.KeyQuoteID, id.String()).
		Logger()

	if err := svc.store.MarkQuoteEmailOpened(logger.WithContext(c), id); err != nil {
		err = fmt.Errorf("failed marking quote email opened with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("marked quote email opened")
	return nil
}

// async runs fn detached from the caller's cancellation and bounded by the
// notification timeout. Wait blocks until every such call has returned.
func (svc *QuoteService) async(c context.Context, fn func(c context.Context)) {
	svc.wg.Add(1)
	go func() {
		defer svc.wg.Done()
		c, cancel := context.WithTimeout(context.WithoutCancel(c), svc.opts.Timeout)
		defer cancel()
		fn(c)
	}()
}

func (svc *QuoteService) Wait() {
	svc.wg.Wait()
}
