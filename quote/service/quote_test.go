package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cartResponse "github.com/Alturino/storefront/cart/response"
	cartService "github.com/Alturino/storefront/cart/service"
	"github.com/Alturino/storefront/internal/cache"
	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/storetest"
	"github.com/Alturino/storefront/pricing"
	"github.com/Alturino/storefront/quote/request"
	"github.com/Alturino/storefront/quote/response"
)

const adminAddress = "admin@example.com"

type sentMail struct {
	recipient string
	subject   string
	body      string
}

type fakeNotifier struct {
	mu   sync.Mutex
	err  error
	sent []sentMail
}

func (n *fakeNotifier) Send(_ context.Context, recipient, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMail{recipient: recipient, subject: subject, body: body})
	return nil
}

func (n *fakeNotifier) fail(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

func (n *fakeNotifier) mails() []sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMail(nil), n.sent...)
}

type fixture struct {
	svc      *QuoteService
	carts    *cartService.CartService
	store    *storetest.Memory
	notifier *fakeNotifier
	pricer   *pricing.Pricer
}

func setupQuote(t *testing.T) fixture {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := storetest.NewMemory()
	pricer := pricing.NewPricer(pricing.DefaultTable())
	carts := cartService.NewCartService(
		store,
		store,
		pricer,
		cache.NewJSONCache[cartResponse.Cart](client, cache.KeyCarts, time.Minute),
		"secret",
	)
	notifier := &fakeNotifier{}
	svc := NewQuoteService(store, carts, pricer, notifier, Options{
		AdminAddress: adminAddress,
		PublicURL:    "https://shop.example.com/",
		Timeout:      time.Second,
	})
	t.Cleanup(svc.Wait)
	return fixture{svc: svc, carts: carts, store: store, notifier: notifier, pricer: pricer}
}

func bolts(quantity int) request.QuoteItem {
	return request.QuoteItem{
		CategoryName:   "fastener",
		Specifications: json.RawMessage(`{"type":"bolt","size":"M8","material":"steel"}`),
		Quantity:       quantity,
	}
}

func (f fixture) submit(t *testing.T, userID uuid.UUID, items ...request.QuoteItem) response.QuoteRequest {
	t.Helper()
	quote, err := f.svc.Submit(context.Background(), userID, "buyer@example.com", request.SubmitQuote{Items: items, Notes: "rush"})
	require.NoError(t, err)
	f.svc.Wait()
	return quote
}

func TestSubmit(t *testing.T) {
	c := context.Background()

	t.Run("invalid items are rejected", func(t *testing.T) {
		f := setupQuote(t)
		tests := []struct {
			name  string
			items []request.QuoteItem
		}{
			{name: "no items", items: nil},
			{name: "zero quantity", items: []request.QuoteItem{bolts(0)}},
			{name: "quantity above the lot limit", items: []request.QuoteItem{bolts(100_001)}},
			{name: "quantity wider than 32 bits", items: []request.QuoteItem{bolts(1<<32 + 1)}},
			{name: "unknown category", items: []request.QuoteItem{{CategoryName: "rocket", Specifications: json.RawMessage(`{}`), Quantity: 1}}},
			{name: "missing specifications", items: []request.QuoteItem{{CategoryName: "wire", Quantity: 1}}},
			{name: "malformed specifications", items: []request.QuoteItem{{CategoryName: "wire", Specifications: json.RawMessage(`[1]`), Quantity: 1}}},
		}
		for _, test := range tests {
			t.Run(test.name, func(t *testing.T) {
				_, err := f.svc.Submit(c, uuid.New(), "buyer@example.com", request.SubmitQuote{Items: test.items})
				assert.ErrorIs(t, err, inErrors.ErrValidation)
			})
		}
	})

	t.Run("submitted request is pending and the admin is notified", func(t *testing.T) {
		f := setupQuote(t)
		userID := uuid.New()
		quote := f.submit(t, userID, bolts(10))

		assert.Equal(t, response.StatusPending, quote.Status)
		assert.False(t, quote.EmailSent)
		require.Len(t, quote.Items, 1)
		assert.Equal(t, "custom", quote.Items[0].Type)
		assert.Equal(t, 10, quote.Items[0].Spec.Quantity)

		mails := f.notifier.mails()
		require.Len(t, mails, 1)
		assert.Equal(t, adminAddress, mails[0].recipient)
		assert.Contains(t, mails[0].body, "buyer@example.com")
		assert.Contains(t, mails[0].body, "rush")

		stored, err := f.svc.Find(c, userID, quote.ID)
		require.NoError(t, err)
		assert.True(t, stored.EmailSent)
		assert.False(t, stored.EmailOpened)
	})

	t.Run("failed notification keeps the request and is retried", func(t *testing.T) {
		f := setupQuote(t)
		f.notifier.fail(errors.New("smtp down"))
		userID := uuid.New()
		quote := f.submit(t, userID, bolts(10))

		stored, err := f.svc.Find(c, userID, quote.ID)
		require.NoError(t, err)
		assert.False(t, stored.EmailSent)
		assert.Equal(t, response.StatusPending, stored.Status)

		sent, err := f.svc.RetryNotifications(c, time.Minute, 10)
		require.NoError(t, err)
		assert.Zero(t, sent, "young requests are left to the first attempt")

		f.store.Age(quote.ID, time.Hour)
		sent, err = f.svc.RetryNotifications(c, time.Minute, 10)
		require.NoError(t, err)
		assert.Zero(t, sent)

		f.notifier.fail(nil)
		sent, err = f.svc.RetryNotifications(c, time.Minute, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, sent)

		stored, err = f.svc.Find(c, userID, quote.ID)
		require.NoError(t, err)
		assert.True(t, stored.EmailSent)

		sent, err = f.svc.RetryNotifications(c, time.Minute, 10)
		require.NoError(t, err)
		assert.Zero(t, sent)
	})
}

func TestAcceptQuotedRequest(t *testing.T) {
	c := context.Background()
	f := setupQuote(t)
	userID := uuid.New()
	quote := f.submit(t, userID, bolts(10))

	quoted, err := f.svc.MarkQuoted(c, quote.ID, decimal.RequireFromString("500"))
	require.NoError(t, err)
	assert.Equal(t, response.StatusQuoted, quoted.Status)
	require.NotNil(t, quoted.AdminPrice)
	assert.True(t, decimal.RequireFromString("500").Equal(*quoted.AdminPrice))
	assert.False(t, quoted.ResponseReceived)

	f.svc.Wait()
	mails := f.notifier.mails()
	require.Len(t, mails, 2)
	assert.Equal(t, "buyer@example.com", mails[1].recipient)
	assert.Contains(t, mails[1].body, "500.00")
	assert.Contains(t, mails[1].body, "https://shop.example.com/quote-request/"+quote.ID.String())

	accepted, added, err := f.svc.Accept(c, userID, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, response.StatusAccepted, accepted.Status)
	assert.True(t, accepted.ResponseReceived)
	require.Len(t, added, 1)
	assert.True(t, added[0].IsCustom())
	assert.Equal(t, 1, added[0].Quantity)
	assert.Equal(t, 10, added[0].CustomProduct.Quantity)
	assert.True(t, decimal.RequireFromString("500").Equal(added[0].OfferPrice))
	assert.False(t, added[0].OfferPrice.GreaterThan(added[0].BasePrice))

	cart, err := f.carts.GetCart(c, f.carts.UserOwner(userID))
	require.NoError(t, err)
	assert.Len(t, cart.CartItems, 1)
	assert.True(t, decimal.RequireFromString("500").Equal(cart.Subtotal))

	_, _, err = f.svc.Accept(c, userID, quote.ID)
	assert.ErrorIs(t, err, inErrors.ErrConflict)
	assert.Len(t, f.store.CartItems(f.carts.UserOwner(userID).Key()), 1)
}

func TestStatusTransitions(t *testing.T) {
	c := context.Background()

	t.Run("pending request cannot be accepted or rejected", func(t *testing.T) {
		f := setupQuote(t)
		userID := uuid.New()
		quote := f.submit(t, userID, bolts(1))

		_, _, err := f.svc.Accept(c, userID, quote.ID)
		assert.ErrorIs(t, err, inErrors.ErrConflict)
		_, err = f.svc.Reject(c, userID, quote.ID)
		assert.ErrorIs(t, err, inErrors.ErrConflict)
	})

	t.Run("price must be positive", func(t *testing.T) {
		f := setupQuote(t)
		quote := f.submit(t, uuid.New(), bolts(1))

		_, err := f.svc.MarkQuoted(c, quote.ID, decimal.Zero)
		assert.ErrorIs(t, err, inErrors.ErrValidation)
		_, err = f.svc.MarkQuoted(c, quote.ID, decimal.RequireFromString("-1"))
		assert.ErrorIs(t, err, inErrors.ErrValidation)
	})

	t.Run("quoted request cannot be quoted again", func(t *testing.T) {
		f := setupQuote(t)
		quote := f.submit(t, uuid.New(), bolts(1))

		_, err := f.svc.MarkQuoted(c, quote.ID, decimal.NewFromInt(10))
		require.NoError(t, err)
		_, err = f.svc.MarkQuoted(c, quote.ID, decimal.NewFromInt(20))
		assert.ErrorIs(t, err, inErrors.ErrConflict)
	})

	t.Run("rejected request is terminal", func(t *testing.T) {
		f := setupQuote(t)
		userID := uuid.New()
		quote := f.submit(t, userID, bolts(1))
		_, err := f.svc.MarkQuoted(c, quote.ID, decimal.NewFromInt(10))
		require.NoError(t, err)

		rejected, err := f.svc.Reject(c, userID, quote.ID)
		require.NoError(t, err)
		assert.Equal(t, response.StatusRejected, rejected.Status)
		assert.True(t, rejected.ResponseReceived)
		assert.True(t, rejected.Status.IsTerminal())

		_, _, err = f.svc.Accept(c, userID, quote.ID)
		assert.ErrorIs(t, err, inErrors.ErrConflict)
		_, err = f.svc.Reject(c, userID, quote.ID)
		assert.ErrorIs(t, err, inErrors.ErrConflict)
		_, err = f.svc.MarkQuoted(c, quote.ID, decimal.NewFromInt(10))
		assert.ErrorIs(t, err, inErrors.ErrConflict)
	})

	t.Run("unknown request is not found", func(t *testing.T) {
		f := setupQuote(t)
		_, err := f.svc.MarkQuoted(c, uuid.New(), decimal.NewFromInt(10))
		assert.ErrorIs(t, err, inErrors.ErrNotFound)
		assert.ErrorIs(t, f.svc.MarkEmailOpened(c, uuid.New()), inErrors.ErrNotFound)
	})

	t.Run("other users cannot see or act on a request", func(t *testing.T) {
		f := setupQuote(t)
		owner := uuid.New()
		quote := f.submit(t, owner, bolts(1))
		_, err := f.svc.MarkQuoted(c, quote.ID, decimal.NewFromInt(10))
		require.NoError(t, err)

		stranger := uuid.New()
		_, err = f.svc.Find(c, stranger, quote.ID)
		assert.ErrorIs(t, err, inErrors.ErrNotFound)
		_, _, err = f.svc.Accept(c, stranger, quote.ID)
		assert.ErrorIs(t, err, inErrors.ErrNotFound)
		_, err = f.svc.Reject(c, stranger, quote.ID)
		assert.ErrorIs(t, err, inErrors.ErrNotFound)

		quotes, err := f.svc.List(c, stranger)
		require.NoError(t, err)
		assert.Empty(t, quotes)
		quotes, err = f.svc.List(c, owner)
		require.NoError(t, err)
		assert.Len(t, quotes, 1)
	})

	t.Run("opened flag does not change the status", func(t *testing.T) {
		f := setupQuote(t)
		userID := uuid.New()
		quote := f.submit(t, userID, bolts(1))

		require.NoError(t, f.svc.MarkEmailOpened(c, quote.ID))
		require.NoError(t, f.svc.MarkEmailOpened(c, quote.ID))
		stored, err := f.svc.Find(c, userID, quote.ID)
		require.NoError(t, err)
		assert.True(t, stored.EmailOpened)
		assert.Equal(t, response.StatusPending, stored.Status)
	})
}

func TestAcceptIsAtomic(t *testing.T) {
	c := context.Background()
	f := setupQuote(t)
	userID := uuid.New()
	quote := f.submit(t, userID, bolts(10), bolts(30))
	_, err := f.svc.MarkQuoted(c, quote.ID, decimal.NewFromInt(100))
	require.NoError(t, err)

	inserts := 0
	f.store.InsertCartItemErr = func(cartResponse.CartItem) error {
		inserts++
		if inserts == 2 {
			return errors.New("disk full")
		}
		return nil
	}
	_, _, err = f.svc.Accept(c, userID, quote.ID)
	require.Error(t, err)

	stored, err := f.svc.Find(c, userID, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, response.StatusQuoted, stored.Status)
	assert.False(t, stored.ResponseReceived)
	assert.Empty(t, f.store.CartItems(f.carts.UserOwner(userID).Key()))

	f.store.InsertCartItemErr = nil
	_, added, err := f.svc.Accept(c, userID, quote.ID)
	require.NoError(t, err)
	require.Len(t, added, 2)

	// the second lot is three times the first, so it takes three quarters
	assert.True(t, decimal.RequireFromString("25").Equal(added[0].OfferPrice))
	assert.True(t, decimal.RequireFromString("75").Equal(added[1].OfferPrice))
}

func TestPriceSplitAddsUp(t *testing.T) {
	f := setupQuote(t)
	spec := func(quantity int) pricing.Spec {
		s, err := pricing.ParseSpec("fastener", quantity, json.RawMessage(`{"type":"bolt","size":"M8","material":"steel"}`))
		require.NoError(t, err)
		return s
	}
	price := decimal.RequireFromString("100")
	quote := response.QuoteRequest{
		AdminPrice: &price,
		Items: []response.QuoteItem{
			{Spec: spec(1)},
			{Spec: spec(1)},
			{Spec: spec(1)},
		},
	}

	items, err := f.svc.cartItems(quote)
	require.NoError(t, err)
	require.Len(t, items, 3)

	total := decimal.Zero
	for _, item := range items {
		require.NotNil(t, item.OfferPrice)
		assert.False(t, item.OfferPrice.IsNegative())
		total = total.Add(*item.OfferPrice)
	}
	assert.True(t, price.Equal(total))
	assert.True(t, decimal.RequireFromString("33.33").Equal(*items[0].OfferPrice))
	assert.True(t, decimal.RequireFromString("33.34").Equal(*items[2].OfferPrice))
}

func TestConcurrentAcceptAddsOnce(t *testing.T) {
	c := context.Background()
	f := setupQuote(t)
	userID := uuid.New()
	quote := f.submit(t, userID, bolts(10))
	_, err := f.svc.MarkQuoted(c, quote.ID, decimal.NewFromInt(500))
	require.NoError(t, err)

	const callers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.svc.Accept(c, userID, quote.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, inErrors.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, conflicts)
	assert.Len(t, f.store.CartItems(f.carts.UserOwner(userID).Key()), 1)
}
