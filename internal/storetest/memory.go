// Package storetest provides an in-memory stand-in for the postgres store.
// It mirrors the store's error semantics and rolls back a failed InTx.
package storetest

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cartResponse "github.com/Alturino/storefront/cart/response"
	inErrors "github.com/Alturino/storefront/internal/errors"
	productResponse "github.com/Alturino/storefront/product/response"
	quoteResponse "github.com/Alturino/storefront/quote/response"
)

type txKey struct{}

type state struct {
	carts  map[string]cartResponse.Cart
	items  []cartResponse.CartItem
	quotes map[uuid.UUID]quoteResponse.QuoteRequest
}

func (s state) clone() state {
	carts := make(map[string]cartResponse.Cart, len(s.carts))
	for k, v := range s.carts {
		carts[k] = v
	}
	quotes := make(map[uuid.UUID]quoteResponse.QuoteRequest, len(s.quotes))
	for k, v := range s.quotes {
		quotes[k] = v
	}
	return state{carts: carts, items: slices.Clone(s.items), quotes: quotes}
}

// Memory serializes every operation on one mutex; InTx holds it for the
// whole transaction.
type Memory struct {
	mu       sync.Mutex
	state    state
	products map[uuid.UUID]productResponse.Product
	clock    time.Time

	// InsertCartItemErr, when set, is consulted before every item insert.
	InsertCartItemErr func(item cartResponse.CartItem) error
}

func NewMemory() *Memory {
	return &Memory{
		state: state{
			carts:  map[string]cartResponse.Cart{},
			quotes: map[uuid.UUID]quoteResponse.QuoteRequest{},
		},
		products: map[uuid.UUID]productResponse.Product{},
		clock:    time.Now(),
	}
}

func (m *Memory) lock(c context.Context) func() {
	if c.Value(txKey{}) != nil {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *Memory) now() time.Time {
	m.clock = m.clock.Add(time.Millisecond)
	return m.clock
}

func (m *Memory) InTx(c context.Context, fn func(c context.Context) error) error {
	if c.Value(txKey{}) != nil {
		return fn(c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(context.WithValue(c, txKey{}, true)); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

func (m *Memory) AddProduct(p productResponse.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

func (m *Memory) FindProductById(c context.Context, id uuid.UUID) (productResponse.Product, error) {
	defer m.lock(c)()
	p, ok := m.products[id]
	if !ok {
		return productResponse.Product{}, inErrors.NotFound("product id=%s not found", id)
	}
	return p, nil
}

func (m *Memory) UpsertCart(c context.Context, ownerKey string, userID *uuid.UUID) (cartResponse.Cart, error) {
	defer m.lock(c)()
	cart, ok := m.state.carts[ownerKey]
	if !ok {
		now := m.now()
		cart = cartResponse.Cart{ID: uuid.New(), UserID: userID, CreatedAt: now, UpdatedAt: now}
		m.state.carts[ownerKey] = cart
	}
	return cart.WithTotals(), nil
}

func (m *Memory) LockCart(c context.Context, ownerKey string) (cartResponse.Cart, error) {
	defer m.lock(c)()
	cart, ok := m.state.carts[ownerKey]
	if !ok {
		return cartResponse.Cart{}, inErrors.NotFound("cart not found")
	}
	return cart.WithTotals(), nil
}

func (m *Memory) FindCart(c context.Context, ownerKey string) (cartResponse.Cart, error) {
	defer m.lock(c)()
	cart, ok := m.state.carts[ownerKey]
	if !ok {
		return cartResponse.Cart{}, inErrors.NotFound("cart not found")
	}
	cart.CartItems = []cartResponse.CartItem{}
	for _, item := range m.state.items {
		if item.CartID == cart.ID {
			cart.CartItems = append(cart.CartItems, item)
		}
	}
	return cart.WithTotals(), nil
}

// CartItems returns the lines of the cart stored under ownerKey.
func (m *Memory) CartItems(ownerKey string) []cartResponse.CartItem {
	cart, err := m.FindCart(context.Background(), ownerKey)
	if err != nil {
		return nil
	}
	return cart.CartItems
}

func (m *Memory) InsertCartItem(c context.Context, item cartResponse.CartItem) (cartResponse.CartItem, error) {
	defer m.lock(c)()
	if m.InsertCartItemErr != nil {
		if err := m.InsertCartItemErr(item); err != nil {
			return cartResponse.CartItem{}, err
		}
	}
	found := false
	for _, cart := range m.state.carts {
		found = found || cart.ID == item.CartID
	}
	if !found {
		return cartResponse.CartItem{}, errors.New("cart_items_cart_id_fkey violated")
	}
	if (item.ProductID == nil) == (item.CustomProduct == nil) {
		return cartResponse.CartItem{}, errors.New("cart_items_catalog_xor_custom violated")
	}
	if item.OfferPrice.GreaterThan(item.BasePrice) {
		return cartResponse.CartItem{}, errors.New("cart_items_offer_price_check violated")
	}
	now := m.now()
	item.Version = 1
	item.CreatedAt = now
	item.UpdatedAt = now
	if item.Options == nil {
		item.Options = map[string]string{}
	}
	m.state.items = append(m.state.items, item)
	return item, nil
}

func (m *Memory) ownedItem(ownerKey string, id uuid.UUID) (int, bool) {
	cart, ok := m.state.carts[ownerKey]
	if !ok {
		return 0, false
	}
	i := slices.IndexFunc(m.state.items, func(item cartResponse.CartItem) bool {
		return item.ID == id && item.CartID == cart.ID
	})
	return i, i >= 0
}

func bound(item cartResponse.CartItem, maxCatalog int, maxCustom int) int {
	if item.ProductID == nil {
		return maxCustom
	}
	return maxCatalog
}

func (m *Memory) IncrementCartItemQuantity(
	c context.Context,
	ownerKey string,
	id uuid.UUID,
	delta int,
	maxCatalog int,
	maxCustom int,
) (cartResponse.CartItem, error) {
	defer m.lock(c)()
	i, ok := m.ownedItem(ownerKey, id)
	if !ok {
		return cartResponse.CartItem{}, inErrors.NotFound("cart item id=%s not found", id)
	}
	item := m.state.items[i]
	limit := bound(item, maxCatalog, maxCustom)
	if next := item.Quantity + delta; next < 1 || next > limit {
		return cartResponse.CartItem{}, inErrors.Validation("quantity=%d%+d is out of range 1..%d", item.Quantity, delta, limit)
	}
	item.Quantity += delta
	item.Version++
	item.UpdatedAt = m.now()
	m.state.items[i] = item
	return item, nil
}

func (m *Memory) SetCartItemQuantity(
	c context.Context,
	ownerKey string,
	id uuid.UUID,
	quantity int,
	version int64,
	maxCatalog int,
	maxCustom int,
) (cartResponse.CartItem, error) {
	defer m.lock(c)()
	i, ok := m.ownedItem(ownerKey, id)
	if !ok {
		return cartResponse.CartItem{}, inErrors.NotFound("cart item id=%s not found", id)
	}
	item := m.state.items[i]
	if item.Version != version {
		return cartResponse.CartItem{}, inErrors.Conflict("cart item id=%s was modified", id)
	}
	limit := bound(item, maxCatalog, maxCustom)
	if quantity < 1 || quantity > limit {
		return cartResponse.CartItem{}, inErrors.Validation("quantity=%d is out of range 1..%d", quantity, limit)
	}
	item.Quantity = quantity
	item.Version++
	item.UpdatedAt = m.now()
	m.state.items[i] = item
	return item, nil
}

func (m *Memory) DeleteCartItem(c context.Context, ownerKey string, id uuid.UUID) error {
	defer m.lock(c)()
	i, ok := m.ownedItem(ownerKey, id)
	if !ok {
		return inErrors.NotFound("cart item id=%s not found", id)
	}
	m.state.items = slices.Delete(m.state.items, i, i+1)
	return nil
}

func (m *Memory) MoveCartItems(c context.Context, fromCartID uuid.UUID, toCartID uuid.UUID) (int64, error) {
	defer m.lock(c)()
	var moved int64
	for i, item := range m.state.items {
		if item.CartID == fromCartID {
			item.CartID = toCartID
			m.state.items[i] = item
			moved++
		}
	}
	return moved, nil
}

func (m *Memory) InsertQuoteRequest(c context.Context, request quoteResponse.QuoteRequest) (quoteResponse.QuoteRequest, error) {
	defer m.lock(c)()
	now := m.now()
	request.Status = quoteResponse.StatusPending
	request.AdminPrice = nil
	request.EmailSent, request.EmailOpened, request.ResponseReceived = false, false, false
	request.CreatedAt, request.UpdatedAt = now, now
	items := make([]quoteResponse.QuoteItem, 0, len(request.Items))
	for i, item := range request.Items {
		item.ID = uuid.New()
		item.QuoteRequestID = request.ID
		item.Position = i
		items = append(items, item)
	}
	request.Items = items
	m.state.quotes[request.ID] = request
	return request, nil
}

func (m *Memory) FindQuoteRequest(c context.Context, id uuid.UUID) (quoteResponse.QuoteRequest, error) {
	defer m.lock(c)()
	request, ok := m.state.quotes[id]
	if !ok {
		return quoteResponse.QuoteRequest{}, inErrors.NotFound("quote request id=%s not found", id)
	}
	return request, nil
}

func (m *Memory) FindQuoteRequestsByUserId(c context.Context, userID uuid.UUID) ([]quoteResponse.QuoteRequest, error) {
	defer m.lock(c)()
	requests := []quoteResponse.QuoteRequest{}
	for _, request := range m.state.quotes {
		if request.UserID == userID {
			requests = append(requests, request)
		}
	}
	slices.SortFunc(requests, func(a, b quoteResponse.QuoteRequest) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return requests, nil
}

func (m *Memory) FindUnsentQuoteRequests(c context.Context, before time.Time, limit int) ([]quoteResponse.QuoteRequest, error) {
	defer m.lock(c)()
	requests := []quoteResponse.QuoteRequest{}
	for _, request := range m.state.quotes {
		if !request.EmailSent && request.CreatedAt.Before(before) {
			requests = append(requests, request)
		}
	}
	slices.SortFunc(requests, func(a, b quoteResponse.QuoteRequest) int { return a.CreatedAt.Compare(b.CreatedAt) })
	if len(requests) > limit {
		requests = requests[:limit]
	}
	return requests, nil
}

func (m *Memory) TransitionQuoteRequest(
	c context.Context,
	id uuid.UUID,
	from quoteResponse.Status,
	to quoteResponse.Status,
	adminPrice *decimal.Decimal,
	responseReceived bool,
) (quoteResponse.QuoteRequest, error) {
	defer m.lock(c)()
	request, ok := m.state.quotes[id]
	if !ok {
		return quoteResponse.QuoteRequest{}, inErrors.NotFound("quote request id=%s not found", id)
	}
	if request.Status != from {
		return quoteResponse.QuoteRequest{}, inErrors.Conflict("quote request id=%s is %s and cannot become %s", id, request.Status, to)
	}
	request.Status = to
	if adminPrice != nil {
		price := *adminPrice
		request.AdminPrice = &price
	}
	request.ResponseReceived = request.ResponseReceived || responseReceived
	request.UpdatedAt = m.now()
	m.state.quotes[id] = request
	return request, nil
}

func (m *Memory) MarkQuoteEmailSent(c context.Context, id uuid.UUID) error {
	defer m.lock(c)()
	request, ok := m.state.quotes[id]
	if !ok {
		return nil
	}
	request.EmailSent = true
	m.state.quotes[id] = request
	return nil
}

func (m *Memory) MarkQuoteEmailOpened(c context.Context, id uuid.UUID) error {
	defer m.lock(c)()
	request, ok := m.state.quotes[id]
	if !ok {
		return inErrors.NotFound("quote request id=%s not found", id)
	}
	request.EmailOpened = true
	m.state.quotes[id] = request
	return nil
}

// Age moves the creation time of a quote request into the past.
func (m *Memory) Age(id uuid.UUID, by time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	request := m.state.quotes[id]
	request.CreatedAt = request.CreatedAt.Add(-by)
	m.state.quotes[id] = request
}
