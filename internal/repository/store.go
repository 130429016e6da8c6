package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	cartResponse "github.com/Alturino/storefront/cart/response"
	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/otel"
	productResponse "github.com/Alturino/storefront/product/response"
	quoteResponse "github.com/Alturino/storefront/quote/response"
	shippingResponse "github.com/Alturino/storefront/shipping/response"
)

// Store is the postgres backed persistence of carts, catalog, shipping rates
// and quote requests. Every method joins the transaction carried by the
// context, if any.
type Store struct {
	pool    *pgxpool.Pool
	queries *Queries
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, queries: New(pool)}
}

type txKey struct{}

func (s *Store) q(c context.Context) *Queries {
	if tx, ok := c.Value(txKey{}).(pgx.Tx); ok {
		return s.queries.WithTx(tx)
	}
	return s.queries
}

// InTx runs fn in one transaction. A nested call joins the outer transaction
// so callers can compose operations that each use InTx.
func (s *Store) InTx(c context.Context, fn func(c context.Context) error) (err error) {
	if _, ok := c.Value(txKey{}).(pgx.Tx); ok {
		return fn(c)
	}

	c, span := otel.Tracer.Start(c, "Store InTx")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Store InTx").
		Str(log.KeyProcess, "initializing transaction").
		Logger()

	logger.Trace().Msg("initializing transaction")
	tx, err := s.pool.BeginTx(c, pgx.TxOptions{})
	if err != nil {
		err = fmt.Errorf("failed initializing transaction with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Trace().Msg("initialized transaction")
	defer func(lg zerolog.Logger) {
		l := lg.With().Str(log.KeyProcess, "rolling back transaction").Logger()
		rollbackErr := tx.Rollback(c)
		if rollbackErr != nil {
			if errors.Is(rollbackErr, pgx.ErrTxClosed) {
				return
			}
			rollbackErr = fmt.Errorf("failed rolling back transaction with error=%w", rollbackErr)
			otel.RecordError(rollbackErr, span)
			l.Error().Err(rollbackErr).Msg(rollbackErr.Error())
			return
		}
		l.Info().Msg("rolled back transaction")
	}(logger)

	if err = fn(context.WithValue(c, txKey{}, tx)); err != nil {
		return err
	}

	logger = logger.With().Str(log.KeyProcess, "committing transaction").Logger()
	logger.Trace().Msg("committing transaction")
	if err = tx.Commit(c); err != nil {
		err = fmt.Errorf("failed committing transaction with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Trace().Msg("committed transaction")
	return nil
}

func (s *Store) UpsertCart(c context.Context, ownerKey string, userID *uuid.UUID) (cartResponse.Cart, error) {
	cart, err := s.q(c).UpsertCart(c, UpsertCartParams{ID: uuid.New(), OwnerKey: ownerKey, UserID: userID})
	if err != nil {
		return cartResponse.Cart{}, fmt.Errorf("failed upserting cart with error=%w", err)
	}
	return cart.Response(nil)
}

func (s *Store) LockCart(c context.Context, ownerKey string) (cartResponse.Cart, error) {
	cart, err := s.q(c).LockCartByOwnerKey(c, ownerKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return cartResponse.Cart{}, inErrors.NotFound("cart not found")
	}
	if err != nil {
		return cartResponse.Cart{}, fmt.Errorf("failed locking cart with error=%w", err)
	}
	return cart.Response(nil)
}

func (s *Store) FindCart(c context.Context, ownerKey string) (cartResponse.Cart, error) {
	queries := s.q(c)
	cart, err := queries.FindCartByOwnerKey(c, ownerKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return cartResponse.Cart{}, inErrors.NotFound("cart not found")
	}
	if err != nil {
		return cartResponse.Cart{}, fmt.Errorf("failed finding cart with error=%w", err)
	}
	items, err := queries.FindCartItemsByCartId(c, cart.ID)
	if err != nil {
		return cartResponse.Cart{}, fmt.Errorf("failed finding cart items with error=%w", err)
	}
	return cart.Response(items)
}

func (s *Store) InsertCartItem(c context.Context, item cartResponse.CartItem) (cartResponse.CartItem, error) {
	params, err := insertCartItemParams(item)
	if err != nil {
		return cartResponse.CartItem{}, fmt.Errorf("failed encoding cart item with error=%w", err)
	}
	inserted, err := s.q(c).InsertCartItem(c, params)
	if err != nil {
		return cartResponse.CartItem{}, fmt.Errorf("failed inserting cart item with error=%w", err)
	}
	return inserted.Response()
}

func (s *Store) IncrementCartItemQuantity(
	c context.Context,
	ownerKey string,
	id uuid.UUID,
	delta int,
	maxCatalog int,
	maxCustom int,
) (cartResponse.CartItem, error) {
	queries := s.q(c)
	item, err := queries.IncrementCartItemQuantity(c, IncrementCartItemQuantityParams{
		ID:         id,
		OwnerKey:   ownerKey,
		Delta:      int32(delta),
		MaxCatalog: int32(maxCatalog),
		MaxCustom:  int32(maxCustom),
	})
	if err == nil {
		return item.Response()
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return cartResponse.CartItem{}, fmt.Errorf("failed incrementing cart item quantity with error=%w", err)
	}

	current, err := queries.FindCartItemByOwnerKey(c, id, ownerKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return cartResponse.CartItem{}, inErrors.NotFound("cart item id=%s not found", id)
	}
	if err != nil {
		return cartResponse.CartItem{}, fmt.Errorf("failed finding cart item with error=%w", err)
	}
	return cartResponse.CartItem{}, inErrors.Validation(
		"quantity=%d%+d is out of range 1..%d",
		current.Quantity,
		delta,
		maxQuantity(current, maxCatalog, maxCustom),
	)
}

func (s *Store) SetCartItemQuantity(
	c context.Context,
	ownerKey string,
	id uuid.UUID,
	quantity int,
	version int64,
	maxCatalog int,
	maxCustom int,
) (cartResponse.CartItem, error) {
	queries := s.q(c)
	item, err := queries.SetCartItemQuantity(c, SetCartItemQuantityParams{
		ID:         id,
		OwnerKey:   ownerKey,
		Quantity:   int32(quantity),
		Version:    version,
		MaxCatalog: int32(maxCatalog),
		MaxCustom:  int32(maxCustom),
	})
	if err == nil {
		return item.Response()
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return cartResponse.CartItem{}, fmt.Errorf("failed setting cart item quantity with error=%w", err)
	}

	current, err := queries.FindCartItemByOwnerKey(c, id, ownerKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return cartResponse.CartItem{}, inErrors.NotFound("cart item id=%s not found", id)
	}
	if err != nil {
		return cartResponse.CartItem{}, fmt.Errorf("failed finding cart item with error=%w", err)
	}
	if current.Version != version {
		return cartResponse.CartItem{}, inErrors.Conflict(
			"cart item id=%s was modified, version=%d is stale, current version=%d",
			id,
			version,
			current.Version,
		)
	}
	return cartResponse.CartItem{}, inErrors.Validation(
		"quantity=%d is out of range 1..%d",
		quantity,
		maxQuantity(current, maxCatalog, maxCustom),
	)
}

func maxQuantity(item CartItem, maxCatalog int, maxCustom int) int {
	if item.ProductID == nil {
		return maxCustom
	}
	return maxCatalog
}

func (s *Store) DeleteCartItem(c context.Context, ownerKey string, id uuid.UUID) error {
	deleted, err := s.q(c).DeleteCartItem(c, id, ownerKey)
	if err != nil {
		return fmt.Errorf("failed deleting cart item with error=%w", err)
	}
	if deleted == 0 {
		return inErrors.NotFound("cart item id=%s not found", id)
	}
	return nil
}

func (s *Store) MoveCartItems(c context.Context, fromCartID uuid.UUID, toCartID uuid.UUID) (int64, error) {
	moved, err := s.q(c).MoveCartItems(c, fromCartID, toCartID)
	if err != nil {
		return 0, fmt.Errorf("failed moving cart items with error=%w", err)
	}
	return moved, nil
}

func (s *Store) FindProductById(c context.Context, id uuid.UUID) (productResponse.Product, error) {
	product, err := s.q(c).FindProductById(c, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return productResponse.Product{}, inErrors.NotFound("product id=%s not found", id)
	}
	if err != nil {
		return productResponse.Product{}, fmt.Errorf("failed finding product with error=%w", err)
	}
	return product.Response(), nil
}

func (s *Store) FindProducts(c context.Context) ([]productResponse.Product, error) {
	products, err := s.q(c).FindProducts(c)
	if err != nil {
		return nil, fmt.Errorf("failed finding products with error=%w", err)
	}
	responses := make([]productResponse.Product, 0, len(products))
	for _, product := range products {
		responses = append(responses, product.Response())
	}
	return responses, nil
}

func (s *Store) FindShippingRate(c context.Context, countryCode string) (shippingResponse.ShippingRate, error) {
	rate, err := s.q(c).FindShippingRateByCountryCode(c, countryCode)
	if errors.Is(err, pgx.ErrNoRows) {
		return shippingResponse.ShippingRate{}, inErrors.NotFound("shipping is not offered to countryCode=%s", countryCode)
	}
	if err != nil {
		return shippingResponse.ShippingRate{}, fmt.Errorf("failed finding shipping rate with error=%w", err)
	}
	return rate.Response(), nil
}

func (s *Store) FindShippingRates(c context.Context) ([]shippingResponse.ShippingRate, error) {
	rates, err := s.q(c).FindShippingRates(c)
	if err != nil {
		return nil, fmt.Errorf("failed finding shipping rates with error=%w", err)
	}
	responses := make([]shippingResponse.ShippingRate, 0, len(rates))
	for _, rate := range rates {
		responses = append(responses, rate.Response())
	}
	return responses, nil
}

// InsertQuoteRequest persists the request and its items atomically. Item ids
// and positions are assigned here.
func (s *Store) InsertQuoteRequest(c context.Context, request quoteResponse.QuoteRequest) (quoteResponse.QuoteRequest, error) {
	inserted := quoteResponse.QuoteRequest{}
	err := s.InTx(c, func(c context.Context) error {
		queries := s.q(c)
		row, err := queries.InsertQuoteRequest(c, InsertQuoteRequestParams{
			ID:           request.ID,
			UserID:       request.UserID,
			ContactEmail: request.ContactEmail,
			Notes:        request.Notes,
		})
		if err != nil {
			return fmt.Errorf("failed inserting quote request with error=%w", err)
		}

		params := make([]InsertQuoteItemsParams, 0, len(request.Items))
		for i, item := range request.Items {
			spec, err := item.Spec.MarshalJSON()
			if err != nil {
				return fmt.Errorf("failed encoding quote item spec with error=%w", err)
			}
			params = append(params, InsertQuoteItemsParams{
				ID:             uuid.New(),
				QuoteRequestID: row.ID,
				Position:       int32(i),
				Type:           item.Type,
				CategoryName:   item.CategoryName,
				Spec:           spec,
				Quantity:       int32(item.Quantity),
			})
		}
		if _, err = queries.InsertQuoteItems(c, params); err != nil {
			return fmt.Errorf("failed inserting quote items with error=%w", err)
		}

		items, err := queries.FindQuoteItemsByQuoteRequestIds(c, []uuid.UUID{row.ID})
		if err != nil {
			return fmt.Errorf("failed finding quote items with error=%w", err)
		}
		inserted, err = row.Response(items)
		return err
	})
	return inserted, err
}

func (s *Store) FindQuoteRequest(c context.Context, id uuid.UUID) (quoteResponse.QuoteRequest, error) {
	queries := s.q(c)
	row, err := queries.FindQuoteRequestById(c, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return quoteResponse.QuoteRequest{}, inErrors.NotFound("quote request id=%s not found", id)
	}
	if err != nil {
		return quoteResponse.QuoteRequest{}, fmt.Errorf("failed finding quote request with error=%w", err)
	}
	requests, err := s.attachQuoteItems(c, []QuoteRequest{row})
	if err != nil {
		return quoteResponse.QuoteRequest{}, err
	}
	return requests[0], nil
}

func (s *Store) FindQuoteRequestsByUserId(c context.Context, userID uuid.UUID) ([]quoteResponse.QuoteRequest, error) {
	rows, err := s.q(c).FindQuoteRequestsByUserId(c, userID)
	if err != nil {
		return nil, fmt.Errorf("failed finding quote requests with error=%w", err)
	}
	return s.attachQuoteItems(c, rows)
}

func (s *Store) FindUnsentQuoteRequests(c context.Context, before time.Time, limit int) ([]quoteResponse.QuoteRequest, error) {
	rows, err := s.q(c).FindUnsentQuoteRequests(c, before, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("failed finding unsent quote requests with error=%w", err)
	}
	return s.attachQuoteItems(c, rows)
}

func (s *Store) attachQuoteItems(c context.Context, rows []QuoteRequest) ([]quoteResponse.QuoteRequest, error) {
	if len(rows) == 0 {
		return []quoteResponse.QuoteRequest{}, nil
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	items, err := s.q(c).FindQuoteItemsByQuoteRequestIds(c, ids)
	if err != nil {
		return nil, fmt.Errorf("failed finding quote items with error=%w", err)
	}
	byRequest := make(map[uuid.UUID][]QuoteItem, len(rows))
	for _, item := range items {
		byRequest[item.QuoteRequestID] = append(byRequest[item.QuoteRequestID], item)
	}

	requests := make([]quoteResponse.QuoteRequest, 0, len(rows))
	for _, row := range rows {
		request, err := row.Response(byRequest[row.ID])
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	return requests, nil
}

// TransitionQuoteRequest moves a quote from one status to another only if it
// is still in the expected status when the write lands.
func (s *Store) TransitionQuoteRequest(
	c context.Context,
	id uuid.UUID,
	from quoteResponse.Status,
	to quoteResponse.Status,
	adminPrice *decimal.Decimal,
	responseReceived bool,
) (quoteResponse.QuoteRequest, error) {
	queries := s.q(c)
	row, err := queries.UpdateQuoteRequestStatus(c, UpdateQuoteRequestStatusParams{
		ID:               id,
		FromStatus:       string(from),
		ToStatus:         string(to),
		AdminPrice:       nullableNumeric(adminPrice),
		ResponseReceived: responseReceived,
	})
	if err == nil {
		requests, err := s.attachQuoteItems(c, []QuoteRequest{row})
		if err != nil {
			return quoteResponse.QuoteRequest{}, err
		}
		return requests[0], nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return quoteResponse.QuoteRequest{}, fmt.Errorf("failed updating quote request status with error=%w", err)
	}

	current, err := queries.FindQuoteRequestById(c, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return quoteResponse.QuoteRequest{}, inErrors.NotFound("quote request id=%s not found", id)
	}
	if err != nil {
		return quoteResponse.QuoteRequest{}, fmt.Errorf("failed finding quote request with error=%w", err)
	}
	return quoteResponse.QuoteRequest{}, inErrors.Conflict(
		"quote request id=%s is %s and cannot become %s",
		id,
		current.Status,
		to,
	)
}

func (s *Store) MarkQuoteEmailSent(c context.Context, id uuid.UUID) error {
	if _, err := s.q(c).UpdateQuoteRequestEmailSent(c, id); err != nil {
		return fmt.Errorf("failed marking quote request email sent with error=%w", err)
	}
	return nil
}

func (s *Store) MarkQuoteEmailOpened(c context.Context, id uuid.UUID) error {
	_, err := s.q(c).UpdateQuoteRequestEmailOpened(c, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return inErrors.NotFound("quote request id=%s not found", id)
	}
	if err != nil {
		return fmt.Errorf("failed marking quote request email opened with error=%w", err)
	}
	return nil
}
