package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/Alturino/storefront/cart/internal/otel"
	"github.com/Alturino/storefront/cart/response"
	"github.com/Alturino/storefront/internal/cache"
	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/metrics"
	inOtel "github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/pricing"
	productResponse "github.com/Alturino/storefront/product/response"
)

const (
	MaxCatalogQuantity = 10
	MaxCustomQuantity  = 100
)

// CartStore is owner scoped: every item operation takes the owner key and
// behaves as if items of other owners do not exist.
type CartStore interface {
	InTx(c context.Context, fn func(c context.Context) error) error
	UpsertCart(c context.Context, ownerKey string, userID *uuid.UUID) (response.Cart, error)
	LockCart(c context.Context, ownerKey string) (response.Cart, error)
	FindCart(c context.Context, ownerKey string) (response.Cart, error)
	InsertCartItem(c context.Context, item response.CartItem) (response.CartItem, error)
	IncrementCartItemQuantity(c context.Context, ownerKey string, id uuid.UUID, delta int, maxCatalog int, maxCustom int) (response.CartItem, error)
	SetCartItemQuantity(c context.Context, ownerKey string, id uuid.UUID, quantity int, version int64, maxCatalog int, maxCustom int) (response.CartItem, error)
	DeleteCartItem(c context.Context, ownerKey string, id uuid.UUID) error
	MoveCartItems(c context.Context, fromCartID uuid.UUID, toCartID uuid.UUID) (int64, error)
}

type ProductFinder interface {
	FindProductById(c context.Context, id uuid.UUID) (productResponse.Product, error)
}

type Pricer interface {
	Price(spec pricing.Spec) (pricing.Quote, error)
}

type CartCache interface {
	Get(c context.Context, key string) (response.Cart, error)
	Set(c context.Context, key string, cart response.Cart) error
	Delete(c context.Context, keys ...string) error
}

// NewItem is a line to add. Exactly one of ProductID and Custom is set.
// OfferPrice is only set by quote acceptance and replaces the computed price
// of a custom lot.
type NewItem struct {
	ProductID  *uuid.UUID
	Color      *string
	Custom     *pricing.Spec
	Quantity   int
	OfferPrice *decimal.Decimal
}

type CartService struct {
	store    CartStore
	products ProductFinder
	pricer   Pricer
	cache    CartCache
	keys     ownerKeys
	group    singleflight.Group
}

func NewCartService(
	store CartStore,
	products ProductFinder,
	pricer Pricer,
	cartCache CartCache,
	secretKey string,
) *CartService {
	return &CartService{
		store:    store,
		products: products,
		pricer:   pricer,
		cache:    cartCache,
		keys:     newOwnerKeys(secretKey),
	}
}

func (svc *CartService) UserOwner(id uuid.UUID) Owner {
	return svc.keys.user(id)
}

func (svc *CartService) AnonymousOwner(token string) Owner {
	return svc.keys.anonymous(token)
}

// ResolveOwner decides whose cart the caller acts on. An authenticated user
// owns their cart and absorbs the items of the anonymous cart named by
// anonymousToken. Without either, a new anonymous token is minted and
// returned so the caller can hand it to the client.
func (svc *CartService) ResolveOwner(
	c context.Context,
	userID *uuid.UUID,
	anonymousToken string,
) (owner Owner, mintedToken string, err error) {
	c, span := otel.Tracer.Start(c, "CartService ResolveOwner")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService ResolveOwner").
		Str(log.KeyProcess, "resolving owner").
		Logger()

	if len(anonymousToken) > maxTokenLength {
		logger.Warn().Int("tokenLength", len(anonymousToken)).Msg("ignoring oversized anonymous token")
		anonymousToken = ""
	}

	if userID == nil {
		if anonymousToken != "" {
			return svc.keys.anonymous(anonymousToken), "", nil
		}
		mintedToken = uuid.NewString()
		logger.Info().Msg("minted anonymous token")
		return svc.keys.anonymous(mintedToken), mintedToken, nil
	}

	owner = svc.keys.user(*userID)
	logger = logger.With().Str(log.KeyOwner, owner.String()).Logger()
	if anonymousToken == "" {
		return owner, "", nil
	}

	if err = svc.merge(logger.WithContext(c), svc.keys.anonymous(anonymousToken), owner); err != nil {
		err = fmt.Errorf("failed merging anonymous cart with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Owner{}, "", err
	}
	return owner, "", nil
}

// merge moves every item of the anonymous cart into the user cart in one
// transaction. Items are appended as they are; identical lines stay separate.
// An empty or missing anonymous cart makes it a no-op, so repeating a merge is
// harmless.
func (svc *CartService) merge(c context.Context, from Owner, to Owner) error {
	c, span := otel.Tracer.Start(c, "CartService merge")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService merge").
		Str(log.KeyProcess, "merging carts").
		Logger()

	var moved int64
	logger.Info().Msg("merging carts")
	err := svc.store.InTx(c, func(c context.Context) error {
		anonymous, err := svc.store.LockCart(c, from.Key())
		if errors.Is(err, inErrors.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed locking anonymous cart with error=%w", err)
		}
		target, err := svc.store.UpsertCart(c, to.Key(), to.userID())
		if err != nil {
			return fmt.Errorf("failed upserting user cart with error=%w", err)
		}
		if anonymous.ID == target.ID {
			return nil
		}
		moved, err = svc.store.MoveCartItems(c, anonymous.ID, target.ID)
		if err != nil {
			return fmt.Errorf("failed moving cart items with error=%w", err)
		}
		return nil
	})
	if err != nil {
		metrics.CartMerges.WithLabelValues("failed").Inc()
		inOtel.RecordError(err, span)
		return err
	}
	if moved == 0 {
		metrics.CartMerges.WithLabelValues("noop").Inc()
		logger.Info().Msg("anonymous cart was empty, nothing merged")
		return nil
	}

	metrics.CartMerges.WithLabelValues("merged").Inc()
	logger.Info().Int64(log.KeyCartItemsMoved, moved).Msg("merged carts")
	svc.invalidate(c, from, to)
	return nil
}

// AddItem validates, prices and appends one line to the owner's cart.
func (svc *CartService) AddItem(
	c context.Context,
	owner Owner,
	item NewItem,
) (response.Cart, response.CartItem, error) {
	c, span := otel.Tracer.Start(c, "CartService AddItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService AddItem").
		Str(log.KeyOwner, owner.String()).
		Int(log.KeyQuantity, item.Quantity).
		Str(log.KeyProcess, "pricing cart item").
		Logger()

	logger.Trace().Msg("pricing cart item")
	line, err := svc.priceItem(logger.WithContext(c), item)
	if err != nil {
		err = fmt.Errorf("failed pricing cart item with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, response.CartItem{}, err
	}
	logger = logger.With().Stringer(log.KeyPrice, line.OfferPrice).Logger()
	logger.Trace().Msg("priced cart item")

	logger = logger.With().Str(log.KeyProcess, "inserting cart item").Logger()
	logger.Trace().Msg("inserting cart item")
	var (
		cart     response.Cart
		inserted response.CartItem
	)
	err = svc.store.InTx(logger.WithContext(c), func(c context.Context) error {
		current, err := svc.store.UpsertCart(c, owner.Key(), owner.userID())
		if err != nil {
			return fmt.Errorf("failed upserting cart with error=%w", err)
		}
		line.ID = uuid.New()
		line.CartID = current.ID
		inserted, err = svc.store.InsertCartItem(c, line)
		if err != nil {
			return fmt.Errorf("failed inserting cart item with error=%w", err)
		}
		cart, err = svc.store.FindCart(c, owner.Key())
		if err != nil {
			return fmt.Errorf("failed finding cart with error=%w", err)
		}
		return nil
	})
	if err != nil {
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, response.CartItem{}, err
	}
	logger.Info().Str(log.KeyCartItemID, inserted.ID.String()).Msg("inserted cart item")

	svc.invalidate(c, owner)
	return cart, inserted, nil
}

func (svc *CartService) priceItem(c context.Context, item NewItem) (response.CartItem, error) {
	switch {
	case item.ProductID != nil && item.Custom != nil:
		return response.CartItem{}, inErrors.Validation("an item is either a catalog product or a custom product, not both")
	case item.ProductID != nil:
		return svc.priceCatalogItem(c, item)
	case item.Custom != nil:
		return svc.priceCustomItem(item)
	default:
		return response.CartItem{}, inErrors.Validation("an item needs a productId or a customProduct")
	}
}

func (svc *CartService) priceCatalogItem(c context.Context, item NewItem) (response.CartItem, error) {
	if item.Quantity < 1 || item.Quantity > MaxCatalogQuantity {
		return response.CartItem{}, inErrors.Validation("quantity=%d must be between 1 and %d", item.Quantity, MaxCatalogQuantity)
	}
	product, err := svc.products.FindProductById(c, *item.ProductID)
	if err != nil {
		return response.CartItem{}, err
	}

	options := map[string]string{}
	if item.Color != nil {
		if !product.HasColor(*item.Color) {
			return response.CartItem{}, inErrors.Validation("color=%q is not offered for productId=%s", *item.Color, product.ID)
		}
		options["color"] = *item.Color
	} else if len(product.Colors) > 0 {
		return response.CartItem{}, inErrors.Validation("productId=%s requires a color", product.ID)
	}

	productID := product.ID
	return response.CartItem{
		ProductID:  &productID,
		Color:      item.Color,
		Title:      product.Name,
		Image:      product.Image,
		Options:    options,
		Quantity:   item.Quantity,
		BasePrice:  product.BasePrice,
		OfferPrice: product.OfferPrice,
	}, nil
}

func (svc *CartService) priceCustomItem(item NewItem) (response.CartItem, error) {
	if item.Quantity < 1 || item.Quantity > MaxCustomQuantity {
		return response.CartItem{}, inErrors.Validation("quantity=%d must be between 1 and %d", item.Quantity, MaxCustomQuantity)
	}
	spec := *item.Custom
	if item.Color != nil {
		var err error
		if spec, err = spec.WithColor(*item.Color); err != nil {
			return response.CartItem{}, err
		}
	}
	quote, err := svc.pricer.Price(spec)
	if err != nil {
		return response.CartItem{}, err
	}

	base, offer := quote.Amount, quote.Amount
	if item.OfferPrice != nil {
		if item.OfferPrice.IsNegative() {
			return response.CartItem{}, inErrors.Validation("offer price=%s must not be negative", item.OfferPrice.String())
		}
		offer = item.OfferPrice.Round(2)
		base = decimal.Max(base, offer)
	}

	return response.CartItem{
		CustomProduct: &spec,
		Title:         quote.Title,
		Options:       spec.Options(),
		Quantity:      item.Quantity,
		BasePrice:     base,
		OfferPrice:    offer,
	}, nil
}

// UpdateQuantity adds delta to the stored quantity in one statement, so
// concurrent updates never overwrite each other.
func (svc *CartService) UpdateQuantity(
	c context.Context,
	owner Owner,
	itemID uuid.UUID,
	delta int,
) (response.CartItem, error) {
	c, span := otel.Tracer.Start(c, "CartService UpdateQuantity")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService UpdateQuantity").
		Str(log.KeyOwner, owner.String()).
		Str(log.KeyCartItemID, itemID.String()).
		Int(log.KeyQuantityDelta, delta).
		Str(log.KeyProcess, "updating cart item quantity").
		Logger()

	if delta == 0 || delta < -MaxCustomQuantity || delta > MaxCustomQuantity {
		err := inErrors.Validation("delta=%d must be non-zero and within %d", delta, MaxCustomQuantity)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CartItem{}, err
	}

	logger.Trace().Msg("updating cart item quantity")
	item, err := svc.store.IncrementCartItemQuantity(
		logger.WithContext(c),
		owner.Key(),
		itemID,
		delta,
		MaxCatalogQuantity,
		MaxCustomQuantity,
	)
	if err != nil {
		err = fmt.Errorf("failed updating cart item quantity with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CartItem{}, err
	}
	logger.Info().Int(log.KeyQuantity, item.Quantity).Msg("updated cart item quantity")

	svc.invalidate(c, owner)
	return item, nil
}

// SetQuantity replaces the quantity only if the item is still at version.
func (svc *CartService) SetQuantity(
	c context.Context,
	owner Owner,
	itemID uuid.UUID,
	quantity int,
	version int64,
) (response.CartItem, error) {
	c, span := otel.Tracer.Start(c, "CartService SetQuantity")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService SetQuantity").
		Str(log.KeyOwner, owner.String()).
		Str(log.KeyCartItemID, itemID.String()).
		Int(log.KeyQuantity, quantity).
		Int64("version", version).
		Str(log.KeyProcess, "setting cart item quantity").
		Logger()

	if quantity < 1 || quantity > MaxCustomQuantity {
		err := inErrors.Validation("quantity=%d must be between 1 and %d", quantity, MaxCustomQuantity)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CartItem{}, err
	}

	logger.Trace().Msg("setting cart item quantity")
	item, err := svc.store.SetCartItemQuantity(
		logger.WithContext(c),
		owner.Key(),
		itemID,
		quantity,
		version,
		MaxCatalogQuantity,
		MaxCustomQuantity,
	)
	if err != nil {
		err = fmt.Errorf("failed setting cart item quantity with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CartItem{}, err
	}
	logger.Info().Msg("set cart item quantity")

	svc.invalidate(c, owner)
	return item, nil
}

func (svc *CartService) RemoveItem(c context.Context, owner Owner, itemID uuid.UUID) error {
	c, span := otel.Tracer.Start(c, "CartService RemoveItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService RemoveItem").
		Str(log.KeyOwner, owner.String()).
		Str(log.KeyCartItemID, itemID.String()).
		Str(log.KeyProcess, "removing cart item").
		Logger()

	logger.Trace().Msg("removing cart item")
	if err := svc.store.DeleteCartItem(logger.WithContext(c), owner.Key(), itemID); err != nil {
		err = fmt.Errorf("failed removing cart item with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("removed cart item")

	svc.invalidate(c, owner)
	return nil
}

// GetCart reads through redis. Concurrent misses for one owner share a
// single store read. An owner without a cart gets an empty one.
func (svc *CartService) GetCart(c context.Context, owner Owner) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService GetCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService GetCart").
		Str(log.KeyOwner, owner.String()).
		Str(log.KeyProcess, "finding cart in cache").
		Logger()

	logger.Trace().Msg("finding cart in cache")
	cart, err := svc.cache.Get(c, owner.Key())
	if err == nil {
		logger.Info().Msg("found cart in cache")
		return cart, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Warn().Err(err).Msg(err.Error())
	}

	logger = logger.With().Str(log.KeyProcess, "finding cart in database").Logger()
	logger.Trace().Msg("finding cart in database")
	c = logger.WithContext(c)
	v, err, shared := svc.group.Do(owner.Key(), func() (interface{}, error) {
		// the read is shared, one caller going away must not fail the others
		c := context.WithoutCancel(c)
		cart, err := svc.store.FindCart(c, owner.Key())
		if errors.Is(err, inErrors.ErrNotFound) {
			cart, err = response.Cart{UserID: owner.userID()}.WithTotals(), nil
		}
		if err != nil {
			return response.Cart{}, err
		}
		if err := svc.cache.Set(c, owner.Key(), cart); err != nil {
			logger.Warn().Err(err).Msg(err.Error())
		}
		return cart, nil
	})
	if err != nil {
		err = fmt.Errorf("failed finding cart with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Bool("shared", shared).Msg("found cart in database")

	return v.(response.Cart), nil
}

// Invalidate drops the cached views of the given owners. Callers that mutate
// carts inside their own transaction call it after commit.
func (svc *CartService) Invalidate(c context.Context, owners ...Owner) {
	svc.invalidate(c, owners...)
}

func (svc *CartService) invalidate(c context.Context, owners ...Owner) {
	keys := make([]string, 0, len(owners))
	for _, owner := range owners {
		keys = append(keys, owner.Key())
	}
	if err := svc.cache.Delete(c, keys...); err != nil {
		logger := zerolog.Ctx(c).With().Str(log.KeyTag, "CartService invalidate").Logger()
		logger.Warn().Err(err).Strs(log.KeyCacheKey, keys).Msg(err.Error())
	}
}
