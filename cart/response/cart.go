package response

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alturino/storefront/pricing"
)

type Cart struct {
	ID           uuid.UUID       `json:"id"`
	UserID       *uuid.UUID      `json:"userId"`
	CartItems    []CartItem      `json:"cartItems"`
	ItemCount    int             `json:"itemCount"`
	BaseSubtotal decimal.Decimal `json:"baseSubtotal"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// CartItem is one line of a cart. Exactly one of ProductID and CustomProduct
// is set. Prices are canonical unit prices; for a custom line the unit is the
// whole lot described by CustomProduct.
type CartItem struct {
	ID            uuid.UUID         `json:"id"`
	CartID        uuid.UUID         `json:"cartId"`
	ProductID     *uuid.UUID        `json:"productId,omitempty"`
	Color         *string           `json:"color,omitempty"`
	CustomProduct *pricing.Spec     `json:"customProduct,omitempty"`
	Title         string            `json:"title"`
	Image         string            `json:"image"`
	Options       map[string]string `json:"options"`
	Quantity      int               `json:"quantity"`
	BasePrice     decimal.Decimal   `json:"basePrice"`
	OfferPrice    decimal.Decimal   `json:"offerPrice"`
	Version       int64             `json:"version"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

func (i CartItem) IsCustom() bool {
	return i.CustomProduct != nil
}
