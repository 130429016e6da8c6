package request

import (
	"encoding/json"

	"github.com/google/uuid"
)

// CustomProduct is the buyer's description of a made-to-spec product.
// Quantity is the lot size; zero means a lot of one.
type CustomProduct struct {
	Category string          `json:"category" validate:"required"`
	Quantity int             `json:"quantity" validate:"gte=0,lte=100000"`
	Options  json.RawMessage `json:"options"`
}

// AddCartItem carries either a catalog reference or a custom product.
type AddCartItem struct {
	ProductID     *uuid.UUID     `json:"productId"     validate:"required_without=CustomProduct,excluded_with=CustomProduct"`
	CustomProduct *CustomProduct `json:"customProduct" validate:"required_without=ProductID"`
	Color         *string        `json:"color"`
	Quantity      int            `json:"quantity"      validate:"required"`
}

// UpdateCartItem either applies a relative delta or sets an absolute quantity
// guarded by the version the client last saw. Exactly one of Delta and
// Quantity is set.
type UpdateCartItem struct {
	Delta    *int   `json:"delta"`
	Quantity *int   `json:"quantity"`
	Version  *int64 `json:"version"`
}
