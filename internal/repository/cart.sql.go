package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const upsertCart = `-- name: UpsertCart :one
INSERT INTO carts (id, owner_key, user_id)
VALUES ($1, $2, $3)
ON CONFLICT (owner_key) DO UPDATE SET updated_at = now()
RETURNING id, owner_key, user_id, created_at, updated_at
`

type UpsertCartParams struct {
	ID       uuid.UUID
	OwnerKey string
	UserID   *uuid.UUID
}

// UpsertCart finds or creates the cart of an owner. Inside a transaction the
// returned row stays locked until commit.
func (q *Queries) UpsertCart(c context.Context, arg UpsertCartParams) (Cart, error) {
	row := q.db.QueryRow(c, upsertCart, arg.ID, arg.OwnerKey, arg.UserID)
	var i Cart
	err := row.Scan(&i.ID, &i.OwnerKey, &i.UserID, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const findCartByOwnerKey = `-- name: FindCartByOwnerKey :one
SELECT id, owner_key, user_id, created_at, updated_at
FROM carts
WHERE owner_key = $1
`

func (q *Queries) FindCartByOwnerKey(c context.Context, ownerKey string) (Cart, error) {
	row := q.db.QueryRow(c, findCartByOwnerKey, ownerKey)
	var i Cart
	err := row.Scan(&i.ID, &i.OwnerKey, &i.UserID, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const lockCartByOwnerKey = `-- name: LockCartByOwnerKey :one
SELECT id, owner_key, user_id, created_at, updated_at
FROM carts
WHERE owner_key = $1
FOR UPDATE
`

func (q *Queries) LockCartByOwnerKey(c context.Context, ownerKey string) (Cart, error) {
	row := q.db.QueryRow(c, lockCartByOwnerKey, ownerKey)
	var i Cart
	err := row.Scan(&i.ID, &i.OwnerKey, &i.UserID, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const cartItemColumns = `ci.id, ci.cart_id, ci.product_id, ci.color, ci.custom_spec, ci.title, ci.image,
ci.options, ci.quantity, ci.base_price, ci.offer_price, ci.version, ci.created_at, ci.updated_at`

func scanCartItem(row pgx.Row) (CartItem, error) {
	var i CartItem
	err := row.Scan(
		&i.ID,
		&i.CartID,
		&i.ProductID,
		&i.Color,
		&i.CustomSpec,
		&i.Title,
		&i.Image,
		&i.Options,
		&i.Quantity,
		&i.BasePrice,
		&i.OfferPrice,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const findCartItemsByCartId = `-- name: FindCartItemsByCartId :many
SELECT ` + cartItemColumns + `
FROM cart_items ci
WHERE ci.cart_id = $1
ORDER BY ci.created_at, ci.id
`

func (q *Queries) FindCartItemsByCartId(c context.Context, cartID uuid.UUID) ([]CartItem, error) {
	rows, err := q.db.Query(c, findCartItemsByCartId, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []CartItem{}
	for rows.Next() {
		i, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const findCartItemByOwnerKey = `-- name: FindCartItemByOwnerKey :one
SELECT ` + cartItemColumns + `
FROM cart_items ci
JOIN carts ca ON ca.id = ci.cart_id
WHERE ci.id = $1 AND ca.owner_key = $2
`

func (q *Queries) FindCartItemByOwnerKey(c context.Context, id uuid.UUID, ownerKey string) (CartItem, error) {
	return scanCartItem(q.db.QueryRow(c, findCartItemByOwnerKey, id, ownerKey))
}

const insertCartItem = `-- name: InsertCartItem :one
INSERT INTO cart_items AS ci (
    id, cart_id, product_id, color, custom_spec, title, image, options, quantity, base_price, offer_price
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + cartItemColumns

type InsertCartItemParams struct {
	ID         uuid.UUID
	CartID     uuid.UUID
	ProductID  *uuid.UUID
	Color      pgtype.Text
	CustomSpec []byte
	Title      string
	Image      string
	Options    []byte
	Quantity   int32
	BasePrice  pgtype.Numeric
	OfferPrice pgtype.Numeric
}

func (q *Queries) InsertCartItem(c context.Context, arg InsertCartItemParams) (CartItem, error) {
	var customSpec interface{}
	if arg.CustomSpec != nil {
		customSpec = arg.CustomSpec
	}
	row := q.db.QueryRow(c, insertCartItem,
		arg.ID,
		arg.CartID,
		arg.ProductID,
		arg.Color,
		customSpec,
		arg.Title,
		arg.Image,
		arg.Options,
		arg.Quantity,
		arg.BasePrice,
		arg.OfferPrice,
	)
	return scanCartItem(row)
}

const incrementCartItemQuantity = `-- name: IncrementCartItemQuantity :one
UPDATE cart_items ci
SET quantity = ci.quantity + $3, version = ci.version + 1, updated_at = clock_timestamp()
FROM carts ca
WHERE ci.id = $1
  AND ci.cart_id = ca.id
  AND ca.owner_key = $2
  AND ci.quantity + $3 BETWEEN 1 AND CASE WHEN ci.product_id IS NULL THEN $5::int ELSE $4::int END
RETURNING ` + cartItemColumns

type IncrementCartItemQuantityParams struct {
	ID         uuid.UUID
	OwnerKey   string
	Delta      int32
	MaxCatalog int32
	MaxCustom  int32
}

// IncrementCartItemQuantity applies delta against the committed quantity in a
// single statement. No row means the item is not the owner's or the result
// would leave the bounds.
func (q *Queries) IncrementCartItemQuantity(c context.Context, arg IncrementCartItemQuantityParams) (CartItem, error) {
	row := q.db.QueryRow(c, incrementCartItemQuantity, arg.ID, arg.OwnerKey, arg.Delta, arg.MaxCatalog, arg.MaxCustom)
	return scanCartItem(row)
}

const setCartItemQuantity = `-- name: SetCartItemQuantity :one
UPDATE cart_items ci
SET quantity = $3, version = ci.version + 1, updated_at = clock_timestamp()
FROM carts ca
WHERE ci.id = $1
  AND ci.cart_id = ca.id
  AND ca.owner_key = $2
  AND ci.version = $4
  AND $3 BETWEEN 1 AND CASE WHEN ci.product_id IS NULL THEN $6::int ELSE $5::int END
RETURNING ` + cartItemColumns

type SetCartItemQuantityParams struct {
	ID         uuid.UUID
	OwnerKey   string
	Quantity   int32
	Version    int64
	MaxCatalog int32
	MaxCustom  int32
}

func (q *Queries) SetCartItemQuantity(c context.Context, arg SetCartItemQuantityParams) (CartItem, error) {
	row := q.db.QueryRow(c, setCartItemQuantity,
		arg.ID,
		arg.OwnerKey,
		arg.Quantity,
		arg.Version,
		arg.MaxCatalog,
		arg.MaxCustom,
	)
	return scanCartItem(row)
}

const deleteCartItem = `-- name: DeleteCartItem :execrows
DELETE FROM cart_items ci
USING carts ca
WHERE ci.id = $1 AND ci.cart_id = ca.id AND ca.owner_key = $2
`

func (q *Queries) DeleteCartItem(c context.Context, id uuid.UUID, ownerKey string) (int64, error) {
	result, err := q.db.Exec(c, deleteCartItem, id, ownerKey)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const moveCartItems = `-- name: MoveCartItems :execrows
UPDATE cart_items
SET cart_id = $2, updated_at = clock_timestamp()
WHERE cart_id = $1
`

func (q *Queries) MoveCartItems(c context.Context, fromCartID uuid.UUID, toCartID uuid.UUID) (int64, error) {
	result, err := q.db.Exec(c, moveCartItems, fromCartID, toCartID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
