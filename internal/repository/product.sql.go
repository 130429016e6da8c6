package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const productColumns = `id, name, image, base_price, offer_price, colors, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var i Product
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Image,
		&i.BasePrice,
		&i.OfferPrice,
		&i.Colors,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const findProductById = `-- name: FindProductById :one
SELECT ` + productColumns + `
FROM products
WHERE id = $1
`

func (q *Queries) FindProductById(c context.Context, id uuid.UUID) (Product, error) {
	return scanProduct(q.db.QueryRow(c, findProductById, id))
}

const findProducts = `-- name: FindProducts :many
SELECT ` + productColumns + `
FROM products
ORDER BY name
`

func (q *Queries) FindProducts(c context.Context) ([]Product, error) {
	rows, err := q.db.Query(c, findProducts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		i, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}
