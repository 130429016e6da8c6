package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const quoteRequestColumns = `id, user_id, contact_email, notes, status, admin_price, email_sent, email_opened,
response_received, created_at, updated_at`

func scanQuoteRequest(row pgx.Row) (QuoteRequest, error) {
	var i QuoteRequest
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.ContactEmail,
		&i.Notes,
		&i.Status,
		&i.AdminPrice,
		&i.EmailSent,
		&i.EmailOpened,
		&i.ResponseReceived,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectQuoteRequests(rows pgx.Rows, err error) ([]QuoteRequest, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	requests := []QuoteRequest{}
	for rows.Next() {
		i, err := scanQuoteRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}

const insertQuoteRequest = `-- name: InsertQuoteRequest :one
INSERT INTO quote_requests (id, user_id, contact_email, notes)
VALUES ($1, $2, $3, $4)
RETURNING ` + quoteRequestColumns

type InsertQuoteRequestParams struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	ContactEmail string
	Notes        string
}

func (q *Queries) InsertQuoteRequest(c context.Context, arg InsertQuoteRequestParams) (QuoteRequest, error) {
	row := q.db.QueryRow(c, insertQuoteRequest, arg.ID, arg.UserID, arg.ContactEmail, arg.Notes)
	return scanQuoteRequest(row)
}

type InsertQuoteItemsParams struct {
	ID             uuid.UUID
	QuoteRequestID uuid.UUID
	Position       int32
	Type           string
	CategoryName   string
	Spec           []byte
	Quantity       int32
}

func (q *Queries) InsertQuoteItems(c context.Context, arg []InsertQuoteItemsParams) (int64, error) {
	return q.db.CopyFrom(
		c,
		pgx.Identifier{"quote_items"},
		[]string{"id", "quote_request_id", "position", "type", "category_name", "spec", "quantity"},
		pgx.CopyFromSlice(len(arg), func(i int) ([]any, error) {
			return []any{
				arg[i].ID,
				arg[i].QuoteRequestID,
				arg[i].Position,
				arg[i].Type,
				arg[i].CategoryName,
				arg[i].Spec,
				arg[i].Quantity,
			}, nil
		}),
	)
}

const findQuoteRequestById = `-- name: FindQuoteRequestById :one
SELECT ` + quoteRequestColumns + `
FROM quote_requests
WHERE id = $1
`

func (q *Queries) FindQuoteRequestById(c context.Context, id uuid.UUID) (QuoteRequest, error) {
	return scanQuoteRequest(q.db.QueryRow(c, findQuoteRequestById, id))
}

const findQuoteRequestsByUserId = `-- name: FindQuoteRequestsByUserId :many
SELECT ` + quoteRequestColumns + `
FROM quote_requests
WHERE user_id = $1
ORDER BY created_at DESC
`

func (q *Queries) FindQuoteRequestsByUserId(c context.Context, userID uuid.UUID) ([]QuoteRequest, error) {
	return collectQuoteRequests(q.db.Query(c, findQuoteRequestsByUserId, userID))
}

const findUnsentQuoteRequests = `-- name: FindUnsentQuoteRequests :many
SELECT ` + quoteRequestColumns + `
FROM quote_requests
WHERE NOT email_sent AND created_at < $1
ORDER BY created_at
LIMIT $2
`

func (q *Queries) FindUnsentQuoteRequests(c context.Context, before time.Time, limit int32) ([]QuoteRequest, error) {
	return collectQuoteRequests(q.db.Query(c, findUnsentQuoteRequests, before, limit))
}

const findQuoteItemsByQuoteRequestIds = `-- name: FindQuoteItemsByQuoteRequestIds :many
SELECT id, quote_request_id, position, type, category_name, spec, quantity
FROM quote_items
WHERE quote_request_id = ANY($1::uuid[])
ORDER BY quote_request_id, position
`

func (q *Queries) FindQuoteItemsByQuoteRequestIds(c context.Context, ids []uuid.UUID) ([]QuoteItem, error) {
	rows, err := q.db.Query(c, findQuoteItemsByQuoteRequestIds, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []QuoteItem{}
	for rows.Next() {
		var i QuoteItem
		if err := rows.Scan(
			&i.ID,
			&i.QuoteRequestID,
			&i.Position,
			&i.Type,
			&i.CategoryName,
			&i.Spec,
			&i.Quantity,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateQuoteRequestStatus = `-- name: UpdateQuoteRequestStatus :one
UPDATE quote_requests
SET status = $3,
    admin_price = COALESCE($4, admin_price),
    response_received = response_received OR $5,
    updated_at = clock_timestamp()
WHERE id = $1 AND status = $2
RETURNING ` + quoteRequestColumns

type UpdateQuoteRequestStatusParams struct {
	ID               uuid.UUID
	FromStatus       string
	ToStatus         string
	AdminPrice       pgtype.Numeric
	ResponseReceived bool
}

// UpdateQuoteRequestStatus is a compare and swap on status. pgx.ErrNoRows
// means the quote is missing or no longer in FromStatus.
func (q *Queries) UpdateQuoteRequestStatus(c context.Context, arg UpdateQuoteRequestStatusParams) (QuoteRequest, error) {
	row := q.db.QueryRow(c, updateQuoteRequestStatus,
		arg.ID,
		arg.FromStatus,
		arg.ToStatus,
		arg.AdminPrice,
		arg.ResponseReceived,
	)
	return scanQuoteRequest(row)
}

const updateQuoteRequestEmailSent = `-- name: UpdateQuoteRequestEmailSent :execrows
UPDATE quote_requests
SET email_sent = true, updated_at = clock_timestamp()
WHERE id = $1 AND NOT email_sent
`

func (q *Queries) UpdateQuoteRequestEmailSent(c context.Context, id uuid.UUID) (int64, error) {
	result, err := q.db.Exec(c, updateQuoteRequestEmailSent, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const updateQuoteRequestEmailOpened = `-- name: UpdateQuoteRequestEmailOpened :one
UPDATE quote_requests
SET email_opened = true, updated_at = CASE WHEN email_opened THEN updated_at ELSE clock_timestamp() END
WHERE id = $1
RETURNING id
`

func (q *Queries) UpdateQuoteRequestEmailOpened(c context.Context, id uuid.UUID) (uuid.UUID, error) {
	var updated uuid.UUID
	err := q.db.QueryRow(c, updateQuoteRequestEmailOpened, id).Scan(&updated)
	return updated, err
}
