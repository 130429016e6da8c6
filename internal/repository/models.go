package repository

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Cart struct {
	ID        uuid.UUID
	OwnerKey  string
	UserID    *uuid.UUID
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

type CartItem struct {
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
	Version    int64
	CreatedAt  pgtype.Timestamptz
	UpdatedAt  pgtype.Timestamptz
}

type Product struct {
	ID         uuid.UUID
	Name       string
	Image      string
	BasePrice  pgtype.Numeric
	OfferPrice pgtype.Numeric
	Colors     []string
	CreatedAt  pgtype.Timestamptz
	UpdatedAt  pgtype.Timestamptz
}

type ShippingRate struct {
	CountryCode           string
	CountryName           string
	BaseFee               pgtype.Numeric
	FreeShippingThreshold pgtype.Numeric
}

type QuoteRequest struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	ContactEmail     string
	Notes            string
	Status           string
	AdminPrice       pgtype.Numeric
	EmailSent        bool
	EmailOpened      bool
	ResponseReceived bool
	CreatedAt        pgtype.Timestamptz
	UpdatedAt        pgtype.Timestamptz
}

type QuoteItem struct {
	ID             uuid.UUID
	QuoteRequestID uuid.UUID
	Position       int32
	Type           string
	CategoryName   string
	Spec           []byte
	Quantity       int32
}
