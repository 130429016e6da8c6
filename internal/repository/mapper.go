package repository

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	cartResponse "github.com/Alturino/storefront/cart/response"
	"github.com/Alturino/storefront/pricing"
	productResponse "github.com/Alturino/storefront/product/response"
	quoteResponse "github.com/Alturino/storefront/quote/response"
	shippingResponse "github.com/Alturino/storefront/shipping/response"
)

func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{
		Exp:              d.Exponent(),
		InfinityModifier: pgtype.Finite,
		Int:              d.Coefficient(),
		NaN:              false,
		Valid:            true,
	}
}

func nullableNumeric(d *decimal.Decimal) pgtype.Numeric {
	if d == nil {
		return pgtype.Numeric{}
	}
	return numeric(*d)
}

func toDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func toNullableDecimal(n pgtype.Numeric) *decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return nil
	}
	d := decimal.NewFromBigInt(n.Int, n.Exp)
	return &d
}

func (ca Cart) Response(items []CartItem) (cartResponse.Cart, error) {
	cartItems := make([]cartResponse.CartItem, 0, len(items))
	for _, item := range items {
		cartItem, err := item.Response()
		if err != nil {
			return cartResponse.Cart{}, err
		}
		cartItems = append(cartItems, cartItem)
	}
	return cartResponse.Cart{
		ID:        ca.ID,
		UserID:    ca.UserID,
		CartItems: cartItems,
		CreatedAt: ca.CreatedAt.Time,
		UpdatedAt: ca.UpdatedAt.Time,
	}.WithTotals(), nil
}

func (ci CartItem) Response() (cartResponse.CartItem, error) {
	item := cartResponse.CartItem{
		ID:         ci.ID,
		CartID:     ci.CartID,
		ProductID:  ci.ProductID,
		Title:      ci.Title,
		Image:      ci.Image,
		Options:    map[string]string{},
		Quantity:   int(ci.Quantity),
		BasePrice:  toDecimal(ci.BasePrice),
		OfferPrice: toDecimal(ci.OfferPrice),
		Version:    ci.Version,
		CreatedAt:  ci.CreatedAt.Time,
		UpdatedAt:  ci.UpdatedAt.Time,
	}
	if ci.Color.Valid {
		color := ci.Color.String
		item.Color = &color
	}
	if len(ci.Options) > 0 {
		if err := json.Unmarshal(ci.Options, &item.Options); err != nil {
			return cartResponse.CartItem{}, fmt.Errorf("failed unmarshaling options of cartItemId=%s with error=%w", ci.ID, err)
		}
	}
	if len(ci.CustomSpec) > 0 {
		spec := pricing.Spec{}
		if err := json.Unmarshal(ci.CustomSpec, &spec); err != nil {
			return cartResponse.CartItem{}, fmt.Errorf("failed unmarshaling spec of cartItemId=%s with error=%w", ci.ID, err)
		}
		item.CustomProduct = &spec
	}
	return item, nil
}

func insertCartItemParams(item cartResponse.CartItem) (InsertCartItemParams, error) {
	options := item.Options
	if options == nil {
		options = map[string]string{}
	}
	encodedOptions, err := json.Marshal(options)
	if err != nil {
		return InsertCartItemParams{}, err
	}
	var customSpec []byte
	if item.CustomProduct != nil {
		customSpec, err = json.Marshal(item.CustomProduct)
		if err != nil {
			return InsertCartItemParams{}, err
		}
	}
	color := pgtype.Text{}
	if item.Color != nil {
		color = pgtype.Text{String: *item.Color, Valid: true}
	}
	return InsertCartItemParams{
		ID:         item.ID,
		CartID:     item.CartID,
		ProductID:  item.ProductID,
		Color:      color,
		CustomSpec: customSpec,
		Title:      item.Title,
		Image:      item.Image,
		Options:    encodedOptions,
		Quantity:   int32(item.Quantity),
		BasePrice:  numeric(item.BasePrice),
		OfferPrice: numeric(item.OfferPrice),
	}, nil
}

func (p Product) Response() productResponse.Product {
	colors := p.Colors
	if colors == nil {
		colors = []string{}
	}
	return productResponse.Product{
		ID:         p.ID,
		Name:       p.Name,
		Image:      p.Image,
		BasePrice:  toDecimal(p.BasePrice),
		OfferPrice: toDecimal(p.OfferPrice),
		Colors:     colors,
		CreatedAt:  p.CreatedAt.Time,
		UpdatedAt:  p.UpdatedAt.Time,
	}
}

func (s ShippingRate) Response() shippingResponse.ShippingRate {
	return shippingResponse.ShippingRate{
		CountryCode:           s.CountryCode,
		CountryName:           s.CountryName,
		BaseFee:               toDecimal(s.BaseFee),
		FreeShippingThreshold: toNullableDecimal(s.FreeShippingThreshold),
	}
}

func (q QuoteRequest) Response(items []QuoteItem) (quoteResponse.QuoteRequest, error) {
	quoteItems := make([]quoteResponse.QuoteItem, 0, len(items))
	for _, item := range items {
		quoteItem, err := item.Response()
		if err != nil {
			return quoteResponse.QuoteRequest{}, err
		}
		quoteItems = append(quoteItems, quoteItem)
	}
	return quoteResponse.QuoteRequest{
		ID:               q.ID,
		UserID:           q.UserID,
		ContactEmail:     q.ContactEmail,
		Notes:            q.Notes,
		Items:            quoteItems,
		Status:           quoteResponse.Status(q.Status),
		AdminPrice:       toNullableDecimal(q.AdminPrice),
		EmailSent:        q.EmailSent,
		EmailOpened:      q.EmailOpened,
		ResponseReceived: q.ResponseReceived,
		CreatedAt:        q.CreatedAt.Time,
		UpdatedAt:        q.UpdatedAt.Time,
	}, nil
}

func (q QuoteItem) Response() (quoteResponse.QuoteItem, error) {
	spec := pricing.Spec{}
	if err := json.Unmarshal(q.Spec, &spec); err != nil {
		return quoteResponse.QuoteItem{}, fmt.Errorf("failed unmarshaling spec of quoteItemId=%s with error=%w", q.ID, err)
	}
	return quoteResponse.QuoteItem{
		ID:             q.ID,
		QuoteRequestID: q.QuoteRequestID,
		Position:       int(q.Position),
		Type:           q.Type,
		CategoryName:   q.CategoryName,
		Spec:           spec,
		Quantity:       int(q.Quantity),
	}, nil
}
