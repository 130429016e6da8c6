package response

import "github.com/shopspring/decimal"

// WithTotals recomputes the derived totals from the items.
func (c Cart) WithTotals() Cart {
	if c.CartItems == nil {
		c.CartItems = []CartItem{}
	}
	c.ItemCount = 0
	c.BaseSubtotal = decimal.Zero
	c.Subtotal = decimal.Zero
	for _, item := range c.CartItems {
		quantity := decimal.NewFromInt(int64(item.Quantity))
		c.ItemCount += item.Quantity
		c.BaseSubtotal = c.BaseSubtotal.Add(item.BasePrice.Mul(quantity))
		c.Subtotal = c.Subtotal.Add(item.OfferPrice.Mul(quantity))
	}
	return c
}
