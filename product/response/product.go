package response

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	Image      string          `json:"image"`
	BasePrice  decimal.Decimal `json:"basePrice"`
	OfferPrice decimal.Decimal `json:"offerPrice"`
	Colors     []string        `json:"colors"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// HasColor reports whether color may be ordered. Products without a color
// list accept any color, including none.
func (p Product) HasColor(color string) bool {
	if len(p.Colors) == 0 {
		return true
	}
	return slices.ContainsFunc(p.Colors, func(c string) bool { return strings.EqualFold(c, color) })
}
