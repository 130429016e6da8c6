package response

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alturino/storefront/pricing"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusQuoted   Status = "QUOTED"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
)

func (s Status) IsTerminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// QuoteRequest tracks the status and the three notification flags
// separately. The flags only ever flip to true and never gate a status change.
type QuoteRequest struct {
	ID               uuid.UUID        `json:"id"`
	UserID           uuid.UUID        `json:"userId"`
	ContactEmail     string           `json:"contactEmail"`
	Notes            string           `json:"notes"`
	Items            []QuoteItem      `json:"items"`
	Status           Status           `json:"status"`
	AdminPrice       *decimal.Decimal `json:"adminPrice"`
	EmailSent        bool             `json:"emailSent"`
	EmailOpened      bool             `json:"emailOpened"`
	ResponseReceived bool             `json:"responseReceived"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

type QuoteItem struct {
	ID             uuid.UUID    `json:"id"`
	QuoteRequestID uuid.UUID    `json:"quoteRequestId"`
	Position       int          `json:"position"`
	Type           string       `json:"type"`
	CategoryName   string       `json:"categoryName"`
	Spec           pricing.Spec `json:"specifications"`
	Quantity       int          `json:"quantity"`
}
