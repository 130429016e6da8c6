package request

type Convert struct {
	Amount   string `json:"amount"   validate:"required,numeric"`
	Currency string `json:"currency" validate:"required,currency"`
}
