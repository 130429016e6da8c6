package service

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is an immutable exchange rate table. Rates are multipliers from
// the canonical currency: display = canonical * Rates[code].
type Snapshot struct {
	Base      string                     `json:"base"`
	Rates     map[string]decimal.Decimal `json:"rates"`
	FetchedAt time.Time                  `json:"fetchedAt"`
}

// NewSnapshot copies rates, upper-cases codes, drops non-positive rates and
// pins the base currency to exactly 1.
func NewSnapshot(base string, rates map[string]decimal.Decimal, fetchedAt time.Time) *Snapshot {
	base = strings.ToUpper(strings.TrimSpace(base))
	copied := make(map[string]decimal.Decimal, len(rates)+1)
	for code, rate := range rates {
		if !rate.IsPositive() {
			continue
		}
		copied[strings.ToUpper(strings.TrimSpace(code))] = rate
	}
	copied[base] = decimal.NewFromInt(1)
	return &Snapshot{Base: base, Rates: copied, FetchedAt: fetchedAt}
}

func NewSnapshotFromFloats(base string, rates map[string]float64, fetchedAt time.Time) *Snapshot {
	converted := make(map[string]decimal.Decimal, len(rates))
	for code, rate := range rates {
		converted[code] = decimal.NewFromFloat(rate)
	}
	return NewSnapshot(base, converted, fetchedAt)
}

// Rate returns the multiplier for code. Unknown codes are treated as the
// canonical currency.
func (s *Snapshot) Rate(code string) decimal.Decimal {
	if rate, ok := s.Rates[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return rate
	}
	return decimal.NewFromInt(1)
}

func (s *Snapshot) Known(code string) bool {
	_, ok := s.Rates[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

func (s *Snapshot) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.FetchedAt) > maxAge
}
