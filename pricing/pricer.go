// Package pricing prices custom products from their specification alone.
// Price and title are pure functions of the Spec and the Table: no clock,
// randomness or I/O is involved.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Quote is the priced form of a Spec. Amount is UnitPrice times the spec
// quantity; both are canonical currency amounts rounded to 2 places.
type Quote struct {
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Amount    decimal.Decimal `json:"amount"`
}

type Pricer struct {
	table Table
}

func NewPricer(table Table) *Pricer {
	return &Pricer{table: table.clone()}
}

func (p *Pricer) Price(spec Spec) (Quote, error) {
	if err := spec.Validate(); err != nil {
		return Quote{}, err
	}

	var unit decimal.Decimal
	switch spec.Category {
	case CategoryFastener:
		unit = p.fastenerUnit(spec.Fastener)
	case CategoryConnector:
		unit = p.connectorUnit(spec.Connector)
	case CategoryWire:
		unit = p.wireUnit(spec.Wire)
	}
	unit = unit.Round(2)

	return Quote{
		Title:     spec.Title(),
		UnitPrice: unit,
		Amount:    unit.Mul(decimal.NewFromInt(int64(spec.Quantity))),
	}, nil
}

func lookup(m map[string]decimal.Decimal, key string) decimal.Decimal {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.ReplaceAll(key, " ", "-")
	return m[key]
}

func (p *Pricer) fastenerUnit(o *FastenerOptions) decimal.Decimal {
	t := p.table.Fastener
	if o == nil {
		return t.Base
	}
	unit := t.Base.
		Add(lookup(t.Type, o.Type)).
		Add(lookup(t.Size, o.Size)).
		Add(lookup(t.Material, o.Material)).
		Add(lookup(t.Finish, o.Finish))
	if extra := o.LengthMM - t.FreeLengthMM; extra > 0 {
		unit = unit.Add(t.PerExtraMM.Mul(decimal.NewFromInt(int64(extra))))
	}
	return unit
}

func (p *Pricer) connectorUnit(o *ConnectorOptions) decimal.Decimal {
	t := p.table.Connector
	if o == nil {
		return t.Base
	}
	unit := t.Base.
		Add(lookup(t.Type, o.Type)).
		Add(lookup(t.Plating, o.Plating))
	if o.Pins > 0 {
		unit = unit.Add(t.PerPin.Mul(decimal.NewFromInt(int64(o.Pins))))
	}
	if o.Waterproof {
		unit = unit.Add(t.Waterproof)
	}
	return unit
}

func (p *Pricer) wireUnit(o *WireOptions) decimal.Decimal {
	t := p.table.Wire
	if o == nil {
		return t.BasePerMetre
	}
	perMetre := t.BasePerMetre.
		Add(t.Gauge[o.Gauge]).
		Add(lookup(t.Insulation, o.Insulation)).
		Add(lookup(t.Conductor, o.Conductor))

	length := o.LengthM
	if length.LessThan(decimal.NewFromInt(1)) {
		length = decimal.NewFromInt(1)
	}
	return perMetre.Mul(length)
}
