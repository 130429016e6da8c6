package pricing

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	inErrors "github.com/Alturino/storefront/internal/errors"
)

type FastenerTable struct {
	Base         decimal.Decimal
	Type         map[string]decimal.Decimal
	Size         map[string]decimal.Decimal
	Material     map[string]decimal.Decimal
	Finish       map[string]decimal.Decimal
	FreeLengthMM int
	PerExtraMM   decimal.Decimal
}

type ConnectorTable struct {
	Base       decimal.Decimal
	PerPin     decimal.Decimal
	Type       map[string]decimal.Decimal
	Plating    map[string]decimal.Decimal
	Waterproof decimal.Decimal
}

type WireTable struct {
	BasePerMetre decimal.Decimal
	Gauge        map[int]decimal.Decimal
	Insulation   map[string]decimal.Decimal
	Conductor    map[string]decimal.Decimal
}

// Table holds every amount the pricer uses, in the canonical currency.
type Table struct {
	Fastener  FastenerTable
	Connector ConnectorTable
	Wire      WireTable
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func DefaultTable() Table {
	return Table{
		Fastener: FastenerTable{
			Base: d("2.00"),
			Type: map[string]decimal.Decimal{
				"bolt": d("0"), "screw": d("0"), "nut": d("0.50"), "washer": d("0"),
			},
			Size: map[string]decimal.Decimal{
				"m3": d("0"), "m4": d("0.20"), "m5": d("0.40"), "m6": d("0.60"), "m8": d("1.00"),
				"m10": d("1.60"), "m12": d("2.40"), "m16": d("4.00"), "m20": d("6.00"),
			},
			Material: map[string]decimal.Decimal{
				"steel": d("0"), "stainless": d("1.50"), "brass": d("2.00"), "titanium": d("6.00"),
			},
			Finish: map[string]decimal.Decimal{
				"plain": d("0"), "zinc": d("0.25"), "black-oxide": d("0.30"),
			},
			FreeLengthMM: 20,
			PerExtraMM:   d("0.02"),
		},
		Connector: ConnectorTable{
			Base:   d("5.00"),
			PerPin: d("0.50"),
			Type: map[string]decimal.Decimal{
				"jst": d("0"), "molex": d("0.50"), "dupont": d("0"), "xt60": d("3.00"), "m12": d("8.00"),
			},
			Plating: map[string]decimal.Decimal{
				"tin": d("0"), "gold": d("3.00"),
			},
			Waterproof: d("4.00"),
		},
		Wire: WireTable{
			BasePerMetre: d("1.00"),
			Gauge: map[int]decimal.Decimal{
				10: d("4.00"), 12: d("3.00"), 14: d("2.20"), 16: d("1.50"), 18: d("1.00"),
				20: d("0.60"), 22: d("0.40"), 24: d("0.25"), 26: d("0.15"),
			},
			Insulation: map[string]decimal.Decimal{
				"pvc": d("0"), "silicone": d("0.80"), "ptfe": d("1.50"),
			},
			Conductor: map[string]decimal.Decimal{
				"copper": d("0"), "tinned-copper": d("0.30"),
			},
		},
	}
}

// WithOverrides returns a copy of t with entries replaced. Keys look like
// "fastener:base", "fastener:material:titanium", "connector:per_pin" or
// "wire:gauge:18". Dots are accepted as separators too, but viper splits
// dotted config keys into nested maps, so config files use colons.
func (t Table) WithOverrides(overrides map[string]string) (Table, error) {
	out := t.clone()
	for key, raw := range overrides {
		amount, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil || amount.IsNegative() {
			return Table{}, inErrors.Validation("invalid price override %s=%q", key, raw)
		}
		parts := strings.SplitN(strings.ReplaceAll(strings.ToLower(key), ":", "."), ".", 3)
		if err := out.set(parts, amount); err != nil {
			return Table{}, err
		}
	}
	return out, nil
}

func (t *Table) set(parts []string, amount decimal.Decimal) error {
	invalid := inErrors.Validation("unknown price override key=%q", strings.Join(parts, "."))
	if len(parts) == 2 {
		switch parts[0] + "." + parts[1] {
		case "fastener.base":
			t.Fastener.Base = amount
		case "fastener.per_extra_mm":
			t.Fastener.PerExtraMM = amount
		case "connector.base":
			t.Connector.Base = amount
		case "connector.per_pin":
			t.Connector.PerPin = amount
		case "connector.waterproof":
			t.Connector.Waterproof = amount
		case "wire.base_per_metre":
			t.Wire.BasePerMetre = amount
		default:
			return invalid
		}
		return nil
	}
	if len(parts) != 3 {
		return invalid
	}

	var target map[string]decimal.Decimal
	switch parts[0] + "." + parts[1] {
	case "fastener.type":
		target = t.Fastener.Type
	case "fastener.size":
		target = t.Fastener.Size
	case "fastener.material":
		target = t.Fastener.Material
	case "fastener.finish":
		target = t.Fastener.Finish
	case "connector.type":
		target = t.Connector.Type
	case "connector.plating":
		target = t.Connector.Plating
	case "wire.insulation":
		target = t.Wire.Insulation
	case "wire.conductor":
		target = t.Wire.Conductor
	case "wire.gauge":
		gauge, err := strconv.Atoi(parts[2])
		if err != nil {
			return invalid
		}
		t.Wire.Gauge[gauge] = amount
		return nil
	default:
		return invalid
	}
	target[parts[2]] = amount
	return nil
}

func (t Table) clone() Table {
	out := t
	out.Fastener.Type = cloneMap(t.Fastener.Type)
	out.Fastener.Size = cloneMap(t.Fastener.Size)
	out.Fastener.Material = cloneMap(t.Fastener.Material)
	out.Fastener.Finish = cloneMap(t.Fastener.Finish)
	out.Connector.Type = cloneMap(t.Connector.Type)
	out.Connector.Plating = cloneMap(t.Connector.Plating)
	out.Wire.Insulation = cloneMap(t.Wire.Insulation)
	out.Wire.Conductor = cloneMap(t.Wire.Conductor)
	out.Wire.Gauge = cloneMap(t.Wire.Gauge)
	return out
}

func cloneMap[K comparable](m map[K]decimal.Decimal) map[K]decimal.Decimal {
	out := make(map[K]decimal.Decimal, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
