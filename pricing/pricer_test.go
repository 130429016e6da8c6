package pricing

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inErrors "github.com/Alturino/storefront/internal/errors"
)

func TestPrice(t *testing.T) {
	pricer := NewPricer(DefaultTable())

	tests := []struct {
		name          string
		spec          Spec
		expectedTitle string
		expectedUnit  string
		expectedTotal string
	}{
		{
			name: "given m8 bolt without material should price base plus size",
			spec: Spec{
				Category: CategoryFastener,
				Quantity: 10,
				Fastener: &FastenerOptions{Type: "bolt", Size: "M8"},
			},
			expectedTitle: "Custom Fastener - Bolt, M8",
			expectedUnit:  "3",
			expectedTotal: "30",
		},
		{
			name: "given stainless zinc bolt longer than free length should add every surcharge",
			spec: Spec{
				Category: CategoryFastener,
				Quantity: 10,
				Fastener: &FastenerOptions{
					Type: "bolt", Size: "m8", LengthMM: 40, Material: "Stainless", Finish: "zinc",
				},
			},
			expectedTitle: "Custom Fastener - Bolt, M8, 40mm, Stainless, Zinc",
			expectedUnit:  "5.15",
			expectedTotal: "51.5",
		},
		{
			name: "given waterproof gold jst connector should add pins plating and sealing",
			spec: Spec{
				Category:  CategoryConnector,
				Quantity:  3,
				Connector: &ConnectorOptions{Type: "jst", Pins: 4, Plating: "gold", Waterproof: true},
			},
			expectedTitle: "Custom Connector - JST, 4-pin, Gold, Waterproof",
			expectedUnit:  "14",
			expectedTotal: "42",
		},
		{
			name: "given silicone wire should multiply per metre price by length",
			spec: Spec{
				Category: CategoryWire,
				Quantity: 2,
				Wire: &WireOptions{
					Gauge: 18, LengthM: decimal.RequireFromString("2.5"), Insulation: "silicone", Color: "red",
				},
			},
			expectedTitle: "Custom Wire - 18 AWG, 2.5m, Silicone, Red",
			expectedUnit:  "7",
			expectedTotal: "14",
		},
		{
			name: "given wire shorter than a metre should bill one metre",
			spec: Spec{
				Category: CategoryWire,
				Quantity: 1,
				Wire:     &WireOptions{Gauge: 22, LengthM: decimal.RequireFromString("0.3"), Insulation: "pvc"},
			},
			expectedTitle: "Custom Wire - 22 AWG, 0.3m, PVC",
			expectedUnit:  "1.4",
			expectedTotal: "1.4",
		},
		{
			name: "given unknown option values should price them at zero",
			spec: Spec{
				Category: CategoryFastener,
				Quantity: 1,
				Fastener: &FastenerOptions{Type: "rivet", Size: "M99", Material: "unobtainium"},
			},
			expectedTitle: "Custom Fastener - Rivet, M99, Unobtainium",
			expectedUnit:  "2",
			expectedTotal: "2",
		},
		{
			name:          "given category without options should price base only",
			spec:          Spec{Category: CategoryConnector, Quantity: 5},
			expectedTitle: "Custom Connector",
			expectedUnit:  "5",
			expectedTotal: "25",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			quote, err := pricer.Price(test.spec)
			require.NoError(t, err)
			assert.Equal(t, test.expectedTitle, quote.Title)
			assert.True(t, decimal.RequireFromString(test.expectedUnit).Equal(quote.UnitPrice), "unit=%s", quote.UnitPrice)
			assert.True(t, decimal.RequireFromString(test.expectedTotal).Equal(quote.Amount), "amount=%s", quote.Amount)
		})
	}
}

func TestPriceIsDeterministic(t *testing.T) {
	pricer := NewPricer(DefaultTable())
	specs := []Spec{
		{Category: CategoryFastener, Quantity: 7, Fastener: &FastenerOptions{Type: "nut", Size: "M12", Material: "brass", LengthMM: 55}},
		{Category: CategoryConnector, Quantity: 100, Connector: &ConnectorOptions{Type: "m12", Pins: 8, Gender: "female"}},
		{Category: CategoryWire, Quantity: 9, Wire: &WireOptions{Gauge: 10, LengthM: decimal.RequireFromString("12.75"), Conductor: "tinned copper"}},
	}
	for _, spec := range specs {
		first, err := pricer.Price(spec)
		require.NoError(t, err)
		for range 50 {
			again, err := pricer.Price(spec)
			require.NoError(t, err)
			assert.Equal(t, first.Title, again.Title)
			assert.True(t, first.Amount.Equal(again.Amount))
			assert.True(t, first.UnitPrice.Equal(again.UnitPrice))
		}
	}
}

func TestPriceValidation(t *testing.T) {
	pricer := NewPricer(DefaultTable())

	tests := []struct {
		name string
		spec Spec
	}{
		{name: "unknown category", spec: Spec{Category: "gear", Quantity: 1}},
		{name: "zero quantity", spec: Spec{Category: CategoryWire, Quantity: 0}},
		{name: "mismatched options", spec: Spec{Category: CategoryWire, Quantity: 1, Fastener: &FastenerOptions{}}},
		{
			name: "two option sets",
			spec: Spec{Category: CategoryWire, Quantity: 1, Wire: &WireOptions{}, Connector: &ConnectorOptions{}},
		},
		{name: "quantity above the lot limit", spec: Spec{Category: CategoryFastener, Quantity: 1<<32 + 1}},
		{name: "fastener too long", spec: Spec{Category: CategoryFastener, Quantity: 1, Fastener: &FastenerOptions{LengthMM: 1_001}}},
		{name: "negative fastener length", spec: Spec{Category: CategoryFastener, Quantity: 1, Fastener: &FastenerOptions{LengthMM: -1}}},
		{name: "too many pins", spec: Spec{Category: CategoryConnector, Quantity: 1, Connector: &ConnectorOptions{Pins: 101}}},
		{
			name: "wire too long",
			spec: Spec{Category: CategoryWire, Quantity: 1, Wire: &WireOptions{LengthM: decimal.RequireFromString("1000.5")}},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := pricer.Price(test.spec)
			assert.ErrorIs(t, err, inErrors.ErrValidation)
		})
	}
}

func TestLargestLotFitsMoneyColumn(t *testing.T) {
	pricer := NewPricer(DefaultTable())
	// NUMERIC(12,2)
	limit := decimal.RequireFromString("9999999999.99")

	specs := []Spec{
		{Category: CategoryFastener, Quantity: MaxQuantity, Fastener: &FastenerOptions{
			Type: "nut", Size: "M20", LengthMM: MaxLengthMM, Material: "titanium", Finish: "black-oxide",
		}},
		{Category: CategoryConnector, Quantity: MaxQuantity, Connector: &ConnectorOptions{
			Type: "m12", Pins: MaxPins, Plating: "gold", Waterproof: true,
		}},
		{Category: CategoryWire, Quantity: MaxQuantity, Wire: &WireOptions{
			Gauge: 10, LengthM: decimal.NewFromInt(MaxWireLengthM), Insulation: "ptfe", Conductor: "tinned-copper",
		}},
	}
	for _, spec := range specs {
		t.Run(string(spec.Category), func(t *testing.T) {
			quote, err := pricer.Price(spec)
			require.NoError(t, err)
			assert.True(t, quote.Amount.LessThanOrEqual(limit), "amount=%s", quote.Amount)
		})
	}
}

func TestWithOverrides(t *testing.T) {
	table, err := DefaultTable().WithOverrides(map[string]string{
		"fastener.material.titanium": "9.50",
		"wire:gauge:30":              "0.05",
		"connector:base":             "6",
	})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("9.5").Equal(table.Fastener.Material["titanium"]))
	assert.True(t, decimal.RequireFromString("0.05").Equal(table.Wire.Gauge[30]))
	assert.True(t, decimal.NewFromInt(6).Equal(table.Connector.Base))

	assert.True(t, decimal.NewFromInt(6).Equal(DefaultTable().Fastener.Material["titanium"]), "default table must stay untouched")

	_, err = DefaultTable().WithOverrides(map[string]string{"fastener.thread.fine": "1"})
	assert.ErrorIs(t, err, inErrors.ErrValidation)
	_, err = DefaultTable().WithOverrides(map[string]string{"fastener.base": "-1"})
	assert.ErrorIs(t, err, inErrors.ErrValidation)
}

func TestSpecJSON(t *testing.T) {
	raw := `{"category":"Fasteners","quantity":10,"options":{"type":"bolt","size":"M8","lengthMm":40,"unknownKey":"x"}}`

	spec := Spec{}
	require.NoError(t, json.Unmarshal([]byte(raw), &spec))
	assert.Equal(t, CategoryFastener, spec.Category)
	assert.Equal(t, 10, spec.Quantity)
	require.NotNil(t, spec.Fastener)
	assert.Equal(t, 40, spec.Fastener.LengthMM)
	assert.Nil(t, spec.Wire)

	encoded, err := json.Marshal(spec)
	require.NoError(t, err)
	decoded := Spec{}
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, spec, decoded)

	assert.Equal(t, map[string]string{"type": "Bolt", "size": "M8", "length": "40mm"}, spec.Options())
}

func TestParseCategory(t *testing.T) {
	for name, expected := range map[string]Category{
		"fastener":    CategoryFastener,
		"Fasteners":   CategoryFastener,
		" CONNECTORS": CategoryConnector,
		"wire":        CategoryWire,
	} {
		got, err := ParseCategory(name)
		require.NoError(t, err, name)
		assert.Equal(t, expected, got)
	}
	_, err := ParseCategory("bearings")
	assert.ErrorIs(t, err, inErrors.ErrValidation)
}
