package pricing

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	inErrors "github.com/Alturino/storefront/internal/errors"
)

type Category string

const (
	CategoryFastener  Category = "fastener"
	CategoryConnector Category = "connector"
	CategoryWire      Category = "wire"
)

// Upper bounds keep a lot's amount inside the NUMERIC(12,2) money columns
// for any default table price.
const (
	MaxQuantity    = 100_000
	MaxLengthMM    = 1_000
	MaxPins        = 100
	MaxWireLengthM = 1_000
)

// ParseCategory accepts the catalog spelling of a family ("Fasteners",
// "connector", " WIRES ") and returns its Category.
func ParseCategory(name string) (Category, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimSuffix(n, "s")
	switch Category(n) {
	case CategoryFastener, CategoryConnector, CategoryWire:
		return Category(n), nil
	default:
		return "", inErrors.Validation("unknown product category=%q", name)
	}
}

type FastenerOptions struct {
	Type     string `json:"type,omitempty"`
	Size     string `json:"size,omitempty"`
	LengthMM int    `json:"lengthMm,omitempty"`
	Material string `json:"material,omitempty"`
	Finish   string `json:"finish,omitempty"`
	Color    string `json:"color,omitempty"`
}

type ConnectorOptions struct {
	Type       string `json:"type,omitempty"`
	Pins       int    `json:"pins,omitempty"`
	Gender     string `json:"gender,omitempty"`
	Plating    string `json:"plating,omitempty"`
	Waterproof bool   `json:"waterproof,omitempty"`
	Color      string `json:"color,omitempty"`
}

type WireOptions struct {
	Gauge      int             `json:"gauge,omitempty"`
	LengthM    decimal.Decimal `json:"lengthM"`
	Insulation string          `json:"insulation,omitempty"`
	Conductor  string          `json:"conductor,omitempty"`
	Color      string          `json:"color,omitempty"`
}

// Spec fully describes a custom product. Exactly one option set is present
// and it matches Category.
type Spec struct {
	Category  Category
	Quantity  int
	Fastener  *FastenerOptions
	Connector *ConnectorOptions
	Wire      *WireOptions
}

type specJSON struct {
	Category Category        `json:"category"`
	Quantity int             `json:"quantity"`
	Options  json.RawMessage `json:"options,omitempty"`
}

// ParseSpec builds a Spec from a category name and a raw option object.
// Keys the category does not know are ignored.
func ParseSpec(categoryName string, quantity int, options json.RawMessage) (Spec, error) {
	category, err := ParseCategory(categoryName)
	if err != nil {
		return Spec{}, err
	}
	spec := Spec{Category: category, Quantity: quantity}
	if len(options) == 0 || string(options) == "null" {
		options = json.RawMessage("{}")
	}

	switch category {
	case CategoryFastener:
		spec.Fastener = &FastenerOptions{}
		err = json.Unmarshal(options, spec.Fastener)
	case CategoryConnector:
		spec.Connector = &ConnectorOptions{}
		err = json.Unmarshal(options, spec.Connector)
	case CategoryWire:
		spec.Wire = &WireOptions{}
		err = json.Unmarshal(options, spec.Wire)
	}
	if err != nil {
		return Spec{}, inErrors.Validation("invalid %s options: %s", category, err.Error())
	}
	return spec, nil
}

// WithColor returns a copy of s with its color option set. A spec that
// already names a different color is rejected.
func (s Spec) WithColor(color string) (Spec, error) {
	color = strings.TrimSpace(color)
	var current *string
	switch s.Category {
	case CategoryFastener:
		o := FastenerOptions{}
		if s.Fastener != nil {
			o = *s.Fastener
		}
		s.Fastener = &o
		current = &o.Color
	case CategoryConnector:
		o := ConnectorOptions{}
		if s.Connector != nil {
			o = *s.Connector
		}
		s.Connector = &o
		current = &o.Color
	case CategoryWire:
		o := WireOptions{}
		if s.Wire != nil {
			o = *s.Wire
		}
		s.Wire = &o
		current = &o.Color
	default:
		return Spec{}, inErrors.Validation("unknown product category=%q", s.Category)
	}
	if *current != "" && !strings.EqualFold(*current, color) {
		return Spec{}, inErrors.Validation("color=%q conflicts with options color=%q", color, *current)
	}
	*current = color
	return s, nil
}

func (s Spec) MarshalJSON() ([]byte, error) {
	var (
		options []byte
		err     error
	)
	switch {
	case s.Fastener != nil:
		options, err = json.Marshal(s.Fastener)
	case s.Connector != nil:
		options, err = json.Marshal(s.Connector)
	case s.Wire != nil:
		options, err = json.Marshal(s.Wire)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(specJSON{Category: s.Category, Quantity: s.Quantity, Options: options})
}

func (s *Spec) UnmarshalJSON(data []byte) error {
	raw := specJSON{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	spec, err := ParseSpec(string(raw.Category), raw.Quantity, raw.Options)
	if err != nil {
		return err
	}
	*s = spec
	return nil
}

// Validate checks the structural invariants pricing relies on. Option values
// are not validated: unknown values simply price at zero.
func (s Spec) Validate() error {
	switch s.Category {
	case CategoryFastener, CategoryConnector, CategoryWire:
	default:
		return inErrors.Validation("unknown product category=%q", s.Category)
	}
	if s.Quantity < 1 || s.Quantity > MaxQuantity {
		return inErrors.Validation("quantity=%d must be between 1 and %d", s.Quantity, MaxQuantity)
	}

	present := 0
	for _, set := range []bool{s.Fastener != nil, s.Connector != nil, s.Wire != nil} {
		if set {
			present++
		}
	}
	if present > 1 {
		return inErrors.Validation("spec carries more than one option set")
	}
	mismatch := (s.Fastener != nil && s.Category != CategoryFastener) ||
		(s.Connector != nil && s.Category != CategoryConnector) ||
		(s.Wire != nil && s.Category != CategoryWire)
	if mismatch {
		return inErrors.Validation("options do not match category=%s", s.Category)
	}
	return s.validateOptions()
}

func (s Spec) validateOptions() error {
	switch {
	case s.Fastener != nil:
		if s.Fastener.LengthMM < 0 || s.Fastener.LengthMM > MaxLengthMM {
			return inErrors.Validation("lengthMm=%d must be between 0 and %d", s.Fastener.LengthMM, MaxLengthMM)
		}
	case s.Connector != nil:
		if s.Connector.Pins < 0 || s.Connector.Pins > MaxPins {
			return inErrors.Validation("pins=%d must be between 0 and %d", s.Connector.Pins, MaxPins)
		}
	case s.Wire != nil:
		if s.Wire.LengthM.IsNegative() || s.Wire.LengthM.GreaterThan(decimal.NewFromInt(MaxWireLengthM)) {
			return inErrors.Validation("lengthM=%s must be between 0 and %d", s.Wire.LengthM.String(), MaxWireLengthM)
		}
	}
	return nil
}

type option struct {
	key   string
	value string
}

func (s Spec) options() []option {
	switch s.Category {
	case CategoryFastener:
		o := FastenerOptions{}
		if s.Fastener != nil {
			o = *s.Fastener
		}
		length := ""
		if o.LengthMM > 0 {
			length = fmt.Sprintf("%dmm", o.LengthMM)
		}
		return []option{
			{key: "type", value: titleCase(o.Type)},
			{key: "size", value: strings.ToUpper(strings.TrimSpace(o.Size))},
			{key: "length", value: length},
			{key: "material", value: titleCase(o.Material)},
			{key: "finish", value: titleCase(o.Finish)},
			{key: "color", value: titleCase(o.Color)},
		}
	case CategoryConnector:
		o := ConnectorOptions{}
		if s.Connector != nil {
			o = *s.Connector
		}
		pins, waterproof := "", ""
		if o.Pins > 0 {
			pins = fmt.Sprintf("%d-pin", o.Pins)
		}
		if o.Waterproof {
			waterproof = "Waterproof"
		}
		return []option{
			{key: "type", value: strings.ToUpper(strings.TrimSpace(o.Type))},
			{key: "pins", value: pins},
			{key: "gender", value: titleCase(o.Gender)},
			{key: "plating", value: titleCase(o.Plating)},
			{key: "waterproof", value: waterproof},
			{key: "color", value: titleCase(o.Color)},
		}
	case CategoryWire:
		o := WireOptions{}
		if s.Wire != nil {
			o = *s.Wire
		}
		gauge, length := "", ""
		if o.Gauge > 0 {
			gauge = fmt.Sprintf("%d AWG", o.Gauge)
		}
		if o.LengthM.IsPositive() {
			length = o.LengthM.String() + "m"
		}
		return []option{
			{key: "gauge", value: gauge},
			{key: "length", value: length},
			{key: "insulation", value: upperIfShort(o.Insulation)},
			{key: "conductor", value: titleCase(o.Conductor)},
			{key: "color", value: titleCase(o.Color)},
		}
	default:
		return nil
	}
}

// Options is the display payload of the spec: populated attributes only.
func (s Spec) Options() map[string]string {
	opts := map[string]string{}
	for _, o := range s.options() {
		if o.value != "" {
			opts[o.key] = o.value
		}
	}
	return opts
}
