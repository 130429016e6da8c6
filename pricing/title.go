package pricing

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var categoryLabels = map[Category]string{
	CategoryFastener:  "Custom Fastener",
	CategoryConnector: "Custom Connector",
	CategoryWire:      "Custom Wire",
}

// Title renders the category label followed by the populated attributes in
// the category's fixed field order, e.g. "Custom Fastener - Bolt, M8, 40mm".
func (s Spec) Title() string {
	label, ok := categoryLabels[s.Category]
	if !ok {
		label = "Custom Product"
	}

	parts := make([]string, 0, 6)
	for _, o := range s.options() {
		if o.value != "" {
			parts = append(parts, o.value)
		}
	}
	if len(parts) == 0 {
		return label
	}
	return label + " - " + strings.Join(parts, ", ")
}

func titleCase(v string) string {
	v = strings.TrimSpace(strings.ReplaceAll(v, "-", " "))
	if v == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ToLower(v))
}

// upperIfShort keeps acronyms such as PVC or PTFE upper case.
func upperIfShort(v string) string {
	v = strings.TrimSpace(v)
	if len(v) <= 4 {
		return strings.ToUpper(v)
	}
	return titleCase(v)
}
