package service

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var symbols = map[string]string{
	"INR": "₹",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"AUD": "A$",
	"CAD": "C$",
	"SGD": "S$",
	"AED": "AED ",
}

var locales = map[string]language.Tag{
	"INR": language.MustParse("en-IN"),
	"USD": language.AmericanEnglish,
	"GBP": language.BritishEnglish,
	"EUR": language.German,
	"JPY": language.Japanese,
}

var zeroDecimal = map[string]bool{"JPY": true}

// Format renders a display amount with the currency symbol and the digit
// grouping of the currency's home locale.
func Format(amount decimal.Decimal, currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))

	scale := 2
	if zeroDecimal[code] {
		scale = 0
	}
	tag, ok := locales[code]
	if !ok {
		tag = language.English
	}
	symbol, ok := symbols[code]
	if !ok {
		symbol = code + " "
	}

	value := amount.Round(int32(scale)).InexactFloat64()
	printer := message.NewPrinter(tag)
	sign := ""
	if value < 0 {
		sign = "-"
		value = -value
	}
	return sign + symbol + printer.Sprint(number.Decimal(value, number.Scale(scale)))
}

func (c *Converter) Format(amountCanonical decimal.Decimal, currency string) string {
	return Format(c.ToDisplay(amountCanonical, currency), currency)
}
