package messaging

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyFormat describes how promotional prices are written.
type MoneyFormat struct {
	Symbol             string
	DecimalSeparator   string
	ThousandsSeparator string
}

// DefaultMoneyFormat is Brazilian real formatting, e.g. "R$ 1.234,50".
var DefaultMoneyFormat = MoneyFormat{Symbol: "R$", DecimalSeparator: ",", ThousandsSeparator: "."}

// Format renders d with two decimal places, grouping the integer part.
func (f MoneyFormat) Format(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(f.ThousandsSeparator)
		}
		b.WriteRune(c)
	}

	out := b.String() + f.DecimalSeparator + frac
	if neg {
		out = "-" + out
	}
	if f.Symbol == "" {
		return out
	}
	return f.Symbol + " " + out
}
