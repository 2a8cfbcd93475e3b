// Package money renders amounts for human-readable messages and sums them
// without binary floating point drift.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Formatter prints amounts in a fixed locale and currency.
type Formatter struct {
	printer *message.Printer
	unit    currency.Unit
}

// NewFormatter builds a Formatter; unparseable inputs fall back to Italian/EUR.
func NewFormatter(locale, iso string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Italian
	}
	unit, err := currency.ParseISO(iso)
	if err != nil {
		unit = currency.EUR
	}
	return &Formatter{
		printer: message.NewPrinter(tag),
		unit:    unit,
	}
}

// Format renders amount with the currency symbol and locale grouping, e.g. "€ 1.234,50".
func (f *Formatter) Format(amount float64) string {
	symbol := f.printer.Sprint(currency.Symbol(f.unit))
	return symbol + " " + f.printer.Sprintf("%.2f", Round(amount))
}

// Percent renders a ratio (0.153) as a locale-formatted percentage ("15,3%").
func (f *Formatter) Percent(ratio float64) string {
	return f.printer.Sprintf("%.1f%%", ratio*100)
}

// Number renders a plain number with one decimal in the formatter's locale.
func (f *Formatter) Number(v float64) string {
	return f.printer.Sprintf("%.1f", v)
}

// Sum adds amounts exactly and returns the float64 nearest to the exact total.
func Sum(amounts ...float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	return total.InexactFloat64()
}

// Accumulator adds amounts one at a time with decimal precision.
type Accumulator struct {
	total decimal.Decimal
}

// Add adds amount to the running total.
func (a *Accumulator) Add(amount float64) {
	a.total = a.total.Add(decimal.NewFromFloat(amount))
}

// Float returns the running total.
func (a *Accumulator) Float() float64 {
	return a.total.InexactFloat64()
}

// Round rounds to cents, half away from zero.
func Round(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(2).InexactFloat64()
}

// Label turns an identifier such as "professional_services" into a display
// label ("Professional Services").
func Label(id string) string {
	return cases.Title(language.Und).String(strings.ReplaceAll(id, "_", " "))
}
