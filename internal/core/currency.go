package core

import (
	"strconv"
	"strings"
)

// CanonicalCurrency is the currency every amount is persisted in.
const CanonicalCurrency = "USD"

// exchangeRates maps a currency code to its rate against the canonical
// currency (units of that currency per 1 USD). The table is fixed at build
// time; unknown codes fall back to a 1:1 rate and are treated as canonical.
var exchangeRates = map[string]float64{
	"USD": 1,
	"EUR": 0.92,
	"GBP": 0.79,
	"INR": 83.12,
	"JPY": 149.5,
	"CAD": 1.36,
	"AUD": 1.53,
	"CHF": 0.88,
	"CNY": 7.24,
	"BRL": 4.97,
}

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"INR": "₹",
	"JPY": "¥",
	"CAD": "C$",
	"AUD": "A$",
	"CHF": "Fr",
	"CNY": "¥",
	"BRL": "R$",
}

// SupportedCurrencies lists the selectable display currencies in a stable order.
var SupportedCurrencies = []string{"USD", "EUR", "GBP", "INR", "JPY", "CAD", "AUD", "CHF", "CNY", "BRL"}

func rate(code string) float64 {
	if r, ok := exchangeRates[code]; ok {
		return r
	}
	return 1
}

// FromCanonical converts a canonical-currency amount to the given display
// currency. Pure arithmetic over the fixed rate table; only used on
// presentation-facing paths, never for stored amounts.
func FromCanonical(amount float64, code string) float64 {
	return amount * rate(code)
}

// ToCanonical converts a display-currency amount back to the canonical
// currency, e.g. when a form submits amounts in the user's currency.
// Round-tripping through FromCanonical is exact only to float tolerance.
func ToCanonical(amount float64, code string) float64 {
	return amount / rate(code)
}

// Convert translates an amount between two display currencies via the
// canonical currency.
func Convert(amount float64, from, to string) float64 {
	return ToCanonical(amount, from) * rate(to)
}

// CurrencySymbol returns the display symbol for a currency code,
// defaulting to the canonical symbol for unknown codes.
func CurrencySymbol(code string) string {
	if s, ok := currencySymbols[code]; ok {
		return s
	}
	return "$"
}

// FormatAmount renders a display-currency amount with its symbol and
// thousands separators. JPY is formatted without decimals.
func FormatAmount(amount float64, code string) string {
	decimals := 2
	if code == "JPY" {
		decimals = 0
	}
	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := strconv.FormatFloat(amount, 'f', decimals, 64)
	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i:]
	}
	intPart = groupThousands(intPart)
	out := CurrencySymbol(code) + intPart + fracPart
	if neg {
		return "-" + out
	}
	return out
}

// FormatMoney renders a canonical-cents amount in the given display currency.
func FormatMoney(m Money, code string) string {
	return FormatAmount(FromCanonical(m.Amount(), code), code)
}

func groupThousands(digits string) string {
	n := len(digits)
	if n <= 3 {
		return digits
	}
	var b strings.Builder
	rem := n % 3
	if rem > 0 {
		b.WriteString(digits[:rem])
	}
	for i := rem; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// NormalizeCurrency validates a submitted currency code, returning the
// canonical currency for anything outside the supported set.
func NormalizeCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if _, ok := exchangeRates[code]; ok {
		return code
	}
	return CanonicalCurrency
}
