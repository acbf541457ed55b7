package normalizer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// currencySymbols are stripped before numeric parsing. R$ must come before $
// so the prefix is removed whole.
var currencySymbols = []string{"R$", "US$", "$", "€", "£", "BRL", "USD", "EUR"}

// ParseAmount converts locale-formatted text into a signed decimal. The
// parser is locale-fixed to the comma-decimal / period-thousands convention:
// currency symbols and whitespace are stripped, thousands-separator periods
// removed, the decimal comma replaced with a period, and the result parsed
// as a decimal. No alternate-locale detection is attempted.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	for _, sym := range currencySymbols {
		cleaned = strings.ReplaceAll(cleaned, sym, "")
	}
	cleaned = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, cleaned)

	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	cleaned = strings.TrimPrefix(cleaned, "+")

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

// FormatAmount renders a decimal in the same comma-decimal convention the
// parser accepts, so ParseAmount(FormatAmount(x)) == x.
func FormatAmount(d decimal.Decimal) string {
	return strings.ReplaceAll(d.StringFixed(2), ".", ",")
}

var multiSpace = regexp.MustCompile(`\s+`)

// CleanDescription trims and collapses whitespace in a raw description.
func CleanDescription(s string) string {
	return strings.TrimSpace(multiSpace.ReplaceAllString(s, " "))
}
