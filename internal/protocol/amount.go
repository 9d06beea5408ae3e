package protocol

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Minor is an amount in minor currency units (céntimos).
type Minor int64

// ErrInvalidAmount is returned when display-unit text cannot be parsed.
var ErrInvalidAmount = errors.New("invalid amount")

// CurrencySymbol is prefixed to formatted amounts.
const CurrencySymbol = "Bs"

var displayLocale = language.MustParse("es-VE")

// FromDisplay converts a display-unit amount (bolívares) to minor units,
// rounding to the nearest céntimo.
func FromDisplay(v float64) Minor {
	return Minor(math.Round(v * 100))
}

// ParseDisplay parses a display-unit amount typed by a person. Both "45.50"
// and the local "1.234,50" forms are accepted, with or without the currency
// symbol. Without a comma, dots that only separate 3-digit groups ("1.234",
// "12.345.678") are read as thousands separators.
func ParseDisplay(s string) (Minor, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimPrefix(s, CurrencySymbol))
	s = strings.TrimSpace(strings.TrimSuffix(s, CurrencySymbol))
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else if thousandsOnly(s) {
		s = strings.ReplaceAll(s, ".", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: negative", ErrInvalidAmount)
	}
	return FromDisplay(v), nil
}

// thousandsOnly reports whether s is digits grouped by dots, with every
// group after the first exactly three digits long.
func thousandsOnly(s string) bool {
	groups := strings.Split(s, ".")
	if len(groups) < 2 {
		return false
	}
	for i, g := range groups {
		if g == "" || strings.Trim(g, "0123456789") != "" {
			return false
		}
		if i > 0 && len(g) != 3 {
			return false
		}
		if i == 0 && len(g) > 3 {
			return false
		}
	}
	return true
}

// Display returns m in display units.
func (m Minor) Display() float64 {
	return float64(m) / 100
}

// String renders m in display units with a dot separator, for logs.
func (m Minor) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// FormatAmount renders m for a person, localized for es-VE.
func FormatAmount(m Minor) string {
	p := message.NewPrinter(displayLocale)
	return p.Sprintf("%.2f %s", m.Display(), CurrencySymbol)
}
