package importer

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var currencyMarks = []string{"S/.", "S/", "PEN", "US$", "$"}

// parseAmount parses an amount written either as "1,234.56" or "1.234,56".
// The rightmost separator is the decimal one; a lone comma followed by
// exactly three digits is a thousands separator. Parentheses and a
// trailing minus mark negatives.
func parseAmount(s string) (decimal.Decimal, error) {
	raw := s

	s = strings.TrimSpace(s)
	for _, mark := range currencyMarks {
		s = strings.TrimPrefix(s, mark)
	}

	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")

	negative := false

	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	if strings.HasSuffix(s, "-") {
		negative = true
		s = strings.TrimSuffix(s, "-")
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 != 3 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}

	if negative {
		v = v.Neg()
	}

	return v, nil
}
