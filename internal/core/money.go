// Package core holds the ledger domain: entries, amounts, filters and totals.
//
// Amounts are kept as signed integer cents. Text uses the German convention:
// "." groups thousands and "," separates decimals.
package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type Money struct {
	Cents int64
}

// Euros returns the value as float64 for display only; calculations use Cents.
func (m Money) Euros() float64 {
	return float64(m.Cents) / 100.0
}

func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

func (m Money) Neg() Money {
	return Money{Cents: -m.Cents}
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

// ParseAmount converts user text into signed cents.
//
// Whitespace is dropped, one leading sign is honoured, every "." is treated as
// a thousands separator and "," as the decimal separator. A lone dot therefore
// groups thousands: "2.100" is 2100 and "2.5" is 25. More than two fractional
// digits are rounded half-up.
//
// Examples:
//
//	ParseAmount("1.234,56") -> 123456 cents
//	ParseAmount("+12,3")    -> 1230 cents
//	ParseAmount("-7")       -> -700 cents
func ParseAmount(s string) (Money, error) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" || s == "." {
		return Money{}, ErrInvalidAmount
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Money{}, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	if !allDigits(intPart) || !allDigits(fracPart) {
		return Money{}, ErrInvalidAmount
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	const maxSafe = (1<<63 - 1) / 100
	if iv > maxSafe-1 {
		return Money{}, ErrInvalidAmount
	}

	var frac int64
	if len(fracPart) > 0 {
		frac = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			frac += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				frac++
			}
		}
	}

	cents := iv*100 + frac
	if neg {
		cents = -cents
	}
	return Money{Cents: cents}, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Format renders the amount as "1.234,50" with a leading "-" when negative.
func (m Money) Format() string {
	neg := m.Cents < 0
	cents := m.Cents
	if neg {
		cents = -cents
	}
	euros := strconv.FormatInt(cents/100, 10)
	s := groupThousands(euros) + "," + fmt.Sprintf("%02d", cents%100)
	if neg {
		return "-" + s
	}
	return s
}

func (m Money) String() string {
	return m.Format()
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatAmount formats any numeric value like Money.Format. Values that are not
// numbers are returned in their default string form.
func FormatAmount(v any) string {
	switch x := v.(type) {
	case Money:
		return x.Format()
	case *Money:
		if x == nil {
			return ""
		}
		return x.Format()
	case float64:
		return fromFloat(x).Format()
	case float32:
		return fromFloat(float64(x)).Format()
	case int:
		return Money{Cents: int64(x) * 100}.Format()
	case int64:
		return Money{Cents: x * 100}.Format()
	default:
		return fmt.Sprint(v)
	}
}

func fromFloat(f float64) Money {
	if f < 0 {
		return Money{Cents: -int64(-f*100 + 0.5)}
	}
	return Money{Cents: int64(f*100 + 0.5)}
}
