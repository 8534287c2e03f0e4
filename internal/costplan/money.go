package costplan

import (
	"errors"
	"strconv"
	"strings"
)

// Cents is a signed amount in the smallest currency unit.
type Cents int64

// ErrInvalidAmount is returned when a decimal amount cannot be parsed.
var ErrInvalidAmount = errors.New("costplan: invalid amount")

const maxWholeUnits = (1<<63 - 1) / 100

// ParseCents converts a decimal string such as "1,234.56" or "-50" to cents.
// A leading currency symbol is tolerated and the third decimal is rounded half-up.
func ParseCents(s string) (Cents, error) {
	s = strings.TrimSpace(s)
	negative := false
	switch {
	case strings.HasPrefix(s, "-"):
		negative = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, ErrInvalidAmount
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, ErrInvalidAmount
	}
	if whole == "" {
		whole = "0"
	}
	if !allDigits(whole) || !allDigits(frac) {
		return 0, ErrInvalidAmount
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > maxWholeUnits {
		return 0, ErrInvalidAmount
	}

	var fracCents int64
	if len(frac) > 0 {
		fracCents = int64(frac[0]-'0') * 10
	}
	if len(frac) > 1 {
		fracCents += int64(frac[1] - '0')
	}
	if len(frac) > 2 && frac[2] >= '5' {
		fracCents++
	}

	total := units*100 + fracCents
	if total < 0 {
		return 0, ErrInvalidAmount
	}
	if negative {
		total = -total
	}
	return Cents(total), nil
}

// CentsFromNullable treats an absent amount as zero.
func CentsFromNullable(v *int64) Cents {
	if v == nil {
		return 0
	}
	return Cents(*v)
}

// Abs returns the magnitude of c.
func (c Cents) Abs() Cents {
	if c < 0 {
		return -c
	}
	return c
}

// String renders c as a plain decimal, e.g. "-1234.56".
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	frac := strconv.FormatInt(v%100, 10)
	if len(frac) == 1 {
		frac = "0" + frac
	}
	return sign + strconv.FormatInt(v/100, 10) + "." + frac
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
