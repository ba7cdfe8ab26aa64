package core

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Money is an amount in minor units (1/100 of the currency unit).
// It is exchanged with clients as a decimal number of major units, eg. 1250.5
type Money int64

// MoneyTolerance is the rounding tolerance accepted when comparing allocated and received amounts.
const MoneyTolerance Money = 100

var errInvalidMoney = errors.New("invalid amount")

// maxMajor bounds parsed amounts so that minor units and their sums stay within int64.
const maxMajor = 1e15

// FromMajor converts a major-units value to Money, rounding to the nearest minor unit.
func FromMajor(v float64) Money {
	return Money(math.Round(v * 100))
}

// ParseMoney parses a decimal string of major units.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > maxMajor {
		return 0, errInvalidMoney
	}
	return FromMajor(v), nil
}

func (m Money) Major() float64 { return float64(m) / 100 }

func (m Money) Abs() Money {
	if m < 0 {
		return -m
	}
	return m
}

// String formats the amount with two decimals, eg. 1250.50
func (m Money) String() string {
	sign := ""
	if m < 0 {
		sign = "-"
	}
	a := m.Abs()
	return sign + strconv.FormatInt(int64(a/100), 10) + "." + twoDigits(int64(a%100))
}

// Format renders the amount for humans with thousands separators; cents are only shown when present.
// eg. Format("₹") -> ₹1,250 | ₹1,250.50
func (m Money) Format(symbol string) string {
	sign := ""
	if m < 0 {
		sign = "-"
	}
	a := m.Abs()
	whole := strconv.FormatInt(int64(a/100), 10)

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if cents := int64(a % 100); cents != 0 {
		b.WriteString("." + twoDigits(cents))
	}
	return sign + symbol + b.String()
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(m.Major(), 'f', -1, 64)), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := string(bytes.Trim(data, `"`))
	v, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// UnmarshalParam allows echo to bind Money from query parameters.
func (m *Money) UnmarshalParam(param string) error {
	v, err := ParseMoney(param)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func twoDigits(v int64) string {
	if v < 10 {
		return "0" + strconv.FormatInt(v, 10)
	}
	return strconv.FormatInt(v, 10)
}

// SumMoney adds up amounts.
func SumMoney(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total += a
	}
	return total
}

// MinMoney returns the smaller of a and b.
func MinMoney(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}
