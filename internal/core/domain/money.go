package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ToMinorUnits converts rupees to paise, rounding half away from zero.
func ToMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func FromMinorUnits(minor int64) float64 {
	return decimal.New(minor, -2).InexactFloat64()
}

// RoundMoney rounds to whole paise.
func RoundMoney(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(2).InexactFloat64()
}

// FormatINR renders amount with Indian digit grouping (1,00,000) and at most
// three fraction digits, trailing zeros dropped.
func FormatINR(amount float64) string {
	d := decimal.NewFromFloat(amount).Round(3)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	text := d.String()
	intPart, fracPart, _ := strings.Cut(text, ".")

	var grouped string
	if len(intPart) <= 3 {
		grouped = intPart
	} else {
		head, tail := intPart[:len(intPart)-3], intPart[len(intPart)-3:]
		var groups []string
		for len(head) > 2 {
			groups = append([]string{head[len(head)-2:]}, groups...)
			head = head[:len(head)-2]
		}
		if head != "" {
			groups = append([]string{head}, groups...)
		}
		grouped = strings.Join(groups, ",") + "," + tail
	}
	if fracPart != "" {
		return sign + grouped + "." + fracPart
	}
	return sign + grouped
}
