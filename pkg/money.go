package wow

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type CoinAmount = decimal.Decimal

var ZeroCoins = decimal.Zero

// Number of fractional digits in one WOW (1 WOW = 10^11 piconero).
const WOWDivisibility = 11

// PiconeroToDecimal converts an integer piconero amount to WOW.
// The integer is zero-padded to at least 11 digits and the point is
// inserted 11 digits from the right, so the result is always exact.
func PiconeroToDecimal(piconero int64) CoinAmount {
	neg := piconero < 0
	digits := strconv.FormatInt(piconero, 10)
	if neg {
		digits = digits[1:]
	}
	if len(digits) <= WOWDivisibility {
		digits = strings.Repeat("0", WOWDivisibility+1-len(digits)) + digits
	}
	split := len(digits) - WOWDivisibility
	s := digits[:split] + "." + digits[split:]
	if neg {
		s = "-" + s
	}
	// cannot fail: s is always a well-formed decimal literal.
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DecimalToPiconero converts WOW to piconero, rounding half away from zero
// when the amount has more than 11 fractional digits.
func DecimalToPiconero(amount CoinAmount) int64 {
	return amount.Shift(WOWDivisibility).Round(0).IntPart()
}

// FormatWOW renders an amount with exactly 11 fractional digits.
func FormatWOW(amount CoinAmount) string {
	return amount.StringFixed(WOWDivisibility)
}
