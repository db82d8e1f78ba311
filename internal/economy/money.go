// Package economy provides the currency, the item catalog and production recipes.
package economy

import (
	"math"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Money is an exact amount of currency counted in cents.
type Money int64

// Arithmetic errors. Callers check with errors.Is.
var (
	ErrMoneyOverflow = errors.New("money overflow")
	ErrNegativeMoney = errors.New("negative money")
)

// Cents returns an amount of c cents.
func Cents(c int64) Money { return Money(c) }

// Crowns returns an amount of whole currency units.
func Crowns(n int64) Money { return Money(n * 100) }

// Add returns m+o, failing on overflow.
func (m Money) Add(o Money) (Money, error) {
	if (o > 0 && m > math.MaxInt64-o) || (o < 0 && m < math.MinInt64-o) {
		return m, errors.Wrapf(ErrMoneyOverflow, "%s + %s", m, o)
	}
	return m + o, nil
}

// Sub returns m-o. A negative result is rejected.
func (m Money) Sub(o Money) (Money, error) {
	if o > m {
		return m, errors.Wrapf(ErrNegativeMoney, "%s - %s", m, o)
	}
	return m - o, nil
}

// MulQty returns m*qty, failing on overflow or a negative quantity.
func (m Money) MulQty(qty int) (Money, error) {
	if qty < 0 {
		return 0, errors.Wrapf(ErrNegativeMoney, "%s x %d", m, qty)
	}
	if qty == 0 || m == 0 {
		return 0, nil
	}
	q := int64(qty)
	if m > 0 && int64(m) > math.MaxInt64/q {
		return 0, errors.Wrapf(ErrMoneyOverflow, "%s x %d", m, qty)
	}
	if m < 0 && int64(m) < math.MinInt64/q {
		return 0, errors.Wrapf(ErrMoneyOverflow, "%s x %d", m, qty)
	}
	return Money(int64(m) * q), nil
}

// DivQty splits m into qty equal parts, rounding down. Zero qty yields zero.
func (m Money) DivQty(qty int) Money {
	if qty <= 0 {
		return 0
	}
	return m / Money(qty)
}

// Bps returns a positive m scaled by non-negative basis points (1/100 of a
// percent), rounding down and saturating at the int64 range.
func (m Money) Bps(bps int64) Money {
	if m <= 0 || bps <= 0 {
		return 0
	}
	hi, lo := int64(m)/10000, int64(m)%10000
	if hi > math.MaxInt64/bps {
		return math.MaxInt64
	}
	return Money(hi * bps).Saturating(Money(lo * bps / 10000))
}

// Saturating adds o, clamping at the int64 range instead of failing.
func (m Money) Saturating(o Money) Money {
	sum, err := m.Add(o)
	if err != nil {
		if o > 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return sum
}

// Decimal returns m in whole units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON encodes m as a decimal string, e.g. "12.50".
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts a decimal string or number of whole units.
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return errors.Wrap(err, "decode money")
	}
	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || cents.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return errors.Wrapf(ErrMoneyOverflow, "decode money %s", d)
	}
	*m = Money(cents.IntPart())
	return nil
}

// MinMoney returns the smaller of a and b.
func MinMoney(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}

// MaxMoney returns the larger of a and b.
func MaxMoney(a, b Money) Money {
	if a > b {
		return a
	}
	return b
}
