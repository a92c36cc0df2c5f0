package ir

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// DecimalScale is the number of fractional digits the ledger can represent.
const DecimalScale = 18

// Decimal bounds mirror a signed 128-bit integer scaled by 10^18.
var (
	MaxDecimal = mustBound("170141183460469231731.687303715884105727")
	MinDecimal = mustBound("-170141183460469231731.687303715884105728")
)

// ErrDecimalRange is returned when a value or an arithmetic result falls
// outside [MinDecimal, MaxDecimal].
var ErrDecimalRange = errors.New("decimal out of range")

// decimalContext holds every in-range value exactly. Inexact results are
// trapped, never rounded.
var decimalContext = apd.Context{
	Precision:   64,
	MaxExponent: apd.MaxExponent,
	MinExponent: apd.MinExponent,
	Traps:       apd.DefaultTraps | apd.Inexact,
	Rounding:    apd.RoundHalfEven,
}

// Decimal is an exact base-10 amount with at most DecimalScale fractional
// digits, bounded by MinDecimal and MaxDecimal. The zero value is 0.
// Decimal values are immutable: every arithmetic method returns a fresh
// value.
type Decimal struct {
	d apd.Decimal
}

func (Decimal) irValue() {}

func mustBound(s string) Decimal {
	var out Decimal
	if _, _, err := out.d.SetString(s); err != nil {
		panic(err)
	}
	return out
}

// NewDecimal parses s ("10", "0.5", "-3.25"). Non-finite values, values
// with more than DecimalScale fractional digits and values outside
// [MinDecimal, MaxDecimal] are rejected.
func NewDecimal(s string) (Decimal, error) {
	parsed, _, err := apd.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	if parsed.Form != apd.Finite {
		return Decimal{}, fmt.Errorf("parse decimal %q: not a finite number", s)
	}
	var out Decimal
	out.d.Reduce(parsed)
	if out.d.Exponent < -DecimalScale {
		return Decimal{}, fmt.Errorf("parse decimal %q: more than %d fractional digits", s, DecimalScale)
	}
	if err := out.checkRange(); err != nil {
		return Decimal{}, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return out, nil
}

func (d Decimal) checkRange() error {
	if d.d.Cmp(&MaxDecimal.d) > 0 || d.d.Cmp(&MinDecimal.d) < 0 {
		return ErrDecimalRange
	}
	return nil
}

// MustDecimal is like NewDecimal but panics on error.
// Use only in tests or for constants.
func MustDecimal(s string) Decimal {
	d, err := NewDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DecimalFromInt returns n as a Decimal.
func DecimalFromInt(n int64) Decimal {
	var out Decimal
	out.d.SetInt64(n)
	return out
}

// Add returns d + o, or ErrDecimalRange if the sum leaves the ledger's range.
func (d Decimal) Add(o Decimal) (Decimal, error) {
	var out Decimal
	if _, err := decimalContext.Add(&out.d, &d.d, &o.d); err != nil {
		return Decimal{}, fmt.Errorf("%s + %s: %w", d, o, err)
	}
	if err := out.checkRange(); err != nil {
		return Decimal{}, fmt.Errorf("%s + %s: %w", d, o, err)
	}
	return out, nil
}

// Sub returns d - o, or ErrDecimalRange if the difference leaves the
// ledger's range.
func (d Decimal) Sub(o Decimal) (Decimal, error) {
	var out Decimal
	if _, err := decimalContext.Sub(&out.d, &d.d, &o.d); err != nil {
		return Decimal{}, fmt.Errorf("%s - %s: %w", d, o, err)
	}
	if err := out.checkRange(); err != nil {
		return Decimal{}, fmt.Errorf("%s - %s: %w", d, o, err)
	}
	return out, nil
}

// Cmp compares d and o numerically: -1, 0 or +1.
func (d Decimal) Cmp(o Decimal) int {
	return d.d.Cmp(&o.d)
}

// Sign returns -1, 0 or +1.
func (d Decimal) Sign() int {
	return d.d.Sign()
}

// IsZero reports whether d == 0.
func (d Decimal) IsZero() bool {
	return d.d.IsZero()
}

// IsPositive reports whether d > 0.
func (d Decimal) IsPositive() bool {
	return d.d.Sign() > 0
}

// FitsDivisibility reports whether d has no more than places fractional digits.
func (d Decimal) FitsDivisibility(places uint8) bool {
	var reduced apd.Decimal
	reduced.Reduce(&d.d)
	return reduced.Exponent >= -int32(places)
}

// String returns the plain (non-exponent) form with trailing zeros removed.
func (d Decimal) String() string {
	var reduced apd.Decimal
	reduced.Reduce(&d.d)
	if reduced.Exponent > 0 {
		// Text('f') keeps positive exponents expanded, but be explicit.
		var q apd.Decimal
		if _, err := decimalContext.Quantize(&q, &reduced, 0); err == nil {
			return q.Text('f')
		}
	}
	return reduced.Text('f')
}

// MarshalText implements encoding.TextMarshaler so decimals read and write
// naturally in YAML and JSON documents.
func (d Decimal) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Decimal) UnmarshalText(text []byte) error {
	parsed, err := NewDecimal(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
