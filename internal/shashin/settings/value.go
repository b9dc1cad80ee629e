// Package settings holds the per-caller report settings: the Entry value
// model (scalar, numeric range, date range), parsing of raw command values
// into entries, and the concurrency-safe session store.
package settings

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the day-precision date format used in commands and reports.
const DateLayout = "02.01.2006"

// Entry is one stored override for one field. It is one of Scalar, Range or
// DateRange.
type Entry interface {
	// Describe returns a short human-readable description for confirmations.
	Describe() string
	isEntry()
}

// Scalar is a concrete value, either text or an exact decimal number.
type Scalar struct {
	Text    string
	Number  decimal.Decimal
	Numeric bool
}

// Range samples a number uniformly between Min and Max on every resolution.
// Integer is true only when both bounds are whole numbers.
type Range struct {
	Min, Max decimal.Decimal
	Integer  bool
}

// DateRange samples a calendar day between Min and Max, both inclusive.
type DateRange struct {
	Min, Max time.Time
}

func (Scalar) isEntry()    {}
func (Range) isEntry()     {}
func (DateRange) isEntry() {}

// Text returns a text scalar.
func Text(s string) Scalar { return Scalar{Text: s} }

// Number returns a numeric scalar.
func Number(d decimal.Decimal) Scalar { return Scalar{Number: d, Numeric: true} }

// String is the natural string form of the scalar.
func (s Scalar) String() string {
	if s.Numeric {
		return s.Number.String()
	}
	return s.Text
}

func (s Scalar) Describe() string { return s.String() }

func (r Range) Describe() string {
	return fmt.Sprintf("random value in range: %s to %s", r.Min, r.Max)
}

func (r DateRange) Describe() string {
	return fmt.Sprintf("random date in range: %s to %s", r.Min.Format(DateLayout), r.Max.Format(DateLayout))
}

// NewRange builds a Range, marking it integer when both bounds are whole.
func NewRange(lo, hi decimal.Decimal) Range {
	return Range{Min: lo, Max: hi, Integer: lo.IsInteger() && hi.IsInteger()}
}

// Rand is the randomness used for sampling. *rand.Rand from math/rand/v2
// satisfies it.
type Rand interface {
	Int64N(n int64) int64
	Float64() float64
}

type systemRand struct{}

func (systemRand) Int64N(n int64) int64 { return rand.Int64N(n) }
func (systemRand) Float64() float64     { return rand.Float64() }

// SystemRand returns a Rand backed by the math/rand/v2 global source, which
// is safe for concurrent use.
func SystemRand() Rand { return systemRand{} }

// Sample turns an entry into a concrete value. Scalars are returned
// unchanged; ranges produce a fresh sample on every call.
func Sample(e Entry, rng Rand) Scalar {
	switch v := e.(type) {
	case Scalar:
		return v
	case Range:
		return Number(sampleRange(v, rng))
	case DateRange:
		return Text(sampleDate(v, rng).Format(DateLayout))
	default:
		panic(fmt.Sprintf("settings: unknown entry type %T", e))
	}
}

func sampleRange(r Range, rng Rand) decimal.Decimal {
	if r.Integer {
		lo, hi := r.Min.IntPart(), r.Max.IntPart()
		// IntPart wraps outside int64; such ranges take the decimal path.
		if decimal.NewFromInt(lo).Equal(r.Min) && decimal.NewFromInt(hi).Equal(r.Max) {
			if n := hi - lo + 1; n > 0 {
				return decimal.NewFromInt(lo + rng.Int64N(n))
			}
		}
		return r.Min.Add(r.Max.Sub(r.Min).Mul(decimal.NewFromFloat(rng.Float64()))).Floor()
	}
	span := r.Max.Sub(r.Min)
	v := r.Min.Add(span.Mul(decimal.NewFromFloat(rng.Float64()))).Round(2)
	// Rounding can step past a bound that has more than two decimals.
	if v.LessThan(r.Min) {
		return r.Min
	}
	if v.GreaterThan(r.Max) {
		return r.Max
	}
	return v
}

func sampleDate(r DateRange, rng Rand) time.Time {
	days := Days(r.Min, r.Max)
	if days < 0 {
		days = 0
	}
	return civil(r.Min).AddDate(0, 0, int(rng.Int64N(int64(days)+1)))
}

// Days is the number of whole calendar days from a to b.
func Days(a, b time.Time) int {
	// Unix seconds do not saturate the way time.Duration does past ~292 years.
	return int((civil(b).Unix() - civil(a).Unix()) / 86400)
}

// civil truncates t to midnight UTC of its calendar day.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
