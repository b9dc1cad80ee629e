package settings

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bdobrica/Shashin/internal/shashin/catalog"
)

// Identifier prefix bounds.
const (
	MinPrefix = 10
	MaxPrefix = 99
)

// Numeric input limits. Bounds this size keep every range span inside int64.
const (
	MaxIntDigits      = 15
	MaxFractionDigits = 6
)

// numberRe accepts plain decimal notation only; exponents are rejected.
var numberRe = regexp.MustCompile(`^-?(\d+)(?:\.(\d+))?$`)

// dateInputLayout accepts one- or two-digit days and months.
const dateInputLayout = "2.1.2006"

// ParseError reports a value that could not be parsed for a command.
type ParseError struct {
	Command string
	Value   string
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid value %q for %s: %s", e.Value, e.Command, e.Reason)
}

// ValidationError reports a well-formed value that violates a constraint.
type ValidationError struct {
	Command string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Reason)
}

// ParseEntry converts the raw value of a set-command into an entry for f.
// An empty value yields the field's zero entry.
func ParseEntry(f catalog.Field, command, raw string, today time.Time) (Entry, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ZeroEntry(f, today), nil
	}

	switch {
	case f.Kind == catalog.KindDate:
		return parseDateEntry(command, raw)
	case f.Kind.Numeric():
		return parseNumericEntry(command, raw)
	case f.Zero == "-" && raw == "0":
		return Text("-"), nil
	default:
		return Text(raw), nil
	}
}

func parseDateEntry(command, raw string) (Entry, error) {
	lo, hi, isRange := strings.Cut(raw, "-")
	if !isRange {
		d, err := parseDate(command, raw)
		if err != nil {
			return nil, err
		}
		return Text(d.Format(DateLayout)), nil
	}

	from, err := parseDate(command, lo)
	if err != nil {
		return nil, err
	}
	to, err := parseDate(command, hi)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, &ValidationError{
			Command: command,
			Reason:  fmt.Sprintf("start date %s is after end date %s", from.Format(DateLayout), to.Format(DateLayout)),
		}
	}
	return DateRange{Min: from, Max: to}, nil
}

func parseDate(command, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(dateInputLayout, s)
	if err != nil {
		return time.Time{}, &ParseError{Command: command, Value: s, Reason: "use DD.MM.YYYY or DD.MM.YYYY-DD.MM.YYYY"}
	}
	return t, nil
}

func parseNumericEntry(command, raw string) (Entry, error) {
	lo, hi, isRange := strings.Cut(raw, "-")
	if !isRange || lo == "" {
		// A leading '-' is a sign, not a range separator.
		n, err := parseNumber(command, raw)
		if err != nil {
			return nil, err
		}
		return Number(n), nil
	}

	min, err := parseNumber(command, lo)
	if err != nil {
		return nil, err
	}
	max, err := parseNumber(command, hi)
	if err != nil {
		return nil, err
	}
	if min.GreaterThan(max) {
		return nil, &ValidationError{
			Command: command,
			Reason:  fmt.Sprintf("range minimum %s is greater than maximum %s", min, max),
		}
	}
	return NewRange(min, max), nil
}

func parseNumber(command, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	m := numberRe.FindStringSubmatch(s)
	if m == nil {
		return decimal.Decimal{}, &ParseError{Command: command, Value: s, Reason: "must be a number or a range (e.g. 100-500)"}
	}
	if len(strings.TrimLeft(m[1], "0")) > MaxIntDigits || len(m[2]) > MaxFractionDigits {
		return decimal.Decimal{}, &ValidationError{
			Command: command,
			Reason:  fmt.Sprintf("number %s is too large (at most %d digits, %d decimals)", s, MaxIntDigits, MaxFractionDigits),
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, &ParseError{Command: command, Value: s, Reason: "must be a number or a range (e.g. 100-500)"}
	}
	return d, nil
}

// ParsePrefix parses an identifier prefix, which must be an integer in
// [MinPrefix, MaxPrefix].
func ParsePrefix(command, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	p, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ParseError{Command: command, Value: raw, Reason: "prefix must be a 2-digit number (10-99)"}
	}
	if p < MinPrefix || p > MaxPrefix {
		return 0, &ValidationError{Command: command, Reason: fmt.Sprintf("prefix %d is outside 10-99", p)}
	}
	return p, nil
}

// ZeroEntry returns the zero value of f: its textual zero when the catalog
// declares one, numeric zero otherwise.
func ZeroEntry(f catalog.Field, today time.Time) Entry {
	switch f.Zero {
	case "":
		return Number(decimal.Zero)
	case catalog.ZeroToday:
		return Text(civil(today).Format(DateLayout))
	case catalog.ZeroDefault:
		return DefaultEntry(f, today)
	default:
		return Text(f.Zero)
	}
}

// DefaultEntry returns the generator entry for f when a session has no
// override. now anchors days_ago defaults.
func DefaultEntry(f catalog.Field, now time.Time) Entry {
	d := f.Default
	switch {
	case d.Range != nil:
		return NewRange(decimal.NewFromFloat(d.Range.Min), decimal.NewFromFloat(d.Range.Max))
	case d.DaysAgo != nil:
		today := civil(now)
		return DateRange{
			Min: today.AddDate(0, 0, -int(d.DaysAgo.Max)),
			Max: today.AddDate(0, 0, -int(d.DaysAgo.Min)),
		}
	case d.Value != nil:
		if f.Kind.Numeric() {
			if n, err := decimal.NewFromString(*d.Value); err == nil {
				return Number(n)
			}
		}
		return Text(*d.Value)
	default:
		return Text("")
	}
}
