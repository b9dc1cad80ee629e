// Package snapshot turns session settings into rendered reports: the
// Resolver samples and formats every catalog field, the Renderer fills the
// report template, and the Generator produces batches of reports.
package snapshot

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bdobrica/Shashin/internal/shashin/catalog"
	"github.com/bdobrica/Shashin/internal/shashin/settings"
)

// suffixSpace is the number of distinct 6-digit identifier suffixes.
const suffixSpace = 1_000_000

// Values maps canonical field names to their display strings.
type Values map[string]string

// Resolver computes the concrete values of one report.
type Resolver struct {
	catalog *catalog.Catalog
	rng     settings.Rand
	now     func() time.Time
}

// NewResolver creates a Resolver. A nil rng uses the process-wide source.
func NewResolver(cat *catalog.Catalog, rng settings.Rand) *Resolver {
	if rng == nil {
		rng = settings.SystemRand()
	}
	return &Resolver{catalog: cat, rng: rng, now: time.Now}
}

// SetClock overrides the time source used for date defaults.
func (r *Resolver) SetClock(now func() time.Time) {
	r.now = now
}

// Catalog returns the field catalog the resolver works from.
func (r *Resolver) Catalog() *catalog.Catalog { return r.catalog }

// Resolve samples every field of the catalog from the session's entries or
// the field defaults, applies the identifier and derived-field rules, and
// formats the result. Every call returns a fresh map.
func (r *Resolver) Resolve(sess *settings.Session) Values {
	now := r.now()
	fields := r.catalog.Fields()

	sampled := make(map[string]settings.Scalar, len(fields))
	for _, f := range fields {
		e, ok := sess.Get(f.Name)
		if !ok {
			e = settings.DefaultEntry(f, now)
		}
		sampled[f.Name] = settings.Sample(e, r.rng)
	}

	id := r.catalog.Identifier().Name
	if _, literal := sess.Get(id); !literal {
		if p, ok := activePrefix(sess); ok {
			sampled[id] = settings.Text(fmt.Sprintf("%02d%06d", p, r.rng.Int64N(suffixSpace)))
		}
	}

	for _, f := range fields {
		if f.Derive == nil {
			continue
		}
		if _, explicit := sess.Get(f.Name); explicit {
			continue
		}
		src := sampled[f.Derive.From]
		if !src.Numeric {
			continue
		}
		factor := decimal.NewFromFloat(f.Derive.Factor)
		sampled[f.Name] = settings.Number(src.Number.Mul(factor).Round(2))
	}

	values := make(Values, len(fields))
	for _, f := range fields {
		values[f.Name] = Format(f.Kind, sampled[f.Name])
	}
	return values
}

// activePrefix returns the batch item's prefix, falling back to the base
// prefix outside a batch.
func activePrefix(sess *settings.Session) (int, bool) {
	if p, ok := sess.CurrentPrefix(); ok {
		return p, true
	}
	return sess.Prefix()
}

// Format renders a sampled value for display. Text values are returned
// verbatim; numbers follow the field kind.
func Format(kind catalog.Kind, v settings.Scalar) string {
	if !v.Numeric {
		return v.Text
	}
	switch kind {
	case catalog.KindMoney:
		return v.Number.StringFixed(2)
	case catalog.KindInteger, catalog.KindIdentifier:
		return v.Number.Truncate(0).String()
	case catalog.KindPercent:
		if v.Number.IsInteger() {
			return v.Number.StringFixed(1)
		}
		return v.Number.String()
	default:
		return v.Number.String()
	}
}
