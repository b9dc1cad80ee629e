package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bdobrica/Shashin/internal/shashin/settings"
)

// MaxBatch is the largest number of reports one request may ask for.
const MaxBatch = 20

// Report is one generated report.
type Report struct {
	Index      int // 0-based position in its batch
	Identifier string
	Values     Values
	Text       string
}

// EmitFunc delivers a report, typically by sending it to the caller.
type EmitFunc func(ctx context.Context, r Report) error

// Generator produces single reports and batches.
type Generator struct {
	resolver *Resolver
	renderer *Renderer
	logger   *slog.Logger
}

// NewGenerator creates a Generator. If logger is nil, the default slog
// logger is used.
func NewGenerator(res *Resolver, ren *Renderer, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{resolver: res, renderer: ren, logger: logger}
}

// ValidateCount checks a requested batch size.
func ValidateCount(count int) error {
	switch {
	case count < 1:
		return &settings.ValidationError{Command: "generate", Reason: "Count must be a positive number."}
	case count > MaxBatch:
		return &settings.ValidationError{Command: "generate", Reason: fmt.Sprintf("Maximum limit is %d snapshots at once.", MaxBatch)}
	}
	return nil
}

// WrapPrefix maps a prefix that ran past 99 during a batch back into
// [10, 99], so identifiers keep eight digits.
func WrapPrefix(p int) int {
	span := settings.MaxPrefix - settings.MinPrefix + 1
	return settings.MinPrefix + ((p-settings.MinPrefix)%span+span)%span
}

// One resolves and renders a single report from the session.
func (g *Generator) One(sess *settings.Session) (Report, error) {
	values := g.resolver.Resolve(sess)
	text, err := g.renderer.Render(values)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Identifier: values[g.resolver.Catalog().Identifier().Name],
		Values:     values,
		Text:       text,
	}, nil
}

// Generate produces count reports in order and passes each to emit. In
// prefix mode item i uses prefix base+i (wrapped into [10, 99]).
//
// A count outside [1, MaxBatch] is rejected before any work. Emit failures
// are logged and collected but do not stop the batch; the joined emit errors
// are returned after the last item. A render failure aborts the batch. The
// session's current prefix is cleared when Generate returns.
func (g *Generator) Generate(ctx context.Context, sess *settings.Session, count int, emit EmitFunc) (int, error) {
	if err := ValidateCount(count); err != nil {
		return 0, err
	}
	defer sess.ClearCurrentPrefix()

	base, prefixed := sess.Prefix()

	var sendErrs []error
	generated := 0
	for i := 0; i < count; i++ {
		if prefixed {
			sess.SetCurrentPrefix(WrapPrefix(base + i))
		}

		report, err := g.One(sess)
		if err != nil {
			return generated, fmt.Errorf("report %d of %d: %w", i+1, count, err)
		}
		report.Index = i
		generated++

		if err := emit(ctx, report); err != nil {
			g.logger.Warn("batch: failed to deliver report",
				"index", i,
				"count", count,
				"identifier", report.Identifier,
				"err", err,
			)
			sendErrs = append(sendErrs, fmt.Errorf("report %d: %w", i+1, err))
		}
	}
	return generated, errors.Join(sendErrs...)
}
