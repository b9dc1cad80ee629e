package commands

import (
	"context"
	"errors"
	"strings"

	"maunium.net/go/mautrix/event"

	"github.com/bdobrica/Shashin/common/trace"
	"github.com/bdobrica/Shashin/internal/shashin/metrics"
)

// ErrIgnored is returned by HandleText for messages that need no reply:
// plain chatter and unknown commands inside a combined message.
var ErrIgnored = errors.New("message ignored")

// HandleText classifies an incoming chat message and runs the matching
// handler.
//
//   - a bare 8-digit number generates one report for that identifier
//   - "/custom ..." or two or more command tokens are applied as a batch
//   - a single "/command value" goes through the router
//
// Anything else returns ErrIgnored.
func (h *Handlers) HandleText(ctx context.Context, text string, evt *event.Event) (string, error) {
	text = strings.TrimSpace(text)
	log := trace.Logger(ctx)

	switch {
	case IsIdentifierMessage(text):
		reply, err := h.HandleIdentifier(ctx, text, evt)
		metrics.ObserveCommand("identifier", Result(err))
		return reply, err

	case !strings.HasPrefix(text, h.router.prefix):
		return "", ErrIgnored

	case IsCustom(text) || CountCommands(text) >= 2:
		reply, err := h.HandleMulti(ctx, text, evt)
		metrics.ObserveCommand("custom", Result(err))
		return reply, err
	}

	cmd, err := h.router.Parse(text)
	if err != nil {
		log.Debug("ignoring unparseable command", "err", err)
		return "", ErrIgnored
	}
	reply, err := h.router.Route(ctx, text, evt)

	name := cmd.Name
	var unknown *UnknownCommandError
	if errors.As(err, &unknown) {
		// Free-form names would blow up label cardinality.
		name = "unknown"
	}
	metrics.ObserveCommand(name, Result(err))
	return reply, err
}
