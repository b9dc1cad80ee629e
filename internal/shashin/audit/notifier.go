// Package audit provides the audit room notification subsystem.
//
// When configured with a Matrix room ID (MATRIX_AUDIT_ROOM), Shashin posts
// short notices about report batches, session resets and failures to that
// room so operators can follow activity without querying the SQLite audit
// log. Every notice carries the trace ID of the message that caused it.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bdobrica/Shashin/common/trace"
)

// Kind is a machine-readable event category.
type Kind string

const (
	KindBatchGenerated Kind = "reports.generated"
	KindSessionReset   Kind = "session.reset"
	KindSessionZeroed  Kind = "session.zeroed"
	KindPrefixSet      Kind = "prefix.set"
	KindRateLimited    Kind = "reports.rate_limited"
	KindError          Kind = "error"
)

// Event carries the data that the audit notifier formats and sends.
type Event struct {
	Kind Kind
	// Actor is the Matrix user ID that triggered the event.
	Actor string
	// Target is the primary thing affected, such as a batch ID.
	Target  string
	Message string
	// TraceID ties the notice back to the SQLite audit record. When empty
	// the value is taken from the context.
	TraceID string
	// Timestamp defaults to time.Now() when zero.
	Timestamp time.Time
}

// Notifier sends audit room notifications.
type Notifier interface {
	// Notify posts an audit event. Send failures are logged, not returned.
	Notify(ctx context.Context, evt Event)
}

// Sender is the subset of the Matrix client needed by MatrixNotifier.
type Sender interface {
	SendNotice(ctx context.Context, roomID, message string) error
}

// MatrixNotifier posts formatted notices to a Matrix audit room.
type MatrixNotifier struct {
	sender Sender
	roomID string
}

// NewMatrixNotifier creates a MatrixNotifier that posts to roomID via sender.
func NewMatrixNotifier(sender Sender, roomID string) *MatrixNotifier {
	return &MatrixNotifier{sender: sender, roomID: roomID}
}

// Notify formats evt as a notice and posts it to the audit room.
func (n *MatrixNotifier) Notify(ctx context.Context, evt Event) {
	if n.roomID == "" {
		return
	}
	if err := n.sender.SendNotice(ctx, n.roomID, Format(ctx, evt)); err != nil {
		trace.Logger(ctx).Warn("audit notifier: failed to send room notice",
			"room", n.roomID, "kind", evt.Kind, "err", err)
		return
	}
	slog.Debug("audit notifier: sent notice", "room", n.roomID, "kind", evt.Kind)
}

// Format renders evt as a multi-line notice.
func Format(ctx context.Context, evt Event) string {
	tid := evt.TraceID
	if tid == "" {
		tid = trace.FromContext(ctx)
	}

	icon := kindIcon(evt.Kind)
	msg := fmt.Sprintf("%s [%s] %s", icon, evt.Kind, evt.Message)
	if evt.Target != "" {
		msg = fmt.Sprintf("%s %s → %s", icon, evt.Target, evt.Message)
	}
	if tid != "" {
		msg = fmt.Sprintf("%s\n  trace: %s", msg, tid)
	}
	if evt.Actor != "" {
		msg = fmt.Sprintf("%s\n  actor: %s", msg, evt.Actor)
	}
	return msg
}

// Noop is a no-op Notifier used when audit room notifications are disabled.
type Noop struct{}

// Notify does nothing.
func (Noop) Notify(_ context.Context, _ Event) {}

func kindIcon(k Kind) string {
	switch k {
	case KindBatchGenerated:
		return "📄"
	case KindSessionReset:
		return "🔄"
	case KindSessionZeroed:
		return "0️⃣"
	case KindPrefixSet:
		return "🔢"
	case KindRateLimited:
		return "⏳"
	case KindError:
		return "🚨"
	default:
		return "ℹ️"
	}
}
