package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"maunium.net/go/mautrix/event"

	"github.com/bdobrica/Shashin/common/trace"
	"github.com/bdobrica/Shashin/internal/shashin/audit"
	"github.com/bdobrica/Shashin/internal/shashin/catalog"
	"github.com/bdobrica/Shashin/internal/shashin/metrics"
	"github.com/bdobrica/Shashin/internal/shashin/ratelimit"
	"github.com/bdobrica/Shashin/internal/shashin/settings"
	"github.com/bdobrica/Shashin/internal/shashin/snapshot"
	"github.com/bdobrica/Shashin/internal/shashin/store"
)

// Control command names.
const (
	CmdStart       = "start"
	CmdHelp        = "help"
	CmdGenerate    = "generate"
	CmdReset       = "reset"
	CmdZeros       = "zeros"
	CmdShow        = "show"
	CmdHistory     = "history"
	CmdSetTraderID = "settraderid"
)

const (
	defaultHistory = 10
	maxHistory     = 50
)

// Sender delivers a message to a room. Rich messages carry the report's
// HTML markup; plain ones are sent as-is.
type Sender interface {
	Send(ctx context.Context, roomID, text string, rich bool) error
}

// HandlersConfig holds the dependencies of Handlers. Store, Notifier and
// Limiter are optional.
type HandlersConfig struct {
	Catalog   *catalog.Catalog
	Sessions  *settings.Store
	Generator *snapshot.Generator
	Sender    Sender
	Store     *store.Store
	Notifier  audit.Notifier
	Limiter   *ratelimit.Limiter
	Now       func() time.Time
}

// Handlers holds all command handlers and dependencies
type Handlers struct {
	catalog   *catalog.Catalog
	sessions  *settings.Store
	generator *snapshot.Generator
	sender    Sender
	store     *store.Store
	notifier  audit.Notifier
	limiter   *ratelimit.Limiter
	now       func() time.Time
	router    *Router
}

// NewHandlers creates a Handlers instance and registers every command on
// its router.
func NewHandlers(cfg HandlersConfig) *Handlers {
	h := &Handlers{
		catalog:   cfg.Catalog,
		sessions:  cfg.Sessions,
		generator: cfg.Generator,
		sender:    cfg.Sender,
		store:     cfg.Store,
		notifier:  cfg.Notifier,
		limiter:   cfg.Limiter,
		now:       cfg.Now,
		router:    NewRouter("/"),
	}
	if h.notifier == nil {
		h.notifier = audit.Noop{}
	}
	if h.now == nil {
		h.now = time.Now
	}

	h.router.Register(CmdStart, h.HandleStart)
	h.router.Register(CmdHelp, h.HandleHelp)
	h.router.Register(CmdGenerate, h.HandleGenerate)
	h.router.Register(CmdReset, h.HandleReset)
	h.router.Register(CmdZeros, h.HandleZeros)
	h.router.Register(CmdShow, h.HandleShow)
	h.router.Register(CmdHistory, h.HandleHistory)
	h.router.Register(CmdSetTraderID, h.HandleSetPrefix)
	for _, alias := range h.catalog.Commands() {
		h.router.Register(alias, h.HandleSet)
	}
	return h
}

// Router returns the router holding every registered command.
func (h *Handlers) Router() *Router { return h.router }

// HandleHelp shows available commands
func (h *Handlers) HandleHelp(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	var sb strings.Builder
	sb.WriteString("**📋 Snapshot generator help**\n\n")
	sb.WriteString("**Basic commands:**\n")
	sb.WriteString("• /start - Start over with default settings\n")
	sb.WriteString("• /generate [count] - Generate 1 to 20 snapshots with the current settings\n")
	sb.WriteString("• /reset - Reset all settings to default\n")
	sb.WriteString("• /zeros - Set all values to zero\n")
	sb.WriteString("• /show - Show your current settings\n")
	sb.WriteString("• /history [n] - Show your recent commands\n")
	sb.WriteString("• /help - Show this help message\n\n")

	sb.WriteString("**Customization commands:**\n")
	sb.WriteString("• /settraderid <10-99> - Trader ID prefix; /generate 3 then yields prefixes 51, 52, 53\n")
	for _, f := range h.catalog.Fields() {
		if len(f.Commands) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("• /%s <value> - %s%s\n", strings.Join(f.Commands, ", /"), f.Label, valueHint(f.Kind)))
	}

	sb.WriteString("\n**Combining commands:**\n")
	sb.WriteString("/custom /setdate 01.05.2025 /setpercent 5 /setbalance 5000\n")
	sb.WriteString("Then send an 8-digit trader ID to generate a snapshot.\n\n")
	sb.WriteString("A command without a value sets that field to zero.")
	return sb.String(), nil
}

func valueHint(k catalog.Kind) string {
	switch k {
	case catalog.KindDate:
		return " (DD.MM.YYYY or DD.MM.YYYY-DD.MM.YYYY)"
	case catalog.KindInteger, catalog.KindMoney, catalog.KindPercent:
		return " (number or range like 100-500)"
	default:
		return ""
	}
}

// HandleStart resets the caller's session and shows the welcome text.
func (h *Handlers) HandleStart(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	err := h.sessions.With(actor(evt), func(sess *settings.Session) error {
		sess.Reset()
		return nil
	})
	if err != nil {
		return "", err
	}
	h.audit(ctx, evt, CmdStart, "", nil, nil)

	help, _ := h.HandleHelp(ctx, cmd, evt)
	return "👋 Welcome to the partner snapshot generator!\n\n" + help, nil
}

// HandleReset discards every override of the caller.
func (h *Handlers) HandleReset(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	var sessionID string
	err := h.sessions.With(actor(evt), func(sess *settings.Session) error {
		sess.Reset()
		sessionID = sess.ID()
		return nil
	})
	if err != nil {
		return "", err
	}
	h.audit(ctx, evt, CmdReset, "", store.AuditPayload{"session_id": sessionID}, nil)
	h.notifier.Notify(ctx, audit.Event{Kind: audit.KindSessionReset, Actor: actor(evt), Message: "settings reset to defaults"})
	return "All settings reset to default values.", nil
}

// HandleZeros sets every field to its zero value.
func (h *Handlers) HandleZeros(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	err := h.sessions.With(actor(evt), func(sess *settings.Session) error {
		sess.ZeroAll(h.catalog, h.now())
		return nil
	})
	if err != nil {
		return "", err
	}
	h.audit(ctx, evt, CmdZeros, "", nil, nil)
	h.notifier.Notify(ctx, audit.Event{Kind: audit.KindSessionZeroed, Actor: actor(evt), Message: "all values set to zero"})
	return "All values set to zeros.", nil
}

// HandleSet stores the value of a single set-command such as
// "/setbalance 500-1000".
func (h *Handlers) HandleSet(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	f, ok := h.catalog.Lookup(cmd.Name)
	if !ok {
		return "", &UnknownCommandError{Name: cmd.Name}
	}

	var entry settings.Entry
	err := h.sessions.With(actor(evt), func(sess *settings.Session) error {
		var err error
		entry, err = h.applySet(sess, f, cmd.Name, cmd.RawArgs)
		return err
	})
	h.audit(ctx, evt, cmd.Name, f.Name, store.AuditPayload{"value": cmd.RawArgs}, err)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s set to %s", f.Label, entry.Describe()), nil
}

func (h *Handlers) applySet(sess *settings.Session, f catalog.Field, command, raw string) (settings.Entry, error) {
	entry, err := settings.ParseEntry(f, command, raw, h.now())
	if err != nil {
		return nil, err
	}
	sess.Set(f.Name, entry)
	return entry, nil
}

// HandleSetPrefix turns identifier prefix mode on, or off when no value is
// given.
func (h *Handlers) HandleSetPrefix(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	var (
		prefix  int
		cleared bool
	)
	err := h.sessions.With(actor(evt), func(sess *settings.Session) error {
		var err error
		prefix, cleared, err = h.applyPrefix(sess, cmd.RawArgs)
		return err
	})
	h.audit(ctx, evt, CmdSetTraderID, h.catalog.Identifier().Name, store.AuditPayload{"value": cmd.RawArgs}, err)
	if err != nil {
		return "", err
	}
	if cleared {
		return "Trader ID prefix reset. Random trader IDs will be used.", nil
	}
	h.notifier.Notify(ctx, audit.Event{Kind: audit.KindPrefixSet, Actor: actor(evt), Message: fmt.Sprintf("trader ID prefix set to %d", prefix)})
	return fmt.Sprintf("Trader ID prefix set to %d. All generated trader IDs will start with %d and increment for multiple snapshots.", prefix, prefix), nil
}

func (h *Handlers) applyPrefix(sess *settings.Session, raw string) (prefix int, cleared bool, err error) {
	if strings.TrimSpace(raw) == "" {
		sess.ClearPrefix()
		return 0, true, nil
	}
	prefix, err = settings.ParsePrefix(CmdSetTraderID, raw)
	if err != nil {
		return 0, false, err
	}
	sess.SetPrefix(prefix, h.catalog.Identifier().Name)
	return prefix, false, nil
}

// HandleGenerate renders one or more reports with the caller's settings and
// sends each as a separate message.
func (h *Handlers) HandleGenerate(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	count := 1
	if arg, ok := cmd.GetArg(0); ok {
		n, err := strconv.Atoi(arg)
		if err != nil {
			err = &settings.ParseError{Command: CmdGenerate, Value: arg, Reason: "Please provide a valid number for count."}
			h.audit(ctx, evt, CmdGenerate, "", store.AuditPayload{"count": arg}, err)
			return "", err
		}
		count = n
	}
	if err := snapshot.ValidateCount(count); err != nil {
		h.audit(ctx, evt, CmdGenerate, "", store.AuditPayload{"count": count}, err)
		return "", err
	}
	if reply, limited := h.checkLimit(ctx, evt, count); limited {
		return reply, nil
	}

	err := h.sessions.With(actor(evt), func(sess *settings.Session) error {
		return h.generate(ctx, sess, evt, CmdGenerate, count)
	})
	return "", err
}

// HandleIdentifier handles a bare 8-digit message: the number becomes the
// literal identifier and one report is generated.
func (h *Handlers) HandleIdentifier(ctx context.Context, identifier string, evt *event.Event) (string, error) {
	if reply, limited := h.checkLimit(ctx, evt, 1); limited {
		return reply, nil
	}
	err := h.sessions.With(actor(evt), func(sess *settings.Session) error {
		sess.Set(h.catalog.Identifier().Name, settings.Text(identifier))
		return h.generate(ctx, sess, evt, "identifier", 1)
	})
	return "", err
}

// HandleMulti applies every set-command of a combined message from left to
// right. A failing command does not undo the ones before it. When the
// message carries an 8-digit identifier, one report is generated after all
// commands are applied.
func (h *Handlers) HandleMulti(ctx context.Context, text string, evt *event.Event) (string, error) {
	msg := ParseMulti(text)
	log := trace.Logger(ctx)

	var (
		failures []string
		applied  []string
	)
	limited := ""
	err := h.sessions.With(actor(evt), func(sess *settings.Session) error {
		for _, p := range msg.Pairs {
			var err error
			switch f, isField := h.catalog.Lookup(p.Command); {
			case isField:
				_, err = h.applySet(sess, f, p.Command, p.Value)
			case p.Command == CmdSetTraderID:
				_, _, err = h.applyPrefix(sess, p.Value)
			case h.router.Has(p.Command):
				log.Debug("multi-command: ignoring control command", "command", p.Command)
				continue
			default:
				log.Debug("multi-command: ignoring unknown command", "command", p.Command)
				continue
			}
			if err != nil {
				failures = append(failures, ErrorReply(err))
				continue
			}
			applied = append(applied, p.Command)
		}

		if msg.Identifier == "" {
			return nil
		}
		sess.Set(h.catalog.Identifier().Name, settings.Text(msg.Identifier))
		if reply, isLimited := h.checkLimit(ctx, evt, 1); isLimited {
			limited = reply
			return nil
		}
		return h.generate(ctx, sess, evt, "custom", 1)
	})

	var auditErr error
	if len(failures) > 0 {
		auditErr = errors.New(strings.Join(failures, "; "))
	}
	h.audit(ctx, evt, "custom", "", store.AuditPayload{"applied": applied, "identifier": msg.Identifier}, auditErr)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	switch {
	case limited != "":
		sb.WriteString(limited)
	case msg.Identifier == "":
		sb.WriteString("Parameters set. Send an 8-digit trader ID to generate a snapshot.")
	}
	if len(failures) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("❌ Not applied:\n")
		for _, f := range failures {
			sb.WriteString("• " + f + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// HandleShow lists the caller's overrides in catalog order.
func (h *Handlers) HandleShow(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	var sb strings.Builder
	err := h.sessions.With(actor(evt), func(sess *settings.Session) error {
		prefix, prefixed := sess.Prefix()
		if sess.Len() == 0 && !prefixed {
			sb.WriteString("No custom settings. Every field uses its default.")
			return nil
		}
		sb.WriteString("**Current settings**\n\n")
		if prefixed {
			sb.WriteString(fmt.Sprintf("• Trader ID prefix: %d\n", prefix))
		}
		for _, f := range h.catalog.Fields() {
			if e, ok := sess.Get(f.Name); ok {
				sb.WriteString(fmt.Sprintf("• %s: %s\n", f.Label, e.Describe()))
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// HandleHistory shows the caller's most recent audited commands, followed
// by their report totals once any report was generated.
func (h *Handlers) HandleHistory(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	if h.store == nil {
		return "History is not available: no database is configured.", nil
	}

	limit := defaultHistory
	if arg, ok := cmd.GetArg(0); ok {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			return "", &settings.ParseError{Command: CmdHistory, Value: arg, Reason: "must be a positive number"}
		}
		limit = min(n, maxHistory)
	}

	entries, err := h.store.GetAuditByActor(ctx, actor(evt), limit)
	if err != nil {
		return "", fmt.Errorf("failed to read history: %w", err)
	}
	if len(entries) == 0 {
		return "No commands recorded yet.", nil
	}
	stats, err := h.store.ReportStatsByActor(ctx, actor(evt))
	if err != nil {
		return "", fmt.Errorf("failed to read report stats: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**Recent commands (%d)**\n\n", len(entries)))
	for _, e := range entries {
		icon := "✅"
		if e.Result != store.ResultSuccess {
			icon = "❌"
		}
		line := fmt.Sprintf("%s %s /%s", icon, e.Timestamp.UTC().Format("2006-01-02 15:04:05"), e.Action)
		if e.Target.Valid {
			line += " (" + e.Target.String + ")"
		}
		if e.ErrorMessage.Valid {
			line += ": " + e.ErrorMessage.String
		}
		sb.WriteString(line + "\n")
	}
	if stats.Total > 0 {
		sb.WriteString(fmt.Sprintf("\nReports: %d generated, %d delivered, %d batch(es), last %s\n",
			stats.Total, stats.Delivered, stats.Batches, stats.Last.UTC().Format("2006-01-02 15:04:05")))
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// generate runs a batch while the caller's session is locked.
func (h *Handlers) generate(ctx context.Context, sess *settings.Session, evt *event.Event, action string, count int) error {
	log := trace.Logger(ctx)
	batchID := uuid.New().String()
	traceID := trace.FromContext(ctx)

	n, err := h.generator.Generate(ctx, sess, count, func(ctx context.Context, r snapshot.Report) error {
		metrics.ReportGenerated()
		sendErr := h.sender.Send(ctx, room(evt), r.Text, true)
		if sendErr != nil {
			metrics.ReportSendFailed()
		}
		h.recordReport(ctx, store.ReportRecord{
			TraceID:    traceID,
			BatchID:    batchID,
			ActorMXID:  actor(evt),
			SessionID:  sess.ID(),
			Index:      r.Index,
			Identifier: r.Identifier,
			Delivered:  sendErr == nil,
		})
		return sendErr
	})

	h.audit(ctx, evt, action, "", store.AuditPayload{
		"count":      count,
		"generated":  n,
		"batch_id":   batchID,
		"session_id": sess.ID(),
	}, err)

	var missing *snapshot.MissingFieldError
	switch {
	case errors.As(err, &missing):
		log.Error("report rendering failed", "batch_id", batchID, "err", err)
		h.notifier.Notify(ctx, audit.Event{Kind: audit.KindError, Actor: actor(evt), Target: batchID, Message: err.Error()})
		return err
	case err != nil:
		log.Warn("report batch finished with errors", "batch_id", batchID, "generated", n, "err", err)
		return err
	}

	log.Info("reports generated", "batch_id", batchID, "count", n)
	h.notifier.Notify(ctx, audit.Event{
		Kind:    audit.KindBatchGenerated,
		Actor:   actor(evt),
		Target:  batchID,
		Message: fmt.Sprintf("%d report(s) generated", n),
	})
	return nil
}

// checkLimit consults the rate limiter for count reports. It returns the
// reply to send when the request is refused.
func (h *Handlers) checkLimit(ctx context.Context, evt *event.Event, count int) (string, bool) {
	if h.limiter == nil || h.limiter.AllowN(actor(evt), count) {
		return "", false
	}
	metrics.RateLimited()
	h.notifier.Notify(ctx, audit.Event{
		Kind:    audit.KindRateLimited,
		Actor:   actor(evt),
		Message: fmt.Sprintf("refused %d report(s)", count),
	})
	h.auditResult(ctx, evt, CmdGenerate, "", store.ResultDenied, store.AuditPayload{"count": count}, "rate limited")
	return fmt.Sprintf("⏳ Report limit reached (%d per minute, %d left). Try again shortly.",
		h.limiter.Limit(), h.limiter.Remaining(actor(evt))), true
}

func (h *Handlers) audit(ctx context.Context, evt *event.Event, action, target string, payload store.AuditPayload, err error) {
	if err != nil {
		h.auditResult(ctx, evt, action, target, store.ResultError, payload, err.Error())
		return
	}
	h.auditResult(ctx, evt, action, target, store.ResultSuccess, payload, "")
}

func (h *Handlers) auditResult(ctx context.Context, evt *event.Event, action, target, result string, payload store.AuditPayload, errMsg string) {
	if h.store == nil {
		return
	}
	if err := h.store.WriteAudit(ctx, trace.FromContext(ctx), actor(evt), action, target, result, payload, errMsg); err != nil {
		trace.Logger(ctx).Warn("failed to write audit", "action", action, "err", err)
	}
}

func (h *Handlers) recordReport(ctx context.Context, r store.ReportRecord) {
	if h.store == nil {
		return
	}
	if err := h.store.RecordReport(ctx, r); err != nil {
		trace.Logger(ctx).Warn("failed to record report", "batch_id", r.BatchID, "err", err)
	}
}

// ErrorReply turns a handler error into the text shown to the caller.
func ErrorReply(err error) string {
	var (
		unknown *UnknownCommandError
		invalid *settings.ValidationError
		parse   *settings.ParseError
	)
	switch {
	case errors.As(err, &unknown):
		return unknown.Error()
	case errors.As(err, &invalid):
		return invalid.Error()
	case errors.As(err, &parse):
		return parse.Error()
	default:
		return err.Error()
	}
}

// Result classifies a handler error for metrics.
func Result(err error) string {
	var (
		unknown *UnknownCommandError
		invalid *settings.ValidationError
		parse   *settings.ParseError
	)
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.As(err, &unknown):
		return metrics.ResultUnknown
	case errors.As(err, &invalid), errors.As(err, &parse):
		return metrics.ResultInvalid
	default:
		return metrics.ResultError
	}
}

func actor(evt *event.Event) string {
	return evt.Sender.String()
}

func room(evt *event.Event) string {
	return evt.RoomID.String()
}
