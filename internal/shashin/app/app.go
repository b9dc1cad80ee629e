// Package app wires the Matrix transport, the command handlers and the
// background workers into the running Shashin bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"slices"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"maunium.net/go/mautrix/event"

	"github.com/bdobrica/Shashin/common/trace"
	"github.com/bdobrica/Shashin/internal/shashin/audit"
	"github.com/bdobrica/Shashin/internal/shashin/commands"
	"github.com/bdobrica/Shashin/internal/shashin/matrix"
	"github.com/bdobrica/Shashin/internal/shashin/metrics"
	"github.com/bdobrica/Shashin/internal/shashin/ratelimit"
	"github.com/bdobrica/Shashin/internal/shashin/settings"
	"github.com/bdobrica/Shashin/internal/shashin/store"
)

// Config holds application configuration
type Config struct {
	DatabasePath string
	Matrix       matrix.Config
	Engine       EngineConfig

	// AllowedSenders restricts who may talk to the bot. Empty allows
	// everyone.
	AllowedSenders []string

	// HTTPAddr is the address for the /health, /status and /metrics
	// endpoints. Empty disables the server.
	HTTPAddr string

	// AuditRoomID receives operator notices. Empty disables them.
	AuditRoomID string

	// SweepInterval is how often idle sessions are evicted.
	SweepInterval time.Duration

	// ReportRateLimit caps reports per sender per minute. Zero uses
	// ratelimit.DefaultLimit.
	ReportRateLimit int
}

// App represents the Shashin application
type App struct {
	config       *Config
	store        *store.Store
	matrix       *matrix.Client
	engine       *Engine
	handlers     *commands.Handlers
	sweeper      *settings.Sweeper
	healthServer *HealthServer
}

// New creates a new Shashin application
func New(config *Config) (*App, error) {
	slog.Info("opening database", "path", config.DatabasePath)
	st, err := store.New(config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	engine, err := NewEngine(config.Engine, slog.Default())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize report engine: %w", err)
	}

	// The client persists its sync token in the same database.
	matrixCfg := config.Matrix
	matrixCfg.DB = st.DB()
	slog.Info("connecting to Matrix", "homeserver", matrixCfg.Homeserver)
	matrixClient, err := matrix.New(&matrixCfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize Matrix client: %w", err)
	}

	var notifier audit.Notifier = audit.Noop{}
	if config.AuditRoomID != "" {
		notifier = audit.NewMatrixNotifier(matrixClient, config.AuditRoomID)
		slog.Info("audit notifications enabled", "room", config.AuditRoomID)
	}

	handlers := commands.NewHandlers(commands.HandlersConfig{
		Catalog:   engine.Catalog,
		Sessions:  engine.Sessions,
		Generator: engine.Generator,
		Sender:    matrixClient,
		Store:     st,
		Notifier:  notifier,
		Limiter:   ratelimit.New(config.ReportRateLimit, time.Minute),
	})

	sweeper := settings.NewSweeper(engine.Sessions, config.SweepInterval, slog.Default())
	sweeper.OnSweep(func(removed int) {
		metrics.SessionsSwept(removed, engine.Sessions.Len())
	})

	var healthServer *HealthServer
	if config.HTTPAddr != "" {
		healthServer = NewHealthServer(config.HTTPAddr, st, engine.Sessions)
	}

	return &App{
		config:       config,
		store:        st,
		matrix:       matrixClient,
		engine:       engine,
		handlers:     handlers,
		sweeper:      sweeper,
		healthServer: healthServer,
	}, nil
}

// Run starts the bot and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.healthServer != nil {
		if err := a.healthServer.Start(ctx); err != nil {
			slog.Warn("health server failed to start; continuing without it", "err", err)
		}
	}

	slog.Info("starting Matrix sync")
	if err := a.matrix.Start(ctx, a.handleMessage); err != nil {
		return fmt.Errorf("failed to start Matrix client: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.sweeper.Run(gctx)
		return nil
	})

	if a.config.AuditRoomID != "" {
		if err := a.matrix.SendNotice(ctx, a.config.AuditRoomID, "✅ Shashin started. Send /help for commands."); err != nil {
			slog.Warn("failed to send startup notice", "err", err)
		}
	}

	slog.Info("Shashin is running; press Ctrl+C to stop")
	<-ctx.Done()
	slog.Info("shutting down")

	a.sweeper.Stop()
	return g.Wait()
}

// Stop stops the Shashin application
func (a *App) Stop() {
	slog.Info("stopping Matrix client")
	a.matrix.Stop()

	if a.healthServer != nil {
		slog.Info("stopping health server")
		a.healthServer.Stop()
	}

	slog.Info("closing database")
	a.store.Close()
}

// handleMessage processes incoming Matrix messages
func (a *App) handleMessage(ctx context.Context, evt *event.Event) {
	msgContent := evt.Content.AsMessage()
	if msgContent == nil {
		return
	}

	// Silently ignore senders not on the allowlist.
	if len(a.config.AllowedSenders) > 0 && !slices.Contains(a.config.AllowedSenders, evt.Sender.String()) {
		return
	}

	ctx = trace.WithTraceID(ctx, trace.GenerateID())
	log := trace.Logger(ctx).With("sender", evt.Sender.String(), "room", evt.RoomID.String())

	response, err := runHandler(ctx, func() (string, error) {
		return a.handlers.HandleText(ctx, msgContent.Body, evt)
	})
	switch {
	case errors.Is(err, commands.ErrIgnored):
		return
	case err != nil:
		log.Debug("command failed", "err", err)
		if replyErr := a.matrix.ReplyToMessage(ctx, evt.RoomID.String(), evt.ID.String(),
			"❌ Error: "+commands.ErrorReply(err)); replyErr != nil {
			log.Error("failed to send error reply", "err", replyErr)
		}
		return
	}

	// Use the formatted variant so bold and code render in clients that
	// support HTML messages.
	if response != "" {
		if err := a.matrix.SendFormattedMessage(ctx, evt.RoomID.String(), markdownToHTML(response), response); err != nil {
			log.Error("failed to send response", "err", err)
		}
	}
}

// errInternal is reported to the caller when a handler panics.
var errInternal = errors.New("internal error")

// runHandler calls fn and turns a panic into errInternal, so one bad
// message cannot take down the sync loop.
func runHandler(ctx context.Context, fn func() (string, error)) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			trace.Logger(ctx).Error("handler panicked", "panic", r, "stack", string(debug.Stack()))
			reply, err = "", errInternal
		}
	}()
	return fn()
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// markdownToHTML converts the small subset of Markdown produced by the
// command handlers into HTML for a Matrix m.text event with
// format=org.matrix.custom.html. Reply text may echo user input, so it is
// escaped before any markup is added.
//
// Supported constructs:
//   - Fenced code blocks  ```…```  → <pre><code>…</code></pre>
//   - Inline code  `…`             → <code>…</code>
//   - Bold  **…**                  → <strong>…</strong>
//   - Newlines                     → <br/>
func markdownToHTML(md string) string {
	var (
		out    strings.Builder
		inCode bool
	)
	for _, line := range strings.Split(md, "\n") {
		if strings.HasPrefix(line, "```") {
			if inCode {
				out.WriteString("</code></pre>")
			} else {
				out.WriteString("<pre><code>")
			}
			inCode = !inCode
			continue
		}
		out.WriteString(htmlEscaper.Replace(line))
		out.WriteString("\n")
	}

	result := replaceDelimited(out.String(), "`", "<code>", "</code>")
	result = replaceDelimited(result, "**", "<strong>", "</strong>")
	return strings.ReplaceAll(strings.TrimSuffix(result, "\n"), "\n", "<br/>")
}

// replaceDelimited replaces complete delim…delim pairs with
// open+content+close. An unmatched opener is left as-is.
func replaceDelimited(s, delim, open, close string) string {
	var b strings.Builder
	for {
		start := strings.Index(s, delim)
		if start == -1 {
			b.WriteString(s)
			break
		}
		end := strings.Index(s[start+len(delim):], delim)
		if end == -1 {
			b.WriteString(s)
			break
		}
		end += start + len(delim)
		b.WriteString(s[:start])
		b.WriteString(open)
		b.WriteString(s[start+len(delim) : end])
		b.WriteString(close)
		s = s[end+len(delim):]
	}
	return b.String()
}
