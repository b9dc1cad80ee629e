package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/format"
	"maunium.net/go/mautrix/id"

	"github.com/bdobrica/Shashin/common/trace"
	"github.com/bdobrica/Shashin/internal/shashin/app"
	"github.com/bdobrica/Shashin/internal/shashin/commands"
)

const offlineUser = "@cli:localhost"

var renderPlain bool

var renderCmd = &cobra.Command{
	Use:   "render [message...]",
	Short: "Run chat messages offline and print the replies and reports",
	Long: `Run chat messages through the command handlers without Matrix. Each
argument is one message; with no arguments, messages are read from stdin,
one per line. Settings persist across the messages of one invocation.

  shashin render "/setbalance 500-1000" "/settraderid 51" "/generate 3"
  printf '/setcon Brazil\n12345678\n' | shashin render --plain`,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := app.NewEngine(engineConfig(), slog.Default())
		if err != nil {
			return err
		}

		out := &writerSender{w: cmd.OutOrStdout(), plain: renderPlain}
		h := commands.NewHandlers(commands.HandlersConfig{
			Catalog:   engine.Catalog,
			Sessions:  engine.Sessions,
			Generator: engine.Generator,
			Sender:    out,
		})

		if len(args) > 0 {
			return runMessages(cmd.Context(), h, out, args)
		}
		var lines []string
		sc := bufio.NewScanner(cmd.InOrStdin())
		for sc.Scan() {
			lines = append(lines, sc.Text())
		}
		if err := sc.Err(); err != nil {
			return fmt.Errorf("read messages: %w", err)
		}
		return runMessages(cmd.Context(), h, out, lines)
	},
}

func init() {
	renderCmd.Flags().BoolVar(&renderPlain, "plain", false, "Strip report markup")
}

// runMessages feeds each message to the handlers and prints replies. Command
// errors are printed like the bot would show them and do not stop the run.
func runMessages(ctx context.Context, h *commands.Handlers, out *writerSender, messages []string) error {
	evt := &event.Event{
		Sender: id.UserID(offlineUser),
		RoomID: id.RoomID("!offline:localhost"),
	}
	for _, msg := range messages {
		if strings.TrimSpace(msg) == "" {
			continue
		}
		reply, err := h.HandleText(trace.WithTraceID(ctx, trace.GenerateID()), msg, evt)
		switch {
		case errors.Is(err, commands.ErrIgnored):
			continue
		case err != nil:
			reply = "❌ Error: " + commands.ErrorReply(err)
		}
		if reply != "" {
			if err := out.Send(ctx, "", reply, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// writerSender prints messages separated by blank lines.
type writerSender struct {
	mu    sync.Mutex
	w     io.Writer
	plain bool
}

func (s *writerSender) Send(_ context.Context, _ string, text string, rich bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rich && s.plain {
		text = format.HTMLToText(strings.ReplaceAll(text, "\n", "<br/>"))
	}
	_, err := fmt.Fprintf(s.w, "%s\n\n", text)
	return err
}
