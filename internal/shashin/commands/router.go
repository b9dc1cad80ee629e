// Package commands provides command parsing, routing and the handlers that
// make up Shashin's chat surface.
package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"maunium.net/go/mautrix/event"
)

// Command represents a parsed single command such as "/setbalance 500-1000".
type Command struct {
	Name    string   // lower-cased command name without the prefix
	Args    []string // whitespace-separated arguments
	RawArgs string   // everything after the name, trimmed
	RawText string   // the message without the prefix
}

// ErrNotACommand is returned by Parse when the message does not start with the
// command prefix. Callers should use errors.Is to distinguish this expected
// case from real errors.
var ErrNotACommand = errors.New("not a command (missing prefix)")

// UnknownCommandError is returned by Route for a command with no handler.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return "Unknown command: " + e.Name
}

// Handler is a function that handles a command
type Handler func(ctx context.Context, cmd *Command, evt *event.Event) (string, error)

// Router routes commands to handlers
type Router struct {
	handlers map[string]Handler
	prefix   string
}

// NewRouter creates a new command router
func NewRouter(prefix string) *Router {
	return &Router{
		handlers: make(map[string]Handler),
		prefix:   prefix,
	}
}

// Register registers a command handler
func (r *Router) Register(command string, handler Handler) {
	r.handlers[command] = handler
}

// Has reports whether a handler is registered for command.
func (r *Router) Has(command string) bool {
	_, ok := r.handlers[command]
	return ok
}

// Names returns the registered command names, sorted.
func (r *Router) Names() []string {
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Parse parses a message into a command. The name is the run of letters
// after the prefix; anything glued to it ("/setbalance500") becomes the
// first argument.
func (r *Router) Parse(text string) (*Command, error) {
	text = strings.TrimSpace(text)

	// Check if message starts with our prefix
	if !strings.HasPrefix(text, r.prefix) {
		return nil, ErrNotACommand
	}

	text = strings.TrimSpace(strings.TrimPrefix(text, r.prefix))
	if text == "" {
		return nil, fmt.Errorf("empty command")
	}

	end := 0
	for end < len(text) && isLetter(text[end]) {
		end++
	}
	if end == 0 {
		return nil, fmt.Errorf("empty command")
	}

	rawArgs := strings.TrimSpace(text[end:])
	return &Command{
		Name:    strings.ToLower(text[:end]),
		Args:    strings.Fields(rawArgs),
		RawArgs: rawArgs,
		RawText: text,
	}, nil
}

// Route parses and routes a command to its handler
func (r *Router) Route(ctx context.Context, text string, evt *event.Event) (string, error) {
	cmd, err := r.Parse(text)
	if err != nil {
		return "", err
	}

	handler, ok := r.handlers[cmd.Name]
	if !ok {
		return "", &UnknownCommandError{Name: cmd.Name}
	}
	return handler(ctx, cmd, evt)
}

// GetArg returns an argument by index
func (c *Command) GetArg(index int) (string, bool) {
	if index < 0 || index >= len(c.Args) {
		return "", false
	}
	return c.Args[index], true
}
