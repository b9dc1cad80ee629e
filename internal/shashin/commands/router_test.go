package commands_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"maunium.net/go/mautrix/event"

	"github.com/bdobrica/Shashin/internal/shashin/commands"
)

func TestRouter_Parse(t *testing.T) {
	r := commands.NewRouter("/")

	tests := []struct {
		name    string
		text    string
		want    *commands.Command
		wantErr bool
	}{
		{
			name: "name and args",
			text: "/setbalance 500-1000",
			want: &commands.Command{Name: "setbalance", Args: []string{"500-1000"}, RawArgs: "500-1000", RawText: "setbalance 500-1000"},
		},
		{
			name: "value glued to name",
			text: "/setbalance500",
			want: &commands.Command{Name: "setbalance", Args: []string{"500"}, RawArgs: "500", RawText: "setbalance500"},
		},
		{
			name: "multi-word value",
			text: "/setcon  United Kingdom ",
			want: &commands.Command{Name: "setcon", Args: []string{"United", "Kingdom"}, RawArgs: "United Kingdom", RawText: "setcon  United Kingdom"},
		},
		{
			name: "name is lower-cased",
			text: "/HELP",
			want: &commands.Command{Name: "help", Args: []string{}, RawArgs: "", RawText: "HELP"},
		},
		{name: "empty", text: "/", wantErr: true},
		{name: "digits only", text: "/123", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Parse(tt.text)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got %+v", tt.text, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.text, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestRouter_ParseNotACommand(t *testing.T) {
	r := commands.NewRouter("/")
	if _, err := r.Parse("hello there"); !errors.Is(err, commands.ErrNotACommand) {
		t.Errorf("err = %v, want ErrNotACommand", err)
	}
}

func TestRouter_Route(t *testing.T) {
	r := commands.NewRouter("/")
	r.Register("echo", func(ctx context.Context, cmd *commands.Command, evt *event.Event) (string, error) {
		return cmd.RawArgs, nil
	})

	got, err := r.Route(context.Background(), "/echo hi there", &event.Event{})
	if err != nil || got != "hi there" {
		t.Errorf("Route = %q, %v; want %q", got, err, "hi there")
	}

	_, err = r.Route(context.Background(), "/nope", &event.Event{})
	var unknown *commands.UnknownCommandError
	if !errors.As(err, &unknown) || unknown.Name != "nope" {
		t.Fatalf("err = %v, want UnknownCommandError{nope}", err)
	}
	if err.Error() != "Unknown command: nope" {
		t.Errorf("message = %q", err.Error())
	}

	if !r.Has("echo") || r.Has("nope") {
		t.Error("Has reported the wrong registrations")
	}
	if diff := cmp.Diff([]string{"echo"}, r.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
}

func TestCommand_GetArg(t *testing.T) {
	cmd := &commands.Command{Args: []string{"a", "b"}}
	if v, ok := cmd.GetArg(1); !ok || v != "b" {
		t.Errorf("GetArg(1) = %q, %v", v, ok)
	}
	if _, ok := cmd.GetArg(2); ok {
		t.Error("GetArg(2) should be out of range")
	}
	if _, ok := cmd.GetArg(-1); ok {
		t.Error("GetArg(-1) should be out of range")
	}
}
