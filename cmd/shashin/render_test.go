package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/bdobrica/Shashin/internal/shashin/app"
	"github.com/bdobrica/Shashin/internal/shashin/commands"
)

func newOffline(t *testing.T, plain bool) (*commands.Handlers, *writerSender, *bytes.Buffer) {
	t.Helper()
	engine, err := app.NewEngine(app.EngineConfig{}, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	var buf bytes.Buffer
	out := &writerSender{w: &buf, plain: plain}
	h := commands.NewHandlers(commands.HandlersConfig{
		Catalog:   engine.Catalog,
		Sessions:  engine.Sessions,
		Generator: engine.Generator,
		Sender:    out,
	})
	return h, out, &buf
}

func TestRunMessages(t *testing.T) {
	h, out, buf := newOffline(t, false)

	err := runMessages(context.Background(), h, out, []string{
		"/setbalance 250",
		"hello",
		"/generate 99",
		"/settraderid 51",
		"/generate 2",
	})
	if err != nil {
		t.Fatalf("runMessages: %v", err)
	}

	got := buf.String()
	for _, want := range []string{
		"Balance set to 250",
		"❌ Error: generate: Maximum limit is 20 snapshots at once.",
		"Trader ID prefix set to 51.",
		"<b>Trader # 51",
		"<b>Trader # 52",
		"Balance: $ <b>250.00</b>",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output is missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "hello") {
		t.Error("chatter must not produce output")
	}
}

func TestRunMessages_Plain(t *testing.T) {
	h, out, buf := newOffline(t, true)

	if err := runMessages(context.Background(), h, out, []string{"12345678"}); err != nil {
		t.Fatalf("runMessages: %v", err)
	}
	got := buf.String()
	if strings.Contains(got, "<b>") {
		t.Errorf("plain output still has markup:\n%s", got)
	}
	if !strings.Contains(got, "Trader # 12345678") {
		t.Errorf("plain output is missing the header:\n%s", got)
	}
}
