package app

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bdobrica/Shashin/internal/shashin/commands"
	"github.com/bdobrica/Shashin/internal/shashin/settings"
)

func TestMarkdownToHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bold and newline", "**Current settings**\n\n• Balance: 5", "<strong>Current settings</strong><br/><br/>• Balance: 5"},
		{"inline code", "use `/generate 3`", "use <code>/generate 3</code>"},
		{"user input is escaped", "Country set to <script>", "Country set to &lt;script&gt;"},
		{"fenced block", "```\na < b\n```", "<pre><code>a &lt; b<br/></code></pre>"},
		{"unmatched bold", "**open", "**open"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := markdownToHTML(tt.in); got != tt.want {
				t.Errorf("markdownToHTML(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRunHandler(t *testing.T) {
	ctx := context.Background()

	reply, err := runHandler(ctx, func() (string, error) { return "ok", nil })
	if reply != "ok" || err != nil {
		t.Errorf("runHandler = %q, %v", reply, err)
	}

	boom := errors.New("boom")
	if _, err := runHandler(ctx, func() (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Errorf("runHandler error = %v, want boom", err)
	}

	reply, err = runHandler(ctx, func() (string, error) { panic("nil map") })
	if reply != "" || !errors.Is(err, errInternal) {
		t.Fatalf("runHandler after panic = %q, %v", reply, err)
	}
	if got := commands.ErrorReply(err); got != "internal error" {
		t.Errorf("ErrorReply = %q, want internal error", got)
	}
}

func TestRunHandler_SessionUsableAfterPanic(t *testing.T) {
	e, err := NewEngine(EngineConfig{Rand: rand.New(rand.NewPCG(1, 1))}, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	const who = "@a:example.org"

	_, err = runHandler(context.Background(), func() (string, error) {
		return "", e.Sessions.With(who, func(*settings.Session) error { panic("handler bug") })
	})
	if !errors.Is(err, errInternal) {
		t.Fatalf("err = %v, want errInternal", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- e.Sessions.With(who, func(*settings.Session) error { return nil })
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("With after panic: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session still locked after a recovered panic")
	}
}

func TestNewEngine_Defaults(t *testing.T) {
	e, err := NewEngine(EngineConfig{Rand: rand.New(rand.NewPCG(1, 1))}, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	var text string
	err = e.Sessions.With("@a:example.org", func(s *settings.Session) error {
		r, err := e.Generator.One(s)
		text = r.Text
		return err
	})
	if err != nil {
		t.Fatalf("One: %v", err)
	}
	if !strings.Contains(text, "<b>Country: India</b>") {
		t.Errorf("report should use the built-in country:\n%s", text)
	}
}

func TestNewEngine_Overrides(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "short.tmpl")
	if err := os.WriteFile(tmpl, []byte(`{{.trader_id}} {{.country}} {{statsURL .trader_id}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	e, err := NewEngine(EngineConfig{
		TemplatePath:   tmpl,
		DefaultCountry: "Brazil",
		StatsURL:       "https://stats.example.org/?q=",
	}, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	var text string
	_ = e.Sessions.With("@a:example.org", func(s *settings.Session) error {
		s.Set("trader_id", settings.Text("12345678"))
		r, err := e.Generator.One(s)
		text = r.Text
		return err
	})
	if want := "12345678 Brazil https://stats.example.org/?q=12345678"; text != want {
		t.Errorf("report = %q, want %q", text, want)
	}
}

func TestNewEngine_BadCatalog(t *testing.T) {
	if _, err := NewEngine(EngineConfig{CatalogPath: filepath.Join(t.TempDir(), "missing.yaml")}, nil); err == nil {
		t.Error("missing catalog file should fail")
	}
}
