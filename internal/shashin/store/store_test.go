package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bdobrica/Shashin/internal/shashin/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	// Use a temp file that is cleaned up after the test
	f, err := os.CreateTemp(t.TempDir(), "shashin-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp db file: %v", err)
	}
	f.Close()

	s, err := store.New(f.Name())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func TestNew_AppliesMigrations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 3 {
		t.Errorf("schema version = %d, want 3", v)
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestNew_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shashin.db")

	s1, err := store.New(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := s1.WriteAudit(context.Background(), "t_1", "@a:example.org", "reset", "", store.ResultSuccess, nil, ""); err != nil {
		t.Fatalf("WriteAudit: %v", err)
	}
	s1.Close()

	s2, err := store.New(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s2.Close()

	entries, err := s2.GetAuditByActor(context.Background(), "@a:example.org", 10)
	if err != nil {
		t.Fatalf("GetAuditByActor: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("entries after reopen = %d, want 1", len(entries))
	}
}

func TestWriteAndReadAudit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	writes := []struct {
		trace, actor, action, target, result, errMsg string
		payload                                      store.AuditPayload
	}{
		{"t_1", "@alice:example.org", "setbalance", "balance", store.ResultSuccess, "", store.AuditPayload{"value": "500-1000"}},
		{"t_2", "@bob:example.org", "generate", "", store.ResultSuccess, "", store.AuditPayload{"count": 3}},
		{"t_3", "@alice:example.org", "setdate", "reg_date", store.ResultError, "bad date", nil},
	}
	for _, w := range writes {
		if err := s.WriteAudit(ctx, w.trace, w.actor, w.action, w.target, w.result, w.payload, w.errMsg); err != nil {
			t.Fatalf("WriteAudit(%s): %v", w.trace, err)
		}
	}

	alice, err := s.GetAuditByActor(ctx, "@alice:example.org", 10)
	if err != nil {
		t.Fatalf("GetAuditByActor: %v", err)
	}
	if len(alice) != 2 {
		t.Fatalf("alice entries = %d, want 2", len(alice))
	}
	if !alice[0].ErrorMessage.Valid || alice[0].ErrorMessage.String != "bad date" {
		t.Errorf("error message = %+v", alice[0].ErrorMessage)
	}
	if !alice[1].PayloadJSON.Valid || alice[1].PayloadJSON.String != `{"value":"500-1000"}` {
		t.Errorf("payload = %+v", alice[1].PayloadJSON)
	}
	if alice[0].TraceID != "t_3" || alice[1].TraceID != "t_1" {
		t.Errorf("alice entries not newest-first: %q, %q", alice[0].TraceID, alice[1].TraceID)
	}
	if alice[0].Timestamp.IsZero() {
		t.Error("timestamp not scanned")
	}

	bob, err := s.GetAuditByActor(ctx, "@bob:example.org", 0)
	if err != nil {
		t.Fatalf("GetAuditByActor: %v", err)
	}
	if len(bob) != 1 || bob[0].Target.Valid || bob[0].PayloadJSON.String != `{"count":3}` {
		t.Errorf("bob entries = %+v", bob)
	}
}

func TestReportStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	empty, err := s.ReportStatsByActor(ctx, "@alice:example.org")
	if err != nil {
		t.Fatalf("ReportStatsByActor: %v", err)
	}
	if empty.Total != 0 || !empty.Last.IsZero() {
		t.Errorf("empty stats = %+v", empty)
	}

	records := []store.ReportRecord{
		{TraceID: "t_1", BatchID: "b1", ActorMXID: "@alice:example.org", SessionID: "s", Index: 0, Identifier: "51000001", Delivered: true},
		{TraceID: "t_1", BatchID: "b1", ActorMXID: "@alice:example.org", SessionID: "s", Index: 1, Identifier: "52000002", Delivered: false},
		{TraceID: "t_2", BatchID: "b2", ActorMXID: "@alice:example.org", SessionID: "s", Index: 0, Identifier: "53000003", Delivered: true},
		{TraceID: "t_3", BatchID: "b3", ActorMXID: "@bob:example.org", SessionID: "x", Index: 0, Identifier: "54000004", Delivered: true},
	}
	for _, r := range records {
		if err := s.RecordReport(ctx, r); err != nil {
			t.Fatalf("RecordReport: %v", err)
		}
	}

	st, err := s.ReportStatsByActor(ctx, "@alice:example.org")
	if err != nil {
		t.Fatalf("ReportStatsByActor: %v", err)
	}
	if st.Total != 3 || st.Delivered != 2 || st.Batches != 2 {
		t.Errorf("stats = %+v, want total 3, delivered 2, batches 2", st)
	}
	if st.Last.IsZero() {
		t.Error("last report time not set")
	}
}
