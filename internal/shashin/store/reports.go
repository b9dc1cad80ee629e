package store

import (
	"context"
	"fmt"
	"time"
)

// ReportRecord is one generated report. The report body is not stored.
type ReportRecord struct {
	TraceID    string
	BatchID    string
	ActorMXID  string
	SessionID  string
	Index      int
	Identifier string
	Delivered  bool
}

// RecordReport logs one generated report.
func (s *Store) RecordReport(ctx context.Context, r ReportRecord) error {
	delivered := 0
	if r.Delivered {
		delivered = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO report_log (ts, trace_id, batch_id, actor_mxid, session_id, item_index, identifier, delivered)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.now().UTC(), r.TraceID, r.BatchID, r.ActorMXID, r.SessionID, r.Index, r.Identifier, delivered)
	if err != nil {
		return fmt.Errorf("failed to record report: %w", err)
	}
	return nil
}

// ReportStats summarizes the reports generated for one caller.
type ReportStats struct {
	Total     int
	Delivered int
	Batches   int
	Last      time.Time
}

// ReportStatsByActor returns report counters for one caller.
func (s *Store) ReportStatsByActor(ctx context.Context, actorMXID string) (ReportStats, error) {
	var st ReportStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(delivered), 0), COUNT(DISTINCT batch_id)
		FROM report_log
		WHERE actor_mxid = ?
	`, actorMXID).Scan(&st.Total, &st.Delivered, &st.Batches)
	if err != nil {
		return ReportStats{}, fmt.Errorf("failed to query report stats: %w", err)
	}
	if st.Total == 0 {
		return st, nil
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT ts FROM report_log WHERE actor_mxid = ? ORDER BY id DESC LIMIT 1
	`, actorMXID).Scan(&st.Last)
	if err != nil {
		return ReportStats{}, fmt.Errorf("failed to query last report: %w", err)
	}
	return st, nil
}
