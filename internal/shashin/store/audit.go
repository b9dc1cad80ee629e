package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Audit results.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultDenied  = "denied"
)

// AuditEntry represents an audit log entry
type AuditEntry struct {
	ID           int64
	Timestamp    time.Time
	TraceID      string
	ActorMXID    string
	Action       string
	Target       sql.NullString
	PayloadJSON  sql.NullString
	Result       string
	ErrorMessage sql.NullString
}

// AuditPayload is a helper for structured audit payloads
type AuditPayload map[string]interface{}

// WriteAudit logs an audit entry
func (s *Store) WriteAudit(ctx context.Context, traceID, actorMXID, action, target, result string, payload AuditPayload, errorMsg string) error {
	var payloadJSON sql.NullString
	if payload != nil {
		jsonBytes, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal audit payload: %w", err)
		}
		payloadJSON = sql.NullString{String: string(jsonBytes), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (ts, trace_id, actor_mxid, action, target, payload_json, result, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.now().UTC(), traceID, actorMXID, action, nullString(target), payloadJSON, result, nullString(errorMsg))
	if err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// GetAuditByActor retrieves the most recent audit entries of one caller,
// newest first.
func (s *Store) GetAuditByActor(ctx context.Context, actorMXID string, limit int) ([]*AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryAudit(ctx, `
		SELECT id, ts, trace_id, actor_mxid, action, target, payload_json, result, error_message
		FROM audit_log
		WHERE actor_mxid = ?
		ORDER BY id DESC
		LIMIT ?
	`, actorMXID, limit)
}

func (s *Store) queryAudit(ctx context.Context, query string, args ...any) ([]*AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		entry := &AuditEntry{}
		err := rows.Scan(
			&entry.ID, &entry.Timestamp, &entry.TraceID, &entry.ActorMXID,
			&entry.Action, &entry.Target, &entry.PayloadJSON,
			&entry.Result, &entry.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log: %w", err)
	}
	return entries, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
