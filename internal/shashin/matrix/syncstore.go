package matrix

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

var _ mautrix.SyncStore = (*DBSyncStore)(nil)

const (
	keyFilterID  = "filter_id"
	keyNextBatch = "next_batch"
)

// DBSyncStore persists the sync position and filter ID in the
// matrix_sync_state table so a restarted bot does not replay room history
// and answer old commands twice.
type DBSyncStore struct {
	db *sql.DB
}

// newDBSyncStore expects the matrix_sync_state migration to be applied.
func newDBSyncStore(db *sql.DB) *DBSyncStore {
	return &DBSyncStore{db: db}
}

func (s *DBSyncStore) SaveFilterID(ctx context.Context, userID id.UserID, filterID string) error {
	return s.put(ctx, userID, keyFilterID, filterID)
}

// LoadFilterID returns "" before the first filter is saved.
func (s *DBSyncStore) LoadFilterID(ctx context.Context, userID id.UserID) (string, error) {
	return s.get(ctx, userID, keyFilterID)
}

func (s *DBSyncStore) SaveNextBatch(ctx context.Context, userID id.UserID, nextBatchToken string) error {
	return s.put(ctx, userID, keyNextBatch, nextBatchToken)
}

// LoadNextBatch returns "" on the first run.
func (s *DBSyncStore) LoadNextBatch(ctx context.Context, userID id.UserID) (string, error) {
	return s.get(ctx, userID, keyNextBatch)
}

func (s *DBSyncStore) put(ctx context.Context, userID id.UserID, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO matrix_sync_state (user_id, key, value)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value
	`, userID.String(), key, value)
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *DBSyncStore) get(ctx context.Context, userID id.UserID, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM matrix_sync_state WHERE user_id = ? AND key = ?`,
		userID.String(), key,
	).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("failed to load %s: %w", key, err)
	}
	return value, nil
}
