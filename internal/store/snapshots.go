package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/intelboard/intelboard/internal/feed"
)

// SnapshotMeta describes one cached snapshot without its payload.
type SnapshotMeta struct {
	ID        int64
	CacheKey  string
	ItemCount int
	PulledAt  time.Time
}

// SaveSnapshot persists a snapshot and returns its row ID.
func (s *Store) SaveSnapshot(snap *feed.Snapshot) (int64, error) {
	reportJSON, err := json.Marshal(snap.Report)
	if err != nil {
		return 0, fmt.Errorf("marshaling report: %w", err)
	}
	itemsJSON, err := json.Marshal(snap.Items)
	if err != nil {
		return 0, fmt.Errorf("marshaling items: %w", err)
	}
	historyJSON, err := json.Marshal(snap.History)
	if err != nil {
		return 0, fmt.Errorf("marshaling history: %w", err)
	}
	buildJSON, err := json.Marshal(snap.Build)
	if err != nil {
		return 0, fmt.Errorf("marshaling build: %w", err)
	}

	pulledAt := snap.FetchedAt
	if pulledAt.IsZero() {
		pulledAt = time.Now().UTC()
	}

	result, err := s.conn.Exec(
		`INSERT INTO snapshots (cache_key, report_json, items_json, history_json, build_json, item_count, pulled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.CacheKey, string(reportJSON), string(itemsJSON), string(historyJSON),
		string(buildJSON), len(snap.Items), pulledAt.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting snapshot: %w", err)
	}
	return result.LastInsertId()
}

// LatestSnapshot returns the most recently pulled snapshot, or nil when
// the cache is empty.
func (s *Store) LatestSnapshot() (*feed.Snapshot, error) {
	row := s.conn.QueryRow(
		`SELECT cache_key, report_json, items_json, history_json, build_json, pulled_at
		FROM snapshots ORDER BY id DESC LIMIT 1`,
	)

	var (
		cacheKey, reportJSON, itemsJSON string
		historyJSON, buildJSON          sql.NullString
		pulledAt                        string
	)
	err := row.Scan(&cacheKey, &reportJSON, &itemsJSON, &historyJSON, &buildJSON, &pulledAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	snap := &feed.Snapshot{CacheKey: cacheKey}
	if err := json.Unmarshal([]byte(reportJSON), &snap.Report); err != nil {
		return nil, fmt.Errorf("unmarshaling report: %w", err)
	}
	if err := json.Unmarshal([]byte(itemsJSON), &snap.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling items: %w", err)
	}
	if historyJSON.Valid && historyJSON.String != "" {
		if err := json.Unmarshal([]byte(historyJSON.String), &snap.History); err != nil {
			return nil, fmt.Errorf("unmarshaling history: %w", err)
		}
	}
	if buildJSON.Valid && buildJSON.String != "" {
		if err := json.Unmarshal([]byte(buildJSON.String), &snap.Build); err != nil {
			return nil, fmt.Errorf("unmarshaling build: %w", err)
		}
	}
	if t, err := time.Parse(time.RFC3339, pulledAt); err == nil {
		snap.FetchedAt = t
	}
	return snap, nil
}

// ListSnapshots returns metadata for the most recent snapshots, newest
// first.
func (s *Store) ListSnapshots(limit int) ([]SnapshotMeta, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.conn.Query(
		`SELECT id, cache_key, item_count, pulled_at
		FROM snapshots ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotMeta
	for rows.Next() {
		var m SnapshotMeta
		var pulledAt string
		if err := rows.Scan(&m.ID, &m.CacheKey, &m.ItemCount, &pulledAt); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, pulledAt); err == nil {
			m.PulledAt = t
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// PruneSnapshots deletes all but the newest keep snapshots.
func (s *Store) PruneSnapshots(keep int) error {
	if keep <= 0 {
		keep = 1
	}
	_, err := s.conn.Exec(
		`DELETE FROM snapshots WHERE id NOT IN
		(SELECT id FROM snapshots ORDER BY id DESC LIMIT ?)`, keep,
	)
	return err
}
