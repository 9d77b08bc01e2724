package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/scorelog/internal/model"
)

// Snapshot is the cached client view of one game.
type Snapshot struct {
	GameID   string         `json:"gameId"`
	Actions  []model.Action `json:"actions"`
	Revision model.Revision `json:"revision"`
	// Pending lists the ids submitted locally and not yet acknowledged,
	// in submission order.
	Pending []string `json:"pending,omitempty"`
}

// CachedGame is one row of the snapshot listing.
type CachedGame struct {
	GameID    string
	Revision  model.Revision
	Actions   int
	Dirty     bool
	UpdatedAt int64
}

// Save writes the snapshot of game id. A dirty save always sets the flag;
// a clean save clears it.
func (s *Store) Save(ctx context.Context, id string, snap Snapshot, dirty bool) error {
	snap.GameID = id
	data, err := marshalSnapshot(snap)
	if err != nil {
		return fmt.Errorf("save %s: %w", id, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (game_id, snapshot, revision, dirty, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(game_id) DO UPDATE SET
			snapshot = excluded.snapshot,
			revision = excluded.revision,
			dirty = excluded.dirty,
			updated_at = excluded.updated_at
	`, id, data, string(snap.Revision), boolToInt(dirty), s.nowMillis())
	if err != nil {
		return fmt.Errorf("save %s: %w", id, err)
	}
	return nil
}

// Load returns the snapshot of game id, or ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM snapshots WHERE game_id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("load %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("load %s: %w", id, err)
	}
	snap, err := unmarshalSnapshot(data)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load %s: %w", id, err)
	}
	return snap, nil
}

// ListDirty returns the ids of games with unsynchronized local changes.
func (s *Store) ListDirty(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT game_id FROM snapshots WHERE dirty = 1 ORDER BY game_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list dirty: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list dirty: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list dirty: %w", err)
	}
	return ids, nil
}

// MarkClean clears the dirty flag of game id.
func (s *Store) MarkClean(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE snapshots SET dirty = 0 WHERE game_id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark clean %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark clean %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteSnapshot removes the cached game.
func (s *Store) DeleteSnapshot(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE game_id = ?`, id); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	return nil
}

// ListCached returns every cached game, most recently updated first.
func (s *Store) ListCached(ctx context.Context) ([]CachedGame, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT game_id, snapshot, revision, dirty, updated_at
		FROM snapshots
		ORDER BY updated_at DESC, game_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list cached: %w", err)
	}
	defer rows.Close()

	var out []CachedGame
	for rows.Next() {
		var (
			g     CachedGame
			data  string
			rev   string
			dirty int
		)
		if err := rows.Scan(&g.GameID, &data, &rev, &dirty, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list cached: %w", err)
		}
		snap, err := unmarshalSnapshot(data)
		if err != nil {
			return nil, fmt.Errorf("list cached %s: %w", g.GameID, err)
		}
		g.Revision = model.Revision(rev)
		g.Actions = len(snap.Actions)
		g.Dirty = dirty == 1
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cached: %w", err)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
