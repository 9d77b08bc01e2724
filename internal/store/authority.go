package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/scorelog/internal/model"
)

// AppendResult is the outcome of Append. Exactly one of Accepted (possibly
// empty for a pure retransmission) or Conflict is meaningful.
type AppendResult struct {
	Head     model.Revision
	Accepted []model.Action
	Conflict *model.ConflictRecord
}

// GameHead summarizes one authoritative log.
type GameHead struct {
	GameID    string
	Head      model.Revision
	Count     int
	UpdatedAt int64
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Append adds actions to the log of game if base is its current head.
//
// Actions whose ids are already stored are skipped, so a retransmitted
// submission is acknowledged without duplicating history. When some of the
// batch was stored before, the base is taken to be the last stored one,
// because submitters chain each action onto the previous.
//
// On a base mismatch nothing is written and the result carries a conflict
// with every action after the submitter's claimed base, including any of
// its own actions stored earlier. If base is not in the log at all the
// conflict is divergent and carries the whole log.
func (s *Store) Append(ctx context.Context, game string, base model.Revision, actions []model.Action) (AppendResult, error) {
	for _, a := range actions {
		if err := model.Validate(a); err != nil {
			return AppendResult{}, fmt.Errorf("append %s: %w", game, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return AppendResult{}, fmt.Errorf("append %s: begin: %w", game, err)
	}
	defer tx.Rollback()

	head, count, err := readHead(ctx, tx, game)
	if err != nil {
		return AppendResult{}, fmt.Errorf("append %s: %w", game, err)
	}

	claimed := base
	fresh := make([]model.Action, 0, len(actions))
	for _, a := range actions {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM actions WHERE game_id = ? AND id = ?`, game, a.ID).Scan(&exists)
		if err != nil {
			return AppendResult{}, fmt.Errorf("append %s: %w", game, err)
		}
		if exists > 0 {
			if len(fresh) > 0 {
				return AppendResult{}, fmt.Errorf("append %s: action %s already stored after new actions", game, a.ID)
			}
			base = model.Revision(a.ID)
			continue
		}
		fresh = append(fresh, a)
	}
	if len(fresh) == 0 {
		return AppendResult{Head: head}, nil
	}

	if base != head {
		conflict, err := conflictFor(ctx, tx, game, claimed, head)
		if err != nil {
			return AppendResult{}, fmt.Errorf("append %s: %w", game, err)
		}
		return AppendResult{Head: head, Conflict: conflict}, nil
	}

	for _, a := range fresh {
		if err := insertAction(ctx, tx, game, a); err != nil {
			return AppendResult{}, fmt.Errorf("append %s: %w", game, err)
		}
	}
	newHead := model.Revision(fresh[len(fresh)-1].ID)
	if err := writeHead(ctx, tx, game, newHead, count+len(fresh), s.nowMillis()); err != nil {
		return AppendResult{}, fmt.Errorf("append %s: %w", game, err)
	}
	if err := tx.Commit(); err != nil {
		return AppendResult{}, fmt.Errorf("append %s: commit: %w", game, err)
	}
	return AppendResult{Head: newHead, Accepted: fresh}, nil
}

func conflictFor(ctx context.Context, q querier, game string, base, head model.Revision) (*model.ConflictRecord, error) {
	missing, found, err := since(ctx, q, game, base)
	if err != nil {
		return nil, err
	}
	if !found {
		all, _, err := since(ctx, q, game, "")
		if err != nil {
			return nil, err
		}
		return &model.ConflictRecord{ServerHeadRevision: head, MissingActions: all, Divergent: true}, nil
	}
	return &model.ConflictRecord{ServerHeadRevision: head, MissingActions: missing}, nil
}

// Since returns the actions of game after rev. The boolean is false when
// rev is not in the log.
func (s *Store) Since(ctx context.Context, game string, rev model.Revision) ([]model.Action, bool, error) {
	actions, found, err := since(ctx, s.db, game, rev)
	if err != nil {
		return nil, false, fmt.Errorf("since %s: %w", game, err)
	}
	return actions, found, nil
}

// Actions returns the whole log of game.
func (s *Store) Actions(ctx context.Context, game string) ([]model.Action, error) {
	actions, _, err := s.Since(ctx, game, "")
	return actions, err
}

// Head returns the head revision and length of the log of game.
// An unknown game has the empty head.
func (s *Store) Head(ctx context.Context, game string) (model.Revision, int, error) {
	head, count, err := readHead(ctx, s.db, game)
	if err != nil {
		return "", 0, fmt.Errorf("head %s: %w", game, err)
	}
	return head, count, nil
}

// Overwrite replaces the log of game with actions.
func (s *Store) Overwrite(ctx context.Context, game string, actions []model.Action) (model.Revision, error) {
	if err := model.ValidateLog(actions); err != nil {
		return "", fmt.Errorf("overwrite %s: %w", game, err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("overwrite %s: begin: %w", game, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM actions WHERE game_id = ?`, game); err != nil {
		return "", fmt.Errorf("overwrite %s: %w", game, err)
	}
	for _, a := range actions {
		if err := insertAction(ctx, tx, game, a); err != nil {
			return "", fmt.Errorf("overwrite %s: %w", game, err)
		}
	}
	head := model.Revision("")
	if len(actions) > 0 {
		head = model.Revision(actions[len(actions)-1].ID)
	}
	if err := writeHead(ctx, tx, game, head, len(actions), s.nowMillis()); err != nil {
		return "", fmt.Errorf("overwrite %s: %w", game, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("overwrite %s: commit: %w", game, err)
	}
	return head, nil
}

// DeleteGame removes the log of game. This is the only way history is
// ever cleared.
func (s *Store) DeleteGame(ctx context.Context, game string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete %s: begin: %w", game, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM actions WHERE game_id = ?`, game); err != nil {
		return fmt.Errorf("delete %s: %w", game, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM heads WHERE game_id = ?`, game)
	if err != nil {
		return fmt.Errorf("delete %s: %w", game, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete %s: %w", game, ErrNotFound)
	}
	return tx.Commit()
}

// ListGames returns one page of logs, most recently updated first, and the
// total number of games.
func (s *Store) ListGames(ctx context.Context, offset, limit int) ([]GameHead, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM heads`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("list games: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT game_id, head, count, updated_at
		FROM heads
		ORDER BY updated_at DESC, game_id ASC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var out []GameHead
	for rows.Next() {
		var (
			g    GameHead
			head string
		)
		if err := rows.Scan(&g.GameID, &head, &g.Count, &g.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("list games: %w", err)
		}
		g.Head = model.Revision(head)
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list games: %w", err)
	}
	return out, total, nil
}

func readHead(ctx context.Context, q querier, game string) (model.Revision, int, error) {
	var (
		head  string
		count int
	)
	err := q.QueryRowContext(ctx, `SELECT head, count FROM heads WHERE game_id = ?`, game).Scan(&head, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, fmt.Errorf("read head: %w", err)
	}
	return model.Revision(head), count, nil
}

func writeHead(ctx context.Context, tx *sql.Tx, game string, head model.Revision, count int, now int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO heads (game_id, head, count, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(game_id) DO UPDATE SET
			head = excluded.head,
			count = excluded.count,
			updated_at = excluded.updated_at
	`, game, string(head), count, now)
	if err != nil {
		return fmt.Errorf("write head: %w", err)
	}
	return nil
}

func insertAction(ctx context.Context, tx *sql.Tx, game string, a model.Action) error {
	payload, err := marshalPayload(a.Payload)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO actions (game_id, id, type, payload, timestamp, user_id, schema_version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, game, a.ID, string(a.Type), payload, a.Timestamp, a.UserID, a.SchemaVersion)
	if err != nil {
		return fmt.Errorf("insert %s: %w", a.ID, err)
	}
	return nil
}

func since(ctx context.Context, q querier, game string, rev model.Revision) ([]model.Action, bool, error) {
	after := int64(0)
	if rev != "" {
		err := q.QueryRowContext(ctx, `SELECT seq FROM actions WHERE game_id = ? AND id = ?`, game, string(rev)).Scan(&after)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("locate %s: %w", rev, err)
		}
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, type, payload, timestamp, user_id, schema_version
		FROM actions
		WHERE game_id = ? AND seq > ?
		ORDER BY seq ASC
	`, game, after)
	if err != nil {
		return nil, false, fmt.Errorf("read actions: %w", err)
	}
	defer rows.Close()

	var out []model.Action
	for rows.Next() {
		var (
			a       model.Action
			typ     string
			payload string
		)
		if err := rows.Scan(&a.ID, &typ, &payload, &a.Timestamp, &a.UserID, &a.SchemaVersion); err != nil {
			return nil, false, fmt.Errorf("scan action: %w", err)
		}
		a.Type = model.ActionType(typ)
		if a.Payload, err = unmarshalPayload(payload); err != nil {
			return nil, false, fmt.Errorf("action %s: %w", a.ID, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("read actions: %w", err)
	}
	return out, true, nil
}
