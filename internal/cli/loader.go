package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/roach88/scorelog/internal/model"
	"github.com/roach88/scorelog/internal/store"
)

// maxLine bounds one action in a JSON-lines file.
const maxLine = 1 << 20

// loadActions reads an action log. Accepted forms: a JSON array of actions,
// an object with an "actions" array (a cache snapshot or batch response),
// or JSON lines with one action each.
func loadActions(path string) ([]model.Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%s: empty file", path)
	}

	switch trimmed[0] {
	case '[':
		var actions []model.Action
		if err := json.Unmarshal(trimmed, &actions); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return actions, nil
	case '{':
		var wrapped struct {
			Actions []model.Action `json:"actions"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err == nil && wrapped.Actions != nil {
			return wrapped.Actions, nil
		}
		return loadLines(path, trimmed)
	default:
		return nil, fmt.Errorf("%s: expected JSON array, object or lines", path)
	}
}

func loadLines(path string, data []byte) ([]model.Action, error) {
	var out []model.Action
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64<<10), maxLine)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		var a model.Action
		if err := json.Unmarshal(text, &a); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		out = append(out, a)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// loadCached reads the cached log of game from a client cache database.
func loadCached(ctx context.Context, dbPath, game string) ([]model.Action, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	defer st.Close()
	snap, err := st.Load(ctx, game)
	if err != nil {
		return nil, err
	}
	return snap.Actions, nil
}
