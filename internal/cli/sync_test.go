package cli

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scorelog/internal/model"
	"github.com/roach88/scorelog/internal/session"
)

func TestParseAdd(t *testing.T) {
	tests := []struct {
		raw     string
		typ     model.ActionType
		payload model.Object
		wantErr bool
	}{
		{raw: "game.start", typ: "game.start", payload: model.Object{}},
		{raw: `score.add={"team":"home","points":2}`, typ: "score.add", payload: model.Obj(model.P("team", model.String("home")), model.P("points", model.Int(2)))},
		{raw: "=", wantErr: true},
		{raw: "score.add=[1]", wantErr: true},
		{raw: "score.add={", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			rec, err := parseAdd(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.typ, rec.typ)
			assert.Equal(t, tt.payload, rec.payload)
		})
	}
}

func TestParseStrategy(t *testing.T) {
	r, err := parseStrategy("keep-remote", "")
	require.NoError(t, err)
	assert.Equal(t, session.KeepRemote, r.Strategy)

	r, err = parseStrategy("fork", "")
	require.NoError(t, err)
	assert.Equal(t, session.Fork, r.Strategy)
	assert.NotEmpty(t, r.ForkGameID)

	r, err = parseStrategy("fork", "g1-copy")
	require.NoError(t, err)
	assert.Equal(t, "g1-copy", r.ForkGameID)

	_, err = parseStrategy("merge", "")
	assert.Error(t, err)
}

func TestSyncRecordsAndSettles(t *testing.T) {
	url := startServer(t)
	cache := filepath.Join(t.TempDir(), "cache.db")

	out, err := execute(NewSyncCommand(&RootOptions{Format: "json"}),
		"--server", url, "--cache", cache, "--game", "g1", "--user", "u1", "--wait", "10s",
		"--add", "game.start",
		"--add", `score.add={"team":"home","points":2}`,
	)
	require.NoError(t, err, out)

	resp := decode[SyncResult](t, out)
	require.Len(t, resp.Data.Games, 1)
	g := resp.Data.Games[0]
	assert.Equal(t, session.StatusSynced, g.Status)
	assert.Equal(t, 2, g.Actions)
	assert.Empty(t, g.Pending)
	require.Len(t, g.Recorded, 2)
	assert.Equal(t, model.Revision(g.Recorded[1]), g.Revision)
	assert.Equal(t, int64(2), g.State.Scores["home"])

	// A second client with its own cache catches up and undoes the score.
	other := filepath.Join(t.TempDir(), "other.db")
	out, err = execute(NewSyncCommand(&RootOptions{Format: "json"}),
		"--server", url, "--cache", other, "--game", "g1", "--wait", "10s", "--undo",
	)
	require.NoError(t, err, out)
	g = decode[SyncResult](t, out).Data.Games[0]
	assert.Equal(t, 3, g.Actions)
	assert.Zero(t, g.State.Scores["home"])

	// The first client picks the UNDO up on its next sync.
	out, err = execute(NewSyncCommand(&RootOptions{Format: "json"}),
		"--server", url, "--cache", cache, "--game", "g1", "--wait", "10s",
	)
	require.NoError(t, err, out)
	g = decode[SyncResult](t, out).Data.Games[0]
	assert.Equal(t, 3, g.Actions)
	assert.Empty(t, g.Recorded)
}

func TestSyncOfflineKeepsActionsPending(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	offline := "http://" + ln.Addr().String()
	require.NoError(t, ln.Close())
	cache := filepath.Join(t.TempDir(), "cache.db")

	out, err := execute(NewSyncCommand(&RootOptions{Format: "json"}),
		"--server", offline, "--cache", cache, "--game", "g1", "--wait", "300ms",
		"--add", `note.add={"text":"rain delay"}`,
	)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decode[SyncResult](t, out)
	assert.Equal(t, "error", resp.Status)
	require.Len(t, resp.Data.Games, 1)
	assert.Len(t, resp.Data.Games[0].Pending, 1)
	assert.Contains(t, resp.Error.Message, "kept in the cache")
	assert.GreaterOrEqual(t, resp.Data.Stats["reconnects"], float64(1))

	actions, err := loadCached(context.Background(), cache, "g1")
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, model.ActionType("note.add"), actions[0].Type)

	// Once the server is up, a plain sync drains every dirty game.
	url := startServer(t)
	out, err = execute(NewSyncCommand(&RootOptions{Format: "json"}),
		"--server", url, "--cache", cache, "--wait", "10s",
	)
	require.NoError(t, err, out)
	resp = decode[SyncResult](t, out)
	require.Len(t, resp.Data.Games, 1)
	assert.Equal(t, "g1", resp.Data.Games[0].Game)
	assert.Empty(t, resp.Data.Games[0].Pending)

	out, err = execute(NewSyncCommand(&RootOptions{Format: "text"}),
		"--server", url, "--cache", cache, "--wait", "10s",
	)
	require.NoError(t, err)
	assert.Equal(t, "Nothing to sync\n", out)
}

func TestSyncRejectsBadInput(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "cache.db")
	tests := []struct {
		name string
		args []string
	}{
		{"bad action", []string{"--game", "g1", "--cache", cache, "--add", "score.add=oops"}},
		{"bad resolution", []string{"--game", "g1", "--cache", cache, "--resolve", "merge"}},
		{"bad server", []string{"--game", "g1", "--cache", cache, "--server", "ftp://example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(NewSyncCommand(&RootOptions{Format: "text"}), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}

	_, err := execute(NewSyncCommand(&RootOptions{Format: "text"}), "--cache", cache, "--undo")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
