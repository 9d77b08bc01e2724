package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scorelog/internal/config"
)

const sampleLog = `[
  {"id": "a1", "type": "game.start", "timestamp": 1},
  {"id": "a2", "type": "score.add", "payload": {"team": "home", "points": 2}, "timestamp": 2},
  {"id": "a3", "type": "score.add", "payload": {"team": "away", "points": 3}, "timestamp": 3},
  {"id": "a4", "type": "undo", "payload": {"refId": "a3"}, "timestamp": 4},
  {"id": "a5", "type": "score.add", "payload": {"team": "home", "points": 1}, "timestamp": 5}
]`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// execute runs cmd with args and returns stdout and the command error.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

type response[T any] struct {
	Status string    `json:"status"`
	Data   T         `json:"data"`
	Error  *CLIError `json:"error"`
}

func decode[T any](t *testing.T, out string) response[T] {
	t.Helper()
	var resp response[T]
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

// startServer runs a reference server on a temporary database.
func startServer(t *testing.T) string {
	t.Helper()
	st, srv, err := buildServer(config.Server{
		DBPath:    filepath.Join(t.TempDir(), "server.db"),
		RateLimit: 1000,
		RateBurst: 1000,
	}, (&RootOptions{}).Logger())
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ts.Close()
		st.Close()
	})
	return ts.URL
}
