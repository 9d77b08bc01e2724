package cli

import (
	"context"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scorelog/internal/config"
)

func TestServeShutsDownOnCancel(t *testing.T) {
	st, srv, err := buildServer(config.Server{
		DBPath:    filepath.Join(t.TempDir(), "server.db"),
		RateLimit: 10,
		RateBurst: 10,
	}, (&RootOptions{}).Logger())
	require.NoError(t, err)
	defer st.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, ln, srv, (&RootOptions{}).Logger()) }()

	base := "http://" + ln.Addr().String()
	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok\n", string(body))

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "go_goroutines")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestBuildServerBadSchema(t *testing.T) {
	_, _, err := buildServer(config.Server{
		DBPath:     filepath.Join(t.TempDir(), "server.db"),
		RateLimit:  10,
		RateBurst:  10,
		SchemaFile: filepath.Join(t.TempDir(), "missing.cue"),
	}, (&RootOptions{}).Logger())
	require.Error(t, err)
}

func TestServeRejectsBadConfig(t *testing.T) {
	t.Setenv("SCORELOG_RATE_LIMIT", "0")
	_, err := execute(NewServeCommand(&RootOptions{Format: "text"}), "--addr", "127.0.0.1:0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
