package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scorelog/internal/model"
	"github.com/roach88/scorelog/internal/session"
	"github.com/roach88/scorelog/internal/wire"
)

// echoServer answers every JOIN with an ACK and every PING with a PONG.
func echoServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/games/g1/channel" {
			http.NotFound(w, r)
			return
		}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := NewConn(c, time.Second)
		defer conn.Close()
		for {
			m, err := conn.Receive(context.Background())
			if err != nil {
				return
			}
			switch m := m.(type) {
			case wire.Join:
				conn.Send(context.Background(), wire.Ack{Head: m.LastRevision})
			case wire.Ping:
				conn.Send(context.Background(), wire.Pong{SentAt: m.SentAt})
			case wire.Submit:
				conn.Send(context.Background(), wire.SyncUpdate{Actions: m.All(), Head: model.Revision(m.All()[0].ID)})
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDialRoundTrip(t *testing.T) {
	srv := echoServer(t, "secret")
	d, err := NewDialer(srv.URL, WithToken("secret"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := d.Dial(ctx, "g1")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Send(ctx, wire.Join{GameID: "g1", LastRevision: "r3", SchemaVersion: 1}))
	m, err := conn.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, wire.Ack{Head: "r3"}, m)

	a := model.Action{ID: "a1", Type: "note.add", Payload: model.Obj(model.P("text", model.String("hi")))}
	require.NoError(t, conn.Send(ctx, wire.Submit{Action: &a, BaseRevision: "r3"}))
	m, err = conn.Receive(ctx)
	require.NoError(t, err)
	update, ok := m.(wire.SyncUpdate)
	require.True(t, ok)
	assert.Equal(t, "a1", update.Actions[0].ID)
}

func TestDialRejectedHandshakeIsAuthRequired(t *testing.T) {
	srv := echoServer(t, "secret")
	d, err := NewDialer(srv.URL, WithToken("wrong"))
	require.NoError(t, err)

	_, err = d.Dial(context.Background(), "g1")
	assert.True(t, session.IsAuthRequired(err), "got %v", err)
}

func TestDialUnreachableIsNetwork(t *testing.T) {
	srv := echoServer(t, "")
	url := srv.URL
	srv.Close()

	d, err := NewDialer(url)
	require.NoError(t, err)
	_, err = d.Dial(context.Background(), "g1")
	assert.True(t, session.IsNetwork(err), "got %v", err)
}

func TestReceiveHonorsContext(t *testing.T) {
	srv := echoServer(t, "")
	d, err := NewDialer(srv.URL)
	require.NoError(t, err)

	conn, err := d.Dial(context.Background(), "g1")
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = conn.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestChannelBase(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "http://h:1", want: "ws://h:1"},
		{in: "https://h/api", want: "wss://h/api"},
		{in: "wss://h", want: "wss://h"},
		{in: "ftp://h", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			u, err := channelBase(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
		})
	}
}
