package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/scorelog/internal/session"
)

// Dialer opens game channels at {base}/games/{id}/channel.
type Dialer struct {
	base         *url.URL
	token        string
	dialer       *websocket.Dialer
	writeTimeout time.Duration
	logger       *slog.Logger
}

// DialerOption configures a Dialer.
type DialerOption func(*Dialer)

// WithToken sends a bearer token with the upgrade request.
func WithToken(token string) DialerOption {
	return func(d *Dialer) { d.token = token }
}

// WithHandshakeTimeout bounds the upgrade handshake.
func WithHandshakeTimeout(t time.Duration) DialerOption {
	return func(d *Dialer) { d.dialer.HandshakeTimeout = t }
}

// WithWriteTimeout bounds each frame write on dialed channels.
func WithWriteTimeout(t time.Duration) DialerOption {
	return func(d *Dialer) { d.writeTimeout = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) DialerOption {
	return func(d *Dialer) { d.logger = l }
}

// NewDialer creates a dialer for the server at baseURL (http, https, ws or
// wss).
func NewDialer(baseURL string, opts ...DialerOption) (*Dialer, error) {
	u, err := channelBase(baseURL)
	if err != nil {
		return nil, err
	}
	d := &Dialer{
		base: u,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		writeTimeout: DefaultWriteTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dial opens the channel for gameID. A rejected handshake is classified
// the way the batch transport classifies responses.
func (d *Dialer) Dial(ctx context.Context, gameID string) (session.Conn, error) {
	target := d.base.JoinPath("games", gameID, "channel").String()
	header := http.Header{}
	if d.token != "" {
		header.Set("Authorization", "Bearer "+d.token)
	}

	c, resp, err := d.dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				return nil, &session.SyncError{Kind: session.KindAuthRequired, Message: "channel handshake rejected", Err: err}
			case http.StatusTooManyRequests:
				return nil, &session.SyncError{Kind: session.KindRateLimited, Message: "channel handshake throttled", Err: err}
			}
		}
		return nil, &session.SyncError{Kind: session.KindNetwork, Message: "dial " + target, Err: err}
	}
	d.logger.Debug("channel open", "game", gameID, "url", target)
	return NewConn(c, d.writeTimeout), nil
}

func channelBase(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	return u, nil
}
