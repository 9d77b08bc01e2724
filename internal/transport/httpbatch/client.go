// Package httpbatch is the request/response fallback transport: batched
// submission, forced log overwrite, auth polling and the paginated game
// listing.
package httpbatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/roach88/scorelog/internal/merge"
	"github.com/roach88/scorelog/internal/model"
	"github.com/roach88/scorelog/internal/session"
	"github.com/roach88/scorelog/internal/wire"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Client talks to the server's HTTP endpoints.
type Client struct {
	base   *url.URL
	http   *http.Client
	token  string
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithToken sends a bearer token with every request.
func WithToken(token string) Option {
	return func(cl *Client) { cl.token = token }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	c := &Client{base: u, http: http.DefaultClient, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SubmitBatch posts actions built on base to /games/{id}/actions.
func (c *Client) SubmitBatch(ctx context.Context, gameID string, base model.Revision, actions []model.Action) (wire.BatchResponse, error) {
	body := wire.Submit{Actions: actions, BaseRevision: base}
	var out wire.BatchResponse
	if err := c.do(ctx, http.MethodPost, c.base.JoinPath("games", gameID, "actions"), body, &out); err != nil {
		return wire.BatchResponse{}, err
	}
	c.logger.Debug("batch accepted", "game", gameID, "sent", len(actions), "accepted", len(out.Actions), "head", out.Head)
	return out, nil
}

// Overwrite replaces the whole authoritative log of gameID.
func (c *Client) Overwrite(ctx context.Context, gameID string, actions []model.Action) (model.Revision, error) {
	var out wire.BatchResponse
	if err := c.do(ctx, http.MethodPut, c.base.JoinPath("games", gameID, "log"), wire.Overwrite{Actions: actions}, &out); err != nil {
		return "", err
	}
	return out.Head, nil
}

// Delete removes gameID from the server.
func (c *Client) Delete(ctx context.Context, gameID string) error {
	return c.do(ctx, http.MethodDelete, c.base.JoinPath("games", gameID), nil, nil)
}

// CheckAuth succeeds once the server accepts the client's credentials.
func (c *Client) CheckAuth(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.base.JoinPath("auth", "check"), nil, nil)
}

// FetchPage lists games, most recently updated first.
func (c *Client) FetchPage(ctx context.Context, offset, limit int) (merge.Page[wire.GameSummary], error) {
	u := c.base.JoinPath("games")
	q := u.Query()
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	var page wire.GamePage
	if err := c.do(ctx, http.MethodGet, u, nil, &page); err != nil {
		return merge.Page[wire.GameSummary]{}, err
	}
	return merge.Page[wire.GameSummary]{Items: page.Items, Total: page.Total}, nil
}

func (c *Client) do(ctx context.Context, method string, u *url.URL, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, u.Path, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, u.Path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &session.SyncError{Kind: session.KindNetwork, Message: method + " " + u.Path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &session.SyncError{Kind: session.KindProtocol, Message: "decode " + u.Path, Err: err}
		}
		return nil
	}
	return classify(resp)
}

// ErrNotFound is wrapped by errors for requests naming an unknown game.
var ErrNotFound = errors.New("httpbatch: not found")

// classify turns a non-2xx response into a *session.SyncError.
func classify(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode == http.StatusConflict {
		var rec model.ConflictRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return &session.SyncError{Kind: session.KindProtocol, Message: "decode conflict", Err: err}
		}
		return &session.SyncError{Kind: session.KindConflict, Message: "base revision is stale", Conflict: &rec}
	}

	var e wire.Error
	if err := json.Unmarshal(raw, &e); err != nil || e.Reason == "" {
		e.Reason = http.StatusText(resp.StatusCode)
	}
	se := &session.SyncError{Message: e.Reason}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		se.Kind = session.KindAuthRequired
	case resp.StatusCode == http.StatusTooManyRequests:
		se.Kind = session.KindRateLimited
		se.RetryAfter = retryAfter(resp.Header.Get("Retry-After"), e.RetryAfterMs)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		se.Kind = session.KindValidation
	case resp.StatusCode == http.StatusNotFound:
		se.Kind = session.KindNetwork
		se.Err = fmt.Errorf("status %d: %w", resp.StatusCode, ErrNotFound)
	default:
		se.Kind = session.KindNetwork
		se.Err = fmt.Errorf("status %d", resp.StatusCode)
	}
	return se
}

// retryAfter prefers the body's millisecond hint over the header's
// seconds.
func retryAfter(header string, ms int64) time.Duration {
	if ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

var (
	_ session.Batcher                     = (*Client)(nil)
	_ session.AuthChecker                 = (*Client)(nil)
	_ merge.PageFetcher[wire.GameSummary] = (*Client)(nil)
)
