package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/roach88/scorelog/internal/model"
	"github.com/roach88/scorelog/internal/store"
	"github.com/roach88/scorelog/internal/wire"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200

	// maxBody bounds request bodies. A full batch is far smaller.
	maxBody = 4 << 20
)

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// authCheck succeeds once the request got past authenticate.
func (s *Server) authCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// submitBatch is the batched fallback: the body is a wire.Submit.
func (s *Server) submitBatch(w http.ResponseWriter, r *http.Request) {
	game := mux.Vars(r)["id"]
	var body wire.Submit
	if !s.decode(w, r, &body) {
		return
	}
	actions := body.All()

	if ok, wait := s.limits.allow(clientKey(r), len(actions), s.now()); !ok {
		s.metrics.reject("rate_limited")
		w.Header().Set("Retry-After", retryAfterSeconds(wait))
		writeError(w, http.StatusTooManyRequests, wire.Error{
			Code:         wire.CodeRateLimited,
			Reason:       "rate limit exceeded",
			RetryAfterMs: wait.Milliseconds(),
		})
		return
	}

	res, err := s.appendActions(r.Context(), game, body.BaseRevision, actions, "batch")
	if err != nil {
		s.fail(w, game, err)
		return
	}
	if res.Conflict != nil {
		writeJSON(w, http.StatusConflict, res.Conflict)
		return
	}
	writeJSON(w, http.StatusOK, wire.BatchResponse{Head: res.Head, Actions: nonNil(res.Accepted)})
}

// overwriteLog replaces a game's log. Open channels of the game are closed
// so every client re-JOINs against the new history.
func (s *Server) overwriteLog(w http.ResponseWriter, r *http.Request) {
	game := mux.Vars(r)["id"]
	var body wire.Overwrite
	if !s.decode(w, r, &body) {
		return
	}
	if s.validator != nil {
		if err := s.validator.ValidateAll(body.Actions); err != nil {
			s.fail(w, game, err)
			return
		}
	}

	s.appendMu.Lock()
	head, err := s.store.Overwrite(r.Context(), game, body.Actions)
	if err == nil {
		s.hub.closeGame(game)
	}
	s.appendMu.Unlock()
	if err != nil {
		s.fail(w, game, err)
		return
	}
	s.logger.Info("log overwritten", "game", game, "head", head, "count", len(body.Actions))
	writeJSON(w, http.StatusOK, wire.BatchResponse{Head: head, Actions: nonNil(body.Actions)})
}

func (s *Server) deleteGame(w http.ResponseWriter, r *http.Request) {
	game := mux.Vars(r)["id"]

	s.appendMu.Lock()
	err := s.store.DeleteGame(r.Context(), game)
	if err == nil {
		s.hub.closeGame(game)
	}
	s.appendMu.Unlock()

	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, wire.Error{Code: wire.CodeValidation, Reason: "unknown game " + game})
		return
	}
	if err != nil {
		s.fail(w, game, err)
		return
	}
	s.logger.Info("game deleted", "game", game)
	w.WriteHeader(http.StatusNoContent)
}

// listGames serves one page of the game listing: ?offset=&limit=.
func (s *Server) listGames(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, wire.Error{Code: wire.CodeValidation, Reason: "bad offset"})
		return
	}
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil || limit <= 0 {
		writeError(w, http.StatusBadRequest, wire.Error{Code: wire.CodeValidation, Reason: "bad limit"})
		return
	}
	limit = min(limit, maxPageSize)

	heads, total, err := s.store.ListGames(r.Context(), offset, limit)
	if err != nil {
		s.fail(w, "", err)
		return
	}
	page := wire.GamePage{Items: make([]wire.GameSummary, 0, len(heads)), Total: total}
	for _, h := range heads {
		page.Items = append(page.Items, wire.GameSummary{
			ID:        h.GameID,
			Head:      h.Head,
			Actions:   h.Count,
			UpdatedAt: h.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		s.metrics.reject("protocol")
		writeError(w, http.StatusBadRequest, wire.Error{Code: wire.CodeProtocol, Reason: "malformed body: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, game string, err error) {
	body := errorBody(err)
	s.metrics.reject(string(body.Code))
	if body.Code == wire.CodeValidation {
		writeError(w, http.StatusBadRequest, body)
		return
	}
	s.logger.Error("request failed", "game", game, "error", err)
	writeError(w, http.StatusInternalServerError, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, body wire.Error) {
	writeJSON(w, status, body)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func nonNil(actions []model.Action) []model.Action {
	if actions == nil {
		return []model.Action{}
	}
	return actions
}
