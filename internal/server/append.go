package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/scorelog/internal/model"
	"github.com/roach88/scorelog/internal/store"
	"github.com/roach88/scorelog/internal/wire"
)

// errTooLarge rejects a submission over MaxBatch.
var errTooLarge = errors.New("too many actions in one submission")

// appendActions validates actions, appends them on base and broadcasts
// whatever was accepted. Conflicts come back in the result, not as errors.
func (s *Server) appendActions(ctx context.Context, game string, base model.Revision, actions []model.Action, transport string) (store.AppendResult, error) {
	if len(actions) == 0 {
		return store.AppendResult{}, &model.ValidationError{Field: "actions", Message: "empty submission"}
	}
	if len(actions) > MaxBatch {
		return store.AppendResult{}, &model.ValidationError{Field: "actions", Message: errTooLarge.Error()}
	}
	for _, a := range actions {
		if err := model.Validate(a); err != nil {
			return store.AppendResult{}, err
		}
	}
	if s.validator != nil {
		if err := s.validator.ValidateAll(actions); err != nil {
			return store.AppendResult{}, err
		}
	}

	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	res, err := s.store.Append(ctx, game, base, actions)
	if err != nil {
		return store.AppendResult{}, fmt.Errorf("append: %w", err)
	}
	if res.Conflict != nil {
		s.metrics.conflict(transport)
		s.logger.Debug("submission conflicts",
			"game", game,
			"base", base,
			"head", res.Head,
			"missing", len(res.Conflict.MissingActions),
			"divergent", res.Conflict.Divergent,
		)
		return res, nil
	}
	if len(res.Accepted) > 0 {
		s.metrics.appendedN(transport, len(res.Accepted))
		s.hub.broadcast(game, wire.SyncUpdate{Actions: res.Accepted, Head: res.Head})
		s.logger.Debug("actions appended", "game", game, "count", len(res.Accepted), "head", res.Head, "transport", transport)
	}
	return res, nil
}

// errorBody maps an append failure to its wire error.
func errorBody(err error) wire.Error {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		return wire.Error{Code: wire.CodeValidation, Reason: verr.Error()}
	}
	return wire.Error{Code: wire.CodeInternal, Reason: "internal error"}
}
