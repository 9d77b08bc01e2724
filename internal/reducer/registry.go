package reducer

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/scorelog/internal/model"
)

var (
	// ErrNilHandler is returned when registering a nil handler.
	ErrNilHandler = errors.New("reducer: nil handler")

	// ErrDuplicateHandler is returned when a type is registered twice.
	ErrDuplicateHandler = errors.New("reducer: duplicate handler")
)

type applyFunc func(State, model.Action) (State, error)

// Registry maps action types to handlers.
type Registry struct {
	handlers map[model.ActionType]applyFunc
	types    []model.ActionType
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[model.ActionType]applyFunc)}
}

// Handle registers a typed handler for t. The action payload is decoded into
// P before fn is called. Handle is a function rather than a method because
// methods cannot declare type parameters.
func Handle[P any](r *Registry, t model.ActionType, fn func(State, P) (State, error)) error {
	if fn == nil {
		return fmt.Errorf("%w: %s", ErrNilHandler, t)
	}
	if t == model.TypeUndo {
		return fmt.Errorf("register %s: undo is resolved by the tombstone pass", t)
	}
	if _, ok := r.handlers[t]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, t)
	}
	r.handlers[t] = func(s State, a model.Action) (State, error) {
		var payload P
		raw, err := json.Marshal(a.Payload)
		if err != nil {
			return s, fmt.Errorf("encode %s payload: %w", a.Type, err)
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return s, fmt.Errorf("decode %s payload: %w", a.Type, err)
		}
		return fn(s, payload)
	}
	r.types = append(r.types, t)
	return nil
}

// MustHandle is Handle that panics on error. For static registration.
func MustHandle[P any](r *Registry, t model.ActionType, fn func(State, P) (State, error)) {
	if err := Handle(r, t, fn); err != nil {
		panic(err)
	}
}

// Types returns the registered types in registration order.
func (r *Registry) Types() []model.ActionType {
	return slices.Clone(r.types)
}

// Has reports whether t has a handler.
func (r *Registry) Has(t model.ActionType) bool {
	_, ok := r.handlers[t]
	return ok
}

func (r *Registry) lookup(t model.ActionType) (applyFunc, bool) {
	fn, ok := r.handlers[t]
	return fn, ok
}
