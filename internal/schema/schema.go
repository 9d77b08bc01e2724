// Package schema validates action payloads against CUE definitions.
//
// Every known action type maps to a closed CUE definition under the
// top-level "actions" struct. A payload is valid when it unifies with its
// definition and the result is concrete. Unknown fields are rejected.
package schema

import (
	_ "embed"
	"fmt"
	"slices"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/scorelog/internal/model"
)

//go:embed actions.cue
var defaultSource string

// Validator checks payloads. Safe for concurrent use.
type Validator struct {
	mu     sync.Mutex
	ctx    *cue.Context
	defs   map[model.ActionType]cue.Value
	strict bool
}

// Option configures a Validator.
type Option func(*options)

type options struct {
	strict  bool
	sources []source
}

type source struct {
	name string
	body string
}

// WithStrict rejects action types that have no definition.
func WithStrict() Option {
	return func(o *options) { o.strict = true }
}

// WithSource adds CUE source unified with the built-in definitions. It may
// define new action types or narrow existing ones.
func WithSource(name, body string) Option {
	return func(o *options) { o.sources = append(o.sources, source{name: name, body: body}) }
}

// New compiles the built-in definitions plus any extra sources.
func New(opts ...Option) (*Validator, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	ctx := cuecontext.New()
	value := ctx.CompileString(defaultSource, cue.Filename("actions.cue"))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compile built-in schema: %w", formatCUEError(err))
	}
	for _, src := range o.sources {
		extra := ctx.CompileString(src.body, cue.Filename(src.name))
		if err := extra.Err(); err != nil {
			return nil, fmt.Errorf("compile %s: %w", src.name, formatCUEError(err))
		}
		value = value.Unify(extra)
		if err := value.Validate(); err != nil {
			return nil, fmt.Errorf("unify %s: %w", src.name, formatCUEError(err))
		}
	}

	actions := value.LookupPath(cue.ParsePath("actions"))
	if !actions.Exists() {
		return nil, fmt.Errorf("schema has no actions struct")
	}
	iter, err := actions.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterate actions: %w", formatCUEError(err))
	}
	defs := make(map[model.ActionType]cue.Value)
	for iter.Next() {
		defs[model.ActionType(iter.Label())] = iter.Value()
	}

	return &Validator{ctx: ctx, defs: defs, strict: o.strict}, nil
}

// MustNew is New for the built-in definitions; it panics on error.
func MustNew(opts ...Option) *Validator {
	v, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return v
}

// Types returns the action types with a definition, sorted.
func (v *Validator) Types() []model.ActionType {
	out := make([]model.ActionType, 0, len(v.defs))
	for t := range v.defs {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Validate checks a's payload. Failures are *model.ValidationError.
func (v *Validator) Validate(a model.Action) error {
	def, ok := v.defs[a.Type]
	if !ok {
		if v.strict {
			return &model.ValidationError{ActionID: a.ID, Field: "type", Message: fmt.Sprintf("unknown action type %q", a.Type)}
		}
		return nil
	}

	payload := a.Payload
	if payload == nil {
		payload = model.Object{}
	}
	raw, err := model.MarshalCanonical(payload)
	if err != nil {
		return &model.ValidationError{ActionID: a.ID, Field: "payload", Message: err.Error()}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	data := v.ctx.CompileBytes(raw, cue.Filename(a.ID+".json"))
	if err := data.Err(); err != nil {
		return &model.ValidationError{ActionID: a.ID, Field: "payload", Message: formatCUEError(err).Error()}
	}
	if err := def.Unify(data).Validate(cue.Concrete(true)); err != nil {
		return &model.ValidationError{ActionID: a.ID, Field: "payload", Message: formatCUEError(err).Error()}
	}
	return nil
}

// ValidateAll checks every action and returns the first failure.
func (v *Validator) ValidateAll(actions []model.Action) error {
	for _, a := range actions {
		if err := v.Validate(a); err != nil {
			return err
		}
	}
	return nil
}

// formatCUEError keeps the first error of a CUE error list.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	return errs[0]
}
