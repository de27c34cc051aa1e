package command

import (
	"context"

	"tanjun/pkg/injector"
)

// Vote is an error hook's verdict on an unclassified execution error.
type Vote int8

const (
	// VoteAbstain leaves the decision to the remaining hooks.
	VoteAbstain Vote = iota
	// VoteSuppress asks for the error to be swallowed.
	VoteSuppress
	// VoteReraise asks for the error to propagate to the event loop
	// boundary.
	VoteReraise
)

// PreHook runs after checks pass and arguments are resolved, before the
// callback body.
type PreHook func(ctx context.Context, cctx Context, args injector.Args) error

// SuccessHook runs only when the callback returned without error.
type SuccessHook func(ctx context.Context, cctx Context) error

// ErrorHook runs for unclassified execution errors and votes on whether
// the error should be suppressed.
type ErrorHook func(ctx context.Context, cctx Context, execErr error) Vote

// ParserErrorHook runs only for argument parsing failures. Its outcome
// is never re-raised.
type ParserErrorHook func(ctx context.Context, cctx Context, parserErr *ParserError) error

// Hooks bundles the four hook kinds attachable to a client, component
// or command. The zero value is usable.
type Hooks struct {
	pre         []PreHook
	success     []SuccessHook
	errors      []ErrorHook
	parserError []ParserErrorHook
}

// NewHooks creates an empty hook set.
func NewHooks() *Hooks { return &Hooks{} }

// AddPre appends a pre-execution hook.
func (h *Hooks) AddPre(fn PreHook) *Hooks {
	h.pre = append(h.pre, fn)
	return h
}

// AddSuccess appends a success hook.
func (h *Hooks) AddSuccess(fn SuccessHook) *Hooks {
	h.success = append(h.success, fn)
	return h
}

// AddError appends an error hook.
func (h *Hooks) AddError(fn ErrorHook) *Hooks {
	h.errors = append(h.errors, fn)
	return h
}

// AddParserError appends a parser-error hook.
func (h *Hooks) AddParserError(fn ParserErrorHook) *Hooks {
	h.parserError = append(h.parserError, fn)
	return h
}

// RunPre runs the pre-execution hooks sequentially, stopping at the
// first error.
func (h *Hooks) RunPre(ctx context.Context, cctx Context, args injector.Args) error {
	if h == nil {
		return nil
	}
	for _, fn := range h.pre {
		if err := fn(ctx, cctx, args); err != nil {
			return err
		}
	}
	return nil
}

// RunSuccess runs the success hooks sequentially. Hook errors are
// returned but do not undo the successful execution.
func (h *Hooks) RunSuccess(ctx context.Context, cctx Context) error {
	if h == nil {
		return nil
	}
	for _, fn := range h.success {
		if err := fn(ctx, cctx); err != nil {
			return err
		}
	}
	return nil
}

// ErrorLevel runs the error hooks sequentially and returns the net vote
// score: each suppress vote counts +1, each re-raise vote -1, abstain 0.
func (h *Hooks) ErrorLevel(ctx context.Context, cctx Context, execErr error) int {
	if h == nil {
		return 0
	}
	level := 0
	for _, fn := range h.errors {
		switch fn(ctx, cctx, execErr) {
		case VoteSuppress:
			level++
		case VoteReraise:
			level--
		}
	}
	return level
}

// RunParserError runs the parser-error hooks sequentially, returning
// the first hook error.
func (h *Hooks) RunParserError(ctx context.Context, cctx Context, parserErr *ParserError) (err error) {
	if h == nil {
		return nil
	}
	for _, fn := range h.parserError {
		if hookErr := fn(ctx, cctx, parserErr); hookErr != nil && err == nil {
			err = hookErr
		}
	}
	return err
}

// HasParserError reports whether any parser-error hook is attached.
func (h *Hooks) HasParserError() bool {
	return h != nil && len(h.parserError) > 0
}
