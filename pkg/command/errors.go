package command

import (
	"errors"
	"fmt"
)

// CommandError ends execution with a specific user-facing response. It
// is always answered and never re-raised past the pipeline.
type CommandError struct {
	// Message is the response content sent to the invoker.
	Message string
	// Ephemeral marks the response as only visible to the invoker.
	Ephemeral bool
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command error: %s", e.Message)
}

// NewCommandError creates a user-facing command error.
func NewCommandError(format string, args ...any) *CommandError {
	return &CommandError{Message: fmt.Sprintf(format, args...)}
}

// ErrHalt signals the pipeline to stop immediately without producing an
// error response. Callbacks and checks return it (possibly wrapped) to
// abort silently.
var ErrHalt = errors.New("command execution halted")

// ParserError reports an argument parsing or conversion failure for a
// message command. It is routed to parser-error hooks only and never
// re-raised.
type ParserError struct {
	// Message describes the failure in user-presentable terms.
	Message string
	// Parameter names the offending option, when known.
	Parameter string
	// Err is the underlying conversion error, if any.
	Err error
}

func (e *ParserError) Error() string {
	if e.Parameter != "" {
		return fmt.Sprintf("parser error for %q: %s", e.Parameter, e.Message)
	}
	return "parser error: " + e.Message
}

func (e *ParserError) Unwrap() error { return e.Err }

// NotFoundError reports a slash or menu name path that matched no
// registered command.
type NotFoundError struct {
	Path []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no command registered for path %v", e.Path)
}

// RegistrationError reports an invalid declaration, such as duplicate
// names or over-deep sub-group nesting. It is raised at declaration
// time, never during dispatch.
type RegistrationError struct {
	Message string
}

func (e *RegistrationError) Error() string {
	return "registration error: " + e.Message
}

func registrationErrorf(format string, args ...any) *RegistrationError {
	return &RegistrationError{Message: fmt.Sprintf(format, args...)}
}
