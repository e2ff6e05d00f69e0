// Package deployerr defines the errors returned by the deployer core.
//
// Contract violations (a caller bug) wrap ErrInvalidArgument or ErrInvalidState.
// Data errors that should reach the end user as a validation message are
// returned as *Error with a Kind.
package deployerr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument marks a missing, empty or otherwise unusable argument.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidState marks an operation that is not allowed in the receiver's current state.
	ErrInvalidState = errors.New("invalid state")
)

// Kind is the category of a deployment data error.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindMissingMapping
	KindIncompleteMapping
	KindInvalidTarget
)

func (k Kind) String() string {
	switch k {
	case KindMissingMapping:
		return "missing id mapping"
	case KindIncompleteMapping:
		return "incomplete id mapping"
	case KindInvalidTarget:
		return "invalid mapping target"
	default:
		return "unknown"
	}
}

// Error is a deployment data error. It carries enough of the offending
// object's identity to build an actionable message.
type Error struct {
	Kind Kind

	// Op is the operation that failed, e.g. "idmap.GetNewID".
	Op string

	ObjectType string
	ID         string

	// Server is the source server the id belongs to.
	Server string

	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s for %s %q", e.Kind, e.ObjectType, e.ID)
	if e.Server != "" {
		msg += fmt.Sprintf(" from server %s", e.Server)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so callers can write
// errors.Is(err, &deployerr.Error{Kind: deployerr.KindMissingMapping}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// IsKind reports whether err is a deployment *Error of kind k.
func IsKind(err error, k Kind) bool {
	var de *Error
	if !errors.As(err, &de) {
		return false
	}
	return de.Kind == k
}

// Invalid returns an error wrapping ErrInvalidArgument.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// State returns an error wrapping ErrInvalidState.
func State(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}
