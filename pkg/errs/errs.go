package errs

import (
	"errors"
	"fmt"
)

// Kind categorizes errors so callers can map them to exit codes or status codes
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound              // Missing package, global, response or dependency
	KindMalformed             // JSON parse failure
	KindUnresolvedPlaceholder // Template key without a matching response
	KindTypeMismatch          // Substituted text does not parse into the field type
	KindReservedName          // Volume name collides with a backend-reserved filename
	KindIOFailure             // Filesystem error on read/write/rename
	KindBackendMismatch       // Engine asked to build a source variant it cannot run
	KindInvalid               // Structurally invalid input (bad title, cycle, unknown token)
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindMalformed:
		return "malformed"
	case KindUnresolvedPlaceholder:
		return "unresolved placeholder"
	case KindTypeMismatch:
		return "type mismatch"
	case KindReservedName:
		return "reserved name"
	case KindIOFailure:
		return "io failure"
	case KindBackendMismatch:
		return "backend mismatch"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String. Unrecognised text is KindUnknown.
func ParseKind(s string) Kind {
	for k := KindNotFound; k <= KindInvalid; k++ {
		if k.String() == s {
			return k
		}
	}
	return KindUnknown
}

// Sentinels for errors.Is checks. Any *Error of the same kind matches.
var (
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrMalformed             = &Error{Kind: KindMalformed}
	ErrUnresolvedPlaceholder = &Error{Kind: KindUnresolvedPlaceholder}
	ErrTypeMismatch          = &Error{Kind: KindTypeMismatch}
	ErrReservedName          = &Error{Kind: KindReservedName}
	ErrIOFailure             = &Error{Kind: KindIOFailure}
	ErrBackendMismatch       = &Error{Kind: KindBackendMismatch}
	ErrInvalid               = &Error{Kind: KindInvalid}
)

// Error wraps an underlying error with its kind and the operation that failed
type Error struct {
	Kind    Kind
	Op      string // "load", "write", "compile", "template", ...
	Subject string // package title, field name, file path
	Message string
	Err     error
}

// Error implements error interface
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err == nil {
		msg = e.Kind.String()
	}

	prefix := e.Op
	if e.Subject != "" {
		if prefix != "" {
			prefix += " "
		}
		prefix += e.Subject
	}

	switch {
	case prefix == "" && e.Err == nil:
		return msg
	case prefix == "":
		if msg == "" {
			return e.Err.Error()
		}
		return fmt.Sprintf("%s: %v", msg, e.Err)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", prefix, msg)
	case msg == "":
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v", prefix, msg, e.Err)
	}
}

// Unwrap implements error unwrapping
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates a new error of the given kind
func New(kind Kind, op, subject, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Subject: subject,
		Message: message,
	}
}

// Wrap creates a new error of the given kind around err
func Wrap(kind Kind, op, subject string, err error) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Subject: subject,
		Err:     err,
	}
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
