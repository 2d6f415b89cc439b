package classic

import "errors"

// Kind classifies a protocol-level failure. All of these terminate the
// session that produced them.
type Kind int

const (
	// KindConnectionClosed means the stream ended mid-frame, or was reset.
	KindConnectionClosed Kind = iota
	// KindProtocolViolation means an unknown opcode, an ext-entry overflow,
	// or another structurally invalid sequence was observed.
	KindProtocolViolation
	// KindVersionMismatch means a hello frame carried a version other than
	// ProtocolVersion.
	KindVersionMismatch
	// KindStringTooLong means an outbound string exceeds 64 encoded bytes.
	KindStringTooLong
	// KindEncodingError means text could not be represented in the
	// session's current text encoding.
	KindEncodingError
)

func (k Kind) String() string {
	switch k {
	case KindConnectionClosed:
		return "connection closed"
	case KindProtocolViolation:
		return "protocol violation"
	case KindVersionMismatch:
		return "version mismatch"
	case KindStringTooLong:
		return "string too long"
	case KindEncodingError:
		return "encoding error"
	default:
		return "unknown error"
	}
}

// Error is the error type produced by this package's codec and session
// state machine.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Kind.String() + ": " + e.Msg
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func wrapErr(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}
