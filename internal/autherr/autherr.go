package autherr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure so callers can pick a message without parsing text.
type Kind int

const (
	// KindValidation is a local, pre-network input failure attributable to a field.
	KindValidation Kind = iota + 1
	// KindAuth means the server rejected credentials or an OTP code.
	KindAuth
	// KindRateLimit means OTPs were requested too frequently.
	KindRateLimit
	// KindNetwork is a transport failure. Retryable by the user, never automatically.
	KindNetwork
	// KindStorage is a durable read or write failure on the device.
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindRateLimit:
		return "rate_limit"
	case KindNetwork:
		return "network"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// ErrOTPExpired is wrapped inside a KindAuth error when the gateway reports the
// code as permanently expired. The signup flow must restart from the beginning.
var ErrOTPExpired = errors.New("otp expired")

// Error is the tagged failure reported by the auth core.
type Error struct {
	Kind  Kind
	Op    string // originating operation, e.g. "login"
	Field string // set for validation failures
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Field != "" {
		fmt.Fprintf(&b, " (%s)", e.Field)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an untagged error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Invalid builds a validation error for one field.
func Invalid(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Msg: msg}
}

// WithOp tags err with the operation it came from. Errors that are already
// tagged keep their original operation; foreign errors become KindNetwork.
func WithOp(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Op != "" {
			return err
		}
		tagged := *ae
		tagged.Op = op
		return &tagged
	}
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

// KindOf reports the kind of err, or 0 when err carries none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}

// Is reports whether err is tagged with kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsStorage reports a durable storage failure, which after a successful remote
// call means "signed in but the session could not be saved".
func IsStorage(err error) bool { return Is(err, KindStorage) }

// Fields returns every field named by validation errors in err, including
// errors combined with errors.Join.
func Fields(err error) []string {
	var out []string
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
			return
		}
		var ae *Error
		if errors.As(e, &ae) && ae.Kind == KindValidation && ae.Field != "" {
			out = append(out, ae.Field)
		}
	}
	walk(err)
	return out
}
