package cmn

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the top-level error taxonomy from spec.md §7. Every error that
// crosses a component boundary carries one.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindNetwork      Kind = "network"
	KindProtocol     Kind = "protocol"
	KindTimeout      Kind = "timeout"
	KindCancelled    Kind = "cancelled"
	KindBlocked      Kind = "blocked"
	KindCache        Kind = "cache"
	KindCodec        Kind = "codec"
	KindParse        Kind = "parse"
	KindInternal     Kind = "internal"
)

// Timeout phases (spec.md §7).
type Phase string

const (
	PhaseResolve Phase = "resolve"
	PhaseConnect Phase = "connect"
	PhaseTLS     Phase = "tls"
	PhaseHeaders Phase = "headers"
	PhaseBody    Phase = "body"
	PhaseIdle    Phase = "idle"
	PhaseTotal   Phase = "total"
)

// Sub-reasons used within a Kind, surfaced in Error.Reason.
const (
	// Cache
	ReasonCacheMiss             = "miss"
	ReasonCachePoisoned         = "poisoned"
	ReasonCacheIntegrityMismatch = "integrity_mismatch"
	ReasonCacheFull             = "full"
	// Codec
	ReasonCodecBadFormat = "bad_format"
	ReasonCodecTruncated = "truncated"
	ReasonCodecBombLimit = "bomb_limit"
	// Parse
	ReasonParseSyntaxError     = "syntax_error"
	ReasonParseEncodingError  = "encoding_error"
	ReasonParseQuirksTriggered = "quirks_triggered"
)

// Error is the engine-wide error type. It wraps a cause (via
// github.com/pkg/errors, matching the teacher's own error-wrapping
// dependency) with a Kind, an optional sub-Reason/Phase, and free-form
// context for logging.
type Error struct {
	Kind    Kind
	Reason  string
	Phase   Phase
	Context map[string]interface{}
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.describe(), e.cause)
	}
	return e.describe()
}

func (e *Error) describe() string {
	switch {
	case e.Kind == KindTimeout && e.Phase != "":
		return fmt.Sprintf("timeout(%s)", e.Phase)
	case e.Reason != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.cause }

// Cause lets github.com/pkg/errors.Cause walk past e to the wrapped root.
func (e *Error) Cause() error { return e.cause }

// Is lets errors.Is(err, cmn.New(kind, reason)) style checks work by
// comparing Kind and, when the target sets one, Reason.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	if other.Kind != "" && other.Kind != e.Kind {
		return false
	}
	if other.Reason != "" && other.Reason != e.Reason {
		return false
	}
	return true
}

// New builds a bare *Error of the given kind.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap attaches kind/reason to an existing cause, preserving the chain so
// errors.Cause(err) still reaches the root.
func Wrap(cause error, kind Kind, reason string) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Reason: reason, cause: errors.WithStack(cause)}
}

// WrapTimeout builds a Timeout(phase) error per spec.md §7.
func WrapTimeout(cause error, phase Phase) *Error {
	return &Error{Kind: KindTimeout, Phase: phase, cause: cause}
}

// Blocked builds a Blocked(reason) error (tracker filter / policy / CSP).
func Blocked(reason string) *Error {
	return &Error{Kind: KindBlocked, Reason: reason}
}

// WithContext attaches structured context fields for logging and returns e
// for chaining.
func (e *Error) WithContext(kv ...interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{}, len(kv)/2)
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		e.Context[key] = kv[i+1]
	}
	return e
}

// KindOf extracts the Kind of err, or "" if err isn't a *cmn.Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
