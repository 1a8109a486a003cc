// Package cerrors defines the error kinds of §7: the small, closed set of
// ways a consensus-layer operation can fail, and how each kind propagates.
// The shape follows blockchain/error.go's RuleError — an enum plus a
// wrapping struct — generalized to carry an arbitrary wrapped error so
// components can still use errors.Is/errors.As/errors.Wrap underneath.
package cerrors

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind identifies one of the seven error kinds from §7.
type Kind int

const (
	// ConsensusReject: block/tx violates a rule. Returned up to the
	// validator; the caller may DoS-score the peer.
	ConsensusReject Kind = iota

	// ProtocolMismatch: malformed wire payload. The message is dropped
	// and the sending peer is DoS-scored.
	ProtocolMismatch

	// Conflict: same height/input disagreement. The new item is
	// rejected, the conflict is logged, and nothing is ever overwritten.
	Conflict

	// NotFound: lookup miss. Rarely fatal.
	NotFound

	// CryptoFailure: BLS/ECDSA verification failed. Treated as
	// ConsensusReject at the validation boundary.
	CryptoFailure

	// TransientStorage: a KV write failed. The block transition is
	// aborted and the error is returned to the caller; no code in this
	// module retries the failed batch.
	TransientStorage

	// Invariant: an internal postcondition was broken. The core halts
	// and dumps state.
	Invariant
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case ConsensusReject:
		return "ConsensusReject"
	case ProtocolMismatch:
		return "ProtocolMismatch"
	case Conflict:
		return "Conflict"
	case NotFound:
		return "NotFound"
	case CryptoFailure:
		return "CryptoFailure"
	case TransientStorage:
		return "TransientStorage"
	case Invariant:
		return "Invariant"
	default:
		return fmt.Sprintf("Unknown Kind (%d)", int(k))
	}
}

// Error wraps an underlying cause with the §7 error kind that determines
// how a caller should propagate it.
type Error struct {
	Kind        Kind
	Description string
	Err         error // optional wrapped cause
}

// Error satisfies the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Description, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Description)
}

// Unwrap allows errors.Is/errors.As to see through to the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an *Error of the given kind with no wrapped cause.
func New(k Kind, desc string) *Error {
	return &Error{Kind: k, Description: desc}
}

// Wrap creates an *Error of the given kind wrapping an existing error. The
// cause is captured with pkg/errors.WithStack, the same annotation
// claimtrie's node.Manager attaches to every propagated error, so a later
// log dump still shows where the original failure occurred.
func Wrap(k Kind, desc string, err error) *Error {
	return &Error{Kind: k, Description: desc, Err: pkgerrors.WithStack(err)}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, k Kind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == k
	}
	return false
}
