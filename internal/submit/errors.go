package submit

import "fmt"

// Phase of the submission pipeline. The machine is linear: each submission
// walks forward through the phases and never revisits one; any non-terminal
// phase may transition to PhaseFailed. PhaseUnconfirmed is the distinct
// "submitted, confirmation unknown" terminal: the broadcast succeeded but
// polling could not confirm inclusion, which does not imply the order
// failed to execute.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseValidated
	PhaseScaled
	PhaseAccountFetched
	PhaseTransactionBuilt
	PhaseAwaitingSignature
	PhaseBroadcast
	PhaseConfirmed
	PhaseUnconfirmed
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseValidated:
		return "VALIDATED"
	case PhaseScaled:
		return "SCALED"
	case PhaseAccountFetched:
		return "ACCOUNT_FETCHED"
	case PhaseTransactionBuilt:
		return "TRANSACTION_BUILT"
	case PhaseAwaitingSignature:
		return "AWAITING_SIGNATURE"
	case PhaseBroadcast:
		return "BROADCAST"
	case PhaseConfirmed:
		return "CONFIRMED"
	case PhaseUnconfirmed:
		return "UNCONFIRMED"
	case PhaseFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the phase ends a submission.
func (p Phase) Terminal() bool {
	return p == PhaseConfirmed || p == PhaseUnconfirmed || p == PhaseFailed
}

// ErrorKind classifies a pipeline failure for display and retry policy.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1 // pre-flight, recoverable by user edit
	KindScaling                         // malformed numeric input
	KindAccountQuery                    // external, retryable
	KindSigning                         // user declined or signer unavailable
	KindBroadcast                       // network submission failure
	KindConfirmation                    // poll failure, order may have executed
	KindContract                        // InvalidMagnitude/InvalidIndex with validated input: a defect
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindScaling:
		return "ScalingError"
	case KindAccountQuery:
		return "AccountQueryError"
	case KindSigning:
		return "SigningError"
	case KindBroadcast:
		return "BroadcastError"
	case KindConfirmation:
		return "ConfirmationError"
	case KindContract:
		return "ContractError"
	default:
		return "UnknownError"
	}
}

// Error carries the failure kind, the phase at which it occurred, and a
// human-readable reason, so the caller can display partial progress without
// re-deriving pipeline state.
type Error struct {
	Kind   ErrorKind
	Phase  Phase
	Reason string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s at %s: %s: %v", e.Kind, e.Phase, e.Reason, e.cause)
	}
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.Phase, e.Reason)
}

func (e *Error) Unwrap() error { return e.cause }

func newError(kind ErrorKind, phase Phase, reason string, cause error) *Error {
	return &Error{Kind: kind, Phase: phase, Reason: reason, cause: cause}
}
