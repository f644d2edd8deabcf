package errkind

// Kind classifies a failure so callers can react to the category of an
// error without matching every individual sentinel.
type Kind uint8

const (
	// Authorization: caller lacks the role the operation requires
	Authorization Kind = iota + 1
	// Reinitialization: initializer reached outside of instance creation
	Reinitialization
	// StateConflict: the operation collides with current state
	StateConflict
	// TemporalGate: the operation is not allowed at this point in time
	TemporalGate
	// Funds: a balance or allowance is insufficient
	Funds
	// InvalidArgument: malformed input
	InvalidArgument
)

var kindNames = map[Kind]string{
	Authorization:    "authorization error",
	Reinitialization: "reinitialization error",
	StateConflict:    "state conflict",
	TemporalGate:     "temporal gate",
	Funds:            "funds error",
	InvalidArgument:  "invalid argument",
}

// Error implements error so a Kind can be used as an errors.Is target.
func (k Kind) Error() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown error kind"
}

// String returns the kind name
func (k Kind) String() string {
	return k.Error()
}

// Error is a classified failure with a human readable reason
type Error struct {
	Kind   Kind
	Reason string
}

// New creates a classified error
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func (e *Error) Error() string {
	return e.Reason
}

// Is reports whether target is this error's Kind.
// Sentinel *Error values still match by identity.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the kind of the first classified error in err's chain
func KindOf(err error) (Kind, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return 0, false
		}
		err = u.Unwrap()
	}
	return 0, false
}
