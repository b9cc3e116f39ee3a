package airquality

// ErrorKind classifies query failures so transport layers can map them to
// status codes without parsing message text.
type ErrorKind int

const (
	// ErrInvalidRange: start after end, or span over the configured maximum.
	// Rejected before any network call.
	ErrInvalidRange ErrorKind = iota
	// ErrNoData: the range was valid and fetching ran, but zero readings
	// were retained.
	ErrNoData
	// ErrProviderUnavailable: every request to a provider failed. Individual
	// failed days/pages degrade silently and never produce this.
	ErrProviderUnavailable
	// ErrUnexpected: anything not anticipated above, recovered at the
	// orchestrator boundary.
	ErrUnexpected
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInvalidRange:
		return "invalid_range"
	case ErrNoData:
		return "no_data"
	case ErrProviderUnavailable:
		return "provider_unavailable"
	case ErrUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// QueryError is the only error type that crosses the orchestrator boundary.
// Message is user-facing text, never a stack trace or raw protocol error.
type QueryError struct {
	Kind    ErrorKind
	Message string
}

func (e *QueryError) Error() string {
	return e.Message
}

func invalidRange(msg string) *QueryError {
	return &QueryError{Kind: ErrInvalidRange, Message: msg}
}

func noData(msg string) *QueryError {
	return &QueryError{Kind: ErrNoData, Message: msg}
}
