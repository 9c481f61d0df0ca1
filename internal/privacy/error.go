package privacy

// SanitizedError reports a scrubbed message and unwraps to the original error.
type SanitizedError struct {
	cause   error
	message string
}

func (e *SanitizedError) Error() string { return e.message }

func (e *SanitizedError) Unwrap() error { return e.cause }

// WrapError hides tokens and URLs in err's message before it reaches logs, notifications
// or telemetry. errors.Is and errors.As still see the original chain.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &SanitizedError{cause: err, message: ScrubMessage(err.Error())}
}
