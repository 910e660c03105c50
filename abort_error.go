package deferred

// AbortError is the default abort reason used when Abort, AbortBranch,
// or AbortAll is called with no arguments, mirroring the "errback called
// without error" sentinel §3 specifies for Fail. It implements Is and
// Unwrap so callers can match it with errors.Is/errors.As when the
// reason happens to be, or wrap, an error.
type AbortError struct {
	// Reason is the value passed to Abort, or nil if none was given.
	Reason any
}

func (e *AbortError) Error() string {
	switch r := e.Reason.(type) {
	case nil:
		return Namespace + ": aborted"
	case string:
		return Namespace + ": aborted: " + r
	case error:
		return Namespace + ": aborted: " + r.Error()
	default:
		return Namespace + ": aborted"
	}
}

// Is reports whether target is also an *AbortError, ignoring Reason.
func (e *AbortError) Is(target error) bool {
	_, ok := target.(*AbortError)
	return ok
}

// Unwrap returns the Reason if it is itself an error, so that an abort
// caused by a propagated error remains discoverable via errors.As.
func (e *AbortError) Unwrap() error {
	if err, ok := e.Reason.(error); ok {
		return err
	}
	return nil
}
