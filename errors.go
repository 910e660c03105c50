package deferred

import "errors"

// Namespace prefixes every sentinel error and diagnostic message emitted
// by this package.
const Namespace = "deferred"

var (
	// ErrAlreadyResolved is reported when succeed or fail is called on a
	// node that has already settled (success or failure).
	ErrAlreadyResolved = errors.New(Namespace + ": deferred already resolved")

	// ErrTerminalAbort is reported when abort is called on a node that
	// has already reached a terminal state.
	ErrTerminalAbort = errors.New(Namespace + ": cannot abort an already-settled deferred")

	// ErrAbortedListener is reported when orIfError, onProgress, or
	// onPartialResult is registered on a node that is already Aborted.
	ErrAbortedListener = errors.New(Namespace + ": cannot register a listener on an aborted deferred")

	// ErrFinallyAlreadySet is the fatal misuse reported (via panic) when
	// atLast is called a second time on the same node.
	ErrFinallyAlreadySet = errors.New(Namespace + ": atLast callback already set")

	// ErrNoError is the sentinel recorded when fail is called without an
	// error value.
	ErrNoError = errors.New(Namespace + ": errback called without error")

	// ErrUnhandled wraps an error that reached a leaf of the chain tree
	// with no registered handler and no process-wide default handler.
	ErrUnhandled = errors.New(Namespace + ": unhandled error reached a leaf with no orIfError handler")
)
