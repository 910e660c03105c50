// Package deferred provides a single-resolution asynchronous value — a
// Deferred — that models a pending computation whose success, failure,
// abort, progress, or partial results may be observed by any number of
// dependents attached before or after resolution.
//
// A Deferred is produced by a call to New, resolved exactly once via
// Succeed, Fail, or Abort, and consumed by registering callbacks with
// Then, OrIfError, OnAbort, OnProgress, OnPartialResult, and AtLast.
// Dependents registered with Then form a tree rooted at the original
// Deferred; each dependent may itself sprout further dependents.
//
// Scheduling
// Exactly one logical executor drives a Deferred tree at a time: every
// propagation step — running callbacks, bubbling errors, cascading an
// abort — is handed to a Scheduler (see the scheduler subpackage) rather
// than called directly from Succeed/Fail/Abort. Callbacks attached to an
// already-resolved Deferred still run, so a producer can return one and
// the consumer can attach Then/OrIfError/OnAbort afterward. When a step
// runs depends on the Scheduler: the default Trampoline runs it on the
// calling goroutine before Succeed/Fail/Abort returns, unless it is
// already draining, while a Loop runs it on its own goroutine. Deferred
// is not safe for concurrent mutation by
// design: exactly one goroutine is expected to drive a given tree,
// matching the Scheduler it was built with.
//
// Combinators
// AllOf joins all inputs positionally (resolving when every one
// succeeds, failing fast on the first error, aborting if an input is
// aborted first). FirstOf resolves
// the same way whichever input settles first does, and discards every
// later settlement among the rest.
//
// Defaults
// Unless overridden via Configure (or per node via New's options), a
// newly created root Deferred uses:
//   - Scheduler: scheduler.NewTrampoline() (single-goroutine, synchronous)
//   - Metrics: a no-op metrics.Provider
//
// Diagnostics always go to os.Stderr, via a background-drained sink;
// Configure has no option for them.
//
// Diagnostics
// A handful of misuse conditions — resolving an already-resolved node,
// aborting a terminal node, registering a listener on an aborted node —
// emit a textual warning to the configured diagnostics sink rather than
// failing the call. An error that reaches a leaf with no registered
// handler anywhere on its branch is fatal: it is reported to the
// process-wide default error handler if one is registered via
// RegisterDefaultErrorHandler, and re-raised (panics) otherwise.
package deferred
