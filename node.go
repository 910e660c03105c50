package deferred

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/ygrebnov/deferred/metrics"
	"github.com/ygrebnov/deferred/scheduler"
)

type edgeKind int

const (
	edgeSuccess edgeKind = iota
	edgeErrback
	edgeAbort
)

// edge is one outgoing link of the chain tree: a child Node plus the
// single callback (of whichever kind registered it) that produces the
// child's resolution from the parent's.
type edge struct {
	kind      edgeKind
	child     *Node
	successFn func(Values) (Values, error)
	errbackFn func(error) (Values, error)
	abortFn   func(any)
	index     int
}

// Node is a single-resolution Deferred: a value that starts Pending and
// settles exactly once, into Callbacked, Errbacked, or Aborted. Calling
// Then, OrIfError, or OnAbort attaches a child Node to it, so a tree of
// Nodes built this way forms a chain tree rather than a linked list —
// a node with more than one child is a branch point.
type Node struct {
	mu sync.Mutex

	id    uuid.UUID
	state State

	values      Values
	err         error
	abortReason any

	scheduler scheduler.Scheduler
	metrics   metrics.Provider

	parent *Node
	root   *Node
	branch *Node

	children []*edge

	progressFns      []func(Values)
	partialResultFns []func(Values)

	atLastFn  func()
	atLastSet bool

	resolvedCh chan struct{}
}

// New creates a Pending root Node. Its scheduler and metrics provider
// default to the process-wide values installed by Configure, or to a
// Trampoline and a no-op metrics provider if Configure was never called.
func New(opts ...Option) *Node {
	c := resolveConfig(opts)
	n := newNode(c.scheduler, c.metrics)
	n.root = n
	n.branch = n
	return n
}

func newNode(s scheduler.Scheduler, m metrics.Provider) *Node {
	n := &Node{
		id:         uuid.New(),
		state:      Pending,
		scheduler:  s,
		metrics:    m,
		resolvedCh: make(chan struct{}),
	}
	m.UpDownCounter(instrumentPending).Add(1)
	return n
}

// ID returns the node's identity, the same identity CallbackError and
// diagnostics carry when a callback registered on this node faults.
func (n *Node) ID() uuid.UUID {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.id
}

// State returns the node's current resolution state.
func (n *Node) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Resolved reports whether the node has settled, and returns its
// terminal values or error when it has. It never blocks. Grounded in the
// same spirit as uber-go/dig's internal promise type, which exposes its
// settled value for synchronous inspection rather than only via
// callback.
func (n *Node) Resolved() (state State, values Values, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state, n.values, n.err
}

// Wait blocks until n settles or ctx is done, whichever comes first. It
// exists for code that bridges a Deferred tree into an ordinary
// goroutine-and-channel caller — the common case of a cooperative,
// single-threaded chain being awaited from outside that cooperative
// world entirely.
func (n *Node) Wait(ctx context.Context) error {
	select {
	case <-n.resolvedCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// newChild creates a child Node sharing the tree's scheduler and metrics
// provider, sets its parent/root back-pointers, and performs the branch
// rearrangement invariant: a child's branch equals itself if its parent
// is (now) a branch point, otherwise it equals the parent's branch.
//
// n.mu must be held by the caller.
func (n *Node) newChild() *Node {
	c := newNode(n.scheduler, n.metrics)
	c.parent = n
	c.root = n.root

	if len(n.children) == 0 {
		// n was a single successor; it now gains its first child, so no
		// branch point is created yet. The child continues n's branch.
		c.branch = n.branch
	} else {
		// n already had at least one child: it is now a branch point.
		// The new child heads its own branch, and on the transition
		// from one child to two the first child's chain is re-pointed
		// to that first child.
		n.rearrangeBranch()
		c.branch = c
	}
	return c
}

// rearrangeBranch runs when n is about to gain its second child. It
// walks down from n's first child along its single-successor chain and
// re-points every node on it, including the node where the chain ends
// (one with zero or several children), at that first child, which
// becomes the head of its own branch. When n already has two or more
// children it does nothing, since those already head their own branches.
//
// n.mu must be held by the caller.
func (n *Node) rearrangeBranch() {
	if len(n.children) != 1 {
		return
	}
	head := n.children[0].child
	for cur := head; cur != nil; {
		cur.branch = head
		var next *Node
		if len(cur.children) == 1 {
			next = cur.children[0].child
		}
		cur = next
	}
}

// Then registers a success callback and returns a new child Node. If n
// settles successfully, fn runs (after a yield to the scheduler) with
// n's values and the child settles with fn's result. If n settles with
// an error or is aborted, fn never runs and the child inherits the same
// outcome, so a chain built purely from Then calls behaves like a single
// successor list even though each link is its own Node.
func (n *Node) Then(fn func(Values) (Values, error)) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()

	child := n.newChild()
	e := &edge{kind: edgeSuccess, child: child, successFn: fn, index: len(n.children)}
	n.children = append(n.children, e)

	n.maybeSettleEdgeLocked(e)
	return child
}

// OrIfError registers an error callback and returns a new child Node. If
// n settles with an error, fn runs with that error; fn recovering
// (returning a nil error) settles the child successfully with fn's
// Values, and the error is considered handled for the purposes of the
// bubbling rule described on propagateError. If n settles successfully,
// fn never runs and the child inherits that outcome unchanged. If n is
// already Aborted, the registration is refused outright per spec §4.1:
// no edge is added to n, and the returned child is itself already
// Aborted with n's abort reason, so chaining off it is inert rather than
// silently pending forever.
func (n *Node) OrIfError(fn func(error) (Values, error)) *Node {
	n.mu.Lock()
	if n.state == Aborted {
		reason := n.abortReason
		n.mu.Unlock()
		warn("%v: node %s", ErrAbortedListener, n.id)
		child := newNode(n.scheduler, n.metrics)
		child.abort(reason)
		return child
	}
	defer n.mu.Unlock()

	child := n.newChild()
	e := &edge{kind: edgeErrback, child: child, errbackFn: fn, index: len(n.children)}
	n.children = append(n.children, e)

	n.maybeSettleEdgeLocked(e)
	return child
}

// OnAbort registers a listener invoked if n is aborted, directly or by
// inheriting an ancestor's abort. Unlike Then and OrIfError, fn does not
// produce a replacement value: abort carries no payload to transform,
// only a reason. OnAbort still returns a child Node so further links can
// be chained below it; that child is itself aborted immediately after fn
// runs.
func (n *Node) OnAbort(fn func(reason any)) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()

	child := n.newChild()
	e := &edge{kind: edgeAbort, child: child, abortFn: fn, index: len(n.children)}
	n.children = append(n.children, e)

	n.maybeSettleEdgeLocked(e)
	return child
}

// OnProgress registers fn to run every time Progress is reported on n,
// for as long as n remains Pending. Unlike Then/OrIfError/OnAbort,
// OnProgress does not create a child Node: progress is a side channel,
// not a settlement. Registering on an already-Aborted node is refused,
// per spec §6, with an ErrAbortedListener diagnostic.
func (n *Node) OnProgress(fn func(Values)) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == Aborted {
		warn("%v: node %s", ErrAbortedListener, n.id)
		return n
	}
	n.progressFns = append(n.progressFns, fn)
	return n
}

// Progress reports intermediate values to every OnProgress listener
// currently registered on n. Calling it after n has settled is a no-op
// aside from a diagnostic warning, since there is no one left who could
// still be waiting on progress.
func (n *Node) Progress(values ...any) *Node {
	n.mu.Lock()
	if n.state.Terminal() {
		n.mu.Unlock()
		warn("Progress reported on already-settled node %s", n.id)
		return n
	}
	fns := append([]func(Values){}, n.progressFns...)
	n.mu.Unlock()

	for _, fn := range fns {
		fn := fn
		n.scheduler.Defer(func() { n.runGuarded(fn, Values(values)) })
	}
	return n
}

// OnPartialResult registers fn to run every time PartialResult is
// reported on n. It mirrors OnProgress/Progress but is conventionally
// used for a cumulative or best-effort interim value, rather than a
// unitless progress update. Registering on an already-Aborted node is
// refused, per spec §6, with an ErrAbortedListener diagnostic.
func (n *Node) OnPartialResult(fn func(Values)) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == Aborted {
		warn("%v: node %s", ErrAbortedListener, n.id)
		return n
	}
	n.partialResultFns = append(n.partialResultFns, fn)
	return n
}

// PartialResult reports an interim value to every OnPartialResult
// listener currently registered on n.
func (n *Node) PartialResult(values ...any) *Node {
	n.mu.Lock()
	if n.state.Terminal() {
		n.mu.Unlock()
		warn("PartialResult reported on already-settled node %s", n.id)
		return n
	}
	fns := append([]func(Values){}, n.partialResultFns...)
	n.mu.Unlock()

	for _, fn := range fns {
		fn := fn
		n.scheduler.Defer(func() { n.runGuarded(fn, Values(values)) })
	}
	return n
}

// AtLast registers fn to run exactly once when n settles into Callbacked
// or Errbacked. It does not fire on Aborted: an abort is a cancellation,
// not a completion, and the spec carves it out of "finally" explicitly.
// AtLast is the one callback kind that cannot be registered twice on the
// same node: doing so panics with ErrFinallyAlreadySet, the same way
// calling a sync.WaitGroup's Wait concurrently with itself from
// conflicting goroutines is a programmer error rather than something to
// negotiate at runtime.
func (n *Node) AtLast(fn func()) *Node {
	n.mu.Lock()
	if n.atLastSet {
		n.mu.Unlock()
		panic(ErrFinallyAlreadySet)
	}
	n.atLastFn = fn
	n.atLastSet = true
	settled := n.state == Callbacked || n.state == Errbacked
	n.mu.Unlock()

	if settled {
		n.scheduler.Defer(func() { n.runAtLast() })
	}
	return n
}

func (n *Node) runAtLast() {
	n.mu.Lock()
	fn := n.atLastFn
	id := n.id
	n.mu.Unlock()
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			fatalFinally(id, r)
		}
	}()
	fn()
}

func (n *Node) runGuarded(fn func(Values), values Values) {
	defer func() {
		if r := recover(); r != nil {
			warn("listener on node %s panicked: %v", n.id, r)
		}
	}()
	fn(values)
}

// Succeed settles n with values. Calling it on a node that has already
// settled reports ErrAlreadyResolved as a diagnostic warning and is
// otherwise a no-op, per the misuse handling described for Resolving an
// already-resolved node.
func (n *Node) Succeed(values ...any) *Node {
	n.mu.Lock()
	if n.state.Terminal() {
		n.mu.Unlock()
		warn("%v: node %s", ErrAlreadyResolved, n.id)
		return n
	}
	n.state = Callbacked
	n.values = values
	edges := append([]*edge{}, n.children...)
	n.mu.Unlock()

	n.metrics.UpDownCounter(instrumentPending).Add(-1)
	n.metrics.Counter(instrumentSettled, metrics.WithAttributes(map[string]string{"state": "callbacked"})).Add(1)
	close(n.resolvedCh)

	for _, e := range edges {
		e := e
		n.scheduler.Defer(func() { n.settleEdgeOnSuccess(e, Values(values)) })
	}
	n.scheduleAtLastIfSet()
	return n
}

// Fail settles n with err. A nil err is replaced with ErrNoError, since
// a failure with no cause is itself a misuse worth surfacing rather than
// silently treating as success.
func (n *Node) Fail(err error) *Node {
	if err == nil {
		err = ErrNoError
	}
	n.mu.Lock()
	if n.state.Terminal() {
		n.mu.Unlock()
		warn("%v: node %s", ErrAlreadyResolved, n.id)
		return n
	}
	n.state = Errbacked
	n.err = err
	edges := append([]*edge{}, n.children...)
	n.mu.Unlock()

	n.metrics.UpDownCounter(instrumentPending).Add(-1)
	n.metrics.Counter(instrumentSettled, metrics.WithAttributes(map[string]string{"state": "errbacked"})).Add(1)
	close(n.resolvedCh)

	n.propagateError(edges, err)
	n.scheduleAtLastIfSet()
	return n
}

// Abort settles n into the Aborted state and propagates the abort to
// every descendant in its subtree, invoking any OnAbort listeners along
// the way. Calling Abort on an already-settled node reports
// ErrTerminalAbort as a diagnostic warning. Called with no reason, the
// abort reason defaults to an *AbortError, mirroring the "errback called
// without error" sentinel Fail uses for the same situation.
func (n *Node) Abort(reason ...any) *Node {
	return n.abort(abortReasonOrDefault(reason))
}

// AbortBranch aborts the head of n's branch, and with it that head's
// whole subtree, which contains n. The head is the child of the nearest
// branch point above n (or the root if there is none); the branch point
// itself and its other children's branches are not aborted.
func (n *Node) AbortBranch(reason ...any) {
	n.mu.Lock()
	head := n.branch
	n.mu.Unlock()
	if head == nil {
		head = n
	}
	head.abort(abortReasonOrDefault(reason))
}

// AbortAll aborts the entire chain tree n belongs to, starting from its
// root.
func (n *Node) AbortAll(reason ...any) {
	n.mu.Lock()
	root := n.root
	n.mu.Unlock()
	if root == nil {
		root = n
	}
	root.abort(abortReasonOrDefault(reason))
}

// abortReasonOrDefault returns reason[0] if given, else a fresh
// *AbortError, so OnAbort listeners always observe a non-nil, matchable
// reason even when the caller aborted with no arguments.
func abortReasonOrDefault(reason []any) any {
	if len(reason) > 0 {
		return reason[0]
	}
	return &AbortError{}
}

func (n *Node) abort(reason any) *Node {
	n.mu.Lock()
	if n.state.Terminal() {
		n.mu.Unlock()
		warn("%v: node %s", ErrTerminalAbort, n.id)
		return n
	}
	n.state = Aborted
	n.abortReason = reason
	edges := append([]*edge{}, n.children...)
	n.mu.Unlock()

	n.metrics.UpDownCounter(instrumentPending).Add(-1)
	n.metrics.Counter(instrumentSettled, metrics.WithAttributes(map[string]string{"state": "aborted"})).Add(1)
	close(n.resolvedCh)

	for _, e := range edges {
		e := e
		n.scheduler.Defer(func() { n.settleEdgeOnAbort(e, reason) })
	}
	// atLast fires only on Callbacked or Errbacked, not on Aborted.
	return n
}

func (n *Node) scheduleAtLastIfSet() {
	n.mu.Lock()
	set := n.atLastSet
	n.mu.Unlock()
	if set {
		n.scheduler.Defer(func() { n.runAtLast() })
	}
}

// maybeSettleEdgeLocked fires e immediately (scheduled, not inline) if n
// has already settled by the time e was registered. n.mu is held by the
// caller.
func (n *Node) maybeSettleEdgeLocked(e *edge) {
	switch n.state {
	case Callbacked:
		values := n.values
		n.scheduler.Defer(func() { n.settleEdgeOnSuccess(e, values) })
	case Errbacked:
		err := n.err
		n.scheduler.Defer(func() { n.settleEdgeOnError(e, err) })
	case Aborted:
		reason := n.abortReason
		n.scheduler.Defer(func() { n.settleEdgeOnAbort(e, reason) })
	}
}

func (n *Node) settleEdgeOnSuccess(e *edge, values Values) {
	if e.child.State() == Aborted {
		// a child that was already aborted (e.g. via AbortBranch on a
		// sibling edge reached first) is skipped entirely: its callback
		// does not run, per the abort-propagation invariant that an
		// in-flight success never resurrects an aborted link.
		return
	}
	if e.kind != edgeSuccess {
		// an OrIfError or OnAbort edge sees a success pass through unchanged.
		e.child.Succeed(values...)
		return
	}
	n.invokeSuccess(e, values)
}

func (n *Node) invokeSuccess(e *edge, values Values) {
	if e.successFn == nil {
		e.child.Succeed(values...)
		return
	}

	result, err := n.callSuccess(e, values)
	if err != nil {
		e.child.Fail(err)
		return
	}
	if inner, ok := spliceCandidate(result); ok {
		spliceInto(inner, e.child)
		return
	}
	e.child.Succeed(result...)
}

func (n *Node) callSuccess(e *edge, values Values) (result Values, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newCallbackError(r, n.id, e.index)
		}
	}()
	return e.successFn(values)
}

// settleEdgeOnError is used when n.Fail fired before e existed (the
// already-resolved fast path through maybeSettleEdgeLocked); the live
// path goes through propagateError instead, since it must choose between
// invoking an errback and bubbling further down a success-only edge.
func (n *Node) settleEdgeOnError(e *edge, err error) {
	n.dispatchEdgeError(e, err)
}

func (n *Node) settleEdgeOnAbort(e *edge, reason any) {
	if e.kind == edgeAbort && e.abortFn != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					warn("OnAbort listener on node %s panicked: %v", n.id, r)
				}
			}()
			e.abortFn(reason)
		}()
	}
	e.child.abort(reason)
}

// propagateError implements the depth-first, left-to-right bubbling
// described for an errbacked node: a child wired via OrIfError handles
// the error (OR-within-a-branch: finding a handler stops that branch's
// descent), while a child wired via Then or OnAbort merely inherits the
// failure and continues bubbling from there. Each child subtree is
// walked independently, which gives the AND-across-branches behavior at
// a branch point: an error unhandled in one branch still reaches
// dispatchUnhandled even if a sibling branch handles it.
func (n *Node) propagateError(edges []*edge, err error) {
	if len(edges) == 0 {
		// Deferred like every other edge below, so a leaf with no
		// children yet still honors the mandatory yield point: a
		// producer can Fail a childless node and the consumer can still
		// attach OrIfError before the deferred dispatch runs, in which
		// case the late edge receives the error and the fatal
		// diagnostic is skipped. A Trampoline that is not already
		// draining runs the dispatch before Fail returns.
		n.scheduler.Defer(func() {
			n.mu.Lock()
			attached := len(n.children) > 0
			n.mu.Unlock()
			if !attached {
				dispatchUnhandled(err, n.id)
			}
		})
		return
	}
	for _, e := range edges {
		e := e
		n.scheduler.Defer(func() { n.dispatchEdgeError(e, err) })
	}
}

func (n *Node) dispatchEdgeError(e *edge, err error) {
	if e.kind == edgeErrback {
		n.invokeErrback(e, err)
		return
	}
	// success-only or abort-listener edge: the child inherits the
	// failure outright and becomes responsible for further bubbling.
	e.child.Fail(err)
}

func (n *Node) invokeErrback(e *edge, err error) {
	if e.errbackFn == nil {
		e.child.Fail(err)
		return
	}

	result, rerr := n.callErrback(e, err)
	if rerr != nil {
		e.child.Fail(rerr)
		return
	}
	if inner, ok := spliceCandidate(result); ok {
		spliceInto(inner, e.child)
		return
	}
	e.child.Succeed(result...)
}

func (n *Node) callErrback(e *edge, err error) (result Values, rerr error) {
	defer func() {
		if r := recover(); r != nil {
			rerr = newCallbackError(r, n.id, e.index)
		}
	}()
	return e.errbackFn(err)
}

// spliceCandidate reports whether result is a Values slice carrying
// exactly one element that is itself a *Node, the convention Then and
// OrIfError callbacks use to chain a nested Deferred into the returned
// one (see splice.go).
func spliceCandidate(result Values) (*Node, bool) {
	if len(result) != 1 {
		return nil, false
	}
	inner, ok := result[0].(*Node)
	return inner, ok
}
