package deferred

// spliceInto wires inner's eventual settlement into child, so that a
// Then or OrIfError callback can return another Node (wrapped as
// Values{innerNode}, see spliceCandidate) to mean "settle the child I
// produced with whatever this nested Deferred settles with" instead of
// "settle it right now with this single value that happens to be a
// *Node". This is the same splice-adapter idea used to let one promise's
// resolution delegate to another rather than nest a pending value inside
// a resolved one.
//
// inner's error is only forwarded to child when inner currently has no
// OrIfError handlers registered of its own: if the caller already wired
// inner's own error handling, that handling runs and child is left
// Pending.
func spliceInto(inner, child *Node) {
	inner.Then(func(values Values) (Values, error) {
		child.Succeed(values...)
		return nil, nil
	}).OrIfError(func(error) (Values, error) {
		// inner's failure also reaches this success-only link; it is
		// forwarded below or handled by inner's own OrIfError.
		return nil, nil
	})

	inner.mu.Lock()
	hasErrback := false
	for _, e := range inner.children {
		if e.kind == edgeErrback {
			hasErrback = true
			break
		}
	}
	inner.mu.Unlock()

	if hasErrback {
		return
	}

	inner.OrIfError(func(err error) (Values, error) {
		child.Fail(err)
		return nil, nil
	})
}
