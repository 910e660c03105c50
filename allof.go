package deferred

import "sync"

// AllOf returns a Node that succeeds once every node in nodes has
// succeeded, with values aggregated positionally: the result is a Values
// slice where element i is the first success value of node[i], regardless
// of the order in which the inputs actually complete. It fails as soon
// as any input fails, ignoring every input event after that. Inputs are
// not aborted on a sibling's failure, unlike FirstOf.
//
// As each input succeeds, AllOf broadcasts progress(k, N) and
// partialResult(currentAggregate) on the returned Node, where
// currentAggregate holds the values for every input that has completed
// so far and nil for the rest. Calling AllOf with no nodes returns an
// already-succeeded Node with an empty result.
//
// The positional reassembly here is the same problem the teacher's
// reorderer.go solves for out-of-order worker results: completion order
// and input order are different things, and a caller join like this one
// must restore the latter.
func AllOf(nodes ...*Node) *Node {
	result := New()

	total := len(nodes)
	if total == 0 {
		result.Succeed(Values{}...)
		return result
	}

	var (
		mu       sync.Mutex
		remain   = total
		settled  bool
		gathered = make(Values, total)
	)

	finishOnce := func(fn func()) {
		mu.Lock()
		if settled {
			mu.Unlock()
			return
		}
		settled = true
		mu.Unlock()
		fn()
	}

	// An input failure also reaches the Then and OnAbort links below; the
	// OrIfError link forwards it to result, so those two only absorb it.
	ignoreErr := func(error) (Values, error) { return nil, nil }

	for i, node := range nodes {
		i, node := i, node

		node.Then(func(values Values) (Values, error) {
			mu.Lock()
			if settled {
				mu.Unlock()
				return nil, nil
			}
			gathered[i] = values.First()
			remain--
			k := total - remain
			done := remain == 0
			aggregate := append(Values{}, gathered...)
			mu.Unlock()

			result.PartialResult(aggregate)
			result.Progress(k, total)

			if done {
				finishOnce(func() { result.Succeed(aggregate...) })
			}
			return nil, nil
		}).OrIfError(ignoreErr)

		node.OrIfError(func(err error) (Values, error) {
			finishOnce(func() { result.Fail(err) })
			return nil, nil
		})

		node.OnAbort(func(reason any) {
			finishOnce(func() { result.Abort(reason) })
		}).OrIfError(ignoreErr)
	}

	return result
}
