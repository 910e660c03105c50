package deferred

import "sync"

// FirstOf returns a Node that settles the same way as whichever node in
// nodes settles first, whether that is a success, a failure, or an
// abort. Once one input has settled, FirstOf aborts every other input in
// nodes, and every later settlement among them is discarded. Calling
// FirstOf with no nodes returns a Node that is never settled by this
// call (there is nothing to race), left for the caller to resolve or
// abandon.
func FirstOf(nodes ...*Node) *Node {
	result := New()
	if len(nodes) == 0 {
		return result
	}

	var (
		mu     sync.Mutex
		won    bool
		winner *Node
	)

	claim := func(node *Node, fn func()) {
		mu.Lock()
		if won {
			mu.Unlock()
			return
		}
		won = true
		winner = node
		mu.Unlock()
		fn()

		for _, other := range nodes {
			if other != winner {
				other.Abort()
			}
		}
	}

	// An input failure also reaches the Then and OnAbort links below; the
	// OrIfError link forwards it to result, so those two only absorb it.
	ignoreErr := func(error) (Values, error) { return nil, nil }

	for _, node := range nodes {
		node := node
		node.Then(func(values Values) (Values, error) {
			claim(node, func() { result.Succeed(values...) })
			return nil, nil
		}).OrIfError(ignoreErr)
		node.OrIfError(func(err error) (Values, error) {
			claim(node, func() { result.Fail(err) })
			return nil, nil
		})
		node.OnAbort(func(reason any) {
			claim(node, func() { result.Abort(reason) })
		}).OrIfError(ignoreErr)
	}

	return result
}
