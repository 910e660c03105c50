package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrampoline_OrdersFIFO(t *testing.T) {
	tr := NewTrampoline()

	var got []int
	tr.Defer(func() {
		got = append(got, 1)
		tr.Defer(func() { got = append(got, 2) })
	})

	require.Equal(t, []int{1, 2}, got)
}

func TestTrampoline_ReentrantDeferDoesNotRecurse(t *testing.T) {
	tr := NewTrampoline()

	const depth = 1000
	var ran int
	var schedule func(n int)
	schedule = func(n int) {
		if n == 0 {
			return
		}
		tr.Defer(func() {
			ran++
			schedule(n - 1)
		})
	}
	schedule(depth)

	require.Equal(t, depth, ran)
}
