package deferred

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestState_Terminal(t *testing.T) {
	require.False(t, Pending.Terminal())
	require.True(t, Callbacked.Terminal())
	require.True(t, Errbacked.Terminal())
	require.True(t, Aborted.Terminal())
}

func TestState_String(t *testing.T) {
	require.Equal(t, "pending", Pending.String())
	require.Equal(t, "callbacked", Callbacked.String())
	require.Equal(t, "errbacked", Errbacked.String())
	require.Equal(t, "aborted", Aborted.String())
	require.Equal(t, "unknown", State(99).String())
}
