package deferred

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestExtractNodeID_AndCallbackIndex(t *testing.T) {
	id := uuid.New()
	err := newCallbackError("boom", id, 3)

	gotID, ok := ExtractNodeID(err)
	require.True(t, ok)
	require.Equal(t, id, gotID)

	gotIdx, ok := ExtractCallbackIndex(err)
	require.True(t, ok)
	require.Equal(t, 3, gotIdx)
}

func TestExtractNodeID_FalseForUnrelatedError(t *testing.T) {
	_, ok := ExtractNodeID(errors.New("plain"))
	require.False(t, ok)
}

func TestNewCallbackError_WrapsCauseError(t *testing.T) {
	cause := errors.New("cause")
	err := newCallbackError(cause, uuid.New(), 0)
	require.ErrorIs(t, err, cause)
}
