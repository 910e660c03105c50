package deferred

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDispatchUnhandled_ConsultsDefaultHandler(t *testing.T) {
	ResetDefaultErrorHandler()
	defer ResetDefaultErrorHandler()

	var got error
	RegisterDefaultErrorHandler(func(err error) { got = err })

	boom := errors.New("boom")
	require.NotPanics(t, func() { dispatchUnhandled(boom, uuid.New()) })
	require.ErrorIs(t, got, boom)
}

func TestDispatchUnhandled_PanicsWithNoHandler(t *testing.T) {
	ResetDefaultErrorHandler()
	defer ResetDefaultErrorHandler()

	require.Panics(t, func() { dispatchUnhandled(errors.New("boom"), uuid.New()) })
}

func TestDispatchUnhandled_HandlerPanicReraises(t *testing.T) {
	ResetDefaultErrorHandler()
	defer ResetDefaultErrorHandler()

	RegisterDefaultErrorHandler(func(err error) { panic("handler fault") })

	require.Panics(t, func() { dispatchUnhandled(errors.New("boom"), uuid.New()) })
}

func TestResetDefaultErrorHandler_Clears(t *testing.T) {
	RegisterDefaultErrorHandler(func(err error) {})
	ResetDefaultErrorHandler()
	require.Nil(t, getDefaultHandler())
}
