package deferred

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
)

// CallbackError exposes correlation metadata for a callback failure: the
// identity of the node the faulty callback was registered on, and the
// callback's index within that node's callback list. It is produced when
// a success callback panics (see Node.Then), so that the fatal
// diagnostic described in spec §4.2/§6 can name "the faulty callback
// identity" and so callers can distinguish an application panic from an
// ordinary returned error via errors.As.
type CallbackError struct {
	err           error
	nodeID        uuid.UUID
	callbackIndex int
}

func newCallbackError(cause any, nodeID uuid.UUID, callbackIndex int) error {
	var err error
	switch v := cause.(type) {
	case error:
		err = v
	default:
		err = fmt.Errorf("%v", v)
	}
	return &CallbackError{
		err:           pkgerrors.WithStack(err),
		nodeID:        nodeID,
		callbackIndex: callbackIndex,
	}
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("callback[%d] on node %s panicked: %v", e.callbackIndex, e.nodeID, e.err)
}

// Unwrap exposes the panic value (wrapped with a stack trace) for
// errors.Is / errors.As traversal.
func (e *CallbackError) Unwrap() error { return e.err }

// NodeID returns the identity of the node the faulty callback was
// registered on.
func (e *CallbackError) NodeID() uuid.UUID { return e.nodeID }

// CallbackIndex returns the index of the faulty callback within its
// node's callback list.
func (e *CallbackError) CallbackIndex() int { return e.callbackIndex }

// ExtractNodeID returns the node identity carried by err, if err (or an
// error it wraps) is a *CallbackError.
func ExtractNodeID(err error) (uuid.UUID, bool) {
	var ce *CallbackError
	if errors.As(err, &ce) {
		return ce.NodeID(), true
	}
	return uuid.UUID{}, false
}

// ExtractCallbackIndex returns the callback index carried by err, if err
// (or an error it wraps) is a *CallbackError.
func ExtractCallbackIndex(err error) (int, bool) {
	var ce *CallbackError
	if errors.As(err, &ce) {
		return ce.CallbackIndex(), true
	}
	return 0, false
}
