package deferred

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// diagnosticSink drains textual warnings on a dedicated goroutine so
// that emitting one from inside a propagation step never blocks the
// caller. Adapted from the teacher's error_forwarder.go: where that
// type forwards at most one error before cancelling, a diagnosticSink
// forwards every message for the life of the process, falling back to a
// detached sender exactly as error_forwarder.go does when its outward
// channel is full.
type diagnosticSink struct {
	out       chan string
	logger    *log.Logger
	closeCh   chan struct{}
	sendWG    sync.WaitGroup
	closeOnce sync.Once
	runOnce   sync.Once
}

func newDiagnosticSink(logger *log.Logger, bufferSize int) *diagnosticSink {
	return &diagnosticSink{
		out:     make(chan string, bufferSize),
		logger:  logger,
		closeCh: make(chan struct{}),
	}
}

func (s *diagnosticSink) start() {
	s.runOnce.Do(func() { go s.run() })
}

func (s *diagnosticSink) run() {
	for {
		select {
		case msg := <-s.out:
			s.logger.Print(msg)
		case <-s.closeCh:
			for {
				select {
				case msg := <-s.out:
					s.logger.Print(msg)
				default:
					return
				}
			}
		}
	}
}

func (s *diagnosticSink) emit(msg string) {
	select {
	case s.out <- msg:
		return
	default:
	}
	s.sendWG.Add(1)
	go func() {
		defer s.sendWG.Done()
		select {
		case s.out <- msg:
		case <-s.closeCh:
		}
	}()
}

func (s *diagnosticSink) Close() {
	s.closeOnce.Do(func() {
		close(s.closeCh)
		s.sendWG.Wait()
	})
}

var currentSink atomic.Pointer[diagnosticSink]

func sink() *diagnosticSink {
	s := currentSink.Load()
	if s == nil {
		s = newDiagnosticSink(log.Default(), 256)
		if !currentSink.CompareAndSwap(nil, s) {
			s = currentSink.Load()
		}
		s.start()
	}
	return s
}

func warn(format string, args ...any) {
	sink().emit(Namespace + ": warning: " + fmt.Sprintf(format, args...))
}

// dispatchUnhandled is invoked when an error reaches a leaf of a chain
// tree with no orIfError handler on its path (spec §4.2 step 3-4).
// If a process-wide default handler is registered it is consulted; a
// handler that itself panics is treated as a fault and the error is
// re-raised instead of re-entering the default handler (spec §7). With
// no default handler, a fatal diagnostic is emitted and the error is
// re-raised.
func dispatchUnhandled(err error, nodeID uuid.UUID) {
	if h := getDefaultHandler(); h != nil {
		faulted := func() (faulted bool) {
			defer func() {
				if r := recover(); r != nil {
					faulted = true
				}
			}()
			h(err)
			return false
		}()
		if !faulted {
			return
		}
		sink().emit(fmt.Sprintf(
			"%s: fatal: default error handler panicked handling error from node %s: %v",
			Namespace, nodeID, err,
		))
		panic(err)
	}

	wrapped := fmt.Errorf("%w: %w", ErrUnhandled, err)
	sink().emit(fmt.Sprintf("%s: fatal: node %s: %v", Namespace, nodeID, wrapped))
	panic(wrapped)
}

func fatalFinally(nodeID uuid.UUID, r any) {
	sink().emit(fmt.Sprintf("%s: fatal: atLast callback on node %s panicked: %v", Namespace, nodeID, r))
	panic(r)
}

// DefaultErrorHandler is the process-wide fallback invoked by
// dispatchUnhandled when an error reaches a leaf of a chain tree with no
// registered orIfError handler.
type DefaultErrorHandler func(error)

var defaultErrorHandler atomic.Pointer[DefaultErrorHandler]

// RegisterDefaultErrorHandler installs the process-wide fallback error
// handler. It is set-once in typical use; call it again to replace the
// handler, or ResetDefaultErrorHandler to clear it (primarily useful for
// test isolation, per spec §9).
func RegisterDefaultErrorHandler(fn DefaultErrorHandler) {
	if fn == nil {
		defaultErrorHandler.Store(nil)
		return
	}
	defaultErrorHandler.Store(&fn)
}

// ResetDefaultErrorHandler clears the process-wide default error
// handler.
func ResetDefaultErrorHandler() {
	defaultErrorHandler.Store(nil)
}

func getDefaultHandler() DefaultErrorHandler {
	p := defaultErrorHandler.Load()
	if p == nil {
		return nil
	}
	return *p
}
