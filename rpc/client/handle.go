package client

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/rDBM/lib/status"
)

// handleState is the liveness of a handle. Every state but stateOpen is final.
type handleState int32

const (
	stateOpen      handleState = iota // healthy
	stateBroken                       // a read or write failed
	stateCancelled                    // Cancel was called
	stateClosed                       // Close was called
)

func (s handleState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateBroken:
		return "broken"
	case stateCancelled:
		return "cancelled"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// handle holds what Stream, Iterator and Replicator have in common:
// the back-reference to the session, the liveness state and the context
// the transport stream lives in.
type handle struct {
	kind    string
	dbm     atomic.Pointer[RemoteDBM]
	state   atomic.Int32
	ctx     context.Context
	cancel  context.CancelFunc
	expired atomic.Bool // set when the deadline of the running call passed
	closed  atomic.Bool // Close ran
}

// init binds the handle to d and registers it
func (h *handle) init(kind string, d *RemoteDBM) {
	h.kind = kind
	h.ctx, h.cancel = context.WithCancel(context.Background())
	h.dbm.Store(d)
	d.register(h)
	Logger.Debugf("%s created", kind)
}

func (h *handle) detach() {
	h.dbm.Store(nil)
}

func (h *handle) getState() handleState {
	return handleState(h.state.Load())
}

// leave moves the handle out of stateOpen. It reports whether this call did it.
func (h *handle) leave(to handleState) bool {
	return h.state.CompareAndSwap(int32(stateOpen), int32(to))
}

// Cancel makes the handle unhealthy and aborts a running call.
// It may be called from any goroutine at any time.
func (h *handle) Cancel() {
	if h.leave(stateCancelled) {
		Logger.Debugf("%s cancelled", h.kind)
	}
	h.cancel()
}

// Healthy reports whether the handle accepts operations
func (h *handle) Healthy() bool {
	return h.getState() == stateOpen
}

func (h *handle) errUnhealthy() error {
	return status.NewError(status.CodePrecondition, "unhealthy "+h.kind)
}

// begin checks the preconditions of an operation and returns the session with
// its shared lock held. The caller must call d.mu.RUnlock.
func (h *handle) begin() (*RemoteDBM, error) {
	d := h.dbm.Load()
	if d == nil {
		return nil, errNotConnected()
	}
	if err := d.acquire(); err != nil {
		return nil, err
	}
	if !h.Healthy() {
		d.mu.RUnlock()
		return nil, h.errUnhealthy()
	}
	return d, nil
}

// arm starts the deadline of one call. When it passes, the transport stream
// is cancelled and the failure is reported as DEADLINE_EXCEEDED.
// If the timer fired before stop, the stream is gone even when the call
// itself completed, so the handle is broken.
func (h *handle) arm(timeout time.Duration) (stop func()) {
	h.expired.Store(false)
	t := time.AfterFunc(timeout, func() {
		h.expired.Store(true)
		h.cancel()
	})
	return func() {
		if !t.Stop() && h.leave(stateBroken) {
			poisonedHandles.Inc()
			Logger.Warningf("%s is unhealthy after its deadline passed", h.kind)
		}
	}
}

// fail poisons the handle after a transport failure and returns the NETWORK error
func (h *handle) fail(prefix string, err error) error {
	if h.leave(stateBroken) {
		poisonedHandles.Inc()
		Logger.Warningf("%s is unhealthy after a transport failure: %v", h.kind, err)
	}
	networkErrors.Inc()
	if h.expired.Load() {
		err = context.DeadlineExceeded
	}
	return status.FromTransportPrefixed(prefix, err)
}

// release ends the handle. graceful is run only if the handle was healthy
// and the session still exists. Release is idempotent.
func (h *handle) release(graceful func(d *RemoteDBM) error) error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	defer func() {
		h.cancel()
		liveHandles.Add(-1)
	}()

	d := h.dbm.Load()
	if d == nil {
		h.leave(stateClosed)
		return nil
	}

	var err error
	if h.leave(stateClosed) && graceful != nil {
		if d.acquire() == nil {
			stop := h.arm(d.timeout)
			err = graceful(d)
			stop()
			d.mu.RUnlock()
		}
	}

	d.deregister(h)
	Logger.Debugf("%s closed", h.kind)
	if err != nil {
		return status.FromTransport(err)
	}
	return nil
}

// errMissingResponse is returned when a response frame lacks the expected part
func errMissingResponse() error {
	return status.NewError(status.CodeBrokenData, "missing response")
}
