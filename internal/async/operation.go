// Package async turns a blocking call into a stateful operation that exposes
// loading, error and result state to whoever renders it.
package async

import (
	"context"
	"errors"
	"sync"
)

// Policy decides what happens when Invoke is called while a previous call on
// the same Operation has not settled yet.
type Policy int

const (
	// LastWriteWins lets concurrent calls run independently. Whichever settles
	// last overwrites the shared state.
	LastWriteWins Policy = iota
	// RejectConcurrent fails a new call with ErrInFlight while another runs.
	RejectConcurrent
	// CancelPrevious cancels the context of the running call and ignores its
	// outcome once it settles.
	CancelPrevious
)

// ErrInFlight is returned by Invoke under RejectConcurrent.
var ErrInFlight = errors.New("operation already in progress")

// ParsePolicy maps a configuration string onto a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "last-write-wins":
		return LastWriteWins, nil
	case "reject":
		return RejectConcurrent, nil
	case "cancel-previous":
		return CancelPrevious, nil
	default:
		return LastWriteWins, errors.New("unknown async policy: " + s)
	}
}

// String implements fmt.Stringer.
func (p Policy) String() string {
	switch p {
	case RejectConcurrent:
		return "reject"
	case CancelPrevious:
		return "cancel-previous"
	default:
		return "last-write-wins"
	}
}

// State is a snapshot of an Operation.
type State[T any] struct {
	IsLoading bool
	Error     *ErrorInfo
	Result    *T
}

// Func is the wrapped call. A nil result with a nil error means the call
// succeeded without returning data.
type Func[A, T any] func(ctx context.Context, args A) (*T, error)

// Operation wraps a Func with loading, error and result state.
type Operation[A, T any] struct {
	fn     Func[A, T]
	policy Policy

	mu        sync.Mutex
	state     State[T]
	inFlight  int
	seq       uint64
	cancel    context.CancelFunc
	listeners []func()
}

// Option configures an Operation.
type Option func(*options)

type options struct {
	policy Policy
}

// WithPolicy sets the concurrency policy. The default is LastWriteWins.
func WithPolicy(p Policy) Option {
	return func(o *options) { o.policy = p }
}

// New wraps fn.
func New[A, T any](fn Func[A, T], opts ...Option) *Operation[A, T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Operation[A, T]{fn: fn, policy: o.policy}
}

// Invoke runs the wrapped call. The previous error is cleared and IsLoading is
// set before the call starts; IsLoading is reset on every exit path.
//
// On failure the normalised ErrorInfo is stored in State and the returned
// error carries the normalised message. The original cause stays reachable
// through errors.Is and errors.As.
func (o *Operation[A, T]) Invoke(ctx context.Context, args A) (result *T, err error) {
	o.mu.Lock()
	if o.policy == RejectConcurrent && o.inFlight > 0 {
		o.mu.Unlock()
		return nil, ErrInFlight
	}
	if o.policy == CancelPrevious && o.cancel != nil {
		o.cancel()
	}
	callCtx, cancel := context.WithCancel(ctx)
	o.seq++
	seq := o.seq
	o.cancel = cancel
	o.inFlight++
	o.state.Error = nil
	o.state.IsLoading = true
	o.mu.Unlock()
	o.notify()

	defer func() {
		cancel()
		o.mu.Lock()
		o.inFlight--
		if seq == o.seq {
			o.cancel = nil
		}
		if o.owns(seq) {
			o.state.IsLoading = false
		}
		o.mu.Unlock()
		o.notify()
	}()

	data, callErr := o.fn(callCtx, args)
	if callErr != nil {
		info := Normalize(callErr)
		o.mu.Lock()
		if o.owns(seq) {
			o.state.Error = &info
		}
		o.mu.Unlock()
		return nil, &Error{Info: info, cause: callErr}
	}

	if data != nil {
		o.mu.Lock()
		if o.owns(seq) {
			o.state.Result = data
		}
		o.mu.Unlock()
	}
	return data, nil
}

// owns reports whether the call with the given sequence number may write
// state. Must be called with o.mu held.
func (o *Operation[A, T]) owns(seq uint64) bool {
	return o.policy != CancelPrevious || seq == o.seq
}

// State returns a snapshot of the operation.
func (o *Operation[A, T]) State() State[T] {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// IsLoading reports whether a call is in flight.
func (o *Operation[A, T]) IsLoading() bool {
	return o.State().IsLoading
}

// Err returns the error of the last settled call, if it failed.
func (o *Operation[A, T]) Err() *ErrorInfo {
	return o.State().Error
}

// Result returns the last data a successful call produced.
func (o *Operation[A, T]) Result() *T {
	return o.State().Result
}

// ClearError drops the recorded error. The result is kept.
func (o *Operation[A, T]) ClearError() {
	o.mu.Lock()
	o.state.Error = nil
	o.mu.Unlock()
	o.notify()
}

// OnChange registers fn to be called after every state transition.
// Listeners run on the invoking goroutine and must not call Invoke.
func (o *Operation[A, T]) OnChange(fn func()) {
	o.mu.Lock()
	o.listeners = append(o.listeners, fn)
	o.mu.Unlock()
}

func (o *Operation[A, T]) notify() {
	o.mu.Lock()
	listeners := make([]func(), len(o.listeners))
	copy(listeners, o.listeners)
	o.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}
