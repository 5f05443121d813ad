package cropper

import (
	"context"
	"sync"
)

// Dispatcher marshals a callback onto the host's event loop
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatcherFunc adapts a function to the Dispatcher interface
type DispatcherFunc func(fn func())

func (f DispatcherFunc) Dispatch(fn func()) { f(fn) }

// Immediate runs callbacks on the goroutine that produced them
var Immediate Dispatcher = DispatcherFunc(func(fn func()) { fn() })

// EventLoop is a minimal single-threaded callback queue for hosts without
// their own UI loop
type EventLoop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

// NewEventLoop creates an empty event loop
func NewEventLoop() *EventLoop {
	return &EventLoop{wake: make(chan struct{}, 1)}
}

// Dispatch enqueues fn. It never blocks
func (l *EventLoop) Dispatch(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// RunPending runs every queued callback on the calling goroutine and returns
// how many ran
func (l *EventLoop) RunPending() int {
	l.mu.Lock()
	q := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, fn := range q {
		fn()
	}
	return len(q)
}

// Run processes callbacks until ctx is done
func (l *EventLoop) Run(ctx context.Context) error {
	for {
		l.RunPending()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}
