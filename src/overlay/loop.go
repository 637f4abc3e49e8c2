package overlay

import (
	"context"
	"sync"
)

// EventLoop runs tasks one at a time, in the order they were posted.
type EventLoop struct {
	lock  sync.Mutex
	queue []func()

	wakeCh       chan struct{}
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// NewEventLoop creates an EventLoop. Tasks run only when Run or Step is
// called.
func NewEventLoop() *EventLoop {
	return &EventLoop{
		wakeCh:     make(chan struct{}, 1),
		shutdownCh: make(chan struct{}),
	}
}

// Post queues task. It never blocks and may be called from any goroutine.
func (l *EventLoop) Post(task func()) {
	l.lock.Lock()
	l.queue = append(l.queue, task)
	l.lock.Unlock()

	select {
	case l.wakeCh <- struct{}{}:
	default:
	}
}

// Step runs the tasks that were queued when it was called and returns how many
// ran. Tasks they post run on the next step.
func (l *EventLoop) Step() int {
	l.lock.Lock()
	batch := l.queue
	l.queue = nil
	l.lock.Unlock()

	for _, task := range batch {
		task()
	}
	return len(batch)
}

// Len returns the number of queued tasks.
func (l *EventLoop) Len() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return len(l.queue)
}

// Run processes tasks until Shutdown is called.
func (l *EventLoop) Run() {
	for {
		select {
		case <-l.wakeCh:
			l.Step()
		case <-l.shutdownCh:
			return
		}
	}
}

// Shutdown stops Run. Queued tasks are abandoned.
func (l *EventLoop) Shutdown() {
	l.shutdownOnce.Do(func() {
		close(l.shutdownCh)
	})
}

// Sync posts fn and waits until it has run, ctx is done, or the loop is shut
// down. It must not be called from the loop itself. fn may still run after
// Sync returned an error, so it must not write state owned by the caller; use
// Query to read values back.
func (l *EventLoop) Sync(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		fn()
		close(done)
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.shutdownCh:
		return ErrShutdown
	}
}

// Query runs fn on the loop and returns its result. It must not be called from
// the loop itself. If ctx ends or the loop shuts down first, the result of fn
// is discarded whenever it runs.
func Query[T any](ctx context.Context, l *EventLoop, fn func() T) (T, error) {
	resCh := make(chan T, 1)
	l.Post(func() {
		resCh <- fn()
	})

	var zero T
	select {
	case res := <-resCh:
		return res, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-l.shutdownCh:
		return zero, ErrShutdown
	}
}
