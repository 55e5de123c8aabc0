// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mainloop runs functions on a single owning goroutine.
//
// The stream controller receives callbacks on session worker goroutines
// and clock timer goroutines, but listener notifications and media
// teardown must happen where the UI lives. A [Dispatcher] is that
// handoff: [Dispatcher.Post] enqueues and returns, [Dispatcher.PostSync]
// enqueues and waits for the function to finish.
//
// [Loop] is the channel-backed implementation used by headless clients
// and tests. Interactive clients adapt their UI framework's event loop
// to the same interface.
package mainloop

import (
	"context"
	"sync"
)

// Dispatcher runs functions on the main goroutine.
type Dispatcher interface {
	// Post schedules fn and returns immediately. Functions run in Post
	// order. After the main goroutine has stopped, fn is dropped.
	Post(fn func())

	// PostSync schedules fn and blocks until it has run. It returns
	// false without running fn if the main goroutine stopped first.
	// Calling PostSync from the main goroutine deadlocks.
	PostSync(fn func()) bool
}

// Loop is a [Dispatcher] whose main goroutine is whichever goroutine
// calls [Loop.Run]. The queue is unbounded so Post never blocks, even
// when called from inside a running task.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool

	wake chan struct{}
	done chan struct{}
}

// New returns a Loop ready for Post calls. Tasks accumulate until Run
// is called.
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post implements [Dispatcher].
func (l *Loop) Post(fn func()) {
	l.enqueue(fn)
}

// PostSync implements [Dispatcher].
func (l *Loop) PostSync(fn func()) bool {
	finished := make(chan struct{})
	if !l.enqueue(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.done:
		// Run may have executed the task just before stopping.
		select {
		case <-finished:
			return true
		default:
			return false
		}
	}
}

func (l *Loop) enqueue(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Run executes queued functions on the calling goroutine until ctx is
// cancelled. Tasks still queued at cancellation are discarded and any
// PostSync callers waiting on them return false. Run may be called
// once.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, fn := range batch {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fn()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) stop() {
	l.mu.Lock()
	l.stopped = true
	l.queue = nil
	l.mu.Unlock()
	close(l.done)
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }
