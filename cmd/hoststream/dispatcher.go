// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"sync"

	"github.com/bureau-foundation/hoststream/lib/mainloop"
	"github.com/bureau-foundation/hoststream/lib/tui"
)

var _ mainloop.Dispatcher = (*teaDispatcher)(nil)

// runTaskMsg asks the bubbletea event loop to run fn inside Update and
// close ack afterwards.
type runTaskMsg struct {
	fn  func()
	ack chan struct{}
}

// teaDispatcher runs controller tasks inside the bubbletea event loop,
// which is the client's main goroutine.
//
// Post must never block, but tea.Program.Send blocks until the event
// loop takes the message. A mainloop.Loop pump sits in between: Post
// enqueues on the loop, and the pump goroutine forwards one task at a
// time to the program and waits for it to run.
type teaDispatcher struct {
	loop *mainloop.Loop

	mu     sync.Mutex
	sender tui.Sender

	exited    chan struct{}
	exitOnce  sync.Once
	attached  chan struct{}
	attachOne sync.Once
}

func newTeaDispatcher() *teaDispatcher {
	return &teaDispatcher{
		loop:     mainloop.New(),
		exited:   make(chan struct{}),
		attached: make(chan struct{}),
	}
}

// attach sets the program that runs tasks. Tasks posted earlier wait
// for it.
func (d *teaDispatcher) attach(sender tui.Sender) {
	d.mu.Lock()
	d.sender = sender
	d.mu.Unlock()
	d.attachOne.Do(func() { close(d.attached) })
}

// programExited releases every waiting and future task unrun.
func (d *teaDispatcher) programExited() {
	d.exitOnce.Do(func() { close(d.exited) })
}

// run pumps tasks until ctx is done.
func (d *teaDispatcher) run(ctx context.Context) error {
	return d.loop.Run(ctx)
}

func (d *teaDispatcher) Post(fn func()) {
	d.loop.Post(func() { d.forward(fn) })
}

func (d *teaDispatcher) PostSync(fn func()) bool {
	ran := false
	if !d.loop.PostSync(func() { ran = d.forward(fn) }) {
		return false
	}
	return ran
}

// forward hands fn to the program and reports whether it ran.
func (d *teaDispatcher) forward(fn func()) bool {
	select {
	case <-d.attached:
	case <-d.exited:
		return false
	}
	d.mu.Lock()
	sender := d.sender
	d.mu.Unlock()

	// Send returns without delivering once the program has exited.
	ack := make(chan struct{})
	sender.Send(runTaskMsg{fn: fn, ack: ack})
	select {
	case <-ack:
		return true
	case <-d.exited:
		return false
	}
}
