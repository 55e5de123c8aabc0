// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bureau-foundation/hoststream/lib/testutil"
)

// taskRunner stands in for the bubbletea event loop: it runs every
// runTaskMsg it is sent, in order, on its own goroutine.
type taskRunner struct {
	messages chan tea.Msg
}

func newTaskRunner(ctx context.Context) *taskRunner {
	runner := &taskRunner{messages: make(chan tea.Msg)}
	go func() {
		for {
			select {
			case msg := <-runner.messages:
				task := msg.(runTaskMsg)
				task.fn()
				close(task.ack)
			case <-ctx.Done():
				return
			}
		}
	}()
	return runner
}

func (r *taskRunner) Send(msg tea.Msg) { r.messages <- msg }

func startDispatcher(t *testing.T) (*teaDispatcher, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	dispatcher := newTeaDispatcher()
	dispatcher.attach(newTaskRunner(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		dispatcher.run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		testutil.RequireClosed(t, done, 5*time.Second, "dispatcher pump exit")
	})
	return dispatcher, cancel
}

func TestTeaDispatcherRunsTasksInOrder(t *testing.T) {
	dispatcher, _ := startDispatcher(t)

	order := make(chan int, 3)
	for index := range 3 {
		dispatcher.Post(func() { order <- index })
	}
	for want := range 3 {
		if got := testutil.RequireReceive(t, order, 5*time.Second, "waiting for task %d", want); got != want {
			t.Fatalf("task %d ran in position %d", got, want)
		}
	}

	ran := false
	if !dispatcher.PostSync(func() { ran = true }) {
		t.Fatal("PostSync reported the task did not run")
	}
	if !ran {
		t.Fatal("PostSync returned before the task ran")
	}
}

func TestTeaDispatcherPostBeforeAttach(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher := newTeaDispatcher()
	go dispatcher.run(ctx)

	ran := make(chan struct{})
	dispatcher.Post(func() { close(ran) })
	dispatcher.attach(newTaskRunner(ctx))
	testutil.RequireClosed(t, ran, 5*time.Second, "task posted before attach")
}

func TestTeaDispatcherDropsTasksAfterExit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher := newTeaDispatcher()
	go dispatcher.run(ctx)
	dispatcher.programExited()

	result := make(chan bool, 1)
	go func() {
		result <- dispatcher.PostSync(func() { t.Error("task ran after the program exited") })
	}()
	if testutil.RequireReceive(t, result, 5*time.Second, "waiting for PostSync") {
		t.Fatal("PostSync reported success after the program exited")
	}
}
