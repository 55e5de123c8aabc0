// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import "sync"

// teardown is session cleanup posted to the main goroutine. It runs at
// most once, either from the dispatcher or from Close.
type teardown struct {
	once sync.Once
	fn   func()
}

// postTeardown queues fn on the dispatcher and remembers it until it
// runs, so Close can finish cleanup the dispatcher never got to.
func (c *Controller) postTeardown(fn func()) {
	td := &teardown{fn: fn}
	c.mu.Lock()
	if c.pending == nil {
		c.pending = make(map[*teardown]struct{})
	}
	c.pending[td] = struct{}{}
	c.mu.Unlock()

	c.dispatcher.Post(func() { c.runTeardown(td) })
}

func (c *Controller) runTeardown(td *teardown) {
	c.mu.Lock()
	delete(c.pending, td)
	c.mu.Unlock()
	td.once.Do(td.fn)
}

// takePendingLocked removes and returns every teardown not yet started.
// Called with c.mu held.
func (c *Controller) takePendingLocked() []*teardown {
	pending := make([]*teardown, 0, len(c.pending))
	for td := range c.pending {
		pending = append(pending, td)
	}
	c.pending = nil
	return pending
}
