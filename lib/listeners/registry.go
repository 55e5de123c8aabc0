// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package listeners provides an ordered, handle-keyed observer
// collection. Notification order is registration order. Listeners are
// removed by the [Handle] returned from [Registry.Add], never by value
// comparison, so the same listener may be registered more than once.
package listeners

import "sync"

// Handle identifies one registration. The zero Handle is never issued.
type Handle uint64

// Registry is safe for concurrent use. [Registry.Notify] iterates a
// snapshot, so a listener may add or remove registrations (including
// its own) while being notified; such changes take effect from the
// next notification.
type Registry[T any] struct {
	mu      sync.Mutex
	next    Handle
	entries []entry[T]
}

type entry[T any] struct {
	handle   Handle
	listener T
}

// Add appends listener and returns its handle.
func (r *Registry[T]) Add(listener T) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.entries = append(r.entries, entry[T]{handle: r.next, listener: listener})
	return r.next
}

// Remove drops the registration for handle. It reports whether the
// handle was registered.
func (r *Registry[T]) Remove(handle Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.handle == handle {
			// Copy rather than shift in place: a snapshot taken by a
			// concurrent Notify may share the backing array.
			entries := make([]entry[T], 0, len(r.entries)-1)
			entries = append(entries, r.entries[:i]...)
			r.entries = append(entries, r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Notify calls fn once per registered listener in registration order.
// No lock is held while fn runs.
func (r *Registry[T]) Notify(fn func(T)) {
	r.mu.Lock()
	snapshot := r.entries
	r.mu.Unlock()
	for _, e := range snapshot {
		fn(e.listener)
	}
}

// Len returns the number of registrations.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Clear removes every registration.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}
