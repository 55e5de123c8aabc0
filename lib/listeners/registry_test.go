// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package listeners

import (
	"slices"
	"sync"
	"testing"
)

func TestRegistryNotifyOrder(t *testing.T) {
	var registry Registry[string]
	registry.Add("a")
	registry.Add("b")
	registry.Add("c")

	var got []string
	registry.Notify(func(s string) { got = append(got, s) })
	if want := []string{"a", "b", "c"}; !slices.Equal(got, want) {
		t.Fatalf("notify order = %v, want %v", got, want)
	}
}

func TestRegistryRemoveByHandle(t *testing.T) {
	var registry Registry[string]
	first := registry.Add("same")
	second := registry.Add("same")
	if first == second {
		t.Fatal("duplicate registrations share a handle")
	}
	if first == 0 || second == 0 {
		t.Fatal("zero handle issued")
	}

	if !registry.Remove(first) {
		t.Fatal("Remove(first) = false")
	}
	if registry.Remove(first) {
		t.Fatal("second Remove(first) = true")
	}
	if registry.Len() != 1 {
		t.Fatalf("Len = %d, want 1", registry.Len())
	}
	if registry.Remove(Handle(999)) {
		t.Fatal("Remove of unknown handle = true")
	}
}

func TestRegistryMutationDuringNotify(t *testing.T) {
	var registry Registry[func()]
	var calls []string

	var selfHandle Handle
	selfHandle = registry.Add(func() {
		calls = append(calls, "self-removing")
		registry.Remove(selfHandle)
		registry.Add(func() { calls = append(calls, "late") })
	})
	registry.Add(func() { calls = append(calls, "steady") })

	registry.Notify(func(fn func()) { fn() })
	if want := []string{"self-removing", "steady"}; !slices.Equal(calls, want) {
		t.Fatalf("first notify = %v, want %v", calls, want)
	}

	calls = nil
	registry.Notify(func(fn func()) { fn() })
	if want := []string{"steady", "late"}; !slices.Equal(calls, want) {
		t.Fatalf("second notify = %v, want %v", calls, want)
	}
}

func TestRegistryClear(t *testing.T) {
	var registry Registry[int]
	registry.Add(1)
	registry.Add(2)
	registry.Clear()
	if registry.Len() != 0 {
		t.Fatalf("Len after Clear = %d", registry.Len())
	}
	registry.Notify(func(int) { t.Fatal("notified after Clear") })
}

func TestRegistryConcurrentUse(t *testing.T) {
	var registry Registry[int]
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				handle := registry.Add(i*100 + j)
				registry.Notify(func(int) {})
				registry.Remove(handle)
			}
		}()
	}
	wg.Wait()
	if registry.Len() != 0 {
		t.Fatalf("Len = %d after balanced add/remove", registry.Len())
	}
}
