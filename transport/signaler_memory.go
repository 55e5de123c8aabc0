// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"sync"
)

// Compile-time interface check.
var _ Signaler = (*MemorySignaler)(nil)

// MemorySignaler is an in-process Signaler. Answerers register under a
// name; Exchange calls the registered answer function directly. A
// [WebRTCDialer] and a [WebRTCAnswerer] sharing one MemorySignaler can
// establish connections without any network signaling.
type MemorySignaler struct {
	mu        sync.Mutex
	answerers map[string]AnswerFunc
}

// NewMemorySignaler creates a new in-process signaler.
func NewMemorySignaler() *MemorySignaler {
	return &MemorySignaler{answerers: make(map[string]AnswerFunc)}
}

// Register routes offers for name to answer, replacing any previous
// registration.
func (s *MemorySignaler) Register(name string, answer AnswerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answerers[name] = answer
}

// Unregister removes the answerer for name.
func (s *MemorySignaler) Unregister(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.answerers, name)
}

func (s *MemorySignaler) Exchange(ctx context.Context, target, offerSDP string) (string, error) {
	s.mu.Lock()
	answer, ok := s.answerers[target]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPeer, target)
	}
	return answer(ctx, offerSDP)
}
