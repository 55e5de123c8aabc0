// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bureau-foundation/hoststream/lib/clock"
)

// DefaultTokenTTL is how long an issued token stays redeemable.
const DefaultTokenTTL = 30 * time.Second

var (
	ErrUnknownSession = errors.New("unknown session")
	ErrTokenMismatch  = errors.New("token mismatch")
	ErrTokenExpired   = errors.New("token expired")
)

// TokenStore issues single-use session credentials. The host directory
// hands the pair to the client; the stream endpoint redeems it.
type TokenStore struct {
	clock clock.Clock
	ttl   time.Duration

	mu      sync.Mutex
	pending map[string]pendingToken
}

type pendingToken struct {
	token   string
	expires time.Time
}

// NewTokenStore returns an empty store. A zero ttl selects
// DefaultTokenTTL.
func NewTokenStore(c clock.Clock, ttl time.Duration) *TokenStore {
	if c == nil {
		c = clock.Real()
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenStore{clock: c, ttl: ttl, pending: make(map[string]pendingToken)}
}

// Issue creates a session ID and its token.
func (s *TokenStore) Issue() (sessionID, token string, err error) {
	sessionID, err = randomHex(8)
	if err != nil {
		return "", "", err
	}
	token, err = randomHex(16)
	if err != nil {
		return "", "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	for id, pending := range s.pending {
		if now.After(pending.expires) {
			delete(s.pending, id)
		}
	}
	s.pending[sessionID] = pendingToken{token: token, expires: now.Add(s.ttl)}
	return sessionID, token, nil
}

// Redeem consumes the token for sessionID. A token is consumed even
// when redemption fails on mismatch.
func (s *TokenStore) Redeem(sessionID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending, ok := s.pending[sessionID]
	if !ok {
		return ErrUnknownSession
	}
	delete(s.pending, sessionID)
	if s.clock.Now().After(pending.expires) {
		return ErrTokenExpired
	}
	if subtle.ConstantTimeCompare([]byte(pending.token), []byte(token)) != 1 {
		return ErrTokenMismatch
	}
	return nil
}

// Authorize redeems the hello's credentials. It satisfies [Authorizer].
func (s *TokenStore) Authorize(hello *Hello) error {
	return s.Redeem(hello.SessionID, hello.Token)
}

func randomHex(n int) (string, error) {
	buffer := make([]byte, n)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return hex.EncodeToString(buffer), nil
}
