package master

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// TokenManager issues and validates the join tokens a node presents during
// the beacon handshake (pkg/transport.Beacon), grounded on the teacher's
// cluster join-token manager. A correct token is necessary but not
// sufficient for skerr.ErrWrongCookie to not fire — the handshake also
// checks the node's declared role against what the token was issued for.
type TokenManager struct {
	mu     sync.RWMutex
	tokens map[string]*JoinToken
}

// JoinToken authorizes one node to join the cluster under a given role
// until it expires.
type JoinToken struct {
	Token     string
	Role      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewTokenManager returns an empty token manager.
func NewTokenManager() *TokenManager {
	return &TokenManager{tokens: make(map[string]*JoinToken)}
}

// Generate mints a new random token for role, valid for duration.
func (tm *TokenManager) Generate(role string, duration time.Duration) (*JoinToken, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	jt := &JoinToken{
		Token:     hex.EncodeToString(buf),
		Role:      role,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(duration),
	}
	tm.mu.Lock()
	tm.tokens[jt.Token] = jt
	tm.mu.Unlock()
	return jt, nil
}

// Validate checks a presented token and returns the role it was issued
// for, or an error if it's unknown or expired.
func (tm *TokenManager) Validate(token string) (string, error) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	jt, ok := tm.tokens[token]
	if !ok {
		return "", fmt.Errorf("invalid token")
	}
	if time.Now().After(jt.ExpiresAt) {
		return "", fmt.Errorf("token expired")
	}
	return jt.Role, nil
}

// Revoke invalidates a token immediately.
func (tm *TokenManager) Revoke(token string) {
	tm.mu.Lock()
	delete(tm.tokens, token)
	tm.mu.Unlock()
}

// CleanupExpired removes every token past its expiry, for periodic
// housekeeping from the reconciliation loop.
func (tm *TokenManager) CleanupExpired() {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	now := time.Now()
	for token, jt := range tm.tokens {
		if now.After(jt.ExpiresAt) {
			delete(tm.tokens, token)
		}
	}
}
