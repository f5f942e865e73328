// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/charmbracelet/ssh"
)

type contextKey string

// tokenContextKey stores the authenticated *Token in the SSH context.
const tokenContextKey contextKey = "procdrive.token"

// GenerateToken creates a token valid for TokenTTL. An empty session name
// lets the token run any session.
func (s *Server) GenerateToken(session string) (*Token, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return s.AddToken(TokenValue(hex.EncodeToString(buf)), session, s.cfg.TokenTTL)
}

// AddToken registers a caller-chosen token. A ttl of 0 never expires.
func (s *Server) AddToken(value TokenValue, session string, ttl time.Duration) (*Token, error) {
	if err := value.Validate(); err != nil {
		return nil, err
	}
	now := s.now()
	token := &Token{
		Value:     value,
		Session:   session,
		CreatedAt: now,
	}
	if ttl > 0 {
		token.ExpiresAt = now.Add(ttl)
	}

	s.tokenMu.Lock()
	s.tokens[value] = token
	s.tokenMu.Unlock()

	s.logger.Debug("added token", "session", session, "expires", token.ExpiresAt)
	return token, nil
}

// ValidateToken returns the token if it exists and has not expired.
// Expired tokens are revoked on sight.
func (s *Server) ValidateToken(value TokenValue) (*Token, bool) {
	s.tokenMu.RLock()
	token, ok := s.tokens[value]
	s.tokenMu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.expired(token) {
		s.RevokeToken(value)
		return nil, false
	}
	return token, true
}

// RevokeToken invalidates a token.
func (s *Server) RevokeToken(value TokenValue) {
	s.tokenMu.Lock()
	delete(s.tokens, value)
	s.tokenMu.Unlock()
}

// RevokeTokensForSession revokes every token scoped to the named session.
func (s *Server) RevokeTokensForSession(session string) {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()
	for value, token := range s.tokens {
		if token.Session == session {
			delete(s.tokens, value)
		}
	}
}

func (s *Server) expired(t *Token) bool {
	return !t.ExpiresAt.IsZero() && s.now().After(t.ExpiresAt)
}

// cleanupExpiredTokens periodically removes expired tokens.
func (s *Server) cleanupExpiredTokens() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tokenMu.Lock()
			for value, token := range s.tokens {
				if s.expired(token) {
					delete(s.tokens, value)
				}
			}
			s.tokenMu.Unlock()
		}
	}
}

// passwordHandler authenticates clients by token.
func (s *Server) passwordHandler(ctx ssh.Context, password string) bool {
	token, ok := s.ValidateToken(TokenValue(password))
	if !ok {
		s.logger.Warn("invalid token authentication attempt", "user", ctx.User(), "remote", ctx.RemoteAddr())
		return false
	}
	ctx.SetValue(tokenContextKey, token)
	s.logger.Debug("token authentication successful", "user", ctx.User(), "session", token.Session)
	return true
}

// publicKeyHandler rejects all public key authentication; only tokens are accepted.
func (s *Server) publicKeyHandler(_ ssh.Context, _ ssh.PublicKey) bool {
	return false
}
