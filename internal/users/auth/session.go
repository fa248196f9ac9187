// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/whiphelmets/internal/platform/sec"
)

// # Session Manager

// SessionManager issues and validates opaque bearer tokens.
//
// Tokens carry 256 bits of entropy and are stored only as their sha256. A
// user may hold any number of concurrent sessions.
type SessionManager struct {
	sessions SessionRepository
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewSessionManager creates a manager issuing sessions valid for ttl.
func NewSessionManager(sessions SessionRepository, ttl time.Duration, logger *slog.Logger) *SessionManager {
	if ttl <= 0 {
		ttl = SessionTTL
	}
	return &SessionManager{sessions: sessions, ttl: ttl, logger: logger, now: time.Now}
}

// WithClock replaces the time source. Tests use it to move past expiry.
func (manager *SessionManager) WithClock(now func() time.Time) *SessionManager {
	manager.now = now
	return manager
}

/*
CreateSession issues a new token for userID, valid until now + TTL.

Parameters:
  - context: context.Context
  - userID: int64
  - meta: ClientMeta (user agent and IP recorded with the session)

Returns:
  - string: The bearer token, returned to the client once
  - *Session: The persisted session
  - error: Token generation or persistence failures
*/
func (manager *SessionManager) CreateSession(context context.Context, userID int64, meta ClientMeta) (string, *Session, error) {
	token, err := sec.GenerateSecureToken(sec.SessionTokenBytes)
	if err != nil {
		return "", nil, fmt.Errorf("auth_session_token_failed: %w", err)
	}

	createdAt := manager.now()
	session := &Session{
		UserID:    userID,
		TokenHash: sec.HashToken(token),
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(manager.ttl),
	}

	if err := manager.sessions.Create(context, session); err != nil {
		return "", nil, fmt.Errorf("auth_session_create_failed: %w", err)
	}

	manager.logger.InfoContext(context, "session_created",
		slog.Int64("user_id", userID),
		slog.Int64("session_id", session.ID),
	)
	return token, session, nil
}

/*
ValidateSession resolves token to the identity of its owner.

Description: Every call first deletes all sessions that expired before now,
then looks the token up among the remaining ones. Absent, malformed and
expired tokens all resolve to (nil, nil).

Parameters:
  - context: context.Context
  - token: string

Returns:
  - *UserSummary: Owner identity, or nil when there is no live session
  - error: Storage failures only
*/
func (manager *SessionManager) ValidateSession(context context.Context, token string) (*UserSummary, error) {
	now := manager.now()

	swept, err := manager.sessions.DeleteExpired(context, now)
	if err != nil {
		return nil, fmt.Errorf("auth_session_sweep_failed: %w", err)
	}
	if swept > 0 {
		manager.logger.DebugContext(context, "sessions_expired_swept", slog.Int64("count", swept))
	}

	if token == "" || len(token) > 512 {
		return nil, nil
	}

	summary, err := manager.sessions.FindSummaryByTokenHash(context, sec.HashToken(token), now)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("auth_session_lookup_failed: %w", err)
	}
	return summary, nil
}

// ResolvePrincipal adapts [SessionManager.ValidateSession] to the
// authentication middleware.
func (manager *SessionManager) ResolvePrincipal(context context.Context, token string) (*sec.Principal, error) {
	summary, err := manager.ValidateSession(context, token)
	if err != nil || summary == nil {
		return nil, err
	}
	return summary.Principal(), nil
}

/*
Logout deletes the session matching token. Unknown tokens are ignored.
*/
func (manager *SessionManager) Logout(context context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := manager.sessions.DeleteByTokenHash(context, sec.HashToken(token)); err != nil {
		return fmt.Errorf("auth_session_logout_failed: %w", err)
	}
	return nil
}

// RevokeAll deletes every session of userID (password reset, account deletion).
func (manager *SessionManager) RevokeAll(context context.Context, userID int64) error {
	if err := manager.sessions.DeleteByUser(context, userID); err != nil {
		return fmt.Errorf("auth_session_revoke_all_failed: %w", err)
	}
	return nil
}

// # Background Sweep

// Sweep deletes expired sessions once and returns how many were removed.
func (manager *SessionManager) Sweep(context context.Context) (int64, error) {
	return manager.sessions.DeleteExpired(context, manager.now())
}

// RunSweeper calls [SessionManager.Sweep] every interval until ctx is done.
// The inline sweep of ValidateSession keeps validation correct on its own;
// this keeps the table small when nobody is validating.
func (manager *SessionManager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed, err := manager.Sweep(ctx)
			if err != nil {
				manager.logger.Error("session_sweep_failed", slog.Any("error", err))
				continue
			}
			if removed > 0 {
				manager.logger.Info("session_sweep_completed", slog.Int64("removed", removed))
			}
		case <-ctx.Done():
			return
		}
	}
}
