// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/whiphelmets/internal/platform/sec"
	"github.com/taibuivan/whiphelmets/internal/users/auth"
)

func newSessionFixture(t *testing.T) (*auth.SessionManager, sessionRepo, *clock) {
	t.Helper()
	store := newMemoryStore()
	store.users[7] = &auth.User{ID: 7, Username: "rider", Role: sec.RoleUser, Email: "rider@example.com"}
	sessions := sessionRepo{store}
	fakeClock := newClock()
	manager := auth.NewSessionManager(sessions, 24*time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil))).WithClock(fakeClock.Now)
	return manager, sessions, fakeClock
}

/*
TestSessionManager_Lifecycle walks a token from creation, through expiry, to
removal from storage.
*/
func TestSessionManager_Lifecycle(t *testing.T) {
	manager, sessions, fakeClock := newSessionFixture(t)
	ctx := context.Background()

	token, session, err := manager.CreateSession(ctx, 7, auth.ClientMeta{UserAgent: "test", IPAddress: "127.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, fakeClock.Now().Add(24*time.Hour), session.ExpiresAt)
	assert.NotContains(t, session.TokenHash, token, "raw token must not be stored")

	summary, err := manager.ValidateSession(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, int64(7), summary.ID)
	assert.Equal(t, "rider", summary.Username)

	sessions.expireAll(fakeClock.Now().Add(-time.Second))

	summary, err = manager.ValidateSession(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, summary)
	assert.False(t, sessions.hasTokenHash(sec.HashToken(token)), "expired row must be swept")
}

/*
TestSessionManager_Expiry verifies validity right before and after the TTL.
*/
func TestSessionManager_Expiry(t *testing.T) {
	manager, _, fakeClock := newSessionFixture(t)
	ctx := context.Background()

	token, _, err := manager.CreateSession(ctx, 7, auth.ClientMeta{})
	require.NoError(t, err)

	fakeClock.Advance(24*time.Hour - time.Second)
	summary, err := manager.ValidateSession(ctx, token)
	require.NoError(t, err)
	assert.NotNil(t, summary)

	fakeClock.Advance(2 * time.Second)
	summary, err = manager.ValidateSession(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, summary)
}

/*
TestSessionManager_ConcurrentSessions verifies that tokens are distinct and
that logging out one leaves the other valid.
*/
func TestSessionManager_ConcurrentSessions(t *testing.T) {
	manager, _, _ := newSessionFixture(t)
	ctx := context.Background()

	first, _, err := manager.CreateSession(ctx, 7, auth.ClientMeta{})
	require.NoError(t, err)
	second, _, err := manager.CreateSession(ctx, 7, auth.ClientMeta{})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	require.NoError(t, manager.Logout(ctx, first))

	summary, err := manager.ValidateSession(ctx, first)
	require.NoError(t, err)
	assert.Nil(t, summary)

	summary, err = manager.ValidateSession(ctx, second)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, int64(7), summary.ID)
}

/*
TestSessionManager_InvalidTokens verifies that unknown and malformed tokens
are indistinguishable from expired ones.
*/
func TestSessionManager_InvalidTokens(t *testing.T) {
	manager, _, _ := newSessionFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"unknown", "bm90LWEtcmVhbC10b2tlbg"},
		{"garbage", "%%%"},
		{"oversized", strings.Repeat("a", 4096)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, err := manager.ValidateSession(ctx, tt.token)
			assert.NoError(t, err)
			assert.Nil(t, summary)

			principal, err := manager.ResolvePrincipal(ctx, tt.token)
			assert.NoError(t, err)
			assert.Nil(t, principal)
		})
	}
}

/*
TestSessionManager_LogoutIsIdempotent verifies that repeated and unknown
logouts succeed.
*/
func TestSessionManager_LogoutIsIdempotent(t *testing.T) {
	manager, sessions, _ := newSessionFixture(t)
	ctx := context.Background()

	token, _, err := manager.CreateSession(ctx, 7, auth.ClientMeta{})
	require.NoError(t, err)

	assert.NoError(t, manager.Logout(ctx, token))
	assert.NoError(t, manager.Logout(ctx, token))
	assert.NoError(t, manager.Logout(ctx, "never-issued"))
	assert.Equal(t, 0, sessions.count())
}

/*
TestSessionManager_Sweep verifies the background sweep removes expired rows only.
*/
func TestSessionManager_Sweep(t *testing.T) {
	manager, sessions, fakeClock := newSessionFixture(t)
	ctx := context.Background()

	_, _, err := manager.CreateSession(ctx, 7, auth.ClientMeta{})
	require.NoError(t, err)
	fakeClock.Advance(12 * time.Hour)
	_, _, err = manager.CreateSession(ctx, 7, auth.ClientMeta{})
	require.NoError(t, err)

	fakeClock.Advance(13 * time.Hour)
	removed, err := manager.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, 1, sessions.count())
}

/*
TestSessionManager_RevokeAll verifies that every session of the user is removed.
*/
func TestSessionManager_RevokeAll(t *testing.T) {
	manager, sessions, _ := newSessionFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := manager.CreateSession(ctx, 7, auth.ClientMeta{})
		require.NoError(t, err)
	}

	require.NoError(t, manager.RevokeAll(ctx, 7))
	assert.Equal(t, 0, sessions.count())
}
