// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/taibuivan/whiphelmets/internal/events"
	"github.com/taibuivan/whiphelmets/internal/platform/sec"
	"github.com/taibuivan/whiphelmets/internal/users/auth"
	"github.com/taibuivan/whiphelmets/pkg/pagination"
)

// # In-Memory Stores

type memoryStore struct {
	mu       sync.Mutex
	users    map[int64]*auth.User
	sessions map[int64]*auth.Session
	nextID   int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: map[int64]*auth.User{}, sessions: map[int64]*auth.Session{}}
}

// sessionRepo and userRepo share one memoryStore so the session lookup can
// join the owning user.
type sessionRepo struct{ *memoryStore }
type userRepo struct{ *memoryStore }

func (store sessionRepo) Create(_ context.Context, session *auth.Session) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.nextID++
	session.ID = store.nextID
	copied := *session
	store.sessions[session.ID] = &copied
	return nil
}

func (store sessionRepo) FindSummaryByTokenHash(_ context.Context, tokenHash string, now time.Time) (*auth.UserSummary, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, session := range store.sessions {
		if session.TokenHash == tokenHash && session.Live(now) {
			if user, ok := store.users[session.UserID]; ok {
				return user.Summary(), nil
			}
			return &auth.UserSummary{ID: session.UserID}, nil
		}
	}
	return nil, auth.ErrSessionNotFound
}

func (store sessionRepo) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	for id, session := range store.sessions {
		if session.TokenHash == tokenHash {
			delete(store.sessions, id)
		}
	}
	return nil
}

func (store sessionRepo) DeleteByUser(_ context.Context, userID int64) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	for id, session := range store.sessions {
		if session.UserID == userID {
			delete(store.sessions, id)
		}
	}
	return nil
}

func (store sessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	var removed int64
	for id, session := range store.sessions {
		if session.ExpiresAt.Before(now) {
			delete(store.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// hasTokenHash reports whether a row for tokenHash is still stored.
func (store sessionRepo) hasTokenHash(tokenHash string) bool {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, session := range store.sessions {
		if session.TokenHash == tokenHash {
			return true
		}
	}
	return false
}

// expireAll forces every stored session into the past.
func (store sessionRepo) expireAll(at time.Time) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, session := range store.sessions {
		session.ExpiresAt = at
	}
}

func (store sessionRepo) count() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.sessions)
}

func (store userRepo) FindByID(_ context.Context, id int64) (*auth.User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if user, ok := store.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, auth.ErrUserNotFound
}

func (store userRepo) FindByLogin(_ context.Context, login string) (*auth.User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, user := range store.users {
		if user.Username == login || strings.EqualFold(user.Email, login) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (store userRepo) FindConflict(_ context.Context, identity auth.IdentityQuery, excludeID int64) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	checks := []struct {
		field string
		match func(*auth.User) bool
	}{
		{auth.FieldUsername, func(u *auth.User) bool { return identity.Username != "" && u.Username == identity.Username }},
		{auth.FieldEmail, func(u *auth.User) bool { return identity.Email != "" && strings.EqualFold(u.Email, identity.Email) }},
		{auth.FieldNationalID, func(u *auth.User) bool { return identity.NationalID != "" && u.NationalID == identity.NationalID }},
		{auth.FieldPhone, func(u *auth.User) bool { return identity.Phone != "" && u.Phone == identity.Phone }},
	}
	for _, check := range checks {
		for _, user := range store.users {
			if user.ID != excludeID && check.match(user) {
				return check.field, nil
			}
		}
	}
	return "", nil
}

func (store userRepo) Create(_ context.Context, user *auth.User) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.nextID++
	user.ID = store.nextID
	copied := *user
	store.users[user.ID] = &copied
	return nil
}

func (store userRepo) mutate(id int64, apply func(*auth.User)) (*auth.User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	user, ok := store.users[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	apply(user)
	copied := *user
	return &copied, nil
}

func applyProfile(user *auth.User, patch auth.ProfilePatch) {
	set := func(target *string, value *string) {
		if value != nil {
			*target = *value
		}
	}
	set(&user.FirstName, patch.FirstName)
	set(&user.LastName, patch.LastName)
	set(&user.Email, patch.Email)
	set(&user.NationalID, patch.NationalID)
	set(&user.Phone, patch.Phone)
	set(&user.Address, patch.Address)
	set(&user.PostalCode, patch.PostalCode)
}

func (store userRepo) UpdateProfile(_ context.Context, id int64, patch auth.ProfilePatch) (*auth.User, error) {
	return store.mutate(id, func(user *auth.User) { applyProfile(user, patch) })
}

func (store userRepo) UpdateByAdmin(_ context.Context, id int64, patch auth.AdminPatch) (*auth.User, error) {
	return store.mutate(id, func(user *auth.User) {
		applyProfile(user, patch.ProfilePatch)
		if patch.Username != nil {
			user.Username = *patch.Username
		}
		if patch.Role != nil {
			user.Role = *patch.Role
		}
	})
}

func (store userRepo) UpdatePassword(_ context.Context, id int64, digest string) error {
	_, err := store.mutate(id, func(user *auth.User) { user.PasswordHash = digest })
	return err
}

func (store userRepo) MarkVerified(_ context.Context, id int64) error {
	_, err := store.mutate(id, func(user *auth.User) { user.EmailVerified = true })
	return err
}

func (store userRepo) List(_ context.Context, _ pagination.Params) ([]*auth.User, int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	users := make([]*auth.User, 0, len(store.users))
	for _, user := range store.users {
		copied := *user
		users = append(users, &copied)
	}
	return users, len(users), nil
}

func (store userRepo) Delete(_ context.Context, id int64) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.users[id]; !ok {
		return auth.ErrUserNotFound
	}
	delete(store.users, id)
	return nil
}

// tokenRepo is a single-use token store.
type tokenRepo struct {
	mu     sync.Mutex
	tokens map[string]int64
}

func newTokenRepo() *tokenRepo { return &tokenRepo{tokens: map[string]int64{}} }

func (repo *tokenRepo) Set(_ context.Context, token string, userID int64, _ time.Duration) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.tokens[token] = userID
	return nil
}

func (repo *tokenRepo) Consume(_ context.Context, token string) (int64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	userID, ok := repo.tokens[token]
	if !ok {
		return 0, auth.ErrTokenNotFound
	}
	delete(repo.tokens, token)
	return userID, nil
}

// recordingPublisher keeps published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

type published struct {
	Type    events.Type
	Payload any
}

func (publisher *recordingPublisher) Publish(_ context.Context, eventType events.Type, payload any) error {
	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	publisher.events = append(publisher.events, published{Type: eventType, Payload: payload})
	return nil
}

func (publisher *recordingPublisher) last(eventType events.Type) (any, bool) {
	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	for i := len(publisher.events) - 1; i >= 0; i-- {
		if publisher.events[i].Type == eventType {
			return publisher.events[i].Payload, true
		}
	}
	return nil, false
}

// # Fixtures

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fastHasher keeps argon2id cheap enough for unit tests.
func fastHasher() *sec.PasswordHasher {
	return sec.NewPasswordHasher(sec.Argon2Params{
		Memory:      1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
}
