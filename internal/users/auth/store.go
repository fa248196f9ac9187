// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"

	"github.com/taibuivan/whiphelmets/internal/platform/apperr"
	"github.com/taibuivan/whiphelmets/pkg/pagination"
)

var (
	// ErrUserNotFound is returned by [UserRepository] lookups that match no row.
	ErrUserNotFound = apperr.NotFound("User")

	// ErrSessionNotFound is returned by [SessionRepository] lookups that match
	// no live session.
	ErrSessionNotFound = apperr.NotFound("Session")

	// ErrTokenNotFound is returned by [OneTimeTokenRepository.Consume] for absent
	// or expired tokens.
	ErrTokenNotFound = apperr.NotFound("Token")
)

// # User Data Access

// UserRepository defines the data access contract for accounts.
type UserRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: int64

		Returns:
		  - *User: Hydrated entity
		  - error: ErrUserNotFound or database failures
	*/
	FindByID(context context.Context, id int64) (*User, error)

	/*
		FindByLogin returns the account whose username equals login, or whose
		email equals login ignoring case.

		Parameters:
		  - context: context.Context
		  - login: string

		Returns:
		  - *User: Hydrated entity
		  - error: ErrUserNotFound or database failures
	*/
	FindByLogin(context context.Context, login string) (*User, error)

	/*
		FindConflict reports which identifying field of identity is already used
		by an account other than excludeID.

		Parameters:
		  - context: context.Context
		  - identity: IdentityQuery
		  - excludeID: int64 (0 to check against every account)

		Returns:
		  - string: The conflicting field name, or "" when there is none
		  - error: Database failures
	*/
	FindConflict(context context.Context, identity IdentityQuery, excludeID int64) (string, error)

	/*
		Create persists a new account and assigns its ID.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: Conflict on a unique violation, or persistence failures
	*/
	Create(context context.Context, user *User) error

	/*
		UpdateProfile applies a customer profile patch.

		Parameters:
		  - context: context.Context
		  - id: int64
		  - patch: ProfilePatch

		Returns:
		  - *User: The updated account
		  - error: ErrUserNotFound, Conflict or persistence failures
	*/
	UpdateProfile(context context.Context, id int64, patch ProfilePatch) (*User, error)

	/*
		UpdateByAdmin applies a staff patch, including username and role.

		Parameters:
		  - context: context.Context
		  - id: int64
		  - patch: AdminPatch

		Returns:
		  - *User: The updated account
		  - error: ErrUserNotFound, Conflict or persistence failures
	*/
	UpdateByAdmin(context context.Context, id int64, patch AdminPatch) (*User, error)

	/*
		UpdatePassword replaces only the password digest.

		Parameters:
		  - context: context.Context
		  - id: int64
		  - digest: string

		Returns:
		  - error: ErrUserNotFound or persistence failures
	*/
	UpdatePassword(context context.Context, id int64, digest string) error

	/*
		MarkVerified flags the account's email as confirmed.

		Parameters:
		  - context: context.Context
		  - id: int64

		Returns:
		  - error: ErrUserNotFound or persistence failures
	*/
	MarkVerified(context context.Context, id int64) error

	/*
		List returns one page of accounts, newest first, and the total count.

		Parameters:
		  - context: context.Context
		  - page: pagination.Params

		Returns:
		  - []*User: Page of accounts
		  - int: Total number of accounts
		  - error: Database failures
	*/
	List(context context.Context, page pagination.Params) ([]*User, int, error)

	/*
		Delete removes the account. Its sessions cascade.

		Parameters:
		  - context: context.Context
		  - id: int64

		Returns:
		  - error: ErrUserNotFound or persistence failures
	*/
	Delete(context context.Context, id int64) error
}

// # Session Data Access

// SessionRepository defines the data access contract for bearer sessions.
type SessionRepository interface {

	/*
		Create persists a new session and assigns its ID.

		Parameters:
		  - context: context.Context
		  - session: *Session

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, session *Session) error

	/*
		FindSummaryByTokenHash resolves a live session (expires_at > now) to
		the identity of its owner.

		Parameters:
		  - context: context.Context
		  - tokenHash: string
		  - now: time.Time

		Returns:
		  - *UserSummary: Owner identity
		  - error: ErrSessionNotFound or database failures
	*/
	FindSummaryByTokenHash(context context.Context, tokenHash string, now time.Time) (*UserSummary, error)

	/*
		DeleteByTokenHash removes the session matching tokenHash. Deleting a
		missing session is not an error.

		Parameters:
		  - context: context.Context
		  - tokenHash: string

		Returns:
		  - error: Persistence failures
	*/
	DeleteByTokenHash(context context.Context, tokenHash string) error

	/*
		DeleteByUser removes every session of the user.

		Parameters:
		  - context: context.Context
		  - userID: int64

		Returns:
		  - error: Persistence failures
	*/
	DeleteByUser(context context.Context, userID int64) error

	/*
		DeleteExpired removes every session with expires_at < now.

		Parameters:
		  - context: context.Context
		  - now: time.Time

		Returns:
		  - int64: Number of removed sessions
		  - error: Persistence failures
	*/
	DeleteExpired(context context.Context, now time.Time) (int64, error)
}

// # Volatile Data Access

// OneTimeTokenRepository stores single-use tokens (password reset, email
// verification) mapped to a user ID with a TTL.
type OneTimeTokenRepository interface {

	/*
		Set stores token for userID during ttl.

		Parameters:
		  - context: context.Context
		  - token: string
		  - userID: int64
		  - ttl: time.Duration

		Returns:
		  - error: Persistence failures
	*/
	Set(context context.Context, token string, userID int64, ttl time.Duration) error

	/*
		Consume returns the user ID bound to token and deletes it atomically,
		so a token can be redeemed once.

		Parameters:
		  - context: context.Context
		  - token: string

		Returns:
		  - int64: UserID
		  - error: ErrTokenNotFound or connectivity failures
	*/
	Consume(context context.Context, token string) (int64, error)
}
