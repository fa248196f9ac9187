// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/whiphelmets/internal/platform/apperr"
	"github.com/taibuivan/whiphelmets/internal/platform/database/schema"
	"github.com/taibuivan/whiphelmets/internal/platform/dberr"
	"github.com/taibuivan/whiphelmets/internal/platform/postgres"
	"github.com/taibuivan/whiphelmets/pkg/pagination"
)

// # User Repository

// userColumns is the projection scanned by [scanUser].
var userColumns = strings.Join(schema.UserAccount.Columns(), ", ")

// constraintFields maps unique constraints of users.account to the field
// reported in the conflict message.
var constraintFields = map[string]string{
	"account_username_key":    FieldUsername,
	"account_email_key":       FieldEmail,
	"account_national_id_key": FieldNationalID,
	"account_phone_key":       FieldPhone,
}

// PostgresUserRepository implements the UserRepository interface using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.FirstName,
		&user.LastName,
		&user.NationalID,
		&user.Phone,
		&user.Address,
		&user.PostalCode,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// wrapUserWriteError converts a unique violation into a conflict naming the field.
func wrapUserWriteError(err error, action string) error {
	if dberr.IsUniqueViolation(err) {
		field, ok := constraintFields[dberr.ConstraintName(err)]
		if !ok {
			field = "account"
		}
		return conflictFor(field)
	}
	return fmt.Errorf("postgres_user_repo_%s_failed: %w", action, err)
}

/*
Create persists a new user record into the users.account table.

Parameters:
  - context: context.Context
  - user: *User (ID and timestamps are filled in)

Returns:
  - error: Conflict on duplicate identity, or connectivity errors
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	const query = `
		INSERT INTO users.account (
			username, email, password_hash, role, first_name, last_name,
			national_id, phone, address, postal_code, email_verified
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	err := repository.pool.QueryRow(context, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.FirstName,
		user.LastName,
		user.NationalID,
		user.Phone,
		user.Address,
		user.PostalCode,
		user.EmailVerified,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return wrapUserWriteError(err, "create")
	}
	return nil
}

/*
FindByID retrieves a user record by its primary key.
*/
func (repository *PostgresUserRepository) FindByID(context context.Context, id int64) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users.account WHERE id = $1`

	user, err := scanUser(repository.pool.QueryRow(context, query, id))
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("postgres_user_repo_find_by_id_failed: %w", err)
	}
	return user, err
}

/*
FindByLogin retrieves a user by username, or by email ignoring case.

Description: Username matches take precedence so a username that looks like
somebody else's email cannot shadow it.
*/
func (repository *PostgresUserRepository) FindByLogin(context context.Context, login string) (*User, error) {
	query := `SELECT ` + userColumns + `
		FROM users.account
		WHERE username = $1 OR lower(email) = lower($1)
		ORDER BY (username = $1) DESC
		LIMIT 1`

	user, err := scanUser(repository.pool.QueryRow(context, query, login))
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("postgres_user_repo_find_by_login_failed: %w", err)
	}
	return user, err
}

/*
FindConflict reports the first field of identity already taken by
another account, checking username, email, national ID and phone in that order.
*/
func (repository *PostgresUserRepository) FindConflict(context context.Context, identity IdentityQuery, excludeID int64) (string, error) {
	if identity.IsEmpty() {
		return "", nil
	}

	// Each row reports its highest-priority clash; MIN picks the overall one.
	const query = `
		SELECT MIN(CASE
			WHEN $1 <> '' AND username = $1 THEN 1
			WHEN $2 <> '' AND lower(email) = lower($2) THEN 2
			WHEN $3 <> '' AND national_id = $3 THEN 3
			WHEN $4 <> '' AND phone = $4 THEN 4
		END)
		FROM users.account
		WHERE id <> $5`

	var priority *int
	err := repository.pool.QueryRow(context, query,
		identity.Username, identity.Email, identity.NationalID, identity.Phone, excludeID,
	).Scan(&priority)
	if err != nil {
		return "", fmt.Errorf("postgres_user_repo_find_conflict_failed: %w", err)
	}
	if priority == nil {
		return "", nil
	}

	fields := []string{FieldUsername, FieldEmail, FieldNationalID, FieldPhone}
	return fields[*priority-1], nil
}

// profileAssignments maps each provided patch field to its column.
func profileAssignments(patch ProfilePatch) *postgres.Assignments {
	assignments := &postgres.Assignments{}
	if patch.FirstName != nil {
		assignments.Set(schema.UserAccount.FirstName, *patch.FirstName)
	}
	if patch.LastName != nil {
		assignments.Set(schema.UserAccount.LastName, *patch.LastName)
	}
	if patch.Email != nil {
		assignments.Set(schema.UserAccount.Email, *patch.Email)
		assignments.SetRaw(schema.UserAccount.EmailVerified, "FALSE")
	}
	if patch.NationalID != nil {
		assignments.Set(schema.UserAccount.NationalID, *patch.NationalID)
	}
	if patch.Phone != nil {
		assignments.Set(schema.UserAccount.Phone, *patch.Phone)
	}
	if patch.Address != nil {
		assignments.Set(schema.UserAccount.Address, *patch.Address)
	}
	if patch.PostalCode != nil {
		assignments.Set(schema.UserAccount.PostalCode, *patch.PostalCode)
	}
	return assignments
}

func (repository *PostgresUserRepository) applyPatch(context context.Context, id int64, assignments *postgres.Assignments, action string) (*User, error) {
	if assignments.Len() == 0 {
		return repository.FindByID(context, id)
	}
	assignments.SetRaw(schema.UserAccount.UpdatedAt, "NOW()")

	query, args := assignments.Build(schema.UserAccount.Table, schema.UserAccount.ID, id, userColumns)
	user, err := scanUser(repository.pool.QueryRow(context, query, args...))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, wrapUserWriteError(err, action)
	}
	return user, nil
}

/*
UpdateProfile applies the provided profile fields. Changing the email resets
its verification flag.
*/
func (repository *PostgresUserRepository) UpdateProfile(context context.Context, id int64, patch ProfilePatch) (*User, error) {
	return repository.applyPatch(context, id, profileAssignments(patch), "update_profile")
}

/*
UpdateByAdmin applies a staff patch (profile fields, username and role).
*/
func (repository *PostgresUserRepository) UpdateByAdmin(context context.Context, id int64, patch AdminPatch) (*User, error) {
	assignments := profileAssignments(patch.ProfilePatch)
	if patch.Username != nil {
		assignments.Set(schema.UserAccount.Username, *patch.Username)
	}
	if patch.Role != nil {
		assignments.Set(schema.UserAccount.Role, *patch.Role)
	}
	return repository.applyPatch(context, id, assignments, "update_by_admin")
}

/*
UpdatePassword updates only the password digest for a specific user.
*/
func (repository *PostgresUserRepository) UpdatePassword(context context.Context, id int64, digest string) error {
	const query = `UPDATE users.account SET password_hash = $2, updated_at = NOW() WHERE id = $1`

	result, err := repository.pool.Exec(context, query, id, digest)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_update_password_failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

/*
MarkVerified sets email_verified for the account.
*/
func (repository *PostgresUserRepository) MarkVerified(context context.Context, id int64) error {
	const query = `UPDATE users.account SET email_verified = TRUE, updated_at = NOW() WHERE id = $1`

	result, err := repository.pool.Exec(context, query, id)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_mark_verified_failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

/*
List returns a page of accounts ordered by creation, newest first.
*/
func (repository *PostgresUserRepository) List(context context.Context, page pagination.Params) ([]*User, int, error) {
	var total int
	if err := repository.pool.QueryRow(context, `SELECT COUNT(*) FROM users.account`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres_user_repo_count_failed: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users.account ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`
	rows, err := repository.pool.Query(context, query, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_user_repo_list_failed: %w", err)
	}
	defer rows.Close()

	users := make([]*User, 0, page.Limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres_user_repo_list_scan_failed: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres_user_repo_list_failed: %w", err)
	}

	return users, total, nil
}

/*
Delete removes the account row. Sessions go with it (ON DELETE CASCADE);
orders keep their contact fields and lose the owner reference.
*/
func (repository *PostgresUserRepository) Delete(context context.Context, id int64) error {
	result, err := repository.pool.Exec(context, `DELETE FROM users.account WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_delete_failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// # Session Repository

// sessionInsertColumns lists every users.session column except the serial id.
var sessionInsertColumns = strings.Join(schema.UserSession.Columns()[1:], ", ")

// PostgresSessionRepository implements the SessionRepository interface using pgx.
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new PostgreSQL implementation of the SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

/*
Create persists a new session row.
*/
func (repository *PostgresSessionRepository) Create(context context.Context, session *Session) error {
	query := `
		INSERT INTO ` + schema.UserSession.Table + ` (` + sessionInsertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + schema.UserSession.ID

	err := repository.pool.QueryRow(context, query,
		session.UserID,
		session.TokenHash,
		session.UserAgent,
		session.IPAddress,
		session.CreatedAt,
		session.ExpiresAt,
	).Scan(&session.ID)

	if err != nil {
		return dberr.Wrap(err, "creating the session")
	}
	return nil
}

/*
FindSummaryByTokenHash joins a live session to its owner.
*/
func (repository *PostgresSessionRepository) FindSummaryByTokenHash(context context.Context, tokenHash string, now time.Time) (*UserSummary, error) {
	const query = `
		SELECT a.id, a.username, a.role, a.first_name, a.last_name, a.email
		FROM users.session s
		JOIN users.account a ON a.id = s.user_id
		WHERE s.token_hash = $1 AND s.expires_at > $2`

	summary := &UserSummary{}
	err := repository.pool.QueryRow(context, query, tokenHash, now).Scan(
		&summary.ID,
		&summary.Username,
		&summary.Role,
		&summary.FirstName,
		&summary.LastName,
		&summary.Email,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("postgres_session_repo_find_failed: %w", err)
	}
	return summary, nil
}

/*
DeleteByTokenHash removes one session. A missing row is not an error.
*/
func (repository *PostgresSessionRepository) DeleteByTokenHash(context context.Context, tokenHash string) error {
	if _, err := repository.pool.Exec(context, `DELETE FROM `+schema.UserSession.Table+` WHERE token_hash = $1`, tokenHash); err != nil {
		return fmt.Errorf("postgres_session_repo_delete_failed: %w", err)
	}
	return nil
}

/*
DeleteByUser removes every session of a user.
*/
func (repository *PostgresSessionRepository) DeleteByUser(context context.Context, userID int64) error {
	if _, err := repository.pool.Exec(context, `DELETE FROM `+schema.UserSession.Table+` WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("postgres_session_repo_delete_by_user_failed: %w", err)
	}
	return nil
}

/*
DeleteExpired removes sessions whose expiry is before now.
*/
func (repository *PostgresSessionRepository) DeleteExpired(context context.Context, now time.Time) (int64, error) {
	result, err := repository.pool.Exec(context, `DELETE FROM `+schema.UserSession.Table+` WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("postgres_session_repo_delete_expired_failed: %w", err)
	}
	return result.RowsAffected(), nil
}

// conflictFor builds the user-facing conflict for a taken identity field.
func conflictFor(field string) *apperr.AppError {
	messages := map[string]string{
		FieldUsername:   "Username is already taken",
		FieldEmail:      "Email is already registered",
		FieldNationalID: "National ID is already registered",
		FieldPhone:      "Phone number is already registered",
	}
	message, ok := messages[field]
	if !ok {
		message = "Account already exists"
	}
	ae := apperr.Conflict(message)
	ae.Details = []apperr.FieldError{{Field: field, Message: message}}
	return ae
}
