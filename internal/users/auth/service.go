// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taibuivan/whiphelmets/internal/events"
	"github.com/taibuivan/whiphelmets/internal/platform/apperr"
	"github.com/taibuivan/whiphelmets/internal/platform/sec"
	"github.com/taibuivan/whiphelmets/internal/platform/validate"
	"github.com/taibuivan/whiphelmets/pkg/pagination"
)

// # Contracts & Types

// PasswordHasher turns passwords into digests and checks candidates.
// Satisfied by [*sec.PasswordHasher].
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
	NeedsRehash(digest string) bool
}

// Settings toggles optional account policies.
type Settings struct {
	// RequireVerifiedEmail rejects logins until the email is confirmed.
	RequireVerifiedEmail bool
}

// Service implements account use cases on top of the [SessionManager].
type Service struct {
	users        UserRepository
	sessions     *SessionManager
	hasher       PasswordHasher
	resetTokens  OneTimeTokenRepository
	verifyTokens OneTimeTokenRepository
	publisher    events.Publisher
	settings     Settings
	logger       *slog.Logger
}

// NewService constructs a new [Service] with its dependencies.
func NewService(
	users UserRepository,
	sessions *SessionManager,
	hasher PasswordHasher,
	resetTokens OneTimeTokenRepository,
	verifyTokens OneTimeTokenRepository,
	publisher events.Publisher,
	settings Settings,
	logger *slog.Logger,
) *Service {
	return &Service{
		users:        users,
		sessions:     sessions,
		hasher:       hasher,
		resetTokens:  resetTokens,
		verifyTokens: verifyTokens,
		publisher:    publisher,
		settings:     settings,
		logger:       logger,
	}
}

// # Registration Flow

// RegisterInput holds the data required to open an account.
type RegisterInput struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	NationalID string `json:"national_id"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	PostalCode string `json:"postal_code"`
}

func (input *RegisterInput) normalize() {
	for _, field := range []*string{&input.Username, &input.Email, &input.FirstName, &input.LastName, &input.NationalID, &input.Phone, &input.Address, &input.PostalCode} {
		*field = strings.TrimSpace(*field)
	}
}

func (input RegisterInput) validate() error {
	validator := &validate.Validator{}
	validator.Required(FieldUsername, input.Username).
		MinLen(FieldUsername, input.Username, 3).
		MaxLen(FieldUsername, input.Username, 50).
		Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		MinLen(FieldPassword, input.Password, MinPasswordLength).
		MaxLen(FieldPassword, input.Password, 128)

	ProfilePatch{
		FirstName:  &input.FirstName,
		LastName:   &input.LastName,
		NationalID: &input.NationalID,
		Phone:      &input.Phone,
		Address:    &input.Address,
		PostalCode: &input.PostalCode,
	}.validate(validator)

	return validator.Err()
}

/*
Register validates, hashes, and persists a new customer account.

Description: Field formats are checked first; then every identifying field
(username, email, national ID, phone) is checked for collisions so the
customer learns exactly which one is taken. A verification token is stored
and a welcome event published; both are best effort.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *User: Created entity
  - error: ValidationError, Conflict or storage errors
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*User, error) {
	input.normalize()
	if err := input.validate(); err != nil {
		return nil, err
	}
	return service.createAccount(context, input, sec.RoleUser, false)
}

func (service *Service) createAccount(context context.Context, input RegisterInput, role sec.UserRole, verified bool) (*User, error) {
	field, err := service.users.FindConflict(context, IdentityQuery{
		Username:   input.Username,
		Email:      input.Email,
		NationalID: input.NationalID,
		Phone:      input.Phone,
	}, 0)
	if err != nil {
		return nil, err
	}
	if field != "" {
		return nil, conflictFor(field)
	}

	digest, err := service.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	user := &User{
		Username:      input.Username,
		Email:         input.Email,
		PasswordHash:  digest,
		Role:          role,
		FirstName:     input.FirstName,
		LastName:      input.LastName,
		NationalID:    input.NationalID,
		Phone:         input.Phone,
		Address:       input.Address,
		PostalCode:    input.PostalCode,
		EmailVerified: verified,
	}

	// A concurrent registration can still win the race; Create maps the
	// unique violation to the same conflict.
	if err := service.users.Create(context, user); err != nil {
		return nil, err
	}

	service.logger.InfoContext(context, "user_registered",
		slog.Int64("user_id", user.ID),
		slog.String("role", string(role)),
	)

	event := events.UserRegistered{
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
	}
	if !verified {
		if token, err := sec.GenerateSecureToken(OneTimeTokenLength); err == nil {
			if err := service.verifyTokens.Set(context, token, user.ID, VerificationTokenTTL); err == nil {
				event.VerificationToken = token
			} else {
				service.logger.WarnContext(context, "verification_token_store_failed", slog.Any("error", err))
			}
		}
	}
	service.publish(context, events.TypeUserRegistered, event)

	return user, nil
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Login    string // Username or email
	Password string
	Meta     ClientMeta
}

// LoginResult is a freshly established session.
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *UserSummary `json:"user"`
}

/*
Login validates credentials and opens a new session.

Description: Unknown accounts and wrong passwords produce the same 401. A
digest in an outdated format is upgraded in place after a successful check.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *LoginResult: Token and identity
  - error: Unauthorized, Forbidden (unverified email when required) or internal failures
*/
func (service *Service) Login(context context.Context, input LoginInput) (*LoginResult, error) {
	login := strings.TrimSpace(input.Login)
	if login == "" || input.Password == "" {
		return nil, apperr.Unauthorized("Invalid login credentials")
	}

	user, err := service.users.FindByLogin(context, login)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperr.Unauthorized("Invalid login credentials")
		}
		return nil, err
	}

	if !service.hasher.Verify(input.Password, user.PasswordHash) {
		service.logger.InfoContext(context, "login_failed", slog.Int64("user_id", user.ID))
		return nil, apperr.Unauthorized("Invalid login credentials")
	}

	if service.settings.RequireVerifiedEmail && !user.EmailVerified {
		return nil, apperr.Forbidden("Email address has not been verified")
	}

	if service.hasher.NeedsRehash(user.PasswordHash) {
		service.upgradeDigest(context, user.ID, input.Password)
	}

	token, session, err := service.sessions.CreateSession(context, user.ID, input.Meta)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		User:      user.Summary(),
	}, nil
}

// upgradeDigest rewrites a legacy digest. Failure leaves the old digest in
// place, which still verifies.
func (service *Service) upgradeDigest(context context.Context, userID int64, password string) {
	digest, err := service.hasher.Hash(password)
	if err == nil {
		err = service.users.UpdatePassword(context, userID, digest)
	}
	if err != nil {
		service.logger.WarnContext(context, "password_rehash_failed",
			slog.Int64("user_id", userID),
			slog.Any("error", err),
		)
		return
	}
	service.logger.InfoContext(context, "password_rehashed", slog.Int64("user_id", userID))
}

// # Password Recovery

/*
RequestPasswordReset issues a reset token for the account owning email.

Description: Unknown emails succeed silently so the endpoint cannot be used
to enumerate accounts. The token reaches the customer through the
notification pipeline only.
*/
func (service *Service) RequestPasswordReset(context context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := (&validate.Validator{}).Email(FieldEmail, email).Err(); err != nil {
		return err
	}

	user, err := service.users.FindByLogin(context, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}
	if !strings.EqualFold(user.Email, email) {
		return nil
	}

	token, err := sec.GenerateSecureToken(OneTimeTokenLength)
	if err != nil {
		return fmt.Errorf("auth_service_generate_reset_token_failed: %w", err)
	}
	if err := service.resetTokens.Set(context, token, user.ID, ResetTokenTTL); err != nil {
		return fmt.Errorf("auth_service_save_reset_token_failed: %w", err)
	}

	service.publish(context, events.TypePasswordResetRequested, events.PasswordResetRequested{
		UserID:     user.ID,
		Email:      user.Email,
		FirstName:  user.FirstName,
		ResetToken: token,
	})
	return nil
}

/*
ResetPassword redeems a reset token, stores the new password and ends every
session of the account.
*/
func (service *Service) ResetPassword(context context.Context, token, newPassword string) error {
	validator := &validate.Validator{}
	validator.Required(FieldToken, token).
		MinLen(FieldNewPassword, newPassword, MinPasswordLength).
		MaxLen(FieldNewPassword, newPassword, 128)
	if err := validator.Err(); err != nil {
		return err
	}

	userID, err := service.resetTokens.Consume(context, token)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return apperr.Unprocessable("Reset token is invalid or expired")
		}
		return err
	}

	digest, err := service.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_reset_password_hash_failed: %w", err)
	}
	if err := service.users.UpdatePassword(context, userID, digest); err != nil {
		return err
	}

	return service.sessions.RevokeAll(context, userID)
}

/*
ChangePassword lets an authenticated customer replace their password after
confirming the current one. Other sessions stay open.
*/
func (service *Service) ChangePassword(context context.Context, userID int64, currentPassword, newPassword string) error {
	validator := &validate.Validator{}
	validator.Required(FieldCurrentPassword, currentPassword).
		MinLen(FieldNewPassword, newPassword, MinPasswordLength).
		MaxLen(FieldNewPassword, newPassword, 128)
	if err := validator.Err(); err != nil {
		return err
	}

	user, err := service.users.FindByID(context, userID)
	if err != nil {
		return err
	}
	if !service.hasher.Verify(currentPassword, user.PasswordHash) {
		return apperr.Unauthorized("Current password is incorrect")
	}

	digest, err := service.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_change_password_hash_failed: %w", err)
	}
	return service.users.UpdatePassword(context, userID, digest)
}

/*
VerifyEmail redeems a verification token.
*/
func (service *Service) VerifyEmail(context context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return validate.RequiredError(FieldToken, "This field is required")
	}

	userID, err := service.verifyTokens.Consume(context, token)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return apperr.Unprocessable("Verification token is invalid or expired")
		}
		return err
	}
	return service.users.MarkVerified(context, userID)
}

// # Profile

// GetProfile returns the caller's own account.
func (service *Service) GetProfile(context context.Context, userID int64) (*User, error) {
	return service.users.FindByID(context, userID)
}

/*
UpdateProfile applies a partial update to the caller's own account.
Identifying fields are checked for collisions with other accounts first.
*/
func (service *Service) UpdateProfile(context context.Context, userID int64, patch ProfilePatch) (*User, error) {
	patch.normalize()

	validator := &validate.Validator{}
	patch.validate(validator)
	if err := validator.Err(); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return service.users.FindByID(context, userID)
	}

	if err := service.ensureUnique(context, identityFromPatch(AdminPatch{ProfilePatch: patch}), userID); err != nil {
		return nil, err
	}
	return service.users.UpdateProfile(context, userID, patch)
}

func (service *Service) ensureUnique(context context.Context, identity IdentityQuery, excludeID int64) error {
	field, err := service.users.FindConflict(context, identity, excludeID)
	if err != nil {
		return err
	}
	if field != "" {
		return conflictFor(field)
	}
	return nil
}

// # Administration

// ListUsers returns one page of accounts for staff.
func (service *Service) ListUsers(context context.Context, page pagination.Params) ([]*User, int, error) {
	return service.users.List(context, page)
}

// AdminCreateInput creates an account on behalf of a customer or a colleague.
type AdminCreateInput struct {
	RegisterInput
	Role sec.UserRole `json:"role"`
}

/*
CreateUser opens an account with an explicit role. Staff-created accounts
are considered verified.
*/
func (service *Service) CreateUser(context context.Context, input AdminCreateInput) (*User, error) {
	input.normalize()
	if input.Role == "" {
		input.Role = sec.RoleUser
	}

	if err := input.RegisterInput.validate(); err != nil {
		return nil, err
	}
	if !input.Role.Valid() {
		return nil, validate.RequiredError(FieldRole, "Must be one of: user, admin")
	}

	return service.createAccount(context, input.RegisterInput, input.Role, true)
}

/*
UpdateUser applies a staff patch to another account.

Description: Staff cannot change their own role, which would risk leaving
the store without an administrator.
*/
func (service *Service) UpdateUser(context context.Context, actor *sec.Principal, userID int64, patch AdminPatch) (*User, error) {
	patch.normalize()

	validator := &validate.Validator{}
	patch.validate(validator)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	if patch.Role != nil && actor != nil && actor.UserID == userID && *patch.Role != actor.Role {
		return nil, apperr.Unprocessable("You cannot change your own role")
	}
	if patch.IsEmpty() {
		return service.users.FindByID(context, userID)
	}

	if err := service.ensureUnique(context, identityFromPatch(patch), userID); err != nil {
		return nil, err
	}

	user, err := service.users.UpdateByAdmin(context, userID, patch)
	if err != nil {
		return nil, err
	}

	service.logger.InfoContext(context, "user_updated_by_admin", slog.Int64("user_id", userID))
	return user, nil
}

/*
DeleteUser removes an account and, through the cascade, its sessions.
Staff cannot delete their own account.
*/
func (service *Service) DeleteUser(context context.Context, actor *sec.Principal, userID int64) error {
	if actor != nil && actor.UserID == userID {
		return apperr.Unprocessable("You cannot delete your own account")
	}

	if err := service.sessions.RevokeAll(context, userID); err != nil {
		return err
	}
	if err := service.users.Delete(context, userID); err != nil {
		return err
	}

	service.logger.InfoContext(context, "user_deleted", slog.Int64("user_id", userID))
	return nil
}

// # Helpers

func (service *Service) publish(context context.Context, eventType events.Type, payload any) {
	if err := service.publisher.Publish(context, eventType, payload); err != nil {
		service.logger.WarnContext(context, "event_publish_failed",
			slog.String("type", string(eventType)),
			slog.Any("error", err),
		)
	}
}
