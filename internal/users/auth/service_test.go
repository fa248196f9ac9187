// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/whiphelmets/internal/events"
	"github.com/taibuivan/whiphelmets/internal/platform/apperr"
	"github.com/taibuivan/whiphelmets/internal/platform/sec"
	"github.com/taibuivan/whiphelmets/internal/users/auth"
)

type serviceFixture struct {
	service      *auth.Service
	users        userRepo
	sessions     sessionRepo
	resetTokens  *tokenRepo
	verifyTokens *tokenRepo
	publisher    *recordingPublisher
	hasher       *sec.PasswordHasher
}

func newServiceFixture(t *testing.T, settings auth.Settings) *serviceFixture {
	t.Helper()
	store := newMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fixture := &serviceFixture{
		users:        userRepo{store},
		sessions:     sessionRepo{store},
		resetTokens:  newTokenRepo(),
		verifyTokens: newTokenRepo(),
		publisher:    &recordingPublisher{},
		hasher:       fastHasher(),
	}
	manager := auth.NewSessionManager(fixture.sessions, time.Hour, logger)
	fixture.service = auth.NewService(
		fixture.users, manager, fixture.hasher,
		fixture.resetTokens, fixture.verifyTokens,
		fixture.publisher, settings, logger,
	)
	return fixture
}

func validRegistration() auth.RegisterInput {
	return auth.RegisterInput{
		Username:   "valentino",
		Email:      "vale@example.com",
		Password:   "doctor-46",
		FirstName:  "Valentino",
		LastName:   "Rossi",
		NationalID: "30123456",
		Phone:      "+54 11 4567-8901",
	}
}

/*
TestService_Register verifies account creation and the welcome event.
*/
func TestService_Register(t *testing.T) {
	fixture := newServiceFixture(t, auth.Settings{})
	ctx := context.Background()

	user, err := fixture.service.Register(ctx, validRegistration())
	require.NoError(t, err)

	assert.NotZero(t, user.ID)
	assert.Equal(t, sec.RoleUser, user.Role)
	assert.False(t, user.EmailVerified)
	assert.Equal(t, sec.FormatArgon2id, sec.DetectFormat(user.PasswordHash))

	payload, ok := fixture.publisher.last(events.TypeUserRegistered)
	require.True(t, ok)
	registered := payload.(events.UserRegistered)
	assert.Equal(t, user.ID, registered.UserID)
	require.NotEmpty(t, registered.VerificationToken)

	require.NoError(t, fixture.service.VerifyEmail(ctx, registered.VerificationToken))
	stored, err := fixture.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)

	err = fixture.service.VerifyEmail(ctx, registered.VerificationToken)
	assert.Equal(t, http.StatusUnprocessableEntity, apperr.As(err).HTTPStatus)
}

/*
TestService_Register_Conflicts verifies that the duplicate field is named.
*/
func TestService_Register_Conflicts(t *testing.T) {
	fixture := newServiceFixture(t, auth.Settings{})
	ctx := context.Background()

	_, err := fixture.service.Register(ctx, validRegistration())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*auth.RegisterInput)
		field  string
	}{
		{"username", func(in *auth.RegisterInput) {
			in.Email, in.NationalID, in.Phone = "other@example.com", "", ""
		}, auth.FieldUsername},
		{"email_case_insensitive", func(in *auth.RegisterInput) {
			in.Username, in.Email, in.NationalID, in.Phone = "other", "VALE@example.com", "", ""
		}, auth.FieldEmail},
		{"national_id", func(in *auth.RegisterInput) {
			in.Username, in.Email, in.Phone = "other", "other@example.com", ""
		}, auth.FieldNationalID},
		{"phone", func(in *auth.RegisterInput) {
			in.Username, in.Email, in.NationalID = "other", "other@example.com", ""
		}, auth.FieldPhone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validRegistration()
			tt.mutate(&input)

			_, err := fixture.service.Register(ctx, input)
			ae := apperr.As(err)
			require.NotNil(t, ae)
			assert.Equal(t, http.StatusConflict, ae.HTTPStatus)
			require.NotEmpty(t, ae.Details)
			assert.Equal(t, tt.field, ae.Details[0].Field)
		})
	}
}

/*
TestService_Register_Validation verifies boundary checks run before storage.
*/
func TestService_Register_Validation(t *testing.T) {
	fixture := newServiceFixture(t, auth.Settings{})

	tests := []struct {
		name   string
		mutate func(*auth.RegisterInput)
	}{
		{"short_username", func(in *auth.RegisterInput) { in.Username = "ab" }},
		{"short_password", func(in *auth.RegisterInput) { in.Password = "short" }},
		{"bad_email", func(in *auth.RegisterInput) { in.Email = "not-an-email" }},
		{"non_numeric_national_id", func(in *auth.RegisterInput) { in.NationalID = "30.123.456" }},
		{"bad_phone", func(in *auth.RegisterInput) { in.Phone = "call me" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validRegistration()
			tt.mutate(&input)

			_, err := fixture.service.Register(context.Background(), input)
			ae := apperr.As(err)
			require.NotNil(t, ae)
			assert.Equal(t, "VALIDATION_ERROR", ae.Code)
		})
	}
}

/*
TestService_Login covers successful and rejected logins.
*/
func TestService_Login(t *testing.T) {
	fixture := newServiceFixture(t, auth.Settings{})
	ctx := context.Background()

	_, err := fixture.service.Register(ctx, validRegistration())
	require.NoError(t, err)

	t.Run("by_username", func(t *testing.T) {
		result, err := fixture.service.Login(ctx, auth.LoginInput{Login: "valentino", Password: "doctor-46"})
		require.NoError(t, err)
		assert.NotEmpty(t, result.Token)
		assert.Equal(t, "valentino", result.User.Username)
	})

	t.Run("by_email", func(t *testing.T) {
		result, err := fixture.service.Login(ctx, auth.LoginInput{Login: "vale@example.com", Password: "doctor-46"})
		require.NoError(t, err)
		assert.NotEmpty(t, result.Token)
	})

	t.Run("wrong_password_and_unknown_user_look_alike", func(t *testing.T) {
		_, wrongPassword := fixture.service.Login(ctx, auth.LoginInput{Login: "valentino", Password: "nope-nope"})
		_, unknownUser := fixture.service.Login(ctx, auth.LoginInput{Login: "nobody", Password: "doctor-46"})

		require.Error(t, wrongPassword)
		require.Error(t, unknownUser)
		assert.Equal(t, apperr.As(wrongPassword).Message, apperr.As(unknownUser).Message)
		assert.Equal(t, http.StatusUnauthorized, apperr.As(wrongPassword).HTTPStatus)
	})
}

/*
TestService_Login_RequireVerifiedEmail verifies the optional verification gate.
*/
func TestService_Login_RequireVerifiedEmail(t *testing.T) {
	fixture := newServiceFixture(t, auth.Settings{RequireVerifiedEmail: true})
	ctx := context.Background()

	user, err := fixture.service.Register(ctx, validRegistration())
	require.NoError(t, err)

	_, err = fixture.service.Login(ctx, auth.LoginInput{Login: "valentino", Password: "doctor-46"})
	assert.Equal(t, http.StatusForbidden, apperr.As(err).HTTPStatus)

	require.NoError(t, fixture.users.MarkVerified(ctx, user.ID))
	_, err = fixture.service.Login(ctx, auth.LoginInput{Login: "valentino", Password: "doctor-46"})
	assert.NoError(t, err)
}

/*
TestService_Login_UpgradesLegacyDigest verifies that a historical sha256
digest is replaced by argon2id on the first successful login.
*/
func TestService_Login_UpgradesLegacyDigest(t *testing.T) {
	fixture := newServiceFixture(t, auth.Settings{})
	ctx := context.Background()

	legacy := &auth.User{Username: "old", Email: "old@example.com", PasswordHash: sec.LegacyHash("classic-pass"), Role: sec.RoleUser}
	require.NoError(t, fixture.users.Create(ctx, legacy))

	_, err := fixture.service.Login(ctx, auth.LoginInput{Login: "old", Password: "classic-pass"})
	require.NoError(t, err)

	stored, err := fixture.users.FindByID(ctx, legacy.ID)
	require.NoError(t, err)
	assert.Equal(t, sec.FormatArgon2id, sec.DetectFormat(stored.PasswordHash))
	assert.True(t, fixture.hasher.Verify("classic-pass", stored.PasswordHash))
}

/*
TestService_PasswordReset verifies the full recovery flow and that it ends
every session.
*/
func TestService_PasswordReset(t *testing.T) {
	fixture := newServiceFixture(t, auth.Settings{})
	ctx := context.Background()

	_, err := fixture.service.Register(ctx, validRegistration())
	require.NoError(t, err)
	login, err := fixture.service.Login(ctx, auth.LoginInput{Login: "valentino", Password: "doctor-46"})
	require.NoError(t, err)

	// Unknown email is silent
	require.NoError(t, fixture.service.RequestPasswordReset(ctx, "ghost@example.com"))
	_, found := fixture.publisher.last(events.TypePasswordResetRequested)
	assert.False(t, found)

	require.NoError(t, fixture.service.RequestPasswordReset(ctx, "vale@example.com"))
	payload, found := fixture.publisher.last(events.TypePasswordResetRequested)
	require.True(t, found)
	token := payload.(events.PasswordResetRequested).ResetToken

	require.NoError(t, fixture.service.ResetPassword(ctx, token, "new-secret-93"))
	assert.Equal(t, 0, fixture.sessions.count(), "reset must revoke sessions")
	assert.False(t, fixture.sessions.hasTokenHash(sec.HashToken(login.Token)))

	_, err = fixture.service.Login(ctx, auth.LoginInput{Login: "valentino", Password: "new-secret-93"})
	assert.NoError(t, err)

	err = fixture.service.ResetPassword(ctx, token, "another-pass")
	assert.Equal(t, http.StatusUnprocessableEntity, apperr.As(err).HTTPStatus)
}

/*
TestService_ChangePassword verifies the current password is required.
*/
func TestService_ChangePassword(t *testing.T) {
	fixture := newServiceFixture(t, auth.Settings{})
	ctx := context.Background()

	user, err := fixture.service.Register(ctx, validRegistration())
	require.NoError(t, err)

	err = fixture.service.ChangePassword(ctx, user.ID, "wrong-pass", "brand-new-1")
	assert.Equal(t, http.StatusUnauthorized, apperr.As(err).HTTPStatus)

	require.NoError(t, fixture.service.ChangePassword(ctx, user.ID, "doctor-46", "brand-new-1"))
	_, err = fixture.service.Login(ctx, auth.LoginInput{Login: "valentino", Password: "brand-new-1"})
	assert.NoError(t, err)
}

/*
TestService_UpdateProfile verifies the uniqueness check excludes the caller.
*/
func TestService_UpdateProfile(t *testing.T) {
	fixture := newServiceFixture(t, auth.Settings{})
	ctx := context.Background()

	user, err := fixture.service.Register(ctx, validRegistration())
	require.NoError(t, err)

	other := validRegistration()
	other.Username, other.Email, other.NationalID, other.Phone = "marc", "marc@example.com", "40111222", ""
	_, err = fixture.service.Register(ctx, other)
	require.NoError(t, err)

	// Re-submitting own values is not a conflict
	ownPhone := "+54 11 4567-8901"
	city := "Tavullia 1"
	updated, err := fixture.service.UpdateProfile(ctx, user.ID, auth.ProfilePatch{Phone: &ownPhone, Address: &city})
	require.NoError(t, err)
	assert.Equal(t, city, updated.Address)

	taken := "40111222"
	_, err = fixture.service.UpdateProfile(ctx, user.ID, auth.ProfilePatch{NationalID: &taken})
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, http.StatusConflict, ae.HTTPStatus)
}

/*
TestService_AdminGuards verifies staff cannot lock themselves out.
*/
func TestService_AdminGuards(t *testing.T) {
	fixture := newServiceFixture(t, auth.Settings{})
	ctx := context.Background()

	admin, err := fixture.service.CreateUser(ctx, auth.AdminCreateInput{
		RegisterInput: auth.RegisterInput{Username: "boss", Email: "boss@example.com", Password: "boss-pass-1"},
		Role:          sec.RoleAdmin,
	})
	require.NoError(t, err)
	assert.True(t, admin.EmailVerified)

	actor := &sec.Principal{UserID: admin.ID, Role: sec.RoleAdmin}

	demote := sec.RoleUser
	_, err = fixture.service.UpdateUser(ctx, actor, admin.ID, auth.AdminPatch{Role: &demote})
	assert.Equal(t, http.StatusUnprocessableEntity, apperr.As(err).HTTPStatus)

	err = fixture.service.DeleteUser(ctx, actor, admin.ID)
	assert.Equal(t, http.StatusUnprocessableEntity, apperr.As(err).HTTPStatus)

	customer, err := fixture.service.Register(ctx, validRegistration())
	require.NoError(t, err)
	_, err = fixture.service.Login(ctx, auth.LoginInput{Login: "valentino", Password: "doctor-46"})
	require.NoError(t, err)

	require.NoError(t, fixture.service.DeleteUser(ctx, actor, customer.ID))
	assert.Equal(t, 0, fixture.sessions.count())

	_, err = fixture.service.GetProfile(ctx, customer.ID)
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}
