// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/whiphelmets/internal/platform/apperr"
	"github.com/taibuivan/whiphelmets/internal/platform/middleware"
	requestutil "github.com/taibuivan/whiphelmets/internal/platform/request"
	"github.com/taibuivan/whiphelmets/internal/platform/respond"
	"github.com/taibuivan/whiphelmets/internal/platform/sec"
	"github.com/taibuivan/whiphelmets/internal/platform/validate"
	"github.com/taibuivan/whiphelmets/pkg/pagination"
)

// # Definitions & Constructors

// Handler implements the session, account and staff user endpoints.
type Handler struct {
	service    *Service
	sessions   *SessionManager
	loginGuard func(http.Handler) http.Handler
}

// NewHandler constructs a new [Handler].
//
// loginGuard wraps the login endpoint only (typically a stricter rate
// limiter); nil leaves it unguarded.
func NewHandler(service *Service, sessions *SessionManager, loginGuard func(http.Handler) http.Handler) *Handler {
	if loginGuard == nil {
		loginGuard = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{service: service, sessions: sessions, loginGuard: loginGuard}
}

// SessionRoutes returns the bearer session endpoints.
//
// # Endpoints
//   - POST   /         : Login, returns {token, expires_at, user}
//   - GET    /{token}  : Validate, returns the user summary or 401
//   - DELETE /{token}  : Logout, idempotent
func (handler *Handler) SessionRoutes() chi.Router {
	router := chi.NewRouter()

	router.With(handler.loginGuard).Post("/", handler.login)
	router.Get("/{token}", handler.validateSession)
	router.Delete("/{token}", handler.logout)

	return router
}

// UserRoutes returns registration and the caller's own profile.
func (handler *Handler) UserRoutes() chi.Router {
	router := chi.NewRouter()

	router.Post("/", handler.register)

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/me", handler.getProfile)
		r.Patch("/me", handler.updateProfile)
		r.Post("/me/password", handler.changePassword)
	})

	return router
}

// AccountRoutes returns the token-based recovery flows.
func (handler *Handler) AccountRoutes() chi.Router {
	router := chi.NewRouter()

	router.Post("/forgot-password", handler.forgotPassword)
	router.Post("/reset-password", handler.resetPassword)
	router.Post("/verify-email", handler.verifyEmail)

	return router
}

// AdminRoutes returns staff user management. Every route requires the admin role.
func (handler *Handler) AdminRoutes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireRole(sec.RoleAdmin))

	router.Get("/", handler.listUsers)
	router.Post("/", handler.createUser)
	router.Patch("/{id}", handler.updateUser)
	router.Delete("/{id}", handler.deleteUser)

	return router
}

// # Request Payloads

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// # Session Endpoints

/*
Login authenticates a user and opens a session.

POST /api/v1/sessions

Request:
  - Body: loginRequest (username or email, password)

Response:
  - 201: LoginResult: token, expiry and user summary
  - 401: Invalid credentials (unknown account and wrong password look the same)
  - 403: Email not verified (only when verification is required)
  - 429: Too many attempts
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	userAgent, ip := requestutil.ClientMeta(request)
	result, err := handler.service.Login(request.Context(), LoginInput{
		Login:    input.Username,
		Password: input.Password,
		Meta:     ClientMeta{UserAgent: userAgent, IPAddress: ip},
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, result)
}

/*
ValidateSession resolves a token to its user.

GET /api/v1/sessions/{token}

Response:
  - 200: UserSummary
  - 401: Unknown, malformed or expired token
*/
func (handler *Handler) validateSession(writer http.ResponseWriter, request *http.Request) {
	summary, err := handler.sessions.ValidateSession(request.Context(), requestutil.Param(request, "token"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	if summary == nil {
		respond.Error(writer, request, apperr.Unauthorized("Invalid or expired session"))
		return
	}

	respond.OK(writer, summary)
}

/*
Logout ends a session.

DELETE /api/v1/sessions/{token}

Response:
  - 204: Always, whether or not the token existed
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	if err := handler.sessions.Logout(request.Context(), requestutil.Param(request, "token")); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

// # User Endpoints

/*
Register opens a customer account.

POST /api/v1/users

Response:
  - 201: User
  - 400: Validation failure
  - 409: Username, email, national ID or phone already in use
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input RegisterInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	user, err := handler.service.Register(request.Context(), input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, user)
}

// GET /api/v1/users/me
func (handler *Handler) getProfile(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.service.GetProfile(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// PATCH /api/v1/users/me
func (handler *Handler) updateProfile(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var patch ProfilePatch
	if err := requestutil.DecodeJSON(request, &patch); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	user, err := handler.service.UpdateProfile(request.Context(), userID, patch)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// POST /api/v1/users/me/password
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if err := handler.service.ChangePassword(request.Context(), userID, input.CurrentPassword, input.NewPassword); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, messageResponse{Message: "Password changed successfully"})
}

// # Recovery Endpoints

/*
ForgotPassword starts the password recovery flow.

POST /api/v1/auth/forgot-password

Response:
  - 202: Always the same message, registered or not
*/
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input emailRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if err := handler.service.RequestPasswordReset(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Accepted(writer, messageResponse{Message: "If this email is registered, a reset link has been sent."})
}

// POST /api/v1/auth/reset-password
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if err := handler.service.ResetPassword(request.Context(), input.Token, input.Password); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, messageResponse{Message: "Password updated successfully"})
}

// POST /api/v1/auth/verify-email
func (handler *Handler) verifyEmail(writer http.ResponseWriter, request *http.Request) {
	var input tokenRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if err := handler.service.VerifyEmail(request.Context(), input.Token); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, messageResponse{Message: "Email verified successfully"})
}

// # Staff Endpoints

// GET /api/v1/admin/users?page=&limit=
func (handler *Handler) listUsers(writer http.ResponseWriter, request *http.Request) {
	page := pagination.FromRequest(request)

	users, total, err := handler.service.ListUsers(request.Context(), page)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, users, pagination.NewMeta(page.Page, page.Limit, total))
}

// POST /api/v1/admin/users
func (handler *Handler) createUser(writer http.ResponseWriter, request *http.Request) {
	var input AdminCreateInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	user, err := handler.service.CreateUser(request.Context(), input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, user)
}

// PATCH /api/v1/admin/users/{id}
func (handler *Handler) updateUser(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.Int64Param(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var patch AdminPatch
	if err := requestutil.DecodeJSON(request, &patch); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	user, err := handler.service.UpdateUser(request.Context(), requestutil.Principal(request), userID, patch)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// DELETE /api/v1/admin/users/{id}
func (handler *Handler) deleteUser(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.Int64Param(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.DeleteUser(request.Context(), requestutil.Principal(request), userID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
