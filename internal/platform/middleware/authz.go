// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"net/http"

	"github.com/taibuivan/whiphelmets/internal/platform/apperr"
	"github.com/taibuivan/whiphelmets/internal/platform/ctxutil"
	requestutil "github.com/taibuivan/whiphelmets/internal/platform/request"
	"github.com/taibuivan/whiphelmets/internal/platform/respond"
	"github.com/taibuivan/whiphelmets/internal/platform/sec"
)

// SessionResolver turns a bearer token into the identity of its live session.
//
// # Why an interface?
//
// Defining SessionResolver here decouples the middleware from the session
// service, allowing us to inject fakes during unit testing.
type SessionResolver interface {
	// ResolvePrincipal returns nil (and no error) for unknown or expired tokens.
	ResolvePrincipal(ctx context.Context, token string) (*sec.Principal, error)
}

// Authenticate resolves the bearer session token of the request.
//
// # Flow
//  1. No Authorization header: the request proceeds as anonymous.
//  2. Header present but not a bearer token: 401.
//  3. Token unknown or expired: 401, with the same message for both.
//  4. Otherwise the [*sec.Principal] and the raw token go into the context.
func Authenticate(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// ── 1. Anonymous Access ───────────────────────────────────────────
			if request.Header.Get("Authorization") == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// ── 2. Format Validation ──────────────────────────────────────────
			token := requestutil.BearerToken(request)
			if token == "" {
				respond.Error(writer, request, apperr.Unauthorized("Invalid authorization format"))
				return
			}

			// ── 3. Session Resolution ─────────────────────────────────────────
			principal, err := resolver.ResolvePrincipal(request.Context(), token)
			if err != nil {
				respond.Error(writer, request, err)
				return
			}
			if principal == nil {
				respond.Error(writer, request, apperr.Unauthorized("Invalid or expired session"))
				return
			}

			// ── 4. Context Injection ──────────────────────────────────────────
			if sink, ok := writer.(principalSink); ok {
				sink.setPrincipal(principal)
			}
			ctx := ctxutil.WithAuthUser(request.Context(), principal)
			ctx = ctxutil.WithSessionToken(ctx, token)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireAuth blocks requests that are not authenticated.
//
// Must be registered in the router AFTER [Authenticate].
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if ctxutil.GetAuthUser(request.Context()) == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// RequireRole blocks requests if the authenticated user doesn't have the required role.
// It implies [RequireAuth] so you don't need to mount both.
func RequireRole(role sec.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			principal := ctxutil.GetAuthUser(request.Context())

			// ── 1. Authentication Check ───────────────────────────────────────
			if principal == nil {
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}

			// ── 2. Authorization Check ────────────────────────────────────────
			if !principal.Role.AtLeast(role) {
				respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}
