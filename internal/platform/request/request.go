// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package request provides utilities for extracting data from HTTP requests.

It abstracts away the underlying router's parameter extraction and common
body decoding patterns, ensuring consistent error handling and type safety.
*/
package requestutil

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/taibuivan/whiphelmets/internal/platform/apperr"
	"github.com/taibuivan/whiphelmets/internal/platform/ctxutil"
	"github.com/taibuivan/whiphelmets/internal/platform/sec"
	"github.com/taibuivan/whiphelmets/internal/platform/validate"
)

// maxBodyBytes caps JSON request bodies. Carts and profiles are small.
const maxBodyBytes = 1 << 20

/*
DecodeJSON reads the request body and decodes it into the target structure.
Unknown fields are rejected so typos in a checkout payload surface as 400s.

Parameters:
  - request: *http.Request
  - target: interface{} (Pointer to the destination struct)

Returns:
  - error: validate.ErrInvalidJSON if decoding fails, otherwise nil
*/
func DecodeJSON(request *http.Request, target interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, request.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}
	return nil
}

/*
Param retrieves a named URL parameter from the request.
*/
func Param(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}

/*
Int64Param parses a named URL parameter as a positive numeric ID.

Returns:
  - int64: The parsed identifier
  - error: apperr.ValidationError when the segment is not a positive integer
*/
func Int64Param(request *http.Request, name string) (int64, error) {
	raw := chi.URLParam(request, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, validate.RequiredError(name, "must be a positive integer")
	}
	return id, nil
}

/*
BearerToken extracts the token from an "Authorization: Bearer <token>" header.
Returns "" when the header is missing or uses another scheme.
*/
func BearerToken(request *http.Request) string {
	header := request.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

/*
Principal extracts the authenticated principal from the request context.

Returns nil if the request is not authenticated.
*/
func Principal(request *http.Request) *sec.Principal {
	return ctxutil.GetAuthUser(request.Context())
}

/*
RequiredPrincipal ensures the request is authenticated and returns the principal.

Returns:
  - *sec.Principal: The authenticated identity
  - error: apperr.Unauthorized if the request is not authenticated
*/
func RequiredPrincipal(request *http.Request) (*sec.Principal, error) {

	principal := ctxutil.GetAuthUser(request.Context())

	// If the user is not authenticated, return an error
	if principal == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}

	return principal, nil
}

/*
RequiredUserID returns the ID of the currently logged-in user.

Returns:
  - int64: User ID
  - error: apperr.Unauthorized if not authenticated
*/
func RequiredUserID(request *http.Request) (int64, error) {
	principal, err := RequiredPrincipal(request)
	if err != nil {
		return 0, err
	}
	return principal.UserID, nil
}

/*
ClientMeta returns the user agent and client IP recorded alongside a session.
*/
func ClientMeta(request *http.Request) (userAgent string, ip string) {
	userAgent = request.UserAgent()
	if len(userAgent) > 255 {
		userAgent = userAgent[:255]
	}
	if ip = ctxutil.GetClientIP(request.Context()); ip != "" {
		return userAgent, ip
	}
	ip = request.RemoteAddr
	if host, _, found := strings.Cut(ip, ":"); found && !strings.Contains(host, "[") && strings.Count(ip, ":") == 1 {
		ip = host
	}
	return userAgent, ip
}
