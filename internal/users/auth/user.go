// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements customer accounts and bearer sessions.

It defines the identity entities (User, Session, UserSummary), the session
manager that issues and validates opaque tokens, and the account service
(registration, login, profile, recovery, staff administration).

# Architecture

Entities defined here carry no storage concerns. Repositories are interfaces
(store.go) with PostgreSQL and Redis implementations next to them.
*/
package auth

import (
	"time"

	"github.com/taibuivan/whiphelmets/internal/platform/sec"
)

// # Domain Entities

// User is a registered customer or staff account.
//
// Profile fields are optional free text; the boundary validates their format
// when they are provided.
type User struct {
	ID            int64        `json:"id"`
	Username      string       `json:"username"`
	Email         string       `json:"email"`
	PasswordHash  string       `json:"-"`
	Role          sec.UserRole `json:"role"`
	FirstName     string       `json:"first_name"`
	LastName      string       `json:"last_name"`
	NationalID    string       `json:"national_id,omitempty"`
	Phone         string       `json:"phone,omitempty"`
	Address       string       `json:"address,omitempty"`
	PostalCode    string       `json:"postal_code,omitempty"`
	EmailVerified bool         `json:"email_verified"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Summary projects the user onto the identity returned by session validation.
func (user *User) Summary() *UserSummary {
	return &UserSummary{
		ID:        user.ID,
		Username:  user.Username,
		Role:      user.Role,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
	}
}

// Session is proof of a completed login. Only the hash of the bearer token is
// stored; the token itself is returned to the client once.
type Session struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	TokenHash string    `json:"-"`
	UserAgent string    `json:"user_agent,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Live reports whether the session is still valid at now.
func (session *Session) Live(now time.Time) bool {
	return now.Before(session.ExpiresAt)
}

// UserSummary is the identity a valid session resolves to.
type UserSummary struct {
	ID        int64        `json:"id"`
	Username  string       `json:"username"`
	Role      sec.UserRole `json:"role"`
	FirstName string       `json:"first_name"`
	LastName  string       `json:"last_name"`
	Email     string       `json:"email"`
}

// Principal converts the summary into the request-scoped identity.
func (summary *UserSummary) Principal() *sec.Principal {
	return &sec.Principal{
		UserID:    summary.ID,
		Username:  summary.Username,
		Role:      summary.Role,
		FirstName: summary.FirstName,
		LastName:  summary.LastName,
		Email:     summary.Email,
	}
}

// ClientMeta describes the device a session was created from.
type ClientMeta struct {
	UserAgent string
	IPAddress string
}

// # Field Identifiers

// Field names used in validation details and conflict messages.
const (
	FieldUsername        = "username"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldFirstName       = "first_name"
	FieldLastName        = "last_name"
	FieldNationalID      = "national_id"
	FieldPhone           = "phone"
	FieldAddress         = "address"
	FieldPostalCode      = "postal_code"
	FieldRole            = "role"
	FieldToken           = "token"
	FieldCurrentPassword = "current_password"
	FieldNewPassword     = "new_password"
)
