// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import "strings"

// Principal is the authenticated identity attached to a request after its
// bearer token resolved to a live session.
type Principal struct {
	UserID    int64
	Username  string
	Role      UserRole
	FirstName string
	LastName  string
	Email     string
}

// IsAdmin reports whether the principal carries the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role.AtLeast(RoleAdmin)
}

// OwnsEmail reports whether email matches the principal's contact address,
// ignoring case and surrounding whitespace.
func (p *Principal) OwnsEmail(email string) bool {
	if p == nil || p.Email == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(p.Email), strings.TrimSpace(email))
}
