// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "time"

// # Authentication Constraints

const (
	// SessionTTL is the default lifetime of a bearer session.
	SessionTTL = 24 * time.Hour

	// ResetTokenTTL is the duration a password reset token remains valid.
	ResetTokenTTL = 1 * time.Hour

	// VerificationTokenTTL is the duration an email verification token remains valid.
	// Long-lived as customers might not check email immediately.
	VerificationTokenTTL = 24 * time.Hour

	// OneTimeTokenLength is the byte length of reset and verification tokens.
	OneTimeTokenLength = 32

	// MinPasswordLength is enforced before a password reaches the hasher.
	MinPasswordLength = 8
)
