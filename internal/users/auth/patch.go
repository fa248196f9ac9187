// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"strings"

	"github.com/taibuivan/whiphelmets/internal/platform/sec"
	"github.com/taibuivan/whiphelmets/internal/platform/validate"
)

// # Partial Updates

// ProfilePatch is a partial update of the fields a customer may edit on
// their own account. A nil field is left untouched.
type ProfilePatch struct {
	FirstName  *string `json:"first_name,omitempty"`
	LastName   *string `json:"last_name,omitempty"`
	Email      *string `json:"email,omitempty"`
	NationalID *string `json:"national_id,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Address    *string `json:"address,omitempty"`
	PostalCode *string `json:"postal_code,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (patch ProfilePatch) IsEmpty() bool {
	return patch.FirstName == nil && patch.LastName == nil && patch.Email == nil &&
		patch.NationalID == nil && patch.Phone == nil && patch.Address == nil && patch.PostalCode == nil
}

// normalize trims every provided value.
func (patch *ProfilePatch) normalize() {
	for _, field := range []*string{patch.FirstName, patch.LastName, patch.Email, patch.NationalID, patch.Phone, patch.Address, patch.PostalCode} {
		if field != nil {
			*field = strings.TrimSpace(*field)
		}
	}
}

// validate checks the format of provided fields only.
func (patch ProfilePatch) validate(validator *validate.Validator) {
	if patch.FirstName != nil {
		validator.MaxLen(FieldFirstName, *patch.FirstName, 100)
	}
	if patch.LastName != nil {
		validator.MaxLen(FieldLastName, *patch.LastName, 100)
	}
	if patch.Email != nil {
		validator.Required(FieldEmail, *patch.Email).Email(FieldEmail, *patch.Email)
	}
	if patch.NationalID != nil && *patch.NationalID != "" {
		validator.Digits(FieldNationalID, *patch.NationalID).MaxLen(FieldNationalID, *patch.NationalID, 20)
	}
	if patch.Phone != nil && *patch.Phone != "" {
		validator.Phone(FieldPhone, *patch.Phone)
	}
	if patch.Address != nil {
		validator.MaxLen(FieldAddress, *patch.Address, 255)
	}
	if patch.PostalCode != nil {
		validator.MaxLen(FieldPostalCode, *patch.PostalCode, 20)
	}
}

// AdminPatch is a partial update applied by staff. It extends the profile
// fields with the username and the role.
type AdminPatch struct {
	ProfilePatch
	Username *string       `json:"username,omitempty"`
	Role     *sec.UserRole `json:"role,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (patch AdminPatch) IsEmpty() bool {
	return patch.ProfilePatch.IsEmpty() && patch.Username == nil && patch.Role == nil
}

func (patch *AdminPatch) normalize() {
	patch.ProfilePatch.normalize()
	if patch.Username != nil {
		*patch.Username = strings.TrimSpace(*patch.Username)
	}
}

func (patch AdminPatch) validate(validator *validate.Validator) {
	patch.ProfilePatch.validate(validator)
	if patch.Username != nil {
		validator.Required(FieldUsername, *patch.Username).
			MinLen(FieldUsername, *patch.Username, 3).
			MaxLen(FieldUsername, *patch.Username, 50)
	}
	if patch.Role != nil {
		validator.Custom(FieldRole, !patch.Role.Valid(), "Must be one of: user, admin")
	}
}

// # Uniqueness Check

// IdentityQuery carries the identifying values that must not collide with
// another account. Empty values are not checked.
type IdentityQuery struct {
	Username   string
	Email      string
	NationalID string
	Phone      string
}

func identityFromPatch(patch AdminPatch) IdentityQuery {
	var identity IdentityQuery
	if patch.Username != nil {
		identity.Username = *patch.Username
	}
	if patch.Email != nil {
		identity.Email = *patch.Email
	}
	if patch.NationalID != nil {
		identity.NationalID = *patch.NationalID
	}
	if patch.Phone != nil {
		identity.Phone = *patch.Phone
	}
	return identity
}

// IsEmpty reports whether there is nothing to check.
func (identity IdentityQuery) IsEmpty() bool {
	return identity.Username == "" && identity.Email == "" && identity.NationalID == "" && identity.Phone == ""
}
