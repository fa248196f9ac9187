// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package validate_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/whiphelmets/internal/platform/apperr"
	"github.com/taibuivan/whiphelmets/internal/platform/validate"
)

/*
TestValidator_Required tests the mandatory field validation logic.
*/
func TestValidator_Required(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		value    string
		hasError bool
	}{
		{"valid_string", "name", "Shaft Pro", false},
		{"empty_string", "name", "", true},
		{"whitespace_only", "name", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			v.Required(tt.field, tt.value)

			if tt.hasError {
				assert.True(t, v.HasErrors())
				err := v.Err()
				require.NotNil(t, err)

				ae := apperr.As(err)
				require.NotNil(t, ae)
				assert.Equal(t, "VALIDATION_ERROR", ae.Code)
				assert.Equal(t, tt.field, ae.Details[0].Field)
			} else {
				assert.False(t, v.HasErrors())
				assert.Nil(t, v.Err())
			}
		})
	}
}

/*
TestValidator_Email checks the email format validation rule.
*/
func TestValidator_Email(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		isValid bool
	}{
		{"valid_email", "test@example.com", true},
		{"invalid_format", "invalid-email", false},
		{"missing_domain", "test@", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			v.Email("email", tt.email)

			if tt.isValid {
				assert.False(t, v.HasErrors())
			} else {
				assert.True(t, v.HasErrors())
			}
		})
	}
}

/*
TestValidator_Chain tests the fluent API (chaining multiple rules).
*/
func TestValidator_Chain(t *testing.T) {
	v := &validate.Validator{}

	// Multi-rule validation
	err := v.
		Required("username", "tai").
		MinLen("username", "tai", 3).
		MaxLen("username", "tai", 10).
		Email("email", "tai@whiphelmets.com").
		Err()

	assert.NoError(t, err)
	assert.False(t, v.HasErrors())
}

/*
TestValidator_Chain_Failure tests error accumulation in the chain.
*/
func TestValidator_Chain_Failure(t *testing.T) {
	v := &validate.Validator{}

	err := v.
		Required("username", "").       // Fails
		MinLen("username", "a", 5).     // Fails
		Email("email", "not-an-email"). // Fails
		Err()

	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)

	// Should accumulate all 3 errors
	assert.Len(t, ae.Details, 3)
}

/*
TestValidator_Formats covers the storefront-specific rules.
*/
func TestValidator_Formats(t *testing.T) {
	tests := []struct {
		name     string
		apply    func(v *validate.Validator)
		hasError bool
	}{
		{"dni_digits", func(v *validate.Validator) { v.Digits("dni", "30123456") }, false},
		{"dni_letters", func(v *validate.Validator) { v.Digits("dni", "30.123.456") }, true},
		{"phone_plain", func(v *validate.Validator) { v.Phone("phone", "1145678901") }, false},
		{"phone_intl", func(v *validate.Validator) { v.Phone("phone", "+54 11 4567-8901") }, false},
		{"phone_short", func(v *validate.Validator) { v.Phone("phone", "123") }, true},
		{"url_https", func(v *validate.Validator) { v.URL("image", "https://cdn.example.com/a.jpg") }, false},
		{"url_relative", func(v *validate.Validator) { v.URL("image", "/a.jpg") }, true},
		{"money_ok", func(v *validate.Validator) { v.Money("price", decimal.RequireFromString("15999.90")) }, false},
		{"money_negative", func(v *validate.Validator) { v.Money("price", decimal.RequireFromString("-1")) }, true},
		{"money_precision", func(v *validate.Validator) { v.Money("price", decimal.RequireFromString("1.005")) }, true},
		{"one_of", func(v *validate.Validator) { v.OneOf("method", "cash", "mercadopago", "transfer") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			tt.apply(v)
			assert.Equal(t, tt.hasError, v.HasErrors())
		})
	}
}
