// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives for the storefront.
//
// # Architecture
//
// This package isolates security-sensitive code (password digests, bearer
// tokens, signed links) from the domain logic. Domain services receive the
// types defined here through their constructors.
package sec

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// OrderAccessClaims is the payload of a guest order link.
//
// Guests have no session, so the checkout response carries a signed token
// binding one order number. Presenting it later grants read access to that
// order only.
type OrderAccessClaims struct {
	jwt.RegisteredClaims

	OrderNumber string `json:"ord"`
}

// OrderLinkSigner issues and verifies HS256 order-access tokens.
type OrderLinkSigner struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewOrderLinkSigner creates a signer keyed by secret.
func NewOrderLinkSigner(secret, issuer string, ttl time.Duration) *OrderLinkSigner {
	return &OrderLinkSigner{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Sign returns a token granting read access to orderNumber.
func (signer *OrderLinkSigner) Sign(orderNumber string) (string, error) {
	currentTime := signer.now()
	claims := OrderAccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   orderNumber,
			Issuer:    signer.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(signer.ttl)),
		},
		OrderNumber: orderNumber,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(signer.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign order link: %w", err)
	}

	return signedToken, nil
}

// Verify checks the signature and expiry of tokenString and returns the
// order number it grants access to.
func (signer *OrderLinkSigner) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &OrderAccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return signer.secret, nil
	}, jwt.WithIssuer(signer.issuer), jwt.WithTimeFunc(signer.now))

	if err != nil {
		return "", fmt.Errorf("sec: invalid order link: %w", err)
	}

	claims, ok := token.Claims.(*OrderAccessClaims)
	if !ok || !token.Valid || claims.OrderNumber == "" {
		return "", fmt.Errorf("sec: invalid order link claims")
	}

	return claims.OrderNumber, nil
}
