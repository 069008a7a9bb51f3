/**
 * @description
 * Token issuing and verification for the session layer and the store
 * claim bridge.
 *
 * Two token kinds share this file:
 * - Session tokens: HS256, minted after a successful wallet sign-in,
 *   carrying the user id and the session-trusted wallet address.
 * - Store claims: HS256, minted per request with a few-minute TTL,
 *   carrying only the caller's user id. The row-level-secured store
 *   verifies this claim independently before scoping queries.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5
 */

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuerName = "tokenfolio-backend"

// ErrInvalidClaim indicates a store claim that failed verification.
var ErrInvalidClaim = errors.New("auth: invalid store claim")

// TokenIssuer mints and verifies the service's own HS256 tokens.
type TokenIssuer struct {
	sessionSecret []byte
	storeSecret   []byte
	sessionTTL    time.Duration
	storeClaimTTL time.Duration
}

// NewTokenIssuer builds an issuer from the configured secrets.
func NewTokenIssuer(sessionSecret, storeSecret []byte, sessionTTL, storeClaimTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		sessionSecret: sessionSecret,
		storeSecret:   storeSecret,
		sessionTTL:    sessionTTL,
		storeClaimTTL: storeClaimTTL,
	}
}

// MintSessionToken creates a session JWT for a wallet-authenticated user.
// The wallet claim marks the address as session-trusted: it was
// cryptographically verified when this session was established.
func (i *TokenIssuer) MintSessionToken(userID, walletAddress string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": issuerName,
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(i.sessionTTL).Unix(),
	}
	if walletAddress != "" {
		claims["wallet"] = walletAddress
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.sessionSecret)
	if err != nil {
		return "", fmt.Errorf("mint session token: %w", err)
	}
	return signed, nil
}

// SessionSecret exposes the session signing key for the middleware keyfunc.
func (i *TokenIssuer) SessionSecret() []byte {
	return i.sessionSecret
}

// MintStoreClaim creates the short-lived bearer claim handed to the store.
func (i *TokenIssuer) MintStoreClaim(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": issuerName,
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(i.storeClaimTTL).Unix(),
	})
	signed, err := token.SignedString(i.storeSecret)
	if err != nil {
		return "", fmt.Errorf("mint store claim: %w", err)
	}
	return signed, nil
}

// VerifyStoreClaim validates a store claim and returns its subject.
func (i *TokenIssuer) VerifyStoreClaim(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.storeSecret, nil
	}, jwt.WithIssuer(issuerName), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidClaim, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidClaim
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrInvalidClaim
	}
	return sub, nil
}
