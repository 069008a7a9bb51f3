/**
 * @description
 * Stable, machine-readable rejection codes for the wallet-link and
 * favorites flows. Every business or protocol rejection resolves to one of
 * these; store/infrastructure failures stay ordinary wrapped errors and
 * surface to clients as a generic internal error.
 */

package services

import "fmt"

// Error is a rejection with a stable code the client UI branches on.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same code, so wrapped copies made by
// With still satisfy errors.Is against the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// With returns a copy carrying an underlying cause.
func (e *Error) With(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

var (
	ErrInvalidMethod = &Error{Code: "INVALID_METHOD", Message: "unknown challenge method"}

	ErrChallengeInvalid        = &Error{Code: "CHALLENGE_INVALID", Message: "challenge cookie missing or invalid"}
	ErrChallengeMismatch       = &Error{Code: "CHALLENGE_MISMATCH", Message: "challenge was issued for a different user"}
	ErrChallengeMethodMismatch = &Error{Code: "CHALLENGE_METHOD_MISMATCH", Message: "challenge was issued for a different method"}
	ErrDomainMismatch          = &Error{Code: "DOMAIN_MISMATCH", Message: "message domain does not match the challenge"}
	ErrNonceMismatch           = &Error{Code: "NONCE_MISMATCH", Message: "message nonce does not match the challenge"}
	ErrSignatureInvalid        = &Error{Code: "SIGNATURE_INVALID", Message: "signature could not be verified"}
	ErrAddressMismatch         = &Error{Code: "ADDRESS_MISMATCH", Message: "recovered address does not match the message"}
	ErrChallengeExpired        = &Error{Code: "CHALLENGE_EXPIRED", Message: "challenge has expired"}
	ErrInvalidWallet           = &Error{Code: "INVALID_WALLET", Message: "not a valid wallet address"}
	ErrWalletTaken             = &Error{Code: "WALLET_TAKEN", Message: "wallet is already linked to another account"}
	ErrProfileNotFound         = &Error{Code: "PROFILE_NOT_FOUND", Message: "profile not found"}
	ErrUsernameTaken           = &Error{Code: "USERNAME_TAKEN", Message: "username is already taken"}
	ErrForbidden               = &Error{Code: "FORBIDDEN", Message: "caller does not own the target resource"}
)
