package store

import "errors"

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrWalletTaken indicates the wallet address is already linked to a
	// different profile (unique constraint on profiles.wallet_address).
	ErrWalletTaken = errors.New("store: wallet already linked")
	// ErrUsernameTaken indicates the username unique constraint fired.
	ErrUsernameTaken = errors.New("store: username already taken")
	// ErrEmailTaken indicates the email unique constraint fired.
	ErrEmailTaken = errors.New("store: email already taken")
	// ErrForbidden indicates the caller's verified identity claim does not
	// match the row owner it tried to mutate.
	ErrForbidden = errors.New("store: caller does not own target rows")
	// ErrNotImplemented signals the operation is unavailable for the chosen
	// backend; callers may fall back to a degraded path.
	ErrNotImplemented = errors.New("store: not implemented")
)
