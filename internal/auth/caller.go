/**
 * @description
 * Caller identity carried through request contexts.
 * The session middleware resolves the caller once and stashes it here;
 * services and the store read it back instead of re-parsing tokens.
 */

package auth

import "context"

// Caller is the authenticated identity for the current request.
// WalletAddress is set only when the session itself was established by a
// wallet signature earlier in its lifetime (session-trusted address).
// StoreClaim is the short-lived signed claim the store verifies before
// applying row-level scoping.
type Caller struct {
	UserID        string
	Email         string
	WalletAddress string
	StoreClaim    string
}

type callerKey struct{}

// WithCaller returns a context carrying the caller identity.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom extracts the caller identity, if any.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}
