/**
 * @description
 * Store interfaces over profiles and favorites.
 * Services depend on these, not on GORM, so the wallet-link and favorites
 * logic can be exercised against an in-memory implementation in tests.
 */

package store

import (
	"context"
	"strings"
	"time"

	"github.com/tokenfolio-project/backend/internal/models"
)

// ProfileUpdate carries optional profile field changes. Nil pointers leave
// the column untouched.
type ProfileUpdate struct {
	Username   *string
	Bio        *string
	TwitterURL *string
	WebsiteURL *string
}

// ProfileStore is owner-scoped CRUD over the profiles table.
type ProfileStore interface {
	// GetByUserID returns the profile for a stable user identifier.
	GetByUserID(ctx context.Context, userID string) (*models.Profile, error)
	// GetByWallet returns the profile holding a lowercase wallet address.
	GetByWallet(ctx context.Context, address string) (*models.Profile, error)
	// Ensure creates the profile row just-in-time if absent and returns it.
	Ensure(ctx context.Context, userID, email string) (*models.Profile, error)
	// EnsureWalletUser returns the profile owning a verified wallet address,
	// creating a wallet-only profile if none exists.
	EnsureWalletUser(ctx context.Context, address string) (*models.Profile, error)
	// Update applies partial profile changes for the caller's own row.
	Update(ctx context.Context, userID string, upd ProfileUpdate) (*models.Profile, error)
	// SetWallet writes a lowercase wallet address and link timestamp onto
	// the caller's profile row. ErrNotFound when no row matched;
	// ErrWalletTaken when the global uniqueness constraint fired.
	SetWallet(ctx context.Context, userID, address string, linkedAt time.Time) error
	// ClearWallet removes the wallet fields from the caller's profile row.
	ClearWallet(ctx context.Context, userID string) error
}

// FavoriteStore is owner-scoped access to the favorites table.
type FavoriteStore interface {
	// List returns the user's favorites, newest first.
	List(ctx context.Context, userID string) ([]models.Favorite, error)
	// Replace atomically makes the stored set equal the given token ids,
	// serialized per user. ErrNotImplemented when the backend cannot offer
	// the transactional path.
	Replace(ctx context.Context, userID string, tokenIDs []string) error
	// ReplaceNonAtomic is the degraded delete-all-then-insert-all fallback.
	// A crash between the two steps loses data; concurrent calls can
	// interleave. Use only when Replace is unavailable.
	ReplaceNonAtomic(ctx context.Context, userID string, tokenIDs []string) error
}

// NormalizeTokenIDs lowercases, trims, and de-duplicates a token id list,
// preserving first-seen order.
func NormalizeTokenIDs(tokenIDs []string) []string {
	seen := make(map[string]struct{}, len(tokenIDs))
	out := make([]string, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		norm := strings.ToLower(strings.TrimSpace(id))
		if norm == "" {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}
