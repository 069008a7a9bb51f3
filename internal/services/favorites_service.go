/**
 * @description
 * Favorites Service.
 * Exposes the atomic replace-set operation over a user's favorite tokens.
 * The store serializes same-user replaces behind a per-user advisory lock;
 * when the transactional path is unavailable the service degrades to the
 * documented two-step fallback and logs it.
 *
 * @dependencies
 * - internal/store
 * - internal/logger
 */

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/tokenfolio-project/backend/internal/logger"
	"github.com/tokenfolio-project/backend/internal/models"
	"github.com/tokenfolio-project/backend/internal/store"
)

// MaxFavorites caps a single replace request.
const MaxFavorites = 500

// FavoritesService handles the favorite-token set for a user.
type FavoritesService struct {
	favorites store.FavoriteStore
}

// NewFavoritesService creates a new FavoritesService.
func NewFavoritesService(favorites store.FavoriteStore) *FavoritesService {
	return &FavoritesService{favorites: favorites}
}

// Replace makes the stored set equal exactly the given token ids
// (lowercased, de-duplicated). An empty list clears the set.
func (s *FavoritesService) Replace(ctx context.Context, userID string, tokenIDs []string) error {
	if len(tokenIDs) > MaxFavorites {
		return &Error{Code: "TOO_MANY_FAVORITES", Message: fmt.Sprintf("at most %d tokens per request", MaxFavorites)}
	}

	err := s.favorites.Replace(ctx, userID, tokenIDs)
	if errors.Is(err, store.ErrNotImplemented) {
		// Degraded mode: delete-all then insert-all as two separate calls.
		// A crash between the steps loses data and concurrent calls can
		// interleave, so this is never the preferred path.
		logger.Warn("FavoritesService: transactional replace unavailable, using non-atomic fallback for user %s", userID)
		err = s.favorites.ReplaceNonAtomic(ctx, userID, tokenIDs)
	}
	if errors.Is(err, store.ErrForbidden) {
		return ErrForbidden
	}
	if err != nil {
		return fmt.Errorf("favorites replace: %w", err)
	}
	return nil
}

// List returns the user's favorites.
func (s *FavoritesService) List(ctx context.Context, userID string) ([]models.Favorite, error) {
	favorites, err := s.favorites.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("favorites list: %w", err)
	}
	return favorites, nil
}
