/**
 * @description
 * Profile Service.
 * Just-in-time profile creation for authenticated callers and partial
 * profile updates. The wallet fields are never touched here; those belong
 * to the wallet link service.
 *
 * @dependencies
 * - internal/store
 */

package services

import (
	"context"
	"fmt"

	"github.com/tokenfolio-project/backend/internal/models"
	"github.com/tokenfolio-project/backend/internal/store"
)

// ProfileService handles profile reads and non-wallet updates.
type ProfileService struct {
	profiles store.ProfileStore
}

// NewProfileService creates a new ProfileService.
func NewProfileService(profiles store.ProfileStore) *ProfileService {
	return &ProfileService{profiles: profiles}
}

// Ensure guarantees a profile row exists for the caller and returns it.
// Downstream wallet operations depend on this running first.
func (s *ProfileService) Ensure(ctx context.Context, userID, email string) (*models.Profile, error) {
	profile, err := s.profiles.Ensure(ctx, userID, email)
	if err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	return profile, nil
}

// Get returns the caller's profile.
func (s *ProfileService) Get(ctx context.Context, userID string) (*models.Profile, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return profile, nil
}

// Update applies partial changes to the caller's profile.
func (s *ProfileService) Update(ctx context.Context, userID string, upd store.ProfileUpdate) (*models.Profile, error) {
	profile, err := s.profiles.Update(ctx, userID, upd)
	if err != nil {
		switch err {
		case store.ErrNotFound:
			return nil, ErrProfileNotFound
		case store.ErrUsernameTaken:
			return nil, ErrUsernameTaken
		default:
			return nil, fmt.Errorf("update profile: %w", err)
		}
	}
	return profile, nil
}
