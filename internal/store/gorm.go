/**
 * @description
 * GORM-backed store over PostgreSQL.
 *
 * Every transaction first verifies the caller's short-lived store claim and
 * exposes its subject through `request.jwt.claim.sub`, so row-level security
 * policies scope queries to the caller (Supabase-style). The favorites
 * replace runs under a per-user advisory lock so concurrent replaces for the
 * same user serialize instead of interleaving.
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/jackc/pgconn (simple-protocol error shape)
 * - github.com/jackc/pgx/v5/pgconn (pgx driver error shape)
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pgconnv1 "github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tokenfolio-project/backend/internal/auth"
	"github.com/tokenfolio-project/backend/internal/models"
)

// ClaimVerifier validates a store claim and returns its subject.
type ClaimVerifier interface {
	VerifyStoreClaim(raw string) (string, error)
}

// GormStore implements ProfileStore and FavoriteStore on PostgreSQL.
type GormStore struct {
	db     *gorm.DB
	claims ClaimVerifier
}

// NewGormStore wires a GORM handle and the claim verifier.
func NewGormStore(db *gorm.DB, claims ClaimVerifier) *GormStore {
	return &GormStore{db: db, claims: claims}
}

// verifiedSubject returns the caller subject from the request's store claim,
// or "" when the request carries none (service-role paths such as wallet
// sign-in before a session exists).
func (s *GormStore) verifiedSubject(ctx context.Context) (string, error) {
	caller, ok := auth.CallerFrom(ctx)
	if !ok || caller.StoreClaim == "" {
		return "", nil
	}
	sub, err := s.claims.VerifyStoreClaim(caller.StoreClaim)
	if err != nil {
		return "", err
	}
	return sub, nil
}

// withCallerTx opens a transaction and, when the request carries a store
// claim, applies the verified subject as the row-level identity for the
// transaction's lifetime.
func (s *GormStore) withCallerTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	sub, err := s.verifiedSubject(ctx)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if sub != "" {
			if err := tx.Exec("SELECT set_config('request.jwt.claim.sub', ?, true)", sub).Error; err != nil {
				return fmt.Errorf("apply caller claim: %w", err)
			}
		}
		return fn(tx)
	})
}

// GetByUserID returns the profile for a stable user identifier.
func (s *GormStore) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := s.withCallerTx(ctx, func(tx *gorm.DB) error {
		return tx.Where("user_id = ?", userID).First(&profile).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// GetByWallet returns the profile holding a wallet address, matched lowercase.
func (s *GormStore) GetByWallet(ctx context.Context, address string) (*models.Profile, error) {
	var profile models.Profile
	err := s.withCallerTx(ctx, func(tx *gorm.DB) error {
		return tx.Where("wallet_address = ?", strings.ToLower(address)).First(&profile).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// Ensure creates the profile row just-in-time if absent and returns it.
func (s *GormStore) Ensure(ctx context.Context, userID, email string) (*models.Profile, error) {
	var profile models.Profile
	err := s.withCallerTx(ctx, func(tx *gorm.DB) error {
		row := models.Profile{UserID: userID}
		if email != "" {
			row.Email = &email
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&row).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).First(&profile).Error
	})
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return &profile, nil
}

// EnsureWalletUser returns the profile owning a verified wallet address,
// creating a wallet-only profile (no email) if none exists. The user id for
// such accounts is derived from the address so repeated sign-ins converge on
// one row.
func (s *GormStore) EnsureWalletUser(ctx context.Context, address string) (*models.Profile, error) {
	addr := strings.ToLower(address)
	var profile models.Profile
	err := s.withCallerTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("wallet_address = ?", addr).First(&profile).Error; err == nil {
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now()
		row := models.Profile{
			UserID:         "wallet:" + addr,
			WalletAddress:  &addr,
			WalletLinkedAt: &now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&row).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", row.UserID).First(&profile).Error
	})
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return &profile, nil
}

// Update applies partial profile changes for the caller's own row.
func (s *GormStore) Update(ctx context.Context, userID string, upd ProfileUpdate) (*models.Profile, error) {
	changes := map[string]interface{}{"updated_at": time.Now()}
	if upd.Username != nil {
		changes["username"] = *upd.Username
	}
	if upd.Bio != nil {
		changes["bio"] = *upd.Bio
	}
	if upd.TwitterURL != nil {
		changes["twitter_url"] = *upd.TwitterURL
	}
	if upd.WebsiteURL != nil {
		changes["website_url"] = *upd.WebsiteURL
	}

	var profile models.Profile
	err := s.withCallerTx(ctx, func(tx *gorm.DB) error {
		result := tx.Model(&models.Profile{}).Where("user_id = ?", userID).Updates(changes)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("user_id = ?", userID).First(&profile).Error
	})
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return &profile, nil
}

// SetWallet writes the lowercase address and link timestamp onto the
// caller's profile row. The unique constraint on wallet_address is the
// authoritative guard against two users linking the same address.
func (s *GormStore) SetWallet(ctx context.Context, userID, address string, linkedAt time.Time) error {
	addr := strings.ToLower(address)
	err := s.withCallerTx(ctx, func(tx *gorm.DB) error {
		result := tx.Model(&models.Profile{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{
				"wallet_address":   addr,
				"wallet_linked_at": linkedAt,
				"updated_at":       time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	return mapUniqueViolation(err)
}

// ClearWallet removes the wallet fields from the caller's profile row.
func (s *GormStore) ClearWallet(ctx context.Context, userID string) error {
	return s.withCallerTx(ctx, func(tx *gorm.DB) error {
		result := tx.Model(&models.Profile{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{
				"wallet_address":   gorm.Expr("NULL"),
				"wallet_linked_at": gorm.Expr("NULL"),
				"updated_at":       time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// List returns the user's favorites, newest first.
func (s *GormStore) List(ctx context.Context, userID string) ([]models.Favorite, error) {
	var favorites []models.Favorite
	err := s.withCallerTx(ctx, func(tx *gorm.DB) error {
		return tx.Where("user_id = ?", userID).Order("created_at DESC").Find(&favorites).Error
	})
	if err != nil {
		return nil, err
	}
	return favorites, nil
}

// Replace atomically makes the stored favorite set equal the given token
// ids. The per-user advisory lock serializes concurrent replaces for the
// same user; different users never block each other. The lock is released
// automatically at transaction end.
func (s *GormStore) Replace(ctx context.Context, userID string, tokenIDs []string) error {
	sub, err := s.verifiedSubject(ctx)
	if err != nil {
		return err
	}
	// Re-verify ownership inside the store even though the API layer also
	// checks session identity: the target user id parameter must never be
	// trusted on its own.
	if sub != "" && sub != userID {
		return ErrForbidden
	}

	norm := NormalizeTokenIDs(tokenIDs)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if sub != "" {
			if err := tx.Exec("SELECT set_config('request.jwt.claim.sub', ?, true)", sub).Error; err != nil {
				return fmt.Errorf("apply caller claim: %w", err)
			}
		}
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", userID).Error; err != nil {
			return fmt.Errorf("acquire favorites lock: %w", err)
		}

		if len(norm) == 0 {
			return tx.Where("user_id = ?", userID).Delete(&models.Favorite{}).Error
		}

		if err := tx.Where("user_id = ? AND token_id NOT IN ?", userID, norm).
			Delete(&models.Favorite{}).Error; err != nil {
			return err
		}

		now := time.Now()
		rows := make([]models.Favorite, 0, len(norm))
		for _, id := range norm {
			rows = append(rows, models.Favorite{UserID: userID, TokenID: id, CreatedAt: now})
		}
		return tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	})
}

// ReplaceNonAtomic is the degraded delete-all-then-insert-all fallback
// issued as two separate statements outside one transaction.
func (s *GormStore) ReplaceNonAtomic(ctx context.Context, userID string, tokenIDs []string) error {
	sub, err := s.verifiedSubject(ctx)
	if err != nil {
		return err
	}
	if sub != "" && sub != userID {
		return ErrForbidden
	}

	norm := NormalizeTokenIDs(tokenIDs)

	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).Delete(&models.Favorite{}).Error; err != nil {
		return err
	}
	if len(norm) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]models.Favorite, 0, len(norm))
	for _, id := range norm {
		rows = append(rows, models.Favorite{UserID: userID, TokenID: id, CreatedAt: now})
	}
	return s.db.WithContext(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// mapUniqueViolation converts Postgres unique-constraint failures into the
// store's sentinel errors. GORM's pgx driver surfaces pgx/v5 PgError values;
// the simple-protocol path can still surface the v1 shape, so both are
// checked.
func mapUniqueViolation(err error) error {
	if err == nil {
		return nil
	}

	var constraint string
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		constraint = pgErr.ConstraintName
	} else if pgErrV1, ok := err.(*pgconnv1.PgError); ok && pgErrV1.Code == "23505" {
		constraint = pgErrV1.ConstraintName
	} else {
		return err
	}

	switch {
	case strings.Contains(constraint, "wallet_address"):
		return ErrWalletTaken
	case strings.Contains(constraint, "username"):
		return ErrUsernameTaken
	case strings.Contains(constraint, "email"):
		return ErrEmailTaken
	default:
		return err
	}
}
