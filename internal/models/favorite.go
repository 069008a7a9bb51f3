/**
 * @description
 * Favorite database model.
 * One row per (user, token) pairing; the authoritative mutation is a
 * full-set replace, never an incremental patch.
 *
 * @dependencies
 * - gorm.io/gorm
 */

package models

import "time"

// Favorite represents a starred token for a user.
// Token IDs are stored lowercase; (user_id, token_id) is unique and
// user_id references profiles(user_id) with ON DELETE CASCADE, so a
// deleted profile takes its favorites with it.
type Favorite struct {
	UserID    string    `gorm:"primaryKey;column:user_id" json:"user_id"`
	TokenID   string    `gorm:"primaryKey;column:token_id" json:"token_id"`
	CreatedAt time.Time `json:"created_at"`

	Profile Profile `gorm:"foreignKey:UserID;references:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName overrides the table name used by Favorite to `favorites`
func (Favorite) TableName() string {
	return "favorites"
}
