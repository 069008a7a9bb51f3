/**
 * @description
 * Profile database model.
 * Maps to the 'profiles' table in PostgreSQL.
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/google/uuid
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Profile represents a user identity in the system.
// Wallet-only accounts have no email; the wallet address, when present,
// is always stored lowercase and is globally unique.
type Profile struct {
	ID             uuid.UUID  `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	UserID         string     `gorm:"uniqueIndex;not null" json:"user_id"`
	Username       *string    `gorm:"uniqueIndex" json:"username"`
	Email          *string    `gorm:"uniqueIndex" json:"email"`
	Bio            string     `json:"bio"`
	TwitterURL     string     `gorm:"column:twitter_url" json:"twitter_url"`
	WebsiteURL     string     `gorm:"column:website_url" json:"website_url"`
	WalletAddress  *string    `gorm:"column:wallet_address;uniqueIndex" json:"wallet_address"`
	WalletLinkedAt *time.Time `gorm:"column:wallet_linked_at" json:"wallet_linked_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by Profile to `profiles`
func (Profile) TableName() string {
	return "profiles"
}

// BeforeCreate ensures UUID is generated if not present (though DB usually handles this)
func (p *Profile) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}
