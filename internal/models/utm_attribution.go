package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UTMAttribution is a short-lived campaign touch captured from storefront URL
// parameters. It lives until its TTL expires or the next order consumes it.
type UTMAttribution struct {
	ID          string    `json:"id" gorm:"primary_key"`
	ClientToken string    `json:"client_token" gorm:"unique;not null"`
	CampaignID  int64     `json:"campaign_id" gorm:"default:0"`
	Source      string    `json:"source" gorm:"default:''"`
	Medium      string    `json:"medium" gorm:"default:''"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (u *UTMAttribution) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

func (u *UTMAttribution) Expired(now time.Time) bool {
	return !u.ExpiresAt.IsZero() && now.After(u.ExpiresAt)
}
