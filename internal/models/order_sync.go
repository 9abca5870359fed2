package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderSync mirrors the CiviCRM annotations carried on a WooCommerce order.
// The order's own meta remains the authoritative copy; this record backs the
// admin surface queries.
type OrderSync struct {
	ID                  string    `json:"id" gorm:"primary_key"`
	OrderID             int64     `json:"order_id" gorm:"unique;not null"`
	OrderNumber         string    `json:"order_number"`
	ContactID           int64     `json:"contact_id" gorm:"default:0"`
	ContributionID      int64     `json:"contribution_id" gorm:"default:0"`
	MembershipID        int64     `json:"membership_id" gorm:"default:0"`
	MembershipProcessed bool      `json:"membership_processed" gorm:"default:false"`
	CampaignID          int64     `json:"campaign_id" gorm:"default:0"`
	Source              string    `json:"source" gorm:"default:''"`
	POS                 bool      `json:"pos" gorm:"column:pos;default:false"`
	LastEvent           string    `json:"last_event"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (o *OrderSync) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return nil
}
