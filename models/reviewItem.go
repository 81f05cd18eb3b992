package models

import "time"

// ReviewItem records a movement line whose serial resolved to zero open stock
// items. Written under the review unmatched policy so back office can fix the
// import data instead of losing the movement silently.
type ReviewItem struct {
	ID            int                `gorm:"primary_key" json:"id"`
	ReferenceType StockReferenceType `gorm:"type:enum('importVehicles','importParts','importLog','bookings','transfer','saleOut','otherVehicleOut','otherVehicleIn','decal','deliver','leave','products','services','customers','recheck')" json:"reference_type"`
	DocId         string             `gorm:"size:64;not null;index" json:"doc_id"`
	DocNo         string             `gorm:"size:64" json:"doc_no"`
	BranchCode    string             `gorm:"size:20;index" json:"branch_code"`
	ProductCode   string             `gorm:"size:64" json:"product_code"`
	Serials       StringList         `gorm:"type:json" json:"serials"`
	Reason        string             `gorm:"size:255" json:"reason"`
	Resolved      bool               `gorm:"not null;index" json:"resolved"`
	ResolvedBy    *string            `gorm:"size:100" json:"resolved_by"`
	ResolvedAt    *time.Time         `json:"resolved_at"`
	CreatedAt     time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}
