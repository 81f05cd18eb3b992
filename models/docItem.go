package models

import "time"

// DocItemMirror is the flattened copy of one source-document line item. List
// views read these directly instead of joining back to the parent document.
// When a parent document's status flag flips false->true, the cascade handler
// propagates the flag onto every mirror row of that document.
type DocItemMirror struct {
	ID            int                `gorm:"primary_key" json:"id"`
	DocId         string             `gorm:"size:64;not null;index:idx_doc_item,priority:2" json:"doc_id"`
	DocNo         string             `gorm:"size:64" json:"doc_no"`
	ReferenceType StockReferenceType `gorm:"type:enum('importVehicles','importParts','importLog','bookings','transfer','saleOut','otherVehicleOut','otherVehicleIn','decal','deliver','leave','products','services','customers','recheck');index:idx_doc_item,priority:1" json:"reference_type"`
	BranchCode    string             `gorm:"size:20;index" json:"branch_code"`
	LineNo        int                `gorm:"not null" json:"line_no"`

	ProductCode  string     `gorm:"size:64;index" json:"product_code"`
	ProductName  string     `gorm:"size:255" json:"product_name"`
	Model        string     `gorm:"size:128" json:"model"`
	Qty          int        `gorm:"not null" json:"qty"`
	VehicleNo    StringList `gorm:"type:json" json:"vehicle_no"`
	PeripheralNo StringList `gorm:"type:json" json:"peripheral_no"`

	Deleted   bool `gorm:"not null;index" json:"deleted"`
	Cancelled bool `gorm:"not null;index" json:"cancelled"`
	Rejected  bool `gorm:"not null" json:"rejected"`
	Completed bool `gorm:"not null" json:"completed"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
