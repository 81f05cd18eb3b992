package models

import (
	"strings"
	"time"

	"bitbucket.org/vmgroup/dealer_backend/utils"
)

// StockItem is one physical inventory unit (a vehicle or a peripheral).
// Created on import, mutated in place by every later movement, never deleted.
//
// The disposition axes are independent nullable sub-records, not one status
// enum. A unit can carry transfer and later sold at the same time, so the
// axes must not collapse into each other.
type StockItem struct {
	ID int `gorm:"primary_key" json:"id"`

	// Identity. VehicleNo/PeripheralNo hold the short normalized serial the
	// clerks use day to day; the Full variants hold the raw cleaned value as
	// keyed in on import. FIFO units have neither.
	VehicleNo        string `gorm:"size:64;index" json:"vehicle_no"`
	VehicleNoFull    string `gorm:"size:128;index" json:"vehicle_no_full"`
	PeripheralNo     string `gorm:"size:64;index" json:"peripheral_no"`
	PeripheralNoFull string `gorm:"size:128;index" json:"peripheral_no_full"`
	ProductCode      string `gorm:"size:64;index" json:"product_code"`
	// ProductPCode is ProductCode with every non-alphanumeric stripped;
	// the FIFO fallback matches on it.
	ProductPCode string `gorm:"size:64;index:idx_fifo,priority:1" json:"product_p_code"`

	// Classification.
	IsVehicle   bool   `gorm:"not null" json:"is_vehicle"`
	IsFIFO      bool   `gorm:"not null;index:idx_fifo,priority:2" json:"is_fifo"`
	IsUsed      bool   `gorm:"not null" json:"is_used"`
	Model       string `gorm:"size:128" json:"model"`
	ProductType string `gorm:"size:64" json:"product_type"`
	ProductName string `gorm:"size:255" json:"product_name"`

	BranchCode string `gorm:"size:20;not null;index" json:"branch_code"`

	// Import linkage.
	ImportDocId   string    `gorm:"size:64;index" json:"import_doc_id"`
	ImportDocNo   string    `gorm:"size:64" json:"import_doc_no"`
	ImportBatchNo string    `gorm:"size:64;index" json:"import_batch_no"`
	ImportedAt    time.Time `gorm:"index" json:"imported_at"`

	// Disposition axes. NULL column means the axis is unset.
	Reserved   *Disposition `gorm:"type:json" json:"reserved"`
	Sold       *Disposition `gorm:"type:json" json:"sold"`
	Transfer   *Disposition `gorm:"type:json" json:"transfer"`
	Exported   *Disposition `gorm:"type:json" json:"exported"`
	Decal      *Disposition `gorm:"type:json" json:"decal"`
	DecalTaken *Disposition `gorm:"type:json" json:"decal_taken"`

	// Append-only history.
	Transactions TransactionLogList `gorm:"type:json" json:"transactions"`

	// Precomputed search arrays for the mobile clients.
	VehicleNoLower      string     `gorm:"size:64;index" json:"vehicle_no_lower"`
	VehicleNoPartial    StringList `gorm:"type:json" json:"vehicle_no_partial"`
	PeripheralNoLower   string     `gorm:"size:64;index" json:"peripheral_no_lower"`
	PeripheralNoPartial StringList `gorm:"type:json" json:"peripheral_no_partial"`
	ModelPartial        StringList `gorm:"type:json" json:"model_partial"`
	ProductNamePartial  StringList `gorm:"type:json" json:"product_name_partial"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// AppendTransaction concatenates one history entry. Prior entries are never
// touched.
func (s *StockItem) AppendTransaction(t TransactionLog) {
	s.Transactions = append(s.Transactions, t)
}

// HasComputedKeywords reports whether the search arrays are already present.
// The recheck handler only patches items where this is false, which keeps the
// handler safe under at-least-once delivery.
func (s *StockItem) HasComputedKeywords() bool {
	if s.VehicleNo != "" && len(s.VehicleNoPartial) == 0 {
		return false
	}
	if s.PeripheralNo != "" && len(s.PeripheralNoPartial) == 0 {
		return false
	}
	if s.Model != "" && len(s.ModelPartial) == 0 {
		return false
	}
	return true
}

// ComputeSearchFields refreshes the lowercase and prefix arrays from the
// identity fields.
func (s *StockItem) ComputeSearchFields() {
	s.VehicleNoLower = strings.ToLower(s.VehicleNo)
	s.PeripheralNoLower = strings.ToLower(s.PeripheralNo)
	if s.VehicleNo != "" {
		s.VehicleNoPartial = utils.SerialKeywords(s.VehicleNo, s.VehicleNoFull)
	}
	if s.PeripheralNo != "" {
		s.PeripheralNoPartial = utils.SerialKeywords(s.PeripheralNo, s.PeripheralNoFull)
	}
	if s.Model != "" {
		s.ModelPartial = utils.NameKeywords(s.Model)
	}
	if s.ProductName != "" {
		s.ProductNamePartial = utils.NameKeywords(s.ProductName)
	}
}

// IsUsedProductCode reports whether a product code denotes a used unit.
// Used stock is coded with a leading "2-" segment by the import clerks.
func IsUsedProductCode(code string) bool {
	return strings.HasPrefix(strings.TrimSpace(code), "2-")
}
