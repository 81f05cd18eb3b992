package models

import (
	"strings"
	"time"

	"bitbucket.org/vmgroup/dealer_backend/utils"
	"github.com/shopspring/decimal"
)

// Catalog records mirror the front-office master data. Their handlers only
// maintain the precomputed search arrays; no stock effect.

type Product struct {
	ID          int             `gorm:"primary_key" json:"id"`
	DocId       string          `gorm:"size:64;uniqueIndex" json:"doc_id"`
	Code        string          `gorm:"size:64;index" json:"code"`
	PCode       string          `gorm:"size:64;index" json:"p_code"`
	Name        string          `gorm:"size:255" json:"name"`
	Model       string          `gorm:"size:128" json:"model"`
	ProductType string          `gorm:"size:64" json:"product_type"`
	Price       decimal.Decimal `gorm:"type:decimal(14,2)" json:"price"`
	NameLower   string          `gorm:"size:255;index" json:"name_lower"`
	NamePartial StringList      `gorm:"type:json" json:"name_partial"`
	CodePartial StringList      `gorm:"type:json" json:"code_partial"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Product) ComputeSearchFields() {
	p.PCode = utils.StripNonAlnum(p.Code)
	p.NameLower = strings.ToLower(p.Name)
	p.NamePartial = utils.NameKeywords(p.Name, p.Model)
	p.CodePartial = utils.SerialKeywords(p.Code)
}

type Service struct {
	ID          int             `gorm:"primary_key" json:"id"`
	DocId       string          `gorm:"size:64;uniqueIndex" json:"doc_id"`
	Code        string          `gorm:"size:64;index" json:"code"`
	Name        string          `gorm:"size:255" json:"name"`
	Price       decimal.Decimal `gorm:"type:decimal(14,2)" json:"price"`
	NameLower   string          `gorm:"size:255;index" json:"name_lower"`
	NamePartial StringList      `gorm:"type:json" json:"name_partial"`
	CodePartial StringList      `gorm:"type:json" json:"code_partial"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Service) ComputeSearchFields() {
	s.NameLower = strings.ToLower(s.Name)
	s.NamePartial = utils.NameKeywords(s.Name)
	s.CodePartial = utils.SerialKeywords(s.Code)
}

type Customer struct {
	ID           int        `gorm:"primary_key" json:"id"`
	DocId        string     `gorm:"size:64;uniqueIndex" json:"doc_id"`
	Name         string     `gorm:"size:255" json:"name"`
	Phone        string     `gorm:"size:32" json:"phone"`
	CitizenId    string     `gorm:"size:32" json:"citizen_id"`
	BranchCode   string     `gorm:"size:20;index" json:"branch_code"`
	NameLower    string     `gorm:"size:255;index" json:"name_lower"`
	NamePartial  StringList `gorm:"type:json" json:"name_partial"`
	PhonePartial StringList `gorm:"type:json" json:"phone_partial"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Customer) ComputeSearchFields() {
	c.NameLower = strings.ToLower(c.Name)
	c.NamePartial = utils.NameKeywords(c.Name)
	if c.Phone != "" {
		c.PhonePartial = utils.PhoneKeywords(c.Phone)
	}
}

// CatalogDoc is the upstream payload for products, services and customers.
type CatalogDoc struct {
	Id          string     `json:"id"`
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	Model       string     `json:"model"`
	ProductType string     `json:"productType"`
	Price       string     `json:"price"`
	Phone       string     `json:"phone"`
	CitizenId   string     `json:"citizenId"`
	BranchCode  string     `json:"branchCode"`
	CreatedAt   *time.Time `json:"createdAt"`
}
