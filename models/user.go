package models

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	GroupPending = "pending"
	GroupAdmin   = "admin"
	GroupSales   = "sales"
	GroupStock   = "stock"
	GroupUsers   = "users"

	RoleProvinceAdmin = "province_admin"
)

type User struct {
	ID          int        `gorm:"primary_key" json:"id"`
	Uid         string     `gorm:"size:64;uniqueIndex" json:"uid"`
	Username    string     `gorm:"size:100;not null;uniqueIndex" json:"username"`
	DisplayName string     `gorm:"size:255" json:"display_name"`
	Email       string     `gorm:"size:255" json:"email"`
	Phone       string     `gorm:"size:32" json:"phone"`
	GroupName   string     `gorm:"size:50;index" json:"group_name"`
	Department  string     `gorm:"size:50;index" json:"department"`
	BranchCode  string     `gorm:"size:20;index" json:"branch_code"`
	Province    string     `gorm:"size:50;index" json:"province"`
	Role        string     `gorm:"size:50;index" json:"role"`
	Password    string     `gorm:"size:255" json:"-"`
	IsActive    bool       `gorm:"not null;default:true" json:"is_active"`
	LastSeenAt  *time.Time `json:"last_seen_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// DefaultGroupForDisplayName assigns the initial group of a freshly created
// account. Accounts created by the branch clerks follow a naming convention;
// anything that doesn't match waits in pending until an admin sorts it.
func DefaultGroupForDisplayName(displayName string) string {
	name := strings.ToLower(strings.TrimSpace(displayName))
	switch {
	case name == "":
		return GroupPending
	case strings.Contains(name, "admin"):
		return GroupAdmin
	case strings.Contains(name, "sale"):
		return GroupSales
	case strings.Contains(name, "stock"):
		return GroupStock
	default:
		return GroupUsers
	}
}

// PurgeUser removes an account and its presence records: device tokens and
// the notification read watermark. Stored notifications stay for audit.
func PurgeUser(ctx context.Context, db *gorm.DB, uid string) error {
	var user User
	if err := db.WithContext(ctx).Where("uid = ?", uid).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&MessageToken{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&NotificationRead{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
}
