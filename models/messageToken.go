package models

import "time"

// MessageToken maps one registered device token to its user. A row is deleted
// reactively when the push provider reports the token unregistered or invalid.
type MessageToken struct {
	ID         int       `gorm:"primary_key" json:"id"`
	Token      string    `gorm:"size:255;not null;uniqueIndex" json:"token"`
	UserId     int       `gorm:"not null;index" json:"user_id"`
	Username   string    `gorm:"size:100;index" json:"username"`
	GroupName  string    `gorm:"size:50;index" json:"group_name"`
	Department string    `gorm:"size:50;index" json:"department"`
	BranchCode string    `gorm:"size:20;index" json:"branch_code"`
	Province   string    `gorm:"size:50;index" json:"province"`
	Role       string    `gorm:"size:50;index" json:"role"`
	Platform   string    `gorm:"size:20" json:"platform"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
