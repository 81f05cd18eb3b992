package models

import (
	"context"
	"time"

	"bitbucket.org/vmgroup/dealer_backend/config"
)

// Notification is one stored feed entry. Read state is not stored per row;
// it is computed against the reader's watermark (NotificationRead).
type Notification struct {
	ID         int        `gorm:"primary_key" json:"id"`
	Title      string     `gorm:"size:255;not null" json:"title"`
	Body       string     `gorm:"type:text" json:"body"`
	GroupName  string     `gorm:"size:50;index" json:"group_name"`
	Department string     `gorm:"size:50;index" json:"department"`
	BranchCode string     `gorm:"size:20;index" json:"branch_code"`
	Province   string     `gorm:"size:50;index" json:"province"`
	TargetUser *int       `gorm:"index" json:"target_user"`
	RefType    *string    `gorm:"size:50" json:"ref_type"`
	RefId      *string    `gorm:"size:64" json:"ref_id"`
	SentBy     string     `gorm:"size:100" json:"sent_by"`
	SentAt     *time.Time `gorm:"index" json:"sent_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// NotificationRead is one user's read watermark. Every notification created
// at or before ReadUpTo counts as read; mark-all-read just advances it.
type NotificationRead struct {
	ID        int       `gorm:"primary_key" json:"id"`
	UserId    int       `gorm:"not null;uniqueIndex" json:"user_id"`
	ReadUpTo  time.Time `gorm:"not null" json:"read_up_to"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NotificationView is the feed shape returned to clients, with the computed
// read flag.
type NotificationView struct {
	Notification
	IsRead bool `json:"is_read"`
}

// FetchNotifications returns the newest notifications visible to a user,
// flagged against the user's read watermark.
func FetchNotifications(ctx context.Context, userId int, province, branchCode string, limit int) ([]NotificationView, error) {
	db := config.GetDB()
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var watermark NotificationRead
	hasWatermark := true
	if err := db.WithContext(ctx).Where("user_id = ?", userId).First(&watermark).Error; err != nil {
		hasWatermark = false
	}

	var rows []Notification
	dbCtx := db.WithContext(ctx).Model(&Notification{}).
		Where("target_user = ? OR target_user IS NULL", userId)
	if province != "" {
		dbCtx = dbCtx.Where("province = ? OR province = ''", province)
	}
	if branchCode != "" {
		dbCtx = dbCtx.Where("branch_code = ? OR branch_code = ''", branchCode)
	}
	if err := dbCtx.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	views := make([]NotificationView, 0, len(rows))
	for _, n := range rows {
		isRead := false
		if hasWatermark && !n.CreatedAt.After(watermark.ReadUpTo) {
			isRead = true
		}
		views = append(views, NotificationView{Notification: n, IsRead: isRead})
	}
	return views, nil
}

// MarkAllRead advances the user's watermark to now.
func MarkAllRead(ctx context.Context, userId int) error {
	db := config.GetDB()
	now := time.Now().UTC()

	var watermark NotificationRead
	err := db.WithContext(ctx).Where("user_id = ?", userId).First(&watermark).Error
	if err != nil {
		return db.WithContext(ctx).Create(&NotificationRead{UserId: userId, ReadUpTo: now}).Error
	}
	return db.WithContext(ctx).Model(&watermark).Update("read_up_to", now).Error
}
