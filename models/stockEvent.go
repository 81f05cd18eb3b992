package models

import (
	"time"

	"bitbucket.org/vmgroup/dealer_backend/config"
)

// StockEventRecord is the transactional-outbox row for stock events. Rows are
// written inside the caller's DB transaction and published to Pub/Sub
// asynchronously by the outbox dispatcher after commit. A row with a future
// NextAttemptAt acts as a delayed task (used for the import-log recheck).
type StockEventRecord struct {
	ID            int                 `gorm:"primary_key;index:idx_stock_outbox_dispatch,priority:3" json:"id"`
	BranchCode    string              `gorm:"size:20;not null;index" json:"branch_code"`
	DocDateTime   time.Time           `gorm:"index;not null" json:"doc_date_time"`
	ReferenceId   string              `gorm:"size:64;not null;index" json:"reference_id"`
	ReferenceType StockReferenceType  `gorm:"type:enum('importVehicles','importParts','importLog','bookings','transfer','saleOut','otherVehicleOut','otherVehicleIn','decal','deliver','leave','products','services','customers','recheck')" json:"reference_type"`
	Action        PubSubMessageAction `gorm:"type:enum('C','U','D')" json:"action"`
	OldObj        []byte              `gorm:"type:blob" json:"old_obj"`
	NewObj        []byte              `gorm:"type:blob" json:"new_obj"`
	// Publish happens after commit via dispatcher.
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_stock_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_stock_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToStockMessage(record StockEventRecord) config.StockMessage {
	return config.StockMessage{
		ID:            record.ID,
		BranchCode:    record.BranchCode,
		DocDateTime:   record.DocDateTime,
		ReferenceId:   record.ReferenceId,
		ReferenceType: string(record.ReferenceType),
		Action:        string(record.Action),
		OldObj:        record.OldObj,
		NewObj:        record.NewObj,
		CorrelationId: record.CorrelationId,
	}
}
