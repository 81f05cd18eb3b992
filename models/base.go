package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/vmgroup/dealer_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PublishToStock implements the transactional outbox: it writes the event
// record inside the caller's DB transaction but does NOT publish to Pub/Sub.
// Publishing is performed asynchronously by the outbox dispatcher after commit.
func PublishToStock(ctx context.Context, db *gorm.DB, branchCode string, docDateTime time.Time, refId string, refType StockReferenceType, obj interface{}, oldObj interface{}, msgAction PubSubMessageAction) error {
	return publishToStock(ctx, db, branchCode, docDateTime, refId, refType, obj, oldObj, msgAction, nil)
}

// PublishToStockDelayed writes an outbox row the dispatcher will not pick up
// before notBefore. This replaces an external delayed-task queue for the
// import-log recheck.
func PublishToStockDelayed(ctx context.Context, db *gorm.DB, branchCode string, docDateTime time.Time, refId string, refType StockReferenceType, obj interface{}, notBefore time.Time) error {
	return publishToStock(ctx, db, branchCode, docDateTime, refId, refType, obj, nil, PubSubMessageActionCreate, &notBefore)
}

func publishToStock(ctx context.Context, db *gorm.DB, branchCode string, docDateTime time.Time, refId string, refType StockReferenceType, obj interface{}, oldObj interface{}, msgAction PubSubMessageAction, notBefore *time.Time) error {

	var objInByte []byte
	var oldObjInByte []byte
	var err error

	if msgAction == PubSubMessageActionCreate || msgAction == PubSubMessageActionUpdate {
		objInByte, err = json.Marshal(obj)
		if err != nil {
			return err
		}
	}
	if msgAction == PubSubMessageActionUpdate || msgAction == PubSubMessageActionDelete {
		oldObjInByte, err = json.Marshal(oldObj)
		if err != nil {
			return err
		}
	}

	record := StockEventRecord{
		BranchCode:    branchCode,
		DocDateTime:   docDateTime,
		ReferenceId:   refId,
		ReferenceType: refType,
		Action:        msgAction,
		NewObj:        objInByte,
		OldObj:        oldObjInByte,
		PublishStatus: OutboxPublishStatusPending,
		NextAttemptAt: notBefore,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	err = db.Create(&record).Error
	if err != nil {
		return err
	}
	return nil
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
