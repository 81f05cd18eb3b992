package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"sync"

	"bitbucket.org/vmgroup/dealer_backend/config"
	"bitbucket.org/vmgroup/dealer_backend/models"
	"bitbucket.org/vmgroup/dealer_backend/utils"
	"bitbucket.org/vmgroup/dealer_backend/workflow"
	"cloud.google.com/go/pubsub"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	branchMutexMap = make(map[string]*sync.Mutex)
	globalMutex    = &sync.Mutex{}
)

// RunStockWorkflow starts the pull subscription for deployments that consume
// the topic directly instead of receiving Pub/Sub push requests.
func RunStockWorkflow() error {
	logger := config.GetLogger()
	ctx := context.Background()
	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}
	topic, err := config.CreateTopicIfNotExists(client, os.Getenv("PUBSUB_TOPIC"))
	if err != nil {
		return err
	}
	sub, err := config.CreateSubscriptionIfNotExists(client, os.Getenv("PUBSUB_SUBSCRIPTION"), topic)
	if err != nil {
		return err
	}
	sub.ReceiveSettings.MaxOutstandingMessages = 10

	callback := func(ctx context.Context, msg *pubsub.Message) {
		m := config.StockMessage{}
		err := json.Unmarshal(msg.Data, &m)
		if err != nil {
			config.LogError(logger, "StockWorkflow.go", "RunStockWorkflow", "Unmarshaling pubsub message", msg.Data, err)
			// Poisoned payload, retrying cannot help.
			msg.Ack()
			return
		}

		// In-process serialization per branch; the advisory lock in
		// ProcessMessage covers other instances.
		globalMutex.Lock()
		mutex, exists := branchMutexMap[m.BranchCode]
		if !exists {
			mutex = &sync.Mutex{}
			branchMutexMap[m.BranchCode] = mutex
		}
		globalMutex.Unlock()

		mutex.Lock()
		defer mutex.Unlock()

		ctx = utils.SetBranchCodeInContext(ctx, m.BranchCode)
		ctx = utils.SetUserIdInContext(ctx, 0)
		ctx = utils.SetUserNameInContext(ctx, "System")
		if m.CorrelationId != "" {
			ctx = utils.SetCorrelationIdInContext(ctx, m.CorrelationId)
		}
		if err := ProcessMessage(ctx, logger, m); err != nil {
			if errors.Is(err, utils.ErrDropMessage) {
				msg.Ack()
				return
			}
			logger.WithFields(logrus.Fields{
				"field":          "StockWorkflow",
				"branch_code":    m.BranchCode,
				"reference_type": m.ReferenceType,
				"reference_id":   m.ReferenceId,
				"message_id":     msg.ID,
			}).Error("pubsub processing failed: " + err.Error())
			msg.Nack()
			return
		}
		msg.Ack()
	}

	go func() {
		err := sub.Receive(ctx, callback)
		if err != nil {
			config.LogError(logger, "StockWorkflow.go", "RunStockWorkflow", "Failed to receive messages", nil, err)
		}
	}()

	return nil
}

// ProcessMessage runs one source-document event through the reconciliation
// pipeline inside a single transaction: branch lock, idempotency gate,
// handler dispatch. Returning an error rolls everything back and the message
// is redelivered.
func ProcessMessage(ctx context.Context, logger *logrus.Logger, m config.StockMessage) error {
	db := config.GetDB()
	return db.Transaction(func(tx *gorm.DB) error {
		// Strict per-branch ordering across instances.
		if err := workflow.AcquireBranchStockLock(tx.WithContext(ctx), m.BranchCode); err != nil {
			return err
		}
		defer workflow.ReleaseBranchStockLock(tx.WithContext(ctx), m.BranchCode)

		handlerName := m.ReferenceType
		messageId := strconv.Itoa(m.ID)

		skip, err := workflow.BeginIdempotency(tx.WithContext(ctx), m.BranchCode, handlerName, messageId)
		if err != nil {
			return err
		}
		if skip {
			return nil
		}

		if err := ProcessWorkflow(tx.WithContext(ctx), logger, m); err != nil {
			// The rollback discards this mark together with the STARTED
			// row, so a retry starts from a clean slate. Poisoned
			// messages still never loop: callers ack ErrDropMessage
			// instead of redelivering.
			_ = workflow.MarkIdempotencyFailed(tx.WithContext(ctx), m.BranchCode, handlerName, messageId, err)
			return err
		}
		if err := workflow.MarkIdempotencySucceeded(tx.WithContext(ctx), m.BranchCode, handlerName, messageId); err != nil {
			return err
		}
		return nil
	})
}

// ProcessWorkflow dispatches by source-document type.
func ProcessWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.StockMessage) error {
	switch msg.ReferenceType {
	case string(models.StockReferenceTypeImportVehicles):
		return workflow.ProcessImportVehiclesWorkflow(tx, logger, msg)
	case string(models.StockReferenceTypeImportParts):
		return workflow.ProcessImportPartsWorkflow(tx, logger, msg)
	case string(models.StockReferenceTypeImportLog):
		return workflow.ProcessImportLogWorkflow(tx, logger, msg)
	case string(models.StockReferenceTypeBooking):
		return workflow.ProcessBookingWorkflow(tx, logger, msg)
	case string(models.StockReferenceTypeTransfer):
		return workflow.ProcessTransferWorkflow(tx, logger, msg)
	case string(models.StockReferenceTypeSaleOut):
		return workflow.ProcessSaleOutWorkflow(tx, logger, msg)
	case string(models.StockReferenceTypeOtherVehicleOut):
		return workflow.ProcessOtherVehicleOutWorkflow(tx, logger, msg)
	case string(models.StockReferenceTypeOtherVehicleIn):
		return workflow.ProcessOtherVehicleInWorkflow(tx, logger, msg)
	case string(models.StockReferenceTypeDecal):
		return workflow.ProcessDecalWorkflow(tx, logger, msg)
	case string(models.StockReferenceTypeDeliver):
		return workflow.ProcessDeliverWorkflow(tx, logger, msg)
	case string(models.StockReferenceTypeLeave):
		return workflow.ProcessLeaveWorkflow(tx, logger, msg)
	case string(models.StockReferenceTypeProduct):
		return workflow.ProcessProductWorkflow(tx, logger, msg)
	case string(models.StockReferenceTypeService):
		return workflow.ProcessServiceWorkflow(tx, logger, msg)
	case string(models.StockReferenceTypeCustomer):
		return workflow.ProcessCustomerWorkflow(tx, logger, msg)
	case string(models.StockReferenceTypeRecheck):
		return workflow.ProcessRecheckWorkflow(tx, logger, msg)
	}
	return nil
}
