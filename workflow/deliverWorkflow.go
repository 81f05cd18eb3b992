package workflow

import (
	"encoding/json"
	"time"

	"bitbucket.org/vmgroup/dealer_backend/config"
	"bitbucket.org/vmgroup/dealer_backend/models"
	"bitbucket.org/vmgroup/dealer_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ProcessDeliverWorkflow marks delivered units sold, unless a sale-out
// already did. The axis-NULL filter in the resolver makes the handler a no-op
// for units sold earlier.
func ProcessDeliverWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.StockMessage) error {
	var doc models.DeliverDoc
	if err := json.Unmarshal(msg.NewObj, &doc); err != nil {
		config.LogError(logger, "DeliverWorkflow.go", "ProcessDeliverWorkflow", "Unmarshal new obj", string(msg.NewObj), err)
		return dropPoison(err)
	}

	markSold := msg.Action == string(models.PubSubMessageActionCreate)

	if msg.Action == string(models.PubSubMessageActionUpdate) {
		noop, err := OnlyBookkeepingChanged(msg.OldObj, msg.NewObj)
		if err != nil {
			config.LogError(logger, "DeliverWorkflow.go", "ProcessDeliverWorkflow", "OnlyBookkeepingChanged", msg.ReferenceId, err)
			return err
		}
		if noop {
			return nil
		}

		var oldDoc models.DeliverDoc
		if err := json.Unmarshal(msg.OldObj, &oldDoc); err != nil {
			config.LogError(logger, "DeliverWorkflow.go", "ProcessDeliverWorkflow", "Unmarshal old obj", string(msg.OldObj), err)
			return dropPoison(err)
		}
		// Completion is the second chance to mark sold.
		markSold = !oldDoc.Completed && doc.Completed

		flipped := StatusFlippedTrue(flagsToMap(oldDoc.StatusFlags), flagsToMap(doc.StatusFlags))
		if err := CascadeStatusFlags(tx, models.StockReferenceTypeDeliver, doc.Id, flipped); err != nil {
			return err
		}
		if !markSold {
			return nil
		}
	}

	docDate := utils.DereferencePtr(doc.DocDate, time.Now()).UTC()

	for _, line := range doc.Items {
		items, err := ResolveStockItems(tx, line, ResolveOptions{
			Axis:  AxisSold,
			Limit: line.Qty,
		})
		if err != nil {
			config.LogError(logger, "DeliverWorkflow.go", "ProcessDeliverWorkflow", "ResolveStockItems", line, err)
			return err
		}
		if len(items) == 0 {
			// Already sold by the sale-out handler, or genuinely unmatched.
			// Delivery after sale-out is the normal flow, so stay quiet.
			continue
		}

		for i := range items {
			d := dispositionOf(doc.CreatedBy, docDate, doc.Id, doc.DocNo, doc.BranchCode, doc.CustomerName)
			txn := models.TransactionLog{
				Ts:         docDate,
				By:         doc.CreatedBy,
				Type:       models.StockTransactionTypeSaleOut,
				DocId:      doc.Id,
				DocNo:      doc.DocNo,
				BranchCode: doc.BranchCode,
				Customer:   doc.CustomerName,
			}
			if err := applyDisposition(tx, &items[i], AxisSold, d, txn); err != nil {
				config.LogError(logger, "DeliverWorkflow.go", "ProcessDeliverWorkflow", "applyDisposition", items[i].ID, err)
				return err
			}
		}
	}

	if msg.Action == string(models.PubSubMessageActionCreate) {
		return UpsertDocItemMirrors(tx, models.StockReferenceTypeDeliver, doc.Id, doc.DocNo, doc.BranchCode, doc.Items, doc.StatusFlags)
	}
	return nil
}
