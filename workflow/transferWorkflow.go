package workflow

import (
	"encoding/json"
	"time"

	"bitbucket.org/vmgroup/dealer_backend/config"
	"bitbucket.org/vmgroup/dealer_backend/models"
	"bitbucket.org/vmgroup/dealer_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProcessTransferWorkflow handles branch transfers. Creation marks in-stock
// units with the transfer axis; completion clears it and moves the unit to
// the destination branch.
func ProcessTransferWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.StockMessage) error {
	var doc models.TransferDoc
	if err := json.Unmarshal(msg.NewObj, &doc); err != nil {
		config.LogError(logger, "TransferWorkflow.go", "ProcessTransferWorkflow", "Unmarshal new obj", string(msg.NewObj), err)
		return dropPoison(err)
	}

	docDate := utils.DereferencePtr(doc.DocDate, time.Now()).UTC()

	if msg.Action == string(models.PubSubMessageActionCreate) {
		for _, line := range doc.Items {
			items, err := ResolveStockItems(tx, line, ResolveOptions{
				Axis:       AxisTransfer,
				BranchCode: doc.FromBranch,
				Limit:      line.Qty,
			})
			if err != nil {
				config.LogError(logger, "TransferWorkflow.go", "ProcessTransferWorkflow", "ResolveStockItems", line, err)
				return err
			}
			if len(items) == 0 {
				if err := handleUnmatched(tx.Statement.Context, tx, models.StockReferenceTypeTransfer, doc.Id, doc.DocNo, doc.FromBranch, line, "transfer matched no in-stock unit"); err != nil {
					return err
				}
				continue
			}

			for i := range items {
				d := dispositionOf(doc.CreatedBy, docDate, doc.Id, doc.DocNo, doc.FromBranch, "")
				txn := models.TransactionLog{
					Ts:         docDate,
					By:         doc.CreatedBy,
					Type:       models.StockTransactionTypeTransfer,
					DocId:      doc.Id,
					DocNo:      doc.DocNo,
					FromBranch: doc.FromBranch,
					ToBranch:   doc.ToBranch,
				}
				if err := applyDisposition(tx, &items[i], AxisTransfer, d, txn); err != nil {
					config.LogError(logger, "TransferWorkflow.go", "ProcessTransferWorkflow", "applyDisposition", items[i].ID, err)
					return err
				}
			}
		}
		return UpsertDocItemMirrors(tx, models.StockReferenceTypeTransfer, doc.Id, doc.DocNo, doc.FromBranch, doc.Items, doc.StatusFlags)
	}

	// Update path.
	noop, err := OnlyBookkeepingChanged(msg.OldObj, msg.NewObj)
	if err != nil {
		config.LogError(logger, "TransferWorkflow.go", "ProcessTransferWorkflow", "OnlyBookkeepingChanged", msg.ReferenceId, err)
		return err
	}
	if noop {
		return nil
	}

	var oldDoc models.TransferDoc
	if err := json.Unmarshal(msg.OldObj, &oldDoc); err != nil {
		config.LogError(logger, "TransferWorkflow.go", "ProcessTransferWorkflow", "Unmarshal old obj", string(msg.OldObj), err)
		return dropPoison(err)
	}

	if !oldDoc.Completed && doc.Completed {
		if err := completeTransfer(tx, logger, doc); err != nil {
			return err
		}
	}

	flipped := StatusFlippedTrue(flagsToMap(oldDoc.StatusFlags), flagsToMap(doc.StatusFlags))
	return CascadeStatusFlags(tx, models.StockReferenceTypeTransfer, doc.Id, flipped)
}

// completeTransfer clears the transfer axis on the units this document
// claimed and re-homes them to the destination branch. Only units whose
// transfer sub-record links back to this document move; anything else that
// matched the serial belongs to another in-flight transfer.
func completeTransfer(tx *gorm.DB, logger *logrus.Logger, doc models.TransferDoc) error {
	var items []models.StockItem
	err := tx.Model(&models.StockItem{}).
		Where("transfer IS NOT NULL AND JSON_UNQUOTE(JSON_EXTRACT(transfer, '$.doc_id')) = ?", doc.Id).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Find(&items).Error
	if err != nil {
		config.LogError(logger, "TransferWorkflow.go", "completeTransfer", "FindClaimedUnits", doc.Id, err)
		return err
	}
	if len(items) == 0 {
		for _, line := range doc.Items {
			if err := handleUnmatched(tx.Statement.Context, tx, models.StockReferenceTypeTransfer, doc.Id, doc.DocNo, doc.FromBranch, line, "transfer completion matched no claimed unit"); err != nil {
				return err
			}
		}
		return nil
	}

	for i := range items {
		if err := clearTransferAndMoveBranch(tx, &items[i], doc.ToBranch); err != nil {
			config.LogError(logger, "TransferWorkflow.go", "completeTransfer", "clearTransferAndMoveBranch", items[i].ID, err)
			return err
		}
	}
	return nil
}
