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

// ProcessSaleOutWorkflow marks units sold. This is one of the two export
// handlers that resend the full document: every non-trivial update rebuilds
// the line-item mirrors from the whole payload instead of patching flags.
func ProcessSaleOutWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.StockMessage) error {
	var doc models.SaleOutDoc
	if err := json.Unmarshal(msg.NewObj, &doc); err != nil {
		config.LogError(logger, "SaleOutWorkflow.go", "ProcessSaleOutWorkflow", "Unmarshal new obj", string(msg.NewObj), err)
		return dropPoison(err)
	}

	if msg.Action == string(models.PubSubMessageActionUpdate) {
		noop, err := OnlyBookkeepingChanged(msg.OldObj, msg.NewObj)
		if err != nil {
			config.LogError(logger, "SaleOutWorkflow.go", "ProcessSaleOutWorkflow", "OnlyBookkeepingChanged", msg.ReferenceId, err)
			return err
		}
		if noop {
			return nil
		}
		// Full-document resend.
		return UpsertDocItemMirrors(tx, models.StockReferenceTypeSaleOut, doc.Id, doc.DocNo, doc.BranchCode, doc.Items, doc.StatusFlags)
	}

	docDate := utils.DereferencePtr(doc.DocDate, time.Now()).UTC()

	for _, line := range doc.Items {
		items, err := ResolveStockItems(tx, line, ResolveOptions{
			Axis:       AxisSold,
			BranchCode: doc.BranchCode,
			Limit:      line.Qty,
		})
		if err != nil {
			config.LogError(logger, "SaleOutWorkflow.go", "ProcessSaleOutWorkflow", "ResolveStockItems", line, err)
			return err
		}
		if len(items) == 0 {
			if err := handleUnmatched(tx.Statement.Context, tx, models.StockReferenceTypeSaleOut, doc.Id, doc.DocNo, doc.BranchCode, line, "sale out matched no unsold unit"); err != nil {
				return err
			}
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
				config.LogError(logger, "SaleOutWorkflow.go", "ProcessSaleOutWorkflow", "applyDisposition", items[i].ID, err)
				return err
			}
		}
	}

	return UpsertDocItemMirrors(tx, models.StockReferenceTypeSaleOut, doc.Id, doc.DocNo, doc.BranchCode, doc.Items, doc.StatusFlags)
}
