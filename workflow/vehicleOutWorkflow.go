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

// ProcessOtherVehicleOutWorkflow moves units out for non-sale reasons and
// sets the exported axis. The second full-document-resend export handler.
func ProcessOtherVehicleOutWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.StockMessage) error {
	var doc models.OtherVehicleOutDoc
	if err := json.Unmarshal(msg.NewObj, &doc); err != nil {
		config.LogError(logger, "VehicleOutWorkflow.go", "ProcessOtherVehicleOutWorkflow", "Unmarshal new obj", string(msg.NewObj), err)
		return dropPoison(err)
	}

	if msg.Action == string(models.PubSubMessageActionUpdate) {
		noop, err := OnlyBookkeepingChanged(msg.OldObj, msg.NewObj)
		if err != nil {
			config.LogError(logger, "VehicleOutWorkflow.go", "ProcessOtherVehicleOutWorkflow", "OnlyBookkeepingChanged", msg.ReferenceId, err)
			return err
		}
		if noop {
			return nil
		}
		// Full-document resend.
		return UpsertDocItemMirrors(tx, models.StockReferenceTypeOtherVehicleOut, doc.Id, doc.DocNo, doc.BranchCode, doc.Items, doc.StatusFlags)
	}

	docDate := utils.DereferencePtr(doc.DocDate, time.Now()).UTC()

	for _, line := range doc.Items {
		items, err := ResolveStockItems(tx, line, ResolveOptions{
			Axis:       AxisExported,
			BranchCode: doc.BranchCode,
			Limit:      line.Qty,
		})
		if err != nil {
			config.LogError(logger, "VehicleOutWorkflow.go", "ProcessOtherVehicleOutWorkflow", "ResolveStockItems", line, err)
			return err
		}
		if len(items) == 0 {
			if err := handleUnmatched(tx.Statement.Context, tx, models.StockReferenceTypeOtherVehicleOut, doc.Id, doc.DocNo, doc.BranchCode, line, "vehicle out matched no unexported unit"); err != nil {
				return err
			}
			continue
		}

		for i := range items {
			d := dispositionOf(doc.CreatedBy, docDate, doc.Id, doc.DocNo, doc.BranchCode, "")
			d.Remark = doc.Reason
			txn := models.TransactionLog{
				Ts:         docDate,
				By:         doc.CreatedBy,
				Type:       models.StockTransactionTypeExport,
				DocId:      doc.Id,
				DocNo:      doc.DocNo,
				BranchCode: doc.BranchCode,
				Remark:     doc.Reason,
			}
			if err := applyDisposition(tx, &items[i], AxisExported, d, txn); err != nil {
				config.LogError(logger, "VehicleOutWorkflow.go", "ProcessOtherVehicleOutWorkflow", "applyDisposition", items[i].ID, err)
				return err
			}
		}
	}

	return UpsertDocItemMirrors(tx, models.StockReferenceTypeOtherVehicleOut, doc.Id, doc.DocNo, doc.BranchCode, doc.Items, doc.StatusFlags)
}
