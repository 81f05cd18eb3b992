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

// ProcessBookingWorkflow reserves units for a booking. Each line resolves to
// its stock items and flips the reserved axis on the ones still open.
func ProcessBookingWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.StockMessage) error {
	var doc models.BookingDoc
	if err := json.Unmarshal(msg.NewObj, &doc); err != nil {
		config.LogError(logger, "BookingWorkflow.go", "ProcessBookingWorkflow", "Unmarshal new obj", string(msg.NewObj), err)
		return dropPoison(err)
	}

	if msg.Action == string(models.PubSubMessageActionUpdate) {
		noop, err := OnlyBookkeepingChanged(msg.OldObj, msg.NewObj)
		if err != nil {
			config.LogError(logger, "BookingWorkflow.go", "ProcessBookingWorkflow", "OnlyBookkeepingChanged", msg.ReferenceId, err)
			return err
		}
		if noop {
			return nil
		}

		var oldDoc models.BookingDoc
		if err := json.Unmarshal(msg.OldObj, &oldDoc); err != nil {
			config.LogError(logger, "BookingWorkflow.go", "ProcessBookingWorkflow", "Unmarshal old obj", string(msg.OldObj), err)
			return dropPoison(err)
		}
		flipped := StatusFlippedTrue(flagsToMap(oldDoc.StatusFlags), flagsToMap(doc.StatusFlags))
		return CascadeStatusFlags(tx, models.StockReferenceTypeBooking, doc.Id, flipped)
	}

	docDate := utils.DereferencePtr(doc.DocDate, time.Now()).UTC()

	for _, line := range doc.Items {
		items, err := ResolveStockItems(tx, line, ResolveOptions{
			Axis:  AxisReserved,
			Limit: line.Qty,
		})
		if err != nil {
			config.LogError(logger, "BookingWorkflow.go", "ProcessBookingWorkflow", "ResolveStockItems", line, err)
			return err
		}
		if len(items) == 0 {
			if err := handleUnmatched(tx.Statement.Context, tx, models.StockReferenceTypeBooking, doc.Id, doc.DocNo, doc.BranchCode, line, "booking matched no open unit"); err != nil {
				return err
			}
			continue
		}

		for i := range items {
			d := dispositionOf(doc.CreatedBy, docDate, doc.Id, doc.DocNo, doc.BranchCode, doc.CustomerName)
			txn := models.TransactionLog{
				Ts:         docDate,
				By:         doc.CreatedBy,
				Type:       models.StockTransactionTypeReserve,
				DocId:      doc.Id,
				DocNo:      doc.DocNo,
				BranchCode: doc.BranchCode,
				Customer:   doc.CustomerName,
			}
			if err := applyDisposition(tx, &items[i], AxisReserved, d, txn); err != nil {
				config.LogError(logger, "BookingWorkflow.go", "ProcessBookingWorkflow", "applyDisposition", items[i].ID, err)
				return err
			}
		}
	}

	return UpsertDocItemMirrors(tx, models.StockReferenceTypeBooking, doc.Id, doc.DocNo, doc.BranchCode, doc.Items, doc.StatusFlags)
}
