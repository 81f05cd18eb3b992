package workflow

import (
	"strings"
	"time"

	"bitbucket.org/vmgroup/dealer_backend/models"
	"bitbucket.org/vmgroup/dealer_backend/utils"
	"gorm.io/gorm"
)

// applyDisposition merge-patches one axis onto a stock item and appends the
// matching history entry. Only the axis column and the transactions array are
// written; everything else on the row stays as is.
func applyDisposition(tx *gorm.DB, item *models.StockItem, axis DispositionAxis, d *models.Disposition, txn models.TransactionLog) error {
	item.AppendTransaction(txn)
	return tx.Model(&models.StockItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]interface{}{
			string(axis):   d,
			"transactions": item.Transactions,
		}).Error
}

// clearTransferAndMoveBranch completes a transfer: the axis goes back to NULL
// and the unit now belongs to the destination branch.
func clearTransferAndMoveBranch(tx *gorm.DB, item *models.StockItem, toBranch string) error {
	return tx.Model(&models.StockItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]interface{}{
			"transfer":    nil,
			"branch_code": toBranch,
		}).Error
}

// createStockUnits expands one import line into stock items, one per unit of
// quantity. Serial i of the normalized list goes to unit i; units past the
// serial list become FIFO stock.
func createStockUnits(tx *gorm.DB, doc models.ImportDoc, line models.DocLineItem, isVehicle bool, txnType models.StockTransactionType, by string) ([]models.StockItem, error) {
	qty := line.Qty
	serials := []string(line.VehicleNo)
	fullSerials := []string(line.VehicleNoFull)
	if !isVehicle {
		serials = []string(line.PeripheralNo)
		fullSerials = []string(line.PeripheralNoFull)
	}
	if qty <= 0 {
		qty = len(serials)
	}
	if qty <= 0 {
		qty = 1
	}

	docDate := doc.CreatedAt
	if doc.DocDate != nil {
		docDate = doc.DocDate
	}
	importedAt := time.Now().UTC()
	if docDate != nil {
		importedAt = docDate.UTC()
	}

	items := make([]models.StockItem, 0, qty)
	for i := 0; i < qty; i++ {
		serial := ""
		fullSerial := ""
		if i < len(serials) {
			serial = serials[i]
		}
		if i < len(fullSerials) {
			fullSerial = fullSerials[i]
		}
		if fullSerial == "" {
			fullSerial = serial
		}
		if serial == "" && fullSerial != "" {
			serial = shortSerial(fullSerial)
		}

		item := models.StockItem{
			ProductCode:   line.ProductCode,
			ProductPCode:  utils.StripNonAlnum(line.ProductCode),
			ProductName:   line.ProductName,
			Model:         line.Model,
			ProductType:   line.ProductType,
			IsVehicle:     isVehicle,
			IsFIFO:        serial == "",
			IsUsed:        models.IsUsedProductCode(line.ProductCode),
			BranchCode:    doc.BranchCode,
			ImportDocId:   doc.Id,
			ImportDocNo:   doc.DocNo,
			ImportBatchNo: doc.BatchNo,
			ImportedAt:    importedAt,
		}
		if isVehicle {
			item.VehicleNo = serial
			item.VehicleNoFull = fullSerial
		} else {
			item.PeripheralNo = serial
			item.PeripheralNoFull = fullSerial
		}
		item.AppendTransaction(models.TransactionLog{
			Ts:         importedAt,
			By:         by,
			Type:       txnType,
			DocId:      doc.Id,
			DocNo:      doc.DocNo,
			BranchCode: doc.BranchCode,
		})
		item.ComputeSearchFields()
		if err := tx.Create(&item).Error; err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// shortSerial derives the day-to-day short form from a full serial: the
// letter prefix plus the trailing digits with leading zeros dropped.
func shortSerial(full string) string {
	full = strings.TrimSpace(full)
	i := 0
	for i < len(full) && !isDigit(full[i]) {
		i++
	}
	prefix, digits := full[:i], full[i:]
	digits = strings.TrimLeft(digits, "0")
	if digits == "" && len(full) > i {
		digits = "0"
	}
	return prefix + digits
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
