package workflow

import (
	"bitbucket.org/vmgroup/dealer_backend/models"
	"gorm.io/gorm"
)

// UpsertDocItemMirrors rebuilds the flattened line-item rows of one source
// document. The export handlers resend the full document on every update, so
// a rebuild (delete then insert) keeps the mirrors exact.
func UpsertDocItemMirrors(tx *gorm.DB, refType models.StockReferenceType, docId, docNo, branchCode string, items []models.DocLineItem, flags models.StatusFlags) error {
	if err := tx.Where("reference_type = ? AND doc_id = ?", refType, docId).
		Delete(&models.DocItemMirror{}).Error; err != nil {
		return err
	}

	mirrors := make([]models.DocItemMirror, 0, len(items))
	for i, item := range items {
		mirrors = append(mirrors, models.DocItemMirror{
			DocId:         docId,
			DocNo:         docNo,
			ReferenceType: refType,
			BranchCode:    branchCode,
			LineNo:        i + 1,
			ProductCode:   item.ProductCode,
			ProductName:   item.ProductName,
			Model:         item.Model,
			Qty:           item.Qty,
			VehicleNo:     models.StringList(item.VehicleNo),
			PeripheralNo:  models.StringList(item.PeripheralNo),
			Deleted:       flags.Deleted,
			Cancelled:     flags.Cancelled,
			Rejected:      flags.Rejected,
			Completed:     flags.Completed,
		})
	}
	if len(mirrors) == 0 {
		return nil
	}
	return tx.Create(&mirrors).Error
}

// CascadeStatusFlags propagates false->true flag flips of a source document
// onto every mirror row of that document.
func CascadeStatusFlags(tx *gorm.DB, refType models.StockReferenceType, docId string, flipped []string) error {
	if len(flipped) == 0 {
		return nil
	}
	updates := make(map[string]interface{}, len(flipped))
	for _, name := range flipped {
		updates[name] = true
	}
	return tx.Model(&models.DocItemMirror{}).
		Where("reference_type = ? AND doc_id = ?", refType, docId).
		Updates(updates).Error
}

func flagsToMap(f models.StatusFlags) map[string]bool {
	return map[string]bool{
		"deleted":   f.Deleted,
		"cancelled": f.Cancelled,
		"rejected":  f.Rejected,
		"completed": f.Completed,
	}
}
