package workflow

import (
	"encoding/json"

	"bitbucket.org/vmgroup/dealer_backend/config"
	"bitbucket.org/vmgroup/dealer_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ProcessRecheckWorkflow is the delayed sweep scheduled by an import-log
// record. It patches the search arrays of any unit in the batch that still
// lacks them, which catches units whose import event raced the keyword
// computation. Items already patched are skipped, so redelivery is harmless.
func ProcessRecheckWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.StockMessage) error {
	var req models.RecheckRequest
	if err := json.Unmarshal(msg.NewObj, &req); err != nil {
		config.LogError(logger, "RecheckWorkflow.go", "ProcessRecheckWorkflow", "Unmarshal request", string(msg.NewObj), err)
		return dropPoison(err)
	}
	_, err := RecheckBatch(tx, logger, req)
	return err
}

// RecheckBatch runs one keyword sweep over a batch and returns how many units
// it patched. Also reachable directly through the internal recheck endpoint.
func RecheckBatch(tx *gorm.DB, logger *logrus.Logger, req models.RecheckRequest) (int, error) {
	if req.BatchNo == "" {
		return 0, nil
	}

	var items []models.StockItem
	if err := tx.Where("import_batch_no = ?", req.BatchNo).Find(&items).Error; err != nil {
		config.LogError(logger, "RecheckWorkflow.go", "RecheckBatch", "Find batch items", req.BatchNo, err)
		return 0, err
	}

	patched := 0
	for i := range items {
		if items[i].HasComputedKeywords() {
			continue
		}
		items[i].ComputeSearchFields()
		err := tx.Model(&items[i]).Updates(map[string]interface{}{
			"vehicle_no_lower":      items[i].VehicleNoLower,
			"vehicle_no_partial":    items[i].VehicleNoPartial,
			"peripheral_no_lower":   items[i].PeripheralNoLower,
			"peripheral_no_partial": items[i].PeripheralNoPartial,
			"model_partial":         items[i].ModelPartial,
			"product_name_partial":  items[i].ProductNamePartial,
		}).Error
		if err != nil {
			config.LogError(logger, "RecheckWorkflow.go", "RecheckBatch", "Update search fields", items[i].ID, err)
			return patched, err
		}
		patched++
	}

	if patched > 0 {
		logger.WithFields(logrus.Fields{
			"batchNo":  req.BatchNo,
			"dataType": req.DataType,
			"patched":  patched,
		}).Info("recheck patched stock search fields")
	}
	return patched, nil
}
