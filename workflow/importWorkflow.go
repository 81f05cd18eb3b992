package workflow

import (
	"encoding/json"
	"time"

	"bitbucket.org/vmgroup/dealer_backend/config"
	"bitbucket.org/vmgroup/dealer_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ProcessImportVehiclesWorkflow creates one stock item per imported vehicle
// unit. Updates only cascade status flags; units are never re-created.
func ProcessImportVehiclesWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.StockMessage) error {
	return processImportWorkflow(tx, logger, msg, true)
}

// ProcessImportPartsWorkflow is the peripheral counterpart of the vehicle
// import. Create only upstream; updates still cascade defensively.
func ProcessImportPartsWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.StockMessage) error {
	return processImportWorkflow(tx, logger, msg, false)
}

func processImportWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.StockMessage, isVehicle bool) error {
	refType := models.StockReferenceType(msg.ReferenceType)

	var doc models.ImportDoc
	if err := json.Unmarshal(msg.NewObj, &doc); err != nil {
		config.LogError(logger, "ImportWorkflow.go", "processImportWorkflow", "Unmarshal new obj", string(msg.NewObj), err)
		return dropPoison(err)
	}

	if msg.Action == string(models.PubSubMessageActionUpdate) {
		noop, err := OnlyBookkeepingChanged(msg.OldObj, msg.NewObj)
		if err != nil {
			config.LogError(logger, "ImportWorkflow.go", "processImportWorkflow", "OnlyBookkeepingChanged", msg.ReferenceId, err)
			return err
		}
		if noop {
			return nil
		}

		var oldDoc models.ImportDoc
		if err := json.Unmarshal(msg.OldObj, &oldDoc); err != nil {
			config.LogError(logger, "ImportWorkflow.go", "processImportWorkflow", "Unmarshal old obj", string(msg.OldObj), err)
			return dropPoison(err)
		}
		flipped := StatusFlippedTrue(flagsToMap(oldDoc.StatusFlags), flagsToMap(doc.StatusFlags))
		return CascadeStatusFlags(tx, refType, doc.Id, flipped)
	}

	for _, line := range doc.Items {
		if _, err := createStockUnits(tx, doc, line, isVehicle, models.StockTransactionTypeImport, doc.CreatedBy); err != nil {
			config.LogError(logger, "ImportWorkflow.go", "processImportWorkflow", "createStockUnits", line, err)
			return err
		}
	}

	return UpsertDocItemMirrors(tx, refType, doc.Id, doc.DocNo, doc.BranchCode, doc.Items, doc.StatusFlags)
}

// ProcessImportLogWorkflow schedules the delayed keyword recheck for the
// finished batch. The recheck rides the outbox with a future attempt time.
func ProcessImportLogWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.StockMessage) error {
	var doc models.ImportLogDoc
	if err := json.Unmarshal(msg.NewObj, &doc); err != nil {
		config.LogError(logger, "ImportWorkflow.go", "ProcessImportLogWorkflow", "Unmarshal new obj", string(msg.NewObj), err)
		return dropPoison(err)
	}

	req := models.RecheckRequest{DataType: doc.DataType, BatchNo: doc.BatchNo}
	notBefore := time.Now().UTC().Add(recheckDelay())
	if err := models.PublishToStockDelayed(tx.Statement.Context, tx, msg.BranchCode, time.Now().UTC(), doc.Id, models.StockReferenceTypeRecheck, req, notBefore); err != nil {
		config.LogError(logger, "ImportWorkflow.go", "ProcessImportLogWorkflow", "PublishToStockDelayed", req, err)
		return err
	}
	return nil
}

func recheckDelay() time.Duration {
	// Imports land in bursts; give the batch a minute to settle before the
	// keyword sweep.
	return time.Minute
}

// ProcessOtherVehicleInWorkflow brings units in outside the regular import
// pipeline. Same expansion as an import, logged as importOther.
func ProcessOtherVehicleInWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.StockMessage) error {
	var doc models.OtherVehicleInDoc
	if err := json.Unmarshal(msg.NewObj, &doc); err != nil {
		config.LogError(logger, "ImportWorkflow.go", "ProcessOtherVehicleInWorkflow", "Unmarshal new obj", string(msg.NewObj), err)
		return dropPoison(err)
	}

	importDoc := models.ImportDoc{
		Id:          doc.Id,
		DocNo:       doc.DocNo,
		BranchCode:  doc.BranchCode,
		CreatedBy:   doc.CreatedBy,
		CreatedAt:   doc.CreatedAt,
		DocDate:     doc.DocDate,
		Items:       doc.Items,
		StatusFlags: doc.StatusFlags,
	}
	for _, line := range doc.Items {
		if _, err := createStockUnits(tx, importDoc, line, true, models.StockTransactionTypeImportOther, doc.CreatedBy); err != nil {
			config.LogError(logger, "ImportWorkflow.go", "ProcessOtherVehicleInWorkflow", "createStockUnits", line, err)
			return err
		}
	}

	return UpsertDocItemMirrors(tx, models.StockReferenceTypeOtherVehicleIn, doc.Id, doc.DocNo, doc.BranchCode, doc.Items, doc.StatusFlags)
}
