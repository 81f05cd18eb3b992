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

// ProcessDecalWorkflow tracks decal fitting. Creation sets the decal axis;
// the decalTaken axis follows only when isTakeOut flips false->true on a unit
// whose decal is already set.
func ProcessDecalWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.StockMessage) error {
	var doc models.DecalDoc
	if err := json.Unmarshal(msg.NewObj, &doc); err != nil {
		config.LogError(logger, "DecalWorkflow.go", "ProcessDecalWorkflow", "Unmarshal new obj", string(msg.NewObj), err)
		return dropPoison(err)
	}

	docDate := utils.DereferencePtr(doc.DocDate, time.Now()).UTC()

	if msg.Action == string(models.PubSubMessageActionCreate) {
		for _, line := range doc.Items {
			items, err := ResolveStockItems(tx, line, ResolveOptions{
				Axis:  AxisDecal,
				Limit: line.Qty,
			})
			if err != nil {
				config.LogError(logger, "DecalWorkflow.go", "ProcessDecalWorkflow", "ResolveStockItems", line, err)
				return err
			}
			if len(items) == 0 {
				if err := handleUnmatched(tx.Statement.Context, tx, models.StockReferenceTypeDecal, doc.Id, doc.DocNo, doc.BranchCode, line, "decal matched no open unit"); err != nil {
					return err
				}
				continue
			}

			for i := range items {
				d := dispositionOf(doc.CreatedBy, docDate, doc.Id, doc.DocNo, doc.BranchCode, "")
				txn := models.TransactionLog{
					Ts:         docDate,
					By:         doc.CreatedBy,
					Type:       models.StockTransactionTypeDecal,
					DocId:      doc.Id,
					DocNo:      doc.DocNo,
					BranchCode: doc.BranchCode,
				}
				if err := applyDisposition(tx, &items[i], AxisDecal, d, txn); err != nil {
					config.LogError(logger, "DecalWorkflow.go", "ProcessDecalWorkflow", "applyDisposition", items[i].ID, err)
					return err
				}
			}
		}
		return UpsertDocItemMirrors(tx, models.StockReferenceTypeDecal, doc.Id, doc.DocNo, doc.BranchCode, doc.Items, doc.StatusFlags)
	}

	// Update path.
	noop, err := OnlyBookkeepingChanged(msg.OldObj, msg.NewObj)
	if err != nil {
		config.LogError(logger, "DecalWorkflow.go", "ProcessDecalWorkflow", "OnlyBookkeepingChanged", msg.ReferenceId, err)
		return err
	}
	if noop {
		return nil
	}

	var oldDoc models.DecalDoc
	if err := json.Unmarshal(msg.OldObj, &oldDoc); err != nil {
		config.LogError(logger, "DecalWorkflow.go", "ProcessDecalWorkflow", "Unmarshal old obj", string(msg.OldObj), err)
		return dropPoison(err)
	}

	if !oldDoc.IsTakeOut && doc.IsTakeOut {
		for _, line := range doc.Items {
			items, err := ResolveStockItems(tx, line, ResolveOptions{
				Axis:  AxisDecalTaken,
				Limit: line.Qty,
			})
			if err != nil {
				config.LogError(logger, "DecalWorkflow.go", "ProcessDecalWorkflow", "ResolveStockItems (takeOut)", line, err)
				return err
			}

			applied := 0
			for i := range items {
				// decalTaken only follows a set decal.
				if items[i].Decal == nil {
					continue
				}
				d := dispositionOf(doc.CreatedBy, docDate, doc.Id, doc.DocNo, doc.BranchCode, "")
				txn := models.TransactionLog{
					Ts:         docDate,
					By:         doc.CreatedBy,
					Type:       models.StockTransactionTypeDecalTaken,
					DocId:      doc.Id,
					DocNo:      doc.DocNo,
					BranchCode: doc.BranchCode,
				}
				if err := applyDisposition(tx, &items[i], AxisDecalTaken, d, txn); err != nil {
					config.LogError(logger, "DecalWorkflow.go", "ProcessDecalWorkflow", "applyDisposition (takeOut)", items[i].ID, err)
					return err
				}
				applied++
			}
			if applied == 0 {
				if err := handleUnmatched(tx.Statement.Context, tx, models.StockReferenceTypeDecal, doc.Id, doc.DocNo, doc.BranchCode, line, "decal take-out matched no decal-fitted unit"); err != nil {
					return err
				}
			}
		}
	}

	flipped := StatusFlippedTrue(flagsToMap(oldDoc.StatusFlags), flagsToMap(doc.StatusFlags))
	return CascadeStatusFlags(tx, models.StockReferenceTypeDecal, doc.Id, flipped)
}
