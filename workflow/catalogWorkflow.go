package workflow

import (
	"encoding/json"

	"bitbucket.org/vmgroup/dealer_backend/config"
	"bitbucket.org/vmgroup/dealer_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Catalog handlers only maintain the precomputed search arrays on the local
// mirrors of the master-data collections. No stock effect.

func ProcessProductWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.StockMessage) error {
	if msg.Action == string(models.PubSubMessageActionDelete) {
		return tx.Where("doc_id = ?", msg.ReferenceId).Delete(&models.Product{}).Error
	}

	var doc models.CatalogDoc
	if err := json.Unmarshal(msg.NewObj, &doc); err != nil {
		config.LogError(logger, "CatalogWorkflow.go", "ProcessProductWorkflow", "Unmarshal new obj", string(msg.NewObj), err)
		return dropPoison(err)
	}

	product := models.Product{
		DocId:       doc.Id,
		Code:        doc.Code,
		Name:        doc.Name,
		Model:       doc.Model,
		ProductType: doc.ProductType,
		Price:       parsePrice(doc.Price),
	}
	product.ComputeSearchFields()

	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "doc_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"code", "p_code", "name", "model", "product_type", "price",
			"name_lower", "name_partial", "code_partial",
		}),
	}).Create(&product).Error
}

func ProcessServiceWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.StockMessage) error {
	if msg.Action == string(models.PubSubMessageActionDelete) {
		return tx.Where("doc_id = ?", msg.ReferenceId).Delete(&models.Service{}).Error
	}

	var doc models.CatalogDoc
	if err := json.Unmarshal(msg.NewObj, &doc); err != nil {
		config.LogError(logger, "CatalogWorkflow.go", "ProcessServiceWorkflow", "Unmarshal new obj", string(msg.NewObj), err)
		return dropPoison(err)
	}

	service := models.Service{
		DocId: doc.Id,
		Code:  doc.Code,
		Name:  doc.Name,
		Price: parsePrice(doc.Price),
	}
	service.ComputeSearchFields()

	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "doc_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"code", "name", "price", "name_lower", "name_partial", "code_partial",
		}),
	}).Create(&service).Error
}

func ProcessCustomerWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.StockMessage) error {
	if msg.Action == string(models.PubSubMessageActionDelete) {
		return tx.Where("doc_id = ?", msg.ReferenceId).Delete(&models.Customer{}).Error
	}

	var doc models.CatalogDoc
	if err := json.Unmarshal(msg.NewObj, &doc); err != nil {
		config.LogError(logger, "CatalogWorkflow.go", "ProcessCustomerWorkflow", "Unmarshal new obj", string(msg.NewObj), err)
		return dropPoison(err)
	}

	customer := models.Customer{
		DocId:      doc.Id,
		Name:       doc.Name,
		Phone:      doc.Phone,
		CitizenId:  doc.CitizenId,
		BranchCode: doc.BranchCode,
	}
	customer.ComputeSearchFields()

	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "doc_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "phone", "citizen_id", "branch_code",
			"name_lower", "name_partial", "phone_partial",
		}),
	}).Create(&customer).Error
}

// parsePrice tolerates the empty and malformed prices upstream sends on
// draft records.
func parsePrice(raw string) decimal.Decimal {
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}
