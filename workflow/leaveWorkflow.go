package workflow

import (
	"encoding/json"
	"fmt"

	"bitbucket.org/vmgroup/dealer_backend/config"
	"bitbucket.org/vmgroup/dealer_backend/models"
	"bitbucket.org/vmgroup/dealer_backend/push"
	"bitbucket.org/vmgroup/dealer_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ProcessLeaveWorkflow has no stock effect. A new request notifies the
// approver chain; a status change notifies it again with the outcome.
func ProcessLeaveWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.StockMessage) error {
	var doc models.LeaveDoc
	if err := json.Unmarshal(msg.NewObj, &doc); err != nil {
		config.LogError(logger, "LeaveWorkflow.go", "ProcessLeaveWorkflow", "Unmarshal new obj", string(msg.NewObj), err)
		return dropPoison(err)
	}

	title := ""
	switch msg.Action {
	case string(models.PubSubMessageActionCreate):
		title = fmt.Sprintf("Leave request %s from %s", doc.DocNo, doc.EmployeeName)
	case string(models.PubSubMessageActionUpdate):
		var oldDoc models.LeaveDoc
		if err := json.Unmarshal(msg.OldObj, &oldDoc); err != nil {
			config.LogError(logger, "LeaveWorkflow.go", "ProcessLeaveWorkflow", "Unmarshal old obj", string(msg.OldObj), err)
			return dropPoison(err)
		}
		if oldDoc.Status == doc.Status {
			return nil
		}
		title = fmt.Sprintf("Leave request %s is now %s", doc.DocNo, doc.Status)
	default:
		return nil
	}

	body := fmt.Sprintf("%s (%s)", doc.EmployeeName, doc.LeaveType)
	refType := string(models.StockReferenceTypeLeave)
	notification := models.Notification{
		Title:      title,
		Body:       body,
		GroupName:  models.GroupAdmin,
		BranchCode: doc.BranchCode,
		Province:   doc.Province,
		RefType:    utils.NilIfEmpty(refType),
		RefId:      utils.NilIfEmpty(doc.Id),
		SentBy:     doc.CreatedBy,
	}
	if err := tx.Create(&notification).Error; err != nil {
		config.LogError(logger, "LeaveWorkflow.go", "ProcessLeaveWorkflow", "Create notification", doc.Id, err)
		return err
	}

	// Push delivery is best effort. A provider outage must not fail the
	// workflow and trigger a redelivery that duplicates the feed entry.
	dispatcher, err := push.Default(tx.Statement.Context, logger)
	if err != nil {
		config.LogError(logger, "LeaveWorkflow.go", "ProcessLeaveWorkflow", "push.Default", doc.Id, err)
		return nil
	}
	_, err = dispatcher.Dispatch(tx.Statement.Context, push.Audience{
		GroupName: models.GroupAdmin,
		Province:  doc.Province,
	}, title, body, map[string]string{
		"refType": refType,
		"refId":   doc.Id,
	})
	if err != nil {
		config.LogError(logger, "LeaveWorkflow.go", "ProcessLeaveWorkflow", "Dispatch", doc.Id, err)
	}
	return nil
}
