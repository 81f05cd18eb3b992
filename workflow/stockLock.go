package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireBranchStockLock serializes stock reconciliation per branch across
// instances using MySQL advisory locks. Two concurrent handlers resolving to
// the same FIFO candidate would otherwise both claim it.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same *gorm.DB that will do the reconciliation transaction.
func AcquireBranchStockLock(tx *gorm.DB, branchCode string) error {
	lockName := fmt.Sprintf("stock:%s", branchCode)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire stock lock for branch_code=%s", branchCode)
	}
	return nil
}

func ReleaseBranchStockLock(tx *gorm.DB, branchCode string) {
	lockName := fmt.Sprintf("stock:%s", branchCode)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
