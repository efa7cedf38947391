package workflow

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var ErrReconciliationInProgress = errors.New("ledger reconciliation already running for organization")

func reconciliationLockName(organizationId string) string {
	return fmt.Sprintf("reconcile:%s", organizationId)
}

// withReconciliationLock runs fn while holding a MySQL advisory lock for the organization.
// GET_LOCK is connection-scoped, so the lock is taken and released on one pinned connection.
func withReconciliationLock(db *gorm.DB, organizationId string, fn func() error) error {
	return db.Connection(func(conn *gorm.DB) error {
		var ok int
		if err := conn.Raw("SELECT GET_LOCK(?, 0)", reconciliationLockName(organizationId)).Scan(&ok).Error; err != nil {
			return err
		}
		if ok != 1 {
			return ErrReconciliationInProgress
		}
		defer func() {
			var released int
			_ = conn.Raw("SELECT RELEASE_LOCK(?)", reconciliationLockName(organizationId)).Scan(&released).Error
		}()
		return fn()
	})
}
