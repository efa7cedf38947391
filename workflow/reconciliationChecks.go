package workflow

import (
	"context"
	"errors"

	"github.com/mmdatafocus/retail_backend/appctx"
	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/sirupsen/logrus"
)

// RunLedgerReconciliation checks every product of each organization, storing the
// mismatches as reports when store is set. It returns the mismatch count per organization.
// Organizations already being reconciled by another run are skipped.
func RunLedgerReconciliation(ctx context.Context, logger *logrus.Logger, organizationIds []string, store bool) (map[string]int, error) {
	// the run spans tenants, so the per-request tenant guard is bypassed
	ctx = appctx.Set(ctx, appctx.ContextKeySkipTenantScope, true)
	db := config.GetDB().WithContext(ctx)
	found := make(map[string]int, len(organizationIds))
	for _, orgId := range organizationIds {
		var (
			cid     string
			reports []*models.ReconciliationReport
		)
		err := withReconciliationLock(db, orgId, func() error {
			var err error
			cid, reports, err = models.ReconcileOrganizationLedger(ctx, orgId, store)
			return err
		})
		if errors.Is(err, ErrReconciliationInProgress) {
			config.LogWarn(logger, "reconciliationChecks.go", "RunLedgerReconciliation", "skipped, run in progress", orgId)
			continue
		}
		if err != nil {
			return found, err
		}
		found[orgId] = len(reports)
		if logger != nil && len(reports) > 0 {
			logger.WithFields(logrus.Fields{
				"field":           "RunLedgerReconciliation",
				"organization_id": orgId,
				"correlation_id":  cid,
				"mismatches":      len(reports),
			}).Warn("ledger reconciliation found mismatches")
		}
	}
	return found, nil
}

// OrganizationsWithProducts lists every organization owning at least one product.
func OrganizationsWithProducts(ctx context.Context) ([]string, error) {
	ctx = appctx.Set(ctx, appctx.ContextKeySkipTenantScope, true)
	return models.ListProductOrganizations(ctx)
}
