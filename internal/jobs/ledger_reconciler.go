package jobs

import (
	"context"

	"orgstock/internal/logger"
	"orgstock/internal/metrics"
	"orgstock/internal/models"

	"go.uber.org/zap"
)

// LedgerReconciler compares every product's quantity with the sum of its ledger.
// It only reports; drift is never repaired automatically.
type LedgerReconciler struct {
	ledger  LedgerReader
	metrics *metrics.Metrics
	limit   int
}

func NewLedgerReconciler(ledger LedgerReader, m *metrics.Metrics, limit int) *LedgerReconciler {
	return &LedgerReconciler{ledger: ledger, metrics: m, limit: limit}
}

func (r *LedgerReconciler) Reconcile(ctx context.Context) ([]*models.LedgerDrift, error) {
	log := logger.FromContext(ctx)

	drift, err := r.ledger.FindLedgerDrift(ctx, r.limit)
	if err != nil {
		log.Error("ledger reconciliation failed", zap.Error(err))
		return nil, err
	}
	r.metrics.SetLedgerDrift(len(drift))

	for _, d := range drift {
		log.Warn("product quantity disagrees with its ledger",
			zap.String("org_id", d.OrgID.String()),
			zap.String("product_id", d.ProductID.String()),
			zap.Int64("current_quantity", d.CurrentQuantity),
			zap.Int64("ledger_sum", d.LedgerSum),
		)
	}
	return drift, nil
}
