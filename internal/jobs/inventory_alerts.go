package jobs

import (
	"context"

	"orgstock/internal/logger"
	"orgstock/internal/metrics"
	"orgstock/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerReader is the read side of the inventory ledger the jobs inspect.
type LedgerReader interface {
	FindLedgerDrift(ctx context.Context, limit int) ([]*models.LedgerDrift, error)
	FindLowStock(ctx context.Context, threshold int64, limit int) ([]*models.Product, error)
}

type InventoryAlertService struct {
	ledger    LedgerReader
	metrics   *metrics.Metrics
	threshold int64
}

type InventoryAlert struct {
	OrgID        uuid.UUID
	ProductID    uuid.UUID
	ProductName  string
	CurrentStock int64
	Threshold    int64
}

func NewInventoryAlertService(ledger LedgerReader, m *metrics.Metrics, threshold int64) *InventoryAlertService {
	if threshold < 0 {
		threshold = 0
	}
	return &InventoryAlertService{
		ledger:    ledger,
		metrics:   m,
		threshold: threshold,
	}
}

// CheckLowStock lists products at or below the threshold across all organizations.
func (a *InventoryAlertService) CheckLowStock(ctx context.Context) ([]InventoryAlert, error) {
	log := logger.FromContext(ctx)

	products, err := a.ledger.FindLowStock(ctx, a.threshold, 0)
	if err != nil {
		log.Error("failed to list low stock products", zap.Error(err))
		return nil, err
	}

	alerts := make([]InventoryAlert, 0, len(products))
	for _, p := range products {
		alerts = append(alerts, InventoryAlert{
			OrgID:        p.OrgID,
			ProductID:    p.ID,
			ProductName:  p.Name,
			CurrentStock: p.CurrentQuantity,
			Threshold:    a.threshold,
		})
	}
	a.metrics.SetLowStock(len(alerts))

	if len(alerts) > 0 {
		log.Info("low stock products found", zap.Int("count", len(alerts)), zap.Int64("threshold", a.threshold))
	}
	return alerts, nil
}
