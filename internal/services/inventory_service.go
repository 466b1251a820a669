package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/furever-shop/api/internal/domain"
	"github.com/furever-shop/api/internal/platform/requestctx"
	"github.com/furever-shop/api/internal/repositories"
)

// Sentinel errors returned by InventoryService.
var (
	ErrInventoryInvalidInput = errors.New("inventory: invalid input")
	ErrInventoryOrderMissing = errors.New("inventory: order not found")
)

// InventoryServiceDeps wires the inventory service dependencies.
type InventoryServiceDeps struct {
	Inventory repositories.InventoryRepository
}

type inventoryService struct {
	inventory repositories.InventoryRepository
}

// NewInventoryService validates dependencies and returns an InventoryService.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Inventory == nil {
		return nil, errors.New("inventory service requires inventory repository")
	}
	return &inventoryService{inventory: deps.Inventory}, nil
}

// ApplyDelivery runs the delivery stock adjustment for the order and returns
// the threshold crossings it caused. A repeat call for the same order is a
// no-op thanks to the stockApplied guard.
func (s *inventoryService) ApplyDelivery(ctx context.Context, orderID string) ([]domain.StockAlert, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrInventoryInvalidInput)
	}

	adjustment, err := s.inventory.ApplyDeliveryAdjustment(ctx, id)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return nil, fmt.Errorf("%w: %v", ErrInventoryOrderMissing, err)
		}
		return nil, err
	}

	logger := requestctx.Logger(ctx)
	if adjustment.AlreadyApplied {
		logger.Info("delivery stock adjustment already applied",
			zap.String("order_id", id),
		)
		return nil, nil
	}

	var alerts []domain.StockAlert
	for _, line := range adjustment.Lines {
		if line.Missing {
			logger.Warn("product missing during delivery adjustment",
				zap.String("order_id", id),
				zap.String("product_id", line.ProductID),
			)
			continue
		}

		product := domain.Product{
			ID:                line.ProductID,
			Name:              line.Name,
			CountInStock:      line.Remaining,
			LowStockThreshold: line.Threshold,
		}
		switch {
		case line.Remaining == 0:
			alerts = append(alerts, domain.StockAlert{
				Kind:      domain.StockAlertOut,
				Product:   product,
				Remaining: 0,
			})
		case line.Remaining <= product.EffectiveLowStockThreshold():
			alerts = append(alerts, domain.StockAlert{
				Kind:      domain.StockAlertLow,
				Product:   product,
				Remaining: line.Remaining,
			})
		}
	}
	return alerts, nil
}
