package services

import (
	"context"
	"errors"
	"testing"

	"github.com/furever-shop/api/internal/domain"
	"github.com/furever-shop/api/internal/repositories"
)

type stubInventoryRepo struct {
	applyFn func(context.Context, string) (repositories.DeliveryAdjustment, error)
}

func (s *stubInventoryRepo) ApplyDeliveryAdjustment(ctx context.Context, orderID string) (repositories.DeliveryAdjustment, error) {
	if s.applyFn != nil {
		return s.applyFn(ctx, orderID)
	}
	return repositories.DeliveryAdjustment{}, nil
}

func newTestInventoryService(t *testing.T, repo *stubInventoryRepo) InventoryService {
	t.Helper()
	svc, err := NewInventoryService(InventoryServiceDeps{Inventory: repo})
	if err != nil {
		t.Fatalf("new inventory service: %v", err)
	}
	return svc
}

func TestInventoryServiceApplyDeliveryAlerts(t *testing.T) {
	ctx := context.Background()
	repo := &stubInventoryRepo{
		applyFn: func(_ context.Context, orderID string) (repositories.DeliveryAdjustment, error) {
			if orderID != "ord_1" {
				t.Fatalf("unexpected order id %s", orderID)
			}
			return repositories.DeliveryAdjustment{
				Lines: []repositories.StockAdjustment{
					{ProductID: "prod-1", Name: "Chew Toy", Requested: 2, Remaining: 0, Threshold: 10},
					{ProductID: "prod-2", Name: "Dog Treats", Requested: 1, Remaining: 3, Threshold: 5},
					{ProductID: "prod-3", Name: "Leash", Requested: 1, Remaining: 40, Threshold: 10},
					{ProductID: "prod-4", Requested: 1, Missing: true},
				},
			}, nil
		},
	}
	svc := newTestInventoryService(t, repo)

	alerts, err := svc.ApplyDelivery(ctx, "ord_1")
	if err != nil {
		t.Fatalf("apply delivery: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts got %d: %#v", len(alerts), alerts)
	}
	if alerts[0].Kind != domain.StockAlertOut || alerts[0].Product.ID != "prod-1" {
		t.Fatalf("expected out_of_stock for prod-1, got %#v", alerts[0])
	}
	if alerts[1].Kind != domain.StockAlertLow || alerts[1].Product.ID != "prod-2" {
		t.Fatalf("expected low_stock for prod-2, got %#v", alerts[1])
	}
	if alerts[1].Remaining != 3 {
		t.Fatalf("expected remaining 3 got %d", alerts[1].Remaining)
	}
}

func TestInventoryServiceApplyDeliveryDefaultThreshold(t *testing.T) {
	ctx := context.Background()
	repo := &stubInventoryRepo{
		applyFn: func(context.Context, string) (repositories.DeliveryAdjustment, error) {
			return repositories.DeliveryAdjustment{
				Lines: []repositories.StockAdjustment{
					{ProductID: "prod-1", Name: "Bird Seed", Requested: 1, Remaining: 10, Threshold: 0},
				},
			}, nil
		},
	}
	svc := newTestInventoryService(t, repo)

	alerts, err := svc.ApplyDelivery(ctx, "ord_2")
	if err != nil {
		t.Fatalf("apply delivery: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Kind != domain.StockAlertLow {
		t.Fatalf("expected low_stock at default threshold boundary, got %#v", alerts)
	}
}

func TestInventoryServiceApplyDeliveryIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := &stubInventoryRepo{
		applyFn: func(context.Context, string) (repositories.DeliveryAdjustment, error) {
			return repositories.DeliveryAdjustment{AlreadyApplied: true}, nil
		},
	}
	svc := newTestInventoryService(t, repo)

	alerts, err := svc.ApplyDelivery(ctx, "ord_3")
	if err != nil {
		t.Fatalf("apply delivery: %v", err)
	}
	if alerts != nil {
		t.Fatalf("repeat delivery must produce no alerts, got %#v", alerts)
	}
}

func TestInventoryServiceApplyDeliveryOrderMissing(t *testing.T) {
	ctx := context.Background()
	repo := &stubInventoryRepo{
		applyFn: func(context.Context, string) (repositories.DeliveryAdjustment, error) {
			return repositories.DeliveryAdjustment{}, stubRepositoryError{notFound: true}
		},
	}
	svc := newTestInventoryService(t, repo)

	if _, err := svc.ApplyDelivery(ctx, "ord_missing"); !errors.Is(err, ErrInventoryOrderMissing) {
		t.Fatalf("expected order missing, got %v", err)
	}
}
