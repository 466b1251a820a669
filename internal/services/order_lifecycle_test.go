package services

import (
	"context"
	"testing"
	"time"

	"github.com/furever-shop/api/internal/domain"
	"github.com/furever-shop/api/internal/repositories"
)

// TestOrderLifecycleCreateToDelivered walks one order through the full happy
// path, dispatching every change, and checks the fan-out at each step the way
// the runtime wiring would see it.
func TestOrderLifecycleCreateToDelivered(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	admins := []domain.UserProfile{{ID: "admin-1"}, {ID: "admin-2"}}

	store := map[string]domain.Order{}
	orders := &stubOrderRepo{
		insertFn: func(_ context.Context, order domain.Order) error {
			store[order.ID] = order
			return nil
		},
		updateFn: func(_ context.Context, order domain.Order) error {
			if _, ok := store[order.ID]; !ok {
				return stubRepositoryError{notFound: true}
			}
			store[order.ID] = order
			return nil
		},
		findFn: func(_ context.Context, id string) (domain.Order, error) {
			order, ok := store[id]
			if !ok {
				return domain.Order{}, stubRepositoryError{notFound: true}
			}
			return order, nil
		},
	}
	svc := newTestOrderService(t, orders, &stubCounterRepo{}, now)

	var adjustedOrder string
	inventory := newTestInventoryService(t, &stubInventoryRepo{
		applyFn: func(_ context.Context, orderID string) (repositories.DeliveryAdjustment, error) {
			adjustedOrder = orderID
			return repositories.DeliveryAdjustment{
				Lines: []repositories.StockAdjustment{
					{ProductID: "prod-1", Name: "Chew Toy", Requested: 2, Remaining: 3, Threshold: 5},
				},
			}, nil
		},
	})
	fx := newDispatcherFixture(t, admins, inventory)

	customer := "user-9"
	change, err := svc.CreateOrder(ctx, CreateOrderCommand{
		CustomerRef: &customer,
		Items: []OrderItemInput{
			{ProductRef: "prod-1", Name: "Chew Toy", UnitPrice: 1000, Quantity: 2},
		},
		ShippingAddress1: "1 Bark Lane",
		City:             "Dogtown",
		Zip:              "10001",
		Country:          "US",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	fx.dispatcher.Dispatch(ctx, change)
	orderID := change.Order.ID

	for _, target := range []domain.OrderStatus{
		domain.OrderStatusProcessing,
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
	} {
		change, err = svc.ApplyStatus(ctx, ApplyStatusCommand{OrderID: orderID, Target: target})
		if err != nil {
			t.Fatalf("apply %s: %v", target, err)
		}
		fx.dispatcher.Dispatch(ctx, change)
	}

	final := store[orderID]
	if final.Status != domain.OrderStatusDelivered {
		t.Fatalf("expected final status Delivered got %s", final.Status)
	}
	if final.DeliveredAt == nil || !final.DeliveredAt.Equal(now) {
		t.Fatalf("expected deliveredAt %s, got %v", now, final.DeliveredAt)
	}
	if adjustedOrder != orderID {
		t.Fatalf("expected delivery stock adjustment for %s, got %q", orderID, adjustedOrder)
	}

	byKind := map[domain.NotificationKind][]domain.Notification{}
	for _, n := range *fx.inserted {
		byKind[n.Kind] = append(byKind[n.Kind], n)
	}

	for kind, title := range map[domain.NotificationKind]string{
		domain.NotificationOrderConfirmed:  "Order Confirmed!",
		domain.NotificationOrderProcessing: "Order is Being Processed",
		domain.NotificationOrderShipped:    "Order Shipped!",
		domain.NotificationOrderDelivered:  "Order Delivered",
	} {
		got := byKind[kind]
		if len(got) != 1 {
			t.Fatalf("expected 1 %s notification got %d", kind, len(got))
		}
		if got[0].Title != title {
			t.Fatalf("expected %s title %q got %q", kind, title, got[0].Title)
		}
		if got[0].RecipientRef != customer {
			t.Fatalf("expected %s recipient %s got %s", kind, customer, got[0].RecipientRef)
		}
	}

	if len(byKind[domain.NotificationAdminOrderDelivered]) != len(admins) {
		t.Fatalf("expected %d admin_order_delivered got %d", len(admins), len(byKind[domain.NotificationAdminOrderDelivered]))
	}
	if len(byKind[domain.NotificationAdminNewOrder]) != len(admins) {
		t.Fatalf("expected %d admin_new_order got %d", len(admins), len(byKind[domain.NotificationAdminNewOrder]))
	}
	if len(byKind[domain.NotificationAdminLowStock]) != len(admins) {
		t.Fatalf("expected %d admin_low_stock from the decrement got %d", len(admins), len(byKind[domain.NotificationAdminLowStock]))
	}

	if len(fx.mailer.sent) != 4 {
		t.Fatalf("expected 4 order emails got %d", len(fx.mailer.sent))
	}
	if len(fx.events.published) != 4 {
		t.Fatalf("expected 4 published events got %d", len(fx.events.published))
	}
	last := fx.events.published[len(fx.events.published)-1]
	if last.Type != OrderEventStatusChanged || last.Status != string(domain.OrderStatusDelivered) {
		t.Fatalf("expected final %s event in Delivered, got %#v", OrderEventStatusChanged, last)
	}
}
