package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/furever-shop/api/internal/domain"
	"github.com/furever-shop/api/internal/repositories"
)

type stubOrderRepo struct {
	insertFn func(context.Context, domain.Order) error
	updateFn func(context.Context, domain.Order) error
	findFn   func(context.Context, string) (domain.Order, error)
	listFn   func(context.Context, repositories.OrderListFilter) ([]domain.Order, error)
}

func (s *stubOrderRepo) Insert(ctx context.Context, order domain.Order) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepo) Update(ctx context.Context, order domain.Order) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findFn != nil {
		return s.findFn(ctx, orderID)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderRepo) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return nil, nil
}

type stubCounterRepo struct {
	nextFn func(context.Context, string, int64) (int64, error)
}

func (s *stubCounterRepo) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if s.nextFn != nil {
		return s.nextFn(ctx, counterID, step)
	}
	return 1, nil
}

func newTestOrderService(t *testing.T, orders *stubOrderRepo, counters *stubCounterRepo, now time.Time) OrderService {
	t.Helper()
	svc, err := NewOrderService(OrderServiceDeps{
		Orders:   orders,
		Counters: counters,
		Clock:    func() time.Time { return now },
		IDGen:    func() string { return "ord_000TEST" },
	})
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}
	return svc
}

func effectKinds(effects []SideEffect) []SideEffectKind {
	kinds := make([]SideEffectKind, 0, len(effects))
	for _, effect := range effects {
		kinds = append(kinds, effect.Kind)
	}
	return kinds
}

func findEffect(effects []SideEffect, kind SideEffectKind) (SideEffect, bool) {
	for _, effect := range effects {
		if effect.Kind == kind {
			return effect, true
		}
	}
	return SideEffect{}, false
}

func TestOrderServiceCreateOrder(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	var inserted []domain.Order

	orders := &stubOrderRepo{
		insertFn: func(_ context.Context, order domain.Order) error {
			inserted = append(inserted, order)
			return nil
		},
	}
	counters := &stubCounterRepo{
		nextFn: func(_ context.Context, counterID string, step int64) (int64, error) {
			if counterID != "orders-2026" {
				t.Fatalf("unexpected counter id %s", counterID)
			}
			if step != 1 {
				t.Fatalf("unexpected step %d", step)
			}
			return 42, nil
		},
	}

	svc := newTestOrderService(t, orders, counters, now)

	customer := "user-1"
	change, err := svc.CreateOrder(ctx, CreateOrderCommand{
		CustomerRef: &customer,
		Items: []OrderItemInput{
			{ProductRef: "prod-1", Name: "Chew Toy", UnitPrice: 1000, Quantity: 2},
			{ProductRef: "prod-2", Name: "Dog Treats", UnitPrice: 500, Quantity: 1},
		},
		ShippingAddress1: "1 Bark Lane",
		City:             "Dogtown",
		Zip:              "10001",
		Country:          "US",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	order := change.Order
	if order.ID != "ord_000TEST" {
		t.Fatalf("unexpected order id %s", order.ID)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected Pending got %s", order.Status)
	}
	if order.OrderNumber != "FE-2026-000042" {
		t.Fatalf("unexpected order number %s", order.OrderNumber)
	}
	if order.TotalPrice != 2500 {
		t.Fatalf("expected total 2500 got %d", order.TotalPrice)
	}
	if len(inserted) != 1 {
		t.Fatalf("expected 1 inserted order got %d", len(inserted))
	}
	if inserted[0].TotalPrice != 2500 {
		t.Fatalf("persisted total %d differs from computed total", inserted[0].TotalPrice)
	}
	if change.PreviousStatus != nil {
		t.Fatalf("creation has no previous status, got %s", *change.PreviousStatus)
	}

	kinds := effectKinds(change.Effects)
	want := []SideEffectKind{EffectNotifyCustomer, EffectSendEmail, EffectNotifyAdmins, EffectPublishEvent}
	if len(kinds) != len(want) {
		t.Fatalf("expected effects %v got %v", want, kinds)
	}
	for i, kind := range want {
		if kinds[i] != kind {
			t.Fatalf("expected effect %s at %d got %v", kind, i, kinds)
		}
	}

	notify, _ := findEffect(change.Effects, EffectNotifyCustomer)
	if notify.NotificationKind != domain.NotificationOrderConfirmed {
		t.Fatalf("expected order_confirmed got %s", notify.NotificationKind)
	}
	if notify.CustomerRef != "user-1" {
		t.Fatalf("expected customer user-1 got %s", notify.CustomerRef)
	}

	publish, _ := findEffect(change.Effects, EffectPublishEvent)
	if publish.Event == nil || publish.Event.Type != OrderEventCreated {
		t.Fatalf("expected %s event, got %#v", OrderEventCreated, publish.Event)
	}
	if publish.Event.OrderNumber != "FE-2026-000042" {
		t.Fatalf("unexpected event order number %s", publish.Event.OrderNumber)
	}
}

func TestOrderServiceCreateOrderGuest(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 2, 11, 0, 0, 0, time.UTC)
	svc := newTestOrderService(t, &stubOrderRepo{}, &stubCounterRepo{}, now)

	change, err := svc.CreateOrder(ctx, CreateOrderCommand{
		Items: []OrderItemInput{{ProductRef: "prod-1", UnitPrice: 300, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if change.Order.CustomerRef != nil {
		t.Fatalf("expected no customer ref, got %s", *change.Order.CustomerRef)
	}
	for _, effect := range change.Effects {
		if effect.Kind == EffectNotifyCustomer || effect.Kind == EffectSendEmail {
			t.Fatalf("guest order must not emit %s", effect.Kind)
		}
	}
	if _, ok := findEffect(change.Effects, EffectNotifyAdmins); !ok {
		t.Fatalf("expected admin fan-out for guest order")
	}
}

func TestOrderServiceCreateOrderValidation(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 3, 8, 0, 0, 0, time.UTC)
	orders := &stubOrderRepo{
		insertFn: func(context.Context, domain.Order) error {
			t.Fatalf("insert must not be called on invalid input")
			return nil
		},
	}
	svc := newTestOrderService(t, orders, &stubCounterRepo{}, now)

	if _, err := svc.CreateOrder(ctx, CreateOrderCommand{}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input for empty items, got %v", err)
	}
	if _, err := svc.CreateOrder(ctx, CreateOrderCommand{
		Items: []OrderItemInput{{ProductRef: "", UnitPrice: 100, Quantity: 1}},
	}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input for missing product ref, got %v", err)
	}
	if _, err := svc.CreateOrder(ctx, CreateOrderCommand{
		Items: []OrderItemInput{{ProductRef: "prod-1", UnitPrice: -100, Quantity: 1}},
	}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input for negative price, got %v", err)
	}
}

func TestOrderServiceCreateOrderNormalizesQuantity(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	svc := newTestOrderService(t, &stubOrderRepo{}, &stubCounterRepo{}, now)

	change, err := svc.CreateOrder(ctx, CreateOrderCommand{
		Items: []OrderItemInput{{ProductRef: "prod-1", UnitPrice: 250, Quantity: 0}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if change.Order.Items[0].Quantity != 1 {
		t.Fatalf("expected quantity clamped to 1, got %d", change.Order.Items[0].Quantity)
	}
	if change.Order.TotalPrice != 250 {
		t.Fatalf("expected total 250 got %d", change.Order.TotalPrice)
	}
}

func TestOrderServiceTransitionTable(t *testing.T) {
	statuses := []domain.OrderStatus{
		domain.OrderStatusPending,
		domain.OrderStatusProcessing,
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
		domain.OrderStatusCanceled,
	}
	allowed := map[domain.OrderStatus]map[domain.OrderStatus]bool{
		domain.OrderStatusPending:    {domain.OrderStatusProcessing: true, domain.OrderStatusCanceled: true},
		domain.OrderStatusProcessing: {domain.OrderStatusShipped: true, domain.OrderStatusCanceled: true},
		domain.OrderStatusShipped:    {domain.OrderStatusDelivered: true},
		domain.OrderStatusDelivered:  {},
		domain.OrderStatusCanceled:   {},
	}

	ctx := context.Background()
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	for _, from := range statuses {
		for _, to := range statuses {
			from, to := from, to
			t.Run(string(from)+"_to_"+string(to), func(t *testing.T) {
				orders := &stubOrderRepo{
					findFn: func(_ context.Context, id string) (domain.Order, error) {
						return domain.Order{ID: id, Status: from, OrderNumber: "FE-2026-000001"}, nil
					},
				}
				svc := newTestOrderService(t, orders, &stubCounterRepo{}, now)

				_, err := svc.ApplyStatus(ctx, ApplyStatusCommand{OrderID: "ord_1", Target: to})
				if allowed[from][to] {
					if err != nil {
						t.Fatalf("expected %s -> %s to succeed: %v", from, to, err)
					}
				} else if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("expected %s -> %s to be rejected, got %v", from, to, err)
				}
			})
		}
	}
}

func TestOrderServiceApplyStatusStampsTimestamps(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 2, 15, 0, 0, 0, time.UTC)
	customer := "user-7"

	var updated domain.Order
	orders := &stubOrderRepo{
		findFn: func(_ context.Context, id string) (domain.Order, error) {
			return domain.Order{ID: id, Status: domain.OrderStatusShipped, CustomerRef: &customer, OrderNumber: "FE-2026-000002"}, nil
		},
		updateFn: func(_ context.Context, order domain.Order) error {
			updated = order
			return nil
		},
	}
	svc := newTestOrderService(t, orders, &stubCounterRepo{}, now)

	change, err := svc.ApplyStatus(ctx, ApplyStatusCommand{OrderID: "ord_2", Target: domain.OrderStatusDelivered})
	if err != nil {
		t.Fatalf("apply status: %v", err)
	}
	if updated.DeliveredAt == nil || !updated.DeliveredAt.Equal(now) {
		t.Fatalf("expected deliveredAt %s, got %v", now, updated.DeliveredAt)
	}
	if change.PreviousStatus == nil || *change.PreviousStatus != domain.OrderStatusShipped {
		t.Fatalf("expected previous status Shipped, got %v", change.PreviousStatus)
	}

	if _, ok := findEffect(change.Effects, EffectAdjustStock); !ok {
		t.Fatalf("delivery must emit stock adjustment effect")
	}
	admins, ok := findEffect(change.Effects, EffectNotifyAdmins)
	if !ok || admins.NotificationKind != domain.NotificationAdminOrderDelivered {
		t.Fatalf("delivery must notify admins with admin_order_delivered, got %#v", admins)
	}
	notify, ok := findEffect(change.Effects, EffectNotifyCustomer)
	if !ok || notify.NotificationKind != domain.NotificationOrderDelivered {
		t.Fatalf("expected order_delivered customer notification, got %#v", notify)
	}
	publish, ok := findEffect(change.Effects, EffectPublishEvent)
	if !ok || publish.Event.PreviousStatus != string(domain.OrderStatusShipped) {
		t.Fatalf("expected event previous status Shipped, got %#v", publish.Event)
	}
}

func TestOrderServiceCancelStampsCanceledAt(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 3, 9, 0, 0, 0, time.UTC)

	var updated domain.Order
	orders := &stubOrderRepo{
		findFn: func(_ context.Context, id string) (domain.Order, error) {
			return domain.Order{ID: id, Status: domain.OrderStatusPending, OrderNumber: "FE-2026-000003"}, nil
		},
		updateFn: func(_ context.Context, order domain.Order) error {
			updated = order
			return nil
		},
	}
	svc := newTestOrderService(t, orders, &stubCounterRepo{}, now)

	change, err := svc.CancelOrder(ctx, CancelOrderCommand{OrderID: "ord_3"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if change.Order.Status != domain.OrderStatusCanceled {
		t.Fatalf("expected Canceled got %s", change.Order.Status)
	}
	if updated.CanceledAt == nil || !updated.CanceledAt.Equal(now) {
		t.Fatalf("expected canceledAt %s, got %v", now, updated.CanceledAt)
	}
	if _, ok := findEffect(change.Effects, EffectAdjustStock); ok {
		t.Fatalf("cancellation must not adjust stock")
	}
}

func TestOrderServiceCancelShippedRejected(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 4, 9, 0, 0, 0, time.UTC)

	orders := &stubOrderRepo{
		findFn: func(_ context.Context, id string) (domain.Order, error) {
			return domain.Order{ID: id, Status: domain.OrderStatusShipped}, nil
		},
		updateFn: func(_ context.Context, order domain.Order) error {
			t.Fatalf("update must not run for a rejected transition")
			return nil
		},
	}
	svc := newTestOrderService(t, orders, &stubCounterRepo{}, now)

	if _, err := svc.CancelOrder(ctx, CancelOrderCommand{OrderID: "ord_4"}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition for shipped cancel, got %v", err)
	}
}

func TestOrderServiceGetOrderNotFound(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 5, 9, 0, 0, 0, time.UTC)

	orders := &stubOrderRepo{
		findFn: func(context.Context, string) (domain.Order, error) {
			return domain.Order{}, stubRepositoryError{notFound: true}
		},
	}
	svc := newTestOrderService(t, orders, &stubCounterRepo{}, now)

	if _, err := svc.GetOrder(ctx, "ord_missing"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOrderServiceListAllOrdersValidatesStatus(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 6, 9, 0, 0, 0, time.UTC)
	svc := newTestOrderService(t, &stubOrderRepo{}, &stubCounterRepo{}, now)

	bogus := domain.OrderStatus("Refunded")
	if _, err := svc.ListAllOrders(ctx, OrderListQuery{Status: &bogus}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input for unknown status, got %v", err)
	}
}

func TestOrderServiceListOrdersForCustomer(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 7, 9, 0, 0, 0, time.UTC)

	var filter repositories.OrderListFilter
	orders := &stubOrderRepo{
		listFn: func(_ context.Context, f repositories.OrderListFilter) ([]domain.Order, error) {
			filter = f
			return []domain.Order{{ID: "ord_1"}}, nil
		},
	}
	svc := newTestOrderService(t, orders, &stubCounterRepo{}, now)

	got, err := svc.ListOrdersForCustomer(ctx, " user-5 ")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if filter.CustomerRef != "user-5" {
		t.Fatalf("expected trimmed customer ref, got %q", filter.CustomerRef)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 order got %d", len(got))
	}
}

type stubRepositoryError struct {
	notFound    bool
	unavailable bool
}

func (e stubRepositoryError) Error() string       { return "stub repository error" }
func (e stubRepositoryError) IsNotFound() bool    { return e.notFound }
func (e stubRepositoryError) IsConflict() bool    { return false }
func (e stubRepositoryError) IsUnavailable() bool { return e.unavailable }
